package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// GetFile streams a stored file by its opaque id.
func (a *App) GetFile(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	fileID := chi.URLParam(r, "id")
	if fileID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "file id required")
		return
	}
	data, err := a.Files.Data(r.Context(), userID, fileID)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", a.notFoundMessage(r))
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.Header().Set("ETag", `"`+fileID+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
