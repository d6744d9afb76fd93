package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/yiyebaofu0518/typix/internal/chat"
	"github.com/yiyebaofu0518/typix/internal/domain"
	"github.com/yiyebaofu0518/typix/internal/provider"
)

type chatIDRequest struct {
	ID string `json:"id"`
}

type generationStatusRequest struct {
	GenerationID string `json:"generationId"`
}

func (a *App) GetChats(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	chats, err := a.Chat.ListChats(r.Context(), userID)
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	a.ok(w, chats)
}

func (a *App) CreateChat(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	var req chat.CreateChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	result, err := a.Chat.CreateChat(r.Context(), userID, req)
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	a.ok(w, result)
}

func (a *App) GetChatByID(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	var req chatIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	view, err := a.Chat.GetChat(r.Context(), userID, req.ID)
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	a.ok(w, view)
}

func (a *App) UpdateChat(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	var req chat.UpdateChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.Chat.UpdateChat(r.Context(), userID, req); err != nil {
		a.serviceError(w, r, err)
		return
	}
	a.ok(w, map[string]bool{"success": true})
}

func (a *App) DeleteChat(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	var req chatIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.Chat.DeleteChat(r.Context(), userID, req.ID); err != nil {
		a.serviceError(w, r, err)
		return
	}
	a.ok(w, map[string]bool{"success": true})
}

// CreateMessage submits a prompt. The response carries the persisted user and
// assistant messages while the generation itself resolves in the background.
func (a *App) CreateMessage(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	var req chat.CreateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	result, err := a.Chat.CreateMessage(r.Context(), userID, req)
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	a.ok(w, result)
}

// GenerationStatus reports the polled state of one generation. A record that
// does not exist or is not owned by the caller reads as null, not an error.
func (a *App) GenerationStatus(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	var req generationStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	view, err := a.Chat.GenerationStatus(r.Context(), userID, req.GenerationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.ok(w, nil)
			return
		}
		a.serviceError(w, r, err)
		return
	}
	a.ok(w, view)
}

func (a *App) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *provider.ValidationError
	switch {
	case errors.Is(err, domain.ErrProviderNotFound):
		a.error(w, http.StatusNotFound, "provider_not_found", err.Error())
	case errors.Is(err, domain.ErrModelNotFound):
		a.error(w, http.StatusBadRequest, "invalid_parameter", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", a.notFoundMessage(r))
	case errors.Is(err, domain.ErrInvalidRequest), errors.As(err, &validationErr):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	default:
		a.Logger.Error().Err(err).Msg("handler: internal error")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
