package handlers

import "net/http"

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.ok(w, map[string]string{"status": "healthy"})
}
