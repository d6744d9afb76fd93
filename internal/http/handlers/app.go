// Package handlers implements the HTTP API surface over the chat service and
// the provider registry.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/yiyebaofu0518/typix/internal/chat"
	"github.com/yiyebaofu0518/typix/internal/domain"
	"github.com/yiyebaofu0518/typix/internal/middleware"
	"github.com/yiyebaofu0518/typix/internal/provider"
)

// App is the handler container holding the service dependencies.
type App struct {
	Logger   zerolog.Logger
	Chat     *chat.Service
	Registry *provider.Registry
	Files    domain.FileStore
	Settings domain.ProviderSettingsRepository
}

// NewApp creates the handler container.
func NewApp(logger zerolog.Logger, chatSvc *chat.Service, registry *provider.Registry, files domain.FileStore, settings domain.ProviderSettingsRepository) *App {
	return &App{Logger: logger, Chat: chatSvc, Registry: registry, Files: files, Settings: settings}
}

type envelope struct {
	Code    string `json:"code"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func (a *App) ok(w http.ResponseWriter, data any) {
	a.writeJSON(w, http.StatusOK, envelope{Code: "ok", Data: data})
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.writeJSON(w, status, envelope{Code: code, Message: message})
}

func (a *App) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserFromContext(r.Context())
}

var notFoundMessages = map[string]string{
	"en": "not found",
	"zh": "未找到",
}

func (a *App) notFoundMessage(r *http.Request) string {
	if msg, ok := notFoundMessages[middleware.LocaleFromContext(r.Context())]; ok {
		return msg
	}
	return notFoundMessages["en"]
}
