package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yiyebaofu0518/typix/internal/domain"
	"github.com/yiyebaofu0518/typix/internal/provider"
)

type providerInfo struct {
	provider.Descriptor
	Settings provider.Schema `json:"settings,omitempty"`
}

// GetProviders lists every registered provider with its models and settings
// schema, in registration order.
func (a *App) GetProviders(w http.ResponseWriter, r *http.Request) {
	providers := a.Registry.List()
	infos := make([]providerInfo, 0, len(providers))
	for _, p := range providers {
		infos = append(infos, providerInfo{Descriptor: p.Descriptor(), Settings: p.SettingsSchema()})
	}
	a.ok(w, infos)
}

type aiProviderRequest struct {
	Provider string `json:"provider"`
}

type updateAiProviderRequest struct {
	Provider string            `json:"provider"`
	Settings provider.Settings `json:"settings"`
}

// GetAiProvider returns the caller's stored settings for one provider, or an
// empty map when nothing has been saved yet.
func (a *App) GetAiProvider(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	var req aiProviderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if _, err := a.Registry.Resolve(req.Provider); err != nil {
		a.error(w, http.StatusNotFound, "provider_not_found", err.Error())
		return
	}
	stored, err := a.Settings.Get(r.Context(), userID, req.Provider)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			a.serviceError(w, r, err)
			return
		}
		stored = map[string]any{}
	}
	a.ok(w, map[string]any{"provider": req.Provider, "settings": stored})
}

// UpdateAiProvider validates the submitted settings against the provider's
// schema and persists the validated map. Generations launched afterwards pick
// the stored values up through the orchestrator's settings merge.
func (a *App) UpdateAiProvider(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	var req updateAiProviderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	prov, err := a.Registry.Resolve(req.Provider)
	if err != nil {
		a.error(w, http.StatusNotFound, "provider_not_found", err.Error())
		return
	}
	parsed, err := provider.ParseSettings(prov.SettingsSchema(), req.Settings)
	if err != nil {
		a.error(w, http.StatusBadRequest, "invalid_parameter", err.Error())
		return
	}
	if err := a.Settings.Put(r.Context(), userID, req.Provider, parsed); err != nil {
		a.serviceError(w, r, err)
		return
	}
	a.ok(w, map[string]bool{"success": true})
}

type relayGenerateRequest struct {
	Request  provider.GenerateRequest `json:"request"`
	Settings provider.Settings        `json:"settings"`
}

// RelayGenerate is the trusted backend hop for providers whose credentials
// must not reach an untrusted caller. It executes the raw provider call and
// answers with the {code, data, message} envelope the relay client expects.
func (a *App) RelayGenerate(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "providerId")
	prov, err := a.Registry.Resolve(providerID)
	if err != nil {
		a.error(w, http.StatusNotFound, "provider_not_found", err.Error())
		return
	}
	var req relayGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	req.Request.ProviderID = providerID

	resp, err := prov.Generate(r.Context(), req.Request, req.Settings)
	if err != nil {
		var validationErr *provider.ValidationError
		if errors.As(err, &validationErr) {
			a.error(w, http.StatusBadRequest, "invalid_parameter", err.Error())
			return
		}
		a.Logger.Error().Err(err).Str("provider", providerID).Msg("relay: provider call failed")
		a.error(w, http.StatusOK, "error", err.Error())
		return
	}
	a.ok(w, resp)
}
