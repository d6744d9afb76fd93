package provider

import (
	"context"
	"fmt"

	"github.com/yiyebaofu0518/typix/internal/domain"
)

// DispatchError reports a failed provider or relay call.
type DispatchError struct {
	Provider string
	Message  string
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("provider %s: generation dispatch failed: %s", e.Provider, e.Message)
}

// Dispatcher decides, per call, whether generation runs directly against the
// provider's API or is proxied through the trusted backend relay.
type Dispatcher struct {
	trusted bool
	relay   *RelayClient
}

// NewDispatcher builds a dispatcher. Server-side processes construct it with
// trusted=true and may leave relay nil; untrusted callers pass trusted=false
// together with a relay client.
func NewDispatcher(trusted bool, relay *RelayClient) *Dispatcher {
	return &Dispatcher{trusted: trusted, relay: relay}
}

// Registry holds all known providers in registration order and wraps each
// with the dispatch policy. Providers are immutable after construction.
type Registry struct {
	providers []Provider
	byID      map[string]Provider
}

// NewRegistry registers the given providers, wrapping each with the
// dispatcher's policy.
func NewRegistry(d *Dispatcher, providers ...Provider) *Registry {
	r := &Registry{byID: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		wrapped := &dispatched{raw: p, dispatcher: d}
		r.providers = append(r.providers, wrapped)
		r.byID[p.Descriptor().ID] = wrapped
	}
	return r
}

// Resolve returns the provider registered under id.
func (r *Registry) Resolve(id string) (Provider, error) {
	p, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("resolve provider %q: %w", id, domain.ErrProviderNotFound)
	}
	return p, nil
}

// Default returns the first registered provider.
func (r *Registry) Default() Provider {
	if len(r.providers) == 0 {
		return nil
	}
	return r.providers[0]
}

// List returns all providers in registration order.
func (r *Registry) List() []Provider {
	out := make([]Provider, len(r.providers))
	copy(out, r.providers)
	return out
}

// dispatched wraps a raw provider with the direct-vs-relay policy. Providers
// holding credentials that must not reach an untrusted caller are routed
// through the backend; the rest are called directly.
type dispatched struct {
	raw        Provider
	dispatcher *Dispatcher
}

func (p *dispatched) Descriptor() Descriptor { return p.raw.Descriptor() }

func (p *dispatched) SettingsSchema() Schema { return p.raw.SettingsSchema() }

func (p *dispatched) Generate(ctx context.Context, req GenerateRequest, settings Settings) (*GenerateResponse, error) {
	d := p.dispatcher
	if d == nil || d.trusted || p.raw.Descriptor().SupportsDirectCall {
		return p.raw.Generate(ctx, req, settings)
	}
	if d.relay == nil {
		return nil, &DispatchError{Provider: p.raw.Descriptor().ID, Message: "no relay configured for untrusted caller"}
	}
	return d.relay.Generate(ctx, p.raw.Descriptor().ID, req, settings)
}
