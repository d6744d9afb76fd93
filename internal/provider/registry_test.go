package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yiyebaofu0518/typix/internal/domain"
)

// scriptedProvider is a minimal in-memory provider for registry tests.
type scriptedProvider struct {
	descriptor Descriptor
	calls      atomic.Int64
	response   *GenerateResponse
	err        error
}

func (p *scriptedProvider) Descriptor() Descriptor { return p.descriptor }

func (p *scriptedProvider) SettingsSchema() Schema {
	return Schema{{Key: "apiKey", Kind: SettingKindSecret, Required: true}}
}

func (p *scriptedProvider) Generate(ctx context.Context, req GenerateRequest, settings Settings) (*GenerateResponse, error) {
	p.calls.Add(1)
	if p.err != nil {
		return nil, p.err
	}
	return p.response, nil
}

func TestRegistryResolve(t *testing.T) {
	first := &scriptedProvider{descriptor: Descriptor{ID: "cloudflare", Name: "Cloudflare"}}
	second := &scriptedProvider{descriptor: Descriptor{ID: "openai", Name: "OpenAI"}}
	registry := NewRegistry(NewDispatcher(true, nil), first, second)

	p, err := registry.Resolve("openai")
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Descriptor().ID)

	_, err = registry.Resolve("midjourney")
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)
}

func TestRegistryDefaultIsFirstRegistered(t *testing.T) {
	first := &scriptedProvider{descriptor: Descriptor{ID: "cloudflare"}}
	second := &scriptedProvider{descriptor: Descriptor{ID: "openai"}}
	registry := NewRegistry(NewDispatcher(true, nil), first, second)

	require.NotNil(t, registry.Default())
	assert.Equal(t, "cloudflare", registry.Default().Descriptor().ID)

	empty := NewRegistry(NewDispatcher(true, nil))
	assert.Nil(t, empty.Default())
}

func TestRegistryListPreservesOrder(t *testing.T) {
	first := &scriptedProvider{descriptor: Descriptor{ID: "cloudflare"}}
	second := &scriptedProvider{descriptor: Descriptor{ID: "openai"}}
	registry := NewRegistry(NewDispatcher(false, nil), first, second)

	list := registry.List()
	require.Len(t, list, 2)
	assert.Equal(t, "cloudflare", list[0].Descriptor().ID)
	assert.Equal(t, "openai", list[1].Descriptor().ID)
}

func TestDispatchTrustedCallsDirectly(t *testing.T) {
	raw := &scriptedProvider{
		descriptor: Descriptor{ID: "cloudflare"},
		response:   &GenerateResponse{Images: []string{"aW1n"}},
	}
	registry := NewRegistry(NewDispatcher(true, nil), raw)

	p, err := registry.Resolve("cloudflare")
	require.NoError(t, err)
	resp, err := p.Generate(context.Background(), GenerateRequest{Prompt: "a red fox"}, Settings{})
	require.NoError(t, err)
	assert.Equal(t, []string{"aW1n"}, resp.Images)
	assert.EqualValues(t, 1, raw.calls.Load())
}

func TestDispatchUntrustedDirectCapableCallsDirectly(t *testing.T) {
	raw := &scriptedProvider{
		descriptor: Descriptor{ID: "openai", SupportsDirectCall: true},
		response:   &GenerateResponse{Images: []string{"aW1n"}},
	}
	registry := NewRegistry(NewDispatcher(false, nil), raw)

	p, err := registry.Resolve("openai")
	require.NoError(t, err)
	_, err = p.Generate(context.Background(), GenerateRequest{Prompt: "a red fox"}, Settings{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, raw.calls.Load())
}

func TestDispatchUntrustedRoutesThroughRelay(t *testing.T) {
	var relayed atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		relayed.Add(1)
		assert.Equal(t, "/v1/ai/no-auth/cloudflare/generate", r.URL.Path)

		var body relayRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a red fox", body.Request.Prompt)
		assert.Equal(t, "acct-1", body.Settings["accountId"])

		json.NewEncoder(w).Encode(relayResponse{Code: "ok", Data: &GenerateResponse{Images: []string{"cmVsYXk="}}})
	}))
	defer server.Close()

	raw := &scriptedProvider{descriptor: Descriptor{ID: "cloudflare"}}
	dispatcher := NewDispatcher(false, NewRelayClient(server.URL, server.Client()))
	registry := NewRegistry(dispatcher, raw)

	p, err := registry.Resolve("cloudflare")
	require.NoError(t, err)
	resp, err := p.Generate(context.Background(), GenerateRequest{ProviderID: "cloudflare", Prompt: "a red fox"}, Settings{"accountId": "acct-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"cmVsYXk="}, resp.Images)
	assert.EqualValues(t, 1, relayed.Load())
	// The raw provider's credentials-bearing path is never hit.
	assert.EqualValues(t, 0, raw.calls.Load())
}

func TestDispatchUntrustedWithoutRelayFails(t *testing.T) {
	raw := &scriptedProvider{descriptor: Descriptor{ID: "cloudflare"}}
	registry := NewRegistry(NewDispatcher(false, nil), raw)

	p, err := registry.Resolve("cloudflare")
	require.NoError(t, err)
	_, err = p.Generate(context.Background(), GenerateRequest{Prompt: "a red fox"}, nil)

	var dispatchErr *DispatchError
	require.ErrorAs(t, err, &dispatchErr)
	assert.Equal(t, "cloudflare", dispatchErr.Provider)
	assert.EqualValues(t, 0, raw.calls.Load())
}

func TestRelayErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(relayResponse{Code: "error", Message: "account blocked"})
	}))
	defer server.Close()

	client := NewRelayClient(server.URL, server.Client())
	_, err := client.Generate(context.Background(), "cloudflare", GenerateRequest{Prompt: "x"}, nil)

	var dispatchErr *DispatchError
	require.ErrorAs(t, err, &dispatchErr)
	assert.Equal(t, "account blocked", dispatchErr.Message)
}

func TestRelayBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewRelayClient(server.URL, server.Client())
	_, err := client.Generate(context.Background(), "cloudflare", GenerateRequest{Prompt: "x"}, nil)

	var dispatchErr *DispatchError
	require.ErrorAs(t, err, &dispatchErr)
	assert.Contains(t, dispatchErr.Message, "502")
}

func TestRelayTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse all connections

	client := NewRelayClient(server.URL, nil)
	_, err := client.Generate(context.Background(), "cloudflare", GenerateRequest{Prompt: "x"}, nil)

	var dispatchErr *DispatchError
	assert.True(t, errors.As(err, &dispatchErr))
}
