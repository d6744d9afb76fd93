package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// relay request/response envelope shared with the backend relay endpoint.

type relayRequest struct {
	Request  GenerateRequest `json:"request"`
	Settings Settings        `json:"settings"`
}

type relayResponse struct {
	Code    string            `json:"code"`
	Data    *GenerateResponse `json:"data,omitempty"`
	Message string            `json:"message,omitempty"`
}

// RelayClient forwards generation calls for providers that must not be called
// directly from an untrusted environment.
type RelayClient struct {
	baseURL string
	client  *http.Client
}

// NewRelayClient builds a relay client targeting baseURL. A nil httpClient
// falls back to a client with a generous generation timeout.
func NewRelayClient(baseURL string, httpClient *http.Client) *RelayClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &RelayClient{baseURL: strings.TrimRight(baseURL, "/"), client: httpClient}
}

// Generate posts {request, settings} to the relay endpoint for providerID and
// unwraps the {code, data, message} envelope. Any transport failure or
// non-"ok" code surfaces as a DispatchError.
func (c *RelayClient) Generate(ctx context.Context, providerID string, req GenerateRequest, settings Settings) (*GenerateResponse, error) {
	payload, err := json.Marshal(relayRequest{Request: req, Settings: settings})
	if err != nil {
		return nil, &DispatchError{Provider: providerID, Message: fmt.Sprintf("encode relay request: %v", err)}
	}
	url := fmt.Sprintf("%s/v1/ai/no-auth/%s/generate", c.baseURL, providerID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &DispatchError{Provider: providerID, Message: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &DispatchError{Provider: providerID, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &DispatchError{Provider: providerID, Message: fmt.Sprintf("relay returned status %s", resp.Status)}
	}
	var envelope relayResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, &DispatchError{Provider: providerID, Message: fmt.Sprintf("decode relay response: %v", err)}
	}
	if envelope.Code != "ok" {
		msg := envelope.Message
		if msg == "" {
			msg = fmt.Sprintf("relay returned code %q", envelope.Code)
		}
		return nil, &DispatchError{Provider: providerID, Message: msg}
	}
	if envelope.Data == nil {
		return nil, &DispatchError{Provider: providerID, Message: "relay returned no data"}
	}
	return envelope.Data, nil
}
