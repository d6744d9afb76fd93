package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const cloudflareAPIBase = "https://api.cloudflare.com/client/v4"

// CloudflareSettings is the typed view of the cloudflare settings schema.
type CloudflareSettings struct {
	Builtin   bool
	AccountID string
	APIKey    string
}

// BuiltinRunner executes a model on the platform's built-in AI binding.
// Deployments without such a binding leave it nil and use the REST API.
type BuiltinRunner interface {
	Run(ctx context.Context, modelID, prompt string) (string, error)
}

// Cloudflare generates images through Cloudflare Workers AI. Its settings
// schema depends on deployment mode: with a built-in binding available the
// account credentials become optional.
type Cloudflare struct {
	builtin BuiltinRunner
	baseURL string
	client  *http.Client
}

// CloudflareOptions configures the cloudflare provider.
type CloudflareOptions struct {
	Builtin    BuiltinRunner
	BaseURL    string
	HTTPClient *http.Client
}

// NewCloudflare builds the cloudflare provider.
func NewCloudflare(opts CloudflareOptions) *Cloudflare {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = cloudflareAPIBase
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	return &Cloudflare{builtin: opts.Builtin, baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (c *Cloudflare) Descriptor() Descriptor {
	return Descriptor{
		ID:               "cloudflare",
		Name:             "Cloudflare AI",
		EnabledByDefault: true,
		Models: []Model{
			{ID: "@cf/black-forest-labs/flux-1-schnell", Name: "FLUX.1-schnell", EnabledByDefault: true},
			{ID: "@cf/bytedance/stable-diffusion-xl-lightning", Name: "Stable Diffusion XL Lightning", EnabledByDefault: true},
			{ID: "@cf/lykon/dreamshaper-8-lcm", Name: "DreamShaper 8 LCM", EnabledByDefault: true},
			{ID: "@cf/runwayml/stable-diffusion-v1-5-img2img", Name: "Stable Diffusion v1.5 Img2Img", SupportsImageEdit: true, EnabledByDefault: true},
			{ID: "@cf/runwayml/stable-diffusion-v1-5-inpainting", Name: "Stable Diffusion v1.5 Inpainting", EnabledByDefault: true},
			{ID: "@cf/stabilityai/stable-diffusion-xl-base-1.0", Name: "Stable Diffusion XL Base 1.0", EnabledByDefault: true},
		},
	}
}

// SettingsSchema switches between the built-in and external schema depending
// on whether a built-in AI binding is available.
func (c *Cloudflare) SettingsSchema() Schema {
	if c.builtin != nil {
		return Schema{
			{Key: "builtin", Kind: SettingKindBoolean, Required: true, Default: true},
			{Key: "accountId", Kind: SettingKindSecret},
			{Key: "apiKey", Kind: SettingKindSecret},
		}
	}
	return Schema{
		{Key: "accountId", Kind: SettingKindSecret, Required: true},
		{Key: "apiKey", Kind: SettingKindSecret, Required: true},
	}
}

func (c *Cloudflare) parseSettings(settings Settings) (CloudflareSettings, error) {
	parsed, err := ParseSettings(c.SettingsSchema(), settings)
	if err != nil {
		return CloudflareSettings{}, err
	}
	return CloudflareSettings{
		Builtin:   settingBool(parsed, "builtin"),
		AccountID: settingString(parsed, "accountId"),
		APIKey:    settingString(parsed, "apiKey"),
	}, nil
}

type cloudflareRunPayload struct {
	Prompt string `json:"prompt"`
}

type cloudflareRunResult struct {
	Result struct {
		Image string `json:"image"`
	} `json:"result"`
}

func (c *Cloudflare) Generate(ctx context.Context, req GenerateRequest, settings Settings) (*GenerateResponse, error) {
	cfg, err := c.parseSettings(settings)
	if err != nil {
		return nil, err
	}

	if c.builtin != nil && cfg.Builtin {
		image, err := c.builtin.Run(ctx, req.ModelID, req.Prompt)
		if err != nil {
			return nil, fmt.Errorf("cloudflare builtin run: %w", err)
		}
		return &GenerateResponse{Images: []string{image}}, nil
	}

	payload, err := json.Marshal(cloudflareRunPayload{Prompt: req.Prompt})
	if err != nil {
		return nil, fmt.Errorf("encode cloudflare request: %w", err)
	}
	url := fmt.Sprintf("%s/accounts/%s/ai/run/%s", c.baseURL, cfg.AccountID, req.ModelID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("cloudflare api call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("cloudflare api error: %s - %s", resp.Status, strings.TrimSpace(string(body)))
	}

	// Some models answer with raw PNG bytes, others with a JSON result
	// carrying a base64 image.
	if strings.Contains(resp.Header.Get("Content-Type"), "image/png") {
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read cloudflare image: %w", err)
		}
		return &GenerateResponse{Images: []string{base64.StdEncoding.EncodeToString(raw)}}, nil
	}

	var result cloudflareRunResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode cloudflare response: %w", err)
	}
	if result.Result.Image == "" {
		return nil, fmt.Errorf("cloudflare response contained no image")
	}
	return &GenerateResponse{Images: []string{result.Result.Image}}, nil
}
