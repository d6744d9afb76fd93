package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// OpenAISettings is the typed view of the openai settings schema.
type OpenAISettings struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAI generates images through the OpenAI images API. The API is CORS
// friendly, so the provider declares direct-call support and never needs the
// backend relay.
type OpenAI struct {
	client *http.Client
}

// NewOpenAI builds the openai provider. A nil httpClient falls back to a
// client with a generation-sized timeout.
func NewOpenAI(httpClient *http.Client) *OpenAI {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &OpenAI{client: httpClient}
}

func (o *OpenAI) Descriptor() Descriptor {
	return Descriptor{
		ID:                 "openai",
		Name:               "OpenAI",
		EnabledByDefault:   true,
		SupportsDirectCall: true,
		Models: []Model{
			{ID: "gpt-image-1", Name: "GPT Image 1", SupportsImageEdit: true, EnabledByDefault: true},
		},
	}
}

func (o *OpenAI) SettingsSchema() Schema {
	return Schema{
		{Key: "apiKey", Kind: SettingKindSecret, Required: true},
		{Key: "baseURL", Kind: SettingKindURL, Default: "https://api.openai.com/v1"},
		{Key: "model", Kind: SettingKindString, Default: "gpt-image-1"},
	}
}

func (o *OpenAI) parseSettings(settings Settings) (OpenAISettings, error) {
	parsed, err := ParseSettings(o.SettingsSchema(), settings)
	if err != nil {
		return OpenAISettings{}, err
	}
	return OpenAISettings{
		APIKey:  settingString(parsed, "apiKey"),
		BaseURL: strings.TrimRight(settingString(parsed, "baseURL"), "/"),
		Model:   settingString(parsed, "model"),
	}, nil
}

type openaiGeneratePayload struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
}

type openaiImagesResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
		URL     string `json:"url"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (o *OpenAI) Generate(ctx context.Context, req GenerateRequest, settings Settings) (*GenerateResponse, error) {
	cfg, err := o.parseSettings(settings)
	if err != nil {
		return nil, err
	}
	n := req.N
	if n <= 0 {
		n = 1
	}

	var resp *openaiImagesResponse
	if len(req.Images) == 0 {
		resp, err = o.generateImages(ctx, cfg, req.ModelID, req.Prompt, n)
	} else {
		resp, err = o.editImages(ctx, cfg, req.ModelID, req.Prompt, n, req.Images)
	}
	if err != nil {
		return nil, err
	}

	images := make([]string, 0, len(resp.Data))
	for _, item := range resp.Data {
		switch {
		case item.B64JSON != "":
			images = append(images, item.B64JSON)
		case item.URL != "":
			b64, err := o.fetchURLToBase64(ctx, item.URL)
			if err != nil {
				continue
			}
			images = append(images, b64)
		}
	}
	return &GenerateResponse{Images: images}, nil
}

func (o *OpenAI) generateImages(ctx context.Context, cfg OpenAISettings, model, prompt string, n int) (*openaiImagesResponse, error) {
	payload, err := json.Marshal(openaiGeneratePayload{Model: model, Prompt: prompt, N: n})
	if err != nil {
		return nil, fmt.Errorf("encode openai request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+"/images/generations", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	return o.doImages(httpReq)
}

func (o *OpenAI) editImages(ctx context.Context, cfg OpenAISettings, model, prompt string, n int, images []string) (*openaiImagesResponse, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	_ = form.WriteField("model", model)
	_ = form.WriteField("prompt", prompt)
	_ = form.WriteField("n", fmt.Sprintf("%d", n))
	for i, img := range images {
		raw, err := base64.StdEncoding.DecodeString(img)
		if err != nil {
			return nil, fmt.Errorf("decode reference image %d: %w", i, err)
		}
		part, err := form.CreateFormFile("image[]", fmt.Sprintf("image-%d.png", i))
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(raw); err != nil {
			return nil, err
		}
	}
	if err := form.Close(); err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+"/images/edits", &body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", form.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	return o.doImages(httpReq)
}

func (o *OpenAI) doImages(req *http.Request) (*openaiImagesResponse, error) {
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai api call: %w", err)
	}
	defer resp.Body.Close()

	var result openaiImagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode openai response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := resp.Status
		if result.Error != nil && result.Error.Message != "" {
			msg = result.Error.Message
		}
		return nil, fmt.Errorf("openai api error: %s", msg)
	}
	return &result, nil
}

func (o *OpenAI) fetchURLToBase64(ctx context.Context, url string) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch image: %s", resp.Status)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
