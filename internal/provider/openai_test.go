package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIGenerateText2Image(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/images/generations", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var payload openaiGeneratePayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "gpt-image-1", payload.Model)
		assert.Equal(t, "a red fox", payload.Prompt)
		assert.Equal(t, 1, payload.N)

		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"b64_json": "Z2VuLWltZw=="}},
		})
	}))
	defer server.Close()

	oa := NewOpenAI(server.Client())
	resp, err := oa.Generate(context.Background(), GenerateRequest{ModelID: "gpt-image-1", Prompt: "a red fox"},
		Settings{"apiKey": "sk-test", "baseURL": server.URL + "/v1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Z2VuLWltZw=="}, resp.Images)
}

func TestOpenAIGenerateEditWithReferenceImages(t *testing.T) {
	ref := base64.StdEncoding.EncodeToString([]byte("reference-bytes"))
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/images/edits", r.URL.Path)
		assert.Contains(t, r.Header.Get("Content-Type"), "multipart/form-data")

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "gpt-image-1", r.FormValue("model"))
		assert.Equal(t, "make it snowy", r.FormValue("prompt"))

		files := r.MultipartForm.File["image[]"]
		require.Len(t, files, 1)
		f, err := files[0].Open()
		require.NoError(t, err)
		defer f.Close()
		raw, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, []byte("reference-bytes"), raw)

		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"b64_json": "ZWRpdGVk"}},
		})
	}))
	defer server.Close()

	oa := NewOpenAI(server.Client())
	resp, err := oa.Generate(context.Background(), GenerateRequest{
		ModelID: "gpt-image-1",
		Prompt:  "make it snowy",
		Images:  []string{ref},
	}, Settings{"apiKey": "sk-test", "baseURL": server.URL + "/v1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ZWRpdGVk"}, resp.Images)
}

func TestOpenAIGenerateURLResults(t *testing.T) {
	var mux http.ServeMux
	server := httptest.NewServer(&mux)
	defer server.Close()

	mux.HandleFunc("/img.png", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("url-bytes"))
	})
	mux.HandleFunc("/missing.png", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/v1/images/generations", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{
				{"url": server.URL + "/img.png"},
				{"url": server.URL + "/missing.png"}, // unfetchable, skipped
			},
		})
	})

	oa := NewOpenAI(server.Client())
	resp, err := oa.Generate(context.Background(), GenerateRequest{ModelID: "gpt-image-1", Prompt: "x"},
		Settings{"apiKey": "sk-test", "baseURL": server.URL + "/v1"})
	require.NoError(t, err)
	require.Len(t, resp.Images, 1)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("url-bytes")), resp.Images[0])
}

func TestOpenAIGenerateAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "invalid api key"},
		})
	}))
	defer server.Close()

	oa := NewOpenAI(server.Client())
	_, err := oa.Generate(context.Background(), GenerateRequest{ModelID: "gpt-image-1", Prompt: "x"},
		Settings{"apiKey": "sk-bad", "baseURL": server.URL})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestOpenAIGenerateRequiresAPIKey(t *testing.T) {
	oa := NewOpenAI(nil)
	_, err := oa.Generate(context.Background(), GenerateRequest{ModelID: "gpt-image-1", Prompt: "x"}, Settings{})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "apiKey", validationErr.Key)
}

func TestOpenAISettingsDefaults(t *testing.T) {
	oa := NewOpenAI(nil)
	cfg, err := oa.parseSettings(Settings{"apiKey": "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, "https://api.openai.com/v1", cfg.BaseURL)
	assert.Equal(t, "gpt-image-1", cfg.Model)
	assert.False(t, strings.HasSuffix(cfg.BaseURL, "/"))
}
