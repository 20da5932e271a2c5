package gemini

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, status int, payload map[string]any, capture *map[string]any) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "models/gemini-2.5-flash:generateContent"), r.URL.Path)

		if capture != nil {
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(body, capture))
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(payload) //nolint:errcheck
	}))
}

func TestGenerateText(t *testing.T) {
	var body map[string]any
	srv := newTestServer(t, http.StatusOK, map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{
				"role":  "model",
				"parts": []map[string]any{{"text": "4"}},
			},
			"finishReason": "STOP",
		}},
		"usageMetadata": map[string]any{
			"promptTokenCount":     42,
			"candidatesTokenCount": 1,
		},
	}, &body)
	defer srv.Close()

	client, err := NewClient(context.Background(), "test-key", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	zero := float32(0)
	resp, err := client.GenerateText(context.Background(), GenerateRequest{
		Model:       "gemini-2.5-flash",
		System:      "Rate brand safety.",
		Prompt:      "Video summaries...",
		Temperature: &zero,
	})
	require.NoError(t, err)
	assert.Equal(t, "4", resp.Text)
	assert.Equal(t, int32(42), resp.InputTokens)
	assert.Equal(t, int32(1), resp.OutputTokens)

	gen, ok := body["generationConfig"].(map[string]any)
	require.True(t, ok, "generationConfig sent")
	assert.EqualValues(t, 0, gen["temperature"])
	assert.NotNil(t, body["systemInstruction"])
}

func TestGenerateText_Error(t *testing.T) {
	srv := newTestServer(t, http.StatusBadRequest, map[string]any{
		"error": map[string]any{"code": 400, "message": "API key not valid", "status": "INVALID_ARGUMENT"},
	}, nil)
	defer srv.Close()

	client, err := NewClient(context.Background(), "bad-key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = client.GenerateText(context.Background(), GenerateRequest{Model: "gemini-2.5-flash", Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gemini: generate content")
}

func TestGenerateText_NoCandidates(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, map[string]any{"candidates": []any{}}, nil)
	defer srv.Close()

	client, err := NewClient(context.Background(), "test-key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	resp, err := client.GenerateText(context.Background(), GenerateRequest{Model: "gemini-2.5-flash", Prompt: "x"})
	require.NoError(t, err)
	assert.Empty(t, resp.Text)
}
