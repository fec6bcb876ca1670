package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const completionBody = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"created": 1700000000,
	"model": "gpt-4o-mini",
	"choices": [{"index": 0, "message": {"role": "assistant", "content": "[]"}, "finish_reason": "stop"}]
}`

func newTestOpenAI(t *testing.T, handler http.HandlerFunc) *OpenAI {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAI(OpenAIConfig{
		APIKey:      "sk-test",
		BaseURL:     srv.URL + "/v1",
		TextModel:   "gpt-4o-mini",
		VisionModel: "gpt-4o",
		Temperature: 0.3,
		MaxTokens:   2000,
	})
}

func TestOpenAI_TextRequest(t *testing.T) {
	var got map[string]any
	client := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody))
	})

	reply, err := client.Complete(context.Background(), Request{System: "sys", User: "rows"})
	require.NoError(t, err)
	assert.Equal(t, "[]", reply)

	assert.Equal(t, "gpt-4o-mini", got["model"])
	assert.InDelta(t, 0.3, got["temperature"], 0.0001)
	assert.Equal(t, float64(2000), got["max_tokens"])
	messages := got["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "rows", messages[1].(map[string]any)["content"])
}

func TestOpenAI_VisionRequest(t *testing.T) {
	var got map[string]any
	client := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody))
	})

	_, err := client.Complete(context.Background(), Request{User: "read this", ImageURL: "data:image/png;base64,AAAA"})
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", got["model"])
	messages := got["messages"].([]any)
	require.Len(t, messages, 1)
	parts := messages[0].(map[string]any)["content"].([]any)
	require.Len(t, parts, 2)
	assert.Equal(t, "text", parts[0].(map[string]any)["type"])
	image := parts[1].(map[string]any)["image_url"].(map[string]any)
	assert.Equal(t, "data:image/png;base64,AAAA", image["url"])
}

func TestOpenAI_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   Kind
	}{
		{"auth", http.StatusUnauthorized, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`, KindProviderAuth},
		{"rate limit", http.StatusTooManyRequests, `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`, KindProviderRateLimited},
		{"model", http.StatusNotFound, `{"error":{"message":"The model gpt-9 does not exist","type":"invalid_request_error","code":"model_not_found"}}`, KindProviderModelUnavailable},
		{"server", http.StatusServiceUnavailable, `{"error":{"message":"The server is overloaded","type":"server_error"}}`, KindProviderServer},
		{"bad request", http.StatusBadRequest, `{"error":{"message":"Invalid value for max_tokens","type":"invalid_request_error"}}`, KindProviderRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.Complete(context.Background(), Request{User: "rows"})
			var e *Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.kind, e.Kind)
			assert.Equal(t, tt.status, e.Status)
		})
	}
}

func TestOpenAI_NoChoices(t *testing.T) {
	client := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
	})
	_, err := client.Complete(context.Background(), Request{User: "rows"})
	assert.True(t, IsKind(err, KindMalformedModelOutput))
}

func TestOpenAI_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewOpenAI(OpenAIConfig{APIKey: "sk-test", BaseURL: url, TextModel: "gpt-4o-mini"})
	_, err := client.Complete(context.Background(), Request{User: "rows"})

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindProviderRequest, e.Kind)
	assert.Equal(t, http.StatusBadGateway, e.Status)
}

func TestProviderError_NotFoundWithoutModel(t *testing.T) {
	e := ProviderError(http.StatusNotFound, "no such route", nil)
	assert.Equal(t, KindProviderRequest, e.Kind)
	assert.Equal(t, http.StatusNotFound, e.Status)
}
