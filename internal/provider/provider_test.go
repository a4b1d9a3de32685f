package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(baseURL string) Config {
	return Config{APIKey: "test-key", Model: "test-model", BaseURL: baseURL}
}

func TestForID(t *testing.T) {
	for _, id := range []ID{OpenAI, Anthropic, Gemini} {
		a, err := ForID(id, nil)
		require.NoError(t, err)
		assert.Equal(t, id, a.ID())
	}

	_, err := ForID("mystery", nil)
	assert.Error(t, err)
}

func TestAdapterInputValidation(t *testing.T) {
	a, err := ForID(OpenAI, nil)
	require.NoError(t, err)

	tests := []struct {
		name  string
		query string
		cfg   Config
	}{
		{name: "empty query", query: "", cfg: Config{APIKey: "k", Model: "m"}},
		{name: "missing key", query: "hello", cfg: Config{Model: "m"}},
		{name: "missing model", query: "hello", cfg: Config{APIKey: "k"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.FetchAnswer(context.Background(), tt.query, tt.cfg)
			pe, ok := AsError(err)
			require.True(t, ok, "expected a provider error, got %v", err)
			assert.Equal(t, KindConfig, pe.Kind)
		})
	}
}

func TestOpenAIFetchAnswer(t *testing.T) {
	var gotAuth string
	var gotBody openAIChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "the answer"}},
			},
		})
	}))
	defer srv.Close()

	a, _ := ForID(OpenAI, srv.Client())
	answer, err := a.FetchAnswer(context.Background(), "what is go?", testConfig(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, "the answer", answer)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "test-model", gotBody.Model)
	require.Len(t, gotBody.Messages, 1)
	assert.Equal(t, "what is go?", gotBody.Messages[0].Content)
}

func TestOpenAIErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind Kind
	}{
		{
			name:     "invalid key",
			status:   http.StatusUnauthorized,
			body:     `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`,
			wantKind: KindAuth,
		},
		{
			name:     "unknown model",
			status:   http.StatusNotFound,
			body:     `{"error":{"message":"The model does not exist","code":"model_not_found"}}`,
			wantKind: KindModel,
		},
		{
			name:     "server error",
			status:   http.StatusInternalServerError,
			body:     `{"error":{"message":"overloaded"}}`,
			wantKind: KindHTTP,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			a, _ := ForID(OpenAI, srv.Client())
			_, err := a.FetchAnswer(context.Background(), "q", testConfig(srv.URL))
			pe, ok := AsError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantKind, pe.Kind)
			assert.Equal(t, tt.status, pe.Status)
		})
	}
}

func TestOpenAIFormatError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"unexpected": true}`))
	}))
	defer srv.Close()

	a, _ := ForID(OpenAI, srv.Client())
	_, err := a.FetchAnswer(context.Background(), "q", testConfig(srv.URL))
	pe, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindFormat, pe.Kind)
}

func TestAnthropicFetchAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var body anthropicRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.NotZero(t, body.MaxTokens)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": "claude says hi"},
			},
		})
	}))
	defer srv.Close()

	a, _ := ForID(Anthropic, srv.Client())
	answer, err := a.FetchAnswer(context.Background(), "hi", testConfig(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, "claude says hi", answer)
}

func TestAnthropicAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer srv.Close()

	a, _ := ForID(Anthropic, srv.Client())
	_, err := a.FetchAnswer(context.Background(), "hi", testConfig(srv.URL))
	pe, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindAuth, pe.Kind)
	assert.Contains(t, pe.Error(), "API key")
}

func TestGeminiFetchAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/test-model:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Empty(t, r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": "gemini answer"}}}},
			},
		})
	}))
	defer srv.Close()

	a, _ := ForID(Gemini, srv.Client())
	answer, err := a.FetchAnswer(context.Background(), "hi", testConfig(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, "gemini answer", answer)
}

func TestGeminiBadKeyIsAuthNotHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"status":"INVALID_ARGUMENT","message":"API key not valid. Please pass a valid API key."}}`))
	}))
	defer srv.Close()

	a, _ := ForID(Gemini, srv.Client())
	_, err := a.FetchAnswer(context.Background(), "hi", testConfig(srv.URL))
	pe, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindAuth, pe.Kind)
}

func TestNetworkErrorKind(t *testing.T) {
	// Port is closed: the server is started then stopped immediately.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	a, _ := ForID(OpenAI, &http.Client{})
	_, err := a.FetchAnswer(context.Background(), "hi", testConfig(url))
	pe, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindNetwork, pe.Kind)
}

func TestErrorStringIncludesHint(t *testing.T) {
	e := &Error{Provider: OpenAI, Kind: KindAuth, Status: 401, Message: "bad key", Hint: hintFor(KindAuth)}
	s := e.Error()
	assert.Contains(t, s, "openai")
	assert.Contains(t, s, "bad key")
	assert.Contains(t, s, "http 401")
	assert.Contains(t, s, "API key")
}
