package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/snipq/snipq/internal/log"
)

// ID identifies a supported provider. The set is closed: adding a provider
// means adding an Adapter implementation and registering it in ForID, so a new
// backend cannot bypass the dispatch layer's caching and retry.
type ID string

const (
	OpenAI    ID = "openai"
	Anthropic ID = "anthropic"
	Gemini    ID = "gemini"
)

// Valid reports whether id names a supported provider.
func (id ID) Valid() bool {
	switch id {
	case OpenAI, Anthropic, Gemini:
		return true
	}
	return false
}

// Config is the per-call provider configuration. BaseURL is optional and
// overrides the adapter's default endpoint (used by tests and proxies).
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Adapter translates a normalized query into one provider-specific HTTP call
// and extracts a normalized answer string or a normalized *Error.
//
// Implementations perform exactly one outbound request per call and hold no
// mutable state. Retries and caching belong to the caller.
type Adapter interface {
	ID() ID
	FetchAnswer(ctx context.Context, query string, cfg Config) (string, error)
}

// ForID returns the adapter for id. The http.Client is shared across calls;
// pass nil to use a client with a sane default timeout.
func ForID(id ID, client *http.Client) (Adapter, error) {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	switch id {
	case OpenAI:
		return &openAIAdapter{client: client}, nil
	case Anthropic:
		return &anthropicAdapter{client: client}, nil
	case Gemini:
		return &geminiAdapter{client: client}, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", id)
	}
}

// checkInputs enforces the shared adapter input constraints.
func checkInputs(id ID, query string, cfg Config) error {
	switch {
	case query == "":
		return &Error{Provider: id, Kind: KindConfig, Message: "query text is empty"}
	case cfg.APIKey == "":
		return &Error{Provider: id, Kind: KindConfig, Message: "API key is not set", Hint: hintFor(KindAuth)}
	case cfg.Model == "":
		return &Error{Provider: id, Kind: KindConfig, Message: "model is not selected", Hint: hintFor(KindModel)}
	}
	return nil
}

// postJSON issues one POST with a JSON body and returns the raw response body
// and status. Transport failures come back as KindNetwork.
func postJSON(ctx context.Context, client *http.Client, id ID, url string, headers map[string]string, payload any) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		log.WithProvider(string(id)).Debug("request failed", "url", url, "error", err)
		return 0, nil, &Error{
			Provider: id,
			Kind:     KindNetwork,
			Message:  fmt.Sprintf("request failed: %v", err),
			Hint:     hintFor(KindNetwork),
			Cause:    err,
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, &Error{
			Provider: id,
			Kind:     KindNetwork,
			Message:  fmt.Sprintf("read response: %v", err),
			Hint:     hintFor(KindNetwork),
			Cause:    err,
		}
	}
	return resp.StatusCode, raw, nil
}

// formatErr builds the KindFormat error for an answer that could not be
// extracted from an otherwise successful response.
func formatErr(id ID, detail string) *Error {
	return &Error{
		Provider: id,
		Kind:     KindFormat,
		Message:  detail,
		Hint:     hintFor(KindFormat),
	}
}
