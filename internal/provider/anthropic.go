package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const (
	anthropicDefaultBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"
	anthropicMaxTokens      = 1024
)

// anthropicAdapter talks to the Anthropic messages endpoint. Authentication
// uses the x-api-key header plus a pinned anthropic-version.
type anthropicAdapter struct {
	client *http.Client
}

func (a *anthropicAdapter) ID() ID { return Anthropic }

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type anthropicErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *anthropicAdapter) FetchAnswer(ctx context.Context, query string, cfg Config) (string, error) {
	if err := checkInputs(Anthropic, query, cfg); err != nil {
		return "", err
	}

	base := cfg.BaseURL
	if base == "" {
		base = anthropicDefaultBaseURL
	}
	url := strings.TrimRight(base, "/") + "/v1/messages"

	payload := anthropicRequest{
		Model:     cfg.Model,
		MaxTokens: anthropicMaxTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: query}},
	}
	headers := map[string]string{
		"x-api-key":         cfg.APIKey,
		"anthropic-version": anthropicVersion,
	}

	status, raw, err := postJSON(ctx, a.client, Anthropic, url, headers, payload)
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", a.classifyError(status, raw)
	}

	var out anthropicResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", formatErr(Anthropic, fmt.Sprintf("decode response: %v", err))
	}
	for _, block := range out.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", formatErr(Anthropic, "response contained no text content")
}

// classifyError maps an Anthropic error payload onto the shared taxonomy.
func (a *anthropicAdapter) classifyError(status int, raw []byte) *Error {
	var body anthropicErrorResponse
	_ = json.Unmarshal(raw, &body)

	msg := body.Error.Message
	if msg == "" {
		msg = fmt.Sprintf("request rejected with status %d", status)
	}

	kind := KindHTTP
	switch {
	case body.Error.Type == "authentication_error" || status == http.StatusUnauthorized:
		kind = KindAuth
	case body.Error.Type == "not_found_error" && strings.Contains(strings.ToLower(msg), "model"):
		kind = KindModel
	}

	return &Error{
		Provider: Anthropic,
		Kind:     kind,
		Status:   status,
		Message:  msg,
		Hint:     hintFor(kind),
	}
}
