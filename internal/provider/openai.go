package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const openAIDefaultBaseURL = "https://api.openai.com"

// openAIAdapter talks to the OpenAI chat completions endpoint using a bearer
// token in the Authorization header.
type openAIAdapter struct {
	client *http.Client
}

func (a *openAIAdapter) ID() ID { return OpenAI }

type openAIChatRequest struct {
	Model    string          `json:"model"`
	Messages []openAIMessage `json:"messages"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type openAIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func (a *openAIAdapter) FetchAnswer(ctx context.Context, query string, cfg Config) (string, error) {
	if err := checkInputs(OpenAI, query, cfg); err != nil {
		return "", err
	}

	base := cfg.BaseURL
	if base == "" {
		base = openAIDefaultBaseURL
	}
	url := strings.TrimRight(base, "/") + "/v1/chat/completions"

	payload := openAIChatRequest{
		Model:    cfg.Model,
		Messages: []openAIMessage{{Role: "user", Content: query}},
	}
	headers := map[string]string{
		"Authorization": "Bearer " + cfg.APIKey,
	}

	status, raw, err := postJSON(ctx, a.client, OpenAI, url, headers, payload)
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", a.classifyError(status, raw)
	}

	var out openAIChatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", formatErr(OpenAI, fmt.Sprintf("decode response: %v", err))
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", formatErr(OpenAI, "response contained no choices")
	}
	return out.Choices[0].Message.Content, nil
}

// classifyError maps an OpenAI error payload onto the shared taxonomy.
func (a *openAIAdapter) classifyError(status int, raw []byte) *Error {
	var body openAIErrorResponse
	_ = json.Unmarshal(raw, &body)

	msg := body.Error.Message
	if msg == "" {
		msg = fmt.Sprintf("request rejected with status %d", status)
	}

	kind := KindHTTP
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindAuth
	case body.Error.Code == "model_not_found",
		status == http.StatusNotFound && strings.Contains(strings.ToLower(msg), "model"):
		kind = KindModel
	}

	return &Error{
		Provider: OpenAI,
		Kind:     kind,
		Status:   status,
		Message:  msg,
		Hint:     hintFor(kind),
	}
}
