package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const geminiDefaultBaseURL = "https://generativelanguage.googleapis.com"

// geminiAdapter talks to the Gemini generateContent endpoint. Unlike the other
// providers, the credential travels as a query-string parameter.
type geminiAdapter struct {
	client *http.Client
}

func (a *geminiAdapter) ID() ID { return Gemini }

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *geminiAdapter) FetchAnswer(ctx context.Context, query string, cfg Config) (string, error) {
	if err := checkInputs(Gemini, query, cfg); err != nil {
		return "", err
	}

	base := cfg.BaseURL
	if base == "" {
		base = geminiDefaultBaseURL
	}
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		strings.TrimRight(base, "/"), url.PathEscape(cfg.Model), url.QueryEscape(cfg.APIKey))

	payload := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: query}}}},
	}

	status, raw, err := postJSON(ctx, a.client, Gemini, endpoint, nil, payload)
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", a.classifyError(status, raw)
	}

	var out geminiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", formatErr(Gemini, fmt.Sprintf("decode response: %v", err))
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", formatErr(Gemini, "response contained no candidates")
	}
	text := out.Candidates[0].Content.Parts[0].Text
	if text == "" {
		return "", formatErr(Gemini, "response candidate contained no text")
	}
	return text, nil
}

// classifyError maps a Gemini error payload onto the shared taxonomy.
// Gemini reports an invalid key as 400 INVALID_ARGUMENT with an API_KEY
// marker, not as 401.
func (a *geminiAdapter) classifyError(status int, raw []byte) *Error {
	var body geminiErrorResponse
	_ = json.Unmarshal(raw, &body)

	msg := body.Error.Message
	if msg == "" {
		msg = fmt.Sprintf("request rejected with status %d", status)
	}

	kind := KindHTTP
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden,
		status == http.StatusBadRequest && strings.Contains(strings.ToUpper(msg), "API KEY"),
		strings.Contains(strings.ToUpper(msg), "API_KEY"):
		kind = KindAuth
	case status == http.StatusNotFound:
		kind = KindModel
	}

	return &Error{
		Provider: Gemini,
		Kind:     kind,
		Status:   status,
		Message:  msg,
		Hint:     hintFor(kind),
	}
}
