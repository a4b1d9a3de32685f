package provider

import (
	"errors"
	"fmt"
)

// Kind classifies a provider failure into a stable, provider-agnostic category.
// Adapters map their provider-specific error payloads onto this taxonomy; the
// dispatch layer only ever branches on Kind, never on raw payloads.
type Kind string

const (
	// KindConfig means the request could not be attempted: missing or
	// incomplete credentials, model, or query.
	KindConfig Kind = "config"

	// KindAuth means the provider rejected the credential.
	KindAuth Kind = "auth"

	// KindModel means the requested model is unknown or decommissioned.
	KindModel Kind = "model"

	// KindFormat means the response body did not match the expected shape.
	KindFormat Kind = "format"

	// KindNetwork means the transport failed before an HTTP status was seen.
	KindNetwork Kind = "network"

	// KindHTTP means a non-2xx status not otherwise classified.
	KindHTTP Kind = "http"
)

// Error is the normalized provider failure. Hint carries provider-specific
// remediation text; it is appended to the message but never changes the Kind.
type Error struct {
	Provider ID
	Kind     Kind
	Status   int
	Message  string
	Hint     string
	Cause    error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	s := fmt.Sprintf("%s: %s", e.Provider, msg)
	if e.Provider == "" {
		s = msg
	}
	if e.Status != 0 {
		s = fmt.Sprintf("%s (http %d)", s, e.Status)
	}
	if e.Hint != "" {
		s = s + ". " + e.Hint
	}
	return s
}

func (e *Error) Unwrap() error { return e.Cause }

// AsError unwraps err into a *Error if one is present in the chain.
func AsError(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// KindOf returns the Kind of err, or KindHTTP if err is not a provider Error.
func KindOf(err error) Kind {
	if pe, ok := AsError(err); ok {
		return pe.Kind
	}
	return KindHTTP
}

// hintFor returns the remediation text attached to errors of the given kind.
func hintFor(k Kind) string {
	switch k {
	case KindAuth:
		return "Check that your API key is valid and has not been revoked"
	case KindModel:
		return "Check that the selected model exists and is still available"
	case KindNetwork:
		return "Check your network connection and the provider base URL"
	case KindFormat:
		return "The provider returned an unexpected response shape; it may have changed its API"
	default:
		return ""
	}
}
