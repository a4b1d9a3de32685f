package dispatch

import (
	"context"

	"github.com/snipq/snipq/internal/provider"
)

//go:generate mockgen -destination=mocks/mock_interfaces.go -package=mocks github.com/snipq/snipq/internal/dispatch Sink,ConfigResolver

// MessageKind distinguishes what a destination is being sent.
type MessageKind string

const (
	KindLoading MessageKind = "loading"
	KindAnswer  MessageKind = "answer"
	KindError   MessageKind = "error"
)

// Message is what a destination receives. Payload is always a finished,
// renderable string; destinations never see structured errors.
type Message struct {
	DispatchID string      `json:"dispatch_id"`
	Kind       MessageKind `json:"kind"`
	Payload    string      `json:"payload"`
}

// Sink delivers a message to a destination. A destination that no longer
// exists must come back as an error, not a panic; the coordinator applies its
// own bounded retry on top.
type Sink interface {
	Send(ctx context.Context, destination string, msg Message) error
}

// ConfigResolver yields the active provider and its call config. Incomplete
// setup surfaces as a KindConfig provider error.
type ConfigResolver interface {
	Resolve(ctx context.Context) (provider.ID, provider.Config, error)
}
