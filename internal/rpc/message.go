// Package rpc implements request/reply commands over a message broker.
//
// A Client publishes a Request on the service queue and waits for the Reply
// carrying the same correlation id on its private reply queue. A Server
// consumes the service queue, dispatches every Request through a Router and
// publishes exactly one Reply per decoded Request.
package rpc

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/99minutos/identity-system/internal/core/domain"
)

var (
	// ErrTimeout means no reply arrived in time. The outcome of the command is
	// unknown: the service may still apply it.
	ErrTimeout = errors.New("rpc: timed out waiting for reply")
	// ErrTransport means the command could not be handed to the broker.
	ErrTransport = errors.New("rpc: transport failure")
	// ErrClientClosed is returned by calls issued after Close.
	ErrClientClosed = errors.New("rpc: client closed")
)

// Request is the wire form of one command.
type Request struct {
	ID      string            `json:"id"`
	Command domain.CommandTag `json:"command"`
	ReplyTo string            `json:"reply_to"`
	// Key groups requests that must not run concurrently on the server,
	// typically the acting user.
	Key     string          `json:"key,omitempty"`
	Payload json.RawMessage `json:"payload"`
	SentAt  time.Time       `json:"sent_at"`
}

// Reply is the wire form of a command result. Exactly one of Data and Error is set.
type Reply struct {
	ID    string                `json:"id"`
	Data  json.RawMessage       `json:"data,omitempty"`
	Error *domain.ErrorEnvelope `json:"error,omitempty"`
}
