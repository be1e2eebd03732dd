// Package channel defines the delivery handler contract and the registry that
// resolves a channel kind to its handler. Handlers are the only place that
// performs outbound I/O.
package channel

import (
	"context"
	"errors"
	"fmt"

	"github.com/muaviaUsmani/courier/internal/message"
)

// ErrUnknownChannel is returned when no handler is registered for a channel
// kind. The processor treats it as terminal: no retries, straight to the dead
// letter queue.
var ErrUnknownChannel = errors.New("unknown delivery channel")

// Handler delivers a message to its destination. An error return means the
// attempt failed; the handler should wrap transport errors with a short
// human-readable description.
type Handler interface {
	Deliver(ctx context.Context, msg *message.Message) error
}

// HandlerFunc adapts a function to the Handler interface
type HandlerFunc func(ctx context.Context, msg *message.Message) error

// Deliver implements Handler
func (f HandlerFunc) Deliver(ctx context.Context, msg *message.Message) error {
	return f(ctx, msg)
}

// Registry maps channel kinds to delivery handlers. The channel set is
// closed; registration happens once at startup.
type Registry struct {
	handlers map[message.Channel]Handler
}

// NewRegistry creates an empty handler registry
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[message.Channel]Handler),
	}
}

// Register adds a handler for a channel kind, replacing any previous one
func (r *Registry) Register(kind message.Channel, handler Handler) {
	r.handlers[kind] = handler
}

// Resolve returns the handler for a channel kind
func (r *Registry) Resolve(kind message.Channel) (Handler, error) {
	handler, ok := r.handlers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, kind)
	}
	return handler, nil
}

// Deliver resolves the message's channel and invokes its handler
func (r *Registry) Deliver(ctx context.Context, msg *message.Message) error {
	handler, err := r.Resolve(msg.Channel)
	if err != nil {
		return err
	}
	return handler.Deliver(ctx, msg)
}

// Count returns the number of registered handlers
func (r *Registry) Count() int {
	return len(r.handlers)
}
