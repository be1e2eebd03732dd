package channel

import (
	"context"

	"github.com/muaviaUsmani/courier/internal/message"
)

// InternalInvoker is the in-process routine an internal delivery calls.
// It receives the destination service name and the message data.
type InternalInvoker func(ctx context.Context, service string, msg *message.Message) error

// InternalHandler delivers messages to an in-process service routine.
// With no invoker configured every delivery succeeds, which keeps the
// channel deterministic for tests and smoke runs.
type InternalHandler struct {
	invoke InternalInvoker
}

// NewInternalHandler creates an internal handler with an optional invoker
func NewInternalHandler(invoke InternalInvoker) *InternalHandler {
	return &InternalHandler{invoke: invoke}
}

// Deliver invokes the configured routine, or succeeds when none is set
func (h *InternalHandler) Deliver(ctx context.Context, msg *message.Message) error {
	if h.invoke == nil {
		return nil
	}
	return h.invoke(ctx, msg.Destination, msg)
}

var _ Handler = (*InternalHandler)(nil)
