// Package message defines the payload submitted by producers and its
// validation rules. A message names a delivery channel and a channel-specific
// destination; everything else is opaque to the delivery engine.
package message

import "fmt"

// Channel identifies the delivery mechanism for a message
type Channel string

const (
	// ChannelHTTP delivers via an HTTP webhook POST
	ChannelHTTP Channel = "http"
	// ChannelEmail delivers via SMTP
	ChannelEmail Channel = "email"
	// ChannelInternal delivers via an in-process service call
	ChannelInternal Channel = "internal"
)

// KnownChannels lists the closed set of supported channels
var KnownChannels = []Channel{ChannelHTTP, ChannelEmail, ChannelInternal}

// Valid reports whether c is a known channel kind
func (c Channel) Valid() bool {
	switch c {
	case ChannelHTTP, ChannelEmail, ChannelInternal:
		return true
	}
	return false
}

// Message is the unit a producer submits for delivery.
// ID is producer-supplied and used for correlation; the engine does not
// require it to be unique.
type Message struct {
	// ID is the external correlation identifier
	ID string `json:"id"`
	// Channel selects the delivery mechanism
	Channel Channel `json:"channel"`
	// Destination is the channel-specific address (URL, email address, service name)
	Destination string `json:"destination"`
	// Data carries the channel-specific content
	Data map[string]interface{} `json:"data"`
	// Metadata carries optional producer annotations, forwarded verbatim
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ValidationError describes why a submission was rejected
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid message: %s %s", e.Field, e.Reason)
}

// Validate checks the invariants required before a message can be enqueued:
// non-empty id and destination, and a known channel kind. Unknown channels
// are rejected here, synchronously, so they never reach the queue.
func (m *Message) Validate() error {
	if m.ID == "" {
		return &ValidationError{Field: "id", Reason: "must not be empty"}
	}
	if m.Channel == "" {
		return &ValidationError{Field: "channel", Reason: "must not be empty"}
	}
	if !m.Channel.Valid() {
		return &ValidationError{Field: "channel", Reason: fmt.Sprintf("unknown kind %q", m.Channel)}
	}
	if m.Destination == "" {
		return &ValidationError{Field: "destination", Reason: "must not be empty"}
	}
	return nil
}
