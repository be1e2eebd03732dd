package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/muaviaUsmani/courier/internal/message"
)

// httpTimeout bounds a single webhook attempt. No processor-side timeout
// wraps the handler; the handler owns its own I/O deadline.
const httpTimeout = 10 * time.Second

// HTTPHandler delivers messages by POSTing JSON to the destination URL
type HTTPHandler struct {
	client *http.Client
}

// NewHTTPHandler creates a webhook handler with a timeout-configured client
func NewHTTPHandler() *HTTPHandler {
	return &HTTPHandler{
		client: &http.Client{
			Timeout: httpTimeout,
		},
	}
}

// webhookBody is the JSON payload posted to the destination
type webhookBody struct {
	ID       string                 `json:"id"`
	Data     map[string]interface{} `json:"data"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Deliver POSTs the message to its destination. Success is any status in
// [200, 300); anything else, including transport errors, fails the attempt.
func (h *HTTPHandler) Deliver(ctx context.Context, msg *message.Message) error {
	payload, err := json.Marshal(webhookBody{
		ID:       msg.ID,
		Data:     msg.Data,
		Metadata: msg.Metadata,
	})
	if err != nil {
		return fmt.Errorf("webhook payload encoding failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, msg.Destination, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("webhook request to %s invalid: %w", msg.Destination, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Message-Id", msg.ID)

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request to %s failed: %w", msg.Destination, err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused; cap it in case of a chatty endpoint
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook to %s returned status %d", msg.Destination, resp.StatusCode)
	}
	return nil
}

var _ Handler = (*HTTPHandler)(nil)
