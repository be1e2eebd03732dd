// Package client provides the producer-facing API for submitting messages
// and inspecting their delivery state.
package client

import (
	"context"
	"fmt"

	"github.com/muaviaUsmani/courier/internal/job"
	"github.com/muaviaUsmani/courier/internal/message"
	"github.com/muaviaUsmani/courier/internal/service"
	"github.com/muaviaUsmani/courier/internal/store"
)

// Client submits messages to the delivery engine
type Client struct {
	store   *store.RedisStore
	service *service.QueueService
}

// NewClient connects a client to the backing store
func NewClient(redisURL string) (*Client, error) {
	s, err := store.NewRedisStore(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to store: %w", err)
	}

	return &Client{
		store:   s,
		service: service.NewQueueService(s),
	}, nil
}

// Submit validates and enqueues a message, returning the assigned job id
func (c *Client) Submit(ctx context.Context, msg message.Message) (string, error) {
	rec, err := c.service.Submit(ctx, msg)
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

// SubmitWebhook submits an HTTP webhook delivery
func (c *Client) SubmitWebhook(ctx context.Context, id, url string, data, metadata map[string]interface{}) (string, error) {
	return c.Submit(ctx, message.Message{
		ID:          id,
		Channel:     message.ChannelHTTP,
		Destination: url,
		Data:        data,
		Metadata:    metadata,
	})
}

// SubmitEmail submits an email delivery. Recognized data keys: from,
// fromName, subject, text, html.
func (c *Client) SubmitEmail(ctx context.Context, id, to string, data map[string]interface{}) (string, error) {
	return c.Submit(ctx, message.Message{
		ID:          id,
		Channel:     message.ChannelEmail,
		Destination: to,
		Data:        data,
	})
}

// SubmitInternal submits an in-process service delivery
func (c *Client) SubmitInternal(ctx context.Context, id, serviceName string, data map[string]interface{}) (string, error) {
	return c.Submit(ctx, message.Message{
		ID:          id,
		Channel:     message.ChannelInternal,
		Destination: serviceName,
		Data:        data,
	})
}

// Get retrieves a job by id from either queue
func (c *Client) Get(ctx context.Context, jobID string) (*job.Record, error) {
	return c.service.Get(ctx, jobID)
}

// Stats returns the current depths of both queues
func (c *Client) Stats(ctx context.Context) (*service.Stats, error) {
	return c.service.Stats(ctx)
}

// Requeue creates a fresh main-queue job from a dead-lettered or failed one
func (c *Client) Requeue(ctx context.Context, jobID string) (string, error) {
	rec, err := c.service.Requeue(ctx, jobID)
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

// Close closes the store connection
func (c *Client) Close() error {
	return c.store.Close()
}
