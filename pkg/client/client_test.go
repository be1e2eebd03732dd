package client

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/muaviaUsmani/courier/internal/job"
	"github.com/muaviaUsmani/courier/internal/message"
	"github.com/muaviaUsmani/courier/internal/store"
)

func setupClient(t *testing.T) *Client {
	mr := miniredis.RunT(t)

	c, err := NewClient("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNewClient_ConnectionFailure(t *testing.T) {
	if _, err := NewClient("redis://localhost:1"); err == nil {
		t.Fatal("expected connection error")
	}
}

func TestSubmitAndGet(t *testing.T) {
	c := setupClient(t)
	ctx := context.Background()

	jobID, err := c.Submit(ctx, message.Message{
		ID:          "msg-1",
		Channel:     message.ChannelHTTP,
		Destination: "https://example.com/hook",
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if jobID == "" {
		t.Fatal("expected a job id")
	}

	rec, err := c.Get(ctx, jobID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if rec.State != job.StateWaiting {
		t.Errorf("expected waiting state, got %q", rec.State)
	}
	if rec.Message.ID != "msg-1" {
		t.Errorf("expected message carried, got %q", rec.Message.ID)
	}
}

func TestSubmit_InvalidMessage(t *testing.T) {
	c := setupClient(t)

	_, err := c.Submit(context.Background(), message.Message{ID: "msg-1", Channel: "fax", Destination: "x"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	var verr *message.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("expected *ValidationError, got %T", err)
	}
}

func TestConvenienceSubmitters(t *testing.T) {
	c := setupClient(t)
	ctx := context.Background()

	webhookID, err := c.SubmitWebhook(ctx, "msg-web", "https://example.com/hook",
		map[string]interface{}{"event": "created"}, nil)
	if err != nil {
		t.Fatalf("webhook submit failed: %v", err)
	}

	emailID, err := c.SubmitEmail(ctx, "msg-mail", "user@example.com",
		map[string]interface{}{"subject": "Hi"})
	if err != nil {
		t.Fatalf("email submit failed: %v", err)
	}

	internalID, err := c.SubmitInternal(ctx, "msg-int", "billing", nil)
	if err != nil {
		t.Fatalf("internal submit failed: %v", err)
	}

	wantChannels := map[string]message.Channel{
		webhookID:  message.ChannelHTTP,
		emailID:    message.ChannelEmail,
		internalID: message.ChannelInternal,
	}
	for jobID, want := range wantChannels {
		rec, err := c.Get(ctx, jobID)
		if err != nil {
			t.Fatalf("get %s failed: %v", jobID, err)
		}
		if rec.Message.Channel != want {
			t.Errorf("expected channel %q, got %q", want, rec.Message.Channel)
		}
	}

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Main.Waiting != 3 {
		t.Errorf("expected 3 waiting, got %d", stats.Main.Waiting)
	}
}

func TestRequeue_UnknownJob(t *testing.T) {
	c := setupClient(t)

	if _, err := c.Requeue(context.Background(), "no-such-job"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
