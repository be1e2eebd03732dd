package janitor

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/muaviaUsmani/courier/internal/backoff"
	"github.com/muaviaUsmani/courier/internal/job"
	"github.com/muaviaUsmani/courier/internal/message"
	"github.com/muaviaUsmani/courier/internal/store"
)

func setupJanitor(t *testing.T, staleAfter time.Duration) (*Janitor, *store.RedisStore) {
	mr := miniredis.RunT(t)

	s, err := store.NewRedisStore("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return New(s, s.Client(), 10*time.Millisecond, staleAfter), s
}

func testMessage(id string) message.Message {
	return message.Message{
		ID:          id,
		Channel:     message.ChannelHTTP,
		Destination: "https://example.com/hook",
	}
}

func TestTick_PromotesDueJobs(t *testing.T) {
	j, s := setupJanitor(t, time.Minute)
	ctx := context.Background()

	enqueued, _ := s.Enqueue(ctx, backoff.QueueMain, testMessage("msg-1"))
	if _, err := s.Reserve(ctx, backoff.QueueMain, "worker-1"); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if err := s.Fail(ctx, backoff.QueueMain, enqueued.ID, "boom", 0, 2); err != nil {
		t.Fatalf("fail failed: %v", err)
	}

	j.tick(ctx)

	rec, err := s.Get(ctx, backoff.QueueMain, enqueued.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if rec.State != job.StateWaiting {
		t.Errorf("expected waiting after tick, got %q", rec.State)
	}
}

func TestTick_ReapsStaleReservations(t *testing.T) {
	// Zero-ish threshold: every reservation counts as stale. New clamps
	// staleAfter to a minimum, so reach into the struct directly.
	j, s := setupJanitor(t, time.Minute)
	j.staleAfter = time.Nanosecond
	ctx := context.Background()

	enqueued, _ := s.Enqueue(ctx, backoff.QueueMain, testMessage("msg-1"))
	if _, err := s.Reserve(ctx, backoff.QueueMain, "worker-1"); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}

	time.Sleep(5 * time.Millisecond)
	j.tick(ctx)

	rec, err := s.Get(ctx, backoff.QueueMain, enqueued.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if rec.State != job.StateWaiting {
		t.Errorf("expected stale reservation reset, got %q", rec.State)
	}
}

func TestTick_SkipsWhenLockHeld(t *testing.T) {
	j, s := setupJanitor(t, time.Minute)
	ctx := context.Background()

	// Simulate another instance holding the maintenance lock
	if err := s.Client().Set(ctx, lockKey, "other-instance", time.Minute).Err(); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	enqueued, _ := s.Enqueue(ctx, backoff.QueueMain, testMessage("msg-1"))
	if _, err := s.Reserve(ctx, backoff.QueueMain, "worker-1"); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if err := s.Fail(ctx, backoff.QueueMain, enqueued.ID, "boom", 0, 2); err != nil {
		t.Fatalf("fail failed: %v", err)
	}

	j.tick(ctx)

	rec, _ := s.Get(ctx, backoff.QueueMain, enqueued.ID)
	if rec.State != job.StateDelayed {
		t.Errorf("expected no maintenance while lock is held, got %q", rec.State)
	}
}

func TestStartStop(t *testing.T) {
	j, s := setupJanitor(t, time.Minute)
	ctx := context.Background()

	enqueued, _ := s.Enqueue(ctx, backoff.QueueMain, testMessage("msg-1"))
	if _, err := s.Reserve(ctx, backoff.QueueMain, "worker-1"); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if err := s.Fail(ctx, backoff.QueueMain, enqueued.ID, "boom", 0, 2); err != nil {
		t.Fatalf("fail failed: %v", err)
	}

	j.Start(ctx)

	deadline := time.After(2 * time.Second)
	for {
		rec, err := s.Get(ctx, backoff.QueueMain, enqueued.ID)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if rec.State == job.StateWaiting {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for promotion")
		case <-time.After(10 * time.Millisecond):
		}
	}

	j.Stop()
	j.Stop()
}
