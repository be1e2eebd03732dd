// Package service is the queue service facade: the single entry point for
// submitting messages, inspecting queue state, and requeueing dead-lettered
// or failed jobs.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/muaviaUsmani/courier/internal/backoff"
	"github.com/muaviaUsmani/courier/internal/job"
	"github.com/muaviaUsmani/courier/internal/logger"
	"github.com/muaviaUsmani/courier/internal/message"
	"github.com/muaviaUsmani/courier/internal/store"
)

// Store is the slice of the job store the service needs
type Store interface {
	Enqueue(ctx context.Context, queue string, msg message.Message) (*job.Record, error)
	Get(ctx context.Context, queue, jobID string) (*job.Record, error)
	List(ctx context.Context, queue string, state job.State, offset, limit int) ([]*job.Record, error)
	Remove(ctx context.Context, queue, jobID string) error
	Counts(ctx context.Context, queue string) (store.Counts, error)
}

// NotRequeueableError is returned when a job exists but is not in a state
// that allows requeueing
type NotRequeueableError struct {
	JobID string
	State job.State
}

// Error implements the error interface
func (e *NotRequeueableError) Error() string {
	return fmt.Sprintf("job %s is not requeueable in state %q", e.JobID, e.State)
}

// DeadLetterCounts is the per-state depth of the dead letter queue
type DeadLetterCounts struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
}

// Stats aggregates the depths of both queues
type Stats struct {
	Main       store.Counts     `json:"main"`
	DeadLetter DeadLetterCounts `json:"dead_letter"`
}

// QueueService exposes the public operations of the delivery engine
type QueueService struct {
	store Store
	log   logger.Logger
}

// NewQueueService creates the facade over a job store
func NewQueueService(s Store) *QueueService {
	return &QueueService{
		store: s,
		log:   logger.Default().WithComponent(logger.ComponentService),
	}
}

// Submit validates a message and enqueues it on the main queue. Unknown
// channels and missing fields are rejected synchronously; no job is created.
func (s *QueueService) Submit(ctx context.Context, msg message.Message) (*job.Record, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	rec, err := s.store.Enqueue(ctx, backoff.QueueMain, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to submit message %s: %w", msg.ID, err)
	}

	s.log.Info("Message submitted",
		"job_id", rec.ID,
		"message_id", msg.ID,
		"channel", msg.Channel,
		"destination", msg.Destination)
	return rec, nil
}

// Stats returns the current depths of both queues
func (s *QueueService) Stats(ctx context.Context) (*Stats, error) {
	main, err := s.store.Counts(ctx, backoff.QueueMain)
	if err != nil {
		return nil, fmt.Errorf("failed to read main queue counts: %w", err)
	}

	dl, err := s.store.Counts(ctx, backoff.QueueDeadLetter)
	if err != nil {
		return nil, fmt.Errorf("failed to read dead letter counts: %w", err)
	}

	return &Stats{
		Main: main,
		DeadLetter: DeadLetterCounts{
			Waiting:   dl.Waiting,
			Active:    dl.Active,
			Completed: dl.Completed,
		},
	}, nil
}

// ListMain lists main-queue jobs, optionally filtered by state
func (s *QueueService) ListMain(ctx context.Context, state job.State, offset, limit int) ([]*job.Record, error) {
	if state != "" && !state.Valid() {
		return nil, fmt.Errorf("unknown state filter: %q", state)
	}
	return s.store.List(ctx, backoff.QueueMain, state, offset, limit)
}

// ListDeadLetter lists dead letter entries
func (s *QueueService) ListDeadLetter(ctx context.Context, offset, limit int) ([]*job.Record, error) {
	return s.store.List(ctx, backoff.QueueDeadLetter, "", offset, limit)
}

// Get resolves a job id, searching the main queue first and the dead letter
// queue second
func (s *QueueService) Get(ctx context.Context, jobID string) (*job.Record, error) {
	rec, err := s.store.Get(ctx, backoff.QueueMain, jobID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return s.store.Get(ctx, backoff.QueueDeadLetter, jobID)
}

// Requeue creates a fresh main-queue job from the original message of a
// dead-lettered job (or a main-queue job in FAILED state) and removes the
// original record. The new job starts over: attempt count 1, no error, fresh
// timestamps.
//
// This is enqueue-then-remove, not a transactional move: a crash in between
// leaves the original visible, and the operator simply retries.
func (s *QueueService) Requeue(ctx context.Context, jobID string) (*job.Record, error) {
	origin := backoff.QueueDeadLetter

	rec, err := s.store.Get(ctx, backoff.QueueDeadLetter, jobID)
	if errors.Is(err, store.ErrNotFound) {
		origin = backoff.QueueMain
		rec, err = s.store.Get(ctx, backoff.QueueMain, jobID)
		if err != nil {
			return nil, err
		}
		if rec.State != job.StateFailed {
			return nil, &NotRequeueableError{JobID: jobID, State: rec.State}
		}
	} else if err != nil {
		return nil, err
	}

	fresh, err := s.Submit(ctx, rec.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to requeue job %s: %w", jobID, err)
	}

	if err := s.store.Remove(ctx, origin, jobID); err != nil {
		s.log.Warn("Requeued job but failed to remove original",
			"job_id", jobID,
			"new_job_id", fresh.ID,
			"origin", origin,
			"error", err)
	}

	s.log.Info("Job requeued",
		"job_id", jobID,
		"new_job_id", fresh.ID,
		"message_id", rec.Message.ID,
		"origin", origin)
	return fresh, nil
}
