// Package worker contains the message processor: a pool of workers that
// reserve jobs from the main queue, invoke the channel handler, and drive
// the attempt/backoff/dead-letter state machine.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/muaviaUsmani/courier/internal/backoff"
	"github.com/muaviaUsmani/courier/internal/channel"
	courerrors "github.com/muaviaUsmani/courier/internal/errors"
	"github.com/muaviaUsmani/courier/internal/job"
	"github.com/muaviaUsmani/courier/internal/logger"
	"github.com/muaviaUsmani/courier/internal/metrics"
)

// Store is the slice of the job store the processor needs
type Store interface {
	Complete(ctx context.Context, queue, jobID string) error
	Fail(ctx context.Context, queue, jobID, errMsg string, nextDelay time.Duration, nextAttempt int) error
	MoveToDeadLetter(ctx context.Context, jobID, finalErr string) error
	MarkFailed(ctx context.Context, queue, jobID, errMsg string) error
}

// Processor executes a single delivery attempt and records the outcome
type Processor struct {
	registry *channel.Registry
	store    Store
	log      logger.Logger
}

// NewProcessor creates a processor over the given registry and store
func NewProcessor(registry *channel.Registry, store Store) *Processor {
	return &Processor{
		registry: registry,
		store:    store,
		log:      logger.Default().WithComponent(logger.ComponentWorker).WithSource(logger.LogSourceDelivery),
	}
}

// Process performs one delivery attempt for a reserved job.
//
// Success completes the job. An unknown channel is terminal: the job moves to
// the dead letter queue immediately, whatever the attempt count. A transient
// failure either reschedules the job with the next backoff delay (and the
// error propagates so the worker slot is released cleanly) or, when the
// attempt ceiling has been reached, moves the job to the dead letter queue
// without re-raising.
func (p *Processor) Process(ctx context.Context, rec *job.Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			panicErr := courerrors.FromRecovered(r)
			p.log.ErrorContext(ctx, "Delivery handler panicked",
				"job_id", rec.ID,
				"message_id", rec.Message.ID,
				"panic_value", panicErr.Value,
				"stack_trace", panicErr.Stacktrace)
			err = p.handleFailure(ctx, rec, errors.New(courerrors.FormatPanicForLog(panicErr)))
		}
	}()

	attempt := rec.AttemptCount
	p.log.InfoContext(ctx, "Processing job",
		"job_id", rec.ID,
		"message_id", rec.Message.ID,
		"channel", rec.Message.Channel,
		"attempt", fmt.Sprintf("%d/%d", attempt, backoff.MaxAttempts))

	handler, err := p.registry.Resolve(rec.Message.Channel)
	if err != nil {
		// Unknown channel is terminal on first occurrence: no retries
		p.deadLetter(ctx, rec, err.Error())
		return nil
	}

	metrics.Default().RecordAttempt(rec.Message.Channel)

	start := time.Now()
	deliverErr := handler.Deliver(ctx, &rec.Message)
	duration := time.Since(start)

	if deliverErr == nil {
		if err := p.store.Complete(ctx, backoff.QueueMain, rec.ID); err != nil {
			return fmt.Errorf("delivery succeeded but completion failed for job %s: %w", rec.ID, err)
		}
		metrics.Default().RecordCompleted(rec.Message.Channel, duration)
		p.log.InfoContext(ctx, "Delivery succeeded",
			"job_id", rec.ID,
			"message_id", rec.Message.ID,
			"attempt", attempt,
			"duration", duration)
		return nil
	}

	metrics.Default().RecordRetried(rec.Message.Channel, duration)
	return p.handleFailure(ctx, rec, deliverErr)
}

// handleFailure applies the failure branch: dead-letter at the attempt
// ceiling, otherwise reschedule with the next backoff delay and propagate.
func (p *Processor) handleFailure(ctx context.Context, rec *job.Record, deliverErr error) error {
	attempt := rec.AttemptCount

	if attempt >= backoff.MaxAttempts {
		p.log.ErrorContext(ctx, "Delivery exhausted all attempts",
			"job_id", rec.ID,
			"message_id", rec.Message.ID,
			"channel", rec.Message.Channel,
			"attempts", attempt,
			"error", deliverErr.Error())
		p.deadLetter(ctx, rec, deliverErr.Error())
		return nil
	}

	delay := backoff.Delay(attempt + 1)
	if err := p.store.Fail(ctx, backoff.QueueMain, rec.ID, deliverErr.Error(), delay, attempt+1); err != nil {
		return fmt.Errorf("failed to reschedule job %s: %w", rec.ID, err)
	}

	p.log.WarnContext(ctx, "Delivery failed, retry scheduled",
		"job_id", rec.ID,
		"message_id", rec.Message.ID,
		"attempt", attempt,
		"next_attempt", attempt+1,
		"retry_in", delay,
		"error", deliverErr.Error())

	return deliverErr
}

// deadLetter moves the job to the dead letter queue. If the move itself
// fails against the store, the job is marked FAILED in place so it stays
// visible and requeueable.
func (p *Processor) deadLetter(ctx context.Context, rec *job.Record, finalErr string) {
	if err := p.store.MoveToDeadLetter(ctx, rec.ID, finalErr); err != nil {
		p.log.ErrorContext(ctx, "Dead letter move failed, marking job failed in place",
			"job_id", rec.ID,
			"error", err)
		if markErr := p.store.MarkFailed(ctx, backoff.QueueMain, rec.ID, finalErr); markErr != nil {
			p.log.ErrorContext(ctx, "Failed to mark job failed",
				"job_id", rec.ID,
				"error", markErr)
		}
		return
	}
	metrics.Default().RecordDeadLettered(rec.Message.Channel)
}
