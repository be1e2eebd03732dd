// Package deadletter consumes entries from the dead letter queue: it logs
// the terminal failure, notifies administrators, and completes each entry so
// it is not re-processed while staying retrievable for inspection and
// requeue.
package deadletter

import (
	"context"
	"sync"
	"time"

	"github.com/muaviaUsmani/courier/internal/backoff"
	"github.com/muaviaUsmani/courier/internal/job"
	"github.com/muaviaUsmani/courier/internal/logger"
)

// Store is the slice of the job store the processor needs
type Store interface {
	Reserve(ctx context.Context, queue, workerID string) (*job.Record, error)
	Complete(ctx context.Context, queue, jobID string) error
}

// Alerter notifies administrators about a dead-lettered message. Alert
// failures are logged but never re-fail the entry.
type Alerter interface {
	Alert(ctx context.Context, rec *job.Record) error
}

// Processor is the single-consumer loop over the dead letter queue
type Processor struct {
	store        Store
	alerter      Alerter // nil disables alerting
	pollInterval time.Duration
	stopChan     chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
	log          logger.Logger
}

// NewProcessor creates a dead letter processor. alerter may be nil.
func NewProcessor(store Store, alerter Alerter, pollInterval time.Duration) *Processor {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Processor{
		store:        store,
		alerter:      alerter,
		pollInterval: pollInterval,
		stopChan:     make(chan struct{}),
		log:          logger.Default().WithComponent(logger.ComponentDeadLetter),
	}
}

// Start launches the consumer goroutine
func (p *Processor) Start(ctx context.Context) {
	p.log.Info("Dead letter processor started", "alerts_enabled", p.alerter != nil)
	p.wg.Add(1)
	go p.run(ctx)
}

// Stop shuts the processor down and waits for the in-flight entry
func (p *Processor) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopChan)
	})
	p.wg.Wait()
	p.log.Info("Dead letter processor stopped")
}

func (p *Processor) run(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}

		rec, err := p.store.Reserve(ctx, backoff.QueueDeadLetter, "deadletter")
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.Warn("Failed to reserve dead letter entry", "error", err)
			p.sleep(p.pollInterval)
			continue
		}
		if rec == nil {
			p.sleep(p.pollInterval)
			continue
		}

		p.processEntry(ctx, rec)
	}
}

// processEntry handles one dead letter entry: log, alert, complete
func (p *Processor) processEntry(ctx context.Context, rec *job.Record) {
	p.log.Error("Message dead-lettered",
		"job_id", rec.ID,
		"message_id", rec.Message.ID,
		"channel", rec.Message.Channel,
		"destination", rec.Message.Destination,
		"attempt_count", rec.AttemptCount,
		"last_error", rec.LastError,
		"first_attempted_at", rec.FirstAttemptedAt,
		"moved_to_dead_letter_at", rec.MovedToDeadLetterAt)

	if p.alerter != nil {
		if err := p.alerter.Alert(ctx, rec); err != nil {
			p.log.Warn("Dead letter alert failed",
				"job_id", rec.ID,
				"message_id", rec.Message.ID,
				"error", err)
		}
	}

	if err := p.store.Complete(ctx, backoff.QueueDeadLetter, rec.ID); err != nil {
		p.log.Error("Failed to complete dead letter entry",
			"job_id", rec.ID,
			"error", err)
	}
}

func (p *Processor) sleep(d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-p.stopChan:
	}
}
