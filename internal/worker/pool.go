package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/muaviaUsmani/courier/internal/backoff"
	"github.com/muaviaUsmani/courier/internal/job"
	"github.com/muaviaUsmani/courier/internal/logger"
	"github.com/muaviaUsmani/courier/internal/metrics"
)

// Reserver is the slice of the job store the pool needs
type Reserver interface {
	Reserve(ctx context.Context, queue, workerID string) (*job.Record, error)
}

// Pool runs a fixed number of workers that reserve and process jobs from the
// main queue
type Pool struct {
	processor       *Processor
	store           Reserver
	concurrency     int
	pollInterval    time.Duration
	wg              sync.WaitGroup
	stopChan        chan struct{}
	stopOnce        sync.Once
	activeWorkers   atomic.Int64
	maxStoreBackoff time.Duration
	shutdownTimeout time.Duration
	log             logger.Logger
}

// NewPool creates a worker pool. pollInterval is how long a worker sleeps
// when the queue is empty.
func NewPool(processor *Processor, store Reserver, concurrency int, pollInterval time.Duration) *Pool {
	if concurrency < 1 {
		concurrency = 5
	}
	if pollInterval <= 0 {
		pollInterval = 100 * time.Millisecond
	}
	return &Pool{
		processor:       processor,
		store:           store,
		concurrency:     concurrency,
		pollInterval:    pollInterval,
		stopChan:        make(chan struct{}),
		maxStoreBackoff: 30 * time.Second,
		shutdownTimeout: 30 * time.Second,
		log:             logger.Default().WithComponent(logger.ComponentWorker),
	}
}

// Start launches the worker goroutines
func (p *Pool) Start(ctx context.Context) {
	p.log.Info("Starting worker pool", "workers", p.concurrency)
	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i+1)
	}
}

// Stop shuts the pool down gracefully: workers stop reserving and in-flight
// jobs finish, bounded by the shutdown timeout. Jobs still in flight at the
// deadline stay ACTIVE in the store; the janitor's stale-reservation reaper
// returns them to WAITING after restart.
func (p *Pool) Stop() {
	p.log.Info("Stopping worker pool")
	p.stopOnce.Do(func() {
		close(p.stopChan)
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.log.Info("Worker pool stopped gracefully")
	case <-time.After(p.shutdownTimeout):
		p.log.Warn("Worker pool shutdown timed out", "timeout", p.shutdownTimeout)
	}
}

// worker is the main loop of a single worker goroutine
func (p *Pool) worker(ctx context.Context, workerID int) {
	defer p.wg.Done()

	workerCtx := context.WithValue(ctx, logger.ContextKeyWorkerID, fmt.Sprintf("worker-%d", workerID))
	p.log.Info("Worker started", "worker_id", workerID)

	// Consecutive store failures drive exponential backoff with a ceiling
	consecutiveFailures := 0

	for {
		select {
		case <-p.stopChan:
			p.log.Info("Worker stopping", "worker_id", workerID)
			return
		case <-workerCtx.Done():
			p.log.Info("Worker stopping due to context cancellation", "worker_id", workerID)
			return
		default:
		}

		rec, err := p.store.Reserve(workerCtx, backoff.QueueMain, fmt.Sprintf("worker-%d", workerID))
		if err != nil {
			if workerCtx.Err() != nil {
				p.log.Info("Worker stopping due to context cancellation", "worker_id", workerID)
				return
			}

			consecutiveFailures++
			wait := time.Duration(1<<uint(consecutiveFailures)) * time.Second
			if wait > p.maxStoreBackoff {
				wait = p.maxStoreBackoff
			}

			if consecutiveFailures <= 3 {
				p.log.Warn("Store error, retrying with backoff",
					"worker_id", workerID,
					"error", err,
					"consecutive_failures", consecutiveFailures,
					"backoff", wait)
			} else if consecutiveFailures%10 == 0 {
				p.log.Error("Persistent store errors",
					"worker_id", workerID,
					"error", err,
					"consecutive_failures", consecutiveFailures,
					"backoff", wait)
			}

			p.sleep(wait)
			continue
		}

		if consecutiveFailures > 0 {
			p.log.Info("Store connection recovered", "worker_id", workerID, "after_failures", consecutiveFailures)
			consecutiveFailures = 0
		}

		if rec == nil {
			p.sleep(p.pollInterval)
			continue
		}

		p.processOne(workerCtx, workerID, rec)
	}
}

// processOne runs a single reserved job through the processor, tracking
// worker utilization
func (p *Pool) processOne(ctx context.Context, workerID int, rec *job.Record) {
	active := p.activeWorkers.Add(1)
	metrics.Default().RecordWorkerActivity(active, int64(p.concurrency))
	defer func() {
		metrics.Default().RecordWorkerActivity(p.activeWorkers.Add(-1), int64(p.concurrency))
	}()

	jobCtx := context.WithValue(ctx, logger.ContextKeyJobID, rec.ID)

	if err := p.processor.Process(jobCtx, rec); err != nil {
		// Already recorded on the job; the worker slot just moves on
		p.log.DebugContext(jobCtx, "Attempt finished with error", "worker_id", workerID, "error", err)
	}
}

// sleep waits for d or until the pool stops, whichever comes first
func (p *Pool) sleep(d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-p.stopChan:
	}
}
