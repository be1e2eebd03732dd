// Package janitor runs the periodic store maintenance the delivery engine
// relies on: promoting due delayed jobs, resetting stale reservations left by
// forced shutdowns, and holding a deployment-wide lock so the work happens
// once per tick.
package janitor

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/muaviaUsmani/courier/internal/backoff"
	"github.com/muaviaUsmani/courier/internal/logger"
)

// lockKey guards maintenance across janitor instances
const lockKey = "courier:janitor:lock"

// Store is the slice of the job store the janitor needs
type Store interface {
	PromoteDue(ctx context.Context, queue string) (int, error)
	ReapStale(ctx context.Context, queue string, olderThan time.Duration) (int, error)
	TrimCompleted(ctx context.Context, queue string) error
}

// Janitor periodically promotes due jobs and reaps stale reservations
type Janitor struct {
	store      Store
	client     *redis.Client
	interval   time.Duration
	staleAfter time.Duration
	stopChan   chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
	log        logger.Logger
}

// New creates a janitor. interval is the tick period; staleAfter is the age
// past which an ACTIVE reservation is reset to WAITING.
func New(store Store, client *redis.Client, interval, staleAfter time.Duration) *Janitor {
	if interval <= 0 {
		interval = time.Second
	}
	if staleAfter <= 0 {
		staleAfter = 60 * time.Second
	}
	return &Janitor{
		store:      store,
		client:     client,
		interval:   interval,
		staleAfter: staleAfter,
		stopChan:   make(chan struct{}),
		log:        logger.Default().WithComponent(logger.ComponentJanitor),
	}
}

// Start launches the maintenance loop
func (j *Janitor) Start(ctx context.Context) {
	j.log.Info("Janitor started", "interval", j.interval, "stale_after", j.staleAfter)
	j.wg.Add(1)
	go j.run(ctx)
}

// Stop shuts the loop down and waits for the in-flight tick
func (j *Janitor) Stop() {
	j.stopOnce.Do(func() {
		close(j.stopChan)
	})
	j.wg.Wait()
	j.log.Info("Janitor stopped")
}

func (j *Janitor) run(ctx context.Context) {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.tick(ctx)
		}
	}
}

// tick runs one maintenance pass under the deployment-wide lock
func (j *Janitor) tick(ctx context.Context) {
	lock, err := AcquireLock(ctx, j.client, lockKey, j.interval*2)
	if err != nil {
		j.log.Warn("Failed to acquire janitor lock", "error", err)
		return
	}
	if lock == nil {
		// Another instance is doing the work this tick
		return
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			j.log.Warn("Failed to release janitor lock", "error", err)
		}
	}()

	for _, queue := range []string{backoff.QueueMain, backoff.QueueDeadLetter} {
		if promoted, err := j.store.PromoteDue(ctx, queue); err != nil {
			j.log.Warn("Promotion pass failed", "queue", queue, "error", err)
		} else if promoted > 0 {
			j.log.Debug("Promoted delayed jobs", "queue", queue, "count", promoted)
		}

		if reaped, err := j.store.ReapStale(ctx, queue, j.staleAfter); err != nil {
			j.log.Warn("Reap pass failed", "queue", queue, "error", err)
		} else if reaped > 0 {
			j.log.Warn("Reset stale reservations", "queue", queue, "count", reaped)
		}

		if err := j.store.TrimCompleted(ctx, queue); err != nil {
			j.log.Warn("Retention pass failed", "queue", queue, "error", err)
		}
	}
}
