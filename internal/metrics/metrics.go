// Package metrics tracks delivery metrics in memory. A single process-wide
// collector is shared by the worker pool, the dead letter processor, and the
// admin API.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/muaviaUsmani/courier/internal/message"
)

var (
	globalCollector *Collector
	once            sync.Once
)

// Collector tracks system-wide delivery metrics
type Collector struct {
	totalAttempts     atomic.Int64
	totalCompleted    atomic.Int64
	totalRetried      atomic.Int64
	totalDeadLettered atomic.Int64

	mu               sync.RWMutex
	byChannel        map[message.Channel]int64
	failuresByChan   map[message.Channel]int64
	totalDuration    time.Duration
	attemptDurations int64
	startTime        time.Time
	activeWorkers    int64
	totalWorkers     int64
}

// Snapshot is a point-in-time view of the collector
type Snapshot struct {
	TotalAttempts     int64                     `json:"total_attempts"`
	TotalCompleted    int64                     `json:"total_completed"`
	TotalRetried      int64                     `json:"total_retried"`
	TotalDeadLettered int64                     `json:"total_dead_lettered"`
	ByChannel         map[message.Channel]int64 `json:"attempts_by_channel"`
	FailuresByChannel map[message.Channel]int64 `json:"failures_by_channel"`
	AvgAttemptTime    time.Duration             `json:"avg_attempt_time"`
	WorkerUtilization float64                   `json:"worker_utilization"`
	Uptime            time.Duration             `json:"uptime"`
}

// Default returns the global metrics collector instance
func Default() *Collector {
	once.Do(func() {
		globalCollector = NewCollector()
	})
	return globalCollector
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{
		byChannel:      make(map[message.Channel]int64),
		failuresByChan: make(map[message.Channel]int64),
		startTime:      time.Now(),
	}
}

// RecordAttempt counts a delivery attempt on a channel
func (c *Collector) RecordAttempt(ch message.Channel) {
	c.totalAttempts.Add(1)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.byChannel[ch]++
}

// RecordCompleted counts a successful delivery and its duration
func (c *Collector) RecordCompleted(ch message.Channel, duration time.Duration) {
	c.totalCompleted.Add(1)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalDuration += duration
	c.attemptDurations++
}

// RecordRetried counts a failed attempt that was rescheduled
func (c *Collector) RecordRetried(ch message.Channel, duration time.Duration) {
	c.totalRetried.Add(1)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.failuresByChan[ch]++
	c.totalDuration += duration
	c.attemptDurations++
}

// RecordDeadLettered counts a message moved to the dead letter queue
func (c *Collector) RecordDeadLettered(ch message.Channel) {
	c.totalDeadLettered.Add(1)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.failuresByChan[ch]++
}

// RecordWorkerActivity updates worker utilization
func (c *Collector) RecordWorkerActivity(active, total int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeWorkers = active
	c.totalWorkers = total
}

// GetSnapshot returns a snapshot of current metrics
func (c *Collector) GetSnapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	byChannel := make(map[message.Channel]int64, len(c.byChannel))
	for k, v := range c.byChannel {
		byChannel[k] = v
	}
	failures := make(map[message.Channel]int64, len(c.failuresByChan))
	for k, v := range c.failuresByChan {
		failures[k] = v
	}

	var avg time.Duration
	if c.attemptDurations > 0 {
		avg = c.totalDuration / time.Duration(c.attemptDurations)
	}

	var utilization float64
	if c.totalWorkers > 0 {
		utilization = float64(c.activeWorkers) / float64(c.totalWorkers)
	}

	return Snapshot{
		TotalAttempts:     c.totalAttempts.Load(),
		TotalCompleted:    c.totalCompleted.Load(),
		TotalRetried:      c.totalRetried.Load(),
		TotalDeadLettered: c.totalDeadLettered.Load(),
		ByChannel:         byChannel,
		FailuresByChannel: failures,
		AvgAttemptTime:    avg,
		WorkerUtilization: utilization,
		Uptime:            time.Since(c.startTime),
	}
}

// Reset clears the collector. Test use only.
func (c *Collector) Reset() {
	c.totalAttempts.Store(0)
	c.totalCompleted.Store(0)
	c.totalRetried.Store(0)
	c.totalDeadLettered.Store(0)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.byChannel = make(map[message.Channel]int64)
	c.failuresByChan = make(map[message.Channel]int64)
	c.totalDuration = 0
	c.attemptDurations = 0
	c.startTime = time.Now()
	c.activeWorkers = 0
	c.totalWorkers = 0
}
