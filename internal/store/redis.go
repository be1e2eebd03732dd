// Package store is the job store adapter: the only component that knows how
// job records are laid out in Redis. It manages two logical queues (main and
// dead letter) and guarantees that state transitions are atomic with respect
// to each other.
//
// Layout per queue, under the "courier:" prefix:
//
//	<queue>:job:<id>   serialized JobRecord
//	<queue>:ready      list of job ids ready for reservation
//	<queue>:active     list of job ids reserved by workers
//	<queue>:delayed    zset of job ids scored by not-before time (unix ms)
//	<queue>:completed  zset of job ids scored by completion time (unix ms)
//	<queue>:failed     list of terminally failed job ids kept in place
//	<queue>:ids        set of every job id in the queue
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/muaviaUsmani/courier/internal/backoff"
	"github.com/muaviaUsmani/courier/internal/job"
	"github.com/muaviaUsmani/courier/internal/logger"
	"github.com/muaviaUsmani/courier/internal/message"
	"github.com/muaviaUsmani/courier/internal/serialization"
)

// ErrNotFound is returned when a job id is not present in the queue
var ErrNotFound = errors.New("job not found")

// Counts is a snapshot of per-state queue depths
type Counts struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Delayed   int64 `json:"delayed"`
}

// Total returns the number of jobs across all states
func (c Counts) Total() int64 {
	return c.Waiting + c.Active + c.Completed + c.Failed + c.Delayed
}

// RedisStore implements the durable queue operations on Redis
type RedisStore struct {
	client         *redis.Client
	codec          *serialization.Codec
	keyPrefix      string
	retentionAge   time.Duration
	retentionCount int
	log            logger.Logger
}

// NewRedisStore creates a store and verifies the connection
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{
		client:         client,
		codec:          serialization.NewJSONCodec(),
		keyPrefix:      "courier:",
		retentionAge:   time.Hour,
		retentionCount: 1000,
		log:            logger.Default().WithComponent(logger.ComponentStore),
	}, nil
}

// SetRetention overrides the completed-job retention bounds for the main queue
func (s *RedisStore) SetRetention(age time.Duration, count int) {
	s.retentionAge = age
	s.retentionCount = count
}

// SetCodec overrides the wire codec new records are written with. Reads detect
// the format from the prefix, so stores with different codecs can share a
// deployment.
func (s *RedisStore) SetCodec(c *serialization.Codec) {
	if c != nil {
		s.codec = c
	}
}

// Client exposes the underlying connection for collaborators that need raw
// Redis access (the janitor's distributed lock)
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis connection: %w", err)
	}
	return nil
}

// Key helpers

func (s *RedisStore) recordKey(queue, jobID string) string {
	var b strings.Builder
	b.Grow(len(s.keyPrefix) + len(queue) + 5 + len(jobID))
	b.WriteString(s.keyPrefix)
	b.WriteString(queue)
	b.WriteString(":job:")
	b.WriteString(jobID)
	return b.String()
}

func (s *RedisStore) queueKey(queue, part string) string {
	return s.keyPrefix + queue + ":" + part
}

func (s *RedisStore) readyKey(queue string) string     { return s.queueKey(queue, "ready") }
func (s *RedisStore) activeKey(queue string) string    { return s.queueKey(queue, "active") }
func (s *RedisStore) delayedKey(queue string) string   { return s.queueKey(queue, "delayed") }
func (s *RedisStore) completedKey(queue string) string { return s.queueKey(queue, "completed") }
func (s *RedisStore) failedKey(queue string) string    { return s.queueKey(queue, "failed") }
func (s *RedisStore) idsKey(queue string) string       { return s.queueKey(queue, "ids") }

// Record codec helpers

func (s *RedisStore) saveRecord(ctx context.Context, pipe redis.Cmdable, rec *job.Record) error {
	data, err := s.codec.Encode(rec)
	if err != nil {
		return fmt.Errorf("failed to encode job %s: %w", rec.ID, err)
	}
	pipe.Set(ctx, s.recordKey(rec.Queue, rec.ID), data, 0)
	return nil
}

func (s *RedisStore) loadRecord(ctx context.Context, queue, jobID string) (*job.Record, error) {
	data, err := s.client.Get(ctx, s.recordKey(queue, jobID)).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: %s in %s", ErrNotFound, jobID, queue)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", jobID, err)
	}

	var rec job.Record
	if err := s.codec.Decode(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", jobID, err)
	}
	return &rec, nil
}

// Enqueue atomically inserts a waiting job for the message. The first
// delivery attempt is attempt 1.
func (s *RedisStore) Enqueue(ctx context.Context, queue string, msg message.Message) (*job.Record, error) {
	rec := job.New(queue, msg)

	pipe := s.client.TxPipeline()
	if err := s.saveRecord(ctx, pipe, rec); err != nil {
		return nil, err
	}
	pipe.LPush(ctx, s.readyKey(queue), rec.ID)
	pipe.SAdd(ctx, s.idsKey(queue), rec.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	s.log.Debug("Enqueued job", "job_id", rec.ID, "queue", queue, "message_id", msg.ID)
	return rec, nil
}

// Reserve atomically hands a ready job to the caller, transitioning it to
// ACTIVE. Due delayed jobs are promoted first. Returns (nil, nil) when the
// queue has no ready job. Exclusivity rests on RPOPLPUSH: each id moves from
// ready to active exactly once, so no two workers observe the same job.
func (s *RedisStore) Reserve(ctx context.Context, queue, workerID string) (*job.Record, error) {
	if _, err := s.PromoteDue(ctx, queue); err != nil {
		s.log.Warn("Failed to promote delayed jobs", "queue", queue, "error", err)
	}

	jobID, err := s.client.RPopLPush(ctx, s.readyKey(queue), s.activeKey(queue)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to reserve job: %w", err)
	}

	rec, err := s.loadRecord(ctx, queue, jobID)
	if err != nil {
		// Orphaned id: drop it from the active list so it cannot wedge a worker
		s.client.LRem(ctx, s.activeKey(queue), 1, jobID)
		return nil, fmt.Errorf("reserved job %s has no record: %w", jobID, err)
	}

	now := time.Now()
	rec.State = job.StateActive
	rec.ReservedAt = now
	if rec.FirstAttemptedAt.IsZero() {
		rec.FirstAttemptedAt = now
	}

	pipe := s.client.TxPipeline()
	if err := s.saveRecord(ctx, pipe, rec); err != nil {
		return nil, err
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to mark job %s active: %w", jobID, err)
	}

	s.log.Debug("Reserved job", "job_id", jobID, "queue", queue, "worker_id", workerID)
	return rec, nil
}

// Complete transitions an ACTIVE job to COMPLETED. Main-queue completions are
// subject to the retention policy; dead-letter completions are kept for
// inspection and requeue.
func (s *RedisStore) Complete(ctx context.Context, queue, jobID string) error {
	rec, err := s.loadRecord(ctx, queue, jobID)
	if err != nil {
		return err
	}

	now := time.Now()
	rec.State = job.StateCompleted
	rec.ReservedAt = time.Time{}

	pipe := s.client.TxPipeline()
	if err := s.saveRecord(ctx, pipe, rec); err != nil {
		return err
	}
	pipe.LRem(ctx, s.activeKey(queue), 1, jobID)
	pipe.ZAdd(ctx, s.completedKey(queue), redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: jobID,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to complete job %s: %w", jobID, err)
	}

	if queue == backoff.QueueMain {
		if err := s.trimCompleted(ctx, queue); err != nil {
			s.log.Warn("Failed to trim completed jobs", "queue", queue, "error", err)
		}
	}

	return nil
}

// Fail transitions an ACTIVE job to DELAYED with not_before = now + nextDelay,
// recording the error and the attempt number the next pickup will represent.
// first_attempted_at is preserved.
func (s *RedisStore) Fail(ctx context.Context, queue, jobID, errMsg string, nextDelay time.Duration, nextAttempt int) error {
	rec, err := s.loadRecord(ctx, queue, jobID)
	if err != nil {
		return err
	}

	rec.State = job.StateDelayed
	rec.AttemptCount = nextAttempt
	rec.LastError = errMsg
	rec.NotBefore = time.Now().Add(nextDelay)
	rec.ReservedAt = time.Time{}

	pipe := s.client.TxPipeline()
	if err := s.saveRecord(ctx, pipe, rec); err != nil {
		return err
	}
	pipe.LRem(ctx, s.activeKey(queue), 1, jobID)
	pipe.ZAdd(ctx, s.delayedKey(queue), redis.Z{
		Score:  float64(rec.NotBefore.UnixMilli()),
		Member: jobID,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to schedule job %s for retry: %w", jobID, err)
	}

	return nil
}

// MarkFailed transitions an ACTIVE job to FAILED in place. This is the
// degraded path used when a dead-letter move cannot reach the store; the
// record stays listable and requeueable in its own queue.
func (s *RedisStore) MarkFailed(ctx context.Context, queue, jobID, errMsg string) error {
	rec, err := s.loadRecord(ctx, queue, jobID)
	if err != nil {
		return err
	}

	rec.State = job.StateFailed
	rec.LastError = errMsg
	rec.ReservedAt = time.Time{}

	pipe := s.client.TxPipeline()
	if err := s.saveRecord(ctx, pipe, rec); err != nil {
		return err
	}
	pipe.LRem(ctx, s.activeKey(queue), 1, jobID)
	pipe.LPush(ctx, s.failedKey(queue), jobID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to mark job %s failed: %w", jobID, err)
	}

	return nil
}

// MoveToDeadLetter atomically removes a job from the main queue and inserts
// the corresponding record, prior fields preserved, into the dead letter
// queue with state WAITING.
func (s *RedisStore) MoveToDeadLetter(ctx context.Context, jobID, finalErr string) error {
	rec, err := s.loadRecord(ctx, backoff.QueueMain, jobID)
	if err != nil {
		return err
	}

	dl := *rec
	dl.Queue = backoff.QueueDeadLetter
	dl.State = job.StateWaiting
	dl.LastError = finalErr
	dl.MovedToDeadLetterAt = time.Now()
	dl.NotBefore = time.Time{}
	dl.ReservedAt = time.Time{}

	main := backoff.QueueMain
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.recordKey(main, jobID))
	pipe.LRem(ctx, s.activeKey(main), 1, jobID)
	pipe.LRem(ctx, s.readyKey(main), 1, jobID)
	pipe.LRem(ctx, s.failedKey(main), 1, jobID)
	pipe.ZRem(ctx, s.delayedKey(main), jobID)
	pipe.SRem(ctx, s.idsKey(main), jobID)
	if err := s.saveRecord(ctx, pipe, &dl); err != nil {
		return err
	}
	pipe.LPush(ctx, s.readyKey(dl.Queue), jobID)
	pipe.SAdd(ctx, s.idsKey(dl.Queue), jobID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to move job %s to dead letter queue: %w", jobID, err)
	}

	s.log.Debug("Moved job to dead letter queue", "job_id", jobID, "error", finalErr)
	return nil
}

// Get retrieves a job by id from a queue
func (s *RedisStore) Get(ctx context.Context, queue, jobID string) (*job.Record, error) {
	return s.loadRecord(ctx, queue, jobID)
}

// List returns jobs in a queue, optionally filtered by state, newest first
// within each state structure. Offset and limit page the result.
func (s *RedisStore) List(ctx context.Context, queue string, state job.State, offset, limit int) ([]*job.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var ids []string
	var err error

	start := int64(offset)
	stop := int64(offset + limit - 1)

	switch state {
	case job.StateWaiting:
		ids, err = s.client.LRange(ctx, s.readyKey(queue), start, stop).Result()
	case job.StateActive:
		ids, err = s.client.LRange(ctx, s.activeKey(queue), start, stop).Result()
	case job.StateFailed:
		ids, err = s.client.LRange(ctx, s.failedKey(queue), start, stop).Result()
	case job.StateDelayed:
		ids, err = s.client.ZRange(ctx, s.delayedKey(queue), start, stop).Result()
	case job.StateCompleted:
		ids, err = s.client.ZRevRange(ctx, s.completedKey(queue), start, stop).Result()
	case "":
		return s.listAll(ctx, queue, offset, limit)
	default:
		return nil, fmt.Errorf("unknown state filter: %q", state)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s jobs in %s: %w", state, queue, err)
	}

	return s.fetchRecords(ctx, queue, ids), nil
}

// listAll pages over every job in the queue ordered by enqueue time, newest first
func (s *RedisStore) listAll(ctx context.Context, queue string, offset, limit int) ([]*job.Record, error) {
	ids, err := s.client.SMembers(ctx, s.idsKey(queue)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs in %s: %w", queue, err)
	}

	recs := s.fetchRecords(ctx, queue, ids)
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].EnqueuedAt.After(recs[j].EnqueuedAt)
	})

	if offset >= len(recs) {
		return nil, nil
	}
	end := offset + limit
	if end > len(recs) {
		end = len(recs)
	}
	return recs[offset:end], nil
}

// fetchRecords loads records for the given ids, skipping ids whose record has
// been removed since the id was read
func (s *RedisStore) fetchRecords(ctx context.Context, queue string, ids []string) []*job.Record {
	recs := make([]*job.Record, 0, len(ids))
	for _, id := range ids {
		rec, err := s.loadRecord(ctx, queue, id)
		if err != nil {
			continue
		}
		recs = append(recs, rec)
	}
	return recs
}

// Remove deletes a job and every structural reference to it
func (s *RedisStore) Remove(ctx context.Context, queue, jobID string) error {
	if _, err := s.loadRecord(ctx, queue, jobID); err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.recordKey(queue, jobID))
	pipe.LRem(ctx, s.readyKey(queue), 0, jobID)
	pipe.LRem(ctx, s.activeKey(queue), 0, jobID)
	pipe.LRem(ctx, s.failedKey(queue), 0, jobID)
	pipe.ZRem(ctx, s.delayedKey(queue), jobID)
	pipe.ZRem(ctx, s.completedKey(queue), jobID)
	pipe.SRem(ctx, s.idsKey(queue), jobID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to remove job %s: %w", jobID, err)
	}
	return nil
}

// Counts returns per-state queue depths
func (s *RedisStore) Counts(ctx context.Context, queue string) (Counts, error) {
	pipe := s.client.Pipeline()
	waiting := pipe.LLen(ctx, s.readyKey(queue))
	active := pipe.LLen(ctx, s.activeKey(queue))
	completed := pipe.ZCard(ctx, s.completedKey(queue))
	failed := pipe.LLen(ctx, s.failedKey(queue))
	delayed := pipe.ZCard(ctx, s.delayedKey(queue))

	if _, err := pipe.Exec(ctx); err != nil {
		return Counts{}, fmt.Errorf("failed to count jobs in %s: %w", queue, err)
	}

	return Counts{
		Waiting:   waiting.Val(),
		Active:    active.Val(),
		Completed: completed.Val(),
		Failed:    failed.Val(),
		Delayed:   delayed.Val(),
	}, nil
}

// Obliterate purges every key belonging to the queue. Test reset only.
func (s *RedisStore) Obliterate(ctx context.Context, queue string) error {
	ids, err := s.client.SMembers(ctx, s.idsKey(queue)).Result()
	if err != nil {
		return fmt.Errorf("failed to enumerate jobs in %s: %w", queue, err)
	}

	pipe := s.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, s.recordKey(queue, id))
	}
	pipe.Del(ctx,
		s.readyKey(queue),
		s.activeKey(queue),
		s.delayedKey(queue),
		s.completedKey(queue),
		s.failedKey(queue),
		s.idsKey(queue),
	)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to obliterate %s: %w", queue, err)
	}
	return nil
}

// PromoteDue moves delayed jobs whose not-before time has arrived back to the
// ready list, in score order so the earliest-due job is reserved first.
// Returns the number of jobs promoted.
func (s *RedisStore) PromoteDue(ctx context.Context, queue string) (int, error) {
	now := time.Now().UnixMilli()

	ids, err := s.client.ZRangeByScore(ctx, s.delayedKey(queue), &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read delayed jobs: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	promoted := 0
	for _, jobID := range ids {
		rec, err := s.loadRecord(ctx, queue, jobID)
		if err != nil {
			// Record gone; drop the dangling zset member
			s.client.ZRem(ctx, s.delayedKey(queue), jobID)
			s.log.Warn("Delayed job has no record, dropped", "job_id", jobID, "queue", queue)
			continue
		}

		rec.State = job.StateWaiting
		rec.NotBefore = time.Time{}

		pipe := s.client.TxPipeline()
		if err := s.saveRecord(ctx, pipe, rec); err != nil {
			s.log.Warn("Failed to encode delayed job", "job_id", jobID, "error", err)
			continue
		}
		pipe.LPush(ctx, s.readyKey(queue), jobID)
		pipe.ZRem(ctx, s.delayedKey(queue), jobID)

		if _, err := pipe.Exec(ctx); err != nil {
			s.log.Warn("Failed to promote delayed job", "job_id", jobID, "error", err)
			continue
		}
		promoted++
	}

	return promoted, nil
}

// ReapStale resets ACTIVE jobs whose reservation is older than the threshold
// back to WAITING. This recovers jobs abandoned by a forced shutdown.
// Returns the number of jobs reset.
func (s *RedisStore) ReapStale(ctx context.Context, queue string, olderThan time.Duration) (int, error) {
	ids, err := s.client.LRange(ctx, s.activeKey(queue), 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read active jobs: %w", err)
	}

	cutoff := time.Now().Add(-olderThan)
	reaped := 0

	for _, jobID := range ids {
		rec, err := s.loadRecord(ctx, queue, jobID)
		if err != nil {
			s.client.LRem(ctx, s.activeKey(queue), 1, jobID)
			continue
		}
		if rec.State != job.StateActive || rec.ReservedAt.After(cutoff) {
			continue
		}

		reservedAt := rec.ReservedAt
		rec.State = job.StateWaiting
		rec.ReservedAt = time.Time{}

		pipe := s.client.TxPipeline()
		if err := s.saveRecord(ctx, pipe, rec); err != nil {
			continue
		}
		pipe.LRem(ctx, s.activeKey(queue), 1, jobID)
		pipe.LPush(ctx, s.readyKey(queue), jobID)

		if _, err := pipe.Exec(ctx); err != nil {
			s.log.Warn("Failed to reap stale job", "job_id", jobID, "error", err)
			continue
		}

		s.log.Warn("Reset stale reservation", "job_id", jobID, "queue", queue, "reserved_at", reservedAt)
		reaped++
	}

	return reaped, nil
}

// TrimCompleted runs the completed-job retention pass for the main queue.
// Completions trigger it inline; the janitor calls this periodically so the
// age bound holds on an idle system too.
func (s *RedisStore) TrimCompleted(ctx context.Context, queue string) error {
	if queue != backoff.QueueMain {
		return nil
	}
	return s.trimCompleted(ctx, queue)
}

// trimCompleted enforces the completed-job retention bounds: age and count,
// whichever is tighter. Trimmed jobs are removed entirely.
func (s *RedisStore) trimCompleted(ctx context.Context, queue string) error {
	key := s.completedKey(queue)

	// Age bound
	cutoff := time.Now().Add(-s.retentionAge).UnixMilli()
	expired, err := s.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", cutoff),
	}).Result()
	if err != nil {
		return err
	}

	// Count bound: trim the oldest entries beyond the cap
	total, err := s.client.ZCard(ctx, key).Result()
	if err != nil {
		return err
	}
	if over := total - int64(len(expired)) - int64(s.retentionCount); over > 0 {
		extra, err := s.client.ZRange(ctx, key, int64(len(expired)), int64(len(expired))+over-1).Result()
		if err != nil {
			return err
		}
		expired = append(expired, extra...)
	}

	if len(expired) == 0 {
		return nil
	}

	pipe := s.client.TxPipeline()
	for _, id := range expired {
		pipe.Del(ctx, s.recordKey(queue, id))
		pipe.SRem(ctx, s.idsKey(queue), id)
	}
	members := make([]interface{}, len(expired))
	for i, id := range expired {
		members[i] = id
	}
	pipe.ZRem(ctx, key, members...)

	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	s.log.Debug("Trimmed completed jobs", "queue", queue, "count", len(expired))
	return nil
}
