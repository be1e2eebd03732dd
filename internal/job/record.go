// Package job defines the JobRecord, the durable unit the store tracks for
// each submitted message, and its state machine.
package job

import (
	"time"

	"github.com/google/uuid"

	"github.com/muaviaUsmani/courier/internal/message"
)

// State represents the current state of a job within its queue
type State string

const (
	// StateWaiting indicates the job is ready to be reserved
	StateWaiting State = "waiting"
	// StateDelayed indicates the job is waiting out a retry delay
	StateDelayed State = "delayed"
	// StateActive indicates the job is reserved by a worker
	StateActive State = "active"
	// StateCompleted indicates the job finished successfully
	StateCompleted State = "completed"
	// StateFailed indicates the job failed terminally but stayed in its queue
	StateFailed State = "failed"
)

// Valid reports whether s is a known job state
func (s State) Valid() bool {
	switch s {
	case StateWaiting, StateDelayed, StateActive, StateCompleted, StateFailed:
		return true
	}
	return false
}

// Record is the durable unit managed by the store. It wraps a message with
// its delivery state and is mutated only through store operations.
type Record struct {
	// ID is the store-assigned job identifier, unique within its queue
	ID string `json:"id"`
	// Queue is the logical queue holding the record
	Queue string `json:"queue"`
	// Message is the submitted payload, immutable after enqueue
	Message message.Message `json:"message"`
	// AttemptCount is the number of the in-progress or just-performed
	// delivery attempt; starts at 1 and never decreases
	AttemptCount int `json:"attempt_count"`
	// State is the job's position in the lifecycle
	State State `json:"state"`
	// EnqueuedAt is when the record entered its queue
	EnqueuedAt time.Time `json:"enqueued_at"`
	// NotBefore gates delayed jobs; zero unless State is delayed
	NotBefore time.Time `json:"not_before,omitempty"`
	// FirstAttemptedAt is set on first reservation and never reset
	FirstAttemptedAt time.Time `json:"first_attempted_at,omitempty"`
	// ReservedAt is stamped on each reservation, for stale-reservation reaping
	ReservedAt time.Time `json:"reserved_at,omitempty"`
	// LastError is the short description of the most recent failure
	LastError string `json:"last_error,omitempty"`
	// MovedToDeadLetterAt is set when the record enters the dead letter queue
	MovedToDeadLetterAt time.Time `json:"moved_to_dead_letter_at,omitempty"`
}

// New creates a waiting record for a freshly submitted message.
// The first delivery attempt is attempt 1.
func New(queue string, msg message.Message) *Record {
	return &Record{
		ID:           uuid.New().String(),
		Queue:        queue,
		Message:      msg,
		AttemptCount: 1,
		State:        StateWaiting,
		EnqueuedAt:   time.Now(),
	}
}

// Terminal reports whether the record can no longer change state within its queue
func (r *Record) Terminal() bool {
	return r.State == StateCompleted || r.State == StateFailed
}
