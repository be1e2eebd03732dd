// Package admin maps external commands onto queue service operations. It is
// transport-agnostic: the HTTP server in cmd/api and any future CLI both go
// through the same dispatcher.
package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/muaviaUsmani/courier/internal/job"
	"github.com/muaviaUsmani/courier/internal/message"
	"github.com/muaviaUsmani/courier/internal/metrics"
	"github.com/muaviaUsmani/courier/internal/service"
)

// Verb names an administrative operation
type Verb string

const (
	VerbSubmit         Verb = "submit"
	VerbStats          Verb = "stats"
	VerbListMain       Verb = "list_main"
	VerbListDeadLetter Verb = "list_dead_letter"
	VerbGet            Verb = "get"
	VerbRequeue        Verb = "requeue"
	VerbMetrics        Verb = "metrics"
)

// Command is a single administrative request
type Command struct {
	Verb Verb            `json:"verb"`
	Args json.RawMessage `json:"args,omitempty"`
}

// listArgs parameterizes the listing verbs
type listArgs struct {
	State  job.State `json:"state,omitempty"`
	Offset int       `json:"offset"`
	Limit  int       `json:"limit"`
}

// jobArgs parameterizes the verbs addressing a single job
type jobArgs struct {
	JobID string `json:"job_id"`
}

// SubmitResult is returned by the submit verb
type SubmitResult struct {
	JobID string `json:"job_id"`
}

// Dispatcher translates commands into queue service calls
type Dispatcher struct {
	service *service.QueueService
}

// NewDispatcher creates a dispatcher over the queue service
func NewDispatcher(svc *service.QueueService) *Dispatcher {
	return &Dispatcher{service: svc}
}

// Dispatch executes a command and returns its result. Errors surface the
// service taxonomy unchanged so transports can map them to their own codes.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) (interface{}, error) {
	switch cmd.Verb {
	case VerbSubmit:
		var msg message.Message
		if err := json.Unmarshal(cmd.Args, &msg); err != nil {
			return nil, fmt.Errorf("invalid submit args: %w", err)
		}
		rec, err := d.service.Submit(ctx, msg)
		if err != nil {
			return nil, err
		}
		return &SubmitResult{JobID: rec.ID}, nil

	case VerbStats:
		return d.service.Stats(ctx)

	case VerbMetrics:
		return metrics.Default().GetSnapshot(), nil

	case VerbListMain:
		var args listArgs
		if len(cmd.Args) > 0 {
			if err := json.Unmarshal(cmd.Args, &args); err != nil {
				return nil, fmt.Errorf("invalid list_main args: %w", err)
			}
		}
		return d.service.ListMain(ctx, args.State, args.Offset, args.Limit)

	case VerbListDeadLetter:
		var args listArgs
		if len(cmd.Args) > 0 {
			if err := json.Unmarshal(cmd.Args, &args); err != nil {
				return nil, fmt.Errorf("invalid list_dead_letter args: %w", err)
			}
		}
		return d.service.ListDeadLetter(ctx, args.Offset, args.Limit)

	case VerbGet:
		var args jobArgs
		if err := json.Unmarshal(cmd.Args, &args); err != nil {
			return nil, fmt.Errorf("invalid get args: %w", err)
		}
		return d.service.Get(ctx, args.JobID)

	case VerbRequeue:
		var args jobArgs
		if err := json.Unmarshal(cmd.Args, &args); err != nil {
			return nil, fmt.Errorf("invalid requeue args: %w", err)
		}
		rec, err := d.service.Requeue(ctx, args.JobID)
		if err != nil {
			return nil, err
		}
		return &SubmitResult{JobID: rec.ID}, nil

	default:
		return nil, fmt.Errorf("unknown verb: %q", cmd.Verb)
	}
}
