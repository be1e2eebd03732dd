package admin

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/muaviaUsmani/courier/internal/backoff"
	"github.com/muaviaUsmani/courier/internal/job"
	"github.com/muaviaUsmani/courier/internal/service"
	"github.com/muaviaUsmani/courier/internal/store"
)

func setupDispatcher(t *testing.T) (*Dispatcher, *store.RedisStore) {
	mr := miniredis.RunT(t)

	s, err := store.NewRedisStore("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return NewDispatcher(service.NewQueueService(s)), s
}

func submitArgs(t *testing.T, id string) json.RawMessage {
	t.Helper()
	args, err := json.Marshal(map[string]interface{}{
		"id":          id,
		"channel":     "http",
		"destination": "https://example.com/hook",
	})
	if err != nil {
		t.Fatalf("failed to marshal args: %v", err)
	}
	return args
}

func TestDispatch_Submit(t *testing.T) {
	dispatcher, _ := setupDispatcher(t)

	result, err := dispatcher.Dispatch(context.Background(), Command{
		Verb: VerbSubmit,
		Args: submitArgs(t, "msg-1"),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	submitted, ok := result.(*SubmitResult)
	if !ok {
		t.Fatalf("expected *SubmitResult, got %T", result)
	}
	if submitted.JobID == "" {
		t.Error("expected a job id")
	}
}

func TestDispatch_SubmitInvalidMessage(t *testing.T) {
	dispatcher, _ := setupDispatcher(t)

	args, _ := json.Marshal(map[string]interface{}{"channel": "fax"})
	if _, err := dispatcher.Dispatch(context.Background(), Command{Verb: VerbSubmit, Args: args}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestDispatch_Stats(t *testing.T) {
	dispatcher, _ := setupDispatcher(t)
	ctx := context.Background()

	if _, err := dispatcher.Dispatch(ctx, Command{Verb: VerbSubmit, Args: submitArgs(t, "msg-1")}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	result, err := dispatcher.Dispatch(ctx, Command{Verb: VerbStats})
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}

	stats, ok := result.(*service.Stats)
	if !ok {
		t.Fatalf("expected *service.Stats, got %T", result)
	}
	if stats.Main.Waiting != 1 {
		t.Errorf("expected 1 waiting, got %d", stats.Main.Waiting)
	}
}

func TestDispatch_GetAndList(t *testing.T) {
	dispatcher, _ := setupDispatcher(t)
	ctx := context.Background()

	submitted, err := dispatcher.Dispatch(ctx, Command{Verb: VerbSubmit, Args: submitArgs(t, "msg-1")})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	jobID := submitted.(*SubmitResult).JobID

	args, _ := json.Marshal(jobArgs{JobID: jobID})
	result, err := dispatcher.Dispatch(ctx, Command{Verb: VerbGet, Args: args})
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	rec, ok := result.(*job.Record)
	if !ok {
		t.Fatalf("expected *job.Record, got %T", result)
	}
	if rec.ID != jobID {
		t.Errorf("expected job %s, got %s", jobID, rec.ID)
	}

	listRaw, _ := json.Marshal(listArgs{Limit: 10})
	result, err = dispatcher.Dispatch(ctx, Command{Verb: VerbListMain, Args: listRaw})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	recs, ok := result.([]*job.Record)
	if !ok {
		t.Fatalf("expected []*job.Record, got %T", result)
	}
	if len(recs) != 1 {
		t.Errorf("expected 1 job, got %d", len(recs))
	}
}

func TestDispatch_RequeueFromDeadLetter(t *testing.T) {
	dispatcher, s := setupDispatcher(t)
	ctx := context.Background()

	submitted, err := dispatcher.Dispatch(ctx, Command{Verb: VerbSubmit, Args: submitArgs(t, "msg-1")})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	jobID := submitted.(*SubmitResult).JobID

	if err := s.MoveToDeadLetter(ctx, jobID, "exhausted"); err != nil {
		t.Fatalf("move failed: %v", err)
	}

	args, _ := json.Marshal(jobArgs{JobID: jobID})
	result, err := dispatcher.Dispatch(ctx, Command{Verb: VerbRequeue, Args: args})
	if err != nil {
		t.Fatalf("requeue failed: %v", err)
	}
	requeued := result.(*SubmitResult)
	if requeued.JobID == jobID {
		t.Error("expected a fresh job id")
	}

	rec, err := s.Get(ctx, backoff.QueueMain, requeued.JobID)
	if err != nil {
		t.Fatalf("expected fresh job in main queue: %v", err)
	}
	if rec.AttemptCount != 1 {
		t.Errorf("expected attempt count 1, got %d", rec.AttemptCount)
	}
}

func TestDispatch_ListDeadLetter(t *testing.T) {
	dispatcher, s := setupDispatcher(t)
	ctx := context.Background()

	submitted, _ := dispatcher.Dispatch(ctx, Command{Verb: VerbSubmit, Args: submitArgs(t, "msg-1")})
	jobID := submitted.(*SubmitResult).JobID
	if err := s.MoveToDeadLetter(ctx, jobID, "exhausted"); err != nil {
		t.Fatalf("move failed: %v", err)
	}

	result, err := dispatcher.Dispatch(ctx, Command{Verb: VerbListDeadLetter})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	recs := result.([]*job.Record)
	if len(recs) != 1 {
		t.Errorf("expected 1 dead letter entry, got %d", len(recs))
	}
}

func TestDispatch_UnknownVerb(t *testing.T) {
	dispatcher, _ := setupDispatcher(t)

	if _, err := dispatcher.Dispatch(context.Background(), Command{Verb: "explode"}); err == nil {
		t.Fatal("expected error for unknown verb")
	}
}
