package metrics

import (
	"testing"
	"time"

	"github.com/muaviaUsmani/courier/internal/message"
)

func TestCollector_RecordsCounters(t *testing.T) {
	c := NewCollector()

	c.RecordAttempt(message.ChannelHTTP)
	c.RecordAttempt(message.ChannelHTTP)
	c.RecordAttempt(message.ChannelEmail)
	c.RecordCompleted(message.ChannelHTTP, 10*time.Millisecond)
	c.RecordRetried(message.ChannelHTTP, 20*time.Millisecond)
	c.RecordDeadLettered(message.ChannelEmail)

	snap := c.GetSnapshot()
	if snap.TotalAttempts != 3 {
		t.Errorf("expected 3 attempts, got %d", snap.TotalAttempts)
	}
	if snap.TotalCompleted != 1 {
		t.Errorf("expected 1 completed, got %d", snap.TotalCompleted)
	}
	if snap.TotalRetried != 1 {
		t.Errorf("expected 1 retried, got %d", snap.TotalRetried)
	}
	if snap.TotalDeadLettered != 1 {
		t.Errorf("expected 1 dead-lettered, got %d", snap.TotalDeadLettered)
	}
	if snap.ByChannel[message.ChannelHTTP] != 2 {
		t.Errorf("expected 2 http attempts, got %d", snap.ByChannel[message.ChannelHTTP])
	}
	if snap.FailuresByChannel[message.ChannelEmail] != 1 {
		t.Errorf("expected 1 email failure, got %d", snap.FailuresByChannel[message.ChannelEmail])
	}
	if snap.AvgAttemptTime != 15*time.Millisecond {
		t.Errorf("expected 15ms average, got %v", snap.AvgAttemptTime)
	}
}

func TestCollector_WorkerUtilization(t *testing.T) {
	c := NewCollector()

	c.RecordWorkerActivity(3, 5)
	snap := c.GetSnapshot()
	if snap.WorkerUtilization != 0.6 {
		t.Errorf("expected utilization 0.6, got %v", snap.WorkerUtilization)
	}
}

func TestCollector_Reset(t *testing.T) {
	c := NewCollector()
	c.RecordAttempt(message.ChannelHTTP)
	c.RecordCompleted(message.ChannelHTTP, time.Millisecond)

	c.Reset()

	snap := c.GetSnapshot()
	if snap.TotalAttempts != 0 || snap.TotalCompleted != 0 {
		t.Errorf("expected counters cleared, got %+v", snap)
	}
	if len(snap.ByChannel) != 0 {
		t.Errorf("expected channel map cleared, got %v", snap.ByChannel)
	}
}

func TestDefault_Singleton(t *testing.T) {
	if Default() != Default() {
		t.Error("expected a single global collector")
	}
}
