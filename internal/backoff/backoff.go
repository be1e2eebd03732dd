// Package backoff defines the retry policy shared by the processor,
// the queue service, and the tests: a deterministic exponential schedule
// with a fixed attempt ceiling.
package backoff

import "time"

const (
	// Base is the delay after the first attempt.
	Base = 1000 * time.Millisecond

	// MaxAttempts is the total number of delivery attempts performed for a
	// message (1 initial + MaxAttempts-1 retries). The failure of attempt
	// MaxAttempts moves the job to the dead letter queue.
	MaxAttempts = 5
)

// Logical queue names used by the store.
const (
	QueueMain       = "message-delivery"
	QueueDeadLetter = "message-delivery-dead-letter"
)

// Delay returns the backoff delay for attempt number n: Base * 2^(n-1).
// After attempt k fails, the processor schedules the retry with Delay(k+1),
// so the observed waits are 2s, 4s, 8s, 16s.
//
// Delay(1) = 1s, Delay(2) = 2s, Delay(3) = 4s, Delay(4) = 8s, Delay(5) = 16s.
// For n <= 0 the result clamps to Base >> (1-n) so the function never panics;
// Delay(0) = 500ms.
func Delay(n int) time.Duration {
	if n < 1 {
		shift := uint(1 - n)
		if shift > 62 {
			return 0
		}
		return Base >> shift
	}
	if n > 32 {
		n = 32
	}
	return Base << uint(n-1)
}
