package errors

import (
	"fmt"
	"runtime/debug"
)

// PanicError represents an error recovered from a panic during job processing
type PanicError struct {
	Value      interface{} // The panic value
	Stacktrace string      // Full stack trace
}

// Error implements the error interface
func (p *PanicError) Error() string {
	return fmt.Sprintf("panic recovered: %v", p.Value)
}

// FromRecovered wraps a recover() value as a PanicError with the current stack
func FromRecovered(v interface{}) *PanicError {
	return &PanicError{
		Value:      v,
		Stacktrace: string(debug.Stack()),
	}
}

// FormatPanicForLog returns a formatted string suitable for logging and for
// recording as a job's failure reason
func FormatPanicForLog(panicErr *PanicError) string {
	return fmt.Sprintf("PANIC: %v\n\nStack Trace:\n%s", panicErr.Value, panicErr.Stacktrace)
}
