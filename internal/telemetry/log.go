package telemetry

import (
	"io"
	"log"
)

var (
	opsLogger   *log.Logger
	diagLogger  *log.Logger
	traceLogger *log.Logger
)

// SetLogWriters configures the three logging streams shared by the console
// core. Pass nil for any writer to disable that stream.
//
//   - ops: actionable warnings, dropped data, backend failures
//   - diag: day-to-day diagnostics, lifecycle transitions, tuning context
//   - trace: high-frequency per-tick detail
func SetLogWriters(ops, diag, trace io.Writer) {
	opsLogger = newLogger("[sitscope] ", ops)
	diagLogger = newLogger("[sitscope] ", diag)
	traceLogger = newLogger("[sitscope] ", trace)
}

// SetLegacyLogger routes all three streams to a single writer. Pass nil to
// disable all logging.
func SetLegacyLogger(w io.Writer) {
	SetLogWriters(w, w, w)
}

func newLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// Opsf logs to the ops stream.
func Opsf(format string, args ...interface{}) {
	if opsLogger != nil {
		opsLogger.Printf(format, args...)
	}
}

// Diagf logs to the diag stream.
func Diagf(format string, args ...interface{}) {
	if diagLogger != nil {
		diagLogger.Printf(format, args...)
	}
}

// Tracef logs to the trace stream.
func Tracef(format string, args ...interface{}) {
	if traceLogger != nil {
		traceLogger.Printf(format, args...)
	}
}
