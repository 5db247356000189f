package bflow

import (
	"fmt"
	"log"
	"regexp"
	"sync/atomic"
	"testing"
)

// Logger can be implemented to get informed about important states.
type Logger interface {
	// LogSystemError receives system failures that reached the app-level sink.
	LogSystemError(err error)
	// LogFinishError receives errors the transport reported while finishing a response.
	LogFinishError(err error)
}

var lineStart = regexp.MustCompile(`(?m)^`)

// Diagnostic returns the full diagnostic text of err (message and stack, when recorded) with every line indented.
func Diagnostic(err error) string {
	return lineStart.ReplaceAllString(fmt.Sprintf("%+v", err), "  ")
}

type stdLogger struct{ *log.Logger }

func (l stdLogger) LogSystemError(err error) {
	l.Logger.Printf("bflow: system error:\n%s", Diagnostic(err))
}

func (l stdLogger) LogFinishError(err error) {
	l.Logger.Printf("bflow: error while finishing response: %s", err)
}

// NewStdLogger returns a Logger that writes to l, or to the standard logger when l is nil.
func NewStdLogger(l *log.Logger) Logger {
	if l == nil {
		l = log.Default()
	}

	return stdLogger{l}
}

// TestLogger counts log calls and forwards them to the test log.
type TestLogger struct {
	tb testing.TB

	NumLogSystemError int64
	NumLogFinishError int64
}

func NewTestLogger(tb testing.TB) *TestLogger {
	return &TestLogger{tb: tb}
}

func (l *TestLogger) LogSystemError(err error) {
	atomic.AddInt64(&l.NumLogSystemError, 1)
	l.tb.Logf("bflow: system error:\n%s", Diagnostic(err))
}

func (l *TestLogger) LogFinishError(err error) {
	atomic.AddInt64(&l.NumLogFinishError, 1)
	l.tb.Logf("bflow: error while finishing response: %s", err)
}

var _ Logger = &TestLogger{}
