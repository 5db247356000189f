package bserve

import (
	"context"
	"time"
)

// Timeouts
//
// A request has two deadlines. The app stops the middleware chain of a request after BFLOW_REQUEST_TIMEOUT and
// answers it with the abort status. The http.Server timeouts are the outer bound: they are the request timeout plus
// a buffer, so a stopped request still has time to write its response before the server drops the connection.

// DefaultTimeoutBuffer is the time reserved after the request timeout for writing the response.
const DefaultTimeoutBuffer = 500 * time.Millisecond

// TimeoutConfig holds timeout configuration for the HTTP server.
type TimeoutConfig struct {
	// RequestTimeout bounds the middleware chain of a single request.
	RequestTimeout time.Duration

	// Buffer is added to RequestTimeout for the server's read and write timeouts. Defaults to
	// DefaultTimeoutBuffer.
	Buffer time.Duration
}

// ServerTimeouts returns the http.Server timeout values for the configured request timeout. A zero request timeout
// disables the read, write and idle timeouts.
func (tc TimeoutConfig) ServerTimeouts() (readHeaderTimeout, readTimeout, writeTimeout, idleTimeout time.Duration) {
	buffer := tc.Buffer
	if buffer <= 0 {
		buffer = DefaultTimeoutBuffer
	}

	readHeaderTimeout = 5 * time.Second
	if tc.RequestTimeout <= 0 {
		return readHeaderTimeout, 0, 0, 0
	}

	timeout := tc.RequestTimeout + buffer

	// headers arrive well before the body, don't let them take the whole budget
	readHeaderTimeout = min(timeout, readHeaderTimeout)
	readTimeout = timeout
	writeTimeout = timeout
	idleTimeout = timeout

	return
}

// RemainingTime returns the duration until the context deadline.
// Returns 0 if no deadline is set or if the deadline has passed.
func RemainingTime(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0
	}
	remaining := time.Until(deadline)
	if remaining < 0 {
		return 0
	}
	return remaining
}
