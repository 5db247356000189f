package bflow

import (
	"net/http"
	"sync"
)

// ResponseWriter wraps the transport's http.ResponseWriter and tracks the commit state of the response: whether
// headers went out, which status was committed and how many body bytes were written. Once the request finished it
// refuses further writes, so middleware that keeps running after an abort cannot touch a recycled connection.
type ResponseWriter struct {
	http.ResponseWriter

	mu       sync.Mutex
	status   int
	size     int64
	sent     bool
	finished bool
	err      error
}

// NewResponseWriter wraps w.
func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{ResponseWriter: w}
}

// WriteHeader commits the status and headers. Only the first call has effect.
func (w *ResponseWriter) WriteHeader(code int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.sent || w.finished {
		return
	}

	w.sent = true
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Write writes body bytes, committing headers with a 200 status if that did not happen yet.
func (w *ResponseWriter) Write(b []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.finished {
		return 0, ErrFinished
	}

	if !w.sent {
		w.sent = true
		w.status = http.StatusOK
		w.ResponseWriter.WriteHeader(http.StatusOK)
	}

	n, err := w.ResponseWriter.Write(b)
	w.size += int64(n)
	if err != nil && w.err == nil {
		w.err = err
	}

	return n, err
}

// Flush implements http.Flusher.
func (w *ResponseWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.finished {
		return
	}

	if !w.sent {
		w.sent = true
		w.status = http.StatusOK
	}

	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// HeadersSent reports whether the status line and headers were committed.
func (w *ResponseWriter) HeadersSent() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sent
}

// Status returns the committed status, or 0 when nothing was committed yet.
func (w *ResponseWriter) Status() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Size returns the number of body bytes written.
func (w *ResponseWriter) Size() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

// Err returns the first error the transport reported while writing.
func (w *ResponseWriter) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Unwrap returns the underlying ResponseWriter, for http.ResponseController.
func (w *ResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// EditHeader calls fn with the header map while holding the writer's lock, so edits never overlap with the
// transport reading the headers. Edits after the request finished are dropped.
func (w *ResponseWriter) EditHeader(fn func(h http.Header)) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.finished {
		return
	}

	fn(w.ResponseWriter.Header())
}

func (w *ResponseWriter) headerValue(name string) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ResponseWriter.Header().Get(name)
}

func (w *ResponseWriter) headerClone() http.Header {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ResponseWriter.Header().Clone()
}

// finish seals the writer. Writes after this return [ErrFinished].
func (w *ResponseWriter) finish() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.finished = true
}

func (w *ResponseWriter) isFinished() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.finished
}
