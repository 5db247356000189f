package bflow

import (
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
)

// Response is the response view of a [Context]. Its methods are safe for concurrent use, so a unit abandoned by a
// stop can keep calling them while the response is committed. The raw map returned by Header is not.
type Response struct {
	ctx *Context
	req *Request
	w   *ResponseWriter

	mu       sync.Mutex
	status   int
	explicit bool
	message  string
	body     any
}

// Context returns the owning context.
func (r *Response) Context() *Context { return r.ctx }

// Request returns the sibling request view.
func (r *Response) Request() *Request { return r.req }

// Writer returns the raw response writer.
func (r *Response) Writer() *ResponseWriter { return r.w }

// Header returns the live response header map. Units that may outlive a stop should use Set, Append and Remove
// instead.
func (r *Response) Header() http.Header { return r.w.Header() }

// Get returns a response header.
func (r *Response) Get(name string) string { return r.w.headerValue(name) }

// Set sets a response header.
func (r *Response) Set(name, value string) {
	r.w.EditHeader(func(h http.Header) { h.Set(name, value) })
}

// Append adds a value to a response header.
func (r *Response) Append(name, value string) {
	r.w.EditHeader(func(h http.Header) { h.Add(name, value) })
}

// Remove deletes a response header.
func (r *Response) Remove(name string) {
	r.w.EditHeader(func(h http.Header) { h.Del(name) })
}

// HeadersSent reports whether the headers were committed to the transport.
func (r *Response) HeadersSent() bool { return r.w.HeadersSent() }

// Writable reports whether the connection can still take a response.
func (r *Response) Writable() bool { return r.ctx.Writable() }

// Status returns the response status. It is 404 until something sets it.
func (r *Response) Status() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// SetStatus sets the response status. It panics when code is not a 3-digit status. Setting a status that never
// carries a body drops the current body.
func (r *Response) SetStatus(code int) {
	if code < 100 || code > 999 {
		panic(errors.Wrapf(ErrUsage, "invalid status code: %d", code))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.setStatusLocked(code)
}

func (r *Response) setStatusLocked(code int) {
	r.status = code
	r.explicit = true
	if isEmptyStatus(code) {
		r.body = nil
	}
}

// Message returns the status message, falling back to the standard phrase of the status.
func (r *Response) Message() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.message != "" {
		return r.message
	}

	return http.StatusText(r.status)
}

// SetMessage sets the status message.
func (r *Response) SetMessage(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.message = msg
}

func (r *Response) explicitMessage() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.message
}

// Body returns the response body.
func (r *Response) Body() any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body
}

// SetBody sets the response body: nil, a string, a []byte, an io.Reader to stream, or any other value to be
// encoded as JSON. If no status was set explicitly it becomes 200 (204 for a nil body), and the content headers
// follow the body's kind.
func (r *Response) SetBody(v any) {
	r.mu.Lock()
	r.body = v
	if !r.explicit {
		if v == nil {
			r.setStatusLocked(http.StatusNoContent)
		} else {
			r.setStatusLocked(http.StatusOK)
		}
	}
	r.mu.Unlock()

	if v == nil {
		r.w.EditHeader(dropContentHeaders)
		return
	}

	setType := r.Get("Content-Type") == ""
	switch b := v.(type) {
	case string:
		if setType {
			if strings.HasPrefix(strings.TrimSpace(b), "<") {
				r.SetType("html")
			} else {
				r.SetType("text")
			}
		}

		r.SetLength(int64(len(b)))
	case []byte:
		if setType {
			r.SetType("bin")
		}

		r.SetLength(int64(len(b)))
	case io.Reader:
		if setType {
			r.SetType("bin")
		}

		r.Remove("Content-Length")
	default:
		r.Remove("Content-Length")
		r.SetType("json")
	}
}

var typeShortcuts = map[string]string{
	"text": "text/plain; charset=utf-8",
	"html": "text/html; charset=utf-8",
	"json": "application/json; charset=utf-8",
	"xml":  "text/xml; charset=utf-8",
	"bin":  "application/octet-stream",
}

// Type returns the response content type void of parameters.
func (r *Response) Type() string {
	ct := r.Get("Content-Type")
	if ct == "" {
		return ""
	}

	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.TrimSpace(strings.Split(ct, ";")[0])
	}

	return mt
}

// SetType sets the content type. It accepts full mime types, the shortcuts text, html, json, xml and bin, and
// file extensions ("png" or ".png").
func (r *Response) SetType(t string) {
	switch {
	case typeShortcuts[t] != "":
		t = typeShortcuts[t]
	case !strings.Contains(t, "/"):
		ext := t
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}

		if mt := mime.TypeByExtension(ext); mt != "" {
			t = mt
		} else {
			r.Remove("Content-Type")
			return
		}
	}

	r.Set("Content-Type", t)
}

// Length returns the content length, or -1 when unknown.
func (r *Response) Length() int64 {
	n, err := strconv.ParseInt(r.Get("Content-Length"), 10, 64)
	if err != nil {
		return -1
	}

	return n
}

// SetLength sets the content length.
func (r *Response) SetLength(n int64) {
	r.Set("Content-Length", strconv.FormatInt(n, 10))
}

// ETag returns the ETag header.
func (r *Response) ETag() string { return r.Get("ETag") }

// SetETag sets the ETag header, adding quotes unless the tag is already quoted or weak.
func (r *Response) SetETag(tag string) {
	if !strings.HasPrefix(tag, `"`) && !strings.HasPrefix(tag, `W/"`) {
		tag = `"` + tag + `"`
	}

	r.Set("ETag", tag)
}

// Snapshot is a read-only view of a response, for debugging.
type Snapshot struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Header  http.Header `json:"header"`
	Body    any         `json:"body,omitempty"`
}

// Inspect returns a snapshot of the response, or nil when there is no transport writer.
func (r *Response) Inspect() *Snapshot {
	if r == nil || r.w == nil || r.w.ResponseWriter == nil {
		return nil
	}

	return &Snapshot{
		Status:  r.Status(),
		Message: r.Message(),
		Header:  r.w.headerClone(),
		Body:    r.Body(),
	}
}

func dropContentHeaders(h http.Header) {
	h.Del("Content-Type")
	h.Del("Content-Length")
	h.Del("Transfer-Encoding")
}

// isEmptyStatus reports whether responses with the status never carry a body.
func isEmptyStatus(code int) bool {
	switch code {
	case http.StatusNoContent, http.StatusResetContent, http.StatusNotModified:
		return true
	}

	return false
}
