package bflow

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
)

// Event names a lifecycle event emitted on a [Context].
type Event int

const (
	// EventError is emitted for every error that enters the escalation chain.
	EventError Event = iota
	// EventEnd is emitted once, after the responder performed its terminal action (or suppressed it).
	EventEnd
	// EventFinished is emitted once the transport is done with the response. It carries the transport error, if
	// any.
	EventFinished
)

// Listener is called when an event is emitted. err is nil for events that carry no error.
type Listener func(c *Context, err error)

// Responder replaces the default response decision table for a single request.
type Responder func(c *Context) error

// Context is the per-request record passed through the middleware chain. It implements context.Context: it is
// cancelled when the chain is stopped, times out or when the client goes away.
type Context struct {
	app   *App
	scope *scope

	req *Request
	res *Response

	ctx     context.Context
	cancel  context.CancelCauseFunc
	release context.CancelFunc

	// Config is this request's copy of the app configuration.
	Config Config
	// State holds free-form request data shared between middleware.
	State map[string]any
	// OriginalURL is the request URL as received from the transport.
	OriginalURL string

	mu        sync.Mutex
	suppress  bool
	responder Responder
	preEnd    []Middleware
	listeners map[Event][]Listener
	group     *errgroup.Group
	results   []Result
	lastValue any

	respondMu   sync.Mutex
	preEndPhase atomic.Bool
	ended       atomic.Bool
	finished    atomic.Bool
}

type ctxKey struct{}

// FromContext returns the flow context that ctx was derived from.
func FromContext(ctx context.Context) (*Context, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Context)
	return c, ok
}

// newContext wires a new context for the raw request and response.
func newContext(app *App, w http.ResponseWriter, r *http.Request) *Context {
	c := &Context{
		app: app,
		scope: &scope{
			errorHandler: app.errorHandler,
			debug:        app.debug,
			stop:         app.stopHandler,
		},
		Config:      app.Config(),
		State:       map[string]any{},
		OriginalURL: r.URL.String(),
		listeners:   map[Event][]Listener{},
	}

	base := r.Context()
	if app.timeout > 0 {
		var cancel context.CancelFunc
		base, cancel = context.WithTimeoutCause(base, app.timeout, &StopSignal{Message: "request timeout"})
		c.release = cancel
	}

	c.ctx, c.cancel = context.WithCancelCause(context.WithValue(base, ctxKey{}, c))

	bw, ok := w.(*ResponseWriter)
	if !ok {
		bw = NewResponseWriter(w)
	}

	c.req = &Request{ctx: c, Req: r}
	c.res = &Response{ctx: c, w: bw, status: http.StatusNotFound}
	c.req.res = c.res
	c.res.req = c.req

	c.preEnd = []Middleware{Func(Yield)}

	return c
}

// Deadline implements context.Context.
func (c *Context) Deadline() (time.Time, bool) { return c.ctx.Deadline() }

// Done implements context.Context.
func (c *Context) Done() <-chan struct{} { return c.ctx.Done() }

// Err implements context.Context.
func (c *Context) Err() error { return c.ctx.Err() }

// Value implements context.Context.
func (c *Context) Value(key any) any { return c.ctx.Value(key) }

// App returns the application serving the request.
func (c *Context) App() *App { return c.app }

// Req returns the raw request.
func (c *Context) Req() *http.Request { return c.req.Req }

// Writer returns the raw response writer. Writing to it directly commits the response and turns the responder
// into a no-op.
func (c *Context) Writer() *ResponseWriter { return c.res.w }

// Request returns the request view.
func (c *Context) Request() *Request { return c.req }

// Response returns the response view.
func (c *Context) Response() *Response { return c.res }

// Method returns the request method.
func (c *Context) Method() string { return c.req.Method() }

// Path returns the request path.
func (c *Context) Path() string { return c.req.Path() }

// Get returns a request header.
func (c *Context) Get(name string) string { return c.req.Get(name) }

// Set sets a response header.
func (c *Context) Set(name, value string) { c.res.Set(name, value) }

// Status returns the response status.
func (c *Context) Status() int { return c.res.Status() }

// SetStatus sets the response status. It panics when code is not a 3-digit status.
func (c *Context) SetStatus(code int) { c.res.SetStatus(code) }

// Message returns the response status message.
func (c *Context) Message() string { return c.res.Message() }

// SetMessage sets the response status message.
func (c *Context) SetMessage(msg string) { c.res.SetMessage(msg) }

// Body returns the response body.
func (c *Context) Body() any { return c.res.Body() }

// SetBody sets the response body.
func (c *Context) SetBody(v any) { c.res.SetBody(v) }

// Type returns the response content type void of parameters.
func (c *Context) Type() string { return c.res.Type() }

// SetType sets the response content type.
func (c *Context) SetType(t string) { c.res.SetType(t) }

// Length returns the response content length, or -1 when unknown.
func (c *Context) Length() int64 { return c.res.Length() }

// SetLength sets the response content length.
func (c *Context) SetLength(n int64) { c.res.SetLength(n) }

// SetRespond controls whether the responder writes anything. Passing false leaves the response entirely to
// whoever took over the connection; the end event is still emitted.
func (c *Context) SetRespond(respond bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.suppress = !respond
}

// SetResponder overrides the default response decision table for this request.
func (c *Context) SetResponder(fn Responder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responder = fn
}

// Ended reports whether the responder finished its decision.
func (c *Context) Ended() bool { return c.ended.Load() }

// Finished reports whether the transport is done with the response.
func (c *Context) Finished() bool { return c.finished.Load() }

// Writable reports whether the connection can still take a response.
func (c *Context) Writable() bool {
	return !c.finished.Load() && !c.res.w.isFinished() && c.req.Req.Context().Err() == nil
}

// Stop aborts the primary middleware chain with the given message.
func (c *Context) Stop(message string) {
	c.cancel(&StopSignal{Message: message})
}

// OnPreEnd registers units that run after the primary chain and before the responder. It panics when unit is not
// a middleware unit.
func (c *Context) OnPreEnd(units ...any) {
	mws := make([]Middleware, 0, len(units))
	for _, u := range units {
		mws = append(mws, MustAdapt(u))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.preEnd = append(c.preEnd, mws...)
}

// PreEnd returns a snapshot of the registered pre-end units.
func (c *Context) PreEnd() []Middleware {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Middleware(nil), c.preEnd...)
}

// Results returns the results of the units that completed so far, in order.
func (c *Context) Results() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Result(nil), c.results...)
}

// On registers a listener for ev.
func (c *Context) On(ev Event, fn Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners[ev] = append(c.listeners[ev], fn)
}

// Emit emits ev. Emitting [EventError] funnels err into the error escalation chain, which makes it the way to
// report failures from goroutines the middleware started itself.
func (c *Context) Emit(ev Event, err error) {
	if ev == EventError {
		c.onerror(err)
		return
	}

	c.emit(ev, err)
}

func (c *Context) emit(ev Event, err error) {
	c.mu.Lock()
	ls := append([]Listener(nil), c.listeners[ev]...)
	c.mu.Unlock()

	for _, l := range ls {
		l(c, err)
	}
}

// Go runs fn in the background. The default pre-end handler waits for all of them before the response is
// committed, and the first error is escalated.
func (c *Context) Go(fn func(ctx context.Context) error) {
	c.mu.Lock()
	if c.group == nil {
		c.group = new(errgroup.Group)
	}
	g := c.group
	c.mu.Unlock()

	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = panicError(r)
			}
		}()

		return fn(c)
	})
}

// Yield waits for the background work started with [Context.Go]. It is seeded as the first pre-end handler of
// every context.
func Yield(c *Context) error {
	c.mu.Lock()
	g := c.group
	c.group = nil
	c.mu.Unlock()

	if g == nil {
		return nil
	}

	return g.Wait()
}

func (c *Context) setResult(res Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastValue = res.Value
}

func (c *Context) pushResult(err error) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	res := Result{Value: c.lastValue, Err: err}
	c.lastValue = nil
	c.results = append(c.results, res)

	return res
}

func (c *Context) respondMode() (suppress bool, fn Responder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.suppress, c.responder
}

// panicError turns a recovered panic value into an error.
func panicError(r any) error {
	if err, ok := r.(error); ok {
		return errors.WithStack(err)
	}

	return errors.Newf("panic: %v", r)
}
