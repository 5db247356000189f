package bflow

import (
	"context"
	"net"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
)

// DefaultAbortStatus is the status a stopped request gets when nothing else set one.
const DefaultAbortStatus = http.StatusTeapot

// ErrorHandler intercepts errors of a request before they are turned into a response. Returning nil keeps err,
// returning [ErrHandled] finalizes the response as-is and any other error replaces err. A panic replaces err with
// the panic value.
type ErrorHandler func(c *Context, err error) error

// DebugFunc is called after every middleware unit with its result.
type DebugFunc func(c *Context, res Result)

// StopHandler shapes the response of a request whose chain was stopped. The pre-end handlers and the responder
// always run after it.
type StopHandler func(c *Context, sig *StopSignal)

// App holds the middleware chain and the configuration shared by all requests. It is safe to call [App.Use] and
// [App.SetConfig] while requests are served: every request works on a snapshot.
type App struct {
	mu     sync.Mutex
	chain  atomic.Pointer[[]Middleware]
	config atomic.Pointer[Config]

	main         Middleware
	logs         Logger
	errorHandler ErrorHandler
	debug        DebugFunc
	stopHandler  StopHandler
	timeout      time.Duration
	abortStatus  int
}

// Option configures an App.
type Option func(*App)

// WithMainHandler sets the unit that runs after all middleware. It panics when unit is not a middleware unit.
func WithMainHandler(unit any) Option {
	mw := MustAdapt(unit)
	return func(a *App) { a.main = mw }
}

// WithErrorHandler sets the per-request error handler.
func WithErrorHandler(h ErrorHandler) Option {
	return func(a *App) { a.errorHandler = h }
}

// WithDebug sets a hook that observes the result of every unit.
func WithDebug(fn DebugFunc) Option {
	return func(a *App) { a.debug = fn }
}

// WithStopHandler replaces the default handling of stopped requests.
func WithStopHandler(h StopHandler) Option {
	return func(a *App) { a.stopHandler = h }
}

// WithLogger sets the logger of the app-level error sink.
func WithLogger(l Logger) Option {
	return func(a *App) { a.logs = l }
}

// WithConfig sets the initial configuration.
func WithConfig(cfg Config) Option {
	return func(a *App) { a.config.Store(&cfg) }
}

// WithTimeout stops every request that did not finish its middleware chain within d.
func WithTimeout(d time.Duration) Option {
	return func(a *App) { a.timeout = d }
}

// WithAbortStatus sets the status of stopped requests, see [DefaultAbortStatus].
func WithAbortStatus(code int) Option {
	return func(a *App) { a.abortStatus = code }
}

// New creates an app.
func New(opts ...Option) *App {
	a := &App{
		logs:        NewStdLogger(nil),
		abortStatus: DefaultAbortStatus,
	}

	cfg := DefaultConfig()
	a.config.Store(&cfg)
	a.chain.Store(&[]Middleware{})

	for _, opt := range opts {
		opt(a)
	}

	if a.stopHandler == nil {
		a.stopHandler = a.defaultStop
	}

	return a
}

// Use appends middleware units to the chain. It panics with an error wrapping [ErrUsage] when a value is not a
// middleware unit, so mistakes surface at registration instead of at request time.
func (a *App) Use(units ...any) *App {
	mws := make([]Middleware, 0, len(units))
	for _, u := range units {
		mws = append(mws, MustAdapt(u))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	next := slices.Concat(*a.chain.Load(), mws)
	a.chain.Store(&next)

	return a
}

// Middleware returns a copy of the registered chain.
func (a *App) Middleware() []Middleware {
	return slices.Clone(*a.chain.Load())
}

// Config returns a copy of the app configuration.
func (a *App) Config() Config {
	return *a.config.Load()
}

// SetConfig updates the configuration. Requests already being served keep the configuration they started with.
func (a *App) SetConfig(fn func(*Config)) {
	a.mu.Lock()
	defer a.mu.Unlock()

	next := *a.config.Load()
	fn(&next)
	a.config.Store(&next)
}

// ServeHTTP dispatches a request through the chain. It makes the app implement http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c := newContext(a, w, r)
	defer c.finish()

	chain := *a.chain.Load()
	if a.main != nil {
		chain = append(slices.Clip(chain), a.main)
	}

	c.run(chain)
}

// Listen binds addr and serves the app in the background. The returned server can be used to shut it down.
func (a *App) Listen(addr string) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen on %q", addr)
	}

	srv := a.Server(ln.Addr().String())
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logs.LogSystemError(errors.Wrap(err, "serve"))
		}
	}()

	return srv, nil
}

// Serve serves the app on l until the listener fails or ctx is done.
func (a *App) Serve(ctx context.Context, l net.Listener) error {
	srv := a.Server(l.Addr().String())

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "serve")
	}

	return nil
}

// Server returns an http.Server for the app.
func (a *App) Server(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           a,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// onerror is the app-level sink. Client-class and exposed errors are deliberate responses; everything else is a
// system failure and gets logged.
func (a *App) onerror(err error) {
	if err == nil || IsExposed(err) {
		return
	}

	// a missing file answers 404 but carries no status of its own, so it is still logged
	if code := int(CodeOf(err)); code >= 100 && code < http.StatusInternalServerError {
		return
	}

	a.logs.LogSystemError(err)
}

func (a *App) defaultStop(c *Context, sig *StopSignal) {
	if c.Status() != http.StatusNotFound {
		return
	}

	c.SetStatus(a.abortStatus)
	c.SetMessage(sig.Message)
}
