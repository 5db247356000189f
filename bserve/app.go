package bserve

import (
	"context"
	"net/http"

	"github.com/advdv/bflow"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// App wraps an fx.App for lifecycle management.
type App struct {
	app *fx.App
}

// AppConfig holds configuration for the app.
type AppConfig struct {
	ServerConfig
	FxOptions []fx.Option
}

// Option configures the App.
type Option func(*AppConfig)

// WithFx adds fx options for dependency injection.
func WithFx(fxOpts ...fx.Option) Option {
	return func(c *AppConfig) {
		c.FxOptions = append(c.FxOptions, fxOpts...)
	}
}

// WithHealthHandler sets a custom health check handler.
// If not set, a default handler returning 200 OK is used.
func WithHealthHandler(h func(http.ResponseWriter, *http.Request)) Option {
	return func(c *AppConfig) {
		c.HealthHandler = h
	}
}

// FxOptions returns the fx options that make up the app's dependency graph. [NewApp] and the bservetest package
// build on it.
func FxOptions[E Environment](setup any, opts ...Option) []fx.Option {
	var cfg AppConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	baseOpts := make([]fx.Option, 0, 12+len(cfg.FxOptions))
	baseOpts = append(baseOpts, []fx.Option{
		fx.NopLogger,
		fx.Provide(ParseEnv[E]()),
		fx.Provide(func(e E) Environment { return e }),
		fx.Provide(func(e E) (*zap.Logger, error) { return NewLogger(e) }),
		fx.Provide(NewTracerProvider),
		fx.Provide(NewPropagator),
		fx.Provide(NewFlow),
		fx.Supply(cfg.ServerConfig),
		fx.Provide(NewServer),
		fx.Provide(func(e E, flow *bflow.App, tp trace.TracerProvider, prop propagation.TextMapPropagator) *Runtime[E] {
			return NewRuntime(e, flow, RuntimeParams{Transport: NewHTTPTransport(tp, prop)})
		}),
		fx.Invoke(startServerHook),
		fx.Invoke(setup),
	}...)

	return append(baseOpts, cfg.FxOptions...)
}

// NewApp creates a batteries-included app with dependency injection.
//
// The setup function can request any types that are provided via fx options.
// At minimum, it should accept *bflow.App to register middleware.
//
// Example:
//
//	bserve.NewApp[Env](func(app *bflow.App, items *Items) {
//	    app.Use(items)
//	},
//	    bserve.WithFx(fx.Provide(NewItems)),
//	).Run()
func NewApp[E Environment](setup any, opts ...Option) *App {
	return &App{
		app: fx.New(FxOptions[E](setup, opts...)...),
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() {
	a.app.Run()
}

// Start starts the application with the given context.
func (a *App) Start(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.app.StopTimeout())
	defer cancel()

	return a.app.Stop(stopCtx)
}

// Err returns an error the dependency graph could not be built with.
func (a *App) Err() error {
	return a.app.Err()
}
