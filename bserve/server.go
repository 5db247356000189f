package bserve

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/advdv/bflow"
	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ServerConfig holds optional configuration for the HTTP server.
type ServerConfig struct {
	HealthHandler func(http.ResponseWriter, *http.Request)
}

// FlowParams holds the dependencies for creating the bflow app.
type FlowParams struct {
	fx.In

	Env    Environment
	Logger *zap.Logger
}

// NewFlow creates the bflow app that serves all requests. It logs system errors to the zap logger and stops requests
// after BFLOW_REQUEST_TIMEOUT.
func NewFlow(params FlowParams) *bflow.App {
	app := bflow.New(
		bflow.WithLogger(NewZapLogger(params.Logger)),
		bflow.WithConfig(params.Env.flowConfig()),
		bflow.WithTimeout(params.Env.requestTimeout()),
	)

	return app.Use(WithLogger(params.Logger), RequestID(), AccessLog())
}

// ServerParams holds the dependencies for creating an HTTP server.
type ServerParams struct {
	fx.In

	Env        Environment
	Flow       *bflow.App
	TracerProv trace.TracerProvider
	Propagator propagation.TextMapPropagator
}

// NewServer creates an HTTP server that serves the flow app and the health endpoint.
func NewServer(params ServerParams, cfg ServerConfig) *http.Server {
	// The health endpoint is called by load balancers and orchestrators to determine if the app is ready. It is
	// served outside of the middleware chain and is not traced.
	healthPath := params.Env.healthPath()
	healthHandler := cfg.HealthHandler
	if healthHandler == nil {
		healthHandler = defaultHealthHandler
	}

	mux := http.NewServeMux()
	mux.HandleFunc(healthPath, healthHandler)
	mux.Handle("/", params.Flow)

	// Add tracing with explicit provider injection (no globals).
	handler := withTracing(params.TracerProv, params.Propagator, params.Env.serviceName(), healthPath)(mux)

	tc := TimeoutConfig{RequestTimeout: params.Env.requestTimeout()}
	readHeaderTimeout, readTimeout, writeTimeout, idleTimeout := tc.ServerTimeouts()

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", params.Env.port()),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}

// startServerHook registers lifecycle hooks for the HTTP server. The listener is bound on start so that a port that
// is taken fails the app instead of a background goroutine.
func startServerHook(lc fx.Lifecycle, server *http.Server, env Environment, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := new(net.ListenConfig).Listen(ctx, "tcp", server.Addr)
			if err != nil {
				return errors.Wrapf(err, "failed to listen on %q", server.Addr)
			}

			logger.Info("starting server", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping server")

			ctx, cancel := context.WithTimeout(ctx, env.shutdownTimeout())
			defer cancel()

			return server.Shutdown(ctx)
		},
	})
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}
