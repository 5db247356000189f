// Package bserve provides a batteries-included runtime for serving a [bflow.App].
//
// # Overview
//
// bserve handles the boilerplate around a bflow app: environment parsing, structured logging, OpenTelemetry
// tracing, request ids, access logs, server timeouts and graceful shutdown. A complete service can be created in a
// single call:
//
//	bserve.NewApp[Env](func(app *bflow.App, items *Items) {
//	    app.Use(items)
//	},
//	    bserve.WithFx(fx.Provide(NewItems)),
//	).Run()
//
// # Environment Configuration
//
// Define your environment by embedding [BaseEnvironment]:
//
//	type Env struct {
//	    bserve.BaseEnvironment
//	    CatalogURL string `env:"CATALOG_URL,required"`
//	}
//
// BaseEnvironment provides the following environment variables:
//
//	| Variable                | Required | Default     | Description                                   |
//	|-------------------------|----------|-------------|-----------------------------------------------|
//	| BFLOW_SERVICE_NAME      | Yes      | -           | Service name for logging and tracing          |
//	| BFLOW_PORT              | No       | 8080        | Port the HTTP server listens on               |
//	| BFLOW_HEALTH_PATH       | No       | /healthz    | Health check endpoint path                    |
//	| BFLOW_LOG_LEVEL         | No       | info        | Log level (debug, info, warn, error)          |
//	| BFLOW_OTEL_EXPORTER     | No       | stdout      | Trace exporter: "stdout" or "none"            |
//	| BFLOW_REQUEST_TIMEOUT   | No       | 30s         | Time a request's middleware chain may take    |
//	| BFLOW_SHUTDOWN_TIMEOUT  | No       | 10s         | Time in-flight requests get on shutdown       |
//	| BFLOW_PROXY             | No       | false       | Trust X-Forwarded-* headers                   |
//	| BFLOW_ENV               | No       | development | Deployment environment name                   |
//	| BFLOW_SUBDOMAIN_OFFSET  | No       | 2           | Host parts to skip when computing subdomains  |
//	| BFLOW_POWERED_BY        | No       | bflow       | X-Powered-By header value, empty disables it  |
//
// # Middleware
//
// Every request first runs through the middleware bserve registers itself, in this order:
//
//   - [WithLogger] makes the app's zap logger available through [Log]
//   - [RequestID] assigns a request id and adds it to the logger
//   - [AccessLog] logs the request once its response was committed
//
// The setup function passed to [NewApp] registers the application's units after those.
//
// # Logging and Tracing
//
// [Log] returns the request's logger with trace_id and span_id fields when the request is traced. [Span] returns
// the current span. Errors the app could not turn into a deliberate response are logged by the zap adapter
// returned from [NewZapLogger].
//
// # Outbound Requests
//
// [Runtime.NewRequest] returns a [requests.Builder] whose transport creates child spans and propagates the trace
// context and the request id.
package bserve
