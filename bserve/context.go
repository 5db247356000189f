package bserve

import (
	"context"
	"time"

	"github.com/advdv/bflow"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// HeaderRequestID carries the request id, both inbound and outbound.
const HeaderRequestID = "X-Request-Id"

// maxRequestIDLen bounds the length of request ids taken from the client.
const maxRequestIDLen = 128

// state keys of the values bserve stores on a context.
const (
	stateKeyLogger    = "bserve.logger"
	stateKeyRequestID = "bserve.request_id"
)

// WithLogger returns middleware that makes logs available to later units through [Log].
func WithLogger(logs *zap.Logger) bflow.Func {
	return func(c *bflow.Context) error {
		c.State[stateKeyLogger] = logs
		return nil
	}
}

// RequestID returns middleware that assigns every request an id. A well-formed id sent by the client is kept,
// otherwise a random one is generated. The id is echoed in the response and added to the request's logger.
func RequestID() bflow.Func {
	return func(c *bflow.Context) error {
		id := c.Get(HeaderRequestID)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}

		c.State[stateKeyRequestID] = id
		c.Set(HeaderRequestID, id)

		if logs, ok := c.State[stateKeyLogger].(*zap.Logger); ok {
			c.State[stateKeyLogger] = logs.With(zap.String("request_id", id))
		}

		return nil
	}
}

// RequestIDOf returns the id [RequestID] assigned to the request, or an empty string.
func RequestIDOf(c *bflow.Context) string {
	id, _ := c.State[stateKeyRequestID].(string)
	return id
}

// AccessLog returns middleware that logs every request once its response was committed.
func AccessLog() bflow.Func {
	return func(c *bflow.Context) error {
		start := time.Now()
		logs := Log(c)

		c.On(bflow.EventEnd, func(c *bflow.Context, _ error) {
			status := c.Writer().Status()
			fields := []zap.Field{
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Int("status", status),
				zap.Int64("size", c.Writer().Size()),
				zap.Duration("duration", time.Since(start)),
			}

			if status >= 500 {
				logs.Error("request", fields...)
				return
			}

			logs.Info("request", fields...)
		})

		return nil
	}
}

// Log returns a trace-correlated zap logger for the request.
func Log(c *bflow.Context) *zap.Logger {
	logs, ok := c.State[stateKeyLogger].(*zap.Logger)
	if !ok {
		panic("bserve: logger not found in request state; is the middleware configured?")
	}
	return logs.With(traceFields(c)...)
}

// Span returns the current trace span from the context.
func Span(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// traceFields extracts trace_id and span_id from the context for log correlation.
func traceFields(ctx context.Context) []zap.Field {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return nil
	}
	sc := span.SpanContext()
	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}
