package bserve

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/advdv/bflow"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newRecorder() *httptest.ResponseRecorder { return httptest.NewRecorder() }

func newRequest() *http.Request { return httptest.NewRequest(http.MethodGet, "/items", nil) }

func observed(units ...any) (*bflow.App, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := zap.New(core)

	app := bflow.New(bflow.WithLogger(NewZapLogger(l))).Use(WithLogger(l), RequestID(), AccessLog())
	return app.Use(units...), logs
}

func TestRequestIDGenerated(t *testing.T) {
	var id string
	app, logs := observed(func(c *bflow.Context) {
		id = RequestIDOf(c)
		Log(c).Info("handling")
		c.SetBody("ok")
	})

	rec := newRecorder()
	app.ServeHTTP(rec, newRequest())

	_, err := uuid.Parse(id)
	require.NoError(t, err)
	require.Equal(t, id, rec.Header().Get(HeaderRequestID))

	handling := logs.FilterMessage("handling").All()
	require.Len(t, handling, 1)
	require.Equal(t, id, handling[0].ContextMap()["request_id"])
}

func TestRequestIDFromClient(t *testing.T) {
	app, _ := observed(func(c *bflow.Context) { c.SetBody(RequestIDOf(c)) })

	req := newRequest()
	req.Header.Set(HeaderRequestID, "client-id-1")
	rec := newRecorder()
	app.ServeHTTP(rec, req)
	require.Equal(t, "client-id-1", rec.Body.String())

	req = newRequest()
	req.Header.Set(HeaderRequestID, strings.Repeat("x", maxRequestIDLen+1))
	rec = newRecorder()
	app.ServeHTTP(rec, req)
	require.NotContains(t, rec.Body.String(), "xxx")
}

func TestAccessLog(t *testing.T) {
	app, logs := observed(func(c *bflow.Context) { c.SetBody("four") })
	app.ServeHTTP(newRecorder(), newRequest())

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	require.Equal(t, zapcore.InfoLevel, entries[0].Level)

	fields := entries[0].ContextMap()
	require.Equal(t, "GET", fields["method"])
	require.Equal(t, "/items", fields["path"])
	require.Equal(t, int64(200), fields["status"])
	require.Equal(t, int64(4), fields["size"])
	require.IsType(t, time.Duration(0), fields["duration"])
}

func TestAccessLogServerError(t *testing.T) {
	app, logs := observed(func(*bflow.Context) error { return errors.New("boom") })
	app.ServeHTTP(newRecorder(), newRequest())

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	require.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	require.Equal(t, int64(500), entries[0].ContextMap()["status"])
	require.Equal(t, 1, logs.FilterMessage("system error").Len())
}

func TestLogWithoutMiddleware(t *testing.T) {
	app := bflow.New().Use(func(c *bflow.Context) {
		require.Panics(t, func() { Log(c) })
		c.SetBody("ok")
	})

	rec := newRecorder()
	app.ServeHTTP(rec, newRequest())
	require.Equal(t, http.StatusOK, rec.Code)
}
