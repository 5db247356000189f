package example_test

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/advdv/bflow"
	"github.com/advdv/bflow/internal/example"
	"github.com/stretchr/testify/require"
)

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logs := slog.New(slog.NewTextHandler(&buf, nil))

	app := bflow.New().Use(example.Middleware(logs), func(c *bflow.Context) {
		example.Log(c).Info("hello")
		c.SetBody("ok")
	})

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/items", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, buf.String(), "msg=hello method=POST path=/items")
}

func TestLogWithoutMiddleware(t *testing.T) {
	var logs *slog.Logger
	app := bflow.New().Use(func(c *bflow.Context) { logs = example.Log(c) })
	app.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Nil(t, logs)
}
