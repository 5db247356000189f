package bflow_test

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/advdv/bflow"
	"github.com/stretchr/testify/require"
)

// within runs fn as the only unit of a request to app.
func within(t *testing.T, app *bflow.App, req *http.Request, fn func(c *bflow.Context)) *httptest.ResponseRecorder {
	t.Helper()

	var ran bool
	app.Use(func(c *bflow.Context) {
		ran = true
		fn(c)
	})

	rec := serve(app, req)
	require.True(t, ran)

	return rec
}

func proxied() *bflow.App {
	return bflow.New(bflow.WithConfig(bflow.Config{Proxy: true, SubdomainOffset: 2}))
}

func TestContextImplementsContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	within(t, bflow.New(), req, func(c *bflow.Context) {
		require.NoError(t, c.Err())
		require.Nil(t, c.Value("missing"))
		require.Same(t, c, c.Request().Context())
		require.Same(t, c, c.Response().Context())
		require.Same(t, c.Response(), c.Request().Response())
		require.Same(t, c.Request(), c.Response().Request())
		require.Same(t, req, c.Req())
		require.Equal(t, "/", c.OriginalURL)
	})
}

func TestFromContext(t *testing.T) {
	within(t, bflow.New(), httptest.NewRequest(http.MethodGet, "/", nil), func(c *bflow.Context) {
		derived, cancel := context.WithCancel(c)
		defer cancel()

		found, ok := bflow.FromContext(derived)
		require.True(t, ok)
		require.Same(t, c, found)
	})

	_, ok := bflow.FromContext(t.Context())
	require.False(t, ok)
}

func TestRequestHost(t *testing.T) {
	t.Run("plain", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Host = "foo.com:3000"
		req.Header.Set("X-Forwarded-Host", "bar.com")

		within(t, bflow.New(), req, func(c *bflow.Context) {
			require.Equal(t, "foo.com:3000", c.Request().Host())
			require.Equal(t, "foo.com", c.Request().Hostname())
			require.Equal(t, "foo.com:3000", c.Get("Host"))
		})
	})

	t.Run("proxied", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Host = "foo.com"
		req.Header.Set("X-Forwarded-Host", "bar.com, baz.com")

		within(t, proxied(), req, func(c *bflow.Context) {
			require.Equal(t, "bar.com", c.Request().Host())
			require.Equal(t, "bar.com", c.Request().Hostname())
		})
	})

	t.Run("ipv6", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Host = "[::1]:8080"

		within(t, bflow.New(), req, func(c *bflow.Context) {
			require.Equal(t, "::1", c.Request().Hostname())
			require.Empty(t, c.Request().Subdomains())
		})
	})
}

func TestRequestProtocol(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https, http")

	within(t, bflow.New(), req, func(c *bflow.Context) {
		require.Equal(t, "http", c.Request().Protocol())
		require.False(t, c.Request().Secure())
	})

	within(t, proxied(), req, func(c *bflow.Context) {
		require.Equal(t, "https", c.Request().Protocol())
		require.True(t, c.Request().Secure())
	})

	tlsReq := httptest.NewRequest(http.MethodGet, "/", nil)
	tlsReq.TLS = &tls.ConnectionState{}
	within(t, bflow.New(), tlsReq, func(c *bflow.Context) {
		require.True(t, c.Request().Secure())
	})
}

func TestRequestIPs(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.9:1234"
	req.Header.Set("X-Forwarded-For", "127.0.0.1, , 127.0.0.2")

	within(t, bflow.New(), req, func(c *bflow.Context) {
		require.Empty(t, c.Request().IPs())
		require.Equal(t, "10.0.0.9", c.Request().IP())
	})

	within(t, proxied(), req, func(c *bflow.Context) {
		require.Equal(t, []string{"127.0.0.1", "127.0.0.2"}, c.Request().IPs())
		require.Equal(t, "127.0.0.1", c.Request().IP())
	})
}

func TestRequestSubdomains(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "tobi.ferrets.example.com"

	within(t, bflow.New(), req, func(c *bflow.Context) {
		require.Equal(t, []string{"ferrets", "tobi"}, c.Request().Subdomains())

		c.Config.SubdomainOffset = 3
		require.Equal(t, []string{"tobi"}, c.Request().Subdomains())

		c.Config.SubdomainOffset = 10
		require.Empty(t, c.Request().Subdomains())
	})
}

func TestRequestIdempotent(t *testing.T) {
	for method, exp := range map[string]bool{
		http.MethodGet:    true,
		http.MethodHead:   true,
		http.MethodPut:    true,
		http.MethodDelete: true,
		http.MethodPost:   false,
		http.MethodPatch:  false,
	} {
		within(t, bflow.New(), httptest.NewRequest(method, "/", nil), func(c *bflow.Context) {
			require.Equal(t, exp, c.Request().Idempotent(), method)
		})
	}
}

func TestRequestHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/items?q=1&q=2", strings.NewReader("abc"))
	req.Header.Set("Content-Type", "text/html; charset=utf-8")
	req.Header.Set("Referer", "http://example.com")

	within(t, bflow.New(), req, func(c *bflow.Context) {
		require.Equal(t, "text/html", c.Request().Type())
		require.Equal(t, int64(3), c.Request().Length())
		require.Equal(t, "http://example.com", c.Get("Referrer"))
		require.Equal(t, "http://example.com", c.Get("referer"))
		require.Equal(t, []string{"1", "2"}, c.Request().Query()["q"])
		require.Equal(t, "/items", c.Path())
		require.Equal(t, http.MethodPost, c.Method())
	})

	within(t, bflow.New(), httptest.NewRequest(http.MethodGet, "/", nil), func(c *bflow.Context) {
		require.Empty(t, c.Request().Type())
		require.Equal(t, int64(-1), c.Request().Length())
	})
}

func TestResponseStatus(t *testing.T) {
	within(t, bflow.New(), httptest.NewRequest(http.MethodGet, "/", nil), func(c *bflow.Context) {
		require.Equal(t, http.StatusNotFound, c.Status())
		require.Equal(t, "Not Found", c.Message())

		c.SetStatus(http.StatusCreated)
		require.Equal(t, "Created", c.Message())

		c.SetMessage("made it")
		require.Equal(t, "made it", c.Message())

		require.Panics(t, func() { c.SetStatus(99) })
		require.Panics(t, func() { c.SetStatus(1000) })
		require.Equal(t, http.StatusCreated, c.Status())
	})
}

func TestResponseBodyStatus(t *testing.T) {
	within(t, bflow.New(), httptest.NewRequest(http.MethodGet, "/", nil), func(c *bflow.Context) {
		c.SetBody("x")
		require.Equal(t, http.StatusOK, c.Status())

		c.SetStatus(http.StatusNotModified)
		require.Nil(t, c.Body())

		c.SetBody("y")
		require.Equal(t, http.StatusNotModified, c.Status(), "explicit status is kept")
	})
}

func TestResponseType(t *testing.T) {
	within(t, bflow.New(), httptest.NewRequest(http.MethodGet, "/", nil), func(c *bflow.Context) {
		c.SetType("json")
		require.Equal(t, "application/json", c.Type())

		c.SetType("png")
		require.Equal(t, "image/png", c.Type())

		c.SetType(".css")
		require.Equal(t, "text/css", c.Type())

		c.SetType("application/vnd.api+json")
		require.Equal(t, "application/vnd.api+json", c.Type())

		c.SetType("no-such-ext")
		require.Empty(t, c.Type())

		c.SetType("xml")
		c.SetBody("<a/>")
		require.Equal(t, "text/xml", c.Type(), "body keeps an explicit type")

		c.SetLength(4)
		require.Equal(t, int64(4), c.Length())
	})
}

func TestResponseETag(t *testing.T) {
	within(t, bflow.New(), httptest.NewRequest(http.MethodGet, "/", nil), func(c *bflow.Context) {
		c.Response().SetETag("abc")
		require.Equal(t, `"abc"`, c.Response().ETag())

		c.Response().SetETag(`W/"abc"`)
		require.Equal(t, `W/"abc"`, c.Response().ETag())

		c.Response().SetETag(`"quoted"`)
		require.Equal(t, `"quoted"`, c.Response().ETag())
	})
}

func TestResponseInspect(t *testing.T) {
	within(t, bflow.New(), httptest.NewRequest(http.MethodGet, "/", nil), func(c *bflow.Context) {
		c.SetBody(map[string]string{"a": "b"})
		c.Set("X-Trace", "1")

		snap := c.Response().Inspect()
		require.NotNil(t, snap)
		require.Equal(t, http.StatusOK, snap.Status)
		require.Equal(t, "OK", snap.Message)
		require.Equal(t, "1", snap.Header.Get("X-Trace"))
		require.Equal(t, map[string]string{"a": "b"}, snap.Body)

		c.Set("X-Trace", "2")
		require.Equal(t, "1", snap.Header.Get("X-Trace"), "snapshot is a copy")
	})

	var res *bflow.Response
	require.Nil(t, res.Inspect())
}

func TestWritable(t *testing.T) {
	var after *bflow.Context
	within(t, bflow.New(), httptest.NewRequest(http.MethodGet, "/", nil), func(c *bflow.Context) {
		require.True(t, c.Writable())
		require.False(t, c.Ended())
		after = c
	})

	require.False(t, after.Writable())
	require.True(t, after.Ended())
	require.True(t, after.Finished())
	require.Error(t, after.Err(), "context is released after the request")

	_, err := after.Writer().Write([]byte("late"))
	require.ErrorIs(t, err, bflow.ErrFinished)

	after.Set("X-Late", "v")
	require.Empty(t, after.Response().Get("X-Late"), "header edits after the request are dropped")
}
