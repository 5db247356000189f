package bserve

import (
	"net/http"

	"github.com/advdv/bflow"
	"github.com/carlmjohnson/requests"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// NewHTTPTransport creates the RoundTripper for outbound calls made while serving a request. Calls are traced as
// child spans of the request and carry its X-Request-Id. The TracerProvider and Propagator are injected, no globals.
func NewHTTPTransport(tp trace.TracerProvider, prop propagation.TextMapPropagator) http.RoundTripper {
	return RequestIDTransport(otelhttp.NewTransport(http.DefaultTransport,
		otelhttp.WithTracerProvider(tp),
		otelhttp.WithPropagators(prop),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "outbound " + r.Method + " " + r.URL.Host
		}),
	))
}

// NewHTTPClient creates an *http.Client on t.
func NewHTTPClient(t http.RoundTripper) *http.Client {
	return &http.Client{Transport: t}
}

// RequestIDTransport sets the X-Request-Id header on outbound requests whose context derives from a flow context
// that went through [RequestID]. A header set by the caller wins.
func RequestIDTransport(next http.RoundTripper) http.RoundTripper {
	return requestIDTransport{next: next}
}

type requestIDTransport struct {
	next http.RoundTripper
}

func (t requestIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get(HeaderRequestID) != "" {
		return t.next.RoundTrip(req)
	}

	c, ok := bflow.FromContext(req.Context())
	if !ok {
		return t.next.RoundTrip(req)
	}

	id := RequestIDOf(c)
	if id == "" {
		return t.next.RoundTrip(req)
	}

	req = req.Clone(req.Context())
	req.Header.Set(HeaderRequestID, id)

	return t.next.RoundTrip(req)
}

func newRequestBuilder(t http.RoundTripper) *requests.Builder {
	return requests.New().Transport(t)
}
