package bserve

import (
	"net/http"

	"github.com/advdv/bflow"
	"github.com/carlmjohnson/requests"
)

// Runtime provides access to app-scoped dependencies.
// Inject this into middleware constructors via fx instead of pulling from the request state.
//
// Example:
//
//	type Items struct {
//	    rt *bserve.Runtime[Env]
//	}
//
//	func NewItems(rt *bserve.Runtime[Env]) *Items {
//	    return &Items{rt: rt}
//	}
//
//	func (h *Items) ServeFlow(c *bflow.Context) error {
//	    var item Item
//	    err := h.rt.NewRequest(c).
//	        BaseURL(h.rt.Env().CatalogURL).
//	        Path(c.Path()).
//	        ToJSON(&item).
//	        Fetch(c)
//	    // ...
//	}
type Runtime[E Environment] struct {
	env       E
	flow      *bflow.App
	transport http.RoundTripper
}

// RuntimeParams holds optional dependencies for Runtime.
type RuntimeParams struct {
	Transport http.RoundTripper
}

// NewRuntime creates a new Runtime with the given dependencies.
func NewRuntime[E Environment](env E, flow *bflow.App, params RuntimeParams) *Runtime[E] {
	transport := params.Transport
	if transport == nil {
		transport = RequestIDTransport(http.DefaultTransport)
	}

	return &Runtime[E]{
		env:       env,
		flow:      flow,
		transport: transport,
	}
}

// Env returns the environment configuration.
func (r *Runtime[E]) Env() E {
	return r.env
}

// Flow returns the app serving the requests.
func (r *Runtime[E]) Flow() *bflow.App {
	return r.flow
}

// NewRequest returns a request builder for an outbound call made on behalf of c. It carries the request id of c
// even when fetched with an unrelated context; fetch it with c so the call is also traced as a child of the
// request's span.
func (r *Runtime[E]) NewRequest(c *bflow.Context) *requests.Builder {
	b := newRequestBuilder(r.transport)
	if id := RequestIDOf(c); id != "" {
		b = b.Header(HeaderRequestID, id)
	}

	return b
}
