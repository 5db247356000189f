package bflow

import (
	"mime"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// Request is the request view of a [Context].
type Request struct {
	ctx *Context
	res *Response

	// Req is the raw request handed over by the transport.
	Req *http.Request
}

// Context returns the owning context.
func (r *Request) Context() *Context { return r.ctx }

// Response returns the sibling response view.
func (r *Request) Response() *Response { return r.res }

// Header returns the request header map.
func (r *Request) Header() http.Header { return r.Req.Header }

// Get returns a request header. "Referer" and "Referrer" are interchangeable.
func (r *Request) Get(name string) string {
	switch strings.ToLower(name) {
	case "referer", "referrer":
		if v := r.Req.Header.Get("Referrer"); v != "" {
			return v
		}

		return r.Req.Header.Get("Referer")
	case "host":
		return r.Req.Host
	}

	return r.Req.Header.Get(name)
}

// Method returns the request method.
func (r *Request) Method() string { return r.Req.Method }

// URL returns the request URL.
func (r *Request) URL() *url.URL { return r.Req.URL }

// Path returns the request path.
func (r *Request) Path() string { return r.Req.URL.Path }

// Query returns the parsed query string.
func (r *Request) Query() url.Values { return r.Req.URL.Query() }

// Host returns the host including the port. When the app trusts a proxy, X-Forwarded-Host takes precedence.
func (r *Request) Host() string {
	host := ""
	if r.ctx.Config.Proxy {
		host = firstOfList(r.Req.Header.Get("X-Forwarded-Host"))
	}

	if host == "" {
		host = r.Req.Host
	}

	if host == "" {
		host = r.Req.Header.Get("Host")
	}

	return host
}

// Hostname returns the host without the port.
func (r *Request) Hostname() string {
	host := r.Host()
	if host == "" {
		return ""
	}

	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}

	// IPv6 literal without port
	return strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
}

// Protocol returns "https" or "http". When the app trusts a proxy, X-Forwarded-Proto is honoured.
func (r *Request) Protocol() string {
	if r.Req.TLS != nil {
		return "https"
	}

	if !r.ctx.Config.Proxy {
		return "http"
	}

	if proto := firstOfList(r.Req.Header.Get("X-Forwarded-Proto")); proto != "" {
		return strings.ToLower(proto)
	}

	return "http"
}

// Secure reports whether the request was made over TLS.
func (r *Request) Secure() bool { return r.Protocol() == "https" }

// IPs returns the X-Forwarded-For addresses when the app trusts a proxy.
func (r *Request) IPs() []string {
	if !r.ctx.Config.Proxy {
		return nil
	}

	parts := strings.Split(r.Req.Header.Get("X-Forwarded-For"), ",")

	return lo.FilterMap(parts, func(p string, _ int) (string, bool) {
		p = strings.TrimSpace(p)
		return p, p != ""
	})
}

// IP returns the client address: the first forwarded address when proxied, the remote address otherwise.
func (r *Request) IP() string {
	if ips := r.IPs(); len(ips) > 0 {
		return ips[0]
	}

	host, _, err := net.SplitHostPort(r.Req.RemoteAddr)
	if err != nil {
		return r.Req.RemoteAddr
	}

	return host
}

// Subdomains returns the subdomains of the host, least specific first, skipping Config.SubdomainOffset parts. For
// "tobi.ferrets.example.com" that is ["ferrets", "tobi"].
func (r *Request) Subdomains() []string {
	host := r.Hostname()
	if host == "" || net.ParseIP(host) != nil {
		return []string{}
	}

	parts := lo.Reverse(strings.Split(host, "."))
	offset := r.ctx.Config.SubdomainOffset
	if offset >= len(parts) {
		return []string{}
	}

	return parts[offset:]
}

var idempotentMethods = []string{
	http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions, http.MethodTrace,
}

// Idempotent reports whether the request method is idempotent.
func (r *Request) Idempotent() bool {
	return lo.Contains(idempotentMethods, r.Req.Method)
}

// Type returns the request content type void of parameters.
func (r *Request) Type() string {
	ct := r.Req.Header.Get("Content-Type")
	if ct == "" {
		return ""
	}

	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.TrimSpace(strings.Split(ct, ";")[0])
	}

	return mt
}

// Length returns the request content length, or -1 when unknown.
func (r *Request) Length() int64 {
	if n, err := strconv.ParseInt(r.Req.Header.Get("Content-Length"), 10, 64); err == nil {
		return n
	}

	if r.Req.ContentLength > 0 {
		return r.Req.ContentLength
	}

	return -1
}

func firstOfList(v string) string {
	first, _, _ := strings.Cut(v, ",")
	return strings.TrimSpace(first)
}
