package bservetest

import (
	"strconv"
	"testing"
)

// Env provides a chainable builder for setting [bserve.BaseEnvironment] env vars
// via t.Setenv. Create one with [SetBaseEnv].
type Env struct {
	t testing.TB
}

// SetBaseEnv sets all [bserve.BaseEnvironment] env vars to sensible test defaults.
// Port is required because each test must use a unique port to avoid collisions.
//
// Defaults:
//   - BFLOW_SERVICE_NAME: "test"
//   - BFLOW_HEALTH_PATH: "/health"
//   - BFLOW_LOG_LEVEL: "debug"
//   - BFLOW_OTEL_EXPORTER: "none"
//   - BFLOW_REQUEST_TIMEOUT: "5s"
//   - BFLOW_SHUTDOWN_TIMEOUT: "1s"
//
// Use the returned [Env] to override individual values:
//
//	bservetest.SetBaseEnv(t, 18085).ServiceName("orders").RequestTimeout("50ms")
func SetBaseEnv(t testing.TB, port int) *Env {
	t.Helper()
	t.Setenv("BFLOW_PORT", strconv.Itoa(port))
	t.Setenv("BFLOW_SERVICE_NAME", "test")
	t.Setenv("BFLOW_HEALTH_PATH", "/health")
	t.Setenv("BFLOW_LOG_LEVEL", "debug")
	t.Setenv("BFLOW_OTEL_EXPORTER", "none")
	t.Setenv("BFLOW_REQUEST_TIMEOUT", "5s")
	t.Setenv("BFLOW_SHUTDOWN_TIMEOUT", "1s")
	return &Env{t: t}
}

// ServiceName overrides BFLOW_SERVICE_NAME.
func (e *Env) ServiceName(name string) *Env {
	e.t.Helper()
	e.t.Setenv("BFLOW_SERVICE_NAME", name)
	return e
}

// HealthPath overrides BFLOW_HEALTH_PATH.
func (e *Env) HealthPath(path string) *Env {
	e.t.Helper()
	e.t.Setenv("BFLOW_HEALTH_PATH", path)
	return e
}

// RequestTimeout overrides BFLOW_REQUEST_TIMEOUT.
func (e *Env) RequestTimeout(d string) *Env {
	e.t.Helper()
	e.t.Setenv("BFLOW_REQUEST_TIMEOUT", d)
	return e
}

// Proxy overrides BFLOW_PROXY.
func (e *Env) Proxy(trust bool) *Env {
	e.t.Helper()
	e.t.Setenv("BFLOW_PROXY", strconv.FormatBool(trust))
	return e
}
