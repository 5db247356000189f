// Package example implements example middleware in an outside package.
package example

import (
	"log/slog"

	"github.com/advdv/bflow"
)

// stateKey scopes the request state of this package.
const stateKey = "example.slog"

// Middleware provides an example for a unit that shares a logger with the units after it.
func Middleware(logs *slog.Logger) bflow.Func {
	return func(c *bflow.Context) error {
		c.State[stateKey] = logs.With(slog.String("method", c.Method()), slog.String("path", c.Path()))

		return nil
	}
}

// Log returns the logger stored by [Middleware], or nil.
func Log(c *bflow.Context) *slog.Logger {
	v, _ := c.State[stateKey].(*slog.Logger)

	return v
}
