package bflow

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
)

// Middleware is one step of the request chain. Units run strictly one after the other: the next unit starts only
// after ServeFlow returned. Blocking inside ServeFlow is how a unit suspends; it should honour c.Done() so an
// aborted request does not keep it busy.
type Middleware interface {
	ServeFlow(c *Context) error
}

// Func allows casting a plain function to implement [Middleware].
type Func func(c *Context) error

// ServeFlow implements the [Middleware] interface.
func (f Func) ServeFlow(c *Context) error {
	return f(c)
}

// DoneFunc is a continuation style unit: it is complete once done is called. Calls to done after the first one are
// ignored.
type DoneFunc func(c *Context, done func(error))

// ServeFlow implements the [Middleware] interface.
func (f DoneFunc) ServeFlow(c *Context) error {
	var once sync.Once
	ch := make(chan error, 1)

	f(c, func(err error) {
		once.Do(func() { ch <- err })
	})

	ctx := c.flowContext()
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

// TaskFunc is a unit that hands back a [Task]. The task, and any task it resolves to, is awaited before the chain
// moves on.
type TaskFunc func(c *Context) Task

// ServeFlow implements the [Middleware] interface.
func (f TaskFunc) ServeFlow(c *Context) error {
	res := Await(c.flowContext(), f(c))
	c.setResult(res)

	return res.Err
}

// Adapt converts any supported unit representation into a [Middleware]. It returns an error wrapping [ErrUsage]
// for anything else.
func Adapt(unit any) (Middleware, error) {
	switch u := unit.(type) {
	case nil:
		return nil, errors.Wrap(ErrUsage, "middleware unit is nil")
	case Middleware:
		if isNilFunc(u) {
			return nil, errors.Wrap(ErrUsage, "middleware unit is nil")
		}

		return u, nil
	case func(*Context) error:
		if u == nil {
			return nil, errors.Wrap(ErrUsage, "middleware unit is nil")
		}

		return Func(u), nil
	case func(*Context, func(error)):
		if u == nil {
			return nil, errors.Wrap(ErrUsage, "middleware unit is nil")
		}

		return DoneFunc(u), nil
	case func(*Context) Task:
		if u == nil {
			return nil, errors.Wrap(ErrUsage, "middleware unit is nil")
		}

		return TaskFunc(u), nil
	case func(*Context):
		if u == nil {
			return nil, errors.Wrap(ErrUsage, "middleware unit is nil")
		}

		return Func(func(c *Context) error { u(c); return nil }), nil
	default:
		return nil, errors.Wrapf(ErrUsage, "require a middleware unit, got: %T", unit)
	}
}

// MustAdapt is like [Adapt] but panics on invalid units.
func MustAdapt(unit any) Middleware {
	mw, err := Adapt(unit)
	if err != nil {
		panic(err)
	}

	return mw
}

func isNilFunc(mw Middleware) bool {
	switch f := mw.(type) {
	case Func:
		return f == nil
	case DoneFunc:
		return f == nil
	case TaskFunc:
		return f == nil
	}

	return false
}
