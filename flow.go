package bflow

import (
	"context"

	"github.com/cockroachdb/errors"
)

// scope binds the error policy of a single request.
type scope struct {
	errorHandler ErrorHandler
	debug        DebugFunc
	stop         StopHandler
}

// SetErrorHandler replaces the error handler for this request only.
func (c *Context) SetErrorHandler(h ErrorHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scope.errorHandler = h
}

func (c *Context) policy() scope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.scope
}

// run drives the request: the primary chain, then the pre-end chain, then the responder. Every path ends in
// exactly one responder decision.
func (c *Context) run(chain []Middleware) {
	err := c.runChain(chain, true)
	if err == nil {
		// the last unit may have stopped the request and returned before the executor saw it
		if sig := c.stopSignal(); sig != nil {
			c.onstop(sig)
			return
		}

		c.finalize()
		return
	}

	if sig, ok := asStop(err); ok {
		c.onstop(sig)
		return
	}

	c.fail(err)
}

// runChain runs units one after the other. In the primary chain a stop signal abandons the running unit.
func (c *Context) runChain(chain []Middleware, primary bool) error {
	for _, mw := range chain {
		if primary {
			if sig := c.stopSignal(); sig != nil {
				return sig
			}
		}

		if err := c.runUnit(mw, primary); err != nil {
			return err
		}
	}

	return nil
}

func (c *Context) runUnit(mw Middleware, primary bool) error {
	done := make(chan Result, 1)

	go func() {
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = panicError(r)
			}

			done <- c.pushResult(err)
		}()

		err = mw.ServeFlow(c)
	}()

	var stopped <-chan struct{}
	if primary {
		stopped = c.Done()
	}

	select {
	case res := <-done:
		if dbg := c.policy().debug; dbg != nil {
			dbg(c, res)
		}

		if res.Err != nil && primary && isContextErr(res.Err) {
			if sig := c.stopSignal(); sig != nil {
				return sig
			}
		}

		return res.Err
	case <-stopped:
		return c.stopSignal()
	}
}

// finalize runs the pre-end chain and responds.
func (c *Context) finalize() {
	c.preEndPhase.Store(true)

	if err := c.runChain(c.PreEnd(), false); err != nil {
		c.fail(err)
		return
	}

	c.respond()
}

func (c *Context) onstop(sig *StopSignal) {
	c.cancel(sig)

	if stop := c.policy().stop; stop != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.app.onerror(panicError(r))
				}
			}()

			stop(c, sig)
		}()
	}

	c.finalize()
}

// fail runs the per-request error handler and escalates what is left of the error.
func (c *Context) fail(err error) {
	if err == nil {
		return
	}

	if h := c.policy().errorHandler; h != nil {
		err = handleError(c, h, err)
	}

	if errors.Is(err, ErrHandled) {
		c.respond()
		return
	}

	c.onerror(err)
}

func handleError(c *Context, h ErrorHandler, err error) (res error) {
	defer func() {
		if r := recover(); r != nil {
			res = panicError(r)
		}
	}()

	if replaced := h(c, err); replaced != nil {
		return replaced
	}

	return err
}

// stopSignal returns the reason the context was cancelled as a stop signal, or nil while it is live.
func (c *Context) stopSignal() *StopSignal {
	if c.ctx.Err() == nil {
		return nil
	}

	cause := context.Cause(c.ctx)
	if sig, ok := asStop(cause); ok {
		return sig
	}

	return &StopSignal{Message: cause.Error()}
}

// flowContext is the context units should block on. Pre-end units run even when the request was stopped, so they
// get a context that is not cancelled with it.
func (c *Context) flowContext() context.Context {
	if c.preEndPhase.Load() {
		return context.WithoutCancel(c.ctx)
	}

	return c
}

func isContextErr(err error) bool {
	if _, ok := asStop(err); ok {
		return true
	}

	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
