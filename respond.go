package bflow

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"
)

// Cleaner can be implemented by a response body that holds resources. Cleanup is called once the transport is done
// with the response, with the transport error if there was one.
type Cleaner interface {
	Cleanup(err error)
}

// respond commits the response. It is safe to call more than once: only the first call writes and ends.
func (c *Context) respond() {
	c.respondMu.Lock()
	err := c.commit()
	c.respondMu.Unlock()

	if err != nil {
		c.onerror(err)
	}
}

// commit performs the single terminal action for the response. A returned error still has to be escalated.
func (c *Context) commit() error {
	suppress, responder := c.respondMode()
	if suppress {
		c.end()
		return nil
	}

	res := c.res
	if res.HeadersSent() || !c.Writable() {
		c.end()
		return nil
	}

	if c.Config.PoweredBy != "" {
		res.Set("X-Powered-By", c.Config.PoweredBy)
	}

	if responder != nil {
		err := responder(c)
		if err != nil && !res.HeadersSent() {
			// the error response goes through the default table
			c.SetResponder(nil)
			return errors.Wrap(err, "responder")
		}

		c.end()
		return errors.Wrap(err, "responder")
	}

	code := res.Status()
	w := res.w

	if isEmptyStatus(code) {
		res.mu.Lock()
		res.body = nil
		res.mu.Unlock()

		w.EditHeader(dropContentHeaders)
		w.WriteHeader(code)
		c.end()

		return nil
	}

	body := res.Body()

	if c.Method() == http.MethodHead {
		if isStructured(body) {
			b, err := json.Marshal(body)
			if err == nil {
				res.SetLength(int64(len(b)))
			}
		}

		w.WriteHeader(code)
		c.end()

		return nil
	}

	switch b := body.(type) {
	case nil:
		msg := res.explicitMessage()
		if msg == "" {
			msg = http.StatusText(code)
		}

		if msg == "" {
			msg = strconv.Itoa(code)
		}

		res.SetType("text")
		res.SetLength(int64(len(msg)))
		return c.write(code, []byte(msg))
	case string:
		return c.write(code, []byte(b))
	case []byte:
		return c.write(code, b)
	case io.Reader:
		if cl, ok := b.(io.Closer); ok {
			defer cl.Close()
		}

		res.Remove("Content-Length")
		w.WriteHeader(code)
		if _, err := io.Copy(w, b); err != nil {
			return errors.Wrap(err, "stream response body")
		}

		return nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return errors.Wrap(err, "encode response body")
		}

		res.SetLength(int64(len(data)))
		return c.write(code, data)
	}
}

// write sends b. Transport errors are recorded by the writer and reported when the request finishes.
func (c *Context) write(code int, b []byte) error {
	w := c.res.w
	w.WriteHeader(code)
	_, _ = w.Write(b)
	c.end()

	return nil
}

// end emits the end event the first time it is called.
func (c *Context) end() {
	if c.ended.CompareAndSwap(false, true) {
		c.emit(EventEnd, nil)
	}
}

// finish runs when the transport is done with the request. It seals the writer, releases the context and hands the
// transport error to the body's cleanup hook or to the logger.
func (c *Context) finish() {
	err := c.res.w.Err()
	if err == nil {
		if cerr := c.req.Req.Context().Err(); cerr != nil {
			err = errors.Wrap(cerr, "connection closed")
		}
	}

	c.res.w.finish()
	c.finished.Store(true)
	c.cancel(context.Canceled)
	if c.release != nil {
		c.release()
	}

	c.end()

	if cl, ok := c.res.Body().(Cleaner); ok {
		cl.Cleanup(err)
	} else if err != nil {
		c.app.logs.LogFinishError(err)
	}

	c.emit(EventFinished, err)
}

func isStructured(body any) bool {
	switch body.(type) {
	case nil, string, []byte, io.Reader:
		return false
	}

	return true
}
