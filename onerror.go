package bflow

import (
	"io/fs"
	"net/http"
	"os"
	"regexp"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// errorHeaders are the response headers that survive an error response. Clients may need them to retry.
var errorHeaders = regexp.MustCompile(`(?i)^(Accept|Allow|Retry-After|Warning|Access-Control-Allow-)`)

// workDir matches the working directory of the process in client facing error text.
var workDir = func() *regexp.Regexp {
	wd, err := os.Getwd()
	if err != nil || wd == "" || wd == "/" {
		return nil
	}

	return regexp.MustCompile(regexp.QuoteMeta(wd))
}()

// Redacted replaces the working directory path.
const Redacted = "[application]"

func redact(s string) string {
	if workDir == nil {
		return s
	}

	return workDir.ReplaceAllLiteralString(s, Redacted)
}

// onerror emits the error event, shapes an error response and hands what is left to the app-level sink.
func (c *Context) onerror(err error) {
	if err == nil {
		return
	}

	c.emit(EventError, err)

	if rest := c.normalize(err); rest != nil {
		c.app.onerror(rest)
	}
}

// normalize turns err into a response. It returns the error that still needs to be logged, if any.
func (c *Context) normalize(err error) error {
	if c.res.HeadersSent() || !c.Writable() {
		return errors.Mark(err, ErrHeadersSent)
	}

	var thrown *Thrown
	if errors.As(err, &thrown) {
		c.res.SetBody(thrown.Value)
		if code := thrown.StatusCode(); validStatus(code) {
			c.res.SetStatus(code)
		}

		c.respond()
		return nil
	}

	c.res.w.EditHeader(func(h http.Header) {
		for _, name := range lo.Reject(lo.Keys(h), func(name string, _ int) bool { return errorHeaders.MatchString(name) }) {
			delete(h, name)
		}
	})

	code := statusOf(err)
	msg := http.StatusText(code)
	if m, ok := exposedMessage(err); ok && m != "" {
		msg = m
	}

	c.res.SetStatus(code)
	c.res.SetMessage("")
	c.res.SetType("text")
	if !isEmptyStatus(code) {
		c.res.SetBody(redact(msg))
	}

	c.respond()

	return err
}

// statusOf resolves the response status of an error.
func statusOf(err error) int {
	if errors.Is(err, fs.ErrNotExist) {
		return http.StatusNotFound
	}

	if code := int(CodeOf(err)); validStatus(code) && http.StatusText(code) != "" {
		return code
	}

	return http.StatusInternalServerError
}

func validStatus(code int) bool {
	return code >= 100 && code <= 999
}
