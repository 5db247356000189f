// Package bflow provides a minimal request lifecycle engine: an ordered middleware chain over a per-request
// [Context], an error escalation chain that turns failures into client responses, and a responder that commits
// exactly one terminal action per request.
//
// # Overview
//
// An [App] holds an ordered list of middleware units. Every request gets a fresh [Context] that runs those units
// one after the other, then runs the pre-end handlers and finally hands the context to the responder:
//
//	app := bflow.New()
//	app.Use(func(c *bflow.Context) error {
//	    c.SetBody("Hello World")
//	    return nil
//	})
//
//	srv, err := app.Listen(":8080")
//
// # Middleware Units
//
// A unit is anything [Adapt] accepts:
//
//   - a [Middleware] implementation
//   - func(*Context) error, the plain form (see [Func])
//   - func(*Context, func(error)), a continuation that is complete once the callback is called (see [DoneFunc])
//   - func(*Context) Task, a unit that hands back a [Task] to await (see [TaskFunc])
//   - func(*Context), for units that cannot fail
//
// [App.Use] panics with an error wrapping [ErrUsage] for anything else, so a bad registration fails at startup
// instead of at request time.
//
// Units can run concurrent sub-work by returning [All] or [Race] from a [TaskFunc], or by starting background work
// with [Context.Go]. The first pre-end handler of every request ([Yield]) waits for that background work before the
// response is committed.
//
// # Stopping a Request
//
// [Context.Stop] (or returning the error of [Stop]) aborts the remaining primary chain. It is not a failure: the
// request still runs its pre-end handlers and is answered. When no unit set a status the response becomes
// [DefaultAbortStatus] with the stop message. [WithTimeout] stops requests that take too long in the same way.
//
// # Errors
//
// An error returned by a unit goes to the per-request [ErrorHandler] first. The handler may replace it, or return
// [ErrHandled] to respond with whatever the context holds. Anything else is normalized into a plain text response:
//
//   - the status comes from [CodeOf], with missing files mapping to 404 and everything unknown to 500
//   - the body is the error message when the error was [Expose]d, or the standard phrase of the status otherwise
//   - the working directory of the process is redacted from the body
//   - response headers are dropped except for the ones clients need to retry
//
// Errors with a status below 500 and exposed errors are deliberate responses. Everything else is a system failure
// and is reported to [Logger.LogSystemError].
//
// # Responding
//
// Units set the status and body on the context; the responder decides how to write them:
//
//	c.SetBody(nil)                        // plain text status message
//	c.SetBody("<p>hi</p>")                // html
//	c.SetBody([]byte{1, 2, 3})            // binary
//	c.SetBody(file)                       // any io.Reader is streamed
//	c.SetBody(map[string]any{"ok": true}) // anything else is JSON
//
// Call [Context.SetRespond] with false to take over the connection, or [Context.SetResponder] to replace the
// default decision table for a single request.
package bflow
