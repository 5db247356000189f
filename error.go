package bflow

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Code is an error code that mirrors the http status codes. It travels with an [*Error] through the middleware
// chain and decides the status of the normalized error response.
type Code int

const (
	CodeUnknown                      Code = 0
	CodeBadRequest                   Code = http.StatusBadRequest                   // RFC 9110, 15.5.1
	CodeUnauthorized                 Code = http.StatusUnauthorized                 // RFC 9110, 15.5.2
	CodePaymentRequired              Code = http.StatusPaymentRequired              // RFC 9110, 15.5.3
	CodeForbidden                    Code = http.StatusForbidden                    // RFC 9110, 15.5.4
	CodeNotFound                     Code = http.StatusNotFound                     // RFC 9110, 15.5.5
	CodeMethodNotAllowed             Code = http.StatusMethodNotAllowed             // RFC 9110, 15.5.6
	CodeNotAcceptable                Code = http.StatusNotAcceptable                // RFC 9110, 15.5.7
	CodeProxyAuthRequired            Code = http.StatusProxyAuthRequired            // RFC 9110, 15.5.8
	CodeRequestTimeout               Code = http.StatusRequestTimeout               // RFC 9110, 15.5.9
	CodeConflict                     Code = http.StatusConflict                     // RFC 9110, 15.5.10
	CodeGone                         Code = http.StatusGone                         // RFC 9110, 15.5.11
	CodeLengthRequired               Code = http.StatusLengthRequired               // RFC 9110, 15.5.12
	CodePreconditionFailed           Code = http.StatusPreconditionFailed           // RFC 9110, 15.5.13
	CodeRequestEntityTooLarge        Code = http.StatusRequestEntityTooLarge        // RFC 9110, 15.5.14
	CodeRequestURITooLong            Code = http.StatusRequestURITooLong            // RFC 9110, 15.5.15
	CodeUnsupportedMediaType         Code = http.StatusUnsupportedMediaType         // RFC 9110, 15.5.16
	CodeRequestedRangeNotSatisfiable Code = http.StatusRequestedRangeNotSatisfiable // RFC 9110, 15.5.17
	CodeExpectationFailed            Code = http.StatusExpectationFailed            // RFC 9110, 15.5.18
	CodeTeapot                       Code = http.StatusTeapot                       // RFC 9110, 15.5.19 (Unused)
	CodeMisdirectedRequest           Code = http.StatusMisdirectedRequest           // RFC 9110, 15.5.20
	CodeUnprocessableEntity          Code = http.StatusUnprocessableEntity          // RFC 9110, 15.5.21
	CodeLocked                       Code = http.StatusLocked                       // RFC 4918, 11.3
	CodeFailedDependency             Code = http.StatusFailedDependency             // RFC 4918, 11.4
	CodeTooEarly                     Code = http.StatusTooEarly                     // RFC 8470, 5.2.
	CodeUpgradeRequired              Code = http.StatusUpgradeRequired              // RFC 9110, 15.5.22
	CodePreconditionRequired         Code = http.StatusPreconditionRequired         // RFC 6585, 3
	CodeTooManyRequests              Code = http.StatusTooManyRequests              // RFC 6585, 4
	CodeRequestHeaderFieldsTooLarge  Code = http.StatusRequestHeaderFieldsTooLarge  // RFC 6585, 5
	CodeUnavailableForLegalReasons   Code = http.StatusUnavailableForLegalReasons   // RFC 7725, 3

	CodeInternalServerError           Code = http.StatusInternalServerError           // RFC 9110, 15.6.1
	CodeNotImplemented                Code = http.StatusNotImplemented                // RFC 9110, 15.6.2
	CodeBadGateway                    Code = http.StatusBadGateway                    // RFC 9110, 15.6.3
	CodeServiceUnavailable            Code = http.StatusServiceUnavailable            // RFC 9110, 15.6.4
	CodeGatewayTimeout                Code = http.StatusGatewayTimeout                // RFC 9110, 15.6.5
	CodeHTTPVersionNotSupported       Code = http.StatusHTTPVersionNotSupported       // RFC 9110, 15.6.6
	CodeVariantAlsoNegotiates         Code = http.StatusVariantAlsoNegotiates         // RFC 2295, 8.1
	CodeInsufficientStorage           Code = http.StatusInsufficientStorage           // RFC 4918, 11.5
	CodeLoopDetected                  Code = http.StatusLoopDetected                  // RFC 5842, 7.2
	CodeNotExtended                   Code = http.StatusNotExtended                   // RFC 2774, 7
	CodeNetworkAuthenticationRequired Code = http.StatusNetworkAuthenticationRequired // RFC 6585, 6
)

var (
	// ErrUsage is returned (or panicked with) when the framework is used incorrectly, e.g. registering a value that
	// is not a middleware unit.
	ErrUsage = errors.New("bflow: usage error")

	// ErrHandled can be returned from an [ErrorHandler] to signal that the error was dealt with and the response
	// should be finalized as-is.
	ErrHandled = errors.New("bflow: error handled")

	// ErrHeadersSent marks errors that arrived after the response was committed. They can only be logged.
	ErrHeadersSent = errors.New("bflow: headers already sent")

	// ErrFinished is returned by the response writer when writing after the request finished.
	ErrFinished = errors.New("bflow: response already finished")
)

// Error describes an http error.
type Error struct {
	code   Code
	err    error
	expose bool
}

// NewError inits a new error given the error code. Errors with a client-class code (< 500) expose their message
// to the client.
func NewError(c Code, underlying error) *Error {
	return &Error{code: c, err: underlying, expose: c > 0 && c < 500}
}

// Expose marks err as safe to show to the client. If err already is an [*Error] its code is kept.
func Expose(err error) *Error {
	if err == nil {
		return nil
	}

	return &Error{code: CodeOf(err), err: err, expose: true}
}

func (e *Error) Code() Code    { return e.code }
func (e *Error) Unwrap() error { return e.err }

// Exposed reports whether the message may be shown to the client.
func (e *Error) Exposed() bool { return e.expose }

// Message is the client-facing message: the underlying error's text without the status prefix.
func (e *Error) Message() string {
	if e.err == nil {
		return http.StatusText(int(e.code))
	}

	if inner, ok := e.err.(*Error); ok {
		return inner.Message()
	}

	return e.err.Error()
}

func (e *Error) Error() string {
	status := http.StatusText(int(e.Code()))
	if status == "" {
		status = "Unknown"
	}

	return fmt.Sprintf("%s: %s", status, e.Message())
}

// CodeOf returns the error's status code if it is or wraps an [*Error] (or any error that implements
// [StatusCoder]) and [CodeUnknown] otherwise.
func CodeOf(err error) Code {
	if bErr, ok := asError(err); ok && bErr.code != CodeUnknown {
		return bErr.Code()
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		return Code(sc.StatusCode())
	}

	return CodeUnknown
}

// IsExposed reports whether err, or anything it wraps, was marked as exposable.
func IsExposed(err error) bool {
	var bErr *Error
	for e := err; errors.As(e, &bErr); e = bErr.err {
		if bErr.expose {
			return true
		}
	}

	return false
}

// exposedMessage returns the message of the outermost exposed error in err's chain.
func exposedMessage(err error) (string, bool) {
	var bErr *Error
	for e := err; errors.As(e, &bErr); e = bErr.err {
		if bErr.expose {
			return bErr.Message(), true
		}
	}

	return "", false
}

// asError uses errors.As to unwrap any error and look for a *Error.
func asError(err error) (*Error, bool) {
	var bErr *Error
	ok := errors.As(err, &bErr)
	return bErr, ok
}

// StatusCoder is implemented by values that carry their own http status.
type StatusCoder interface {
	StatusCode() int
}

// Thrown carries a value that is not an error through the error path. The value becomes the response body
// verbatim.
type Thrown struct {
	Value any
}

// Throw wraps v so it can be returned from a middleware unit. The value will be rendered as the response body and,
// if it implements [StatusCoder], its status is adopted.
func Throw(v any) error {
	return &Thrown{Value: v}
}

func (t *Thrown) Error() string {
	return fmt.Sprintf("bflow: thrown value: %v", t.Value)
}

// StatusCode implements [StatusCoder] when the thrown value has a status.
func (t *Thrown) StatusCode() int {
	if sc, ok := t.Value.(StatusCoder); ok {
		return sc.StatusCode()
	}

	return 0
}

// StopSignal aborts the primary middleware chain. It is not treated as a failure: the request still runs its
// pre-end handlers and gets a response.
type StopSignal struct {
	Message string
}

// Stop returns a stop signal that can be returned from a middleware unit or passed to [Context.Stop].
func Stop(message string) error {
	return &StopSignal{Message: message}
}

func (s *StopSignal) Error() string {
	return "bflow: stopped: " + s.Message
}

// asStop looks for a stop signal in err.
func asStop(err error) (*StopSignal, bool) {
	var sig *StopSignal
	ok := errors.As(err, &sig)
	return sig, ok
}
