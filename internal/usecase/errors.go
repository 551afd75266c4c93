package usecase

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrorInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrorNotConfigured ErrorCode = "NOT_CONFIGURED"
	ErrorUpstream      ErrorCode = "UPSTREAM_ERROR"
	ErrorPayment       ErrorCode = "PAYMENT_ERROR"
	ErrorInternal      ErrorCode = "INTERNAL_ERROR"
)

// Error is the typed failure returned by every service in this package.
// Message is safe to show to the caller; Detail carries best-effort upstream
// diagnostic text.
type Error struct {
	Code    ErrorCode
	Reason  string
	Message string
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// PublicMessage is the text placed in the response envelope.
func (e *Error) PublicMessage() string {
	switch {
	case e == nil:
		return ""
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Reason
	}
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

func newMessageError(code ErrorCode, reason, message string, err error) *Error {
	return &Error{Code: code, Reason: reason, Message: message, Err: err}
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

type responseBodier interface {
	ResponseBody() string
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

func upstreamDetail(err error) string {
	var bodier responseBodier
	if !errors.As(err, &bodier) {
		return ""
	}
	return bodier.ResponseBody()
}
