package errors

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
)

type Code codes.Code

const (
	CodeInvalidArgument = Code(codes.InvalidArgument)
	CodeNotFound        = Code(codes.NotFound)
	CodeAlreadyExists   = Code(codes.AlreadyExists)
	CodeInternal        = Code(codes.Internal)
	CodeUnauthenticated = Code(codes.Unauthenticated)
)

var code2http = map[Code]int{
	CodeInvalidArgument: http.StatusBadRequest,
	CodeNotFound:        http.StatusNotFound,
	CodeAlreadyExists:   http.StatusConflict,
	CodeInternal:        http.StatusInternalServerError,
	CodeUnauthenticated: http.StatusUnauthorized,
}

// Error is the error type returned to callers of the services. Message and Details are safe to
// expose to clients, the cause is not.
type Error struct {
	Code    Code
	Message string
	Details map[string]string
	err     error
}

var defaultMessages = map[Code]string{
	CodeInvalidArgument: "Invalid request",
	CodeNotFound:        "Not found",
	CodeAlreadyExists:   "Already exists",
	CodeInternal:        "Internal server error",
	CodeUnauthenticated: "Unauthorized",
}

func New(code Code, opts ...Option) *Error {
	msg, ok := defaultMessages[code]
	if !ok {
		msg = codes.Code(code).String()
	}

	e := &Error{Code: code, Message: msg}

	for _, opt := range opts {
		opt.apply(e)
	}

	return e
}

func (e *Error) Error() string {
	s := fmt.Sprintf("code: %d, message: %s", e.Code, e.Message)
	if len(e.Details) > 0 {
		s += fmt.Sprintf(", details: %v", e.Details)
	}
	if e.err != nil {
		s += fmt.Sprintf(", err: %s", e.err)
	}

	return s
}

func (e *Error) Unwrap() error {
	return e.err
}

func (e *Error) HTTPStatusCode() int {
	if c, ok := code2http[e.Code]; ok {
		return c
	}

	return http.StatusInternalServerError
}

// Body is the value rendered under the "error" key of an HTTP error response.
// Field details win over the message when present.
func (e *Error) Body() any {
	if len(e.Details) > 0 {
		return e.Details
	}

	return e.Message
}

func Convert(err error) *Error {
	var e *Error
	if !errors.As(err, &e) {
		return Internal(err)
	}

	return e
}

func Is(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

func Internal(err error) *Error {
	return New(CodeInternal, WithCause(err))
}

func Unauthenticated(msg string) *Error {
	return New(CodeUnauthenticated, WithMessagef("%s", msg))
}

func InvalidArgument(details map[string]string) *Error {
	return New(CodeInvalidArgument, WithDetails(details))
}

type Option interface {
	apply(*Error)
}

type optionFunc func(*Error)

func (f optionFunc) apply(e *Error) {
	f(e)
}

func WithCause(err error) Option {
	return optionFunc(func(e *Error) {
		e.err = err
	})
}

func WithMessagef(format string, args ...any) Option {
	return optionFunc(func(e *Error) {
		e.Message = fmt.Sprintf(format, args...)
	})
}

// WithDetails attaches field level details, keyed by field name.
func WithDetails(details map[string]string) Option {
	return optionFunc(func(e *Error) {
		e.Details = details
	})
}
