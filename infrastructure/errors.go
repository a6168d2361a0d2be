package infrastructure

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrUserNotFound = &Error{Code: codes.NotFound, Message: "user not found"}

	ErrMissingToken = errors.New("missing access token")
	ErrInvalidToken = errors.New("invalid access token")
	ErrTokenExpired = errors.New("access token has expired")
)

// Error is a classified domain error. Code follows the gRPC status codes so the
// same value can be returned from a gRPC handler or rendered as a socket event.
type Error struct {
	Code    codes.Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) GRPCStatus() *status.Status {
	return status.New(e.Code, e.Message)
}

func New(code codes.Code, message string) error {
	return &Error{Code: code, Message: message}
}

func Wrap(code codes.Code, message string, cause error) error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func Authentication(msg string, cause error) error {
	return Wrap(codes.Unauthenticated, msg, cause)
}

func Authorization(msg string) error {
	return New(codes.PermissionDenied, msg)
}

func Validation(msg string) error {
	return New(codes.InvalidArgument, msg)
}

func NotFound(msg string) error {
	return New(codes.NotFound, msg)
}

func Conflict(msg string) error {
	return New(codes.AlreadyExists, msg)
}

func Internal(msg string, cause error) error {
	return Wrap(codes.Internal, msg, cause)
}

// CodeOf classifies err. Unclassified errors are Internal.
func CodeOf(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return codes.Internal
}

// PublicMessage is the text safe to show a client for err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Code != codes.Internal {
		return e.Message
	}
	return "internal server error"
}

func IsConflict(err error) bool {
	return CodeOf(err) == codes.AlreadyExists
}

func IsNotFound(err error) bool {
	return CodeOf(err) == codes.NotFound
}
