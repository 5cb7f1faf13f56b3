package zfs

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced by the pool manager.
type ErrorKind int

const (
	// KindInvalidArgument covers missing or unresolvable parameters.
	KindInvalidArgument ErrorKind = iota
	// KindNotImplemented marks operations intentionally unsupported.
	KindNotImplemented
	// KindNotFound means the pool (or dataset) does not exist.
	KindNotFound
	// KindEngine means zpool/zfs rejected an operation. Code carries the
	// tool's exit status and Message its stderr, never re-coded.
	KindEngine
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindNotImplemented:
		return "not_implemented"
	case KindNotFound:
		return "not_found"
	case KindEngine:
		return "engine"
	}
	return "unknown"
}

// Error is the tagged error variant returned by all Manager operations.
type Error struct {
	Kind    ErrorKind
	Code    int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func invalidf(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidArgument, Code: 22, Message: fmt.Sprintf(format, args...)}
}

func notImplementedf(format string, args ...any) *Error {
	return &Error{Kind: KindNotImplemented, Message: fmt.Sprintf(format, args...)}
}

func notFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Code: 2, Message: fmt.Sprintf(format, args...)}
}

func engineErr(code int, message string) *Error {
	return &Error{Kind: KindEngine, Code: code, Message: message}
}

// AsError unwraps err into *Error when possible.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	e, ok := AsError(err)
	return ok && e.Kind == kind
}
