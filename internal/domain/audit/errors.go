package audit

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	ErrValidation      = errors.New("validation error")
	ErrAuth            = errors.New("auth error")
	ErrTransfer        = errors.New("transfer error")
	ErrProcessing      = errors.New("processing error")
	ErrRetrieval       = errors.New("retrieval error")
	ErrModelInvocation = errors.New("model invocation error")
	ErrParse           = errors.New("parse error")
	ErrTimeout         = errors.New("timeout error")
)

// Error attaches a kind and the failing operation to a cause.
type Error struct {
	Kind error
	Op   string
	Err  error
}

// NewError builds an *Error; err may be nil when the kind says it all.
func NewError(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf is NewError with a formatted cause.
func Errorf(kind error, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
