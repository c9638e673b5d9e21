package checker

import (
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/owenriverk/recgov-permit-checker/internal/recgov"
)

// Class groups cycle-level failures by how loudly they should be reported.
type Class int

const (
	// ClassOther is any failure that is neither connectivity nor data format.
	ClassOther Class = iota
	// ClassConnectivity is a network-level failure reaching the API.
	ClassConnectivity
	// ClassDataFormat is a response that could not be understood.
	ClassDataFormat
)

func (c Class) String() string {
	switch c {
	case ClassConnectivity:
		return "connectivity"
	case ClassDataFormat:
		return "data-format"
	default:
		return "other"
	}
}

// Classify maps err to a Class. A joined error is connectivity if any member
// is, otherwise data format if any member is.
func Classify(err error) Class {
	if recgov.IsConnectivity(err) {
		return ClassConnectivity
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.Is(err, recgov.ErrMalformedPayload) || errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return ClassDataFormat
	}

	return ClassOther
}

// PanicError is a recovered panic together with the stack it was raised on.
type PanicError struct {
	Value any
	stack []byte
}

// NewPanicError wraps a recovered value, capturing the current stack.
// Call it from the deferred recover so the stack includes the panic site.
func NewPanicError(v any) *PanicError {
	return &PanicError{Value: v, stack: debug.Stack()}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes a panicked error value to errors.Is/As.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Stack returns the goroutine stack captured at recovery.
func (e *PanicError) Stack() []byte {
	return e.stack
}
