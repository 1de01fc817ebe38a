package order

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline failures so transports can map them onto status
// codes without inspecting messages.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindUpstream    Kind = "upstream"
	KindExecutor    Kind = "executor"
	KindUnsupported Kind = "unsupported"
	KindNotFound    Kind = "not_found"
)

// Error is the only error type returned by the pipeline.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func upstream(message string, err error) *Error {
	return &Error{Kind: KindUpstream, Message: message, Err: err}
}

// KindOf returns the kind of err, or "" when it did not come from the pipeline.
func KindOf(err error) Kind {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return ""
}

// Messages surfaced to callers verbatim.
const (
	MsgExecutorFailed       = "Error executing order workflow"
	MsgCompositeUnsupported = "Multi and Stereo orders are not currently supported"
	MsgNoIntersection       = "No intersection found between image geometry and AOI coordinates"
)
