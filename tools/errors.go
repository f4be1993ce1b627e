package tools

import "fmt"

// ErrorKind is the closed set of typed failures a tool may surface;
// Retryable classifies a kind as transient or not. The Workflow Engine's
// react-style loop does not inspect Kind: it hands the error's text to the
// model as the tool observation.
type ErrorKind string

const (
	ErrorKindNetwork    ErrorKind = "network"
	ErrorKindTimeout    ErrorKind = "timeout"
	ErrorKindValidation ErrorKind = "validation"
	ErrorKindPermanent  ErrorKind = "permanent"
)

// Error is the typed error every Tool Layer member returns instead of
// letting a raw error escape the layer.
type Error struct {
	Tool string
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("tool %s: %s: %v", e.Tool, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with a tool name and failure kind.
func NewError(tool string, kind ErrorKind, err error) *Error {
	return &Error{Tool: tool, Kind: kind, Err: err}
}

// Retryable reports whether the caller should consider retrying the
// invocation: network and timeout failures are transient, validation and
// permanent failures are not.
func (e *Error) Retryable() bool {
	return e.Kind == ErrorKindNetwork || e.Kind == ErrorKindTimeout
}
