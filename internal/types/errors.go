package types

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed tool request. It is raised before any
// confirmation prompt is shown.
type ValidationError struct {
	RequestID string
	Field     string
	Reason    string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid tool request: " + e.Reason
	}
	return fmt.Sprintf("invalid tool request: %s %s", e.Field, e.Reason)
}

// ToolExecutionError reports that the tool executor itself faulted. Result
// holds the synthesized error result so callers always have something to
// fold back into history.
type ToolExecutionError struct {
	Result ToolResult
	Err    error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Result.ToolName, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// ModelCommunicationError wraps a failed model adapter call.
type ModelCommunicationError struct {
	Provider string
	Err      error
}

func (e *ModelCommunicationError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("model call failed: %v", e.Err)
	}
	return fmt.Sprintf("model call to %s failed: %v", e.Provider, e.Err)
}

func (e *ModelCommunicationError) Unwrap() error { return e.Err }

// ComponentInitializationError reports a startup dependency that could not be
// brought up. It is always fatal.
type ComponentInitializationError struct {
	Component string
	Err       error
}

func (e *ComponentInitializationError) Error() string {
	return fmt.Sprintf("initialize %s: %v", e.Component, e.Err)
}

func (e *ComponentInitializationError) Unwrap() error { return e.Err }

// UserInputError reports a malformed special command or rejected operator
// input. Hint is shown to the operator verbatim.
type UserInputError struct {
	Command string
	Hint    string
}

func (e *UserInputError) Error() string {
	if e.Command == "" {
		return e.Hint
	}
	return fmt.Sprintf("%s: %s", e.Command, e.Hint)
}

// ErrMalformedResponse is returned by adapters when the backend answered with
// something that is not a usable conversation turn.
var ErrMalformedResponse = errors.New("malformed model response")

// Classification describes how the turn boundary reports an error.
type Classification struct {
	Prefix      string
	Recoverable bool
}

// Classify maps err onto the error taxonomy.
func Classify(err error) Classification {
	var (
		validationErr *ValidationError
		toolErr       *ToolExecutionError
		modelErr      *ModelCommunicationError
		initErr       *ComponentInitializationError
		inputErr      *UserInputError
	)
	switch {
	case errors.As(err, &initErr):
		return Classification{Prefix: "Startup error", Recoverable: false}
	case errors.As(err, &validationErr):
		return Classification{Prefix: "Invalid tool request", Recoverable: true}
	case errors.As(err, &toolErr):
		return Classification{Prefix: "Tool error", Recoverable: true}
	case errors.As(err, &modelErr):
		return Classification{Prefix: "Model error", Recoverable: true}
	case errors.As(err, &inputErr):
		return Classification{Prefix: "Input error", Recoverable: true}
	default:
		return Classification{Prefix: "Error", Recoverable: true}
	}
}
