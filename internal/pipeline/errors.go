package pipeline

import (
	"errors"
	"fmt"
)

// Failure kinds a caller can test for with errors.Is.
var (
	// ErrUpstream covers fetch, chat and speech failures after retries,
	// and malformed model responses.
	ErrUpstream = errors.New("upstream failure")
	// ErrLocalIO covers missing assets, file writes and the audio merge.
	ErrLocalIO = errors.New("local I/O failure")
	// ErrValidation means the input was rejected before any work started.
	ErrValidation = errors.New("invalid input")
)

type PipelineError struct {
	Stage   string
	Kind    error
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Stage, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Is matches the failure kind, so errors.Is(err, ErrUpstream) works through
// any wrapping.
func (e *PipelineError) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}
