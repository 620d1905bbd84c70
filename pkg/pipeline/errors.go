package pipeline

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrEmptyTranscript is returned when no speech was recognized.
	ErrEmptyTranscript = errors.New("pipeline: no speech recognized")

	// ErrNoAudio is returned when a request carries neither audio nor a source.
	ErrNoAudio = errors.New("pipeline: no audio")

	// ErrNoSession is returned when a request has no session.
	ErrNoSession = errors.New("pipeline: no session")

	// ErrAudioTooLarge is returned when streamed audio exceeds the upload limit.
	ErrAudioTooLarge = errors.New("pipeline: audio too large")

	// ErrUnknownMode is returned for a processing mode other than parallel or traditional.
	ErrUnknownMode = errors.New("pipeline: unknown processing mode")
)

// PipelineError is a failure that escaped a stage of the parallel attempt.
type PipelineError struct {
	Stage string
	Err   error
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline: %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// stageError wraps err with the stage name unless it already carries one.
func stageError(stage string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return err
	}
	return &PipelineError{Stage: stage, Err: err}
}
