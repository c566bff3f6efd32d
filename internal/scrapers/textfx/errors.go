package textfx

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTargetUrl is bad caller input, it is never retried.
	ErrInvalidTargetUrl = errors.New("invalid target url")
	// ErrTransport is a network failure or timeout.
	ErrTransport = errors.New("transport error")
	// ErrUnexpectedStatus is a response status the pipeline cannot work with.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrFormDiscovery means the provider's page structure was not recognized.
	ErrFormDiscovery = errors.New("could not discover generation form")
	// ErrProcessingFailed means the provider explicitly reported that generation failed.
	ErrProcessingFailed = errors.New("provider reported processing failure")
	// ErrExtractionExhausted is only ever used as GenerationResult.FailureReason,
	// it is never returned as an error.
	ErrExtractionExhausted = errors.New("could not extract image url from response")
)

type Stage string

const (
	STAGE_VALIDATE Stage = "validate-request"
	STAGE_LOAD     Stage = "load"
	STAGE_ANALYZE  Stage = "analyze"
	STAGE_SUBMIT   Stage = "submit"
	STAGE_EXTRACT  Stage = "extract"
)

// PipelineError is a hard failure of a pipeline run, it carries the stage it happened in,
// the last url involved and whatever diagnostics were gathered up to that point.
type PipelineError struct {
	Stage       Stage
	Url         string
	Diagnostics Diagnostics
	Err         error
}

func (e *PipelineError) Error() string {
	if e.Url == "" {
		return fmt.Sprintf("textfx: %s: %s", e.Stage, e.Err.Error())
	}
	return fmt.Sprintf("textfx: %s (%s): %s", e.Stage, e.Url, e.Err.Error())
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func transportError(err error) error {
	if errors.Is(err, ErrTransport) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}

func statusError(status int) error {
	return fmt.Errorf("%w: %d", ErrUnexpectedStatus, status)
}
