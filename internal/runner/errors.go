package runner

import (
	"fmt"

	"github.com/chernistry/tavily/pkg/failure"
)

type RunErrorCause string

const (
	ErrCauseInputFailure     = "input loading failed"
	ErrCauseBrowserDead      = "browser unrecoverable"
	ErrCauseGuardrailTripped = "guardrail tripped twice"
	ErrCauseArtifactWrite    = "artifact write failed"
	ErrCauseTransportFailure = "transport construction failed"
)

type RunError struct {
	Message   string
	Retryable bool
	Cause     RunErrorCause
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run error: %s", e.Cause)
}

func (e *RunError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *RunError) IsRetryable() bool {
	return e.Retryable
}
