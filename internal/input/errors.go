package input

import (
	"fmt"

	"github.com/chernistry/tavily/pkg/failure"
)

type InputErrorCause string

const (
	ErrCauseFileMissing    = "input file missing"
	ErrCauseFileUnreadable = "input file unreadable"
	ErrCauseEmptyInput     = "no usable URLs"
)

type InputError struct {
	Message   string
	Retryable bool
	Cause     InputErrorCause
}

func (e *InputError) Error() string {
	return fmt.Sprintf("input error: %s", e.Cause)
}

func (e *InputError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *InputError) IsRetryable() bool {
	return e.Retryable
}
