package stealth

import (
	"fmt"

	"github.com/chernistry/tavily/pkg/failure"
)

type SessionErrorCause string

const (
	ErrCauseSessionCorrupt = "corrupt session files"
	ErrCauseSessionWrite   = "failed to persist session"
)

type SessionError struct {
	Message   string
	Retryable bool
	Cause     SessionErrorCause
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session error: %s", e.Cause)
}

func (e *SessionError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *SessionError) IsRetryable() bool {
	return e.Retryable
}
