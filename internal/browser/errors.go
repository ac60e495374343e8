package browser

import (
	"fmt"

	"github.com/chernistry/tavily/internal/metadata"
	"github.com/chernistry/tavily/pkg/failure"
)

type BrowserErrorCause string

const (
	ErrCauseLaunchFailure     = "browser launch failure"
	ErrCauseRelaunchExhausted = "browser relaunch attempts exhausted"
	ErrCauseNavigationTimeout = "navigation timeout"
	ErrCauseNavigationFailure = "navigation failure"
	ErrCauseSnapshotFailure   = "content snapshot failure"
)

type BrowserError struct {
	Message   string
	Retryable bool
	Cause     BrowserErrorCause
}

func (e *BrowserError) Error() string {
	return fmt.Sprintf("browser error: %s", e.Cause)
}

func (e *BrowserError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *BrowserError) IsRetryable() bool {
	return e.Retryable
}

// mapBrowserErrorToMetadataCause maps browser-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapBrowserErrorToMetadataCause(err *BrowserError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseLaunchFailure, ErrCauseRelaunchExhausted:
		return metadata.CauseBrowserFailure
	case ErrCauseNavigationTimeout, ErrCauseNavigationFailure:
		return metadata.CauseNetworkFailure
	case ErrCauseSnapshotFailure:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}
