package fetcher

import (
	"fmt"

	"github.com/chernistry/tavily/internal/metadata"
	"github.com/chernistry/tavily/pkg/failure"
)

type FetchErrorCause string

const (
	ErrCauseTimeout               = "Timeout"
	ErrCauseNetworkFailure        = "NetworkFailure"
	ErrCauseReadResponseBodyError = "ReadBodyFailure"
	ErrCauseRequestForbidden      = "ClientError"
	ErrCauseRequestTooMany        = "TooManyRequests"
	ErrCauseRequest5xx            = "ServerError"
)

type FetchError struct {
	Message    string
	Retryable  bool
	Cause      FetchErrorCause
	StatusCode int

	// outcome carries the decoded response that produced a 5xx/429 error so
	// the classifier still sees its body after retries exhaust
	outcome *httpOutcome
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetcher error: %s", e.Cause)
}

func (e *FetchError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// IsRetryable returns whether this error is retryable
func (e *FetchError) IsRetryable() bool {
	return e.Retryable
}

// mapFetchErrorToMetadataCause maps fetcher-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapFetchErrorToMetadataCause(err *FetchError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseTimeout, ErrCauseNetworkFailure, ErrCauseRequest5xx:
		return metadata.CauseNetworkFailure
	case ErrCauseRequestTooMany, ErrCauseRequestForbidden:
		return metadata.CausePolicyDisallow
	case ErrCauseReadResponseBodyError:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}
