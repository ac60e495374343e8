package store

import (
	"fmt"

	"github.com/chernistry/tavily/internal/metadata"
	"github.com/chernistry/tavily/pkg/failure"
)

type StoreErrorCause string

const (
	ErrCauseOpenFailure      = "failed to open store file"
	ErrCauseEncodeFailure    = "failed to encode record"
	ErrCauseFlushFailure     = "failed to flush records"
	ErrCauseReadFailure      = "failed to read store file"
	ErrCauseCheckpointWrite  = "failed to write checkpoint"
	ErrCauseCheckpointDecode = "failed to decode checkpoint"
)

type StoreError struct {
	Message   string
	Retryable bool
	Cause     StoreErrorCause
	Path      string
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error: %s", e.Cause)
}

func (e *StoreError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *StoreError) IsRetryable() bool {
	return e.Retryable
}

// mapStoreErrorToMetadataCause maps store-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapStoreErrorToMetadataCause(err *StoreError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseEncodeFailure, ErrCauseCheckpointDecode:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseStorageFailure
	}
}
