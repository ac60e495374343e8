package metadata

import (
	"time"
)

/*
	ErrorCause is a closed, canonical classification used exclusively for
	observability (logging, metrics, reporting).

	Rules:
	 - ErrorCause is for observability only.
	 - It must never be used to derive retry, continuation, or abort decisions.
	 - ErrorCause values MUST have stable, package-agnostic semantics.
	 - Pipeline packages MAY map their local errors to ErrorCause,
	   but MUST NOT invent new meanings.

If a failure does not clearly match a defined cause, CauseUnknown MUST be used.
*/
type ErrorCause int

const (
	CauseUnknown = iota
	CauseNetworkFailure
	CausePolicyDisallow
	CauseContentInvalid
	CauseStorageFailure
	CauseBrowserFailure
	CauseInvariantViolation
)

func (c ErrorCause) String() string {
	switch c {
	case CauseNetworkFailure:
		return "network_failure"
	case CausePolicyDisallow:
		return "policy_disallow"
	case CauseContentInvalid:
		return "content_invalid"
	case CauseStorageFailure:
		return "storage_failure"
	case CauseBrowserFailure:
		return "browser_failure"
	case CauseInvariantViolation:
		return "invariant_violation"
	default:
		return "unknown"
	}
}

type ArtifactKind string

const (
	ArtifactRecords    ArtifactKind = "records"
	ArtifactSummary    ArtifactKind = "summary"
	ArtifactCheckpoint ArtifactKind = "checkpoint"
	ArtifactSession    ArtifactKind = "session"
	ArtifactInput      ArtifactKind = "input"
)

type Attribute struct {
	Key   AttributeKey
	Value string
}

func NewAttr(key AttributeKey, val string) Attribute {
	return Attribute{
		Key:   key,
		Value: val,
	}
}

type AttributeKey string

const (
	AttrTime       AttributeKey = "time"
	AttrURL        AttributeKey = "url"
	AttrHost       AttributeKey = "host"
	AttrMethod     AttributeKey = "method"
	AttrStage      AttributeKey = "stage"
	AttrStatus     AttributeKey = "status"
	AttrHTTPStatus AttributeKey = "http_status"
	AttrVendor     AttributeKey = "vendor"
	AttrShard      AttributeKey = "shard"
	AttrRunID      AttributeKey = "run_id"
	AttrSessionID  AttributeKey = "session_id"
	AttrWritePath  AttributeKey = "write_path"
	AttrMessage    AttributeKey = "message"
	AttrField      AttributeKey = "field"
)

// runStats
//   - Represents a terminal, derived summary of a completed run
//   - Contains only aggregate counts and durations
//   - Is computed by the batch runner after termination
//   - Is recorded exactly once
//   - Must not influence routing, retries, or run termination
type runStats struct {
	totalURLs   int
	totalErrors int
	totalShards int
	durationMs  int64
}

type FetchEvent struct {
	url        string
	method     string
	stage      string
	status     string
	httpStatus int
	duration   time.Duration
	retryCount int
	shardIndex int
}
