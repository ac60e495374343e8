package metadata

import "time"

/*
Metadata Collected
- Fetch timestamps, methods, and stages
- HTTP status codes and outcome statuses
- Escalation decisions and classifier verdicts
- Shard lifecycle transitions

Logging Goals
- Debuggable batch behavior
- Post-run auditability
- Failure diagnostics

Metadata emission is observational only and MUST NOT influence routing,
scheduling, retries, or run termination.

Never allowed through the sink:
- Response bodies or page HTML
- Cookies, tokens, proxy credentials
- URL query strings (strip before recording)
*/

// MetadataSink receives observational events from every pipeline stage.
type MetadataSink interface {
	RecordFetch(
		url string,
		method string,
		stage string,
		status string,
		httpStatus int,
		duration time.Duration,
		retryCount int,
		shardIndex int,
	)
	RecordEscalation(url string, reason string)
	RecordVerdict(url string, vendor string, confidence float64, reason string)
	RecordShard(runID string, shardID int, status string, urlsDone int, urlsTotal int)
	RecordError(
		observedAt time.Time,
		packageName string,
		action string,
		cause ErrorCause,
		errorString string,
		attrs []Attribute,
	)
	RecordWarning(packageName string, message string, attrs []Attribute)
	RecordArtifact(kind ArtifactKind, path string, attrs []Attribute)
}

// RunFinalizer records the terminal aggregate of a completed batch.
type RunFinalizer interface {
	RecordFinalRunStats(totalURLs int, totalErrors int, totalShards int, duration time.Duration)
}

// NoopSink discards every event. Used in tests and dry runs.
type NoopSink struct {
}

func (n *NoopSink) RecordFetch(url, method, stage, status string, httpStatus int, duration time.Duration, retryCount, shardIndex int) {
}

func (n *NoopSink) RecordEscalation(url string, reason string) {
}

func (n *NoopSink) RecordVerdict(url string, vendor string, confidence float64, reason string) {
}

func (n *NoopSink) RecordShard(runID string, shardID int, status string, urlsDone, urlsTotal int) {
}

func (n *NoopSink) RecordError(observedAt time.Time, packageName, action string, cause ErrorCause, errorString string, attrs []Attribute) {
}

func (n *NoopSink) RecordWarning(packageName string, message string, attrs []Attribute) {
}

func (n *NoopSink) RecordArtifact(kind ArtifactKind, path string, attrs []Attribute) {
}

func (n *NoopSink) RecordFinalRunStats(totalURLs, totalErrors, totalShards int, duration time.Duration) {
}
