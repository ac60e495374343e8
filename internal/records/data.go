package records

import (
	"time"
)

/*
Responsibilities

- Define the typed records flowing through the pipeline
- Convert stage results into the persisted per-URL form
- Enforce the boundary between in-memory and persisted shapes

A FetchRecord may carry the response body; the persisted URLRecord never
does. Conversion is the only way to produce a URLRecord from a stage result.
*/

// Method identifies which stage produced a record.
type Method string

const (
	MethodHTTP    Method = "http"
	MethodBrowser Method = "browser"
)

func (m Method) Valid() bool {
	return m == MethodHTTP || m == MethodBrowser
}

// Stage identifies whether the producing attempt was the cheap primary
// fetch or the browser fallback.
type Stage string

const (
	StagePrimary  Stage = "primary"
	StageFallback Stage = "fallback"
)

func (s Stage) Valid() bool {
	return s == StagePrimary || s == StageFallback
}

// Status is the closed outcome taxonomy shared by both stages.
type Status string

const (
	StatusSuccess         Status = "success"
	StatusCaptchaDetected Status = "captcha_detected"
	StatusRobotsBlocked   Status = "robots_blocked"
	StatusHTTPError       Status = "http_error"
	StatusTimeout         Status = "timeout"
	StatusInvalidURL      Status = "invalid_url"
	StatusTooLarge        Status = "too_large"
	StatusOtherError      Status = "other_error"
)

func (s Status) Valid() bool {
	switch s {
	case StatusSuccess, StatusCaptchaDetected, StatusRobotsBlocked,
		StatusHTTPError, StatusTimeout, StatusInvalidURL,
		StatusTooLarge, StatusOtherError:
		return true
	}
	return false
}

// Job is one URL to process, enriched with its shard coordinates.
// Immutable once created; identity is the URL.
type Job struct {
	URL             string
	ShardIndex      int
	PositionInShard int
	HintDynamic     bool
}

// FetchRecord is the in-memory result of one stage attempt.
// Body is never serialized; it exists only for the router's completeness
// check and the classifier.
type FetchRecord struct {
	URL              string
	Host             string
	Method           Method
	Stage            Stage
	Status           Status
	HTTPStatus       int
	LatencyMs        int64
	ContentLength    int64
	Encoding         string
	Retries          int
	CaptchaDetected  bool
	RobotsDisallowed bool
	ErrorKind        string
	ErrorMessage     string
	StartedAt        time.Time
	FinishedAt       time.Time
	ShardIndex       int

	Body []byte `json:"-"`
}

// URLRecord is the persisted per-URL outcome: a FetchRecord minus the body,
// with a single finish timestamp.
type URLRecord struct {
	URL              string `json:"url"`
	Host             string `json:"host"`
	Method           Method `json:"method"`
	Stage            Stage  `json:"stage"`
	Status           Status `json:"status"`
	HTTPStatus       int    `json:"http_status,omitempty"`
	LatencyMs        int64  `json:"latency_ms,omitempty"`
	ContentLength    int64  `json:"content_length,omitempty"`
	Encoding         string `json:"encoding,omitempty"`
	Retries          int    `json:"retries,omitempty"`
	CaptchaDetected  bool   `json:"captcha_detected"`
	RobotsDisallowed bool   `json:"robots_disallowed"`
	ErrorKind        string `json:"error_kind,omitempty"`
	ErrorMessage     string `json:"error_message,omitempty"`
	ShardIndex       int    `json:"shard_index"`
	Timestamp        string `json:"timestamp"`
}

// NewURLRecord converts a stage result into its persisted form. The body is
// dropped here and nowhere else; the timestamp is the finish time in UTC
// ISO-8601.
func NewURLRecord(fetch FetchRecord) URLRecord {
	finished := fetch.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	return URLRecord{
		URL:              fetch.URL,
		Host:             fetch.Host,
		Method:           fetch.Method,
		Stage:            fetch.Stage,
		Status:           fetch.Status,
		HTTPStatus:       fetch.HTTPStatus,
		LatencyMs:        fetch.LatencyMs,
		ContentLength:    fetch.ContentLength,
		Encoding:         fetch.Encoding,
		Retries:          fetch.Retries,
		CaptchaDetected:  fetch.CaptchaDetected,
		RobotsDisallowed: fetch.RobotsDisallowed,
		ErrorKind:        fetch.ErrorKind,
		ErrorMessage:     fetch.ErrorMessage,
		ShardIndex:       fetch.ShardIndex,
		Timestamp:        finished.UTC().Format(time.RFC3339),
	}
}

// ShardCheckpointStatus models shard progress transitions.
type ShardCheckpointStatus string

const (
	ShardPending    ShardCheckpointStatus = "pending"
	ShardInProgress ShardCheckpointStatus = "in_progress"
	ShardCompleted  ShardCheckpointStatus = "completed"
	ShardFailed     ShardCheckpointStatus = "failed"
)

// ShardCheckpoint is the persisted progress journal of one shard.
type ShardCheckpoint struct {
	RunID         string                `json:"run_id"`
	ShardID       int                   `json:"shard_id"`
	URLsTotal     int                   `json:"urls_total"`
	URLsDone      int                   `json:"urls_done"`
	LastUpdatedAt string                `json:"last_updated_at"`
	Status        ShardCheckpointStatus `json:"status"`
}

// RunSummary is the single aggregate persisted per run.
// The schema is append-only: new fields may be added, existing fields are
// never renamed or removed.
type RunSummary struct {
	RunID     string `json:"run_id"`
	TotalURLs int    `json:"total_urls"`

	SuccessRate     float64 `json:"success_rate"`
	HTTPErrorRate   float64 `json:"http_error_rate"`
	TimeoutRate     float64 `json:"timeout_rate"`
	CaptchaRate     float64 `json:"captcha_rate"`
	RobotsBlockRate float64 `json:"robots_block_rate"`

	HTTPShare    float64 `json:"httpx_share"`
	BrowserShare float64 `json:"playwright_share"`

	HTTPLatencyP50Ms    *int64 `json:"httpx_latency_p50_ms"`
	HTTPLatencyP95Ms    *int64 `json:"httpx_latency_p95_ms"`
	BrowserLatencyP50Ms *int64 `json:"playwright_latency_p50_ms"`
	BrowserLatencyP95Ms *int64 `json:"playwright_latency_p95_ms"`

	HTTPMeanContentLength    *int64 `json:"httpx_mean_content_length"`
	BrowserMeanContentLength *int64 `json:"playwright_mean_content_length"`

	Aborted     bool   `json:"aborted,omitempty"`
	AbortReason string `json:"abort_reason,omitempty"`

	GeneratedAt string `json:"generated_at"`
}
