package metadata

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/chernistry/tavily/pkg/urlutil"
)

// Recorder is the production MetadataSink: structured logging through zap.
// One recorder serves a whole batch; it is safe for concurrent use.
//
// The recorder owns log hygiene: URLs are stripped of query strings before
// they reach the log stream, and callers must never pass bodies or
// credentials as attribute values.
type Recorder struct {
	logger *zap.Logger
	worker string
}

func NewRecorder(worker string) Recorder {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := cfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	return Recorder{
		logger: logger.Named(worker),
		worker: worker,
	}
}

// NewRecorderWithLogger creates a Recorder backed by the given logger.
// This is useful for tests that capture log output.
func NewRecorderWithLogger(worker string, logger *zap.Logger) Recorder {
	return Recorder{
		logger: logger.Named(worker),
		worker: worker,
	}
}

func (r *Recorder) RecordFetch(
	url string,
	method string,
	stage string,
	status string,
	httpStatus int,
	duration time.Duration,
	retryCount int,
	shardIndex int,
) {
	r.logger.Info("fetch",
		zap.String("url", urlutil.StripQuery(url)),
		zap.String("method", method),
		zap.String("stage", stage),
		zap.String("status", status),
		zap.Int("http_status", httpStatus),
		zap.Duration("duration", duration),
		zap.Int("retries", retryCount),
		zap.Int("shard", shardIndex),
	)
}

func (r *Recorder) RecordEscalation(url string, reason string) {
	r.logger.Info("escalation",
		zap.String("url", urlutil.StripQuery(url)),
		zap.String("reason", reason),
	)
}

func (r *Recorder) RecordVerdict(url string, vendor string, confidence float64, reason string) {
	r.logger.Info("verdict",
		zap.String("url", urlutil.StripQuery(url)),
		zap.String("vendor", vendor),
		zap.Float64("confidence", confidence),
		zap.String("reason", reason),
	)
}

func (r *Recorder) RecordShard(runID string, shardID int, status string, urlsDone int, urlsTotal int) {
	r.logger.Info("shard",
		zap.String("run_id", runID),
		zap.Int("shard_id", shardID),
		zap.String("status", status),
		zap.Int("urls_done", urlsDone),
		zap.Int("urls_total", urlsTotal),
	)
}

func (r *Recorder) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause ErrorCause,
	errorString string,
	attrs []Attribute,
) {
	fields := []zap.Field{
		zap.Time("observed_at", observedAt),
		zap.String("package", packageName),
		zap.String("action", action),
		zap.String("cause", cause.String()),
		zap.String("error", errorString),
	}
	fields = append(fields, attrFields(attrs)...)
	r.logger.Error("pipeline error", fields...)
}

func (r *Recorder) RecordWarning(packageName string, message string, attrs []Attribute) {
	fields := []zap.Field{
		zap.String("package", packageName),
	}
	fields = append(fields, attrFields(attrs)...)
	r.logger.Warn(message, fields...)
}

func (r *Recorder) RecordArtifact(kind ArtifactKind, path string, attrs []Attribute) {
	fields := []zap.Field{
		zap.String("kind", string(kind)),
		zap.String("path", path),
	}
	fields = append(fields, attrFields(attrs)...)
	r.logger.Info("artifact", fields...)
}

func (r *Recorder) RecordFinalRunStats(totalURLs int, totalErrors int, totalShards int, duration time.Duration) {
	r.logger.Info("run complete",
		zap.Int("total_urls", totalURLs),
		zap.Int("total_errors", totalErrors),
		zap.Int("total_shards", totalShards),
		zap.Int64("duration_ms", duration.Milliseconds()),
	)
}

// Sync flushes buffered log entries. Call before process exit.
func (r *Recorder) Sync() {
	_ = r.logger.Sync()
}

func attrFields(attrs []Attribute) []zap.Field {
	fields := make([]zap.Field, 0, len(attrs))
	for _, attr := range attrs {
		value := attr.Value
		if attr.Key == AttrURL {
			value = urlutil.StripQuery(value)
		}
		fields = append(fields, zap.String(string(attr.Key), value))
	}
	return fields
}
