package runner

/*
Batch runner.

Composes the whole pipeline: input → shards → per-shard fan-out → records →
summary. Shared collaborators (robots cache, scheduler, HTTP transport,
session) live for the batch; the browser handle is recreated per shard so
its bounded lifetime also bounds leak exposure.

Guardrail: when a completed shard's combined captcha + http_error + timeout
rate exceeds the threshold, global concurrency is halved once; a second
consecutive trip aborts the run. Either way the summary on disk is complete
and well-formed at termination.
*/

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/chernistry/tavily/internal/browser"
	"github.com/chernistry/tavily/internal/config"
	"github.com/chernistry/tavily/internal/fetcher"
	"github.com/chernistry/tavily/internal/input"
	"github.com/chernistry/tavily/internal/metadata"
	"github.com/chernistry/tavily/internal/metrics"
	"github.com/chernistry/tavily/internal/records"
	"github.com/chernistry/tavily/internal/robots"
	"github.com/chernistry/tavily/internal/router"
	"github.com/chernistry/tavily/internal/scheduler"
	"github.com/chernistry/tavily/internal/stealth"
	"github.com/chernistry/tavily/internal/store"
)

// badRateThreshold trips the guardrail when a shard's combined
// captcha + http_error + timeout fraction exceeds it.
const badRateThreshold = 0.4

// BrowserStage bundles what one shard needs from the browser side.
type BrowserStage struct {
	Fetcher browser.Fetcher
	Handle  DeadChecker
	Close   func()
}

// BrowserFactory builds the fallback stage for one shard. Tests substitute
// a stub; production uses chromeFactory.
type BrowserFactory func(shardID int) (BrowserStage, error)

type BatchRunner struct {
	metadataSink   metadata.MetadataSink
	runFinalizer   metadata.RunFinalizer
	cfg            config.Config
	browserFactory BrowserFactory

	sched   *scheduler.DomainScheduler
	robot   robots.Robot
	httpF   fetcher.Fetcher
	session *stealth.Session
	store   stealth.SessionStore
}

func NewBatchRunner(
	metadataSink metadata.MetadataSink,
	runFinalizer metadata.RunFinalizer,
	cfg config.Config,
) (*BatchRunner, error) {
	httpClient, err := fetcher.NewTransportClient(
		cfg.Proxy().URL("https"),
		cfg.HostConcurrency(),
		cfg.HTTPTimeout(),
	)
	if err != nil {
		return nil, &RunError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseTransportFailure,
		}
	}

	robot := robots.NewCachedRobot(
		metadataSink,
		robots.NewRobotsFetcher(httpClient, 5*time.Second),
	)

	sched := scheduler.NewDomainScheduler(metadataSink, scheduler.Param{
		GlobalSlots:   cfg.GlobalConcurrency(),
		HostSlots:     cfg.HostConcurrency(),
		HostOverrides: cfg.HostOverrides(),
		JitterLo:      cfg.JitterLo(),
		JitterHi:      cfg.JitterHi(),
		RandomSeed:    cfg.RandomSeed(),
	})

	httpF := fetcher.NewHTTPFetcher(metadataSink, robot, sched, httpClient, fetcher.Param{
		Timeout:     cfg.HTTPTimeout(),
		MaxBodySize: cfg.MaxBodySize(),
		RandomSeed:  cfg.RandomSeed(),
	})

	sessionStore := stealth.NewSessionStore(metadataSink, cfg.SessionDir())
	sessionID := cfg.SessionID()
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	session := sessionStore.Load(sessionID, cfg.Proxy().Region)

	b := &BatchRunner{
		metadataSink: metadataSink,
		runFinalizer: runFinalizer,
		cfg:          cfg,
		sched:        sched,
		robot:        robot,
		httpF:        httpF,
		session:      &session,
		store:        sessionStore,
	}
	b.browserFactory = b.chromeFactory
	return b, nil
}

// SetBrowserFactory substitutes the fallback-stage construction. Tests use
// this to avoid launching a real browser.
func (b *BatchRunner) SetBrowserFactory(factory BrowserFactory) {
	b.browserFactory = factory
}

// Session exposes the active session, primarily for tests.
func (b *BatchRunner) Session() *stealth.Session {
	return b.session
}

// Run executes the batch and returns the summary that was written to disk.
// Once the input has loaded, the summary is present and well-formed at every
// termination, aborts included; an input that fails to load returns an error
// before any summary is written. The error reports why a run ended early.
func (b *BatchRunner) Run(ctx context.Context, runID string) (records.RunSummary, error) {
	start := time.Now()
	if runID == "" {
		runID = uuid.New().String()
	}

	loader := input.NewLoader(b.metadataSink)
	urls, loadErr := loader.Load(b.cfg.InputPath())
	if loadErr != nil {
		return records.RunSummary{}, &RunError{
			Message:   loadErr.Error(),
			Retryable: false,
			Cause:     ErrCauseInputFailure,
		}
	}

	shards := records.SplitIntoShards(urls, b.cfg.ShardSize())
	checkpoints := store.NewCheckpointStore(b.metadataSink, b.cfg.CheckpointDir())
	shardRunner := NewShardRunner(b.metadataSink, &checkpoints, b.cfg.GlobalConcurrency())

	var runErr error
	lastTripped := false
	totalErrors := 0

	for shardID, jobs := range shards {
		if ctx.Err() != nil {
			runErr = ctx.Err()
			break
		}

		checkpoint := checkpoints.Read(runID, shardID, len(jobs))
		if checkpoint.Status == records.ShardCompleted {
			continue
		}

		// an incomplete shard re-runs from scratch; stale records go first
		shardPath := b.cfg.ShardRecordsPath(runID, shardID)
		_ = os.Remove(shardPath)

		stage, stageErr := b.browserFactory(shardID)
		if stageErr != nil {
			runErr = stageErr
			break
		}

		shardRouter := router.NewRouter(b.metadataSink, b.httpF, stage.Fetcher, router.Param{
			MinContentLength: b.cfg.MinContentLength(),
		})
		results := store.NewResultStore(b.metadataSink, shardPath, b.cfg.ResultBufferSize())

		shardErr := shardRunner.Run(ctx, runID, shardID, jobs, &shardRouter, stage.Handle, results)
		stage.Close()

		if shardErr != nil {
			runErr = shardErr
			break
		}

		tripped, shardErrors := b.evaluateGuardrail(shardPath)
		totalErrors += shardErrors
		if tripped {
			if lastTripped {
				runErr = &RunError{
					Message:   fmt.Sprintf("bad-status rate above %.0f%% in two consecutive shards", badRateThreshold*100),
					Retryable: false,
					Cause:     ErrCauseGuardrailTripped,
				}
				break
			}
			lastTripped = true
			halved := b.sched.GlobalSlots() / 2
			b.sched.ShrinkGlobal(halved)
			b.metadataSink.RecordWarning(
				"runner",
				"guardrail tripped, global concurrency halved",
				[]metadata.Attribute{
					metadata.NewAttr(metadata.AttrRunID, runID),
					metadata.NewAttr(metadata.AttrShard, fmt.Sprintf("%d", shardID)),
				},
			)
		} else {
			lastTripped = false
		}
	}

	summary, writeErr := b.finalize(runID, len(shards), runErr)
	if writeErr != nil && runErr == nil {
		runErr = writeErr
	}

	if saveErr := b.store.Save(*b.session); saveErr != nil {
		b.metadataSink.RecordWarning(
			"runner",
			"session save failed",
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrSessionID, b.session.ID),
				metadata.NewAttr(metadata.AttrMessage, saveErr.Message),
			},
		)
	}

	b.runFinalizer.RecordFinalRunStats(summary.TotalURLs, totalErrors, len(shards), time.Since(start))
	return summary, runErr
}

// finalize merges the per-shard record files into the records stream,
// aggregates, and atomically writes the summary.
func (b *BatchRunner) finalize(runID string, shardCount int, runErr error) (records.RunSummary, error) {
	merged := b.mergeShardRecords(runID, shardCount)

	summary := metrics.Aggregate(runID, merged)
	if runErr != nil {
		summary.Aborted = true
		summary.AbortReason = runErr.Error()
	}

	if err := store.WriteSummary(b.metadataSink, b.cfg.SummaryPath(), summary); err != nil {
		return summary, &RunError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseArtifactWrite,
		}
	}
	return summary, nil
}

// mergeShardRecords rewrites the merged records stream from the per-shard
// files, keeping the last occurrence per URL so a re-run shard supersedes
// its crashed predecessor.
func (b *BatchRunner) mergeShardRecords(runID string, shardCount int) []records.URLRecord {
	var all []records.URLRecord
	for shardID := 0; shardID < shardCount; shardID++ {
		shardRecords, err := store.ReadAll(b.cfg.ShardRecordsPath(runID, shardID))
		if err != nil {
			continue // missing shard file: shard never ran
		}
		all = append(all, shardRecords...)
	}

	lastIndex := make(map[string]int, len(all))
	for i, record := range all {
		lastIndex[record.URL] = i
	}
	deduped := make([]records.URLRecord, 0, len(lastIndex))
	for i, record := range all {
		if lastIndex[record.URL] == i {
			deduped = append(deduped, record)
		}
	}

	_ = os.Remove(b.cfg.RecordsPath())
	mergedStore := store.NewResultStore(b.metadataSink, b.cfg.RecordsPath(), b.cfg.ResultBufferSize())
	for _, record := range deduped {
		if err := mergedStore.Write(record); err != nil {
			break
		}
	}
	_ = mergedStore.Close()
	b.metadataSink.RecordArtifact(metadata.ArtifactRecords, b.cfg.RecordsPath(), nil)

	return deduped
}

// evaluateGuardrail computes a completed shard's bad-status rate.
func (b *BatchRunner) evaluateGuardrail(shardPath string) (bool, int) {
	shardRecords, err := store.ReadAll(shardPath)
	if err != nil || len(shardRecords) == 0 {
		return false, 0
	}
	bad := 0
	for _, record := range shardRecords {
		switch record.Status {
		case records.StatusCaptchaDetected, records.StatusHTTPError, records.StatusTimeout:
			bad++
		}
	}
	rate := float64(bad) / float64(len(shardRecords))
	return rate > badRateThreshold, bad
}

// chromeFactory is the production browser stage: one handle per shard.
func (b *BatchRunner) chromeFactory(shardID int) (BrowserStage, error) {
	handle, err := browser.NewHandle(b.metadataSink, browser.Param{
		Headless:          b.cfg.BrowserHeadless(),
		NavTimeout:        b.cfg.BrowserNavTimeout(),
		ContentSelector:   b.cfg.ContentSelector(),
		ContextsPerHandle: b.cfg.BrowserContextsPerHandle(),
		BlockStylesheets:  b.cfg.BlockStylesheets(),
		StealthMode:       b.cfg.StealthMode(),
		NetworkProfile:    b.cfg.NetworkProfile(),
		ProxyURL:          b.cfg.Proxy().URL("https"),
	})
	if err != nil {
		return BrowserStage{}, err
	}

	chromeFetcher := browser.NewChromeFetcher(b.metadataSink, b.sched, handle, b.session, browser.Param{
		Headless:          b.cfg.BrowserHeadless(),
		NavTimeout:        b.cfg.BrowserNavTimeout(),
		ContentSelector:   b.cfg.ContentSelector(),
		ContextsPerHandle: b.cfg.BrowserContextsPerHandle(),
		BlockStylesheets:  b.cfg.BlockStylesheets(),
		StealthMode:       b.cfg.StealthMode(),
		NetworkProfile:    b.cfg.NetworkProfile(),
	})

	return BrowserStage{
		Fetcher: chromeFetcher,
		Handle:  handle,
		Close:   handle.Close,
	}, nil
}
