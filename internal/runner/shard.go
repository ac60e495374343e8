package runner

/*
Shard runner.

Given a run id, a shard's jobs, a router, and a result store:

1. Read the checkpoint; completed shards return immediately
2. Mark the shard in_progress with a zero done-count
3. Fan the jobs out under bounded concurrency
4. Per job: route, append the record, bump the checkpoint
5. Mark the shard completed

Within one shard, record emission order matches job completion order, not
input order. A single URL's failure never aborts the shard; only a dead
browser handle does, because nothing after it could succeed.
*/

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/chernistry/tavily/internal/metadata"
	"github.com/chernistry/tavily/internal/records"
	"github.com/chernistry/tavily/internal/store"
)

// DeadChecker reports whether the shard's browser handle is beyond repair.
type DeadChecker interface {
	Dead() bool
}

// jobRouter is the per-job decision procedure (the strategy router).
type jobRouter interface {
	RouteAndFetch(ctx context.Context, job records.Job) records.URLRecord
}

type ShardRunner struct {
	metadataSink metadata.MetadataSink
	checkpoints  *store.CheckpointStore
	concurrency  int
}

func NewShardRunner(metadataSink metadata.MetadataSink, checkpoints *store.CheckpointStore, concurrency int) ShardRunner {
	if concurrency < 1 {
		concurrency = 1
	}
	return ShardRunner{
		metadataSink: metadataSink,
		checkpoints:  checkpoints,
		concurrency:  concurrency,
	}
}

// Run processes one shard to completion. The returned error is non-nil only
// for shard-fatal conditions (checkpoint write failure, dead browser).
func (s *ShardRunner) Run(
	ctx context.Context,
	runID string,
	shardID int,
	jobs []records.Job,
	router jobRouter,
	handle DeadChecker,
	results *store.ResultStore,
) error {
	checkpoint := s.checkpoints.Read(runID, shardID, len(jobs))
	if checkpoint.Status == records.ShardCompleted {
		s.metadataSink.RecordShard(runID, shardID, string(records.ShardCompleted), checkpoint.URLsDone, checkpoint.URLsTotal)
		return nil
	}

	checkpoint = records.ShardCheckpoint{
		RunID:     runID,
		ShardID:   shardID,
		URLsTotal: len(jobs),
		URLsDone:  0,
		Status:    records.ShardInProgress,
	}
	if err := s.checkpoints.Write(checkpoint); err != nil {
		return err
	}
	s.metadataSink.RecordShard(runID, shardID, string(records.ShardInProgress), 0, len(jobs))

	var mu sync.Mutex
	shardFailed := false

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.concurrency)

	for _, job := range jobs {
		job := job
		group.Go(func() error {
			if groupCtx.Err() != nil {
				return groupCtx.Err()
			}

			record := router.RouteAndFetch(groupCtx, job)

			mu.Lock()
			defer mu.Unlock()

			if err := results.Write(record); err != nil {
				// record loss is shard-fatal; progress would lie otherwise
				shardFailed = true
				return err
			}
			checkpoint.URLsDone++
			if err := s.checkpoints.Write(checkpoint); err != nil {
				shardFailed = true
				return err
			}

			if handle != nil && handle.Dead() {
				shardFailed = true
				return &RunError{
					Message:   "browser handle unrecoverable",
					Retryable: false,
					Cause:     ErrCauseBrowserDead,
				}
			}
			return nil
		})
	}

	runErr := group.Wait()

	if flushErr := results.Close(); flushErr != nil && runErr == nil {
		runErr = flushErr
		shardFailed = true
	}

	if runErr != nil || shardFailed {
		checkpoint.Status = records.ShardFailed
		_ = s.checkpoints.Write(checkpoint)
		s.metadataSink.RecordShard(runID, shardID, string(records.ShardFailed), checkpoint.URLsDone, checkpoint.URLsTotal)
		return runErr
	}

	checkpoint.Status = records.ShardCompleted
	if err := s.checkpoints.Write(checkpoint); err != nil {
		return err
	}
	s.metadataSink.RecordShard(runID, shardID, string(records.ShardCompleted), checkpoint.URLsDone, checkpoint.URLsTotal)
	return nil
}
