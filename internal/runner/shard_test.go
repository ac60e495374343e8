package runner

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chernistry/tavily/internal/metadata"
	"github.com/chernistry/tavily/internal/records"
	"github.com/chernistry/tavily/internal/store"
)

// routerFake returns a success record per job and counts invocations.
type routerFake struct {
	mu    sync.Mutex
	calls []string
}

func (r *routerFake) RouteAndFetch(ctx context.Context, job records.Job) records.URLRecord {
	r.mu.Lock()
	r.calls = append(r.calls, job.URL)
	r.mu.Unlock()
	return records.NewURLRecord(records.FetchRecord{
		URL:        job.URL,
		Method:     records.MethodHTTP,
		Stage:      records.StagePrimary,
		Status:     records.StatusSuccess,
		ShardIndex: job.ShardIndex,
	})
}

// deadFake reports the fixed dead state the test sets.
type deadFake struct {
	dead bool
}

func (d *deadFake) Dead() bool {
	return d.dead
}

func shardJobs(n int) []records.Job {
	jobs := make([]records.Job, n)
	for i := range jobs {
		jobs[i] = records.Job{URL: "https://example.com/" + string(rune('a'+i)), ShardIndex: 0, PositionInShard: i}
	}
	return jobs
}

func newShardFixture(t *testing.T) (*store.CheckpointStore, *store.ResultStore, string) {
	t.Helper()
	dir := t.TempDir()
	checkpoints := store.NewCheckpointStore(&metadata.NoopSink{}, filepath.Join(dir, "checkpoints"))
	recordsPath := filepath.Join(dir, "records.jsonl")
	results := store.NewResultStore(&metadata.NoopSink{}, recordsPath, 2)
	return &checkpoints, results, recordsPath
}

func TestShardRunner_OneRecordPerJob(t *testing.T) {
	checkpoints, results, recordsPath := newShardFixture(t)
	runner := NewShardRunner(&metadata.NoopSink{}, checkpoints, 4)
	jobs := shardJobs(7)

	err := runner.Run(context.Background(), "run-1", 0, jobs, &routerFake{}, &deadFake{}, results)
	require.NoError(t, err)

	loaded, readErr := store.ReadAll(recordsPath)
	require.Nil(t, readErr)
	assert.Len(t, loaded, len(jobs))

	seen := map[string]bool{}
	for _, record := range loaded {
		seen[record.URL] = true
	}
	assert.Len(t, seen, len(jobs), "every job appears exactly once")

	checkpoint := checkpoints.Read("run-1", 0, len(jobs))
	assert.Equal(t, records.ShardCompleted, checkpoint.Status)
	assert.Equal(t, len(jobs), checkpoint.URLsDone)
}

func TestShardRunner_CompletedShardSkipped(t *testing.T) {
	checkpoints, results, recordsPath := newShardFixture(t)

	require.Nil(t, checkpoints.Write(records.ShardCheckpoint{
		RunID: "run-1", ShardID: 0, URLsTotal: 3, URLsDone: 3,
		Status: records.ShardCompleted,
	}))

	runner := NewShardRunner(&metadata.NoopSink{}, checkpoints, 4)
	router := &routerFake{}

	err := runner.Run(context.Background(), "run-1", 0, shardJobs(3), router, &deadFake{}, results)
	require.NoError(t, err)
	assert.Empty(t, router.calls, "completed shard must not re-run")

	_, readErr := store.ReadAll(recordsPath)
	assert.NotNil(t, readErr, "no records written for a skipped shard")
}

func TestShardRunner_FailedShardReRuns(t *testing.T) {
	checkpoints, results, _ := newShardFixture(t)

	require.Nil(t, checkpoints.Write(records.ShardCheckpoint{
		RunID: "run-1", ShardID: 0, URLsTotal: 3, URLsDone: 1,
		Status: records.ShardFailed,
	}))

	runner := NewShardRunner(&metadata.NoopSink{}, checkpoints, 4)
	router := &routerFake{}

	err := runner.Run(context.Background(), "run-1", 0, shardJobs(3), router, &deadFake{}, results)
	require.NoError(t, err)
	assert.Len(t, router.calls, 3)

	checkpoint := checkpoints.Read("run-1", 0, 3)
	assert.Equal(t, records.ShardCompleted, checkpoint.Status)
}

func TestShardRunner_DeadHandleFailsShard(t *testing.T) {
	checkpoints, results, _ := newShardFixture(t)

	runner := NewShardRunner(&metadata.NoopSink{}, checkpoints, 1)
	dead := &deadFake{dead: true}

	err := runner.Run(context.Background(), "run-1", 0, shardJobs(4), &routerFake{}, dead, results)
	require.Error(t, err)

	checkpoint := checkpoints.Read("run-1", 0, 4)
	assert.Equal(t, records.ShardFailed, checkpoint.Status)
}

func TestShardRunner_NilHandleAllowed(t *testing.T) {
	checkpoints, results, _ := newShardFixture(t)

	runner := NewShardRunner(&metadata.NoopSink{}, checkpoints, 2)
	err := runner.Run(context.Background(), "run-1", 0, shardJobs(2), &routerFake{}, nil, results)
	assert.NoError(t, err)
}
