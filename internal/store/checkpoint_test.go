package store_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chernistry/tavily/internal/metadata"
	"github.com/chernistry/tavily/internal/records"
	"github.com/chernistry/tavily/internal/store"
)

func TestCheckpoint_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	checkpoints := store.NewCheckpointStore(&metadata.NoopSink{}, dir)

	written := records.ShardCheckpoint{
		RunID:     "run-1",
		ShardID:   2,
		URLsTotal: 500,
		URLsDone:  123,
		Status:    records.ShardInProgress,
	}
	require.Nil(t, checkpoints.Write(written))

	loaded := checkpoints.Read("run-1", 2, 500)
	assert.Equal(t, written.RunID, loaded.RunID)
	assert.Equal(t, written.ShardID, loaded.ShardID)
	assert.Equal(t, written.URLsDone, loaded.URLsDone)
	assert.Equal(t, records.ShardInProgress, loaded.Status)
	assert.NotEmpty(t, loaded.LastUpdatedAt)
}

func TestCheckpoint_FileNamingScheme(t *testing.T) {
	dir := t.TempDir()
	checkpoints := store.NewCheckpointStore(&metadata.NoopSink{}, dir)

	require.Nil(t, checkpoints.Write(records.ShardCheckpoint{RunID: "run-9", ShardID: 4, Status: records.ShardPending}))

	_, err := os.Stat(filepath.Join(dir, "run-9_shard_4.json"))
	assert.NoError(t, err)
}

func TestCheckpoint_MissingReadsAsPending(t *testing.T) {
	checkpoints := store.NewCheckpointStore(&metadata.NoopSink{}, t.TempDir())

	loaded := checkpoints.Read("run-1", 0, 42)
	assert.Equal(t, records.ShardPending, loaded.Status)
	assert.Equal(t, 42, loaded.URLsTotal)
	assert.Equal(t, 0, loaded.URLsDone)
}

func TestCheckpoint_CorruptReadsAsPending(t *testing.T) {
	dir := t.TempDir()
	checkpoints := store.NewCheckpointStore(&metadata.NoopSink{}, dir)

	path := filepath.Join(dir, "run-1_shard_0.json")
	require.NoError(t, os.WriteFile(path, []byte("{truncated"), 0644))

	loaded := checkpoints.Read("run-1", 0, 10)
	assert.Equal(t, records.ShardPending, loaded.Status)
}

func TestCheckpoint_WriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	checkpoints := store.NewCheckpointStore(&metadata.NoopSink{}, dir)

	require.Nil(t, checkpoints.Write(records.ShardCheckpoint{RunID: "run-1", ShardID: 0, Status: records.ShardCompleted}))

	entries, _ := os.ReadDir(dir)
	for _, entry := range entries {
		if strings.Contains(entry.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", entry.Name())
		}
	}
}

func TestWriteSummary_Atomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run_summary.json")

	first := records.RunSummary{RunID: "run-1", TotalURLs: 10}
	require.Nil(t, store.WriteSummary(&metadata.NoopSink{}, path, first))

	second := records.RunSummary{RunID: "run-1", TotalURLs: 20, Aborted: true, AbortReason: "guardrail"}
	require.Nil(t, store.WriteSummary(&metadata.NoopSink{}, path, second))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"total_urls": 20`)
	assert.Contains(t, string(data), `"aborted": true`)
}
