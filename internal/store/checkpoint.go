package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chernistry/tavily/internal/metadata"
	"github.com/chernistry/tavily/internal/records"
	"github.com/chernistry/tavily/pkg/fileutil"
)

/*
Checkpoint store.

One JSON object per shard per run under
checkpoints/{run_id}_shard_{shard_id}.json. Every write is
write-then-rename: a crashed run never leaves a partial checkpoint, so
resume can always trust what it reads.
*/

type CheckpointStore struct {
	metadataSink metadata.MetadataSink
	dir          string
}

func NewCheckpointStore(metadataSink metadata.MetadataSink, dir string) CheckpointStore {
	return CheckpointStore{
		metadataSink: metadataSink,
		dir:          dir,
	}
}

// Read loads the checkpoint for a shard. A missing file yields a pending
// checkpoint; a corrupt file is treated the same way, with a warning, so a
// damaged journal only costs a shard re-run, never the batch.
func (c *CheckpointStore) Read(runID string, shardID int, urlsTotal int) records.ShardCheckpoint {
	path := c.path(runID, shardID)

	data, err := os.ReadFile(path)
	if err != nil {
		return pendingCheckpoint(runID, shardID, urlsTotal)
	}

	var checkpoint records.ShardCheckpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		c.metadataSink.RecordWarning(
			"store",
			"corrupt checkpoint, treating shard as pending",
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrWritePath, path),
			},
		)
		return pendingCheckpoint(runID, shardID, urlsTotal)
	}
	return checkpoint
}

// Write persists a checkpoint atomically.
func (c *CheckpointStore) Write(checkpoint records.ShardCheckpoint) *StoreError {
	checkpoint.LastUpdatedAt = time.Now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return &StoreError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseEncodeFailure,
		}
	}
	data = append(data, '\n')

	path := c.path(checkpoint.RunID, checkpoint.ShardID)
	if writeErr := fileutil.WriteFileAtomic(path, data, 0644); writeErr != nil {
		storeErr := &StoreError{
			Message:   writeErr.Error(),
			Retryable: true,
			Cause:     ErrCauseCheckpointWrite,
			Path:      path,
		}
		c.metadataSink.RecordError(
			timeNow(),
			"store",
			"CheckpointStore.Write",
			mapStoreErrorToMetadataCause(storeErr),
			storeErr.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrWritePath, path),
			},
		)
		return storeErr
	}
	return nil
}

func (c *CheckpointStore) path(runID string, shardID int) string {
	return filepath.Join(c.dir, fmt.Sprintf("%s_shard_%d.json", runID, shardID))
}

func pendingCheckpoint(runID string, shardID int, urlsTotal int) records.ShardCheckpoint {
	return records.ShardCheckpoint{
		RunID:     runID,
		ShardID:   shardID,
		URLsTotal: urlsTotal,
		Status:    records.ShardPending,
	}
}
