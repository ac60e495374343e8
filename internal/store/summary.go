package store

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/chernistry/tavily/internal/metadata"
	"github.com/chernistry/tavily/internal/records"
	"github.com/chernistry/tavily/pkg/fileutil"
)

// timeNow is a seam for the package's wall-clock reads.
var timeNow = time.Now

// WriteSummary atomically replaces the run summary file.
// Regardless of how the run ended, the summary on disk is always a complete
// JSON document.
func WriteSummary(metadataSink metadata.MetadataSink, path string, summary records.RunSummary) *StoreError {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return &StoreError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseEncodeFailure,
			Path:      path,
		}
	}

	if err := fileutil.WriteFileAtomic(path, buf.Bytes(), 0644); err != nil {
		storeErr := &StoreError{
			Message:   err.Error(),
			Retryable: true,
			Cause:     ErrCauseFlushFailure,
			Path:      path,
		}
		metadataSink.RecordError(
			timeNow(),
			"store",
			"WriteSummary",
			mapStoreErrorToMetadataCause(storeErr),
			storeErr.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrWritePath, path),
			},
		)
		return storeErr
	}

	metadataSink.RecordArtifact(metadata.ArtifactSummary, path, nil)
	return nil
}
