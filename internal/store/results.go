package store

import (
	"os"
	"path/filepath"

	"github.com/chernistry/tavily/internal/metadata"
	"github.com/chernistry/tavily/internal/records"
	"github.com/chernistry/tavily/pkg/failure"
	"github.com/chernistry/tavily/pkg/fileutil"
)

/*
Responsibilities

- Append URL Records to the records file as line-delimited JSON
- Buffer writes and flush when the buffer fills or on Close
- Preserve non-ASCII content as UTF-8

Not safe for concurrent writers by design: the shard runner serializes
writes through a single store instance.
*/

// DefaultBufferSize flushes after this many buffered records.
const DefaultBufferSize = 100

type ResultStore struct {
	metadataSink metadata.MetadataSink
	path         string
	bufferSize   int
	buffer       [][]byte
	opened       bool
}

func NewResultStore(metadataSink metadata.MetadataSink, path string, bufferSize int) *ResultStore {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &ResultStore{
		metadataSink: metadataSink,
		path:         path,
		bufferSize:   bufferSize,
	}
}

// Write appends one record to the buffer, flushing to disk when full.
func (s *ResultStore) Write(record records.URLRecord) failure.ClassifiedError {
	line, err := records.EncodeLine(record)
	if err != nil {
		storeErr := &StoreError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseEncodeFailure,
			Path:      s.path,
		}
		s.recordError("ResultStore.Write", storeErr)
		return storeErr
	}

	s.buffer = append(s.buffer, line)
	if len(s.buffer) >= s.bufferSize {
		return s.Flush()
	}
	return nil
}

// Flush appends all buffered lines to the records file.
func (s *ResultStore) Flush() failure.ClassifiedError {
	if len(s.buffer) == 0 {
		return nil
	}

	if !s.opened {
		if err := fileutil.EnsureDir(filepath.Dir(s.path)); err != nil {
			storeErr := &StoreError{
				Message:   err.Error(),
				Retryable: false,
				Cause:     ErrCauseOpenFailure,
				Path:      s.path,
			}
			s.recordError("ResultStore.Flush", storeErr)
			return storeErr
		}
		s.opened = true
	}

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		storeErr := &StoreError{
			Message:   err.Error(),
			Retryable: true,
			Cause:     ErrCauseOpenFailure,
			Path:      s.path,
		}
		s.recordError("ResultStore.Flush", storeErr)
		return storeErr
	}
	defer file.Close()

	for _, line := range s.buffer {
		if _, err := file.Write(line); err != nil {
			storeErr := &StoreError{
				Message:   err.Error(),
				Retryable: true,
				Cause:     ErrCauseFlushFailure,
				Path:      s.path,
			}
			s.recordError("ResultStore.Flush", storeErr)
			return storeErr
		}
	}
	s.buffer = s.buffer[:0]
	return nil
}

// Close flushes the buffered tail.
func (s *ResultStore) Close() failure.ClassifiedError {
	return s.Flush()
}

// Buffered returns the number of records waiting for the next flush.
// This is primarily useful for tests.
func (s *ResultStore) Buffered() int {
	return len(s.buffer)
}

// Path returns the records file path.
func (s *ResultStore) Path() string {
	return s.path
}

// ReadAll loads every record currently on disk, ignoring unknown fields.
func ReadAll(path string) ([]records.URLRecord, failure.ClassifiedError) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &StoreError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseReadFailure,
			Path:      path,
		}
	}
	defer file.Close()

	out, decodeErr := records.DecodeLines(file)
	if decodeErr != nil {
		return nil, &StoreError{
			Message:   decodeErr.Error(),
			Retryable: false,
			Cause:     ErrCauseReadFailure,
			Path:      path,
		}
	}
	return out, nil
}

func (s *ResultStore) recordError(action string, storeErr *StoreError) {
	s.metadataSink.RecordError(
		timeNow(),
		"store",
		action,
		mapStoreErrorToMetadataCause(storeErr),
		storeErr.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrWritePath, storeErr.Path),
		},
	)
}
