package store_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chernistry/tavily/internal/metadata"
	"github.com/chernistry/tavily/internal/records"
	"github.com/chernistry/tavily/internal/store"
)

func TestResultStore_BuffersUntilFull(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "stats.jsonl")
	s := store.NewResultStore(&metadata.NoopSink{}, path, 3)

	require.Nil(t, s.Write(records.URLRecord{URL: "https://a.test", Status: records.StatusSuccess}))
	require.Nil(t, s.Write(records.URLRecord{URL: "https://b.test", Status: records.StatusSuccess}))
	assert.Equal(t, 2, s.Buffered())

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "nothing on disk before the buffer fills")

	require.Nil(t, s.Write(records.URLRecord{URL: "https://c.test", Status: records.StatusSuccess}))
	assert.Equal(t, 0, s.Buffered())

	loaded, err := store.ReadAll(path)
	require.Nil(t, err)
	assert.Len(t, loaded, 3)
}

func TestResultStore_CloseFlushesTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.jsonl")
	s := store.NewResultStore(&metadata.NoopSink{}, path, 100)

	require.Nil(t, s.Write(records.URLRecord{URL: "https://a.test", Status: records.StatusSuccess}))
	require.Nil(t, s.Close())

	loaded, err := store.ReadAll(path)
	require.Nil(t, err)
	assert.Len(t, loaded, 1)
}

func TestResultStore_AppendsAcrossFlushes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.jsonl")
	s := store.NewResultStore(&metadata.NoopSink{}, path, 1)

	for _, u := range []string{"https://a.test", "https://b.test", "https://c.test"} {
		require.Nil(t, s.Write(records.URLRecord{URL: u, Status: records.StatusSuccess}))
	}

	loaded, err := store.ReadAll(path)
	require.Nil(t, err)
	require.Len(t, loaded, 3)
	assert.Equal(t, "https://a.test", loaded[0].URL)
	assert.Equal(t, "https://c.test", loaded[2].URL)
}

func TestResultStore_PreservesUTF8(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.jsonl")
	s := store.NewResultStore(&metadata.NoopSink{}, path, 1)

	require.Nil(t, s.Write(records.URLRecord{URL: "https://例え.test/ページ", Status: records.StatusSuccess}))

	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Contains(t, string(data), "例え")
}

func TestReadAll_MissingFile(t *testing.T) {
	_, err := store.ReadAll(filepath.Join(t.TempDir(), "absent.jsonl"))
	assert.NotNil(t, err)
}
