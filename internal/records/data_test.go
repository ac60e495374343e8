package records_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chernistry/tavily/internal/records"
)

func TestNewURLRecord_DropsBody(t *testing.T) {
	fetch := records.FetchRecord{
		URL:           "https://example.com",
		Host:          "example.com",
		Method:        records.MethodHTTP,
		Stage:         records.StagePrimary,
		Status:        records.StatusSuccess,
		HTTPStatus:    200,
		ContentLength: 2048,
		Body:          []byte("<html>payload that must never persist</html>"),
		FinishedAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	record := records.NewURLRecord(fetch)

	data, err := json.Marshal(record)
	assert.NoError(t, err)
	assert.NotContains(t, string(data), "payload that must never persist")
	assert.NotContains(t, string(data), `"body"`)
}

func TestNewURLRecord_TimestampIsFinishTimeUTC(t *testing.T) {
	finished := time.Date(2025, 6, 1, 12, 30, 45, 0, time.FixedZone("X", 3600))
	record := records.NewURLRecord(records.FetchRecord{
		URL:        "https://example.com",
		Status:     records.StatusSuccess,
		FinishedAt: finished,
	})

	assert.Equal(t, "2025-06-01T11:30:45Z", record.Timestamp)
}

func TestNewURLRecord_ZeroFinishFallsBackToNow(t *testing.T) {
	record := records.NewURLRecord(records.FetchRecord{
		URL:    "https://example.com",
		Status: records.StatusOtherError,
	})
	assert.NotEmpty(t, record.Timestamp)
}

func TestStatusValid(t *testing.T) {
	valid := []records.Status{
		records.StatusSuccess, records.StatusCaptchaDetected, records.StatusRobotsBlocked,
		records.StatusHTTPError, records.StatusTimeout, records.StatusInvalidURL,
		records.StatusTooLarge, records.StatusOtherError,
	}
	for _, status := range valid {
		assert.True(t, status.Valid(), "status %q should be valid", status)
	}
	assert.False(t, records.Status("bogus").Valid())
}

func TestMethodAndStageValid(t *testing.T) {
	assert.True(t, records.MethodHTTP.Valid())
	assert.True(t, records.MethodBrowser.Valid())
	assert.False(t, records.Method("carrier-pigeon").Valid())

	assert.True(t, records.StagePrimary.Valid())
	assert.True(t, records.StageFallback.Valid())
	assert.False(t, records.Stage("tertiary").Valid())
}

func TestSplitIntoShards(t *testing.T) {
	tests := []struct {
		name       string
		urls       []string
		size       int
		wantShards int
		wantLasts  int
	}{
		{name: "even split", urls: nURLs(6), size: 2, wantShards: 3, wantLasts: 2},
		{name: "uneven tail", urls: nURLs(5), size: 2, wantShards: 3, wantLasts: 1},
		{name: "single shard", urls: nURLs(3), size: 10, wantShards: 1, wantLasts: 3},
		{name: "size below one collapses to one shard", urls: nURLs(4), size: 0, wantShards: 1, wantLasts: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shards := records.SplitIntoShards(tt.urls, tt.size)
			assert.Len(t, shards, tt.wantShards)
			assert.Len(t, shards[len(shards)-1], tt.wantLasts)

			// shard coordinates are stamped consistently
			total := 0
			for shardIndex, shard := range shards {
				for pos, job := range shard {
					assert.Equal(t, shardIndex, job.ShardIndex)
					assert.Equal(t, pos, job.PositionInShard)
					total++
				}
			}
			assert.Equal(t, len(tt.urls), total)
		})
	}
}

func TestSplitIntoShards_Empty(t *testing.T) {
	assert.Nil(t, records.SplitIntoShards(nil, 0))
	assert.Nil(t, records.SplitIntoShards(nil, 5))
}

func nURLs(n int) []string {
	urls := make([]string, n)
	for i := range urls {
		urls[i] = "https://example.com/" + strings.Repeat("x", i+1)
	}
	return urls
}
