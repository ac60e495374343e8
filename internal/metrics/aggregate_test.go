package metrics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chernistry/tavily/internal/metrics"
	"github.com/chernistry/tavily/internal/records"
)

func record(status records.Status, method records.Method, latencyMs, contentLength int64) records.URLRecord {
	return records.URLRecord{
		URL:           "https://example.com/x",
		Status:        status,
		Method:        method,
		LatencyMs:     latencyMs,
		ContentLength: contentLength,
	}
}

func TestAggregate_EmptyInput(t *testing.T) {
	summary := metrics.Aggregate("run-1", nil)

	assert.Equal(t, 0, summary.TotalURLs)
	assert.Zero(t, summary.SuccessRate)
	assert.Nil(t, summary.HTTPLatencyP50Ms)
	assert.Nil(t, summary.BrowserMeanContentLength)
	assert.NotEmpty(t, summary.GeneratedAt)
}

func TestAggregate_HappyPathRates(t *testing.T) {
	summary := metrics.Aggregate("run-1", []records.URLRecord{
		record(records.StatusSuccess, records.MethodHTTP, 120, 2048),
	})

	assert.Equal(t, 1, summary.TotalURLs)
	assert.InDelta(t, 1.0, summary.SuccessRate, 1e-9)
	assert.InDelta(t, 1.0, summary.HTTPShare, 1e-9)
	assert.Zero(t, summary.BrowserShare)
	require.NotNil(t, summary.HTTPLatencyP50Ms)
	assert.Equal(t, int64(120), *summary.HTTPLatencyP50Ms)
	require.NotNil(t, summary.HTTPMeanContentLength)
	assert.Equal(t, int64(2048), *summary.HTTPMeanContentLength)
}

func TestAggregate_MixedStatuses(t *testing.T) {
	input := []records.URLRecord{
		record(records.StatusSuccess, records.MethodHTTP, 100, 1000),
		record(records.StatusHTTPError, records.MethodHTTP, 80, 0),
		record(records.StatusTimeout, records.MethodHTTP, 0, 0),
		record(records.StatusCaptchaDetected, records.MethodHTTP, 50, 500),
		record(records.StatusRobotsBlocked, records.MethodHTTP, 0, 0),
		record(records.StatusSuccess, records.MethodBrowser, 2000, 50_000),
	}

	summary := metrics.Aggregate("run-1", input)

	assert.Equal(t, 6, summary.TotalURLs)
	assert.InDelta(t, 2.0/6, summary.SuccessRate, 1e-9)
	assert.InDelta(t, 1.0/6, summary.HTTPErrorRate, 1e-9)
	assert.InDelta(t, 1.0/6, summary.TimeoutRate, 1e-9)
	assert.InDelta(t, 1.0/6, summary.CaptchaRate, 1e-9)
	assert.InDelta(t, 1.0/6, summary.RobotsBlockRate, 1e-9)

	sum := summary.SuccessRate + summary.HTTPErrorRate + summary.TimeoutRate +
		summary.CaptchaRate + summary.RobotsBlockRate
	assert.LessOrEqual(t, sum, 1.0)
}

func TestAggregate_InvalidURLCountsInDenominatorButNoShare(t *testing.T) {
	input := []records.URLRecord{
		record(records.StatusSuccess, records.MethodHTTP, 100, 2000),
		record(records.StatusInvalidURL, records.MethodHTTP, 0, 0),
	}

	summary := metrics.Aggregate("run-1", input)

	assert.Equal(t, 2, summary.TotalURLs)
	assert.InDelta(t, 0.5, summary.SuccessRate, 1e-9)
	assert.InDelta(t, 0.5, summary.HTTPShare, 1e-9)
	assert.LessOrEqual(t, summary.HTTPShare+summary.BrowserShare, 1.0)
}

func TestAggregate_NoLatencyRowsYieldNil(t *testing.T) {
	input := []records.URLRecord{
		record(records.StatusSuccess, records.MethodHTTP, 100, 2000),
	}

	summary := metrics.Aggregate("run-1", input)

	assert.Nil(t, summary.BrowserLatencyP50Ms)
	assert.Nil(t, summary.BrowserLatencyP95Ms)
	assert.Nil(t, summary.BrowserMeanContentLength)
}

func TestAggregate_MeanIgnoresNonPositiveLengths(t *testing.T) {
	input := []records.URLRecord{
		record(records.StatusSuccess, records.MethodHTTP, 100, 1000),
		record(records.StatusHTTPError, records.MethodHTTP, 100, 0),
		record(records.StatusSuccess, records.MethodHTTP, 100, 3000),
	}

	summary := metrics.Aggregate("run-1", input)

	require.NotNil(t, summary.HTTPMeanContentLength)
	assert.Equal(t, int64(2000), *summary.HTTPMeanContentLength)
}

func TestPercentile(t *testing.T) {
	sample := []int64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

	tests := []struct {
		name string
		p    float64
		want int64
	}{
		{name: "p50 of ten", p: 50, want: 60},  // round(0.5*9) = 5
		{name: "p95 of ten", p: 95, want: 100}, // round(0.95*9) = 9
		{name: "p0 is min", p: 0, want: 10},
		{name: "p100 is max", p: 100, want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := metrics.Percentile(sample, tt.p)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestPercentile_SingleSample(t *testing.T) {
	got := metrics.Percentile([]int64{42}, 95)
	require.NotNil(t, got)
	assert.Equal(t, int64(42), *got)
}

func TestPercentile_Empty(t *testing.T) {
	assert.Nil(t, metrics.Percentile(nil, 50))
}

func TestPercentile_DoesNotMutateInput(t *testing.T) {
	sample := []int64{30, 10, 20}
	metrics.Percentile(sample, 50)
	assert.Equal(t, []int64{30, 10, 20}, sample)
}
