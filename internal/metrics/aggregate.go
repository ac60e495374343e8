package metrics

/*
Responsibilities

- Fold the stream of URL Records into the Run Summary
- Rates are fractions over total_urls, always within [0, 1]
- Percentiles use the nearest-rank index round(p/100 * (n-1)) over the
  sorted sample, nil when a method has no latency rows
- Mean content length is an integer mean over positive-length rows, nil
  when none

Method shares may sum to less than one: records that never reached the
network (invalid_url) belong to neither method.
*/

import (
	"math"
	"sort"
	"time"

	"github.com/chernistry/tavily/internal/records"
)

// Aggregate computes the Run Summary for a record stream.
func Aggregate(runID string, urlRecords []records.URLRecord) records.RunSummary {
	total := len(urlRecords)

	summary := records.RunSummary{
		RunID:       runID,
		TotalURLs:   total,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if total == 0 {
		return summary
	}

	var success, httpError, timeout, captcha, robotsBlock int
	var httpCount, browserCount int
	var httpLatencies, browserLatencies []int64
	var httpLengths, browserLengths []int64

	for _, record := range urlRecords {
		switch record.Status {
		case records.StatusSuccess:
			success++
		case records.StatusHTTPError:
			httpError++
		case records.StatusTimeout:
			timeout++
		case records.StatusCaptchaDetected:
			captcha++
		case records.StatusRobotsBlocked:
			robotsBlock++
		}

		switch record.Status {
		case records.StatusInvalidURL:
			// no network attempt: belongs to neither method share
		default:
			switch record.Method {
			case records.MethodHTTP:
				httpCount++
				if record.LatencyMs > 0 {
					httpLatencies = append(httpLatencies, record.LatencyMs)
				}
				if record.ContentLength > 0 {
					httpLengths = append(httpLengths, record.ContentLength)
				}
			case records.MethodBrowser:
				browserCount++
				if record.LatencyMs > 0 {
					browserLatencies = append(browserLatencies, record.LatencyMs)
				}
				if record.ContentLength > 0 {
					browserLengths = append(browserLengths, record.ContentLength)
				}
			}
		}
	}

	denominator := float64(total)
	summary.SuccessRate = float64(success) / denominator
	summary.HTTPErrorRate = float64(httpError) / denominator
	summary.TimeoutRate = float64(timeout) / denominator
	summary.CaptchaRate = float64(captcha) / denominator
	summary.RobotsBlockRate = float64(robotsBlock) / denominator

	summary.HTTPShare = float64(httpCount) / denominator
	summary.BrowserShare = float64(browserCount) / denominator

	summary.HTTPLatencyP50Ms = Percentile(httpLatencies, 50)
	summary.HTTPLatencyP95Ms = Percentile(httpLatencies, 95)
	summary.BrowserLatencyP50Ms = Percentile(browserLatencies, 50)
	summary.BrowserLatencyP95Ms = Percentile(browserLatencies, 95)

	summary.HTTPMeanContentLength = integerMean(httpLengths)
	summary.BrowserMeanContentLength = integerMean(browserLengths)

	return summary
}

// Percentile returns the p-th percentile of the sample by nearest rank:
// index = round(p/100 * (n-1)), clamped to [0, n-1]. Nil for an empty
// sample.
func Percentile(sample []int64, p float64) *int64 {
	if len(sample) == 0 {
		return nil
	}
	sorted := make([]int64, len(sample))
	copy(sorted, sample)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	index := int(math.Round(p / 100 * float64(len(sorted)-1)))
	if index < 0 {
		index = 0
	}
	if index > len(sorted)-1 {
		index = len(sorted) - 1
	}
	value := sorted[index]
	return &value
}

func integerMean(sample []int64) *int64 {
	if len(sample) == 0 {
		return nil
	}
	var sum int64
	for _, v := range sample {
		sum += v
	}
	mean := sum / int64(len(sample))
	return &mean
}
