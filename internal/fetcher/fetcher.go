package fetcher

import (
	"context"

	"github.com/chernistry/tavily/internal/records"
	"github.com/chernistry/tavily/pkg/failure"
)

// Fetcher performs the primary stage for one job. Expected per-URL outcomes
// (robots block, HTTP errors, timeouts, challenges, oversized bodies) are
// encoded in the returned record; only unexpected internal failures surface
// as errors, which the router converts into other_error records.
type Fetcher interface {
	Fetch(ctx context.Context, param FetchParam) (records.FetchRecord, failure.ClassifiedError)
}
