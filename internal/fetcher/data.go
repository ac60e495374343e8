package fetcher

import (
	"time"
)

// HTTP boundary

// FetchParam identifies one primary-stage attempt.
type FetchParam struct {
	url        string
	shardIndex int
}

func NewFetchParam(url string, shardIndex int) FetchParam {
	return FetchParam{
		url:        url,
		shardIndex: shardIndex,
	}
}

func (p FetchParam) URL() string {
	return p.url
}

func (p FetchParam) ShardIndex() int {
	return p.shardIndex
}

// httpOutcome is the raw transport result before record mapping.
type httpOutcome struct {
	statusCode int
	headers    map[string]string
	body       []byte
	encoding   string
	decodedLen int64
	tooLarge   bool
	htmlBody   bool
	finalURL   string
}

// Param carries the fetcher's construction-time settings.
type Param struct {
	Timeout     time.Duration
	MaxBodySize int64
	MaxAttempts int
	RandomSeed  int64
}

// DefaultMaxBodySize caps retained bodies at 1 MiB.
const DefaultMaxBodySize = 1 << 20

// headerProfile is one rotation entry for outgoing request headers.
type headerProfile struct {
	userAgent      string
	acceptLanguage string
}

// Small fixed rotation pool. Entries are plausible desktop browsers; the
// matching Accept-Language keeps the pair internally consistent.
var headerProfiles = []headerProfile{
	{
		userAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
		acceptLanguage: "en-US,en;q=0.9",
	},
	{
		userAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
		acceptLanguage: "en-US,en;q=0.8",
	},
	{
		userAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
		acceptLanguage: "en-GB,en;q=0.9",
	},
	{
		userAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
		acceptLanguage: "en-US,en;q=0.5",
	},
	{
		userAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
		acceptLanguage: "en-US,en;q=0.9",
	},
}
