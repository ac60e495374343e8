package browser

import (
	"time"

	"github.com/chernistry/tavily/internal/stealth"
)

const (
	// Navigation timeout bounds
	MinNavTimeout = 10 * time.Second
	MaxNavTimeout = 45 * time.Second

	// DefaultContextsPerHandle is how many browsing contexts one browser
	// serves before it is closed and relaunched to bound memory.
	DefaultContextsPerHandle = 50

	// relaunchAttempts bounds how often a dead browser is restarted before
	// the failure is considered unrecoverable.
	relaunchAttempts = 3
)

// ClampNavTimeout forces a configured navigation timeout into bounds.
func ClampNavTimeout(d time.Duration) time.Duration {
	if d < MinNavTimeout {
		return MinNavTimeout
	}
	if d > MaxNavTimeout {
		return MaxNavTimeout
	}
	return d
}

// Param carries the browser stage's construction-time settings.
type Param struct {
	Headless          bool
	NavTimeout        time.Duration
	SelectorTimeout   time.Duration
	ContentSelector   string
	ContextsPerHandle int
	BlockStylesheets  bool
	StealthMode       stealth.Mode
	NetworkProfile    stealth.NetworkProfile
	ProxyURL          string
}

// FetchParam identifies one fallback-stage attempt.
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

// pageResult is the raw navigation result before record mapping.
type pageResult struct {
	html       string
	statusCode int
	finalURL   string
	headers    map[string]string
}
