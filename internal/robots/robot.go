package robots

/*
Responsibilities

- Fetch robots.txt per host on first query
- Cache parsed rule sets for the lifetime of the process
- Answer Allowed(url, userAgent) before any network to the target

Failure policy is fail-open: an unreachable robots.txt, a status >= 400, or
an evaluation panic all resolve as "allow", with a warning recorded once per
host. The cache never persists.
*/

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/chernistry/tavily/internal/metadata"
)

// Robot answers per-URL admission questions.
type Robot interface {
	Allowed(ctx context.Context, rawURL string, userAgent string) bool
	CrawlDelay(host string) *time.Duration
}

// CachedRobot is the production Robot. Rule sets are cached per host;
// concurrent misses for the same host are serialized so exactly one fetch
// happens.
type CachedRobot struct {
	metadataSink metadata.MetadataSink
	fetcher      *RobotsFetcher

	mu      sync.RWMutex
	rules   map[string]ruleSet
	warned  map[string]bool
	pending map[string]*sync.Mutex
}

func NewCachedRobot(metadataSink metadata.MetadataSink, fetcher *RobotsFetcher) *CachedRobot {
	return &CachedRobot{
		metadataSink: metadataSink,
		fetcher:      fetcher,
		rules:        make(map[string]ruleSet),
		warned:       make(map[string]bool),
		pending:      make(map[string]*sync.Mutex),
	}
}

// Allowed reports whether userAgent may fetch rawURL. Any internal failure
// resolves to true.
func (c *CachedRobot) Allowed(ctx context.Context, rawURL string, userAgent string) (allowed bool) {
	// Evaluation must never take a URL down with it
	defer func() {
		if r := recover(); r != nil {
			c.metadataSink.RecordError(
				time.Now(),
				"robots",
				"CachedRobot.Allowed",
				metadata.CauseInvariantViolation,
				fmt.Sprintf("panic during evaluation: %v", r),
				[]metadata.Attribute{
					metadata.NewAttr(metadata.AttrURL, rawURL),
				},
			)
			allowed = true
		}
	}()

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return true
	}

	rules := c.rulesFor(ctx, parsed.Scheme, parsed.Host, userAgent)

	path := parsed.EscapedPath()
	if parsed.RawQuery != "" {
		path += "?" + parsed.RawQuery
	}
	decision := rules.Decide(path)
	return decision.Allowed
}

// CrawlDelay returns the cached crawl-delay for host, or nil when the host
// has not been queried yet or declares none.
func (c *CachedRobot) CrawlDelay(host string) *time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if rules, ok := c.rules[host]; ok {
		return rules.CrawlDelay()
	}
	return nil
}

// rulesFor returns the cached ruleSet for host, fetching on first query.
// The per-host pending mutex guarantees a single fetch per host under
// concurrent misses.
func (c *CachedRobot) rulesFor(ctx context.Context, scheme, host, userAgent string) ruleSet {
	c.mu.RLock()
	rules, ok := c.rules[host]
	c.mu.RUnlock()
	if ok {
		return rules
	}

	hostMu := c.pendingLock(host)
	hostMu.Lock()
	defer hostMu.Unlock()

	// Another waiter may have filled the cache while we queued
	c.mu.RLock()
	rules, ok = c.rules[host]
	c.mu.RUnlock()
	if ok {
		return rules
	}

	if scheme != "http" && scheme != "https" {
		scheme = "https"
	}

	result, fetchErr := c.fetcher.Fetch(ctx, scheme, host, userAgent)
	if fetchErr != nil {
		c.warnOnce(host, fetchErr)
		// Unreachable robots.txt: cache an empty allow-all ruleset
		result = RobotsFetchResult{
			Response: RobotsResponse{
				Host:       host,
				Sitemaps:   []string{},
				UserAgents: []UserAgentGroup{},
			},
			FetchedAt: time.Now(),
		}
	} else if result.HTTPStatus >= 400 {
		// 4xx robots.txt: the fetcher already returned an empty allow-all response
		c.warnOnce(host, &RobotsError{
			Message:   fmt.Sprintf("status %d for robots.txt", result.HTTPStatus),
			Retryable: false,
			Cause:     ErrCauseHttpFetchFailure,
		})
	}

	rules = MapResponseToRuleSet(result.Response, userAgent, result.FetchedAt)

	c.mu.Lock()
	c.rules[host] = rules
	delete(c.pending, host)
	c.mu.Unlock()

	return rules
}

func (c *CachedRobot) pendingLock(host string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	if mu, ok := c.pending[host]; ok {
		return mu
	}
	mu := &sync.Mutex{}
	c.pending[host] = mu
	return mu
}

// warnOnce records the robots fetch failure for a host exactly once.
func (c *CachedRobot) warnOnce(host string, fetchErr *RobotsError) {
	c.mu.Lock()
	already := c.warned[host]
	c.warned[host] = true
	c.mu.Unlock()
	if already {
		return
	}
	c.metadataSink.RecordWarning(
		"robots",
		"robots.txt unavailable, allowing all",
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrHost, host),
			metadata.NewAttr(metadata.AttrMessage, fetchErr.Message),
		},
	)
	c.metadataSink.RecordError(
		time.Now(),
		"robots",
		"CachedRobot.rulesFor",
		mapRobotsErrorToMetadataCause(fetchErr),
		fetchErr.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrHost, host),
		},
	)
}

// CachedHosts returns the hosts with cached rule sets.
// This is primarily useful for tests and diagnostics.
func (c *CachedRobot) CachedHosts() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	hosts := make([]string, 0, len(c.rules))
	for h := range c.rules {
		hosts = append(hosts, h)
	}
	return hosts
}
