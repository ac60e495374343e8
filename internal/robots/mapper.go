package robots

import (
	"strings"
	"time"
)

// MapResponseToRuleSet converts a RobotsResponse to an immutable ruleSet.
// This function selects the most specific user agent group matching the
// provided user agent string and creates a ruleSet from it.
func MapResponseToRuleSet(response RobotsResponse, targetUserAgent string, fetchedAt time.Time) ruleSet {
	rs := ruleSet{
		host:      response.Host,
		userAgent: targetUserAgent,
		fetchedAt: fetchedAt,
		sourceURL: "https://" + response.Host + "/robots.txt",
	}

	rs.hasGroups = len(response.UserAgents) > 0

	group := findBestMatchingGroup(response.UserAgents, targetUserAgent)

	if group != nil {
		rs.matchedGroup = true

		rs.allowRules = make([]pathRule, 0, len(group.Allows))
		for _, allow := range group.Allows {
			if allow.Path != "" {
				rs.allowRules = append(rs.allowRules, pathRule{
					pattern: normalizePath(allow.Path),
				})
			}
		}

		rs.disallowRules = make([]pathRule, 0, len(group.Disallows))
		for _, disallow := range group.Disallows {
			if disallow.Path != "" {
				rs.disallowRules = append(rs.disallowRules, pathRule{
					pattern: normalizePath(disallow.Path),
				})
			}
		}

		if group.CrawlDelay != nil {
			delay := *group.CrawlDelay
			rs.crawlDelay = &delay
		}
	}

	return rs
}

// Decide evaluates a path against the ruleSet.
// Precedence: the longest matching pattern wins; on equal length, allow
// wins. No matching rule, no matched group, or no groups at all → allowed.
func (r ruleSet) Decide(path string) Decision {
	if path == "" {
		path = "/"
	}

	if !r.hasGroups {
		return Decision{Allowed: true, Reason: EmptyRuleSet, CrawlDelay: r.CrawlDelay()}
	}
	if !r.matchedGroup {
		return Decision{Allowed: true, Reason: UserAgentNotMatched, CrawlDelay: r.CrawlDelay()}
	}

	bestAllow := longestMatch(r.allowRules, path)
	bestDisallow := longestMatch(r.disallowRules, path)

	if bestAllow < 0 && bestDisallow < 0 {
		return Decision{Allowed: true, Reason: NoMatchingRules, CrawlDelay: r.CrawlDelay()}
	}
	if bestDisallow > bestAllow {
		return Decision{Allowed: false, Reason: DisallowedByRobots, CrawlDelay: r.CrawlDelay()}
	}
	return Decision{Allowed: true, Reason: AllowedByRobots, CrawlDelay: r.CrawlDelay()}
}

// longestMatch returns the length of the longest pattern matching path,
// or -1 when none match.
func longestMatch(rules []pathRule, path string) int {
	best := -1
	for _, rule := range rules {
		if patternMatches(rule.pattern, path) && len(rule.pattern) > best {
			best = len(rule.pattern)
		}
	}
	return best
}

// patternMatches evaluates one robots.txt path pattern against a path.
// Supports the de-facto extensions: '*' matches any character run and a
// trailing '$' anchors the end of the path.
func patternMatches(pattern, path string) bool {
	anchored := strings.HasSuffix(pattern, "$")
	if anchored {
		pattern = strings.TrimSuffix(pattern, "$")
	}

	segments := strings.Split(pattern, "*")

	pos := 0
	for i, segment := range segments {
		if segment == "" {
			continue
		}
		if i == 0 {
			if !strings.HasPrefix(path, segment) {
				return false
			}
			pos = len(segment)
			continue
		}
		idx := strings.Index(path[pos:], segment)
		if idx == -1 {
			return false
		}
		pos += idx + len(segment)
	}

	if anchored {
		// With a trailing '*' the anchor is trivially satisfied
		if len(segments) > 0 && segments[len(segments)-1] == "" {
			return true
		}
		return pos == len(path)
	}
	return true
}

// findBestMatchingGroup finds the most specific user agent group matching
// the target:
// 1. Exact matches take precedence over wildcard matches
// 2. More specific user-agent strings take precedence over less specific ones
// 3. The wildcard (*) matches all user agents
func findBestMatchingGroup(groups []UserAgentGroup, targetUserAgent string) *UserAgentGroup {
	var bestMatch *UserAgentGroup
	targetLower := strings.ToLower(targetUserAgent)
	bestMatchLength := 0

	for i := range groups {
		group := &groups[i]

		for _, ua := range group.UserAgents {
			uaLower := strings.ToLower(ua)

			// Exact match is the best possible
			if uaLower == targetLower {
				return group
			}

			if ua == "*" {
				if bestMatch == nil {
					bestMatch = group
				}
				continue
			}

			// Token prefix match, e.g. "Googlebot" matches "Googlebot-Image"
			if strings.HasPrefix(targetLower, uaLower) {
				if len(uaLower) > bestMatchLength {
					bestMatch = group
					bestMatchLength = len(uaLower)
				}
			}
		}
	}

	return bestMatch
}

// normalizePath ensures the path starts with "/" and handles special cases.
func normalizePath(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") && !strings.HasPrefix(path, "*") {
		path = "/" + path
	}
	return path
}

// ruleSet getters for immutability

func (r ruleSet) Host() string {
	return r.host
}

func (r ruleSet) UserAgent() string {
	return r.userAgent
}

func (r ruleSet) FetchedAt() time.Time {
	return r.fetchedAt
}

func (r ruleSet) SourceURL() string {
	return r.sourceURL
}

// CrawlDelay returns the crawl delay if specified, or nil.
func (r ruleSet) CrawlDelay() *time.Duration {
	if r.crawlDelay == nil {
		return nil
	}
	delay := *r.crawlDelay
	return &delay
}
