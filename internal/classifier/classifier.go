package classifier

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

/*
Responsibilities

- Pattern-match bodies, URLs, and headers into a typed verdict
- Shared by both fetch stages: called on every HTTP response body and on
  rendered browser content

Detection Semantics

- First match wins; the highest-confidence rule that fires is kept
- Vendor widget markers beat interstitial phrases beat generic phrases
- A single weak phrase is only ever a suspicion, never a detection

The classifier is a pure function over its input. It never fetches, never
solves, and never mutates shared state.
*/

const (
	confidenceWidget       = 0.95
	confidenceInterstitial = 0.9
	confidenceGeneric      = 0.8
	confidenceWeak         = 0.5
)

// widget markers, per vendor. A DOM probe is preferred; substring match is
// the fallback when the prefix is not parseable HTML.
var recaptchaMarkers = []string{"g-recaptcha", "recaptcha/api.js"}
var hcaptchaMarkers = []string{"h-captcha", "hcaptcha.com/1/api.js"}
var turnstileMarkers = []string{"cf-turnstile", "cf-turnstile-response", "challenges.cloudflare.com/turnstile"}

const cloudflarePhrase = "checking your browser before accessing"

var genericPhrases = []string{
	"please verify you are a human",
	"are you a robot",
	"access has been denied",
	"automation tools to browse the website",
}

var widgetSelectors = map[Vendor]string{
	VendorRecaptcha: ".g-recaptcha, div[data-sitekey].g-recaptcha, iframe[src*='recaptcha']",
	VendorHCaptcha:  ".h-captcha, iframe[src*='hcaptcha.com']",
	VendorTurnstile: ".cf-turnstile, input[name='cf-turnstile-response']",
}

// Classify evaluates one response against the rule table. The body prefix is
// truncated to MaxBodyPrefix before matching.
func Classify(in Input) Verdict {
	body := in.BodyPrefix
	if len(body) > MaxBodyPrefix {
		body = body[:MaxBodyPrefix]
	}
	lower := strings.ToLower(string(body))
	status := in.StatusCode

	// Rule 1: vendor widgets and scripts.
	if v, ok := detectWidget(body, lower); ok {
		return v
	}

	// Rule 2: Cloudflare interstitial.
	if strings.Contains(lower, cloudflarePhrase) {
		return Verdict{
			Present:    true,
			Vendor:     VendorCloudflareBlock,
			Confidence: confidenceInterstitial,
			Reason:     "cloudflare interstitial phrase",
		}
	}
	if headerValue(in.Headers, "server") == "cloudflare" && isBlockStatus(status) {
		return Verdict{
			Present:    true,
			Vendor:     VendorCloudflareBlock,
			Confidence: confidenceInterstitial,
			Reason:     "cloudflare server header with block status",
		}
	}

	// Rule 3: generic block phrases, two or more, with a block status.
	hits, firstPhrase := countGenericPhrases(lower)
	if hits >= 2 && isBlockStatus(status) {
		return Verdict{
			Present:    true,
			Vendor:     VendorGenericBlock,
			Confidence: confidenceGeneric,
			Reason:     "multiple block phrases with block status",
		}
	}

	// Rule 4: a single weak signal is logged as suspected only.
	if hits == 1 {
		return Verdict{
			Present:    false,
			Vendor:     VendorNone,
			Confidence: confidenceWeak,
			Reason:     "single weak phrase: " + firstPhrase,
			Suspected:  true,
		}
	}

	return Verdict{
		Present:    false,
		Vendor:     VendorNone,
		Confidence: 0,
		Reason:     "no markers",
	}
}

// detectWidget looks for vendor widgets, preferring real DOM presence over
// substring hits so that prose mentioning a vendor does not trip detection.
func detectWidget(body []byte, lower string) (Verdict, bool) {
	ordered := []struct {
		vendor  Vendor
		markers []string
	}{
		{VendorRecaptcha, recaptchaMarkers},
		{VendorHCaptcha, hcaptchaMarkers},
		{VendorTurnstile, turnstileMarkers},
	}

	doc, parseErr := goquery.NewDocumentFromReader(bytes.NewReader(body))

	for _, entry := range ordered {
		matched := false
		if parseErr == nil {
			if sel, ok := widgetSelectors[entry.vendor]; ok && doc.Find(sel).Length() > 0 {
				matched = true
			}
		}
		if !matched {
			for _, marker := range entry.markers {
				if strings.Contains(lower, marker) {
					matched = true
					break
				}
			}
		}
		if matched {
			return Verdict{
				Present:    true,
				Vendor:     entry.vendor,
				Confidence: confidenceWidget,
				Reason:     string(entry.vendor) + " widget marker",
			}, true
		}
	}
	return Verdict{}, false
}

func countGenericPhrases(lower string) (int, string) {
	hits := 0
	var first string
	for _, phrase := range genericPhrases {
		if strings.Contains(lower, phrase) {
			if hits == 0 {
				first = phrase
			}
			hits++
		}
	}
	return hits, first
}

// HasGenericBlockPhrases reports whether the body carries the generic-block
// phrase pattern (two or more hits), independent of status. The router uses
// it to escalate block pages a server mislabels with a 2xx: a full verdict
// needs the block status, this evidence check does not.
func HasGenericBlockPhrases(body []byte) bool {
	if len(body) > MaxBodyPrefix {
		body = body[:MaxBodyPrefix]
	}
	hits, _ := countGenericPhrases(strings.ToLower(string(body)))
	return hits >= 2
}

func isBlockStatus(status int) bool {
	return status == 403 || status == 429 || status == 503
}

func headerValue(headers map[string]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return strings.ToLower(strings.TrimSpace(v))
		}
	}
	return ""
}
