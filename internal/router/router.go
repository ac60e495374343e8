package router

/*
Router is the per-job decision procedure. For every job it produces exactly
one URL Record and never propagates an exception:

1. Structurally invalid URLs short-circuit with invalid_url and no network
2. The HTTP stage runs first; robots blocks and challenge verdicts are
   terminal (escalating a challenged URL would be pointless and wasteful)
3. Incomplete, blocked, or failed HTTP results escalate to the browser;
   the fallback result supersedes the primary one
4. Any failure escaping a stage is converted into an other_error record

Per-URL isolation is absolute: no single URL can take a shard down.
*/

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/chernistry/tavily/internal/browser"
	"github.com/chernistry/tavily/internal/classifier"
	"github.com/chernistry/tavily/internal/fetcher"
	"github.com/chernistry/tavily/internal/metadata"
	"github.com/chernistry/tavily/internal/records"
	"github.com/chernistry/tavily/pkg/urlutil"
)

type Router struct {
	metadataSink metadata.MetadataSink
	httpFetcher  fetcher.Fetcher
	browserF     browser.Fetcher
	param        Param
}

func NewRouter(
	metadataSink metadata.MetadataSink,
	httpFetcher fetcher.Fetcher,
	browserFetcher browser.Fetcher,
	param Param,
) Router {
	if param.MinContentLength <= 0 {
		param.MinContentLength = DefaultMinContentLength
	}
	return Router{
		metadataSink: metadataSink,
		httpFetcher:  httpFetcher,
		browserF:     browserFetcher,
		param:        param,
	}
}

// RouteAndFetch drives one job through the pipeline and returns its single
// URL Record.
func (r *Router) RouteAndFetch(ctx context.Context, job records.Job) records.URLRecord {
	if !urlutil.Validate(job.URL) {
		now := time.Now()
		return records.NewURLRecord(records.FetchRecord{
			URL:        job.URL,
			Host:       urlutil.HostOf(job.URL),
			Method:     records.MethodHTTP,
			Stage:      records.StagePrimary,
			Status:     records.StatusInvalidURL,
			ShardIndex: job.ShardIndex,
			StartedAt:  now,
			FinishedAt: now,
		})
	}

	httpResult, httpErr := r.fetchHTTP(ctx, job)
	if httpErr != nil {
		return r.otherError(job, records.MethodHTTP, records.StagePrimary, httpErr)
	}

	if httpResult.Status == records.StatusRobotsBlocked {
		return records.NewURLRecord(httpResult)
	}
	if httpResult.Status == records.StatusCaptchaDetected {
		// no escalation: the browser would only re-render the challenge
		return records.NewURLRecord(httpResult)
	}

	reason, escalate := r.needsBrowser(httpResult)
	if !escalate && job.HintDynamic {
		reason, escalate = ReasonHintDynamic, true
	}
	if !escalate {
		return records.NewURLRecord(httpResult)
	}

	r.metadataSink.RecordEscalation(job.URL, string(reason))

	browserResult, browserErr := r.fetchBrowser(ctx, job)
	if browserErr != nil {
		return r.otherError(job, records.MethodBrowser, records.StageFallback, browserErr)
	}

	// the fallback result supersedes the primary one
	return records.NewURLRecord(browserResult)
}

// needsBrowser evaluates the escalation predicates against the primary
// result, in order of cost.
func (r *Router) needsBrowser(result records.FetchRecord) (EscalationReason, bool) {
	if result.Status == records.StatusHTTPError || result.Status == records.StatusTimeout {
		return ReasonHTTPFailed, true
	}
	if result.Status == records.StatusTooLarge {
		// an oversized page is complete, just unretainable
		return "", false
	}
	if result.ContentLength < r.param.MinContentLength {
		return ReasonThinContent, true
	}
	if len(result.Body) > 0 {
		// a successful status with block-page prose is a soft block: the
		// full classifier verdict needs a block status, so only the phrase
		// evidence is re-checked here
		if classifier.HasGenericBlockPhrases(result.Body) {
			return ReasonBlockSuspected, true
		}
		if looksLikeJSShell(result.Body) {
			return ReasonJSShellDetected, true
		}
	}
	return "", false
}

func (r *Router) fetchHTTP(ctx context.Context, job records.Job) (result records.FetchRecord, caught error) {
	defer func() {
		if rec := recover(); rec != nil {
			caught = fmt.Errorf("panic: %v", rec)
		}
	}()
	record, err := r.httpFetcher.Fetch(ctx, fetcher.NewFetchParam(job.URL, job.ShardIndex))
	if err != nil {
		return records.FetchRecord{}, err
	}
	return record, nil
}

func (r *Router) fetchBrowser(ctx context.Context, job records.Job) (result records.FetchRecord, caught error) {
	defer func() {
		if rec := recover(); rec != nil {
			caught = fmt.Errorf("panic: %v", rec)
		}
	}()
	record, err := r.browserF.Fetch(ctx, browser.NewFetchParam(job.URL, job.ShardIndex))
	if err != nil {
		return records.FetchRecord{}, err
	}
	return record, nil
}

// otherError converts an escaped stage failure into the job's one record.
func (r *Router) otherError(job records.Job, method records.Method, stage records.Stage, caught error) records.URLRecord {
	now := time.Now()
	kind := fmt.Sprintf("%T", caught)
	kind = strings.TrimPrefix(kind, "*")
	message := caught.Error()
	if len(message) > 512 {
		message = message[:512]
	}

	r.metadataSink.RecordError(
		now,
		"router",
		"Router.RouteAndFetch",
		metadata.CauseUnknown,
		message,
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, job.URL),
			metadata.NewAttr(metadata.AttrMethod, string(method)),
		},
	)

	return records.NewURLRecord(records.FetchRecord{
		URL:          job.URL,
		Host:         urlutil.HostOf(job.URL),
		Method:       method,
		Stage:        stage,
		Status:       records.StatusOtherError,
		ErrorKind:    kind,
		ErrorMessage: message,
		ShardIndex:   job.ShardIndex,
		StartedAt:    now,
		FinishedAt:   now,
	})
}

// jsShellMarkers are phrases that mark a server-rendered "enable JavaScript"
// shell.
var jsShellMarkers = []string{
	"please enable javascript",
	"javascript is required",
	"you need to enable javascript",
	"this app works best with javascript",
}

// looksLikeJSShell reports whether the body is a JavaScript-gated shell:
// a known marker phrase, a noscript-dominant document, or a framework root
// element with no server-rendered content.
func looksLikeJSShell(body []byte) bool {
	lower := strings.ToLower(string(body))
	for _, marker := range jsShellMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}

	bodyText := strings.TrimSpace(doc.Find("body").Text())
	noscriptText := strings.TrimSpace(doc.Find("noscript").Text())
	if noscriptText != "" && len(noscriptText) >= len(bodyText)/2 {
		return true
	}

	// empty SPA mount points: <div id="root"></div>, <div id="app"></div>
	mount := doc.Find("#root, #app, #__next")
	if mount.Length() > 0 && strings.TrimSpace(mount.Text()) == "" && len(bodyText) < 200 {
		return true
	}

	return false
}
