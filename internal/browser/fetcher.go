package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/chernistry/tavily/internal/classifier"
	"github.com/chernistry/tavily/internal/metadata"
	"github.com/chernistry/tavily/internal/records"
	"github.com/chernistry/tavily/internal/scheduler"
	"github.com/chernistry/tavily/internal/stealth"
	"github.com/chernistry/tavily/pkg/failure"
	"github.com/chernistry/tavily/pkg/hashutil"
	"github.com/chernistry/tavily/pkg/urlutil"
)

/*
Responsibilities

- Render one URL in an isolated browsing context on the shared handle
- Apply the session's device profile and the stealth bundle before any page
  script runs
- Abort heavy asset requests so rendering stays lean
- Map navigation outcomes onto the same status taxonomy as the HTTP stage

One retry in a fresh context is allowed on navigation failure. The handle
recycles the underlying process on its own cadence.
*/

// Fetcher performs the fallback stage for one job.
type Fetcher interface {
	Fetch(ctx context.Context, param FetchParam) (records.FetchRecord, failure.ClassifiedError)
}

type ChromeFetcher struct {
	metadataSink metadata.MetadataSink
	sched        scheduler.Scheduler
	handle       *Handle
	session      *stealth.Session
	param        Param
	behavior     stealth.Behavior
}

func NewChromeFetcher(
	metadataSink metadata.MetadataSink,
	sched scheduler.Scheduler,
	handle *Handle,
	session *stealth.Session,
	param Param,
) *ChromeFetcher {
	param.NavTimeout = ClampNavTimeout(param.NavTimeout)
	if param.SelectorTimeout <= 0 {
		param.SelectorTimeout = 3 * time.Second
	}
	return &ChromeFetcher{
		metadataSink: metadataSink,
		sched:        sched,
		handle:       handle,
		session:      session,
		param:        param,
		behavior:     stealth.NewBehavior(hashutil.DeriveSeed("behavior:" + session.ID)),
	}
}

func (c *ChromeFetcher) Fetch(ctx context.Context, param FetchParam) (records.FetchRecord, failure.ClassifiedError) {
	rawURL := param.URL()
	host := urlutil.HostOf(rawURL)

	record := records.FetchRecord{
		URL:        rawURL,
		Host:       host,
		Method:     records.MethodBrowser,
		Stage:      records.StageFallback,
		ShardIndex: param.ShardIndex(),
		StartedAt:  time.Now(),
	}

	if err := c.sched.Acquire(ctx, host); err != nil {
		return records.FetchRecord{}, &BrowserError{
			Message:   fmt.Sprintf("slot acquisition: %v", err),
			Retryable: false,
			Cause:     ErrCauseNavigationFailure,
		}
	}
	defer c.sched.Release(host)

	start := time.Now()

	result, navErr := c.navigate(ctx, rawURL)
	if navErr != nil && navErr.Retryable {
		// one retry in a fresh context
		record.Retries = 1
		result, navErr = c.navigate(ctx, rawURL)
	}

	record.LatencyMs = time.Since(start).Milliseconds()
	record.FinishedAt = time.Now()

	if navErr != nil {
		c.mapNavFailure(&record, navErr)
		c.recordFetch(record)
		if navErr.Cause == ErrCauseRelaunchExhausted {
			// unrecoverable: the runner must see this one
			return record, navErr
		}
		return record, nil
	}

	c.mapResult(&record, result)
	c.recordFetch(record)
	return record, nil
}

// navigate renders the URL once in a fresh browsing context.
func (c *ChromeFetcher) navigate(ctx context.Context, rawURL string) (pageResult, *BrowserError) {
	browserCtx, handleErr := c.handle.Context()
	if handleErr != nil {
		return pageResult{}, handleErr
	}

	tabCtx, tabCancel := chromedp.NewContext(browserCtx)
	defer tabCancel()

	navCtx, navCancel := context.WithTimeout(tabCtx, c.param.NavTimeout)
	defer navCancel()

	// watch the outer per-URL context too
	go func() {
		select {
		case <-ctx.Done():
			navCancel()
		case <-navCtx.Done():
		}
	}()

	capture := &docCapture{}
	c.listenForDocument(navCtx, capture)
	c.installInterceptor(navCtx)

	profile := c.session.Profile
	seed := stealth.FingerprintSeed(c.session.ID)

	prep := []chromedp.Action{
		emulation.SetUserAgentOverride(profile.UserAgent).WithPlatform(profile.Platform),
		emulation.SetDeviceMetricsOverride(int64(profile.Viewport.Width), int64(profile.Viewport.Height), 1, false),
		emulation.SetTimezoneOverride(profile.TimezoneID),
		emulation.SetLocaleOverride().WithLocale(profile.Locale),
		fetch.Enable().WithPatterns([]*fetch.RequestPattern{{URLPattern: "*"}}),
	}
	for _, script := range stealth.Scripts(profile, c.param.StealthMode, seed) {
		s := script
		prep = append(prep, chromedp.ActionFunc(func(actCtx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(s).Do(actCtx)
			return err
		}))
	}
	if c.param.StealthMode.AtLeast(stealth.ModeAggressive) && c.param.NetworkProfile != "" {
		prep = append(prep, stealth.EmulateNetwork(c.param.NetworkProfile))
	}
	if len(c.session.Storage.Cookies) > 0 {
		prep = append(prep, c.restoreCookies())
	}

	if err := chromedp.Run(navCtx, prep...); err != nil {
		return pageResult{}, c.classifyNavError(err, "context preparation")
	}

	nav := []chromedp.Action{
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		// short settle window approximates network-idle
		chromedp.Sleep(1500 * time.Millisecond),
	}
	if err := chromedp.Run(navCtx, nav...); err != nil {
		return pageResult{}, c.classifyNavError(err, "navigation")
	}

	if c.param.ContentSelector != "" {
		// best effort: a missing selector is not a failure
		selCtx, selCancel := context.WithTimeout(navCtx, c.param.SelectorTimeout)
		_ = chromedp.Run(selCtx, chromedp.WaitVisible(c.param.ContentSelector, chromedp.ByQuery))
		selCancel()
	}

	if c.param.StealthMode.AtLeast(stealth.ModeModerate) {
		_ = chromedp.Run(navCtx,
			c.behavior.MouseWander(profile.Viewport),
			c.behavior.ScrollRead(),
		)
	}

	var html string
	if err := chromedp.Run(navCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return pageResult{}, &BrowserError{
			Message:   fmt.Sprintf("snapshot: %v", err),
			Retryable: true,
			Cause:     ErrCauseSnapshotFailure,
		}
	}

	c.snapshotCookies(navCtx)

	result := capture.snapshot()
	result.html = html
	return result, nil
}

// docCapture collects the main document response under a lock: CDP events
// arrive on the driver's own goroutine.
type docCapture struct {
	mu     sync.Mutex
	result pageResult
}

func (d *docCapture) snapshot() pageResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.result
}

// listenForDocument captures the main document response's status and headers.
func (c *ChromeFetcher) listenForDocument(ctx context.Context, capture *docCapture) {
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		response, ok := ev.(*network.EventResponseReceived)
		if !ok || response.Type != network.ResourceTypeDocument {
			return
		}
		headers := make(map[string]string, len(response.Response.Headers))
		for k, v := range response.Response.Headers {
			if s, ok := v.(string); ok {
				headers[k] = s
			}
		}
		capture.mu.Lock()
		capture.result.statusCode = int(response.Response.Status)
		capture.result.finalURL = response.Response.URL
		capture.result.headers = headers
		capture.mu.Unlock()
	})
}

// installInterceptor aborts heavy asset requests and lets everything else
// proceed.
func (c *ChromeFetcher) installInterceptor(ctx context.Context) {
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		paused, ok := ev.(*fetch.EventRequestPaused)
		if !ok {
			return
		}
		go func() {
			chromeCtx := chromedp.FromContext(ctx)
			execCtx := cdp.WithExecutor(ctx, chromeCtx.Target)
			if c.shouldAbort(paused.ResourceType) {
				_ = fetch.FailRequest(paused.RequestID, network.ErrorReasonBlockedByClient).Do(execCtx)
			} else {
				_ = fetch.ContinueRequest(paused.RequestID).Do(execCtx)
			}
		}()
	})
}

func (c *ChromeFetcher) shouldAbort(resourceType network.ResourceType) bool {
	switch resourceType {
	case network.ResourceTypeImage, network.ResourceTypeFont, network.ResourceTypeMedia:
		return true
	case network.ResourceTypeStylesheet:
		return c.param.BlockStylesheets
	}
	return false
}

func (c *ChromeFetcher) restoreCookies() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		params := make([]*network.CookieParam, 0, len(c.session.Storage.Cookies))
		for _, cookie := range c.session.Storage.Cookies {
			params = append(params, &network.CookieParam{
				Name:     cookie.Name,
				Value:    cookie.Value,
				Domain:   cookie.Domain,
				Path:     cookie.Path,
				Secure:   cookie.Secure,
				HTTPOnly: cookie.HTTPOnly,
			})
		}
		return network.SetCookies(params).Do(ctx)
	})
}

// snapshotCookies refreshes the session's storage snapshot from the live
// context. Best effort: a failed snapshot keeps the previous state.
func (c *ChromeFetcher) snapshotCookies(ctx context.Context) {
	var cookies []*network.Cookie
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(actCtx context.Context) error {
		var cookieErr error
		cookies, cookieErr = network.GetCookies().Do(actCtx)
		return cookieErr
	}))
	if err != nil {
		return
	}
	snapshot := make([]stealth.Cookie, 0, len(cookies))
	for _, cookie := range cookies {
		snapshot = append(snapshot, stealth.Cookie{
			Name:     cookie.Name,
			Value:    cookie.Value,
			Domain:   cookie.Domain,
			Path:     cookie.Path,
			Expires:  cookie.Expires,
			HTTPOnly: cookie.HTTPOnly,
			Secure:   cookie.Secure,
		})
	}
	c.session.Storage.Cookies = snapshot
	c.session.Touch()
}

func (c *ChromeFetcher) classifyNavError(err error, action string) *BrowserError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &BrowserError{
			Message:   fmt.Sprintf("%s timed out: %v", action, err),
			Retryable: true,
			Cause:     ErrCauseNavigationTimeout,
		}
	}
	return &BrowserError{
		Message:   fmt.Sprintf("%s failed: %v", action, err),
		Retryable: true,
		Cause:     ErrCauseNavigationFailure,
	}
}

func (c *ChromeFetcher) mapResult(record *records.FetchRecord, result pageResult) {
	record.HTTPStatus = result.statusCode
	record.Encoding = "utf-8"
	record.ContentLength = int64(len(result.html))
	record.Body = []byte(result.html)

	switch {
	case result.statusCode == 0 || (result.statusCode >= 200 && result.statusCode < 400):
		record.Status = records.StatusSuccess
	default:
		record.Status = records.StatusHTTPError
		record.ErrorKind = fmt.Sprintf("HTTPStatus%d", result.statusCode)
		c.sched.RecordError(record.Host)
	}

	verdict := classifier.Classify(classifier.Input{
		StatusCode: result.statusCode,
		FinalURL:   result.finalURL,
		Headers:    result.headers,
		BodyPrefix: prefixOf(result.html),
	})
	if verdict.Suspected || verdict.Present {
		c.metadataSink.RecordVerdict(record.URL, string(verdict.Vendor), verdict.Confidence, verdict.Reason)
	}
	if verdict.Present {
		record.CaptchaDetected = true
		record.Status = records.StatusCaptchaDetected
		c.sched.RecordCaptcha(record.Host)
	}
}

func (c *ChromeFetcher) mapNavFailure(record *records.FetchRecord, navErr *BrowserError) {
	record.ErrorKind = strings.ReplaceAll(string(navErr.Cause), " ", "_")
	record.ErrorMessage = navErr.Message
	if len(record.ErrorMessage) > 512 {
		record.ErrorMessage = record.ErrorMessage[:512]
	}

	switch navErr.Cause {
	case ErrCauseNavigationTimeout:
		record.Status = records.StatusTimeout
	default:
		record.Status = records.StatusHTTPError
	}
	c.sched.RecordError(record.Host)

	c.metadataSink.RecordError(
		time.Now(),
		"browser",
		"ChromeFetcher.Fetch",
		mapBrowserErrorToMetadataCause(navErr),
		navErr.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, record.URL),
			metadata.NewAttr(metadata.AttrHost, record.Host),
		},
	)
}

func (c *ChromeFetcher) recordFetch(record records.FetchRecord) {
	c.metadataSink.RecordFetch(
		record.URL,
		string(record.Method),
		string(record.Stage),
		string(record.Status),
		record.HTTPStatus,
		time.Duration(record.LatencyMs)*time.Millisecond,
		record.Retries,
		record.ShardIndex,
	)
}

func prefixOf(html string) []byte {
	if len(html) > classifier.MaxBodyPrefix {
		return []byte(html[:classifier.MaxBodyPrefix])
	}
	return []byte(html)
}
