package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"mime"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"github.com/chernistry/tavily/internal/classifier"
	"github.com/chernistry/tavily/internal/metadata"
	"github.com/chernistry/tavily/internal/records"
	"github.com/chernistry/tavily/internal/robots"
	"github.com/chernistry/tavily/internal/scheduler"
	"github.com/chernistry/tavily/pkg/failure"
	"github.com/chernistry/tavily/pkg/retry"
	"github.com/chernistry/tavily/pkg/timeutil"
	"github.com/chernistry/tavily/pkg/urlutil"
)

/*
Responsibilities

- Perform one GET per job through the shared transport
- Respect robots and the domain scheduler before any network
- Classify responses and map them onto the record taxonomy
- Retry transient failures with exponential backoff

Fetch Semantics

- Sequence: robots check → scheduler acquire → timed GET → release
- success iff 200 <= status < 400; other received responses are http_error
- Bodies over the cap are discarded and recorded as too_large
- Non-HTML bodies are measured but not retained
- The classifier runs on every received response

The fetcher never decides escalation; it only reports what happened.
*/

type HTTPFetcher struct {
	metadataSink metadata.MetadataSink
	robot        robots.Robot
	sched        scheduler.Scheduler
	httpClient   *http.Client
	param        Param

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewHTTPFetcher(
	metadataSink metadata.MetadataSink,
	robot robots.Robot,
	sched scheduler.Scheduler,
	httpClient *http.Client,
	param Param,
) *HTTPFetcher {
	if param.MaxBodySize <= 0 {
		param.MaxBodySize = DefaultMaxBodySize
	}
	if param.MaxAttempts <= 0 {
		param.MaxAttempts = 3
	}
	seed := param.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &HTTPFetcher{
		metadataSink: metadataSink,
		robot:        robot,
		sched:        sched,
		httpClient:   httpClient,
		param:        param,
		rng:          rand.New(rand.NewSource(seed)),
	}
}

func (h *HTTPFetcher) Fetch(ctx context.Context, param FetchParam) (records.FetchRecord, failure.ClassifiedError) {
	rawURL := param.URL()
	host := urlutil.HostOf(rawURL)

	record := records.FetchRecord{
		URL:        rawURL,
		Host:       host,
		Method:     records.MethodHTTP,
		Stage:      records.StagePrimary,
		ShardIndex: param.ShardIndex(),
		StartedAt:  time.Now(),
	}

	profile := h.nextProfile()

	// Robots first: a disallowed URL costs no slot and no network
	if !h.robot.Allowed(ctx, rawURL, profile.userAgent) {
		record.Status = records.StatusRobotsBlocked
		record.RobotsDisallowed = true
		record.FinishedAt = time.Now()
		h.recordFetch(record)
		return record, nil
	}

	if err := h.sched.Acquire(ctx, host); err != nil {
		return records.FetchRecord{}, &FetchError{
			Message:   fmt.Sprintf("slot acquisition: %v", err),
			Retryable: false,
			Cause:     ErrCauseNetworkFailure,
		}
	}
	defer h.sched.Release(host)

	start := time.Now()
	var lastFetchErr *FetchError

	task := func() (httpOutcome, failure.ClassifiedError) {
		outcome, err := h.performFetch(ctx, rawURL, profile)
		if err != nil {
			var fe *FetchError
			if errors.As(err, &fe) {
				lastFetchErr = fe
			}
		}
		return outcome, err
	}

	result := retry.Retry(ctx, h.retryParam(), task)
	record.Retries = result.Retries()
	record.LatencyMs = time.Since(start).Milliseconds()
	record.FinishedAt = time.Now()

	if result.Err() != nil {
		h.mapFailure(&record, lastFetchErr, result.Err())
		h.recordFetch(record)
		return record, nil
	}

	outcome := result.Value()
	h.mapOutcome(&record, outcome)
	h.recordFetch(record)
	return record, nil
}

// performFetch executes a single GET attempt.
// Retryable failures (timeouts, transport errors, 5xx, 429) surface as
// FetchError; any received response outside those classes is a valid
// outcome, including 4xx, whose bodies the classifier still needs. 5xx and
// 429 responses keep their decoded body attached to the error for the same
// reason: challenge pages love those status codes.
func (h *HTTPFetcher) performFetch(ctx context.Context, rawURL string, profile headerProfile) (httpOutcome, failure.ClassifiedError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return httpOutcome{}, &FetchError{
			Message:   fmt.Sprintf("failed to create request: %v", err),
			Retryable: false,
			Cause:     ErrCauseNetworkFailure,
		}
	}

	req.Header.Set("User-Agent", profile.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", profile.acceptLanguage)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return httpOutcome{}, &FetchError{
				Message:   fmt.Sprintf("request timed out: %v", err),
				Retryable: true,
				Cause:     ErrCauseTimeout,
			}
		}
		return httpOutcome{}, &FetchError{
			Message:   fmt.Sprintf("request failed: %v", err),
			Retryable: true,
			Cause:     ErrCauseNetworkFailure,
		}
	}
	defer resp.Body.Close()

	outcome, readErr := h.readOutcome(resp)
	if readErr != nil {
		return httpOutcome{}, &FetchError{
			Message:    fmt.Sprintf("failed to read response body: %v", readErr),
			Retryable:  true,
			Cause:      ErrCauseReadResponseBodyError,
			StatusCode: resp.StatusCode,
		}
	}

	switch {
	case resp.StatusCode >= 500:
		return httpOutcome{}, &FetchError{
			Message:    fmt.Sprintf("server error: %d", resp.StatusCode),
			Retryable:  true,
			Cause:      ErrCauseRequest5xx,
			StatusCode: resp.StatusCode,
			outcome:    &outcome,
		}

	case resp.StatusCode == 429:
		return httpOutcome{}, &FetchError{
			Message:    "rate limited (429)",
			Retryable:  true,
			Cause:      ErrCauseRequestTooMany,
			StatusCode: resp.StatusCode,
			outcome:    &outcome,
		}
	}

	return outcome, nil
}

// readOutcome drains the response into an outcome, respecting the size cap
// and the declared charset. Runs for every received response regardless of
// status.
func (h *HTTPFetcher) readOutcome(resp *http.Response) (httpOutcome, error) {
	outcome := httpOutcome{
		statusCode: resp.StatusCode,
		finalURL:   resp.Request.URL.String(),
		headers:    flattenHeaders(resp.Header),
	}

	// Read up to the cap plus one byte so oversize is detectable
	limited := io.LimitReader(resp.Body, h.param.MaxBodySize+1)
	raw, readErr := io.ReadAll(limited)
	if readErr != nil {
		return httpOutcome{}, readErr
	}

	if int64(len(raw)) > h.param.MaxBodySize {
		outcome.tooLarge = true
		return outcome, nil
	}

	contentType := resp.Header.Get("Content-Type")
	decoded, encodingName := decodeBody(raw, contentType)
	outcome.encoding = encodingName
	outcome.decodedLen = int64(len(decoded))
	outcome.htmlBody = isHTMLContent(contentType)
	if outcome.htmlBody {
		outcome.body = decoded
	}

	return outcome, nil
}

// mapOutcome fills the record from a received response.
func (h *HTTPFetcher) mapOutcome(record *records.FetchRecord, outcome httpOutcome) {
	record.HTTPStatus = outcome.statusCode
	record.Encoding = outcome.encoding
	record.ContentLength = outcome.decodedLen
	record.Body = outcome.body

	if outcome.tooLarge {
		record.Status = records.StatusTooLarge
		record.Body = nil
		record.ContentLength = 0
		return
	}

	if outcome.statusCode >= 200 && outcome.statusCode < 400 {
		record.Status = records.StatusSuccess
	} else {
		record.Status = records.StatusHTTPError
		record.ErrorKind = fmt.Sprintf("HTTPStatus%d", outcome.statusCode)
		h.sched.RecordError(record.Host)
	}

	prefix := outcome.body
	if prefix == nil {
		// Classifier still sees non-HTML prefixes via headers/status only
		prefix = []byte{}
	}
	verdict := classifier.Classify(classifier.Input{
		StatusCode: outcome.statusCode,
		FinalURL:   outcome.finalURL,
		Headers:    outcome.headers,
		BodyPrefix: prefix,
	})
	if verdict.Suspected || verdict.Present {
		h.metadataSink.RecordVerdict(record.URL, string(verdict.Vendor), verdict.Confidence, verdict.Reason)
	}
	if verdict.Present {
		record.CaptchaDetected = true
		record.Status = records.StatusCaptchaDetected
		h.sched.RecordCaptcha(record.Host)
	}
}

// mapFailure fills the record from a terminal transport failure.
func (h *HTTPFetcher) mapFailure(record *records.FetchRecord, lastFetchErr *FetchError, terminal error) {
	record.ErrorMessage = truncateMessage(terminal.Error())

	if lastFetchErr == nil {
		record.Status = records.StatusHTTPError
		record.ErrorKind = "TransportFailure"
		h.sched.RecordError(record.Host)
		return
	}

	record.ErrorKind = string(lastFetchErr.Cause)
	record.HTTPStatus = lastFetchErr.StatusCode

	switch lastFetchErr.Cause {
	case ErrCauseTimeout:
		record.Status = records.StatusTimeout
	default:
		record.Status = records.StatusHTTPError
	}
	h.sched.RecordError(record.Host)

	// the last response's body, when one exists, still goes through the
	// classifier: challenge pages ride on 429 and 503
	if o := lastFetchErr.outcome; o != nil && !o.tooLarge {
		record.Encoding = o.encoding
		record.ContentLength = o.decodedLen

		prefix := o.body
		if prefix == nil {
			prefix = []byte{}
		}
		verdict := classifier.Classify(classifier.Input{
			StatusCode: o.statusCode,
			FinalURL:   o.finalURL,
			Headers:    o.headers,
			BodyPrefix: prefix,
		})
		if verdict.Suspected || verdict.Present {
			h.metadataSink.RecordVerdict(record.URL, string(verdict.Vendor), verdict.Confidence, verdict.Reason)
		}
		if verdict.Present {
			record.CaptchaDetected = true
			record.Status = records.StatusCaptchaDetected
			h.sched.RecordCaptcha(record.Host)
		}
	}

	h.metadataSink.RecordError(
		time.Now(),
		"fetcher",
		"HTTPFetcher.Fetch",
		mapFetchErrorToMetadataCause(lastFetchErr),
		lastFetchErr.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, record.URL),
			metadata.NewAttr(metadata.AttrHost, record.Host),
		},
	)
}

func (h *HTTPFetcher) recordFetch(record records.FetchRecord) {
	h.metadataSink.RecordFetch(
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

func (h *HTTPFetcher) retryParam() retry.RetryParam {
	return retry.NewRetryParam(
		250*time.Millisecond,
		h.nextSeed(),
		h.param.MaxAttempts,
		timeutil.NewBackoffParam(500*time.Millisecond, 2.0, 5*time.Second),
	)
}

func (h *HTTPFetcher) nextProfile() headerProfile {
	h.rngMu.Lock()
	defer h.rngMu.Unlock()
	return headerProfiles[h.rng.Intn(len(headerProfiles))]
}

func (h *HTTPFetcher) nextSeed() int64 {
	h.rngMu.Lock()
	defer h.rngMu.Unlock()
	return h.rng.Int63()
}

// decodeBody converts the raw bytes to UTF-8 using the declared charset,
// falling back to UTF-8 with replacement when the declaration is missing or
// bogus. Returns the decoded bytes and the encoding actually applied.
func decodeBody(raw []byte, contentType string) ([]byte, string) {
	charset := declaredCharset(contentType)
	if charset != "" && !strings.EqualFold(charset, "utf-8") {
		if enc, err := htmlindex.Get(charset); err == nil && enc != nil {
			decoded, _, transformErr := transform.Bytes(enc.NewDecoder(), raw)
			if transformErr == nil {
				return decoded, strings.ToLower(charset)
			}
		}
	}
	return []byte(strings.ToValidUTF8(string(raw), "�")), "utf-8"
}

func declaredCharset(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["charset"]
}

func isHTMLContent(contentType string) bool {
	contentType = strings.ToLower(contentType)
	return strings.Contains(contentType, "text/html") ||
		strings.Contains(contentType, "application/xhtml+xml")
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

func flattenHeaders(header http.Header) map[string]string {
	out := make(map[string]string, len(header))
	for key, values := range header {
		if len(values) > 0 {
			out[key] = values[0]
		}
	}
	return out
}

// maxErrorMessageLen bounds persisted error messages.
const maxErrorMessageLen = 512

func truncateMessage(message string) string {
	if len(message) <= maxErrorMessageLen {
		return message
	}
	return message[:maxErrorMessageLen]
}
