package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/chernistry/tavily/internal/metadata"
)

/*
Handle owns one running browser process for the lifetime of a shard.

Browsing contexts are created from it per URL and closed immediately after
the snapshot. After ContextsPerHandle contexts the whole browser is closed
and relaunched: long-lived headless browsers leak, and a bounded lifetime is
the cheapest containment.

Launch flags follow the anti-detection set used with CDP drivers: the
automation blink feature is disabled and the enable-automation switch is
withheld so the "controlled by automated test software" surface never
appears.
*/

type Handle struct {
	metadataSink metadata.MetadataSink
	param        Param

	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	served        int
	closed        bool
	dead          bool
}

func NewHandle(metadataSink metadata.MetadataSink, param Param) (*Handle, *BrowserError) {
	if param.ContextsPerHandle <= 0 {
		param.ContextsPerHandle = DefaultContextsPerHandle
	}
	param.NavTimeout = ClampNavTimeout(param.NavTimeout)

	h := &Handle{
		metadataSink: metadataSink,
		param:        param,
	}
	if err := h.launch(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Handle) launch() *BrowserError {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("headless", h.param.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("force-webrtc-ip-handling-policy", "disable_non_proxied_udp"),
	}
	if h.param.ProxyURL != "" {
		opts = append(opts, chromedp.ProxyServer(h.param.ProxyURL))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start the browser process eagerly so launch failures surface here,
	// not in the middle of the first job
	startCtx, cancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer cancel()
	if err := chromedp.Run(startCtx); err != nil {
		browserCancel()
		allocCancel()
		return &BrowserError{
			Message:   fmt.Sprintf("%v", err),
			Retryable: true,
			Cause:     ErrCauseLaunchFailure,
		}
	}

	h.allocCancel = allocCancel
	h.browserCtx = browserCtx
	h.browserCancel = browserCancel
	h.served = 0
	return nil
}

// Context hands out the browser context for a new browsing context, first
// recycling the process when its bounded lifetime is up. The returned error
// is terminal only after bounded relaunch attempts fail.
func (h *Handle) Context() (context.Context, *BrowserError) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, &BrowserError{
			Message:   "handle already closed",
			Retryable: false,
			Cause:     ErrCauseLaunchFailure,
		}
	}

	if h.served >= h.param.ContextsPerHandle || h.browserCtx.Err() != nil {
		if err := h.relaunchLocked(); err != nil {
			return nil, err
		}
	}

	h.served++
	return h.browserCtx, nil
}

func (h *Handle) relaunchLocked() *BrowserError {
	h.teardownLocked()

	var lastErr *BrowserError
	for attempt := 1; attempt <= relaunchAttempts; attempt++ {
		if err := h.launch(); err != nil {
			lastErr = err
			h.metadataSink.RecordError(
				time.Now(),
				"browser",
				"Handle.relaunch",
				mapBrowserErrorToMetadataCause(err),
				err.Error(),
				[]metadata.Attribute{
					metadata.NewAttr(metadata.AttrField, fmt.Sprintf("attempt %d", attempt)),
				},
			)
			continue
		}
		return nil
	}

	h.dead = true
	return &BrowserError{
		Message:   fmt.Sprintf("relaunch failed after %d attempts: %v", relaunchAttempts, lastErr),
		Retryable: false,
		Cause:     ErrCauseRelaunchExhausted,
	}
}

// Dead reports whether the browser could not be brought back after bounded
// relaunch attempts. A dead handle fails the run.
func (h *Handle) Dead() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dead
}

func (h *Handle) teardownLocked() {
	if h.browserCancel != nil {
		h.browserCancel()
		h.browserCancel = nil
	}
	if h.allocCancel != nil {
		h.allocCancel()
		h.allocCancel = nil
	}
}

// Served returns how many contexts the current process has handed out.
func (h *Handle) Served() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.served
}

// Close shuts the browser down. Safe to call more than once.
func (h *Handle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	h.teardownLocked()
}
