package fetcher

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/http2"
)

// maxRedirects bounds redirect chains on the primary stage.
const maxRedirects = 10

// NewTransportClient builds the shared HTTP client used by the whole batch:
// HTTP/2 negotiated when available, redirects followed up to the cap,
// optional proxy, and per-host connection limits aligned with the
// scheduler's host slots so the transport never undercuts the admission
// policy.
func NewTransportClient(proxyURL string, perHostConns int, timeout time.Duration) (*http.Client, error) {
	transport := &http.Transport{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   perHostConns,
		MaxConnsPerHost:       perHostConns,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(parsed)
	}

	if err := http2.ConfigureTransport(transport); err != nil {
		return nil, fmt.Errorf("http2 configuration: %w", err)
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
	return client, nil
}
