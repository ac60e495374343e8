package robots

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFetch_ParsesSuccessfulResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte("User-agent: *\nDisallow: /admin\n"))
	}))
	defer server.Close()

	fetcher := NewRobotsFetcher(server.Client(), 2*time.Second)
	host := strings.TrimPrefix(server.URL, "http://")

	result, err := fetcher.Fetch(context.Background(), "http", host, "batch-bot/1.0")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if result.HTTPStatus != 200 {
		t.Errorf("status = %d, want 200", result.HTTPStatus)
	}
	if len(result.Response.UserAgents) != 1 {
		t.Fatalf("groups = %d, want 1", len(result.Response.UserAgents))
	}
}

func TestFetch_404YieldsEmptyRules(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := NewRobotsFetcher(server.Client(), 2*time.Second)
	host := strings.TrimPrefix(server.URL, "http://")

	result, err := fetcher.Fetch(context.Background(), "http", host, "batch-bot/1.0")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !result.Response.IsEmpty() {
		t.Error("404 should yield an empty ruleset")
	}
}

func TestFetch_ErrorCauses(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCause RobotsErrorCause
	}{
		{name: "429", status: 429, wantCause: ErrCauseHttpTooManyRequests},
		{name: "500", status: 500, wantCause: ErrCauseHttpServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			fetcher := NewRobotsFetcher(server.Client(), 2*time.Second)
			host := strings.TrimPrefix(server.URL, "http://")

			_, err := fetcher.Fetch(context.Background(), "http", host, "batch-bot/1.0")
			if err == nil {
				t.Fatal("expected error")
			}
			if err.Cause != tt.wantCause {
				t.Errorf("cause = %q, want %q", err.Cause, tt.wantCause)
			}
			if !err.Retryable {
				t.Error("expected retryable")
			}
		})
	}
}

func TestFetch_TimeoutIsRetryableError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	fetcher := NewRobotsFetcher(server.Client(), 50*time.Millisecond)
	host := strings.TrimPrefix(server.URL, "http://")

	_, err := fetcher.Fetch(context.Background(), "http", host, "batch-bot/1.0")
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Cause != ErrCauseHttpFetchFailure {
		t.Errorf("cause = %q, want %q", err.Cause, ErrCauseHttpFetchFailure)
	}
	if !err.Retryable {
		t.Error("timeout error should be retryable")
	}
}

func TestFetch_OversizedBodyIsTrimmed(t *testing.T) {
	big := strings.Repeat("Disallow: /x\n", 60_000) // ~760 KiB
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\n" + big))
	}))
	defer server.Close()

	fetcher := NewRobotsFetcher(server.Client(), 5*time.Second)
	host := strings.TrimPrefix(server.URL, "http://")

	result, err := fetcher.Fetch(context.Background(), "http", host, "batch-bot/1.0")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if result.Response.IsEmpty() {
		t.Error("trimmed body should still parse")
	}
}
