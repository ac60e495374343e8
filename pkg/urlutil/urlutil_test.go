package urlutil

import (
	"net/url"
	"testing"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "lowercases scheme and host",
			input: "HTTPS://Example.COM/Path",
			want:  "https://example.com/Path",
		},
		{
			name:  "removes default https port",
			input: "https://example.com:443/page",
			want:  "https://example.com/page",
		},
		{
			name:  "removes default http port",
			input: "http://example.com:80/page",
			want:  "http://example.com/page",
		},
		{
			name:  "keeps non-default port",
			input: "https://example.com:8443/page",
			want:  "https://example.com:8443/page",
		},
		{
			name:  "removes fragment",
			input: "https://example.com/page#section",
			want:  "https://example.com/page",
		},
		{
			name:  "keeps query",
			input: "https://example.com/page?q=1",
			want:  "https://example.com/page?q=1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := url.Parse(tt.input)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			got := Canonicalize(*parsed)
			if got.String() != tt.want {
				t.Errorf("Canonicalize() = %q, want %q", got.String(), tt.want)
			}
		})
	}
}

func TestCanonicalize_Idempotent(t *testing.T) {
	parsed, _ := url.Parse("HTTPS://Example.COM:443/Path#frag")
	once := Canonicalize(*parsed)
	twice := Canonicalize(once)
	if once.String() != twice.String() {
		t.Errorf("Canonicalize not idempotent: %q != %q", once.String(), twice.String())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{name: "https URL", raw: "https://example.com/page", want: true},
		{name: "http URL", raw: "http://example.com", want: true},
		{name: "with port", raw: "http://localhost:8080/x", want: true},
		{name: "empty", raw: "", want: false},
		{name: "not a url", raw: "not a url", want: false},
		{name: "missing scheme", raw: "example.com/page", want: false},
		{name: "unsupported scheme", raw: "ftp://example.com", want: false},
		{name: "missing host", raw: "https:///path", want: false},
		{name: "embedded whitespace", raw: "https://example.com/a b", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Validate(tt.raw); got != tt.want {
				t.Errorf("Validate(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestStripQuery(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "removes query",
			raw:  "https://example.com/search?q=secret&token=abc",
			want: "https://example.com/search",
		},
		{
			name: "removes fragment",
			raw:  "https://example.com/page#anchor",
			want: "https://example.com/page",
		},
		{
			name: "no query unchanged",
			raw:  "https://example.com/page",
			want: "https://example.com/page",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripQuery(tt.raw); got != tt.want {
				t.Errorf("StripQuery(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestHostOf(t *testing.T) {
	if got := HostOf("https://Example.COM:8080/page"); got != "example.com:8080" {
		t.Errorf("HostOf() = %q, want %q", got, "example.com:8080")
	}
	if got := HostOf("://bad"); got != "" {
		t.Errorf("HostOf() = %q, want empty", got)
	}
}
