package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
)

/*
Proxy configuration.

A JSON object with host, a port-by-protocol map, and credentials:

	{
	  "host": "proxy.example.net",
	  "ports": {"http": 8080, "https": 8443},
	  "username": "...",
	  "password": "...",
	  "region": "us"
	}

Credentials must never be logged: String() renders a redacted form and the
full URL is only handed to the transport.
*/

type ProxyConfig struct {
	Host     string         `json:"host"`
	Ports    map[string]int `json:"ports"`
	Username string         `json:"username,omitempty"`
	Password string         `json:"password,omitempty"`
	Region   string         `json:"region,omitempty"`
}

// LoadProxyConfig reads and parses the proxy JSON at path.
func LoadProxyConfig(path string) (ProxyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ProxyConfig{}, fmt.Errorf("%w: %s", ErrReadConfigFail, err.Error())
	}
	var proxy ProxyConfig
	if err := json.Unmarshal(data, &proxy); err != nil {
		return ProxyConfig{}, fmt.Errorf("%w: %s", ErrConfigParsingFail, err.Error())
	}
	if proxy.Host == "" || len(proxy.Ports) == 0 {
		return ProxyConfig{}, fmt.Errorf("%w: proxy host and ports are required", ErrInvalidConfig)
	}
	return proxy, nil
}

// Empty reports whether no proxy is configured.
func (p ProxyConfig) Empty() bool {
	return p.Host == ""
}

// URL renders the proxy URL for the given protocol, credentials included.
// The result must only reach the transport, never a log line.
func (p ProxyConfig) URL(protocol string) string {
	if p.Empty() {
		return ""
	}
	port, ok := p.Ports[protocol]
	if !ok {
		// fall back to any declared port
		for _, fallback := range p.Ports {
			port = fallback
			break
		}
	}
	proxyURL := url.URL{
		Scheme: "http",
		Host:   fmt.Sprintf("%s:%d", p.Host, port),
	}
	if p.Username != "" {
		proxyURL.User = url.UserPassword(p.Username, p.Password)
	}
	return proxyURL.String()
}

// String renders a redacted description safe for logs.
func (p ProxyConfig) String() string {
	if p.Empty() {
		return "proxy{none}"
	}
	auth := "no-auth"
	if p.Username != "" {
		auth = "auth-redacted"
	}
	return fmt.Sprintf("proxy{host: %s, %s}", p.Host, auth)
}
