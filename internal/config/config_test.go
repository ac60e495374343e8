package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chernistry/tavily/internal/config"
	"github.com/chernistry/tavily/internal/stealth"
)

func TestBuild_Defaults(t *testing.T) {
	cfg, err := config.WithDefault("urls.txt").Build()
	require.NoError(t, err)

	assert.Equal(t, "urls.txt", cfg.InputPath())
	assert.Equal(t, config.EnvLocal, cfg.Environment())
	assert.Equal(t, config.DefaultShardSize, cfg.ShardSize())
	assert.Equal(t, stealth.ModeModerate, cfg.StealthMode())
	assert.True(t, cfg.BrowserHeadless())
}

func TestBuild_EmptyInputRejected(t *testing.T) {
	_, err := config.WithDefault("").Build()
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestBuild_ClampsHTTPTimeout(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want time.Duration
	}{
		{in: time.Second, want: 5 * time.Second},
		{in: 15 * time.Second, want: 15 * time.Second},
		{in: 2 * time.Minute, want: 30 * time.Second},
	}

	for _, tt := range tests {
		cfg, err := config.WithDefault("urls.txt").WithHTTPTimeout(tt.in).Build()
		require.NoError(t, err)
		assert.Equal(t, tt.want, cfg.HTTPTimeout())
	}
}

func TestBuild_ClampsBrowserConcurrency(t *testing.T) {
	cfg, err := config.WithDefault("urls.txt").WithBrowserConcurrency(99).Build()
	require.NoError(t, err)
	assert.Equal(t, config.MaxBrowserConcurrency, cfg.BrowserConcurrency())
}

func TestBuild_RejectsUnknownStealthMode(t *testing.T) {
	_, err := config.WithDefault("urls.txt").WithStealthMode("ghost").Build()
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestOutputPaths(t *testing.T) {
	cfg, err := config.WithDefault("urls.txt").WithDataDir("/tmp/engine").Build()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("/tmp/engine", "stats.jsonl"), cfg.RecordsPath())
	assert.Equal(t, filepath.Join("/tmp/engine", "run_summary.json"), cfg.SummaryPath())
	assert.Equal(t, filepath.Join("/tmp/engine", "checkpoints"), cfg.CheckpointDir())
	assert.Equal(t, filepath.Join("/tmp/engine", "sessions"), cfg.SessionDir())
	assert.Contains(t, cfg.ShardRecordsPath("run-1", 3), "run-1_shard_3.jsonl")
}

func TestApplyEnv_ReadsRecognizedVariables(t *testing.T) {
	t.Setenv("ENV", "local")
	t.Setenv("DATA_DIR", "/tmp/envdata")
	t.Setenv("HTTPX_TIMEOUT_SECONDS", "20")
	t.Setenv("HTTPX_MAX_CONCURRENCY", "32")
	t.Setenv("BROWSER_HEADLESS", "false")
	t.Setenv("BROWSER_MAX_CONCURRENCY", "3")
	t.Setenv("SHARD_SIZE", "250")
	t.Setenv("PROXY_CONFIG_PATH", "")

	builder, err := config.ApplyEnv(config.WithDefault("urls.txt"))
	require.NoError(t, err)
	cfg, err := builder.Build()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/envdata", cfg.DataDir())
	assert.Equal(t, 20*time.Second, cfg.HTTPTimeout())
	assert.Equal(t, 32, cfg.GlobalConcurrency())
	assert.False(t, cfg.BrowserHeadless())
	assert.Equal(t, 3, cfg.BrowserConcurrency())
	assert.Equal(t, 250, cfg.ShardSize())
}

func TestApplyEnv_CIRequiresCriticalVars(t *testing.T) {
	t.Setenv("ENV", "ci")
	t.Setenv("DATA_DIR", "/tmp/x")
	t.Setenv("HTTPX_TIMEOUT_SECONDS", "10")
	t.Setenv("HTTPX_MAX_CONCURRENCY", "")

	_, err := config.ApplyEnv(config.WithDefault("urls.txt"))
	assert.ErrorIs(t, err, config.ErrMissingCriticalEnv)
}

func TestApplyEnv_RejectsUnparseableValues(t *testing.T) {
	t.Setenv("HTTPX_TIMEOUT_SECONDS", "soon")

	_, err := config.ApplyEnv(config.WithDefault("urls.txt"))
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestApplyEnv_UnknownEnvRejected(t *testing.T) {
	t.Setenv("ENV", "production-ish")

	_, err := config.ApplyEnv(config.WithDefault("urls.txt"))
	assert.Error(t, err)
}

func TestLoadProxyConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proxy.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"host": "proxy.example.net",
		"ports": {"http": 8080, "https": 8443},
		"username": "user",
		"password": "hunter2",
		"region": "us"
	}`), 0600))

	proxy, err := config.LoadProxyConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "proxy.example.net", proxy.Host)
	assert.Equal(t, "us", proxy.Region)
	assert.Contains(t, proxy.URL("https"), "proxy.example.net:8443")
	assert.Contains(t, proxy.URL("https"), "hunter2")
}

func TestProxyConfig_StringNeverLeaksCredentials(t *testing.T) {
	proxy := config.ProxyConfig{
		Host:     "proxy.example.net",
		Ports:    map[string]int{"https": 8443},
		Username: "user",
		Password: "hunter2",
	}

	rendered := proxy.String()
	assert.NotContains(t, rendered, "hunter2")
	assert.NotContains(t, rendered, "user")
	assert.Contains(t, rendered, "proxy.example.net")
}

func TestLoadProxyConfig_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := config.LoadProxyConfig(filepath.Join(t.TempDir(), "absent.json"))
		assert.ErrorIs(t, err, config.ErrReadConfigFail)
	})

	t.Run("malformed json", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "proxy.json")
		require.NoError(t, os.WriteFile(path, []byte("{oops"), 0600))
		_, err := config.LoadProxyConfig(path)
		assert.ErrorIs(t, err, config.ErrConfigParsingFail)
	})

	t.Run("missing host", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "proxy.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"ports": {"http": 1}}`), 0600))
		_, err := config.LoadProxyConfig(path)
		assert.True(t, errors.Is(err, config.ErrInvalidConfig))
	})
}
