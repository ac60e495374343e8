package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

/*
Environment resolution.

Recognized variables:

	ENV                      local | ci | colab (ci: missing critical vars fatal)
	DATA_DIR                 base dir for inputs and outputs
	HTTPX_TIMEOUT_SECONDS    HTTP per-request timeout (clamped)
	HTTPX_MAX_CONCURRENCY    global slot count (clamped [8, 64])
	BROWSER_HEADLESS         bool toggle
	BROWSER_MAX_CONCURRENCY  browser page concurrency (clamped [1, 4])
	SHARD_SIZE               jobs per shard
	PROXY_CONFIG_PATH        path to the proxy JSON

A .env file in the working directory is loaded first when present; real
environment variables win over it.
*/

// criticalEnvVars must be present when ENV=ci.
var criticalEnvVars = []string{"DATA_DIR", "HTTPX_TIMEOUT_SECONDS", "HTTPX_MAX_CONCURRENCY"}

// ApplyEnv layers recognized environment variables over the builder.
// Returns an error for unparseable values, an unrecognized ENV, a proxy
// configuration that fails to load, or, in ci, missing critical variables.
func ApplyEnv(builder *Config) (*Config, error) {
	// best effort; absence of .env is the normal case
	_ = godotenv.Load()

	env := Environment(os.Getenv("ENV"))
	switch env {
	case EnvLocal, EnvCI, EnvColab:
		builder = builder.WithEnvironment(env)
	case "":
		// keep default
	default:
		return nil, fmt.Errorf("%w: unknown ENV %q", ErrInvalidConfig, env)
	}

	if env == EnvCI {
		for _, name := range criticalEnvVars {
			if os.Getenv(name) == "" {
				return nil, fmt.Errorf("%w: %s", ErrMissingCriticalEnv, name)
			}
		}
	}

	if dir := os.Getenv("DATA_DIR"); dir != "" {
		builder = builder.WithDataDir(dir)
	}

	if raw := os.Getenv("HTTPX_TIMEOUT_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: HTTPX_TIMEOUT_SECONDS: %s", ErrInvalidConfig, err)
		}
		builder = builder.WithHTTPTimeout(time.Duration(seconds) * time.Second)
	}

	if raw := os.Getenv("HTTPX_MAX_CONCURRENCY"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: HTTPX_MAX_CONCURRENCY: %s", ErrInvalidConfig, err)
		}
		builder = builder.WithGlobalConcurrency(n)
	}

	if raw := os.Getenv("BROWSER_HEADLESS"); raw != "" {
		headless, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: BROWSER_HEADLESS: %s", ErrInvalidConfig, err)
		}
		builder = builder.WithBrowserHeadless(headless)
	}

	if raw := os.Getenv("BROWSER_MAX_CONCURRENCY"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: BROWSER_MAX_CONCURRENCY: %s", ErrInvalidConfig, err)
		}
		builder = builder.WithBrowserConcurrency(n)
	}

	if raw := os.Getenv("SHARD_SIZE"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: SHARD_SIZE: %s", ErrInvalidConfig, err)
		}
		builder = builder.WithShardSize(n)
	}

	if path := os.Getenv("PROXY_CONFIG_PATH"); path != "" {
		proxy, err := LoadProxyConfig(path)
		if err != nil {
			return nil, err
		}
		builder = builder.WithProxy(proxy)
	}

	return builder, nil
}
