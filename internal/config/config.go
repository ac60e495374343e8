package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/chernistry/tavily/internal/stealth"
)

// Environment names where the engine runs; ci makes missing critical
// variables fatal.
type Environment string

const (
	EnvLocal Environment = "local"
	EnvCI    Environment = "ci"
	EnvColab Environment = "colab"
)

const (
	// HTTP per-request timeout bounds
	MinHTTPTimeout = 5 * time.Second
	MaxHTTPTimeout = 30 * time.Second

	// Browser page concurrency bounds
	MinBrowserConcurrency = 1
	MaxBrowserConcurrency = 4

	DefaultShardSize = 500
)

type Config struct {
	//===============
	// Run identity & locations
	//===============
	environment Environment
	// Base directory for inputs and outputs
	dataDir string
	// Input URL file (line-delimited or single-column CSV)
	inputPath string

	//===============
	// HTTP stage
	//===============
	// Per-request timeout, clamped [5s, 30s]
	httpTimeout time.Duration
	// Global scheduler slots, clamped [8, 64]
	globalConcurrency int
	// Per-host scheduler slots
	hostConcurrency int
	// Hosts pinned below the default (e.g. search engines at 1)
	hostOverrides map[string]int
	// Retained body cap in bytes
	maxBodySize int64
	// Post-acquisition jitter bounds
	jitterLo time.Duration
	jitterHi time.Duration

	//===============
	// Browser stage
	//===============
	browserHeadless bool
	// Concurrent pages, clamped [1, 4]
	browserConcurrency int
	// Navigation timeout, clamped [10s, 45s]
	browserNavTimeout time.Duration
	// Contexts served before the browser process is recycled
	browserContextsPerHandle int
	// Optional best-effort content selector
	contentSelector string
	blockStylesheets bool

	//===============
	// Stealth
	//===============
	stealthMode    stealth.Mode
	networkProfile stealth.NetworkProfile
	sessionID      string

	//===============
	// Batch shape
	//===============
	shardSize int
	// Completeness bar for escalation
	minContentLength int64
	// Result store buffer
	resultBufferSize int
	// Controls the random number generator
	randomSeed int64

	//===============
	// Proxy
	//===============
	proxy ProxyConfig
}

// WithDefault creates a Config with defaults for everything but the input
// path, which is mandatory.
func WithDefault(inputPath string) *Config {
	return &Config{
		environment:              EnvLocal,
		dataDir:                  "data",
		inputPath:                inputPath,
		httpTimeout:              15 * time.Second,
		globalConcurrency:        16,
		hostConcurrency:          4,
		hostOverrides:            map[string]int{},
		maxBodySize:              1 << 20,
		jitterLo:                 100 * time.Millisecond,
		jitterHi:                 400 * time.Millisecond,
		browserHeadless:          true,
		browserConcurrency:       2,
		browserNavTimeout:        30 * time.Second,
		browserContextsPerHandle: 50,
		blockStylesheets:         false,
		stealthMode:              stealth.ModeModerate,
		shardSize:                DefaultShardSize,
		minContentLength:         1024,
		resultBufferSize:         100,
	}
}

func (c *Config) WithEnvironment(env Environment) *Config {
	c.environment = env
	return c
}

func (c *Config) WithDataDir(dir string) *Config {
	c.dataDir = dir
	return c
}

func (c *Config) WithHTTPTimeout(timeout time.Duration) *Config {
	c.httpTimeout = timeout
	return c
}

func (c *Config) WithGlobalConcurrency(n int) *Config {
	c.globalConcurrency = n
	return c
}

func (c *Config) WithHostConcurrency(n int) *Config {
	c.hostConcurrency = n
	return c
}

func (c *Config) WithHostOverride(host string, n int) *Config {
	c.hostOverrides[host] = n
	return c
}

func (c *Config) WithMaxBodySize(n int64) *Config {
	c.maxBodySize = n
	return c
}

func (c *Config) WithJitter(lo, hi time.Duration) *Config {
	c.jitterLo = lo
	c.jitterHi = hi
	return c
}

func (c *Config) WithBrowserHeadless(headless bool) *Config {
	c.browserHeadless = headless
	return c
}

func (c *Config) WithBrowserConcurrency(n int) *Config {
	c.browserConcurrency = n
	return c
}

func (c *Config) WithBrowserNavTimeout(timeout time.Duration) *Config {
	c.browserNavTimeout = timeout
	return c
}

func (c *Config) WithBrowserContextsPerHandle(n int) *Config {
	c.browserContextsPerHandle = n
	return c
}

func (c *Config) WithContentSelector(selector string) *Config {
	c.contentSelector = selector
	return c
}

func (c *Config) WithBlockStylesheets(block bool) *Config {
	c.blockStylesheets = block
	return c
}

func (c *Config) WithStealthMode(mode stealth.Mode) *Config {
	c.stealthMode = mode
	return c
}

func (c *Config) WithNetworkProfile(profile stealth.NetworkProfile) *Config {
	c.networkProfile = profile
	return c
}

func (c *Config) WithSessionID(id string) *Config {
	c.sessionID = id
	return c
}

func (c *Config) WithShardSize(n int) *Config {
	c.shardSize = n
	return c
}

func (c *Config) WithMinContentLength(n int64) *Config {
	c.minContentLength = n
	return c
}

func (c *Config) WithResultBufferSize(n int) *Config {
	c.resultBufferSize = n
	return c
}

func (c *Config) WithRandomSeed(seed int64) *Config {
	c.randomSeed = seed
	return c
}

func (c *Config) WithProxy(proxy ProxyConfig) *Config {
	c.proxy = proxy
	return c
}

// Build validates and clamps the configuration.
func (c *Config) Build() (Config, error) {
	if c.inputPath == "" {
		return Config{}, fmt.Errorf("%w: input path cannot be empty", ErrInvalidConfig)
	}
	if c.stealthMode != "" && !c.stealthMode.Valid() {
		return Config{}, fmt.Errorf("%w: unknown stealth mode %q", ErrInvalidConfig, c.stealthMode)
	}
	if c.globalConcurrency <= 0 {
		return Config{}, fmt.Errorf("%w: global concurrency must be positive", ErrInvalidConfig)
	}
	if c.browserConcurrency <= 0 {
		return Config{}, fmt.Errorf("%w: browser concurrency must be positive", ErrInvalidConfig)
	}

	if c.httpTimeout < MinHTTPTimeout {
		c.httpTimeout = MinHTTPTimeout
	}
	if c.httpTimeout > MaxHTTPTimeout {
		c.httpTimeout = MaxHTTPTimeout
	}
	if c.browserConcurrency < MinBrowserConcurrency {
		c.browserConcurrency = MinBrowserConcurrency
	}
	if c.browserConcurrency > MaxBrowserConcurrency {
		c.browserConcurrency = MaxBrowserConcurrency
	}
	if c.shardSize <= 0 {
		c.shardSize = DefaultShardSize
	}

	return *c, nil
}

func (c Config) Environment() Environment {
	return c.environment
}

func (c Config) DataDir() string {
	return c.dataDir
}

func (c Config) InputPath() string {
	return c.inputPath
}

func (c Config) HTTPTimeout() time.Duration {
	return c.httpTimeout
}

func (c Config) GlobalConcurrency() int {
	return c.globalConcurrency
}

func (c Config) HostConcurrency() int {
	return c.hostConcurrency
}

func (c Config) HostOverrides() map[string]int {
	overrides := make(map[string]int, len(c.hostOverrides))
	for k, v := range c.hostOverrides {
		overrides[k] = v
	}
	return overrides
}

func (c Config) MaxBodySize() int64 {
	return c.maxBodySize
}

func (c Config) JitterLo() time.Duration {
	return c.jitterLo
}

func (c Config) JitterHi() time.Duration {
	return c.jitterHi
}

func (c Config) BrowserHeadless() bool {
	return c.browserHeadless
}

func (c Config) BrowserConcurrency() int {
	return c.browserConcurrency
}

func (c Config) BrowserNavTimeout() time.Duration {
	return c.browserNavTimeout
}

func (c Config) BrowserContextsPerHandle() int {
	return c.browserContextsPerHandle
}

func (c Config) ContentSelector() string {
	return c.contentSelector
}

func (c Config) BlockStylesheets() bool {
	return c.blockStylesheets
}

func (c Config) StealthMode() stealth.Mode {
	return c.stealthMode
}

func (c Config) NetworkProfile() stealth.NetworkProfile {
	return c.networkProfile
}

func (c Config) SessionID() string {
	return c.sessionID
}

func (c Config) ShardSize() int {
	return c.shardSize
}

func (c Config) MinContentLength() int64 {
	return c.minContentLength
}

func (c Config) ResultBufferSize() int {
	return c.resultBufferSize
}

func (c Config) RandomSeed() int64 {
	return c.randomSeed
}

func (c Config) Proxy() ProxyConfig {
	return c.proxy
}

// Output locations, all under the data directory.

func (c Config) RecordsPath() string {
	return filepath.Join(c.dataDir, "stats.jsonl")
}

func (c Config) ShardRecordsPath(runID string, shardID int) string {
	return filepath.Join(c.dataDir, "records", fmt.Sprintf("%s_shard_%d.jsonl", runID, shardID))
}

func (c Config) SummaryPath() string {
	return filepath.Join(c.dataDir, "run_summary.json")
}

func (c Config) CheckpointDir() string {
	return filepath.Join(c.dataDir, "checkpoints")
}

func (c Config) SessionDir() string {
	return filepath.Join(c.dataDir, "sessions")
}
