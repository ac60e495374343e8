package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chernistry/tavily/internal/stealth"
)

func TestBuildConfig_FlagPrecedence(t *testing.T) {
	ResetFlags()
	defer ResetFlags()

	inputPath = "urls.txt"
	dataDir = "/tmp/cli-data"
	concurrency = 24
	shardSize = 100
	httpTimeout = 20 * time.Second
	stealthMode = "aggressive"
	networkProfile = "fast_3g"
	sessionID = "cli-session"
	randomSeed = 7

	cfg, err := buildConfig()
	require.NoError(t, err)

	assert.Equal(t, "urls.txt", cfg.InputPath())
	assert.Equal(t, "/tmp/cli-data", cfg.DataDir())
	assert.Equal(t, 24, cfg.GlobalConcurrency())
	assert.Equal(t, 100, cfg.ShardSize())
	assert.Equal(t, 20*time.Second, cfg.HTTPTimeout())
	assert.Equal(t, stealth.ModeAggressive, cfg.StealthMode())
	assert.Equal(t, stealth.NetworkFast3G, cfg.NetworkProfile())
	assert.Equal(t, "cli-session", cfg.SessionID())
	assert.Equal(t, int64(7), cfg.RandomSeed())
}

func TestBuildConfig_EnvironmentOverriddenByFlags(t *testing.T) {
	ResetFlags()
	defer ResetFlags()

	t.Setenv("DATA_DIR", "/tmp/from-env")
	inputPath = "urls.txt"
	dataDir = "/tmp/from-flag"

	cfg, err := buildConfig()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-flag", cfg.DataDir())
}

func TestBuildConfig_RejectsBadStealthMode(t *testing.T) {
	ResetFlags()
	defer ResetFlags()

	inputPath = "urls.txt"
	stealthMode = "invisible"

	_, err := buildConfig()
	assert.Error(t, err)
}

func TestRunDry_PrintsLayoutWithoutNetwork(t *testing.T) {
	ResetFlags()
	defer ResetFlags()

	path := filepath.Join(t.TempDir(), "urls.txt")
	require.NoError(t, os.WriteFile(path, []byte("https://a.test\nhttps://b.test\nhttps://c.test\n"), 0644))

	inputPath = path
	shardSize = 2

	cfg, err := buildConfig()
	require.NoError(t, err)
	assert.NoError(t, runDry(cfg))
}

func TestRunDry_MissingInputFails(t *testing.T) {
	ResetFlags()
	defer ResetFlags()

	inputPath = filepath.Join(t.TempDir(), "absent.txt")
	cfg, err := buildConfig()
	require.NoError(t, err)
	assert.Error(t, runDry(cfg))
}
