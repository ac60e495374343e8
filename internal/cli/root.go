package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/chernistry/tavily/internal/build"
	"github.com/chernistry/tavily/internal/config"
	"github.com/chernistry/tavily/internal/input"
	"github.com/chernistry/tavily/internal/metadata"
	"github.com/chernistry/tavily/internal/records"
	"github.com/chernistry/tavily/internal/runner"
	"github.com/chernistry/tavily/internal/stealth"
)

var (
	inputPath      string
	dataDir        string
	concurrency    int
	shardSize      int
	httpTimeout    time.Duration
	headless       bool
	stealthMode    string
	networkProfile string
	sessionID      string
	runID          string
	randomSeed     int64
	dryRun         bool
	showVersion    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tavily",
	Short: "Large-batch hybrid scraping engine.",
	Long: `tavily drives large URL batches through a two-stage pipeline:
a cheap HTTP fetch first, with escalation to a headless browser when the
response is incomplete, blocked, or failed.

Outputs are a line-delimited per-URL record stream (stats.jsonl) and one
aggregated run summary (run_summary.json). Progress is checkpointed per
shard, so an interrupted run resumes from its incomplete shards.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		if showVersion {
			fmt.Println(build.Version)
			return nil
		}

		if inputPath == "" {
			cmd.SilenceUsage = false
			return fmt.Errorf("--input is required")
		}

		cfg, err := buildConfig()
		if err != nil {
			return err
		}

		if dryRun {
			return runDry(cfg)
		}

		recorder := metadata.NewRecorder("batch")
		defer recorder.Sync()

		batch, err := runner.NewBatchRunner(&recorder, &recorder, cfg)
		if err != nil {
			return err
		}

		summary, runErr := batch.Run(context.Background(), runID)

		// the summary goes to stdout even when the run aborted: partial
		// results are results
		if printErr := printSummary(summary); printErr != nil {
			return printErr
		}
		return runErr
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	rootCmd.SilenceErrors = true
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&inputPath, "input", "", "URL file (line-delimited or single-column CSV)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "base directory for inputs and outputs")
	rootCmd.PersistentFlags().IntVar(&concurrency, "concurrency", 0, "global concurrency (clamped [8, 64])")
	rootCmd.PersistentFlags().IntVar(&shardSize, "shard-size", 0, "jobs per shard")
	rootCmd.PersistentFlags().DurationVar(&httpTimeout, "http-timeout", 0, "HTTP per-request timeout (clamped [5s, 30s])")
	rootCmd.PersistentFlags().BoolVar(&headless, "headless", true, "run the browser headless")
	rootCmd.PersistentFlags().StringVar(&stealthMode, "stealth", "", "stealth mode: minimal | moderate | aggressive")
	rootCmd.PersistentFlags().StringVar(&networkProfile, "network-profile", "", "aggressive-mode network shape: slow_3g | fast_3g | 4g | wifi | dsl")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session-id", "", "persistent session identity to reuse")
	rootCmd.PersistentFlags().StringVar(&runID, "run-id", "", "run identity (reuse to resume a crashed run)")
	rootCmd.PersistentFlags().Int64Var(&randomSeed, "random-seed", 0, "seed for random number generation (0 for current time)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "validate input and print the shard layout, no network")
	rootCmd.PersistentFlags().BoolVar(&showVersion, "version", false, "print version and exit")
}

// buildConfig resolves flags over environment over defaults.
func buildConfig() (config.Config, error) {
	builder := config.WithDefault(inputPath)

	builder, err := config.ApplyEnv(builder)
	if err != nil {
		return config.Config{}, err
	}

	if dataDir != "" {
		builder = builder.WithDataDir(dataDir)
	}
	if concurrency > 0 {
		builder = builder.WithGlobalConcurrency(concurrency)
	}
	if shardSize > 0 {
		builder = builder.WithShardSize(shardSize)
	}
	if httpTimeout > 0 {
		builder = builder.WithHTTPTimeout(httpTimeout)
	}
	builder = builder.WithBrowserHeadless(headless)
	if stealthMode != "" {
		builder = builder.WithStealthMode(stealth.Mode(stealthMode))
	}
	if networkProfile != "" {
		builder = builder.WithNetworkProfile(stealth.NetworkProfile(networkProfile))
	}
	if sessionID != "" {
		builder = builder.WithSessionID(sessionID)
	}
	if randomSeed != 0 {
		builder = builder.WithRandomSeed(randomSeed)
	}

	return builder.Build()
}

// runDry validates the input and prints the planned shard layout without
// touching the network.
func runDry(cfg config.Config) error {
	loader := input.NewLoader(&metadata.NoopSink{})
	urls, err := loader.Load(cfg.InputPath())
	if err != nil {
		return err
	}
	shards := records.SplitIntoShards(urls, cfg.ShardSize())

	fmt.Printf("input: %s\n", cfg.InputPath())
	fmt.Printf("urls: %d\n", len(urls))
	fmt.Printf("shards: %d (size %d)\n", len(shards), cfg.ShardSize())
	for i, shard := range shards {
		fmt.Printf("  shard %d: %d urls\n", i, len(shard))
	}
	return nil
}

func printSummary(summary records.RunSummary) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	return encoder.Encode(summary)
}

// ResetFlags restores flag state between CLI tests.
func ResetFlags() {
	inputPath = ""
	dataDir = ""
	concurrency = 0
	shardSize = 0
	httpTimeout = 0
	headless = true
	stealthMode = ""
	networkProfile = ""
	sessionID = ""
	runID = ""
	randomSeed = 0
	dryRun = false
	showVersion = false
}
