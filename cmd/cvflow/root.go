package main

import (
	"fmt"
	"os"

	"github.com/aretw0/cvflow/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cvflow",
	Short: "cvflow runs node-graph processing pipelines",
	Long: `cvflow loads pipelines of typed nodes joined by connections and propagates
buffers through them cycle by cycle. Pipelines are YAML, JSON or HCL files, or
documents kept in a pipeline store (a directory or Redis).`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SilenceErrors = true

	flags := rootCmd.PersistentFlags()
	flags.String("dir", cli.DefaultDir, "Directory of the pipeline store")
	flags.String("redis", "", "Redis URL of the pipeline store (overrides --dir)")
	flags.Bool("debug", false, "Enable debug logging on stderr")
	flags.Bool("log-json", false, "Write logs as JSON")
	flags.Int("concurrency", 1, "Nodes of the same depth processed at once")
	flags.Duration("interval", 0, "Pause between cycles of a continuous run")
	flags.String("store-key", os.Getenv("CVFLOW_STORE_KEY"), "Base64 AES-256 key to encrypt stored pipelines (env CVFLOW_STORE_KEY)")
	flags.StringSlice("redact", nil, "Regexp of property names masked before storing (repeatable)")
}

// commonOptions reads the persistent flags.
func commonOptions(cmd *cobra.Command) cli.Options {
	flags := cmd.Flags()
	dir, _ := flags.GetString("dir")
	redisURL, _ := flags.GetString("redis")
	debug, _ := flags.GetBool("debug")
	jsonLogs, _ := flags.GetBool("log-json")
	concurrency, _ := flags.GetInt("concurrency")
	interval, _ := flags.GetDuration("interval")
	storeKey, _ := flags.GetString("store-key")
	redact, _ := flags.GetStringSlice("redact")
	return cli.Options{
		Dir:         dir,
		RedisURL:    redisURL,
		Debug:       debug,
		JSONLogs:    jsonLogs,
		Concurrency: concurrency,
		Interval:    interval,
		StoreKey:    storeKey,
		Redact:      redact,
	}
}
