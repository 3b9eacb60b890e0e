package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/llrt/pkg/config"
	"github.com/llrt/pkg/utils"
)

var (
	// Global flags
	verbose    bool
	configPath string

	logger utils.Logger
	cfg    *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "llrt",
	Short: "Run sparse-graph kernel workloads",
	Long: `llrt runs kernel workloads over networks of components joined by
dense, local-2D and adjacency-list links, scheduling the work across
worker threads with adaptive load balancing.

The run command executes one of the built-in example networks; the
bench command runs a workload with profiling enabled and writes a
trace viewable in chrome://tracing.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		logLevel := utils.ParseLogLevel(cfg.Log.Level)
		if verbose {
			logLevel = utils.LevelDebug
		}
		logger = utils.NewDefaultLogger(logLevel, os.Stdout)
		utils.SetGlobalLogger(logger)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	binName := BinName()
	rootCmd.Example = `  # Run the sigmoid feedback network for 100 steps on 8 workers
  ` + binName + ` run sigmoid --steps 100 --workers 8

  # Run deterministically with a fixed seed
  ` + binName + ` run sigmoid --seed 157 --deterministic

  # Benchmark and dump a chrome://tracing file
  ` + binName + ` bench --steps 200 --trace trace.json`
}

// BinName returns the base name of the current executable
func BinName() string {
	return filepath.Base(os.Args[0])
}
