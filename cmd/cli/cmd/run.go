package cmd

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/llrt/internal/demo"
	"github.com/llrt/pkg/llrt"
)

var (
	runSteps         int
	runWorkers       int
	runSeed          uint64
	runDeterministic bool
)

// runCmd executes one of the built-in example networks.
var runCmd = &cobra.Command{
	Use:   "run [sigmoid|dense]",
	Short: "Run a built-in example network",
	Long: `Run one of the built-in example networks:

  sigmoid  a five-component feedback network of sigmoid activations,
           advanced for a number of timesteps
  dense    a small dense matrix-vector accumulation`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"sigmoid", "dense"},
	RunE: func(cmd *cobra.Command, args []string) error {
		net := buildNetwork(cmd)
		defer net.Close()

		switch args[0] {
		case "sigmoid":
			start := time.Now()
			total, err := demo.RunSigmoid(net, runSteps)
			if err != nil {
				return err
			}
			logger.Info("sigmoid network: %d steps in %v, final activation total %.6f",
				runSteps, time.Since(start).Round(time.Microsecond), total)
		case "dense":
			out, err := demo.RunDense(net,
				[]float32{7, 8, 9},
				[]float32{1, 2, 3, 4, 5, 6},
				2)
			if err != nil {
				return err
			}
			logger.Info("dense link output: %v", out)
		default:
			return fmt.Errorf("unknown example: %s", args[0])
		}

		net.Display(os.Stdout)
		net.PerfReport(os.Stdout)
		return nil
	},
}

func buildNetwork(cmd *cobra.Command) *llrt.Network {
	flagWorkers := runWorkers
	if !cmd.Flags().Changed("workers") {
		flagWorkers = cfg.Scheduler.Workers
	}
	workers := resolveWorkers(flagWorkers)
	opts := []llrt.NetworkOption{llrt.WithLogger(logger)}
	if cfg.Profiling.Enabled {
		opts = append(opts, llrt.WithProfiling())
	}
	if cfg.Scheduler.SingleThreadThresholdUs > 0 {
		opts = append(opts, llrt.WithSingleThreadThreshold(
			time.Duration(cfg.Scheduler.SingleThreadThresholdUs)*time.Microsecond))
	}
	net := llrt.New(workers, opts...)
	if runSeed != 0 {
		net.Seed(runSeed)
	} else if cfg.Scheduler.Seed != 0 {
		net.Seed(cfg.Scheduler.Seed)
	}
	if runDeterministic || cfg.Scheduler.Deterministic {
		net.SetDeterminism()
	}
	return net
}

// resolveWorkers maps the flag convention (-1 = hardware concurrency)
// onto the library convention (<= 0 = single-threaded).
func resolveWorkers(flag int) int {
	if flag < 0 {
		return runtime.NumCPU()
	}
	return flag
}

func init() {
	runCmd.Flags().IntVar(&runSteps, "steps", 100, "Number of timesteps for the sigmoid network")
	runCmd.Flags().IntVarP(&runWorkers, "workers", "w", -1, "Worker count (0 = single-threaded, -1 = hardware concurrency)")
	runCmd.Flags().Uint64Var(&runSeed, "seed", 0, "Random seed (0 = from config or time)")
	runCmd.Flags().BoolVar(&runDeterministic, "deterministic", false, "Disable adaptive scheduling for reproducible runs")
	rootCmd.AddCommand(runCmd)
}
