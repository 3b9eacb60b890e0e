package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/llrt/internal/demo"
	"github.com/llrt/pkg/llrt"
	"github.com/llrt/pkg/telemetry"
	"github.com/llrt/pkg/utils"
)

var (
	benchSteps   int
	benchWorkers int
	benchTrace   string
)

// benchCmd runs the sigmoid workload with profiling on, prints the
// performance report and, when a trace path is configured, writes a
// trace of every executed chunk.
var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark the scheduler and dump a performance trace",
	Long: `Run the sigmoid feedback workload with performance recording
enabled and print a performance summary. When --trace or
profiling.trace_path is set, the per-chunk timings are written there
as chrome://tracing JSON; they are exported as OpenTelemetry spans
when OTEL_ENABLED is true.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		shutdown, err := telemetry.Init(ctx)
		if err != nil {
			logger.Warn("failed to initialize telemetry: %v", err)
		} else {
			defer func() {
				if err := shutdown(ctx); err != nil {
					logger.Warn("telemetry shutdown: %v", err)
				}
			}()
		}

		timer := utils.NewTimer("bench")

		opts := []llrt.NetworkOption{llrt.WithLogger(logger), llrt.WithProfiling()}
		net := llrt.New(resolveWorkers(benchWorkers), opts...)
		defer net.Close()
		if cfg.Scheduler.Seed != 0 {
			net.Seed(cfg.Scheduler.Seed)
		}

		phase := timer.Start("run")
		if _, err := demo.RunSigmoid(net, benchSteps); err != nil {
			return err
		}
		net.FinishBatches()
		phase.Stop()

		net.PerfReport(os.Stdout)

		tracePath := benchTrace
		if tracePath == "" {
			tracePath = cfg.Profiling.TracePath
		}
		if tracePath != "" {
			phase = timer.Start("dump-trace")
			f, err := os.Create(tracePath)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := net.DumpTrace(f); err != nil {
				return err
			}
			phase.Stop()
			logger.Info("trace written to %s; view it with chrome://tracing", tracePath)
		}

		if telemetry.Enabled() {
			net.ExportSpans(ctx)
		}

		logger.Info("%s", timer.Summary())
		return nil
	},
}

func init() {
	benchCmd.Flags().IntVar(&benchSteps, "steps", 200, "Number of timesteps")
	benchCmd.Flags().IntVarP(&benchWorkers, "workers", "w", -1, "Worker count (-1 = hardware concurrency)")
	benchCmd.Flags().StringVar(&benchTrace, "trace", "", "Path for the chrome://tracing dump")
	rootCmd.AddCommand(benchCmd)
}
