package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"infbench/internal/dummy"
	"infbench/internal/logging"
)

var dummyCmd = &cobra.Command{
	Use:   "dummy",
	Short: "Run a simulated gateway and workers to benchmark against",
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		level, _ := f.GetString("log-level")
		if !f.Changed("log-level") {
			level = "info"
		}
		format, _ := f.GetString("log-format")
		logging.Setup(logging.Config{Level: level, Format: format})

		var sc dummy.ServerConfig
		sc.Port, _ = f.GetInt("port")
		sc.Workers, _ = f.GetInt("nodes")
		sc.Worker.MaxBatch, _ = f.GetInt("batch-size")
		sc.Worker.BatchTimeout, _ = f.GetDuration("batch-timeout")
		sc.Worker.ComputeLatency, _ = f.GetDuration("compute-latency")
		sc.Worker.CacheTTL, _ = f.GetDuration("cache-ttl")
		sc.Worker.FailureRate, _ = f.GetFloat64("failure-rate")

		cl, err := dummy.Start(sc)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return cl.Shutdown(shutdownCtx)
	},
}

func init() {
	f := dummyCmd.Flags()
	f.IntP("port", "p", 8000, "Gateway port; workers listen on the ports after it")
	f.Int("nodes", 3, "Number of workers")
	f.Int("batch-size", 32, "Maximum batch size per worker")
	f.Duration("batch-timeout", 20*time.Millisecond, "Maximum wait for a batch to fill")
	f.Duration("compute-latency", 10*time.Millisecond, "Simulated compute time per batch")
	f.Duration("cache-ttl", 5*time.Minute, "Lifetime of cached worker responses")
	f.Float64("failure-rate", 0, "Probability in [0,1] that a worker fails an uncached request")
}
