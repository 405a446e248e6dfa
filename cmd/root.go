package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"infbench/internal/banner"
	"infbench/internal/config"
	"infbench/internal/logging"
	"infbench/internal/probe"
	"infbench/internal/runner"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "infbench",
	Short: "infbench - Load generator for ML inference gateways",
	Long: `
infbench fires concurrent synthetic inference requests at a gateway,
reports throughput, latency percentiles and a categorized error tally,
and optionally measures response-cache effectiveness and probes the
gateway and workers for their internal statistics.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(viper.GetViper(), cfgFile)
		if err != nil {
			return err
		}
		logging.Setup(logging.Config{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runBenchmark(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func Execute() {
	// Custom Help with Banner
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), banner.GetString())
		cmd.Usage()
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// flagKeys maps flag names to their configuration keys.
var flagKeys = map[string]string{
	"gateway":          "gateway",
	"requests":         "requests",
	"threads":          "threads",
	"workers":          "workers",
	"timeout":          "timeout",
	"payload-template": "payload_template",
	"cache-test":       "cache_test.enabled",
	"cache-requests":   "cache_test.requests",
	"no-stats":         "probe.disabled",
	"probe-timeout":    "probe.timeout",
	"metrics-addr":     "metrics.addr",
	"tui":              "tui",
	"log-level":        "logging.level",
	"log-format":       "logging.format",
}

func init() {
	rootCmd.AddCommand(dummyCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.infbench.yaml)")
	pf.String("log-level", "warn", "Log level (debug, info, warn, error)")
	pf.String("log-format", "text", "Log format (text or json)")

	f := rootCmd.Flags()
	f.StringP("gateway", "g", "http://localhost:8000", "Gateway base URL")
	f.IntP("requests", "n", 1000, "Total number of requests")
	f.IntP("threads", "t", 10, "Number of concurrent workers")
	f.StringSlice("workers", []string{"http://localhost:8001", "http://localhost:8002", "http://localhost:8003"}, "Worker base URLs to probe")
	f.Duration("timeout", runner.DefaultTimeout, "Per-request timeout")
	f.String("payload-template", "", "Go template for the request body (e.g. '{\"request_id\":\"{{requestID}}\",\"input_data\":{{features}}}')")
	f.Bool("cache-test", false, "Run the cache effectiveness test before the benchmark")
	f.Int("cache-requests", 100, "Requests per cache test phase")
	f.Bool("no-stats", false, "Skip the system statistics probe")
	f.Duration("probe-timeout", probe.DefaultTimeout, "Timeout for each statistics probe")
	f.String("metrics-addr", "", "Serve prometheus metrics on this address during the run (e.g. :9090)")
	f.Bool("tui", false, "Show an interactive dashboard while the benchmark runs")

	bindFlags(viper.GetViper(), pf, f)
}

func bindFlags(v *viper.Viper, sets ...*pflag.FlagSet) {
	for _, fs := range sets {
		fs.VisitAll(func(fl *pflag.Flag) {
			if key, ok := flagKeys[fl.Name]; ok {
				_ = v.BindPFlag(key, fl)
			}
		})
	}
}
