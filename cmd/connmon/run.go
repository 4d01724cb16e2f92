package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/your-org/connmon/internal/collector"
	"github.com/your-org/connmon/internal/config"
	"github.com/your-org/connmon/internal/logger"
	"github.com/your-org/connmon/internal/metrics"
	"github.com/your-org/connmon/internal/model"
	"github.com/your-org/connmon/internal/sink"
)

const envPrefix = "CONNMON"

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

func initRunCommand(v *viper.Viper) *cobra.Command {
	runCMD := &cobra.Command{
		Use:   "run",
		Short: "Attaches the connection hooks and streams connections as JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v.GetString("config"))
			if err != nil {
				return err
			}
			if err := overlay(cfg, v); err != nil {
				return err
			}
			if !v.GetBool("verbose") {
				logger.SetLevel(cfg.LogLevel)
			}

			ctx, cancel := collector.WithSignalCancel(cmd.Context())
			defer cancel()
			return run(ctx, cfg)
		},
	}

	flags := runCMD.Flags()
	flags.StringP("config", "c", "", "path to YAML configuration, defaults apply when empty")
	flags.String("bpf-object", "", "path to the compiled BPF object")
	flags.StringP("output", "o", "", "JSON lines output file, - for stdout")
	flags.String("metrics-addr", "", "Prometheus listen address, empty disables")
	flags.Bool("no-kprobe", false, "do not attach the tcp_connect kprobe")
	flags.Bool("no-tracepoint", false, "do not attach the inet_sock_set_state tracepoint")
	flags.Bool("no-dedup", false, "emit both events when both hooks see a connection")
	flags.Bool("no-enrich", false, "do not look up process details in /proc")
	flags.Duration("dedup-window", 0, "window in which a repeated 4-tuple is a duplicate")
	flags.Int("perf-pages", 0, "perf buffer pages per CPU")
	flags.String("log-level", "", "log level (debug, info, warn, error)")

	flags.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
	})

	return runCMD
}

// overlay applies flags and CONNMON_* environment variables that were set
// on top of cfg, then validates the result.
func overlay(cfg *config.Config, v *viper.Viper) error {
	if v.IsSet("bpf-object") {
		cfg.BPFObject = v.GetString("bpf-object")
	}
	if v.IsSet("output") {
		cfg.Output = v.GetString("output")
	}
	if v.IsSet("metrics-addr") {
		cfg.MetricsAddr = v.GetString("metrics-addr")
	}
	if v.GetBool("no-kprobe") {
		cfg.Hooks.Kprobe = false
	}
	if v.GetBool("no-tracepoint") {
		cfg.Hooks.Tracepoint = false
	}
	if v.GetBool("no-dedup") {
		cfg.Dedup.Enabled = false
	}
	if v.GetBool("no-enrich") {
		cfg.Enrich = false
	}
	if v.IsSet("dedup-window") {
		cfg.Dedup.Window = v.GetDuration("dedup-window")
	}
	if v.IsSet("perf-pages") {
		cfg.PerfBufferPages = v.GetInt("perf-pages")
	}
	if v.IsSet("log-level") {
		cfg.LogLevel = v.GetString("log-level")
	}
	return cfg.Validate()
}

func run(ctx context.Context, cfg *config.Config) error {
	clock, err := model.NewClock()
	if err != nil {
		return err
	}

	out, err := sink.Open(cfg.Output)
	if err != nil {
		return err
	}
	defer out.Close()

	reg := prometheus.NewRegistry()
	metrics.Register(reg)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			logger.Log.Infof("Prometheus metrics listening on %s", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics HTTP server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return srv.Shutdown(context.Background())
		})
	}

	g.Go(func() error {
		defer cancel()
		if err := collector.New(cfg, clock).Run(ctx, out); err != nil {
			return fmt.Errorf("collector: %w", err)
		}
		return nil
	})

	return g.Wait()
}
