// Command starvation runs the reader/writer starvation workload and reports
// whether the writer got exclusive access while the readers were still busy.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/thetarby/sharedmutex"
	"github.com/thetarby/sharedmutex/internal/scenario"
	"github.com/thetarby/sharedmutex/metrics"
)

var errStarved = errors.New("writer starved")

func newCommand() *cobra.Command {
	cfg := scenario.DefaultConfig()
	var (
		lockKind string
		verbose  bool
		report   bool
	)

	cmd := &cobra.Command{
		Use:          "starvation",
		Short:        "Check that a waiting writer is not starved by cycling readers",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(verbose)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			cfg.Logger = logger

			var (
				l   sharedmutex.RWLocker
				reg = prometheus.NewRegistry()
			)
			switch lockKind {
			case "shared":
				rwm := sharedmutex.New()
				reg.MustRegister(metrics.NewCollector("starvation", "scenario", rwm))
				l = rwm
			case "sync":
				l = new(sync.RWMutex)
			default:
				return fmt.Errorf("unknown lock %q, want shared or sync", lockKind)
			}

			res, err := scenario.Run(cmd.Context(), l, cfg)
			if err != nil {
				return err
			}
			if report {
				logMetrics(logger, reg)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "writer acquired after %v (delay %v, run %v), %d reader cycles\n",
				res.WriterWait, cfg.WriterDelay, cfg.Run, res.TotalCycles())
			if res.Starved() {
				return errStarved
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&cfg.Readers, "readers", cfg.Readers, "number of reader goroutines")
	flags.DurationVar(&cfg.Hold, "hold", cfg.Hold, "time each reader holds the lock per cycle")
	flags.DurationVar(&cfg.WriterDelay, "writer-delay", cfg.WriterDelay, "delay before the writer asks for the lock")
	flags.DurationVar(&cfg.Run, "run", cfg.Run, "how long readers keep cycling")
	flags.StringVar(&lockKind, "lock", "shared", "lock implementation: shared or sync")
	flags.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	flags.BoolVar(&report, "metrics", false, "log lock metrics after the run")
	return cmd
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func logMetrics(logger *zap.Logger, reg *prometheus.Registry) {
	mfs, err := reg.Gather()
	if err != nil {
		logger.Warn("gather metrics", zap.Error(err))
		return
	}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			fields := []zap.Field{zap.String("metric", mf.GetName())}
			for _, lp := range m.GetLabel() {
				fields = append(fields, zap.String(lp.GetName(), lp.GetValue()))
			}
			switch {
			case m.GetGauge() != nil:
				fields = append(fields, zap.Float64("value", m.GetGauge().GetValue()))
			case m.GetCounter() != nil:
				fields = append(fields, zap.Float64("value", m.GetCounter().GetValue()))
			}
			logger.Info("lock metric", fields...)
		}
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
