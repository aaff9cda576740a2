package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/fcst-verif-service/internal/adapter/archive"
	"github.com/couchcryptid/fcst-verif-service/internal/adapter/cache"
	"github.com/couchcryptid/fcst-verif-service/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/fcst-verif-service/internal/adapter/kafka"
	"github.com/couchcryptid/fcst-verif-service/internal/adapter/postgres"
	"github.com/couchcryptid/fcst-verif-service/internal/adapter/ratelimit"
	"github.com/couchcryptid/fcst-verif-service/internal/config"
	"github.com/couchcryptid/fcst-verif-service/internal/domain"
	"github.com/couchcryptid/fcst-verif-service/internal/observability"
	"github.com/couchcryptid/fcst-verif-service/internal/pipeline"
)

var runFlags struct {
	variables []string
	regions   []string
	from      string
	to        string
	workers   int
	serve     bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Verify every configured (variable, init month) unit",
	Long: "run loads forecasts, observations and thresholds from the archive\n" +
		"directories, scores each unit and writes the results. Directories and\n" +
		"sinks come from the environment; flags narrow the selection.",
	RunE: runVerification,
}

func init() {
	f := runCmd.Flags()
	f.StringSliceVar(&runFlags.variables, "var", nil, "variables to verify (default: all configured)")
	f.StringSliceVar(&runFlags.regions, "region", nil, "regions to evaluate (default: all configured)")
	f.StringVar(&runFlags.from, "from", "", "first init month, YYYYMM")
	f.StringVar(&runFlags.to, "to", "", "last init month, YYYYMM")
	f.IntVar(&runFlags.workers, "workers", 0, "concurrent units (default: WORKERS)")
	f.BoolVar(&runFlags.serve, "serve", false, "serve /healthz, /readyz, /metrics and /progress during the run")
}

func runVerification(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if runFlags.workers > 0 {
		cfg.Workers = runFlags.workers
	}

	sel, err := selectUnits(cfg.Verification, runFlags.variables, runFlags.regions, runFlags.from, runFlags.to)
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	layout := archive.Layout{
		FcstDir:      cfg.FcstDir,
		ObsDir:       cfg.ObsDir,
		ThresholdDir: cfg.ThresholdDir,
		OutputDir:    cfg.OutputDir,
	}
	var src pipeline.Source = archive.NewStore(layout, logger)
	if cfg.ReadRateLimit > 0 {
		src = ratelimit.NewSource(src, cfg.ReadRateLimit, cfg.Workers)
		logger.Info("input reads rate limited", "per_second", cfg.ReadRateLimit)
	}
	src = cache.NewThresholdSource(src, cfg.ThresholdCacheSize, metrics)

	sinks := []pipeline.Sink{archive.NewWriter(layout, logger), archive.NewTargetSummary(layout, logger)}
	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				logger.Error("sink close error", "error", err)
			}
		}
	}()
	if cfg.KafkaEnabled {
		w := kafkaadapter.NewWriter(cfg, logger)
		sinks = append(sinks, w)
		closers = append(closers, w)
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaScoreTopic)
	}
	if cfg.DatabaseURL != "" {
		store, err := postgres.Open(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return err
		}
		sinks = append(sinks, store)
		closers = append(closers, store)
		logger.Info("postgres score store enabled")
	}

	p := pipeline.New(src, pipeline.NewVerifier(sel.regions, logger), sinks, logger, metrics, pipeline.Settings{
		Workers:           cfg.Workers,
		ObservationYears:  cfg.Verification.ObservationYears(),
		ClimatologyPeriod: cfg.Verification.ClimatologyPeriod(),
	})

	if runFlags.serve {
		srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer shutdownServer(srv, cfg, logger)
	}

	sum, err := p.Run(ctx, pipeline.Units(sel.variables, sel.inits))
	printSummary(cmd.OutOrStdout(), sum)
	if err != nil {
		return fmt.Errorf("run incomplete: %w", err)
	}
	if n := sum.Count(pipeline.Failed); n > 0 {
		return fmt.Errorf("%d of %d units failed", n, len(sum.Outcomes))
	}
	return nil
}

func shutdownServer(srv *httpadapter.Server, cfg *config.Config, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
}

type selection struct {
	variables []domain.Variable
	regions   domain.RegionTable
	inits     []domain.Month
}

// selectUnits narrows the configured verification to the requested
// variables, regions and init range. Empty filters keep everything.
func selectUnits(v config.Verification, vars, regions []string, from, to string) (selection, error) {
	sel := selection{variables: v.Variables, regions: v.Regions}

	if len(vars) > 0 {
		sel.variables = nil
		for _, name := range vars {
			vr, err := v.Variable(name)
			if err != nil {
				return sel, err
			}
			sel.variables = append(sel.variables, vr)
		}
	}
	if len(regions) > 0 {
		sub, err := v.Regions.Subset(regions)
		if err != nil {
			return sel, err
		}
		sel.regions = sub
	}

	inits := v.InitMonths()
	lo, hi := inits[0], inits[len(inits)-1]
	var err error
	if from != "" {
		if lo, err = domain.ParseYYYYMM(from); err != nil {
			return sel, fmt.Errorf("--from: %w", err)
		}
	}
	if to != "" {
		if hi, err = domain.ParseYYYYMM(to); err != nil {
			return sel, fmt.Errorf("--to: %w", err)
		}
	}
	for _, m := range inits {
		if !m.Before(lo) && !hi.Before(m) {
			sel.inits = append(sel.inits, m)
		}
	}
	if len(sel.inits) == 0 {
		return sel, fmt.Errorf("no init months between %s and %s", lo.YYYYMM(), hi.YYYYMM())
	}
	return sel, nil
}

func printSummary(w io.Writer, sum pipeline.Summary) {
	fmt.Fprintf(w, "completed %d  skipped %d  failed %d\n",
		sum.Count(pipeline.Completed), sum.Count(pipeline.Skipped), sum.Count(pipeline.Failed))
	for _, o := range sum.Outcomes {
		if o.Status == pipeline.Completed {
			continue
		}
		fmt.Fprintf(w, "  %-9s %s %s: %v\n", o.Status, o.Unit.Variable.Name, o.Unit.Init.YYYYMM(), o.Err)
	}
}
