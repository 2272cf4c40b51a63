package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/talgya/surnamesim/internal/config"
	"github.com/talgya/surnamesim/internal/engine"
	"github.com/talgya/surnamesim/internal/logging"
	"github.com/talgya/surnamesim/internal/metrics"
	"github.com/talgya/surnamesim/internal/persistence"
	"github.com/talgya/surnamesim/internal/report"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation",
		Long: `Run a simulation with settings from defaults, --config, SURNAMESIM_*
environment variables and flags, in increasing precedence.

Examples:
  surnamesim run                                # 10,000 people for 500 years
  surnamesim run --seed 42 --years 200          # Reproducible shorter run
  surnamesim run --history-db runs.db --quiet   # Record stats history only`,
		RunE: runSimulation,
	}

	f := cmd.Flags()
	f.Int64("seed", 0, "Random seed (unset means a fresh seed)")
	f.Int("population", 0, "Initial population")
	f.Int("years", 0, "Years to simulate")
	f.Int("interval", 0, "Years between reports")
	f.Float64("modifier", 0, "Fertility modifier")
	f.String("age-policy", "", "Root age policy: gaussian or exponential")
	f.Int("workers", 0, "Goroutines per phase (0 means GOMAXPROCS)")
	f.Bool("check-invariants", false, "Verify the population after every year")
	f.String("history-db", "", "SQLite file for stats history")
	f.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	f.Bool("quiet", false, "Suppress the console report")
	f.String("log-level", "", "Log level: debug, info, warn, error")
	f.String("log-format", "", "Log format: auto, text, json")

	return cmd
}

// loadConfig resolves the configuration for cmd, flags taking precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyFlags copies explicitly set flags over cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Lookup("seed") == nil {
		return
	}

	sim := &cfg.Simulation
	if f.Changed("seed") {
		seed, _ := f.GetInt64("seed")
		sim.Seed = &seed
	}
	if f.Changed("population") {
		sim.InitialPopulation, _ = f.GetInt("population")
	}
	if f.Changed("years") {
		sim.Years, _ = f.GetInt("years")
	}
	if f.Changed("interval") {
		sim.ReportInterval, _ = f.GetInt("interval")
	}
	if f.Changed("modifier") {
		sim.FertilityModifier, _ = f.GetFloat64("modifier")
	}
	if f.Changed("age-policy") {
		sim.AgePolicy, _ = f.GetString("age-policy")
	}
	if f.Changed("workers") {
		sim.Workers, _ = f.GetInt("workers")
	}
	if f.Changed("check-invariants") {
		sim.CheckInvariants, _ = f.GetBool("check-invariants")
	}
	if f.Changed("history-db") {
		cfg.Output.HistoryDB, _ = f.GetString("history-db")
	}
	if f.Changed("metrics-addr") {
		cfg.Output.MetricsAddr, _ = f.GetString("metrics-addr")
	}
	if f.Changed("quiet") {
		cfg.Output.Quiet, _ = f.GetBool("quiet")
	}
	if f.Changed("log-level") {
		cfg.Logging.Level, _ = f.GetString("log-level")
	}
	if f.Changed("log-format") {
		cfg.Logging.Format, _ = f.GetString("log-format")
	}
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	slog.SetDefault(logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, os.Stderr))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sim, err := engine.NewSimulation(cfg.Simulation, nil)
	if err != nil {
		return err
	}

	// Record the resolved seed so the stored config reproduces the run.
	seed := sim.Seed()
	cfg.Simulation.Seed = &seed

	var reporters report.Multi
	if !cfg.Output.Quiet {
		out := cmd.OutOrStdout()
		reporters = append(reporters, report.NewConsole(out, logging.IsTerminal(out)))
	}

	var (
		db    *persistence.DB
		runID string
	)
	if cfg.Output.HistoryDB != "" {
		db, err = persistence.Open(cfg.Output.HistoryDB)
		if err != nil {
			return err
		}
		defer db.Close()

		rendered, err := cfg.Marshal()
		if err != nil {
			return fmt.Errorf("render config: %w", err)
		}
		runID, err = db.BeginRun(seed, string(rendered))
		if err != nil {
			return err
		}
		reporters = append(reporters, persistence.NewHistoryReporter(db, runID))
		slog.Info("recording stats history", "db", cfg.Output.HistoryDB, "run", runID)
	}

	g, gctx := errgroup.WithContext(ctx)
	serveCtx, stopServing := context.WithCancel(gctx)
	defer stopServing()

	if cfg.Output.MetricsAddr != "" {
		collector := metrics.New()
		reporters = append(reporters, collector)
		sim.OnYear = collector.ObserveYear
		g.Go(func() error {
			return collector.Serve(serveCtx, cfg.Output.MetricsAddr)
		})
	}
	sim.Reporter = reporters

	var res engine.RunResult
	g.Go(func() error {
		defer stopServing()
		var runErr error
		res, runErr = sim.Run(gctx)
		return runErr
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		slog.Warn("run interrupted", "year", sim.Year)
	}
	if db == nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	return recordOutcome(db, runID, sim, res, err)
}

// recordOutcome stamps the run row whatever runErr is, so failed runs do
// not look unfinished. The final roster is saved only when it passes the
// population checks. An interrupt is not an error.
func recordOutcome(db *persistence.DB, runID string, sim *engine.Simulation, res engine.RunResult, runErr error) error {
	failed := runErr != nil && !errors.Is(runErr, context.Canceled)

	if err := db.FinishRun(runID, res); err != nil {
		if failed {
			return errors.Join(runErr, err)
		}
		return err
	}
	if failed {
		return runErr
	}

	if err := sim.Pop.CheckInvariants(); err != nil {
		slog.Warn("final population not saved", "run", runID, "error", err)
		return nil
	}
	if err := db.SaveAgents(runID, sim.Pop.Agents()); err != nil {
		return fmt.Errorf("save population: %w", err)
	}
	return nil
}
