package engine

import (
	"context"
	"fmt"
	"log/slog"
)

// RunResult describes how a run ended.
type RunResult struct {
	YearsRun int      `json:"years_run"`
	Extinct  bool     `json:"extinct"`
	Final    Snapshot `json:"final"`
}

// Run simulates the configured horizon.
func (s *Simulation) Run(ctx context.Context) (RunResult, error) {
	return s.RunYears(ctx, s.Config.Years)
}

// RunYears advances the simulation by up to years years. The starting
// state is reported first unless it already was; after that a report goes
// out every ReportInterval years, on extinction, and after the last year.
// Extinction ends the run early.
func (s *Simulation) RunYears(ctx context.Context, years int) (RunResult, error) {
	if years < 0 {
		return RunResult{}, fmt.Errorf("years must be non-negative, got %d", years)
	}

	slog.Info("simulation starting",
		"seed", s.Seed(),
		"year", s.Year,
		"population", s.Pop.Len(),
		"years", years,
		"fertility_modifier", s.Config.FertilityModifier,
		"age_policy", s.Pop.Spawner().Policy(),
	)

	if !s.reportedAny || s.lastReportYear != s.Year {
		snap := s.Snapshot()
		snap.Final = years == 0 || snap.Extinct
		s.report(ctx, snap)
	}

	result := RunResult{}
	if s.Pop.Len() == 0 {
		result.Extinct = true
		result.Final = s.Snapshot()
		return result, nil
	}

	for i := 0; i < years; i++ {
		if err := ctx.Err(); err != nil {
			result.Final = s.Snapshot()
			return result, err
		}

		res, err := s.Pop.Step(ctx, s.Year+1)
		if err != nil {
			return result, fmt.Errorf("year %d: %w", s.Year+1, err)
		}
		s.Year++
		result.YearsRun++
		s.record(res)

		if s.OnYear != nil {
			s.OnYear(res)
		}

		slog.Debug("year complete",
			"year", s.Year,
			"population", s.Pop.Len(),
			"births", res.Births,
			"deaths", res.Deaths,
			"pairings", res.Pairings,
			"conceptions", res.Conceptions,
		)

		if s.Config.CheckInvariants {
			if err := s.Pop.CheckInvariants(); err != nil {
				return result, fmt.Errorf("year %d: %w", s.Year, err)
			}
		}

		if s.Pop.Len() == 0 {
			snap := s.Snapshot()
			snap.Final = true
			s.report(ctx, snap)
			slog.Info("population extinct", "year", s.Year, "deaths", snap.Deaths, "new_people", snap.NewPeople)
			result.Extinct = true
			result.Final = snap
			return result, nil
		}

		last := i == years-1
		if last || s.Year%s.Config.ReportInterval == 0 {
			snap := s.Snapshot()
			snap.Final = last
			s.report(ctx, snap)
		}
	}

	result.Final = s.Snapshot()
	result.Final.Final = true
	slog.Info("simulation finished",
		"year", s.Year,
		"population", result.Final.Population,
		"lineages", result.Final.Lineages,
		"deaths", result.Final.Deaths,
		"new_people", result.Final.NewPeople,
	)
	return result, nil
}

// report hands snap to the reporter. Reporter failures are logged and do
// not affect the run.
func (s *Simulation) report(ctx context.Context, snap Snapshot) {
	if s.Reporter != nil {
		if err := s.Reporter.Report(ctx, snap); err != nil {
			slog.Error("report failed", "year", snap.Year, "error", err)
		}
	}
	s.resetWindow(snap)
}
