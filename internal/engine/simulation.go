// Simulation ties the variate engine, the population and the reporters
// together and advances them year by year.
package engine

import (
	"fmt"

	"github.com/talgya/surnamesim/internal/agents"
	"github.com/talgya/surnamesim/internal/config"
	"github.com/talgya/surnamesim/internal/variate"
)

// Simulation holds the complete run state.
type Simulation struct {
	Config   config.SimulationConfig
	Pop      *Population
	Reporter Reporter // May be nil

	// OnYear, when set, is called after every simulated year.
	OnYear func(res YearResult)

	Year      int    // Years simulated so far
	NewPeople uint64 // Cumulative births

	variates *variate.Engine

	// Reporting window state.
	lastReportYear   int
	lastNewPeople    uint64
	lastDeaths       uint64
	windowDeathAges  int
	windowDeathCount int
	windowMaxDeath   int
	reportedAny      bool
}

// NewSimulation validates cfg, builds the variate tables and seeds the
// initial population.
func NewSimulation(cfg config.SimulationConfig, reporter Reporter) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid simulation config: %w", err)
	}
	policy, err := agents.ParseAgePolicy(cfg.AgePolicy)
	if err != nil {
		return nil, fmt.Errorf("invalid simulation config: %w", err)
	}

	eng := variate.NewEngine(variate.ResolveSeed(cfg.Seed))
	pop := NewPopulation(eng, PopulationOptions{
		FertilityModifier: cfg.FertilityModifier,
		AgePolicy:         policy,
		Workers:           cfg.Workers,
	})
	pop.Populate(cfg.InitialPopulation, 0)

	return &Simulation{
		Config:   cfg,
		Pop:      pop,
		Reporter: reporter,
		variates: eng,
	}, nil
}

// Seed returns the seed in effect, resolved if the config left it unset.
func (s *Simulation) Seed() int64 {
	return s.variates.Seed()
}

// Snapshot summarizes the current state. Window fields cover the years
// since the previous report.
func (s *Simulation) Snapshot() Snapshot {
	census := s.Pop.Census()
	deaths := s.Pop.Counters().Deaths()

	snap := Snapshot{
		Year:           s.Year,
		Population:     census.Population,
		MeanAge:        census.MeanAge,
		Lineages:       census.Lineages,
		LargestLineage: census.LargestLineage,
		NewPeople:      s.NewPeople,
		Deaths:         deaths,
		NewPeopleDelta: s.NewPeople - s.lastNewPeople,
		DeathsDelta:    deaths - s.lastDeaths,
		MaxDeathAge:    s.windowMaxDeath,
		Extinct:        census.Population == 0,
	}
	if census.Population > 0 {
		snap.PartneredFraction = float64(census.Partnered) / float64(census.Population)
	}
	if s.windowDeathCount > 0 {
		snap.MeanDeathAge = float64(s.windowDeathAges) / float64(s.windowDeathCount)
	}
	if span := s.Year - s.lastReportYear; span > 0 {
		snap.NetPerYear = (float64(snap.NewPeopleDelta) - float64(snap.DeathsDelta)) / float64(span)
	}
	return snap
}

// record folds a year's result into the cumulative and window counters.
func (s *Simulation) record(res YearResult) {
	s.NewPeople += uint64(res.Births)
	for _, age := range res.DeathAges {
		s.windowDeathAges += age
		s.windowDeathCount++
		if age > s.windowMaxDeath {
			s.windowMaxDeath = age
		}
	}
}

// resetWindow starts a new reporting window at the snapshot just reported.
func (s *Simulation) resetWindow(snap Snapshot) {
	s.lastReportYear = snap.Year
	s.lastNewPeople = snap.NewPeople
	s.lastDeaths = snap.Deaths
	s.windowDeathAges = 0
	s.windowDeathCount = 0
	s.windowMaxDeath = 0
	s.reportedAny = true
}
