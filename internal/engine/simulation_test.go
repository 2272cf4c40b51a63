package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/surnamesim/internal/config"
)

// recorder collects every snapshot it is handed.
type recorder struct {
	snaps []Snapshot
}

func (r *recorder) Report(_ context.Context, snap Snapshot) error {
	r.snaps = append(r.snaps, snap)
	return nil
}

func (r *recorder) years() []int {
	years := make([]int, len(r.snaps))
	for i, s := range r.snaps {
		years[i] = s.Year
	}
	return years
}

func testConfig(seed int64, population, years, interval int) config.SimulationConfig {
	return config.SimulationConfig{
		InitialPopulation: population,
		Years:             years,
		ReportInterval:    interval,
		FertilityModifier: 2.0,
		Seed:              &seed,
		AgePolicy:         "gaussian",
		Workers:           4,
		CheckInvariants:   true,
	}
}

func TestNewSimulation_InvalidConfig(t *testing.T) {
	cfg := testConfig(1, 0, 10, 5)
	_, err := NewSimulation(cfg, nil)
	assert.Error(t, err)

	cfg = testConfig(1, 10, 10, 5)
	cfg.AgePolicy = "uniform"
	_, err = NewSimulation(cfg, nil)
	assert.Error(t, err)
}

func TestNewSimulation_SeedsPopulation(t *testing.T) {
	sim, err := NewSimulation(testConfig(42, 250, 10, 5), nil)
	require.NoError(t, err)

	assert.Equal(t, int64(42), sim.Seed())
	assert.Equal(t, 250, sim.Pop.Len())
	assert.Equal(t, 0, sim.Year)
	require.NoError(t, sim.Pop.CheckInvariants())
}

func TestRun_ReportCadence(t *testing.T) {
	rec := &recorder{}
	sim, err := NewSimulation(testConfig(7, 500, 25, 10), rec)
	require.NoError(t, err)

	res, err := sim.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, res.Extinct)
	assert.Equal(t, 25, res.YearsRun)
	assert.Equal(t, []int{0, 10, 20, 25}, rec.years())
	for i, s := range rec.snaps {
		assert.Equal(t, i == len(rec.snaps)-1, s.Final, "only the last report is final")
	}
	assert.Equal(t, 25, res.Final.Year)
}

func TestRunYears_ZeroYears(t *testing.T) {
	rec := &recorder{}
	sim, err := NewSimulation(testConfig(7, 100, 10, 5), rec)
	require.NoError(t, err)

	res, err := sim.RunYears(context.Background(), 0)
	require.NoError(t, err)

	assert.Zero(t, res.YearsRun)
	require.Len(t, rec.snaps, 1)
	snap := rec.snaps[0]
	assert.Equal(t, 0, snap.Year)
	assert.Equal(t, 100, snap.Population)
	assert.Equal(t, 100, snap.Lineages)
	assert.Zero(t, snap.NewPeople)
	assert.Zero(t, snap.Deaths)
	assert.True(t, snap.Final)
}

func TestRunYears_NegativeYears(t *testing.T) {
	sim, err := NewSimulation(testConfig(7, 10, 10, 5), nil)
	require.NoError(t, err)

	_, err = sim.RunYears(context.Background(), -1)
	assert.Error(t, err)
}

func TestRun_SingleAgentExtinction(t *testing.T) {
	rec := &recorder{}
	sim, err := NewSimulation(testConfig(3, 1, 10, 5), rec)
	require.NoError(t, err)

	a := sim.Pop.Agents()[0]
	a.Age = 0
	a.MaxAge = 1
	a.PartnerEligibleAge = 1

	res, err := sim.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Extinct)
	assert.Equal(t, 1, res.YearsRun)
	assert.Equal(t, uint64(1), res.Final.Deaths)
	assert.Equal(t, 0, res.Final.Population)

	require.Equal(t, []int{0, 1}, rec.years())
	last := rec.snaps[1]
	assert.True(t, last.Extinct)
	assert.True(t, last.Final)
	assert.Equal(t, uint64(1), last.DeathsDelta)
	assert.Equal(t, 1, last.MaxDeathAge)
	assert.InDelta(t, 1.0, last.MeanDeathAge, 1e-9)
	assert.InDelta(t, -1.0, last.NetPerYear, 1e-9)
}

func TestRun_ReporterErrorDoesNotStopRun(t *testing.T) {
	calls := 0
	failing := ReporterFunc(func(context.Context, Snapshot) error {
		calls++
		return errors.New("sink unavailable")
	})

	sim, err := NewSimulation(testConfig(9, 200, 12, 4), failing)
	require.NoError(t, err)

	res, err := sim.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, res.YearsRun)
	assert.Equal(t, 4, calls, "years 0, 4, 8 and 12")
}

func TestRun_Deterministic(t *testing.T) {
	run := func(workers int) ([]Snapshot, []YearResult) {
		cfg := testConfig(2024, 2*chunkSize+300, 40, 5)
		cfg.Workers = workers
		rec := &recorder{}
		sim, err := NewSimulation(cfg, rec)
		require.NoError(t, err)

		var years []YearResult
		sim.OnYear = func(res YearResult) { years = append(years, res) }
		_, err = sim.Run(context.Background())
		require.NoError(t, err)
		return rec.snaps, years
	}

	snapsA, yearsA := run(1)
	snapsB, yearsB := run(1)
	assert.Equal(t, snapsA, snapsB, "same seed, same run")
	assert.Equal(t, yearsA, yearsB)

	snapsC, yearsC := run(8)
	assert.Equal(t, snapsA, snapsC, "worker count does not change the outcome")
	assert.Equal(t, yearsA, yearsC)
}

func TestRun_DifferentSeedsDiverge(t *testing.T) {
	final := func(seed int64) Snapshot {
		sim, err := NewSimulation(testConfig(seed, 1000, 30, 30), nil)
		require.NoError(t, err)
		res, err := sim.Run(context.Background())
		require.NoError(t, err)
		return res.Final
	}
	assert.NotEqual(t, final(1), final(2))
}

func TestRun_SnapshotWindowsAddUp(t *testing.T) {
	rec := &recorder{}
	sim, err := NewSimulation(testConfig(11, 800, 30, 7), rec)
	require.NoError(t, err)

	births, deaths := 0, 0
	sim.OnYear = func(res YearResult) {
		births += res.Births
		deaths += res.Deaths
	}
	_, err = sim.Run(context.Background())
	require.NoError(t, err)

	var newPeople, died uint64
	for _, s := range rec.snaps {
		newPeople += s.NewPeopleDelta
		died += s.DeathsDelta
	}
	last := rec.snaps[len(rec.snaps)-1]
	assert.Equal(t, last.NewPeople, newPeople)
	assert.Equal(t, last.Deaths, died)
	assert.Equal(t, uint64(births), last.NewPeople)
	assert.Equal(t, uint64(deaths), last.Deaths)
	assert.Equal(t, 800+births-deaths, last.Population)
}

func TestRunYears_Resumes(t *testing.T) {
	rec := &recorder{}
	sim, err := NewSimulation(testConfig(5, 300, 10, 5), rec)
	require.NoError(t, err)

	_, err = sim.RunYears(context.Background(), 5)
	require.NoError(t, err)
	_, err = sim.RunYears(context.Background(), 5)
	require.NoError(t, err)

	assert.Equal(t, 10, sim.Year)
	assert.Equal(t, []int{0, 5, 10}, rec.years(), "the resumed run does not repeat year 5")
}

func TestRun_CancelledContext(t *testing.T) {
	sim, err := NewSimulation(testConfig(5, 100, 10, 5), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := sim.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, res.YearsRun)
}
