// Package variate supplies every random draw the simulation makes: uniform,
// exponential and Gaussian variates plus three precomputed empirical tables
// (death age, max children, mortality hazard) built once per Engine.
package variate

import (
	"math/rand"
	"sync"
	"sync/atomic"
)

// Table sizes for the empirical distributions.
const (
	DeathAgeBulkSize = 10000  // Ages drawn below 80
	DeathAgeTailSize = 2000   // Long tail between 80 and 100
	HazardTableSize  = 100000 // Mortality thresholds, read by cursor
)

// maxChildrenWeights expands the weighted 0–5 child cap by repetition.
var maxChildrenWeights = []int{0, 1, 1, 2, 2, 2, 3, 3, 3, 3, 4, 4, 4, 5, 5}

// Engine owns the precomputed tables and the seeding generator that hands
// out independent Streams to workers.
type Engine struct {
	seed int64

	deathAges   []int
	maxChildren []int
	hazards     []float64
	cursor      atomic.Uint64

	seedMu sync.Mutex
	seeder *rand.Rand
}

// NewEngine builds the empirical tables deterministically from seed.
func NewEngine(seed int64) *Engine {
	e := &Engine{
		seed:   seed,
		seeder: rand.New(rand.NewSource(seed)),
	}

	build := e.NewStream()
	e.deathAges = buildDeathAges(build)
	e.maxChildren = append([]int(nil), maxChildrenWeights...)
	build.rng.Shuffle(len(e.maxChildren), func(i, j int) {
		e.maxChildren[i], e.maxChildren[j] = e.maxChildren[j], e.maxChildren[i]
	})
	e.hazards = buildHazards(build)
	return e
}

// Seed returns the seed the engine was built from.
func (e *Engine) Seed() int64 {
	return e.seed
}

// NewStream returns a generator seeded from the engine's seeding generator.
// Streams handed out in the same order are identical across runs.
func (e *Engine) NewStream() *Stream {
	e.seedMu.Lock()
	seed := e.seeder.Int63()
	e.seedMu.Unlock()

	return &Stream{
		rng: rand.New(rand.NewSource(seed)),
		eng: e,
	}
}

// MortalityHazard returns the next entry of the hazard table. Safe for
// concurrent callers; the cursor wraps around the table.
func (e *Engine) MortalityHazard() float64 {
	idx := e.cursor.Add(1) - 1
	return e.hazards[idx%uint64(len(e.hazards))]
}

// ReserveHazards advances the shared cursor by n in one step and returns the
// reserved span. A Stream bound to the span reads it without touching the
// cursor again, so the values a worker sees do not depend on scheduling.
func (e *Engine) ReserveHazards(n int) HazardWindow {
	if n <= 0 {
		return HazardWindow{}
	}
	end := e.cursor.Add(uint64(n))
	return HazardWindow{next: end - uint64(n), left: n}
}

// HazardCursor reports the current cursor position.
func (e *Engine) HazardCursor() uint64 {
	return e.cursor.Load()
}

func (e *Engine) hazardAt(idx uint64) float64 {
	return e.hazards[idx%uint64(len(e.hazards))]
}

// HazardWindow is a contiguous span of the hazard table reserved by one caller.
type HazardWindow struct {
	next uint64
	left int
}

// Remaining is the number of unread entries in the window.
func (w HazardWindow) Remaining() int {
	return w.left
}

// buildDeathAges draws the bulk (below 80) and tail (80–100) age samples,
// concatenates them and shuffles once.
func buildDeathAges(s *Stream) []int {
	ages := make([]int, 0, DeathAgeBulkSize+DeathAgeTailSize)
	for i := 0; i < DeathAgeBulkSize; i++ {
		ages = append(ages, s.ageBelow80())
	}
	for i := 0; i < DeathAgeTailSize; i++ {
		ages = append(ages, s.ageFrom80())
	}
	s.rng.Shuffle(len(ages), func(i, j int) {
		ages[i], ages[j] = ages[j], ages[i]
	})
	return ages
}

// buildHazards fills the hazard table with 1 - exponential(0.05)*2.
func buildHazards(s *Stream) []float64 {
	hazards := make([]float64, HazardTableSize)
	for i := range hazards {
		hazards[i] = 1.0 - s.Exponential(0.05)*2.0
	}
	return hazards
}
