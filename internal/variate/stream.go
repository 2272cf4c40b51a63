package variate

import (
	"math"
	"math/rand"
)

// Stream is an independent generator owned by a single worker. It is not
// safe for concurrent use; hand each goroutine its own Stream.
type Stream struct {
	rng    *rand.Rand
	eng    *Engine
	window HazardWindow
}

// BindHazards makes subsequent MortalityHazard calls read from w before
// falling back to the engine's shared cursor.
func (s *Stream) BindHazards(w HazardWindow) {
	s.window = w
}

// Int returns a uniform integer in [lo, hi). It panics if hi <= lo.
func (s *Stream) Int(lo, hi int) int {
	return lo + s.rng.Intn(hi-lo)
}

// Float returns a uniform real in [lo, hi).
func (s *Stream) Float(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

// Exponential returns -ln(U) * scale with U uniform in (0, 1].
func (s *Stream) Exponential(scale float64) float64 {
	return -math.Log(1.0-s.rng.Float64()) * scale
}

// Gaussian draws a normal variate with the Box–Muller transform.
func (s *Stream) Gaussian(mean, stddev float64) float64 {
	u1 := 1.0 - s.rng.Float64()
	u2 := 1.0 - s.rng.Float64()
	z0 := math.Sqrt(-2.0*math.Log(u1)) * math.Cos(2.0*math.Pi*u2)
	return mean + z0*stddev
}

// Shuffle permutes n elements in place using swap.
func (s *Stream) Shuffle(n int, swap func(i, j int)) {
	s.rng.Shuffle(n, swap)
}

// DeathAge samples the precomputed death-age table.
func (s *Stream) DeathAge() int {
	t := s.eng.deathAges
	return t[s.rng.Intn(len(t))]
}

// MaxChildren samples the weighted child-cap table.
func (s *Stream) MaxChildren() int {
	t := s.eng.maxChildren
	return t[s.rng.Intn(len(t))]
}

// MortalityHazard returns the next hazard threshold, from the bound window
// while it lasts and from the shared cursor afterwards.
func (s *Stream) MortalityHazard() float64 {
	if s.window.left > 0 {
		v := s.eng.hazardAt(s.window.next)
		s.window.next++
		s.window.left--
		return v
	}
	return s.eng.MortalityHazard()
}

// ageBelow80 draws 80 - exponential(50)*0.4, redrawing anything that would
// truncate below 1 so every sampled lifespan is positive.
func (s *Stream) ageBelow80() int {
	age := 80 - s.Exponential(50)*0.4
	for age < 1 {
		age = 80 - s.Exponential(50)*0.4
	}
	return int(age)
}

// ageFrom80 draws 80 + exponential(50)*0.1, redrawing anything above 100.
func (s *Stream) ageFrom80() int {
	age := 80 + s.Exponential(50)*0.1
	for age > 100 {
		age = 80 + s.Exponential(50)*0.1
	}
	return int(age)
}
