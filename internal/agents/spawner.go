// Agent spawning creates root agents for the standing population and
// children for births.
package agents

import (
	"fmt"
	"math"

	"github.com/talgya/surnamesim/internal/variate"
)

// AgePolicy selects how root agents get their starting age.
type AgePolicy string

const (
	// AgeGaussian draws Gaussian(20, 3) capped at 80% of the agent's max age.
	AgeGaussian AgePolicy = "gaussian"
	// AgeExponential draws int(exponential(80)), kept below the max age.
	AgeExponential AgePolicy = "exponential"
)

// ParseAgePolicy maps a config string to an AgePolicy. Empty means gaussian.
func ParseAgePolicy(s string) (AgePolicy, error) {
	switch AgePolicy(s) {
	case "", AgeGaussian:
		return AgeGaussian, nil
	case AgeExponential:
		return AgeExponential, nil
	default:
		return "", fmt.Errorf("unknown age policy %q (valid: gaussian, exponential)", s)
	}
}

// Spawner creates agents. Ids are left zero; the population assigns them
// when the agent joins.
type Spawner struct {
	counters *Counters
	policy   AgePolicy
}

// NewSpawner creates a spawner drawing lineage tags from counters.
func NewSpawner(counters *Counters, policy AgePolicy) *Spawner {
	if policy == "" {
		policy = AgeGaussian
	}
	return &Spawner{counters: counters, policy: policy}
}

// Policy returns the root age policy in use.
func (s *Spawner) Policy() AgePolicy {
	return s.policy
}

// SpawnPopulation creates count root agents, in lineage order.
func (s *Spawner) SpawnPopulation(rng *variate.Stream, count int, year int) []*Agent {
	roots := make([]*Agent, 0, count)
	for i := 0; i < count; i++ {
		roots = append(roots, s.SpawnRoot(rng, year))
	}
	return roots
}

// SpawnRoot creates a parentless agent with a fresh lineage tag and a
// starting age representative of a standing population.
func (s *Spawner) SpawnRoot(rng *variate.Stream, year int) *Agent {
	maxAge := rng.DeathAge()
	age := s.rootAge(rng, maxAge)
	lineage := s.counters.NextLineage()

	a := spawnOne(rng, maxAge, age, lineage)
	a.BirthYear = year - age
	return a
}

// SpawnChild creates a newborn of mother and father. The child takes the
// father's lineage tag; with the father already gone it takes the mother's
// current tag, which she took from him when they partnered.
func (s *Spawner) SpawnChild(rng *variate.Stream, year int, mother, father *Agent) *Agent {
	lineage := mother.Lineage
	if father != nil {
		lineage = father.Lineage
	}

	a := spawnOne(rng, rng.DeathAge(), 0, lineage)
	a.BirthYear = year
	return a
}

func (s *Spawner) rootAge(rng *variate.Stream, maxAge int) int {
	var age int
	switch s.policy {
	case AgeExponential:
		age = int(rng.Exponential(80))
		if age >= maxAge {
			age = maxAge - 1
		}
	default:
		age = int(math.Min(float64(maxAge)*0.8, rng.Gaussian(20, 3)))
	}
	if age < 0 {
		age = 0
	}
	return age
}

// spawnOne fills in the fields every agent samples at construction.
func spawnOne(rng *variate.Stream, maxAge, age int, lineage uint64) *Agent {
	sex := SexMale
	if rng.Int(0, 2) == 1 {
		sex = SexFemale
	}

	window := FertilityWindow{
		Start: rng.Int(10, 16),
		End:   rng.Int(30, 51),
	}

	a := &Agent{
		Lineage:             lineage,
		OriginalLineage:     lineage,
		Sex:                 sex,
		Age:                 age,
		MaxAge:              maxAge,
		MaxChildren:         rng.MaxChildren(),
		FertilityDifficulty: float64(rng.Int(0, 101)) / 100.0,
		Fertility:           window,
		Alive:               true,
	}
	a.PartnerEligibleAge = partnerEligibleAge(rng, window.Start, maxAge)
	return a
}

// partnerEligibleAge is right-skewed above the fertility start and never
// exceeds the death age.
func partnerEligibleAge(rng *variate.Stream, start, maxAge int) int {
	if start >= maxAge {
		return maxAge
	}
	age := start + int(math.Round(float64(start)*rng.Exponential(0.2)))
	if age > maxAge {
		age = maxAge
	}
	return age
}
