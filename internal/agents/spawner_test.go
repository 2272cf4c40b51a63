package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/surnamesim/internal/variate"
)

func TestParseAgePolicy(t *testing.T) {
	tests := []struct {
		input   string
		want    AgePolicy
		wantErr bool
	}{
		{"", AgeGaussian, false},
		{"gaussian", AgeGaussian, false},
		{"exponential", AgeExponential, false},
		{"uniform", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAgePolicy(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSpawnRoot_Fields(t *testing.T) {
	rng := variate.NewEngine(42).NewStream()
	counters := &Counters{}
	sp := NewSpawner(counters, AgeGaussian)

	for i := 0; i < 2000; i++ {
		a := sp.SpawnRoot(rng, 0)

		require.True(t, a.Alive)
		assert.Equal(t, uint64(i+1), a.Lineage, "root lineage tags are allocated in order")
		assert.Equal(t, a.Lineage, a.OriginalLineage)
		assert.Equal(t, NoAgent, a.ID, "ids are assigned by the population")

		assert.Greater(t, a.MaxAge, 0)
		assert.GreaterOrEqual(t, a.Age, 0)
		assert.LessOrEqual(t, float64(a.Age), float64(a.MaxAge)*0.8)
		assert.Equal(t, -a.Age, a.BirthYear)

		assert.True(t, a.Fertility.Start >= 10 && a.Fertility.Start <= 15, "start %d", a.Fertility.Start)
		assert.True(t, a.Fertility.End >= 30 && a.Fertility.End <= 50, "end %d", a.Fertility.End)
		assert.True(t, a.FertilityDifficulty >= 0 && a.FertilityDifficulty <= 1)
		assert.True(t, a.MaxChildren >= 0 && a.MaxChildren <= 5)
		assert.LessOrEqual(t, a.PartnerEligibleAge, a.MaxAge)

		assert.False(t, a.HasPartner())
		assert.False(t, a.HasHadPartner)
		assert.False(t, a.PendingConception)
	}
	assert.Equal(t, uint64(2000), counters.LineagesIssued())
}

func TestSpawnRoot_ExponentialPolicy(t *testing.T) {
	rng := variate.NewEngine(42).NewStream()
	sp := NewSpawner(&Counters{}, AgeExponential)
	require.Equal(t, AgeExponential, sp.Policy())

	for i := 0; i < 2000; i++ {
		a := sp.SpawnRoot(rng, 100)
		assert.GreaterOrEqual(t, a.Age, 0)
		assert.Less(t, a.Age, a.MaxAge, "exponential start age stays below max age")
		assert.Equal(t, 100-a.Age, a.BirthYear)
	}
}

func TestSpawnPopulation(t *testing.T) {
	rng := variate.NewEngine(1).NewStream()
	sp := NewSpawner(&Counters{}, "")

	roots := sp.SpawnPopulation(rng, 50, 0)
	require.Len(t, roots, 50)
	for i := 1; i < len(roots); i++ {
		assert.Greater(t, roots[i].Lineage, roots[i-1].Lineage)
	}
}

func TestSpawnChild_Lineage(t *testing.T) {
	rng := variate.NewEngine(3).NewStream()
	counters := &Counters{}
	sp := NewSpawner(counters, AgeGaussian)

	father := newTestAgent(1, SexMale)
	father.Lineage = 7
	mother := newTestAgent(2, SexFemale)
	mother.Lineage = 9

	t.Run("inherits from father", func(t *testing.T) {
		child := sp.SpawnChild(rng, 12, mother, father)
		assert.Equal(t, uint64(7), child.Lineage)
		assert.Equal(t, uint64(7), child.OriginalLineage)
		assert.Equal(t, 0, child.Age)
		assert.Equal(t, 12, child.BirthYear)
		assert.True(t, child.Alive)
	})

	t.Run("falls back to mother without father", func(t *testing.T) {
		child := sp.SpawnChild(rng, 12, mother, nil)
		assert.Equal(t, uint64(9), child.Lineage)
	})

	assert.Equal(t, uint64(0), counters.LineagesIssued(), "children never allocate lineage tags")
}

func TestPartnerEligibleAge(t *testing.T) {
	rng := variate.NewEngine(3).NewStream()

	t.Run("start at or above max age", func(t *testing.T) {
		assert.Equal(t, 8, partnerEligibleAge(rng, 12, 8))
		assert.Equal(t, 12, partnerEligibleAge(rng, 12, 12))
	})

	t.Run("never below start or above max age", func(t *testing.T) {
		for i := 0; i < 5000; i++ {
			age := partnerEligibleAge(rng, 12, 30)
			if age < 12 || age > 30 {
				t.Fatalf("partnerEligibleAge = %d, want within [12, 30]", age)
			}
		}
	})
}

// newTestAgent builds a fertile adult with fixed, predictable fields.
func newTestAgent(id AgentID, sex Sex) *Agent {
	return &Agent{
		ID:                 id,
		Lineage:            uint64(id),
		OriginalLineage:    uint64(id),
		Sex:                sex,
		Age:                25,
		MaxAge:             80,
		MaxChildren:        3,
		Fertility:          FertilityWindow{Start: 12, End: 45},
		PartnerEligibleAge: 18,
		Alive:              true,
	}
}
