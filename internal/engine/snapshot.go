package engine

import "context"

// Snapshot is the read-only summary handed to reporters.
type Snapshot struct {
	Year              int     `json:"year" db:"year"`
	Population        int     `json:"population" db:"population"`
	MeanAge           float64 `json:"mean_age" db:"mean_age"`
	Lineages          int     `json:"lineages" db:"lineages"`             // Distinct lineage tags alive
	LargestLineage    int     `json:"largest_lineage" db:"largest_lineage"` // Members of the most common tag
	NewPeople         uint64  `json:"new_people" db:"new_people"`         // Cumulative births
	Deaths            uint64  `json:"deaths" db:"deaths"`                 // Cumulative deaths
	PartneredFraction float64 `json:"partnered_fraction" db:"partnered_fraction"`

	// Since the previous report.
	NewPeopleDelta uint64  `json:"new_people_delta" db:"new_people_delta"`
	DeathsDelta    uint64  `json:"deaths_delta" db:"deaths_delta"`
	NetPerYear     float64 `json:"net_per_year" db:"net_per_year"`
	MeanDeathAge   float64 `json:"mean_death_age" db:"mean_death_age"`
	MaxDeathAge    int     `json:"max_death_age" db:"max_death_age"`

	Extinct bool `json:"extinct" db:"extinct"`
	Final   bool `json:"final" db:"final"`
}

// Reporter receives snapshots at each reporting tick. Implementations own
// all formatting and output; they cannot reach simulation state.
type Reporter interface {
	Report(ctx context.Context, snap Snapshot) error
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, snap Snapshot) error

// Report calls f.
func (f ReporterFunc) Report(ctx context.Context, snap Snapshot) error {
	return f(ctx, snap)
}

// Census is a point-in-time tally over the live population.
type Census struct {
	Population     int
	MeanAge        float64
	Lineages       int
	LargestLineage int
	Partnered      int
}

// Census tallies the live agents.
func (p *Population) Census() Census {
	c := Census{Population: len(p.agents)}
	if c.Population == 0 {
		return c
	}

	totalAge := 0
	lineages := make(map[uint64]int)
	for _, a := range p.agents {
		totalAge += a.Age
		lineages[a.Lineage]++
		if a.HasPartner() {
			c.Partnered++
		}
	}

	c.MeanAge = float64(totalAge) / float64(c.Population)
	c.Lineages = len(lineages)
	for _, n := range lineages {
		if n > c.LargestLineage {
			c.LargestLineage = n
		}
	}
	return c
}
