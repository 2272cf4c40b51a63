// Lifecycle rules: aging and mortality, partnering, conception and birth.
// Every rule reads or writes only the receiver's fields plus a partner the
// caller has already resolved; linking and unlinking partners across agents
// is the population's job.
package agents

import "github.com/talgya/surnamesim/internal/variate"

// AgeOneYear advances the agent by a year and reports whether it died.
// Reaching MaxAge is always fatal; before that the agent dies when its
// normalized age exceeds the next mortality hazard threshold.
func (a *Agent) AgeOneYear(rng *variate.Stream, c *Counters) bool {
	a.Age++

	if a.Age >= a.MaxAge {
		a.die(c)
		return true
	}

	normalizedAge := float64(a.Age) / float64(a.MaxAge)
	if normalizedAge > rng.MortalityHazard() {
		a.die(c)
		return true
	}
	return false
}

func (a *Agent) die(c *Counters) {
	a.Alive = false
	c.RecordDeath()
}

// IsPartnerEligible reports whether the agent may partner this year.
func (a *Agent) IsPartnerEligible() bool {
	return !a.HasPartner() && a.Age >= a.PartnerEligibleAge && !a.HasHadPartner
}

// GainPartner links the agent to other if the agent is eligible. Females
// take the partner's lineage tag. Callers check both sides first and call
// it on both agents.
func (a *Agent) GainPartner(other *Agent) {
	if !a.IsPartnerEligible() {
		return
	}
	if a.Sex == SexFemale {
		a.Lineage = other.Lineage
	}
	a.Partner = other.ID
	a.HasHadPartner = true
}

// LosePartner empties the partner slot. HasHadPartner stays set.
func (a *Agent) LosePartner() {
	a.Partner = NoAgent
}

// IsChildEligible reports whether the agent can conceive this year with
// partner, the resolved partner (nil when absent or dead).
func (a *Agent) IsChildEligible(partner *Agent) bool {
	return a.Sex == SexFemale &&
		a.HasPartner() && partner != nil && partner.Alive && partner.ID == a.Partner &&
		!a.PendingConception &&
		a.Children < a.MaxChildren &&
		a.Fertility.Contains(a.Age) &&
		partner.Fertility.Contains(partner.Age)
}

// AttemptConception sets PendingConception when the agent is eligible and
// passes a check against both partners' fertility difficulty.
func (a *Agent) AttemptConception(partner *Agent, rng *variate.Stream) bool {
	if !a.IsChildEligible(partner) {
		return false
	}
	chance := 1.0 - a.FertilityDifficulty*partner.FertilityDifficulty
	if chance > rng.Float(0, 1) {
		a.PendingConception = true
		return true
	}
	return false
}

// AttemptBirth resolves a pending conception. The flag is cleared either
// way; a child is returned when (1 - difficulty) * modifier beats a uniform
// draw. partner may be nil when the father died this year.
func (a *Agent) AttemptBirth(year int, modifier float64, partner *Agent, rng *variate.Stream, sp *Spawner) *Agent {
	if !a.PendingConception {
		return nil
	}
	a.PendingConception = false

	chance := (1.0 - a.FertilityDifficulty) * modifier
	if chance <= rng.Float(0, 1) {
		return nil
	}
	if a.Children >= a.MaxChildren {
		return nil
	}

	a.Children++
	return sp.SpawnChild(rng, year, a, partner)
}
