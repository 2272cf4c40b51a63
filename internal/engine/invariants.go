package engine

import (
	"errors"
	"fmt"

	"github.com/talgya/surnamesim/internal/agents"
)

// ErrInvariant marks a broken population invariant. It signals a defect in
// the simulation, never a condition to recover from.
var ErrInvariant = errors.New("population invariant violated")

// CheckInvariants verifies the population at a phase boundary: every member
// alive with a sane age and child count, unique ids, mutual opposite-sex
// partner links, and lineage tags within the allocator's range.
func (p *Population) CheckInvariants() error {
	if len(p.index) != len(p.agents) {
		return fmt.Errorf("%w: index has %d entries for %d agents", ErrInvariant, len(p.index), len(p.agents))
	}

	issued := p.counters.LineagesIssued()
	for i, a := range p.agents {
		if !a.Alive {
			return fmt.Errorf("%w: agent %d is dead but still a member", ErrInvariant, a.ID)
		}
		if j, ok := p.index[a.ID]; !ok || j != i {
			return fmt.Errorf("%w: agent %d is not indexed at %d", ErrInvariant, a.ID, i)
		}
		if a.Age < 0 || a.Age >= a.MaxAge {
			return fmt.Errorf("%w: agent %d has age %d with max age %d", ErrInvariant, a.ID, a.Age, a.MaxAge)
		}
		if a.PartnerEligibleAge > a.MaxAge {
			return fmt.Errorf("%w: agent %d partner-eligible at %d past max age %d", ErrInvariant, a.ID, a.PartnerEligibleAge, a.MaxAge)
		}
		if a.Children > a.MaxChildren {
			return fmt.Errorf("%w: agent %d has %d children over cap %d", ErrInvariant, a.ID, a.Children, a.MaxChildren)
		}
		if a.OriginalLineage == 0 || a.OriginalLineage > issued {
			return fmt.Errorf("%w: agent %d has lineage %d outside [1, %d]", ErrInvariant, a.ID, a.OriginalLineage, issued)
		}
		if err := p.checkPartner(a); err != nil {
			return err
		}
	}
	return nil
}

func (p *Population) checkPartner(a *agents.Agent) error {
	if !a.HasPartner() {
		return nil
	}
	if !a.HasHadPartner {
		return fmt.Errorf("%w: agent %d has a partner but no partner history", ErrInvariant, a.ID)
	}
	b := p.Get(a.Partner)
	if b == nil {
		return fmt.Errorf("%w: agent %d points at missing partner %d", ErrInvariant, a.ID, a.Partner)
	}
	if b.Partner != a.ID {
		return fmt.Errorf("%w: agent %d partners %d but %d partners %d", ErrInvariant, a.ID, b.ID, b.ID, b.Partner)
	}
	if a.Sex == b.Sex {
		return fmt.Errorf("%w: agents %d and %d are partnered with the same sex", ErrInvariant, a.ID, b.ID)
	}
	return nil
}
