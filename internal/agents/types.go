// Package agents provides the individual data model, its construction, and
// the per-agent lifecycle rules (aging, partnering, conception, birth).
package agents

import "fmt"

// AgentID is a stable identifier for an agent. Zero means "no agent".
type AgentID uint64

// NoAgent is the zero AgentID, used for an empty partner slot.
const NoAgent AgentID = 0

// Sex represents biological sex for demographic simulation. Only females
// bear children; males pass their lineage tag to children.
type Sex uint8

const (
	SexMale   Sex = 0
	SexFemale Sex = 1
)

func (s Sex) String() string {
	if s == SexFemale {
		return "Female"
	}
	return "Male"
}

// FertilityWindow is the inclusive age range in which an agent can conceive.
type FertilityWindow struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether age falls inside the window.
func (w FertilityWindow) Contains(age int) bool {
	return w.Start <= age && age <= w.End
}

// Agent is one simulated person.
type Agent struct {
	ID AgentID `json:"id"`

	// Lineage
	Lineage         uint64 `json:"lineage"`          // Surname tag; overwritten for females on partnering
	OriginalLineage uint64 `json:"original_lineage"` // Tag at creation

	// Demographics
	Sex       Sex `json:"sex"`
	BirthYear int `json:"birth_year"`
	Age       int `json:"age"`
	MaxAge    int `json:"max_age"` // Sampled once from the death-age table

	// Fertility
	MaxChildren         int             `json:"max_children"`
	Children            int             `json:"children"`
	Fertility           FertilityWindow `json:"fertility"`
	FertilityDifficulty float64         `json:"fertility_difficulty"` // 0.0–1.0, higher is harder
	PendingConception   bool            `json:"pending_conception"`

	// Partnering
	PartnerEligibleAge int     `json:"partner_eligible_age"`
	Partner            AgentID `json:"partner,omitempty"`
	HasHadPartner      bool    `json:"has_had_partner"` // Never resets; widows do not re-partner

	Alive bool `json:"alive"`
}

// HasPartner reports whether the partner slot is filled.
func (a *Agent) HasPartner() bool {
	return a.Partner != NoAgent
}

func (a *Agent) String() string {
	return fmt.Sprintf("Agent(Sex: %6s, Lineage: %5d, Age: %2d, MaxAge: %3d, Children: %d/%d, Partner: %5t, PartnerEligibleAge: %3d)",
		a.Sex, a.Lineage, a.Age, a.MaxAge, a.Children, a.MaxChildren, a.HasPartner(), a.PartnerEligibleAge)
}
