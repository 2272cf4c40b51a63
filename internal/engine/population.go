// Package engine runs the yearly aging, partnering, birth and conception
// phases over the arena of live agents.
package engine

import (
	"context"
	"fmt"
	"runtime"

	"github.com/talgya/surnamesim/internal/agents"
	"github.com/talgya/surnamesim/internal/variate"
)

// Population owns the live agents and the counters shared by them.
//
// Membership (insertions, removals, partner links) changes only on the
// goroutine calling Step. Worker goroutines inside a phase touch the fields
// of the agent they evaluate and read partners that the phase does not
// mutate.
type Population struct {
	agents []*agents.Agent
	index  map[agents.AgentID]int

	counters *agents.Counters
	spawner  *agents.Spawner
	variates *variate.Engine
	rng      *variate.Stream // coordinator stream: shuffles and pairing counts

	modifier float64
	workers  int
}

// PopulationOptions configures a Population.
type PopulationOptions struct {
	FertilityModifier float64
	AgePolicy         agents.AgePolicy
	Workers           int // <= 0 means GOMAXPROCS
}

// YearResult summarizes one Step.
type YearResult struct {
	Year        int   `json:"year"`
	Deaths      int   `json:"deaths"`
	Pairings    int   `json:"pairings"`
	Births      int   `json:"births"`
	Conceptions int   `json:"conceptions"`
	DeathAges   []int `json:"death_ages,omitempty"`
}

// NewPopulation creates an empty population drawing from eng.
func NewPopulation(eng *variate.Engine, opts PopulationOptions) *Population {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	counters := &agents.Counters{}
	return &Population{
		index:    make(map[agents.AgentID]int),
		counters: counters,
		spawner:  agents.NewSpawner(counters, opts.AgePolicy),
		variates: eng,
		rng:      eng.NewStream(),
		modifier: opts.FertilityModifier,
		workers:  workers,
	}
}

// Populate adds count root agents born relative to year.
func (p *Population) Populate(count int, year int) {
	for _, a := range p.spawner.SpawnPopulation(p.rng, count, year) {
		p.Add(a)
	}
}

// Add assigns a to a fresh id and inserts it.
func (p *Population) Add(a *agents.Agent) {
	a.ID = p.counters.NextID()
	p.index[a.ID] = len(p.agents)
	p.agents = append(p.agents, a)
}

// Len is the number of live agents.
func (p *Population) Len() int {
	return len(p.agents)
}

// Agents returns the live agents. The slice is shared; callers must not
// mutate it or the agents while a Step is running.
func (p *Population) Agents() []*agents.Agent {
	return p.agents
}

// Get resolves id to a live agent, or nil.
func (p *Population) Get(id agents.AgentID) *agents.Agent {
	if id == agents.NoAgent {
		return nil
	}
	i, ok := p.index[id]
	if !ok {
		return nil
	}
	a := p.agents[i]
	if !a.Alive {
		return nil
	}
	return a
}

// Counters exposes the lineage, id and death counters.
func (p *Population) Counters() *agents.Counters {
	return p.counters
}

// Spawner returns the agent spawner.
func (p *Population) Spawner() *agents.Spawner {
	return p.spawner
}

// Step runs one simulated year: aging, partnering, births, conception, in
// that order. Each phase's mutations are applied before the next begins.
// ctx is checked once, before the year starts; a started year always runs
// to completion so the population is never left between phases.
func (p *Population) Step(ctx context.Context, year int) (YearResult, error) {
	res := YearResult{Year: year}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	deathAges, err := p.agePhase()
	if err != nil {
		return res, fmt.Errorf("aging phase: %w", err)
	}
	res.Deaths = len(deathAges)
	res.DeathAges = deathAges

	pairings, err := p.partnerPhase()
	if err != nil {
		return res, fmt.Errorf("partnering phase: %w", err)
	}
	res.Pairings = pairings

	births, err := p.birthPhase(year)
	if err != nil {
		return res, fmt.Errorf("birth phase: %w", err)
	}
	res.Births = births

	conceptions, err := p.conceptionPhase()
	if err != nil {
		return res, fmt.Errorf("conception phase: %w", err)
	}
	res.Conceptions = conceptions

	return res, nil
}

// agePhase ages every agent in parallel, then unlinks the partners of the
// dead and removes them. Returns the final ages of the dead.
func (p *Population) agePhase() ([]int, error) {
	died := make([]bool, len(p.agents))
	err := p.forEachChunk(len(p.agents), true, func(c chunk) error {
		for i := c.lo; i < c.hi; i++ {
			died[i] = p.agents[i].AgeOneYear(c.rng, p.counters)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var deathAges []int
	for i, d := range died {
		if !d {
			continue
		}
		a := p.agents[i]
		deathAges = append(deathAges, a.Age)
		if a.HasPartner() {
			if j, ok := p.index[a.Partner]; ok && p.agents[j].Partner == a.ID {
				p.agents[j].LosePartner()
			}
			a.LosePartner()
		}
	}
	if len(deathAges) > 0 {
		p.compact()
	}
	return deathAges, nil
}

// compact drops dead agents and rebuilds the id index.
func (p *Population) compact() {
	live := p.agents[:0]
	for _, a := range p.agents {
		if a.Alive {
			live = append(live, a)
		}
	}
	clear(p.agents[len(live):])
	p.agents = live

	clear(p.index)
	for i, a := range p.agents {
		p.index[a.ID] = i
	}
}

// partnerPhase pairs a random number of eligible males and females. Both
// sides are shuffled independently; the first k of each are paired by
// position, where k is uniform in [0, min(males, females)].
func (p *Population) partnerPhase() (int, error) {
	type eligible struct{ males, females []int }
	slots := make([]eligible, numChunks(len(p.agents)))

	err := p.forEachChunk(len(p.agents), false, func(c chunk) error {
		var e eligible
		for i := c.lo; i < c.hi; i++ {
			a := p.agents[i]
			if !a.IsPartnerEligible() {
				continue
			}
			if a.Sex == agents.SexFemale {
				e.females = append(e.females, i)
			} else {
				e.males = append(e.males, i)
			}
		}
		slots[c.n] = e
		return nil
	})
	if err != nil {
		return 0, err
	}

	var males, females []int
	for _, e := range slots {
		males = append(males, e.males...)
		females = append(females, e.females...)
	}

	p.rng.Shuffle(len(males), func(i, j int) { males[i], males[j] = males[j], males[i] })
	p.rng.Shuffle(len(females), func(i, j int) { females[i], females[j] = females[j], females[i] })

	n := min(len(males), len(females))
	if n == 0 {
		return 0, nil
	}
	k := p.rng.Int(0, n+1)
	for i := 0; i < k; i++ {
		m, f := p.agents[males[i]], p.agents[females[i]]
		m.GainPartner(f)
		f.GainPartner(m)
	}
	return k, nil
}

// birthPhase resolves pending conceptions and inserts the children in a
// fixed order.
func (p *Population) birthPhase(year int) (int, error) {
	children := make([][]*agents.Agent, numChunks(len(p.agents)))

	err := p.forEachChunk(len(p.agents), false, func(c chunk) error {
		for i := c.lo; i < c.hi; i++ {
			a := p.agents[i]
			if !a.PendingConception {
				continue
			}
			if child := a.AttemptBirth(year, p.modifier, p.Get(a.Partner), c.rng, p.spawner); child != nil {
				children[c.n] = append(children[c.n], child)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	births := 0
	for _, batch := range children {
		for _, child := range batch {
			p.Add(child)
			births++
		}
	}
	return births, nil
}

// conceptionPhase lets every eligible agent try to conceive for next year.
func (p *Population) conceptionPhase() (int, error) {
	counts := make([]int, numChunks(len(p.agents)))

	err := p.forEachChunk(len(p.agents), false, func(c chunk) error {
		for i := c.lo; i < c.hi; i++ {
			a := p.agents[i]
			if a.Sex != agents.SexFemale {
				continue
			}
			if a.AttemptConception(p.Get(a.Partner), c.rng) {
				counts[c.n]++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	return total, nil
}
