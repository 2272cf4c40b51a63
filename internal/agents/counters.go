package agents

import "sync/atomic"

// Counters holds the simulation-lifetime monotonic counters. One Counters
// value belongs to one population; it is never package-level state.
type Counters struct {
	lineage atomic.Uint64
	ids     atomic.Uint64
	deaths  atomic.Uint64
}

// NextLineage allocates a fresh lineage tag. Tags start at 1.
func (c *Counters) NextLineage() uint64 {
	return c.lineage.Add(1)
}

// NextID allocates a fresh agent id. Ids start at 1.
func (c *Counters) NextID() AgentID {
	return AgentID(c.ids.Add(1))
}

// RecordDeath increments the death counter.
func (c *Counters) RecordDeath() {
	c.deaths.Add(1)
}

// Deaths is the cumulative number of deaths.
func (c *Counters) Deaths() uint64 {
	return c.deaths.Load()
}

// LineagesIssued is the number of lineage tags allocated so far.
func (c *Counters) LineagesIssued() uint64 {
	return c.lineage.Load()
}
