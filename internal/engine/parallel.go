package engine

import (
	"golang.org/x/sync/errgroup"

	"github.com/talgya/surnamesim/internal/variate"
)

// chunkSize is fixed so chunk boundaries, and therefore the stream each
// agent draws from, do not depend on the worker count.
const chunkSize = 1024

// chunk is a contiguous span of the agent arena handed to one worker.
type chunk struct {
	n      int // chunk ordinal, for per-chunk result slots
	lo, hi int
	rng    *variate.Stream
}

// forEachChunk splits [0, n) into fixed chunks, creates each chunk's Stream
// in order on the calling goroutine, then runs fn across up to p.workers
// goroutines. With hazards set, each stream gets a hazard window sized to
// its chunk, reserved in chunk order. Every chunk runs; a phase is never
// left half applied.
func (p *Population) forEachChunk(n int, hazards bool, fn func(c chunk) error) error {
	chunks := make([]chunk, 0, numChunks(n))
	for lo := 0; lo < n; lo += chunkSize {
		hi := min(lo+chunkSize, n)
		rng := p.variates.NewStream()
		if hazards {
			rng.BindHazards(p.variates.ReserveHazards(hi - lo))
		}
		chunks = append(chunks, chunk{n: len(chunks), lo: lo, hi: hi, rng: rng})
	}

	var g errgroup.Group
	g.SetLimit(p.workers)
	for _, c := range chunks {
		g.Go(func() error {
			return fn(c)
		})
	}
	return g.Wait()
}

// numChunks is the number of chunks forEachChunk creates for n items.
func numChunks(n int) int {
	return (n + chunkSize - 1) / chunkSize
}
