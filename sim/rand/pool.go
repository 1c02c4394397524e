package rand

import "fmt"

// A Pool holds one Source per execution context. Sources never share state,
// so each context's stream is reproducible on its own.
type Pool struct {
	sources []*Source
}

// NewPool creates n sources seeded from entropy.
func NewPool(n int) *Pool {
	if n <= 0 {
		panic(fmt.Sprintf("rand: pool size must be positive, got %d", n))
	}

	p := &Pool{sources: make([]*Source, n)}
	for i := range p.sources {
		p.sources[i] = NewSource()
	}

	return p
}

// Len returns the number of sources.
func (p *Pool) Len() int {
	return len(p.sources)
}

// Get returns the source of context i.
func (p *Pool) Get(i int) *Source {
	return p.sources[i]
}

// SeedAll seeds context i with seed+i.
func (p *Pool) SeedAll(seed uint32) {
	for i, s := range p.sources {
		s.SeedWith(seed + uint32(i))
	}
}

// SeedFromEntropy reseeds every source from entropy.
func (p *Pool) SeedFromEntropy() {
	for _, s := range p.sources {
		s.Seed()
	}
}
