package targets

import (
	"errors"
	"math/rand/v2"
	"net/netip"

	"mcsweep/internal/model"
)

// Candidate is a generated address awaiting a reachability test.
type Candidate struct {
	Addr netip.Addr
	Port uint16
}

// Address returns the dotted-quad form used as the dedup and storage key.
func (c Candidate) Address() string {
	return c.Addr.String()
}

// HostPort returns "a.b.c.d:port".
func (c Candidate) HostPort() string {
	return model.JoinHostPort(c.Address(), c.Port)
}

// ErrNoPrefixes is returned when a generator is built with an empty prefix list.
var ErrNoPrefixes = errors.New("targets: no prefixes")

// Generator produces pseudo-random candidates inside a fixed set of /16 prefixes.
// It is not safe for concurrent use: a single feeding goroutine owns it.
type Generator struct {
	prefixes []Prefix
	port     uint16
	rng      *rand.Rand
	exclude  *Exclusions
	skipped  uint64
}

// NewGenerator builds a generator. A zero seed draws a random one.
func NewGenerator(prefixes []Prefix, port uint16, seed int64) (*Generator, error) {
	if len(prefixes) == 0 {
		return nil, ErrNoPrefixes
	}
	var src rand.Source
	if seed == 0 {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	} else {
		src = rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15)
	}
	return &Generator{
		prefixes: append([]Prefix(nil), prefixes...),
		port:     port,
		rng:      rand.New(src),
	}, nil
}

// Exclude makes Next skip every address in ex. Prefixes with nothing left
// to emit are dropped; ErrAllExcluded is returned if none remain.
func (g *Generator) Exclude(ex *Exclusions) error {
	kept := g.prefixes[:0:0]
	for _, p := range g.prefixes {
		if ex.allows(p) {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return ErrAllExcluded
	}
	g.prefixes = kept
	g.exclude = ex
	return nil
}

// Prefixes returns the prefixes still in use.
func (g *Generator) Prefixes() []Prefix {
	return append([]Prefix(nil), g.prefixes...)
}

// Skipped is the number of draws discarded because they were excluded.
func (g *Generator) Skipped() uint64 { return g.skipped }

// Next picks a prefix uniformly and appends a third octet in [0,255] and a
// fourth in [1,254]. Excluded draws are discarded and redrawn.
func (g *Generator) Next() Candidate {
	for {
		p := g.prefixes[g.rng.IntN(len(g.prefixes))]
		c := byte(g.rng.IntN(256))
		d := byte(1 + g.rng.IntN(254))
		addr := netip.AddrFrom4([4]byte{p[0], p[1], c, d})
		if g.exclude.Contains(addr) {
			g.skipped++
			continue
		}
		return Candidate{Addr: addr, Port: g.port}
	}
}
