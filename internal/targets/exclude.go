package targets

import (
	"errors"
	"fmt"
	"net/netip"
	"sort"
	"strings"
)

// ErrAllExcluded is returned when exclusions leave no address to generate.
var ErrAllExcluded = errors.New("targets: every prefix is excluded")

type span struct{ start, end uint32 } // inclusive

// Exclusions is an immutable set of IPv4 ranges that must never be probed.
// Overlapping and adjacent ranges are merged at build time, so lookups are a
// binary search over disjoint spans.
type Exclusions struct {
	spans []span
}

// ParseExclusions accepts CIDRs ("10.0.0.0/8"), dash ranges
// ("1.2.3.4-1.2.3.90") and single addresses. Blank entries and "#" comments
// are skipped. IPv6 entries are rejected since only IPv4 is generated.
func ParseExclusions(list []string) (*Exclusions, error) {
	var spans []span
	for _, raw := range list {
		s := strings.TrimSpace(raw)
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		sp, err := parseSpan(s)
		if err != nil {
			return nil, err
		}
		spans = append(spans, sp)
	}
	return &Exclusions{spans: merge(spans)}, nil
}

func parseSpan(s string) (span, error) {
	switch {
	case strings.Contains(s, "/"):
		pfx, err := netip.ParsePrefix(s)
		if err != nil || !pfx.Addr().Is4() {
			return span{}, fmt.Errorf("invalid exclusion CIDR %q", s)
		}
		start := v4(pfx.Masked().Addr())
		return span{start, start | ^uint32(0)>>pfx.Bits()}, nil

	case strings.Contains(s, "-"):
		lo, hi, _ := strings.Cut(s, "-")
		a, err1 := netip.ParseAddr(strings.TrimSpace(lo))
		b, err2 := netip.ParseAddr(strings.TrimSpace(hi))
		if err1 != nil || err2 != nil || !a.Is4() || !b.Is4() || b.Less(a) {
			return span{}, fmt.Errorf("invalid exclusion range %q", s)
		}
		return span{v4(a), v4(b)}, nil

	default:
		a, err := netip.ParseAddr(s)
		if err != nil || !a.Is4() {
			return span{}, fmt.Errorf("invalid exclusion IP %q", s)
		}
		return span{v4(a), v4(a)}, nil
	}
}

func v4(a netip.Addr) uint32 {
	b := a.As4()
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func merge(spans []span) []span {
	if len(spans) < 2 {
		return spans
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	out := spans[:1]
	for _, sp := range spans[1:] {
		last := &out[len(out)-1]
		if last.end == ^uint32(0) || sp.start <= last.end+1 {
			if sp.end > last.end {
				last.end = sp.end
			}
			continue
		}
		out = append(out, sp)
	}
	return out
}

// Len is the number of disjoint ranges.
func (e *Exclusions) Len() int {
	if e == nil {
		return 0
	}
	return len(e.spans)
}

// Contains reports whether a is excluded. A nil set excludes nothing.
func (e *Exclusions) Contains(a netip.Addr) bool {
	if e == nil || !a.Is4() {
		return false
	}
	_, ok := e.find(v4(a))
	return ok
}

// find returns the span holding ip.
func (e *Exclusions) find(ip uint32) (span, bool) {
	i := sort.Search(len(e.spans), func(i int) bool { return e.spans[i].end >= ip })
	if i < len(e.spans) && e.spans[i].start <= ip {
		return e.spans[i], true
	}
	return span{}, false
}

// allows reports whether p still holds an address the generator can emit
// (fourth octet 1-254) outside every excluded span.
func (e *Exclusions) allows(p Prefix) bool {
	if e == nil {
		return true
	}
	lo := uint32(p[0])<<24 | uint32(p[1])<<16
	hi := lo | 0xffff
	for v := lo; ; v++ {
		if sp, ok := e.find(v); ok {
			if sp.end >= hi {
				return false
			}
			v = sp.end + 1
		}
		if d := v & 0xff; d != 0 && d != 255 {
			return true
		}
		if v == hi {
			return false
		}
	}
}
