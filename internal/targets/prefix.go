package targets

import (
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

// ErrBadPrefix is returned for prefixes that are not a "a.b" pair or a /16 CIDR.
var ErrBadPrefix = errors.New("targets: invalid prefix")

// Prefix is the fixed upper half of a generated IPv4 address.
type Prefix [2]byte

func (p Prefix) String() string {
	return fmt.Sprintf("%d.%d", p[0], p[1])
}

// ParsePrefix accepts "51.38", "51.38." or "51.38.0.0/16".
func ParsePrefix(s string) (Prefix, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		pfx, err := netip.ParsePrefix(s)
		if err != nil {
			return Prefix{}, fmt.Errorf("%w %q: %v", ErrBadPrefix, s, err)
		}
		if !pfx.Addr().Is4() || pfx.Bits() != 16 {
			return Prefix{}, fmt.Errorf("%w %q: only IPv4 /16 networks are supported", ErrBadPrefix, s)
		}
		a := pfx.Masked().Addr().As4()
		return Prefix{a[0], a[1]}, nil
	}

	parts := strings.Split(strings.TrimSuffix(s, "."), ".")
	if len(parts) != 2 {
		return Prefix{}, fmt.Errorf("%w %q: want two octets", ErrBadPrefix, s)
	}
	var p Prefix
	for i, part := range parts {
		n, err := strconv.ParseUint(part, 10, 8)
		if err != nil {
			return Prefix{}, fmt.Errorf("%w %q: octet %q", ErrBadPrefix, s, part)
		}
		p[i] = byte(n)
	}
	return p, nil
}

// ParsePrefixes parses every entry and fails on the first bad one.
func ParsePrefixes(list []string) ([]Prefix, error) {
	out := make([]Prefix, 0, len(list))
	for _, s := range list {
		p, err := ParsePrefix(s)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
