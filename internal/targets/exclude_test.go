package targets

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExclusions(t *testing.T) {
	ex, err := ParseExclusions([]string{
		"192.168.1.10-192.168.1.200",
		"10.0.0.0/8",
		" 8.8.8.8 ",
		"# comment",
		"",
		"10.20.0.0/16", // inside 10/8, merged away
	})
	require.NoError(t, err)
	assert.Equal(t, 3, ex.Len())

	tests := []struct {
		ip   string
		want bool
	}{
		{"192.168.1.9", false},
		{"192.168.1.10", true},
		{"192.168.1.200", true},
		{"192.168.1.201", false},
		{"10.255.255.255", true},
		{"11.0.0.0", false},
		{"8.8.8.8", true},
		{"8.8.8.9", false},
		{"2001:db8::1", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ex.Contains(netip.MustParseAddr(tt.ip)), tt.ip)
	}
}

func TestParseExclusions_Invalid(t *testing.T) {
	for _, bad := range []string{"10.0.0.0/33", "2001:db8::/32", "1.2.3.9-1.2.3.1", "1.2.3", "::1"} {
		_, err := ParseExclusions([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestExclusions_MergesAdjacent(t *testing.T) {
	ex, err := ParseExclusions([]string{"1.0.0.0-1.0.0.9", "1.0.0.10-1.0.0.20", "255.255.255.255"})
	require.NoError(t, err)
	assert.Equal(t, 2, ex.Len())

	var nilSet *Exclusions
	assert.False(t, nilSet.Contains(netip.MustParseAddr("1.0.0.1")))
	assert.Zero(t, nilSet.Len())
}

func TestGenerator_SkipsExcluded(t *testing.T) {
	g, err := NewGenerator([]Prefix{{51, 38}}, 25565, 5)
	require.NoError(t, err)

	// Leave only 51.38.7.0/24 open.
	ex, err := ParseExclusions([]string{"51.38.0.0-51.38.6.255", "51.38.8.0-51.38.255.255"})
	require.NoError(t, err)
	require.NoError(t, g.Exclude(ex))

	for i := 0; i < 200; i++ {
		a := g.Next().Addr.As4()
		require.Equal(t, byte(7), a[2])
	}
	assert.Positive(t, g.Skipped())
}

func TestGenerator_DropsFullyExcludedPrefix(t *testing.T) {
	g, err := NewGenerator([]Prefix{{10, 1}, {51, 38}}, 25565, 5)
	require.NoError(t, err)

	ex, err := ParseExclusions([]string{"10.0.0.0/8"})
	require.NoError(t, err)
	require.NoError(t, g.Exclude(ex))
	assert.Equal(t, []Prefix{{51, 38}}, g.Prefixes())

	all, err := ParseExclusions([]string{"0.0.0.0/0"})
	require.NoError(t, err)
	assert.ErrorIs(t, g.Exclude(all), ErrAllExcluded)
}

func TestGenerator_OnlyUnusableOctetsLeft(t *testing.T) {
	g, err := NewGenerator([]Prefix{{51, 38}}, 25565, 5)
	require.NoError(t, err)

	// Everything but 51.38.3.0 and 51.38.3.255, which are never generated.
	ex, err := ParseExclusions([]string{"51.38.0.0-51.38.2.255", "51.38.3.1-51.38.3.254", "51.38.4.0-51.38.255.255"})
	require.NoError(t, err)
	assert.ErrorIs(t, g.Exclude(ex), ErrAllExcluded)
}
