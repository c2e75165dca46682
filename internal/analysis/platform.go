package analysis

import "strings"

// Vanilla is the tag for a version string that names no known platform.
const Vanilla = "vanilla"

// platformMarkers are checked in order; the first one contained in the
// lower-cased version string wins.
var platformMarkers = []string{"forge", "fabric", "quilt", "liteloader", "spigot", "paper", "bukkit"}

// PlatformTag infers the server platform from its advertised version.
func PlatformTag(version string) string {
	v := strings.ToLower(version)
	for _, m := range platformMarkers {
		if strings.Contains(v, m) {
			return m
		}
	}
	return Vanilla
}
