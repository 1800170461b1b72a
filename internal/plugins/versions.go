package plugins

import (
	"log/slog"
	"slices"

	"github.com/Masterminds/semver/v3"
)

// CompareVersions orders two version strings semantically. Unparseable
// versions sort before parseable ones and fall back to string order among
// themselves.
func CompareVersions(a, b string) int {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	switch {
	case errA != nil && errB != nil:
		if a < b {
			return -1
		} else if a > b {
			return 1
		}
		return 0
	case errA != nil:
		return -1
	case errB != nil:
		return 1
	}
	return va.Compare(vb)
}

// SortNewestFirst sorts plugin versions by descending semantic version.
func SortNewestFirst(available []AvailablePlugin) {
	slices.SortStableFunc(available, func(a, b AvailablePlugin) int {
		return CompareVersions(b.Version, a.Version)
	})
}

// Latest keeps only the highest version of each identity, preserving the
// order in which identities were first seen.
func Latest(available []AvailablePlugin) []AvailablePlugin {
	index := make(map[string]int, len(available))
	result := make([]AvailablePlugin, 0, len(available))

	for _, p := range available {
		key := p.Identity.Key()
		i, seen := index[key]
		if !seen {
			index[key] = len(result)
			result = append(result, p)
			continue
		}
		if CompareVersions(p.Version, result[i].Version) > 0 {
			result[i] = p
		}
	}

	if dropped := len(available) - len(result); dropped > 0 {
		slog.Debug("Reduced plugin versions to latest", "kept", len(result), "dropped", dropped)
	}
	return result
}

// VersionsOf filters available down to the versions of identity, newest first.
func VersionsOf(available []AvailablePlugin, identity Identity) []AvailablePlugin {
	key := identity.Key()
	var result []AvailablePlugin
	for _, p := range available {
		if p.Identity.Key() == key {
			result = append(result, p)
		}
	}
	SortNewestFirst(result)
	return result
}
