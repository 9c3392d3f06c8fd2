package config

import (
	"sort"
	"strings"

	"golang.org/x/mod/semver"
)

// migration adjusts flags when the network upgrades to its version.
type migration struct {
	version string
	apply   func(Flags) Flags
}

var migrations = []migration{
	{version: "1.1.3", apply: func(f Flags) Flags {
		f.FixExtraStakeLessThanMin = true
		f.AllowForceUnstake = true
		f.TxHashingFix = true
		return f
	}},
}

// Migrate applies, in version order, every migration whose version is at or
// below target. Versions are semver triples with an optional "v" prefix; an
// unparseable target applies nothing.
func Migrate(flags Flags, target string) Flags {
	want, ok := canonicalVersion(target)
	if !ok {
		return flags
	}
	ordered := append([]migration(nil), migrations...)
	sort.Slice(ordered, func(i, j int) bool {
		a, _ := canonicalVersion(ordered[i].version)
		b, _ := canonicalVersion(ordered[j].version)
		return semver.Compare(a, b) < 0
	})
	for _, m := range ordered {
		v, ok := canonicalVersion(m.version)
		if !ok || semver.Compare(v, want) > 0 {
			continue
		}
		flags = m.apply(flags)
	}
	return flags
}

func canonicalVersion(raw string) (string, bool) {
	v := strings.TrimSpace(raw)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return "", false
	}
	return semver.Canonical(v), true
}
