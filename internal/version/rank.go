package version

import (
	"regexp"
	"sort"
	"strconv"

	"github.com/Masterminds/semver/v3"
)

// BranchNames are injected into every resolved version list because many
// components are referenced by branch rather than tag.
var BranchNames = []string{"main", "master"}

// semverPattern matches an optionally v-prefixed numeric triple. Anything
// after the patch number (prerelease, metadata, arbitrary text) is ignored
// for ranking.
var semverPattern = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)`)

const (
	classOther = iota
	classSemver
	classMaster
	classMain
)

type rankedVersion struct {
	raw    string
	class  int
	semver *semver.Version
}

func classify(raw string) rankedVersion {
	switch raw {
	case "main":
		return rankedVersion{raw: raw, class: classMain}
	case "master":
		return rankedVersion{raw: raw, class: classMaster}
	}
	m := semverPattern.FindStringSubmatch(raw)
	if m == nil {
		return rankedVersion{raw: raw, class: classOther}
	}
	// The triple stays three distinct components; collapsing it into one
	// magnitude number would mis-order v2.10.0 against v10.0.0.
	major, _ := strconv.ParseUint(m[1], 10, 64)
	minor, _ := strconv.ParseUint(m[2], 10, 64)
	patch, _ := strconv.ParseUint(m[3], 10, 64)
	return rankedVersion{raw: raw, class: classSemver, semver: semver.New(major, minor, patch, "", "")}
}

// Rank sorts version strings into descending priority order: "main", then
// "master", then semantic tags newest first, then everything else in its
// original relative order. The sort is stable, so equal-priority entries keep
// their input order.
func Rank(versions []string) []string {
	ranked := make([]rankedVersion, len(versions))
	for i, v := range versions {
		ranked[i] = classify(v)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.class != b.class {
			return a.class > b.class
		}
		if a.class == classSemver {
			return a.semver.GreaterThan(b.semver)
		}
		return false
	})

	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.raw
	}
	return out
}

// WithBranches returns versions with "main" and "master" injected when
// absent, then ranked.
func WithBranches(versions []string) []string {
	seen := make(map[string]bool, len(versions))
	for _, v := range versions {
		seen[v] = true
	}
	merged := make([]string, 0, len(versions)+len(BranchNames))
	merged = append(merged, versions...)
	for _, b := range BranchNames {
		if !seen[b] {
			merged = append(merged, b)
		}
	}
	return Rank(merged)
}
