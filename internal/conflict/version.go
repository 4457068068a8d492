package conflict

import (
	"strconv"
	"strings"
)

// CompareVersions compares two dependency version strings, returning -1, 0,
// or 1. It understands dotted numeric segments, a pre-release suffix after
// "-" (which sorts below its release), and leading requirement specifiers
// ("==1.2.0", ">=1.2", "^1.2", "~1.2", "v1.2") which are stripped before
// comparison. Non-numeric segments fall back to lexicographic order.
func CompareVersions(a, b string) int {
	av, apre := splitVersion(a)
	bv, bpre := splitVersion(b)

	if c := compareSegments(av, bv); c != 0 {
		return c
	}

	// Same release: a pre-release sorts below none; two pre-releases
	// compare lexicographically.
	switch {
	case apre == bpre:
		return 0
	case apre == "":
		return 1
	case bpre == "":
		return -1
	case apre < bpre:
		return -1
	default:
		return 1
	}
}

// MaxVersion returns the highest of the given versions. Ties keep the first
// occurrence, so the result is stable under input reordering of equal values.
func MaxVersion(versions []string) string {
	if len(versions) == 0 {
		return ""
	}
	best := versions[0]
	for _, v := range versions[1:] {
		if CompareVersions(v, best) > 0 {
			best = v
		}
	}
	return best
}

// MajorsDiffer reports whether two versions disagree on their leading
// numeric segment.
func MajorsDiffer(a, b string) bool {
	av, _ := splitVersion(a)
	bv, _ := splitVersion(b)
	return segmentAt(av, 0) != segmentAt(bv, 0)
}

func splitVersion(v string) (segments []string, prerelease string) {
	v = strings.TrimSpace(v)
	for _, spec := range []string{"==", ">=", "<=", "~=", "^", "~", ">", "<", "=", "v"} {
		if strings.HasPrefix(v, spec) {
			v = strings.TrimSpace(strings.TrimPrefix(v, spec))
			break
		}
	}

	if idx := strings.IndexAny(v, "-+"); idx != -1 {
		prerelease = v[idx+1:]
		v = v[:idx]
	}

	if v == "" {
		return nil, prerelease
	}
	return strings.Split(v, "."), prerelease
}

func compareSegments(a, b []string) int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		as, bs := segmentAt(a, i), segmentAt(b, i)
		an, aNum := strconv.Atoi(as)
		bn, bNum := strconv.Atoi(bs)
		if aNum == nil && bNum == nil {
			if an != bn {
				if an < bn {
					return -1
				}
				return 1
			}
			continue
		}
		// Non-numeric segments: numeric sorts above non-numeric, otherwise
		// lexicographic.
		switch {
		case aNum == nil && bNum != nil:
			return 1
		case aNum != nil && bNum == nil:
			return -1
		case as != bs:
			if as < bs {
				return -1
			}
			return 1
		}
	}
	return 0
}

func segmentAt(segments []string, i int) string {
	if i < len(segments) {
		return segments[i]
	}
	return "0"
}
