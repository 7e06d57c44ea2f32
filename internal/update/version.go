package update

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a dotted sequence of non-negative integers, e.g. "0.0.7".
type Version []int

// ParseVersion parses a dotted-numeric version string.
// Every segment must be a non-negative base-10 integer; "1.2", "0.0.7" and
// "10.0.0.3" are valid, "v1.2", "1.2-rc1" and "1..2" are not.
func ParseVersion(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, newError(KindParse, "parse version", fmt.Errorf("empty version string"))
	}

	parts := strings.Split(s, ".")
	v := make(Version, 0, len(parts))
	for _, part := range parts {
		if part == "" || strings.HasPrefix(part, "+") || strings.HasPrefix(part, "-") {
			return nil, newError(KindParse, "parse version", fmt.Errorf("invalid segment %q in %q", part, s))
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, newError(KindParse, "parse version", fmt.Errorf("invalid segment %q in %q", part, s))
		}
		v = append(v, n)
	}

	return v, nil
}

// String returns the dotted representation.
func (v Version) String() string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}

// Compare compares two versions, padding the shorter one with zeros.
// Returns:
//   - 1 if v > other
//   - 0 if v == other
//   - -1 if v < other
func (v Version) Compare(other Version) int {
	n := len(v)
	if len(other) > n {
		n = len(other)
	}

	for i := 0; i < n; i++ {
		a, b := v.segment(i), other.segment(i)
		if a > b {
			return 1
		}
		if a < b {
			return -1
		}
	}

	return 0
}

func (v Version) segment(i int) int {
	if i < len(v) {
		return v[i]
	}
	return 0
}

// IsGreaterThan returns true if v > other
func (v Version) IsGreaterThan(other Version) bool {
	return v.Compare(other) > 0
}

// CompareVersions compares two version strings
// Returns:
//   - 1 if a > b
//   - 0 if a == b
//   - -1 if a < b
//   - an error matching ErrParse if either version is malformed
func CompareVersions(a, b string) (int, error) {
	va, err := ParseVersion(a)
	if err != nil {
		return 0, err
	}

	vb, err := ParseVersion(b)
	if err != nil {
		return 0, err
	}

	return va.Compare(vb), nil
}

// IsNewer reports whether remote is strictly greater than current.
// A malformed version on either side is treated as "not newer" so that a bad
// manifest can never trigger an update loop.
func IsNewer(remote, current string) bool {
	cmp, err := CompareVersions(remote, current)
	if err != nil {
		return false
	}
	return cmp > 0
}
