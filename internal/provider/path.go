package provider

import "strings"

// Wildcard matches exactly one path segment.
const Wildcard = "*"

// splitPath normalizes p into its non-empty segments.
func splitPath(p string) []string {
	raw := strings.Split(p, "/")
	segs := raw[:0]
	for _, s := range raw {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// NormalizePath returns p with a single leading slash and no empty segments.
func NormalizePath(p string) string {
	return "/" + strings.Join(splitPath(p), "/")
}

// JoinPath builds a normalized path from segments.
func JoinPath(segments ...string) string {
	return NormalizePath(strings.Join(segments, "/"))
}

type pattern []string

func (p pattern) String() string {
	return "/" + strings.Join(p, "/")
}

// match returns the segments captured by wildcards.
func (p pattern) match(segs []string) ([]string, bool) {
	if len(p) != len(segs) {
		return nil, false
	}
	var params []string
	for i, want := range p {
		if want == Wildcard {
			params = append(params, segs[i])
			continue
		}
		if want != segs[i] {
			return nil, false
		}
	}
	return params, true
}

// overlaps reports whether some path could match both patterns.
func (p pattern) overlaps(o pattern) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] && p[i] != Wildcard && o[i] != Wildcard {
			return false
		}
	}
	return true
}
