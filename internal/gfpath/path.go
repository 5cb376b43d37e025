// Package gfpath implements the POSIX-style path value used throughout
// GradeFast. These paths are virtual: only the Host converts them to and
// from native OS paths, so the rest of the system can treat "~/grading" or
// "C:/grading" uniformly regardless of platform.
package gfpath

import "strings"

// Path is an immutable POSIX-syntax path. The zero value is the empty path.
type Path struct {
	p string
}

// New creates a Path from a raw POSIX-style string.
func New(p string) Path {
	return Path{p: p}
}

// String returns the path in GradeFast (POSIX) form.
func (p Path) String() string {
	return p.p
}

// IsZero reports whether the path is empty.
func (p Path) IsZero() bool {
	return p.p == ""
}

// Append joins subpart onto the path. Empty and "." components of subpart
// are dropped; ".." pops a component, but never the first component of the
// path nor its immediate child, so a leading "~", "" (absolute root), or
// drive specifier stays anchored. A ".." that cannot pop is dropped, which
// means an append can never escape those anchor components.
func (p Path) Append(subpart string) Path {
	parts := strings.Split(p.p, "/")
	for _, comp := range strings.Split(subpart, "/") {
		switch comp {
		case "", ".":
			// skip
		case "..":
			if len(parts) >= 3 {
				parts = parts[:len(parts)-1]
			}
		default:
			parts = append(parts, comp)
		}
	}
	return Path{p: strings.Join(parts, "/")}
}

// Basename returns the last "/"-delimited segment of the path.
func (p Path) Basename() string {
	if i := strings.LastIndex(p.p, "/"); i >= 0 {
		return p.p[i+1:]
	}
	return p.p
}

// RelativeStr returns the portion of p below base. The second return is
// false when p is not strictly inside base: not prefixed by it, equal to
// it, or only reachable by walking up through "..".
func (p Path) RelativeStr(base Path) (string, bool) {
	if !strings.HasPrefix(p.p, base.p) {
		return "", false
	}
	rel := strings.TrimPrefix(p.p, base.p)
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return rel, true
}
