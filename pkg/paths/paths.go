// Package paths implements the path conventions used throughout the library:
// segments joined by '/', no leading or trailing slash, and the root folder
// represented by the empty string. These are virtual library paths, not OS
// paths, so path/filepath is deliberately not used here.
package paths

import (
	"sort"
	"strings"
)

// IsAncestor reports whether b is a or lives under a.
// Note the root "" is not an ancestor of anything under this relation;
// callers that mean "everything" must test for the root themselves.
func IsAncestor(a, b string) bool {
	return b == a || strings.HasPrefix(b, a+"/")
}

// Rewrite replaces the oldPrefix segment of path with newPrefix when path is
// oldPrefix or lives under it, keeping the remainder verbatim. Any other path
// is returned unchanged. Applied after every successful rename/move/merge to
// the current folder, the current file, the expansion set, the selection sets
// and the subtree-cache keys.
func Rewrite(path, oldPrefix, newPrefix string) string {
	if !IsAncestor(oldPrefix, path) {
		return path
	}
	if path == oldPrefix {
		return newPrefix
	}
	return newPrefix + path[len(oldPrefix):]
}

// Join appends a child name to a parent path.
func Join(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

// Parent returns the parent path, or "" for a top-level entry.
func Parent(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return ""
	}
	return path[:i]
}

// Base returns the final segment of the path.
func Base(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return path
	}
	return path[i+1:]
}

// Depth returns the number of segments; the root is depth 0.
func Depth(path string) int {
	if path == "" {
		return 0
	}
	return strings.Count(path, "/") + 1
}

// Ancestors returns the proper ancestors of path from shallowest to deepest,
// excluding the root. Ancestors("a/b/c") is ["a", "a/b"].
func Ancestors(path string) []string {
	var out []string
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			out = append(out, path[:i])
		}
	}
	return out
}

// Roots returns the subset of list whose elements have no ancestor also in
// list, preserving order. Operating on the roots only is enough for
// recursive operations: a deleted or moved ancestor carries its descendants
// with it.
func Roots(list []string) []string {
	out := make([]string, 0, len(list))
	for _, p := range list {
		covered := false
		for _, q := range list {
			if q != p && IsAncestor(q, p) {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, p)
		}
	}
	return out
}

// Closure returns each given path together with all of its ancestors, without
// duplicates, ordered by increasing depth (ties broken lexicographically).
// This is the set of folders whose children must be fetched, shallow first,
// for every given path to be expandable again after a reload.
func Closure(targets []string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(p string) {
		if p == "" {
			return
		}
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	for _, t := range targets {
		for _, a := range Ancestors(t) {
			add(a)
		}
		add(t)
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := Depth(out[i]), Depth(out[j])
		if di != dj {
			return di < dj
		}
		return out[i] < out[j]
	})
	return out
}
