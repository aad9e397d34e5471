// Package tree provides utilities for the nested node trees held by the
// server-side library.
package tree

import (
	"sort"
	"strings"

	"github.com/Vincenzoferrara/metadata-remote/pkg/models"
	"github.com/Vincenzoferrara/metadata-remote/pkg/paths"
)

// Find resolves a library path in the tree. The empty path resolves to root.
func Find(root *models.Node, path string) *models.Node {
	if root == nil {
		return nil
	}
	if root.Path == path {
		return root
	}
	// Paths identify their ancestor chain, so descend only into the child
	// whose subtree can contain the target.
	for _, child := range root.Children {
		if child.Path == path || paths.IsAncestor(child.Path, path) {
			return Find(child, path)
		}
	}
	return nil
}

// Child returns the direct child with the given name, or nil.
func Child(parent *models.Node, name string) *models.Node {
	if parent == nil {
		return nil
	}
	for _, c := range parent.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// RemoveChild detaches the direct child with the given name, reporting
// whether anything was removed.
func RemoveChild(parent *models.Node, name string) bool {
	for i, c := range parent.Children {
		if c.Name == name {
			parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
			return true
		}
	}
	return false
}

// InsertChild attaches child to parent, keeping the listing order: folders
// before files, case-insensitive name order within each group.
func InsertChild(parent, child *models.Node) {
	parent.Children = append(parent.Children, child)
	SortChildren(parent)
}

// SortChildren restores the canonical listing order of a node's children.
func SortChildren(parent *models.Node) {
	sort.SliceStable(parent.Children, func(i, j int) bool {
		a, b := parent.Children[i], parent.Children[j]
		if a.IsDir != b.IsDir {
			return a.IsDir
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
}

// Count returns the number of nodes in the tree including the root.
func Count(root *models.Node) int {
	if root == nil {
		return 0
	}
	n := 1
	for _, c := range root.Children {
		n += Count(c)
	}
	return n
}

// Walk visits every node depth-first, parents before children.
func Walk(root *models.Node, fn func(*models.Node)) {
	if root == nil {
		return
	}
	fn(root)
	for _, c := range root.Children {
		Walk(c, fn)
	}
}

// Flatten returns every node keyed by path.
func Flatten(root *models.Node) map[string]*models.Node {
	out := make(map[string]*models.Node)
	Walk(root, func(n *models.Node) { out[n.Path] = n })
	return out
}

// RewritePaths rewrites the path of every node in the subtree after the
// subtree's own path changed from oldPrefix to newPrefix.
func RewritePaths(root *models.Node, oldPrefix, newPrefix string) {
	Walk(root, func(n *models.Node) {
		n.Path = paths.Rewrite(n.Path, oldPrefix, newPrefix)
	})
}
