// Package models contains the data types shared by the server and clients.
package models

import "time"

// Node is one entry in the library: a folder or a file.
// Paths are '/'-joined with no leading slash and uniquely identify a node;
// the root folder is the empty string.
type Node struct {
	Path     string    `json:"path"`
	Name     string    `json:"name"`
	IsDir    bool      `json:"is_dir"`
	Size     int64     `json:"size,omitempty"`
	ModTime  time.Time `json:"mtime,omitempty"`
	Children []*Node   `json:"children,omitempty"` // populated on the server-side tree only
}

// Folder reports whether the node is a folder.
func (n *Node) Folder() bool { return n.IsDir }

// FolderStats aggregates a folder's subtree.
type FolderStats struct {
	FolderCount    int   `json:"folderCount"`
	FileCount      int   `json:"fileCount"`
	TotalSizeBytes int64 `json:"totalSizeBytes"`
}

// Add accumulates another stats result, used when previewing a multi-folder
// delete.
func (s *FolderStats) Add(o FolderStats) {
	s.FolderCount += o.FolderCount
	s.FileCount += o.FileCount
	s.TotalSizeBytes += o.TotalSizeBytes
}
