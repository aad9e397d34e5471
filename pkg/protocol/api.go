// Package protocol defines the API request/response types.
package protocol

import (
	"github.com/Vincenzoferrara/metadata-remote/pkg/models"
)

// StatusOK is the status value carried by successful mutation responses.
const StatusOK = "ok"

// Error strings for the two recoverable domain conflicts. Clients match on
// these exact values, so they are part of the wire contract.
const (
	ErrMsgFolderExists   = "Folder already exists"
	ErrMsgMergeConflicts = "Merge conflicts"
)

// ListResponse is returned by the tree and file listing endpoints.
type ListResponse struct {
	Items []models.Node `json:"items"`
}

// StatsResponse is returned by GET /api/v1/stats/{path}.
type StatsResponse struct {
	Status         string `json:"status"`
	FolderCount    int    `json:"folderCount"`
	FileCount      int    `json:"fileCount"`
	TotalSizeBytes int64  `json:"totalSizeBytes"`
}

// ErrorResponse is returned on API errors. Conflicts lists the destination
// files a refused merge would have overwritten.
type ErrorResponse struct {
	Error     string   `json:"error"`
	Code      int      `json:"code"`
	Conflicts []string `json:"conflicts,omitempty"`
}

// RenameFileRequest is the body for POST /api/v1/file/rename.
type RenameFileRequest struct {
	Path    string `json:"path"`
	NewName string `json:"newName"`
}

// RenameFolderRequest is the body for POST /api/v1/folder/rename.
type RenameFolderRequest struct {
	Path    string `json:"path"`
	NewName string `json:"newName"`
	Merge   bool   `json:"merge,omitempty"`
}

// RenameResponse is returned by the rename endpoints.
type RenameResponse struct {
	Status  string `json:"status"`
	NewPath string `json:"newPath"`
	Merged  bool   `json:"merged,omitempty"`
}

// MoveFileRequest is the body for POST /api/v1/file/move.
type MoveFileRequest struct {
	Path        string `json:"path"`
	Destination string `json:"destination"` // destination folder path, "" = root
	Copy        bool   `json:"copy,omitempty"`
}

// MoveFolderRequest is the body for POST /api/v1/folder/move.
type MoveFolderRequest struct {
	Path        string `json:"path"`
	Destination string `json:"destination"`
	Merge       bool   `json:"merge,omitempty"`
	Copy        bool   `json:"copy,omitempty"`
}

// MoveResponse is returned by the move endpoints.
type MoveResponse struct {
	Status  string `json:"status"`
	NewPath string `json:"newPath"`
	Merged  bool   `json:"merged,omitempty"`
}

// DeleteResponse is returned by the delete endpoints.
type DeleteResponse struct {
	Status string `json:"status"`
	Path   string `json:"path"`
}

// LoginRequest is the body for POST /api/v1/auth/token.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned on successful login.
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"` // unix seconds
	Username  string `json:"username"`
}

// Change event types published on the SSE feed.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
	EventMoved   = "moved"
)

// ChangeEvent is a server-sent event describing a library mutation.
type ChangeEvent struct {
	Type      string `json:"type"`
	Path      string `json:"path"`
	NewPath   string `json:"new_path,omitempty"` // set on moves and renames
	IsDir     bool   `json:"is_dir"`
	Timestamp int64  `json:"timestamp"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	CatalogNodes  int    `json:"catalog_nodes"`
	DiskFreeBytes int64  `json:"disk_free_bytes,omitempty"`
}
