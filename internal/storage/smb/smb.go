// Package smb provides an SMB/CIFS network share storage backend.
// The share must be pre-mounted on the OS (via mount.cifs or fstab); this
// backend delegates to the local filesystem backend at the mount path.
package smb

import (
	"fmt"

	"github.com/Vincenzoferrara/metadata-remote/internal/storage/local"
)

// Config holds SMB backend settings. Server and credentials are kept for
// reference; actual I/O goes through the mount path.
type Config struct {
	Server    string
	Username  string
	Password  string
	Domain    string
	MountPath string
}

// Backend wraps a local backend at the SMB mount point.
type Backend struct {
	*local.Backend
	config Config
}

// New creates an SMB backend over the mounted share.
func New(cfg Config) (*Backend, error) {
	if cfg.MountPath == "" {
		return nil, fmt.Errorf("mount path is required")
	}

	lb, err := local.New(local.Config{
		RootPath:   cfg.MountPath,
		CreateDirs: true,
	})
	if err != nil {
		return nil, fmt.Errorf("smb backend at %s: %w", cfg.MountPath, err)
	}

	return &Backend{
		Backend: lb,
		config:  cfg,
	}, nil
}

// Type returns "smb".
func (b *Backend) Type() string { return "smb" }
