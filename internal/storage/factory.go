package storage

import (
	"context"
	"fmt"

	"github.com/Vincenzoferrara/metadata-remote/internal/config"
	"github.com/Vincenzoferrara/metadata-remote/internal/storage/local"
	s3backend "github.com/Vincenzoferrara/metadata-remote/internal/storage/s3"
	"github.com/Vincenzoferrara/metadata-remote/internal/storage/smb"
)

// New creates the Backend selected by cfg.Storage.
func New(ctx context.Context, cfg *config.Config) (Backend, error) {
	switch cfg.Storage {
	case "s3":
		return s3backend.New(ctx, s3backend.Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
		})
	case "local":
		return local.New(local.Config{
			RootPath:   cfg.LibraryDir,
			CreateDirs: true,
		})
	case "smb":
		return smb.New(smb.Config{
			Server:    cfg.SMBServer,
			Username:  cfg.SMBUsername,
			Password:  cfg.SMBPassword,
			Domain:    cfg.SMBDomain,
			MountPath: cfg.SMBMountPath,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}
