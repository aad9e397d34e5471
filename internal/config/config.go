// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all server configuration.
type Config struct {
	// Server
	ListenAddr  string
	MetricsAddr string

	// Logging
	LogLevel  string
	LogFormat string

	// Catalog persistence. Empty means the catalog lives in memory only
	// and is rebuilt by the importer on startup.
	DatabaseURL string

	// Storage backend ("local", "s3" or "smb", default: "local")
	Storage    string
	LibraryDir string

	// S3 storage
	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
	S3UseSSL    bool

	// SMB storage (consumed through a kernel mount)
	SMBServer    string
	SMBUsername  string
	SMBPassword  string
	SMBDomain    string
	SMBMountPath string

	// TLS (optional; if both set, server uses HTTPS)
	TLSCertFile string
	TLSKeyFile  string

	// Auth
	JWTSecret string
	Users     map[string]string // username -> bcrypt hash

	// OIDC (optional)
	OIDCIssuerURL  string
	OIDCClientID   string
	OIDCAdminClaim string
	OIDCAdminValue string

	// Importer
	Watch bool
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:     envOr("MDR_LISTEN_ADDR", ":8080"),
		MetricsAddr:    envOr("MDR_METRICS_ADDR", ""),
		LogLevel:       envOr("MDR_LOG_LEVEL", "info"),
		LogFormat:      envOr("MDR_LOG_FORMAT", "json"),
		DatabaseURL:    envOr("MDR_DATABASE_URL", ""),
		Storage:        envOr("MDR_STORAGE", "local"),
		LibraryDir:     envOr("MDR_LIBRARY_DIR", "/data/library"),
		S3Endpoint:     envOr("MDR_S3_ENDPOINT", "http://localhost:9000"),
		S3Bucket:       envOr("MDR_S3_BUCKET", "metadata-remote"),
		S3AccessKey:    envOr("MDR_S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:    envOr("MDR_S3_SECRET_KEY", "minioadmin"),
		S3Region:       envOr("MDR_S3_REGION", "us-east-1"),
		S3UseSSL:       envBool("MDR_S3_USE_SSL", false),
		SMBServer:      envOr("MDR_SMB_SERVER", ""),
		SMBUsername:    envOr("MDR_SMB_USERNAME", ""),
		SMBPassword:    envOr("MDR_SMB_PASSWORD", ""),
		SMBDomain:      envOr("MDR_SMB_DOMAIN", ""),
		SMBMountPath:   envOr("MDR_SMB_MOUNT_PATH", ""),
		TLSCertFile:    envOr("MDR_TLS_CERT_FILE", ""),
		TLSKeyFile:     envOr("MDR_TLS_KEY_FILE", ""),
		JWTSecret:      envOr("MDR_JWT_SECRET", ""),
		Users:          parseUsers(envOr("MDR_USERS", "")),
		OIDCIssuerURL:  envOr("MDR_OIDC_ISSUER_URL", ""),
		OIDCClientID:   envOr("MDR_OIDC_CLIENT_ID", ""),
		OIDCAdminClaim: envOr("MDR_OIDC_ADMIN_CLAIM", "is_admin"),
		OIDCAdminValue: envOr("MDR_OIDC_ADMIN_VALUE", "true"),
		Watch:          envBool("MDR_WATCH", false),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("MDR_JWT_SECRET is required")
	}
	switch cfg.Storage {
	case "local":
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("MDR_S3_BUCKET is required for s3 storage")
		}
	case "smb":
		if cfg.SMBMountPath == "" {
			return nil, fmt.Errorf("MDR_SMB_MOUNT_PATH is required for smb storage")
		}
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}

	return cfg, nil
}

// parseUsers parses "user:bcryptHash,user2:bcryptHash" pairs. Bcrypt hashes
// contain no commas or colons beyond the leading $ fields, so a simple split
// is enough.
func parseUsers(s string) map[string]string {
	users := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, hash, ok := strings.Cut(pair, ":")
		if !ok || name == "" || hash == "" {
			continue
		}
		users[name] = hash
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
