// metadata-remote server
//
// Features:
// - In-memory catalog with optional PostgreSQL persistence
// - Multi-backend object storage (local, S3, SMB)
// - Rename/move/delete endpoints with merge conflict reporting
// - SSE change feed for connected explorers
// - WebDAV content access
// - Prometheus metrics & structured logging (zap)
package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Vincenzoferrara/metadata-remote/internal/api"
	"github.com/Vincenzoferrara/metadata-remote/internal/auth"
	"github.com/Vincenzoferrara/metadata-remote/internal/config"
	"github.com/Vincenzoferrara/metadata-remote/internal/events"
	"github.com/Vincenzoferrara/metadata-remote/internal/importer"
	"github.com/Vincenzoferrara/metadata-remote/internal/library"
	"github.com/Vincenzoferrara/metadata-remote/internal/library/postgres"
	"github.com/Vincenzoferrara/metadata-remote/internal/logging"
	"github.com/Vincenzoferrara/metadata-remote/internal/metrics"
	"github.com/Vincenzoferrara/metadata-remote/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	// Initialize structured logging
	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("metadata-remote server starting...",
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr),
		zap.String("storage", cfg.Storage))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Catalog persistence: PostgreSQL when configured, memory-only otherwise.
	var store library.Persistence
	if cfg.DatabaseURL != "" {
		logging.Info("connecting to PostgreSQL...")
		pgStore, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			logging.Fatal("database connection failed", zap.Error(err))
		}

		if dir := findMigrationsDir(); dir != "" {
			logging.Info("running migrations...", zap.String("dir", dir))
			if err := pgStore.Migrate(dir); err != nil {
				logging.Fatal("migration failed", zap.Error(err))
			}
		}
		store = pgStore
	}

	lib := library.New(store)
	defer lib.Close()
	if err := lib.Load(ctx); err != nil {
		logging.Fatal("catalog load failed", zap.Error(err))
	}

	// Storage backend
	backend, err := storage.New(ctx, cfg)
	if err != nil {
		logging.Fatal("storage init failed", zap.Error(err))
	}
	defer backend.Close()
	logging.Info("storage ready", zap.String("type", backend.Type()))

	// SSE broadcaster
	broadcaster := events.NewBroadcaster()

	// For local storage the disk is the source of truth: rebuild the catalog
	// from it on every boot, and mirror changes while running if asked to.
	if cfg.Storage == "local" {
		im := importer.New(cfg.LibraryDir, lib, broadcaster)
		if err := im.Scan(ctx); err != nil {
			logging.Fatal("library import failed", zap.Error(err))
		}
		if cfg.Watch {
			if err := im.Watch(ctx); err != nil {
				logging.Fatal("watcher init failed", zap.Error(err))
			}
			defer im.Close()
		}
	}

	// Auth, with optional OIDC
	authHandler := auth.New(cfg.Users, cfg.JWTSecret)
	if cfg.OIDCIssuerURL != "" {
		oidcProvider, err := auth.NewOIDCProvider(ctx, auth.OIDCConfig{
			IssuerURL:  cfg.OIDCIssuerURL,
			ClientID:   cfg.OIDCClientID,
			AdminClaim: cfg.OIDCAdminClaim,
			AdminValue: cfg.OIDCAdminValue,
		})
		if err != nil {
			logging.Fatal("OIDC provider init failed", zap.Error(err))
		}
		if oidcProvider != nil {
			authHandler.SetOIDCProvider(oidcProvider)
		}
	}

	// Create API server
	srv := api.NewServer(lib, backend, authHandler, broadcaster)

	// Start metrics server
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metrics.Handler(),
	}
	go func() {
		logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("metrics server error", zap.Error(err))
		}
	}()

	// Start HTTP(S) server
	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Handler(),
	}

	useTLS := cfg.TLSCertFile != "" && cfg.TLSKeyFile != ""
	if useTLS {
		httpServer.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS13,
		}
	}

	// Graceful shutdown. Close rather than Shutdown: open SSE streams never
	// finish on their own.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logging.Info("shutting down...")
		cancel()
		httpServer.Close()
		metricsServer.Close()
	}()

	// Keep the catalog size gauge fresh
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.SetCatalogNodes(lib.NodeCount())
			}
		}
	}()

	if useTLS {
		logging.Info("server listening (TLS 1.3)",
			zap.String("addr", cfg.ListenAddr),
			zap.String("cert", cfg.TLSCertFile))
		if err := httpServer.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile); err != http.ErrServerClosed {
			logging.Fatal("server error", zap.Error(err))
		}
	} else {
		logging.Info("server listening (HTTP)", zap.String("addr", cfg.ListenAddr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Fatal("server error", zap.Error(err))
		}
	}
}

func findMigrationsDir() string {
	candidates := []string{
		"migrations",
		"../migrations",
	}

	exe, _ := os.Executable()
	if exe != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "migrations"))
	}

	for _, dir := range candidates {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}
	return ""
}
