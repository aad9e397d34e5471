// Package postgres persists the catalog in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/Vincenzoferrara/metadata-remote/internal/library"
	"github.com/Vincenzoferrara/metadata-remote/internal/logging"
	"github.com/Vincenzoferrara/metadata-remote/internal/metrics"
	"github.com/Vincenzoferrara/metadata-remote/pkg/models"
	"github.com/Vincenzoferrara/metadata-remote/pkg/paths"
)

// Store implements library.Persistence on a nodes table keyed by path.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

var _ library.Persistence = (*Store)(nil)

// New opens a connection pool and verifies it with a ping.
func New(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db, log: logging.Named("postgres")}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate runs every *.up.sql file in migrationsDir in lexical order.
func (s *Store) Migrate(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("glob migrations: %w", err)
	}

	for _, f := range files {
		s.log.Info("running migration", zap.String("file", filepath.Base(f)))
		content, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
	}

	return nil
}

// LoadAll returns every stored node.
func (s *Store) LoadAll(ctx context.Context) ([]models.Node, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("load_all", time.Since(start)) }()

	rows, err := s.db.QueryContext(ctx,
		`SELECT path, is_dir, size, mod_time FROM nodes ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	var out []models.Node
	for rows.Next() {
		var n models.Node
		if err := rows.Scan(&n.Path, &n.IsDir, &n.Size, &n.ModTime); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		n.Name = paths.Base(n.Path)
		out = append(out, n)
	}
	return out, rows.Err()
}

// SaveNode inserts or updates one node keyed by path.
func (s *Store) SaveNode(ctx context.Context, n models.Node) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("save_node", time.Since(start)) }()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO nodes (path, name, parent_path, is_dir, size, mod_time)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (path) DO UPDATE SET size = EXCLUDED.size, mod_time = EXCLUDED.mod_time`,
		n.Path, paths.Base(n.Path), paths.Parent(n.Path), n.IsDir, n.Size, n.ModTime)
	if err != nil {
		return fmt.Errorf("save node: %w", err)
	}
	return nil
}

// DeletePath removes a node, and with recursive its whole subtree. The root
// path with recursive truncates the table.
func (s *Store) DeletePath(ctx context.Context, path string, recursive bool) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("delete_path", time.Since(start)) }()

	var err error
	switch {
	case !recursive:
		_, err = s.db.ExecContext(ctx, `DELETE FROM nodes WHERE path = $1`, path)
	case path == "":
		_, err = s.db.ExecContext(ctx, `DELETE FROM nodes`)
	default:
		_, err = s.db.ExecContext(ctx,
			`DELETE FROM nodes WHERE path = $1 OR path LIKE $2`, path, path+"/%")
	}
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

// RewritePrefix moves a node and its subtree from oldPath to newPath in one
// transaction.
func (s *Store) RewritePrefix(ctx context.Context, oldPath, newPath string) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("rewrite_prefix", time.Since(start)) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE nodes SET path = $1, parent_path = $2, name = $3 WHERE path = $4`,
		newPath, paths.Parent(newPath), paths.Base(newPath), oldPath)
	if err != nil {
		return fmt.Errorf("rewrite node: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE nodes SET
		   path = $1 || substring(path from length($2) + 1),
		   parent_path = CASE
		     WHEN parent_path = $2 THEN $1
		     ELSE $1 || substring(parent_path from length($2) + 1)
		   END
		 WHERE path LIKE $2 || '/%'`,
		newPath, oldPath)
	if err != nil {
		return fmt.Errorf("rewrite children: %w", err)
	}

	return tx.Commit()
}
