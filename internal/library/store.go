package library

import (
	"context"

	"github.com/Vincenzoferrara/metadata-remote/pkg/models"
)

// Persistence mirrors the catalog durably. The library validates and
// computes each mutation against the in-memory tree first, writes it
// through the store, and applies it in memory only if the write succeeds,
// so implementations never see an invalid transition.
type Persistence interface {
	// LoadAll returns every stored node. Order does not matter; missing
	// parent folders are synthesized during load.
	LoadAll(ctx context.Context) ([]models.Node, error)

	// SaveNode inserts or updates one node keyed by its path.
	SaveNode(ctx context.Context, n models.Node) error

	// DeletePath removes a node. With recursive set it also removes the
	// node's whole subtree; the root path "" with recursive wipes the store.
	DeletePath(ctx context.Context, path string, recursive bool) error

	// RewritePrefix renames a node and moves its subtree from oldPath to
	// newPath in one atomic step.
	RewritePrefix(ctx context.Context, oldPath, newPath string) error

	Close() error
}

// Discard keeps the catalog in memory only. Every write succeeds and loads
// return nothing.
var Discard Persistence = discard{}

type discard struct{}

func (discard) LoadAll(context.Context) ([]models.Node, error)      { return nil, nil }
func (discard) SaveNode(context.Context, models.Node) error         { return nil }
func (discard) DeletePath(context.Context, string, bool) error      { return nil }
func (discard) RewritePrefix(context.Context, string, string) error { return nil }
func (discard) Close() error                                        { return nil }
