// Package library holds the server's authoritative catalog of the storage
// hierarchy: one tree of folders and files with an index by path. Every
// mutation validates against the in-memory tree, persists through the
// configured store, and only then applies in memory, so a failed write
// leaves the catalog exactly as it was.
package library

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Vincenzoferrara/metadata-remote/internal/logging"
	"github.com/Vincenzoferrara/metadata-remote/internal/metrics"
	"github.com/Vincenzoferrara/metadata-remote/pkg/models"
	"github.com/Vincenzoferrara/metadata-remote/pkg/paths"
	"github.com/Vincenzoferrara/metadata-remote/pkg/tree"
)

// Library is safe for concurrent use.
type Library struct {
	mu    sync.RWMutex
	store Persistence
	log   *zap.Logger

	root  *models.Node
	index map[string]*models.Node
}

// New returns an empty catalog backed by store. A nil store keeps the
// catalog in memory only.
func New(store Persistence) *Library {
	if store == nil {
		store = Discard
	}
	l := &Library{
		store: store,
		log:   logging.Named("library"),
	}
	l.reset(nil)
	return l
}

// Load populates the catalog from the persistence store, replacing any
// current contents.
func (l *Library) Load(ctx context.Context) error {
	start := time.Now()
	nodes, err := l.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	l.mu.Lock()
	l.reset(nodes)
	count := len(l.index) - 1
	l.mu.Unlock()

	metrics.RecordCatalogLoad(time.Since(start))
	metrics.SetCatalogNodes(count)
	l.log.Info("catalog loaded",
		zap.Int("nodes", count),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// ReplaceAll swaps in a freshly scanned catalog and rewrites the store to
// match. Used by the importer after a full scan.
func (l *Library) ReplaceAll(ctx context.Context, nodes []models.Node) error {
	if err := l.store.DeletePath(ctx, "", true); err != nil {
		return fmt.Errorf("clear store: %w", err)
	}
	for _, n := range nodes {
		if err := l.store.SaveNode(ctx, n); err != nil {
			return fmt.Errorf("save %s: %w", n.Path, err)
		}
	}

	l.mu.Lock()
	l.reset(nodes)
	count := len(l.index) - 1
	l.mu.Unlock()

	metrics.SetCatalogNodes(count)
	l.log.Info("catalog replaced", zap.Int("nodes", count))
	return nil
}

// Close releases the persistence store.
func (l *Library) Close() error { return l.store.Close() }

// NodeCount reports how many nodes the catalog holds, excluding the root.
func (l *Library) NodeCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.index) - 1
}

// Get returns a copy of the node at path.
func (l *Library) Get(path string) (models.Node, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n, ok := l.index[path]
	if !ok {
		return models.Node{}, false
	}
	return snapshot(n), true
}

// Children returns the direct children of a folder in listing order:
// folders before files, names compared case-insensitively.
func (l *Library) Children(path string) ([]models.Node, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n, ok := l.index[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if !n.IsDir {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFolder)
	}
	out := make([]models.Node, 0, len(n.Children))
	for _, c := range n.Children {
		out = append(out, snapshot(c))
	}
	return out, nil
}

// Stats aggregates a folder's subtree: how many folders and files it
// contains and their total size. The folder itself is not counted.
func (l *Library) Stats(path string) (models.FolderStats, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n, ok := l.index[path]
	if !ok {
		return models.FolderStats{}, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if !n.IsDir {
		return models.FolderStats{}, fmt.Errorf("%s: %w", path, ErrNotFolder)
	}
	var st models.FolderStats
	tree.Walk(n, func(d *models.Node) {
		if d == n {
			return
		}
		if d.IsDir {
			st.FolderCount++
		} else {
			st.FileCount++
			st.TotalSizeBytes += d.Size
		}
	})
	return st, nil
}

// FilesUnder returns the paths of every file in a folder's subtree, or the
// path itself if it names a file. Callers use this to move storage objects
// alongside catalog mutations.
func (l *Library) FilesUnder(path string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n, ok := l.index[path]
	if !ok {
		return nil
	}
	var out []string
	tree.Walk(n, func(d *models.Node) {
		if !d.IsDir {
			out = append(out, d.Path)
		}
	})
	return out
}

// Upsert records a file or folder, creating and persisting any missing
// parent folders. A node cannot change kind in place.
func (l *Library) Upsert(ctx context.Context, n models.Node) error {
	if n.Path == "" {
		return fmt.Errorf("upsert: %w", ErrIsRoot)
	}
	n.Name = paths.Base(n.Path)

	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.index[n.Path]; ok && existing.IsDir != n.IsDir {
		return fmt.Errorf("%s: node kind cannot change", n.Path)
	}
	for _, a := range paths.Ancestors(n.Path) {
		if _, ok := l.index[a]; ok {
			continue
		}
		parent := models.Node{Path: a, Name: paths.Base(a), IsDir: true}
		if err := l.store.SaveNode(ctx, parent); err != nil {
			return fmt.Errorf("persist %s: %w", a, err)
		}
		l.attach(parent)
	}
	if err := l.store.SaveNode(ctx, n); err != nil {
		return fmt.Errorf("persist %s: %w", n.Path, err)
	}
	l.attach(n)
	metrics.SetCatalogNodes(len(l.index) - 1)
	return nil
}

// RenameFile gives a file a new name within its folder and returns the new
// path. Renaming to the current name is a no-op.
func (l *Library) RenameFile(ctx context.Context, path, newName string) (string, error) {
	if err := checkName(newName); err != nil {
		return "", err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	n, ok := l.index[path]
	if !ok {
		return "", fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if n.IsDir {
		return "", fmt.Errorf("%s: %w", path, ErrNotFile)
	}
	newPath := paths.Join(paths.Parent(path), newName)
	if newPath == path {
		return path, nil
	}
	if _, exists := l.index[newPath]; exists {
		return "", fmt.Errorf("%s: %w", newPath, ErrFileExists)
	}
	if err := l.store.RewritePrefix(ctx, path, newPath); err != nil {
		metrics.RecordCatalogOperation("rename_file", err)
		return "", fmt.Errorf("persist rename: %w", err)
	}
	l.relocate(n, newPath)
	metrics.RecordCatalogOperation("rename_file", nil)
	return newPath, nil
}

// RenameFolder gives a folder a new name within its parent and returns the
// resulting path. When the name is already taken by another folder the
// rename fails with ErrFolderExists unless merge is set, in which case the
// folder's contents are folded into the existing one. A merge that would
// overwrite any file fails with a MergeConflictError listing every
// collision, and nothing moves.
func (l *Library) RenameFolder(ctx context.Context, path, newName string, merge bool) (string, error) {
	if err := checkName(newName); err != nil {
		return "", err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	n, ok := l.index[path]
	if !ok {
		return "", fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if !n.IsDir {
		return "", fmt.Errorf("%s: %w", path, ErrNotFolder)
	}
	if path == "" {
		return "", fmt.Errorf("rename: %w", ErrIsRoot)
	}
	newPath := paths.Join(paths.Parent(path), newName)
	if newPath == path {
		return path, nil
	}
	if dst, exists := l.index[newPath]; exists {
		if !dst.IsDir {
			return "", fmt.Errorf("%s: %w", newPath, ErrFileExists)
		}
		if !merge {
			return "", fmt.Errorf("%s: %w", newPath, ErrFolderExists)
		}
		return l.mergeLocked(ctx, n, dst, false, "rename_folder_merge")
	}
	if err := l.store.RewritePrefix(ctx, path, newPath); err != nil {
		metrics.RecordCatalogOperation("rename_folder", err)
		return "", fmt.Errorf("persist rename: %w", err)
	}
	l.relocate(n, newPath)
	metrics.RecordCatalogOperation("rename_folder", nil)
	return newPath, nil
}

// MoveFile moves a file into destFolder, or copies it when copy is set,
// and returns the file's resulting path.
func (l *Library) MoveFile(ctx context.Context, path, destFolder string, copy bool) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n, ok := l.index[path]
	if !ok {
		return "", fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if n.IsDir {
		return "", fmt.Errorf("%s: %w", path, ErrNotFile)
	}
	dst, ok := l.index[destFolder]
	if !ok {
		return "", fmt.Errorf("%s: %w", destFolder, ErrNotFound)
	}
	if !dst.IsDir {
		return "", fmt.Errorf("%s: %w", destFolder, ErrNotFolder)
	}
	newPath := paths.Join(destFolder, n.Name)
	if newPath == path {
		return path, nil
	}
	if _, exists := l.index[newPath]; exists {
		return "", fmt.Errorf("%s: %w", newPath, ErrFileExists)
	}

	op := "move_file"
	if copy {
		op = "copy_file"
		dup := snapshot(n)
		dup.Path = newPath
		dup.ModTime = time.Now().UTC()
		if err := l.store.SaveNode(ctx, dup); err != nil {
			metrics.RecordCatalogOperation(op, err)
			return "", fmt.Errorf("persist copy: %w", err)
		}
		l.attach(dup)
		metrics.RecordCatalogOperation(op, nil)
		return newPath, nil
	}
	if err := l.store.RewritePrefix(ctx, path, newPath); err != nil {
		metrics.RecordCatalogOperation(op, err)
		return "", fmt.Errorf("persist move: %w", err)
	}
	l.relocate(n, newPath)
	metrics.RecordCatalogOperation(op, nil)
	return newPath, nil
}

// MoveFolder moves a folder (and its subtree) into destFolder and returns
// the resulting path. With copy the source stays in place. When the
// destination already has a folder of the same name the move fails with
// ErrFolderExists unless merge is set; merges follow the same conflict
// rules as RenameFolder.
func (l *Library) MoveFolder(ctx context.Context, path, destFolder string, merge, copy bool) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n, ok := l.index[path]
	if !ok {
		return "", fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if !n.IsDir {
		return "", fmt.Errorf("%s: %w", path, ErrNotFolder)
	}
	if path == "" {
		return "", fmt.Errorf("move: %w", ErrIsRoot)
	}
	dst, ok := l.index[destFolder]
	if !ok {
		return "", fmt.Errorf("%s: %w", destFolder, ErrNotFound)
	}
	if !dst.IsDir {
		return "", fmt.Errorf("%s: %w", destFolder, ErrNotFolder)
	}
	if destFolder == path || paths.IsAncestor(path, destFolder) {
		return "", fmt.Errorf("cannot move %s into itself", path)
	}
	newPath := paths.Join(destFolder, n.Name)
	if newPath == path {
		return path, nil
	}

	op := "move_folder"
	if copy {
		op = "copy_folder"
	}
	if target, exists := l.index[newPath]; exists {
		if !target.IsDir {
			return "", fmt.Errorf("%s: %w", newPath, ErrFileExists)
		}
		if !merge {
			return "", fmt.Errorf("%s: %w", newPath, ErrFolderExists)
		}
		return l.mergeLocked(ctx, n, target, copy, op+"_merge")
	}

	if copy {
		clones := cloneSubtree(n, newPath)
		for _, c := range clones {
			if err := l.store.SaveNode(ctx, c); err != nil {
				metrics.RecordCatalogOperation(op, err)
				return "", fmt.Errorf("persist copy: %w", err)
			}
		}
		for _, c := range clones {
			l.attach(c)
		}
		metrics.RecordCatalogOperation(op, nil)
		return newPath, nil
	}
	if err := l.store.RewritePrefix(ctx, path, newPath); err != nil {
		metrics.RecordCatalogOperation(op, err)
		return "", fmt.Errorf("persist move: %w", err)
	}
	l.relocate(n, newPath)
	metrics.RecordCatalogOperation(op, nil)
	return newPath, nil
}

// DeleteFile removes a file from the catalog.
func (l *Library) DeleteFile(ctx context.Context, path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	n, ok := l.index[path]
	if !ok {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if n.IsDir {
		return fmt.Errorf("%s: %w", path, ErrNotFile)
	}
	if err := l.store.DeletePath(ctx, path, false); err != nil {
		metrics.RecordCatalogOperation("delete_file", err)
		return fmt.Errorf("persist delete: %w", err)
	}
	l.detach(n)
	metrics.RecordCatalogOperation("delete_file", nil)
	return nil
}

// DeleteFolder removes a folder. Without recursive a non-empty folder is
// rejected with ErrFolderNotEmpty.
func (l *Library) DeleteFolder(ctx context.Context, path string, recursive bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	n, ok := l.index[path]
	if !ok {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if !n.IsDir {
		return fmt.Errorf("%s: %w", path, ErrNotFolder)
	}
	if path == "" {
		return fmt.Errorf("delete: %w", ErrIsRoot)
	}
	if !recursive && len(n.Children) > 0 {
		return fmt.Errorf("%s: %w", path, ErrFolderNotEmpty)
	}
	if err := l.store.DeletePath(ctx, path, true); err != nil {
		metrics.RecordCatalogOperation("delete_folder", err)
		return fmt.Errorf("persist delete: %w", err)
	}
	l.detach(n)
	metrics.RecordCatalogOperation("delete_folder", nil)
	return nil
}

// mergeLocked folds src's contents into dst. Any source entry that would
// land on an existing entry of a different kind, or on an existing file,
// is a conflict; with one or more conflicts nothing moves and the full
// sorted list is returned. Folder-on-folder collisions merge recursively.
// With keepSource set the source subtree stays in place (a copy-merge).
func (l *Library) mergeLocked(ctx context.Context, src, dst *models.Node, keepSource bool, op string) (string, error) {
	var conflicts []string
	var moved []models.Node
	tree.Walk(src, func(d *models.Node) {
		if d == src {
			return
		}
		m := snapshot(d)
		m.Path = paths.Rewrite(d.Path, src.Path, dst.Path)
		if target, exists := l.index[m.Path]; exists && !(d.IsDir && target.IsDir) {
			conflicts = append(conflicts, m.Path)
			return
		}
		moved = append(moved, m)
	})
	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		err := &MergeConflictError{Conflicts: conflicts}
		metrics.RecordCatalogOperation(op, err)
		return "", err
	}

	for _, m := range moved {
		if err := l.store.SaveNode(ctx, m); err != nil {
			metrics.RecordCatalogOperation(op, err)
			return "", fmt.Errorf("persist merge: %w", err)
		}
	}
	if !keepSource {
		if err := l.store.DeletePath(ctx, src.Path, true); err != nil {
			metrics.RecordCatalogOperation(op, err)
			return "", fmt.Errorf("persist merge: %w", err)
		}
	}

	// Walk order guarantees parents are attached before their children.
	for _, m := range moved {
		l.attach(m)
	}
	if !keepSource {
		l.detach(src)
	}
	metrics.RecordCatalogOperation(op, nil)
	l.log.Info("folders merged",
		zap.String("source", src.Path),
		zap.String("destination", dst.Path),
		zap.Int("entries", len(moved)),
		zap.Bool("copy", keepSource))
	return dst.Path, nil
}

// reset rebuilds the tree and index from a flat node list. Parents sort
// before children so attach never sees an orphan.
func (l *Library) reset(nodes []models.Node) {
	l.root = &models.Node{Path: "", IsDir: true}
	l.index = map[string]*models.Node{"": l.root}
	sort.SliceStable(nodes, func(i, j int) bool {
		return paths.Depth(nodes[i].Path) < paths.Depth(nodes[j].Path)
	})
	for _, n := range nodes {
		if n.Path == "" {
			continue
		}
		l.attach(n)
	}
}

// attach inserts or updates a node, synthesizing missing parent folders.
// Callers hold l.mu.
func (l *Library) attach(n models.Node) {
	if existing, ok := l.index[n.Path]; ok {
		existing.Size = n.Size
		existing.ModTime = n.ModTime
		return
	}
	parent := l.folderAt(paths.Parent(n.Path))
	node := &models.Node{
		Path:    n.Path,
		Name:    paths.Base(n.Path),
		IsDir:   n.IsDir,
		Size:    n.Size,
		ModTime: n.ModTime,
	}
	tree.InsertChild(parent, node)
	l.index[n.Path] = node
}

// folderAt resolves a folder node, creating it and any missing ancestors.
// Callers hold l.mu.
func (l *Library) folderAt(path string) *models.Node {
	if n, ok := l.index[path]; ok {
		return n
	}
	parent := l.folderAt(paths.Parent(path))
	node := &models.Node{Path: path, Name: paths.Base(path), IsDir: true}
	tree.InsertChild(parent, node)
	l.index[path] = node
	return node
}

// relocate moves a node and its subtree to newPath, fixing the tree shape,
// every descendant path, and the index. Callers hold l.mu and have
// validated that newPath is free.
func (l *Library) relocate(n *models.Node, newPath string) {
	oldParent := l.index[paths.Parent(n.Path)]
	tree.RemoveChild(oldParent, n.Name)
	tree.Walk(n, func(d *models.Node) { delete(l.index, d.Path) })

	tree.RewritePaths(n, n.Path, newPath)
	n.Name = paths.Base(newPath)
	newParent := l.folderAt(paths.Parent(newPath))
	tree.InsertChild(newParent, n)
	tree.Walk(n, func(d *models.Node) { l.index[d.Path] = d })
}

// detach removes a node and its subtree from the tree and index. Callers
// hold l.mu.
func (l *Library) detach(n *models.Node) {
	parent := l.index[paths.Parent(n.Path)]
	tree.RemoveChild(parent, n.Name)
	tree.Walk(n, func(d *models.Node) { delete(l.index, d.Path) })
}

// cloneSubtree flattens a subtree into standalone copies rooted at newPath,
// parents before children.
func cloneSubtree(n *models.Node, newPath string) []models.Node {
	var out []models.Node
	now := time.Now().UTC()
	tree.Walk(n, func(d *models.Node) {
		c := snapshot(d)
		c.Path = paths.Rewrite(d.Path, n.Path, newPath)
		c.Name = paths.Base(c.Path)
		if !c.IsDir {
			c.ModTime = now
		}
		out = append(out, c)
	})
	return out
}

// snapshot copies a node without its children.
func snapshot(n *models.Node) models.Node {
	c := *n
	c.Children = nil
	return c
}

// checkName rejects names the path scheme cannot represent.
func checkName(name string) error {
	if name == "" || strings.ContainsRune(name, '/') {
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	return nil
}
