package browser

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/Vincenzoferrara/metadata-remote/internal/metrics"
	"github.com/Vincenzoferrara/metadata-remote/pkg/models"
	"github.com/Vincenzoferrara/metadata-remote/pkg/paths"
	"github.com/Vincenzoferrara/metadata-remote/pkg/tree"
)

// Synchronizer: keeps the folder tree and the file list coherent with the
// remote service. Every remote fetch is sequenced; a response that lost the
// race to a newer request is dropped without touching state.

// discardStaleLocked records a superseded response.
func (b *Browser) discardStaleLocked(slot string) {
	metrics.RecordStaleResponse(slot)
	b.log.Debug("stale response discarded", zap.String("slot", slot))
}

// loadRoot fetches the top-level folders.
func (b *Browser) loadRoot(ctx context.Context) error {
	id := b.seq.begin(slotTree)

	items, err := b.svc.ListRoot(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.seq.isCurrent(slotTree, id) {
		b.discardStaleLocked(slotTree)
		return nil
	}
	if err != nil {
		return err
	}

	root := &models.Node{Path: "", IsDir: true}
	b.root = root
	b.loadedChildren = make(map[string]bool)
	b.attachChildrenLocked(root, items)
	b.refreshTreeRowsLocked()
	b.log.Info("root loaded", zap.Int("folders", len(root.Children)))
	return nil
}

// attachChildrenLocked installs a fetched subfolder listing under a node.
func (b *Browser) attachChildrenLocked(node *models.Node, items []models.Node) {
	kids := make([]*models.Node, 0, len(items))
	for _, it := range items {
		if !it.IsDir {
			continue
		}
		n := it
		n.Children = nil
		kids = append(kids, &n)
	}
	sort.SliceStable(kids, func(i, j int) bool {
		return fold(kids[i].Name) < fold(kids[j].Name)
	})
	node.Children = kids
	b.loadedChildren[node.Path] = true
}

// refreshTreeRowsLocked recomputes the visible folder rows from the tree and
// the expansion set.
func (b *Browser) refreshTreeRowsLocked() {
	rows := make([]Row, 0, 64)
	var walk func(n *models.Node, depth int)
	walk = func(n *models.Node, depth int) {
		for _, c := range n.Children {
			hasChildren := true
			if b.loadedChildren[c.Path] {
				hasChildren = len(c.Children) > 0
			}
			rows = append(rows, Row{
				Path:        c.Path,
				Name:        c.Name,
				IsDir:       true,
				Size:        c.Size,
				ModTime:     c.ModTime,
				Depth:       depth,
				Expanded:    b.expanded[c.Path],
				HasChildren: hasChildren,
			})
			if b.expanded[c.Path] {
				walk(c, depth+1)
			}
		}
	}
	if b.root != nil {
		walk(b.root, 0)
	}
	b.treePane.setRows(rows, b.notifier)
}

// expandedListLocked returns the expanded paths ordered by depth, then name.
func (b *Browser) expandedListLocked() []string {
	out := make([]string, 0, len(b.expanded))
	for p := range b.expanded {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := paths.Depth(out[i]), paths.Depth(out[j])
		if di != dj {
			return di < dj
		}
		return out[i] < out[j]
	})
	return out
}

// Expand shows a folder's children, fetching them on first expansion.
func (b *Browser) Expand(ctx context.Context, path string) error {
	b.mu.Lock()
	if path == "" || tree.Find(b.root, path) == nil || b.expanded[path] {
		b.mu.Unlock()
		return nil
	}

	if !b.loadedChildren[path] {
		id := b.seq.begin(slotTree)
		b.mu.Unlock()

		kids, err := b.svc.ListChildren(ctx, path)

		b.mu.Lock()
		if !b.seq.isCurrent(slotTree, id) {
			b.discardStaleLocked(slotTree)
			b.mu.Unlock()
			return nil
		}
		if err != nil {
			b.mu.Unlock()
			return err
		}
		// The tree may have been rewritten locally while the fetch ran.
		node := tree.Find(b.root, path)
		if node == nil {
			b.mu.Unlock()
			return nil
		}
		b.attachChildrenLocked(node, kids)
	}

	b.expanded[path] = true
	b.refreshTreeRowsLocked()
	b.notifier.ExpansionChanged(b.expandedListLocked())
	b.mu.Unlock()
	return nil
}

// Collapse hides a folder's children. Expansion flags of its descendants
// are kept so re-expanding restores the previous shape.
func (b *Browser) Collapse(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.expanded[path] {
		return
	}
	delete(b.expanded, path)
	b.refreshTreeRowsLocked()
	b.notifier.ExpansionChanged(b.expandedListLocked())
}

// ToggleExpand expands a collapsed folder and collapses an expanded one.
func (b *Browser) ToggleExpand(ctx context.Context, path string) error {
	b.mu.Lock()
	expanded := b.expanded[path]
	b.mu.Unlock()

	if expanded {
		b.Collapse(path)
		return nil
	}
	return b.Expand(ctx, path)
}

// SelectFolder opens a folder: it becomes the tree selection and its files
// and statistics are loaded. Switching to a folder that is neither an
// ancestor nor a descendant of the previous one collapses the previous one.
func (b *Browser) SelectFolder(ctx context.Context, path string) error {
	b.mu.Lock()
	if b.treePane.visibleIndex(path) < 0 {
		b.log.Debug("select of hidden folder ignored", zap.String("path", path))
		b.mu.Unlock()
		return nil
	}

	prev := b.currentFolder
	if prev != "" && prev != path &&
		!paths.IsAncestor(prev, path) && !paths.IsAncestor(path, prev) {
		if b.expanded[prev] {
			delete(b.expanded, prev)
			b.refreshTreeRowsLocked()
			b.notifier.ExpansionChanged(b.expandedListLocked())
		}
	}

	b.currentFolder = path
	b.treePane.selectSingle(path, b.notifier)

	filesID := b.seq.begin(slotFiles)
	statsID := b.seq.begin(slotStats)
	b.mu.Unlock()

	items, err := b.svc.ListFiles(ctx, path)

	b.mu.Lock()
	if !b.seq.isCurrent(slotFiles, filesID) {
		b.discardStaleLocked(slotFiles)
		b.mu.Unlock()
		return nil
	}
	if err != nil {
		b.mu.Unlock()
		return err
	}
	files := items[:0:0]
	for _, it := range items {
		if !it.IsDir {
			files = append(files, it)
		}
	}
	b.fileItems = files
	b.rebuildLocked()
	b.mu.Unlock()

	// Statistics are display-only; a failure here never fails the switch.
	st, err := b.svc.FolderStats(ctx, path)

	b.mu.Lock()
	if !b.seq.isCurrent(slotStats, statsID) {
		b.discardStaleLocked(slotStats)
	} else if err == nil {
		b.stats = st
		b.statsPath = path
	} else {
		b.log.Warn("folder stats fetch failed", zap.String("path", path), zap.Error(err))
	}
	b.mu.Unlock()
	return nil
}

// rebuildLocked recomputes the visible file rows: a case-insensitive
// substring filter over names, then a stable sort on the active key. Equal
// keys keep the server listing order.
func (b *Browser) rebuildLocked() {
	needle := fold(b.filter)
	vis := make([]Row, 0, len(b.fileItems))
	for _, it := range b.fileItems {
		if needle != "" && !strings.Contains(fold(it.Name), needle) {
			continue
		}
		vis = append(vis, Row{
			Path:    it.Path,
			Name:    it.Name,
			IsDir:   it.IsDir,
			Size:    it.Size,
			ModTime: it.ModTime,
		})
	}

	key, asc := b.sortKey, b.sortAsc
	sort.SliceStable(vis, func(i, j int) bool {
		a, c := vis[i], vis[j]
		var less, eq bool
		switch key {
		case SortByDate:
			less, eq = a.ModTime.Before(c.ModTime), a.ModTime.Equal(c.ModTime)
		case SortBySize:
			less, eq = a.Size < c.Size, a.Size == c.Size
		case SortByType:
			x, y := ext(a.Name), ext(c.Name)
			less, eq = x < y, x == y
		default:
			x, y := fold(a.Name), fold(c.Name)
			less, eq = x < y, x == y
		}
		if eq {
			return false
		}
		if asc {
			return less
		}
		return !less
	})

	b.filePane.setRows(vis, b.notifier)
}

// SetFilter changes the file list filter and rebuilds the visible rows.
func (b *Browser) SetFilter(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.filter == text {
		return
	}
	b.filter = text
	b.rebuildLocked()
}

// SetSort changes the file list ordering and rebuilds the visible rows.
func (b *Browser) SetSort(key SortKey, asc bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sortKey == key && b.sortAsc == asc {
		return
	}
	b.sortKey = key
	b.sortAsc = asc
	b.rebuildLocked()
}

// Refresh reloads the tree from the server preserving the current expansion
// and selection.
func (b *Browser) Refresh(ctx context.Context) error {
	b.mu.Lock()
	exp := b.expandedListLocked()
	sel := b.currentFolder
	b.mu.Unlock()
	return b.reloadPreservingState(ctx, exp, sel)
}

// reloadPreservingState re-fetches the tree and restores the given expansion
// set and selection on the fresh copy. The children of every path in the
// minimal ancestor closure are fetched in increasing depth order, so each
// fetch attaches below an already materialized node. The new tree is built
// aside and swapped in atomically: a transport failure leaves current state
// untouched, and a newer tree request started meanwhile discards the whole
// reload.
func (b *Browser) reloadPreservingState(ctx context.Context, expandedPaths []string, selectedPath string) error {
	id := b.seq.begin(slotTree)

	items, err := b.svc.ListRoot(ctx)
	if !b.seq.isCurrent(slotTree, id) {
		b.mu.Lock()
		b.discardStaleLocked(slotTree)
		b.mu.Unlock()
		return nil
	}
	if err != nil {
		return err
	}

	newRoot := &models.Node{Path: "", IsDir: true}
	newLoaded := make(map[string]bool)
	attach := func(node *models.Node, items []models.Node) {
		kids := make([]*models.Node, 0, len(items))
		for _, it := range items {
			if !it.IsDir {
				continue
			}
			n := it
			n.Children = nil
			kids = append(kids, &n)
		}
		sort.SliceStable(kids, func(i, j int) bool {
			return fold(kids[i].Name) < fold(kids[j].Name)
		})
		node.Children = kids
		newLoaded[node.Path] = true
	}
	attach(newRoot, items)

	// Restoring the selection also needs its ancestor chain expanded, or the
	// re-applied selection would be dropped as hidden.
	want := append([]string{}, expandedPaths...)
	if selectedPath != "" {
		want = append(want, paths.Ancestors(selectedPath)...)
	}
	for _, p := range paths.Closure(want) {
		node := tree.Find(newRoot, p)
		if node == nil || !node.IsDir {
			continue // folder vanished remotely
		}
		kids, err := b.svc.ListChildren(ctx, p)
		if !b.seq.isCurrent(slotTree, id) {
			b.mu.Lock()
			b.discardStaleLocked(slotTree)
			b.mu.Unlock()
			return nil
		}
		if err != nil {
			return err
		}
		attach(node, kids)
	}

	b.mu.Lock()
	if !b.seq.isCurrent(slotTree, id) {
		b.discardStaleLocked(slotTree)
		b.mu.Unlock()
		return nil
	}

	b.root = newRoot
	b.loadedChildren = newLoaded
	b.expanded = make(map[string]bool)
	for _, p := range expandedPaths {
		if tree.Find(newRoot, p) != nil {
			b.expanded[p] = true
		}
	}
	if selectedPath != "" {
		for _, a := range paths.Ancestors(selectedPath) {
			if tree.Find(newRoot, a) != nil {
				b.expanded[a] = true
			}
		}
	}
	b.refreshTreeRowsLocked()
	b.notifier.ExpansionChanged(b.expandedListLocked())

	// Re-apply the selection: the path itself if it survived, else its
	// deepest surviving ancestor, else the first visible folder.
	target := ""
	if selectedPath != "" {
		if tree.Find(newRoot, selectedPath) != nil {
			target = selectedPath
		} else {
			anc := paths.Ancestors(selectedPath)
			for i := len(anc) - 1; i >= 0; i-- {
				if tree.Find(newRoot, anc[i]) != nil {
					target = anc[i]
					break
				}
			}
		}
	}
	if target == "" && len(b.treePane.rows) > 0 {
		target = b.treePane.rows[0].Path
	}
	b.mu.Unlock()

	if target == "" {
		// Empty library: nothing to select, nothing to list.
		b.mu.Lock()
		b.currentFolder = ""
		b.fileItems = nil
		b.rebuildLocked()
		b.mu.Unlock()
		return nil
	}
	return b.SelectFolder(ctx, target)
}
