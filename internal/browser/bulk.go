package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/Vincenzoferrara/metadata-remote/internal/metrics"
	"github.com/Vincenzoferrara/metadata-remote/pkg/models"
	"github.com/Vincenzoferrara/metadata-remote/pkg/paths"
	"github.com/Vincenzoferrara/metadata-remote/pkg/tree"
)

// ErrPreviewCancelled aborts a delete preview walk when the caller's
// cancellation flag flips.
var ErrPreviewCancelled = errors.New("delete preview cancelled")

// runBulk runs op over items strictly in order. Progress is reported after
// each completed item, but only for multi-item runs. The first failure stops
// the run with a single error; completed items stay applied and nothing is
// rolled back.
func (b *Browser) runBulk(ctx context.Context, items []string, op func(context.Context, string) error) error {
	total := len(items)
	for i, item := range items {
		if err := op(ctx, item); err != nil {
			metrics.RecordBulkOperation(err)
			return fmt.Errorf("%s: %w", item, err)
		}
		if total > 1 {
			b.notifier.OperationProgress(i+1, total)
		}
	}
	metrics.RecordBulkOperation(nil)
	return nil
}

// DeleteSelected deletes the pane's selection. Folders are deleted
// recursively, and a selection holding both a folder and its descendants
// deletes only the outermost folders. Items are removed strictly in order;
// the first failure stops the run, leaving earlier deletions applied and the
// remaining items untouched.
func (b *Browser) DeleteSelected(ctx context.Context, id PaneID) error {
	b.mu.Lock()
	targets := paths.Roots(b.pane(id).selectedInOrder())
	b.mu.Unlock()
	if len(targets) == 0 {
		return nil
	}
	folder := id == PaneTree

	err := b.runBulk(ctx, targets, func(ctx context.Context, item string) error {
		if folder {
			if err := b.svc.DeleteFolder(ctx, item, true); err != nil {
				return err
			}
		} else {
			if err := b.svc.DeleteFile(ctx, item); err != nil {
				return err
			}
		}
		b.mu.Lock()
		b.applyDeleteLocked(item, folder)
		b.mu.Unlock()
		return nil
	})

	// If the listed folder went away with the deletion, fall back to its
	// nearest surviving ancestor.
	b.mu.Lock()
	cur := b.currentFolder
	lost := cur != "" && tree.Find(b.root, cur) == nil
	b.mu.Unlock()
	if !lost {
		return err
	}

	b.mu.Lock()
	target := ""
	anc := paths.Ancestors(cur)
	for i := len(anc) - 1; i >= 0; i-- {
		if tree.Find(b.root, anc[i]) != nil {
			target = anc[i]
			break
		}
	}
	if target == "" && len(b.treePane.rows) > 0 {
		target = b.treePane.rows[0].Path
	}
	if target == "" {
		// Nothing left to show.
		b.currentFolder = ""
		b.fileItems = nil
		b.stats = models.FolderStats{}
		b.statsPath = ""
		b.rebuildLocked()
		b.mu.Unlock()
		return err
	}
	b.mu.Unlock()

	if serr := b.SelectFolder(ctx, target); serr != nil && err == nil {
		return serr
	}
	return err
}

// applyDeleteLocked removes one deleted item from local state.
func (b *Browser) applyDeleteLocked(path string, folder bool) {
	if !folder {
		for i := range b.fileItems {
			if b.fileItems[i].Path == path {
				b.fileItems = append(b.fileItems[:i], b.fileItems[i+1:]...)
				break
			}
		}
		b.rebuildLocked()
		return
	}

	if parent := tree.Find(b.root, paths.Parent(path)); parent != nil {
		tree.RemoveChild(parent, paths.Base(path))
	}
	expChanged := false
	for p := range b.expanded {
		if paths.IsAncestor(path, p) {
			delete(b.expanded, p)
			expChanged = true
		}
	}
	for p := range b.loadedChildren {
		if paths.IsAncestor(path, p) {
			delete(b.loadedChildren, p)
		}
	}
	if paths.IsAncestor(path, b.currentFolder) {
		// The listed folder went with the subtree; DeleteSelected reselects
		// a survivor once the run finishes.
		b.fileItems = nil
		b.rebuildLocked()
	}
	b.refreshTreeRowsLocked()
	if expChanged {
		b.notifier.ExpansionChanged(b.expandedListLocked())
	}
}

// DeletePreview summarizes what a recursive delete of a selection would
// remove.
type DeletePreview struct {
	Folders        int
	Files          int
	TotalSizeBytes int64
}

// BuildDeletePreview walks the pane's selection and tallies what deleting it
// would remove. The walk issues remote listings and can be slow, so the
// cancelled flag is polled between remote calls; once it returns true the
// walk aborts with ErrPreviewCancelled.
func (b *Browser) BuildDeletePreview(ctx context.Context, id PaneID, cancelled func() bool) (*DeletePreview, error) {
	if cancelled == nil {
		cancelled = func() bool { return false }
	}

	b.mu.Lock()
	targets := paths.Roots(b.pane(id).selectedInOrder())
	var pv DeletePreview
	if id != PaneTree {
		// File sizes are already listed locally.
		for _, t := range targets {
			for _, it := range b.fileItems {
				if it.Path == t {
					pv.Files++
					pv.TotalSizeBytes += it.Size
					break
				}
			}
		}
		b.mu.Unlock()
		return &pv, nil
	}
	b.mu.Unlock()

	for _, t := range targets {
		pv.Folders++
		if err := b.walkPreview(ctx, t, &pv, cancelled); err != nil {
			return nil, err
		}
	}
	return &pv, nil
}

func (b *Browser) walkPreview(ctx context.Context, folderPath string, pv *DeletePreview, cancelled func() bool) error {
	if cancelled() {
		return ErrPreviewCancelled
	}
	files, err := b.svc.ListFiles(ctx, folderPath)
	if err != nil {
		return err
	}
	for _, f := range files {
		if f.IsDir {
			continue
		}
		pv.Files++
		pv.TotalSizeBytes += f.Size
	}

	if cancelled() {
		return ErrPreviewCancelled
	}
	kids, err := b.svc.ListChildren(ctx, folderPath)
	if err != nil {
		return err
	}
	for _, k := range kids {
		if !k.IsDir {
			continue
		}
		pv.Folders++
		if err := b.walkPreview(ctx, k.Path, pv, cancelled); err != nil {
			return err
		}
	}
	return nil
}
