package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Vincenzoferrara/metadata-remote/internal/metrics"
	"github.com/Vincenzoferrara/metadata-remote/pkg/client"
	"github.com/Vincenzoferrara/metadata-remote/pkg/models"
	"github.com/Vincenzoferrara/metadata-remote/pkg/paths"
	"github.com/Vincenzoferrara/metadata-remote/pkg/tree"
)

// TransferStatus is the state of the move/merge coordinator.
type TransferStatus int

const (
	// TransferIdle means no transfer is in flight.
	TransferIdle TransferStatus = iota
	// TransferRequested means a rename or move request is in flight.
	TransferRequested
	// TransferMergeConfirm means a folder collided by name and the engine
	// is waiting for the user to confirm or cancel a merge.
	TransferMergeConfirm
)

// TransferOutcome reports how a transfer entry point resolved.
type TransferOutcome int

const (
	// TransferApplied: the operation succeeded and local state reflects it.
	TransferApplied TransferOutcome = iota
	// TransferNeedsMergeConfirm: a folder name collision awaits the user's
	// merge decision via ConfirmMerge or CancelMerge.
	TransferNeedsMergeConfirm
	// TransferConflictsReported: a confirmed merge was refused; the
	// conflicting paths are available via Conflicts(). No local state
	// changed.
	TransferConflictsReported
	// TransferCancelled: the user declined the merge; nothing changed.
	TransferCancelled
	// TransferFailed: validation or the remote call failed; nothing changed.
	TransferFailed
)

func (o TransferOutcome) String() string {
	switch o {
	case TransferApplied:
		return "applied"
	case TransferNeedsMergeConfirm:
		return "needs-merge-confirm"
	case TransferConflictsReported:
		return "conflicts-reported"
	case TransferCancelled:
		return "cancelled"
	default:
		return "failed"
	}
}

type opKind int

const (
	opRenameFile opKind = iota
	opRenameFolder
	opMoveFile
	opMoveFolder
)

type transferOp struct {
	kind    opKind
	source  string
	newName string // renames
	dest    string // moves
	copy    bool
}

type transferState struct {
	status    TransferStatus
	op        transferOp
	conflicts []string
}

type dragState struct {
	active bool
	pane   PaneID
	items  []string
}

var errTransferBusy = errors.New("transfer already in progress")

// reservedNames are device names the remote storage cannot represent as
// folders.
var reservedNames = func() map[string]bool {
	m := map[string]bool{"con": true, "prn": true, "aux": true, "nul": true}
	for i := 1; i <= 9; i++ {
		m[fmt.Sprintf("com%d", i)] = true
		m[fmt.Sprintf("lpt%d", i)] = true
	}
	return m
}()

// validateName rejects names no rename request should ever carry: empty
// names, names with a path separator, and (for folders) reserved device
// names. These fail locally; no request is issued.
func validateName(name string, folder bool) error {
	if name == "" {
		return errors.New("name cannot be empty")
	}
	if strings.ContainsRune(name, '/') {
		return errors.New("name cannot contain '/'")
	}
	if folder && reservedNames[strings.ToLower(name)] {
		return fmt.Errorf("%q is a reserved name", name)
	}
	return nil
}

// TransferState returns the coordinator state.
func (b *Browser) TransferState() TransferStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.transfer.status
}

// Conflicts returns the paths reported by the last refused merge.
func (b *Browser) Conflicts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.transfer.conflicts))
	copy(out, b.transfer.conflicts)
	return out
}

// renameFolder runs the folder rename flow: validate locally, request the
// rename, and either apply the new path locally or hand over to the merge
// confirmation flow on a name collision.
func (b *Browser) renameFolder(ctx context.Context, source, newName string) (TransferOutcome, error) {
	b.mu.Lock()
	if b.transfer.status != TransferIdle {
		b.mu.Unlock()
		return TransferFailed, errTransferBusy
	}
	if err := validateName(newName, true); err != nil {
		b.mu.Unlock()
		metrics.RecordTransfer("rejected")
		return TransferFailed, err
	}
	if paths.Base(source) == newName {
		b.mu.Unlock()
		return TransferApplied, nil
	}
	b.transfer = transferState{
		status: TransferRequested,
		op:     transferOp{kind: opRenameFolder, source: source, newName: newName},
	}
	b.mu.Unlock()

	newPath, err := b.svc.RenameFolder(ctx, source, newName, false)

	b.mu.Lock()
	if err == nil {
		b.applyFolderRenameLocked(source, newPath)
		b.transfer = transferState{}
		b.mu.Unlock()
		metrics.RecordTransfer("applied")
		return TransferApplied, nil
	}
	if _, ok := client.AsFolderExists(err); ok {
		b.transfer.status = TransferMergeConfirm
		b.mu.Unlock()
		metrics.RecordTransfer("merge_confirm")
		return TransferNeedsMergeConfirm, nil
	}
	b.transfer = transferState{}
	b.mu.Unlock()
	metrics.RecordTransfer("error")
	return TransferFailed, err
}

// renameFile runs the file rename flow.
func (b *Browser) renameFile(ctx context.Context, source, newName string) (TransferOutcome, error) {
	b.mu.Lock()
	if b.transfer.status != TransferIdle {
		b.mu.Unlock()
		return TransferFailed, errTransferBusy
	}
	if err := validateName(newName, false); err != nil {
		b.mu.Unlock()
		metrics.RecordTransfer("rejected")
		return TransferFailed, err
	}
	if paths.Base(source) == newName {
		b.mu.Unlock()
		return TransferApplied, nil
	}
	b.transfer = transferState{
		status: TransferRequested,
		op:     transferOp{kind: opRenameFile, source: source, newName: newName},
	}
	b.mu.Unlock()

	newPath, err := b.svc.RenameFile(ctx, source, newName)

	b.mu.Lock()
	b.transfer = transferState{}
	if err != nil {
		b.mu.Unlock()
		metrics.RecordTransfer("error")
		return TransferFailed, err
	}
	for i := range b.fileItems {
		if b.fileItems[i].Path == source {
			b.fileItems[i].Path = newPath
			b.fileItems[i].Name = paths.Base(newPath)
			break
		}
	}
	b.filePane.rewritePath(source, newPath)
	b.rebuildLocked()
	b.mu.Unlock()
	metrics.RecordTransfer("applied")
	return TransferApplied, nil
}

// ConfirmMerge re-issues the pending colliding operation with merge enabled.
// On success no local prefix rewrite happens: a merge interleaves the source
// subtree into the target in ways a rewrite cannot mirror, so the engine
// reloads from the server with the expansion set and selection rewritten to
// their post-merge paths.
func (b *Browser) ConfirmMerge(ctx context.Context) (TransferOutcome, error) {
	b.mu.Lock()
	if b.transfer.status != TransferMergeConfirm {
		b.mu.Unlock()
		return TransferFailed, errors.New("no merge awaiting confirmation")
	}
	op := b.transfer.op
	b.transfer.status = TransferRequested
	b.mu.Unlock()

	var newPath string
	var err error
	switch op.kind {
	case opRenameFolder:
		newPath, err = b.svc.RenameFolder(ctx, op.source, op.newName, true)
	case opMoveFolder:
		newPath, err = b.svc.MoveFolder(ctx, op.source, op.dest, true, op.copy)
	default:
		b.mu.Lock()
		b.transfer = transferState{}
		b.mu.Unlock()
		return TransferFailed, errors.New("pending operation cannot merge")
	}

	if err == nil {
		b.mu.Lock()
		exp := b.expandedListLocked()
		sel := b.currentFolder
		b.transfer = transferState{}
		b.mu.Unlock()

		rewritten := make([]string, 0, len(exp))
		for _, p := range exp {
			rewritten = append(rewritten, paths.Rewrite(p, op.source, newPath))
		}
		metrics.RecordTransfer("merge_applied")
		return TransferApplied, b.reloadPreservingState(ctx, rewritten, paths.Rewrite(sel, op.source, newPath))
	}

	if me, ok := client.AsMergeConflict(err); ok {
		b.mu.Lock()
		b.transfer = transferState{conflicts: me.Conflicts}
		b.mu.Unlock()
		metrics.RecordTransfer("merge_conflicts")
		return TransferConflictsReported, err
	}

	b.mu.Lock()
	b.transfer = transferState{}
	b.mu.Unlock()
	metrics.RecordTransfer("error")
	return TransferFailed, err
}

// CancelMerge declines a pending merge. Nothing was changed remotely or
// locally.
func (b *Browser) CancelMerge() TransferOutcome {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.transfer.status != TransferMergeConfirm {
		return TransferFailed
	}
	b.transfer = transferState{}
	metrics.RecordTransfer("cancelled")
	return TransferCancelled
}

// DragStart begins dragging. If the pressed item is part of the pane's
// selection the whole selection is dragged, otherwise the item alone is
// selected and dragged.
func (b *Browser) DragStart(id PaneID, path string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.pane(id)
	if p.visibleIndex(path) < 0 {
		return false
	}
	if !p.isSelected(path) {
		p.selectSingle(path, b.notifier)
	}
	b.drag = dragState{active: true, pane: id, items: p.selectedInOrder()}
	return true
}

// DragOver reports whether target is a valid drop destination for the
// current drag.
func (b *Browser) DragOver(target string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropTargetValidLocked(target)
}

// DragCancel abandons the drag without dropping.
func (b *Browser) DragCancel() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.drag = dragState{}
}

// dropTargetValidLocked: the target must be a known folder and must not be a
// dragged item itself or live under one.
func (b *Browser) dropTargetValidLocked(target string) bool {
	if !b.drag.active {
		return false
	}
	if tree.Find(b.root, target) == nil {
		return false
	}
	for _, src := range b.drag.items {
		if paths.IsAncestor(src, target) {
			return false
		}
	}
	return true
}

// Drop moves (or with copy set, copies) the dragged items into the target
// folder. A single dragged folder that collides by name enters the merge
// confirmation flow; in a multi-item drop a collision is a terminal failure
// like any other.
func (b *Browser) Drop(ctx context.Context, target string, copy bool) (TransferOutcome, error) {
	b.mu.Lock()
	if !b.dropTargetValidLocked(target) {
		b.drag = dragState{}
		b.mu.Unlock()
		metrics.RecordTransfer("rejected")
		return TransferFailed, fmt.Errorf("invalid drop target %q", target)
	}
	if b.transfer.status != TransferIdle {
		b.mu.Unlock()
		return TransferFailed, errTransferBusy
	}

	items := paths.Roots(b.drag.items)
	isFolder := make(map[string]bool, len(items))
	for _, it := range items {
		isFolder[it] = tree.Find(b.root, it) != nil
	}
	b.drag = dragState{}

	if len(items) == 1 && isFolder[items[0]] {
		src := items[0]
		b.transfer = transferState{
			status: TransferRequested,
			op:     transferOp{kind: opMoveFolder, source: src, dest: target, copy: copy},
		}
		b.mu.Unlock()
		return b.finishFolderMove(ctx, src, target, copy)
	}

	b.transfer = transferState{status: TransferRequested}
	b.mu.Unlock()

	err := b.runBulk(ctx, items, func(ctx context.Context, item string) error {
		if isFolder[item] {
			newPath, err := b.svc.MoveFolder(ctx, item, target, false, copy)
			if err != nil {
				return err
			}
			b.mu.Lock()
			b.applyFolderMoveLocked(item, newPath, copy)
			b.mu.Unlock()
			return nil
		}
		newPath, err := b.svc.MoveFile(ctx, item, target, copy)
		if err != nil {
			return err
		}
		b.mu.Lock()
		b.applyFileMoveLocked(item, newPath, copy)
		b.mu.Unlock()
		return nil
	})

	b.mu.Lock()
	b.transfer = transferState{}
	b.mu.Unlock()
	if err != nil {
		metrics.RecordTransfer("error")
		return TransferFailed, err
	}
	metrics.RecordTransfer("applied")
	return TransferApplied, nil
}

// finishFolderMove completes a single-folder drop, which may divert into the
// merge confirmation flow.
func (b *Browser) finishFolderMove(ctx context.Context, src, target string, copy bool) (TransferOutcome, error) {
	newPath, err := b.svc.MoveFolder(ctx, src, target, false, copy)

	b.mu.Lock()
	if err == nil {
		b.applyFolderMoveLocked(src, newPath, copy)
		b.transfer = transferState{}
		b.mu.Unlock()
		metrics.RecordTransfer("applied")
		return TransferApplied, nil
	}
	if _, ok := client.AsFolderExists(err); ok {
		b.transfer.status = TransferMergeConfirm
		b.mu.Unlock()
		metrics.RecordTransfer("merge_confirm")
		return TransferNeedsMergeConfirm, nil
	}
	b.transfer = transferState{}
	b.mu.Unlock()
	metrics.RecordTransfer("error")
	return TransferFailed, err
}

// rewriteStateLocked rewrites every local reference under oldPath to its new
// location: expansion flags, children-loaded flags, the current folder, the
// file listing, the stats attribution, and both pane selections.
func (b *Browser) rewriteStateLocked(oldPath, newPath string) {
	exp := make(map[string]bool, len(b.expanded))
	for p := range b.expanded {
		exp[paths.Rewrite(p, oldPath, newPath)] = true
	}
	b.expanded = exp

	lc := make(map[string]bool, len(b.loadedChildren))
	for p, v := range b.loadedChildren {
		lc[paths.Rewrite(p, oldPath, newPath)] = v
	}
	b.loadedChildren = lc

	b.currentFolder = paths.Rewrite(b.currentFolder, oldPath, newPath)
	b.statsPath = paths.Rewrite(b.statsPath, oldPath, newPath)
	for i := range b.fileItems {
		b.fileItems[i].Path = paths.Rewrite(b.fileItems[i].Path, oldPath, newPath)
	}

	b.treePane.rewritePrefix(oldPath, newPath)
	b.filePane.rewritePrefix(oldPath, newPath)
}

// applyFolderRenameLocked mirrors a successful non-merge folder rename.
func (b *Browser) applyFolderRenameLocked(oldPath, newPath string) {
	if node := tree.Find(b.root, oldPath); node != nil {
		node.Name = paths.Base(newPath)
		tree.RewritePaths(node, oldPath, newPath)
		if parent := tree.Find(b.root, paths.Parent(newPath)); parent != nil {
			tree.SortChildren(parent)
		}
	}
	b.rewriteStateLocked(oldPath, newPath)
	b.refreshTreeRowsLocked()
	b.rebuildLocked()
	b.notifier.ExpansionChanged(b.expandedListLocked())
}

// applyFolderMoveLocked mirrors a successful non-merge folder move or copy.
func (b *Browser) applyFolderMoveLocked(oldPath, newPath string, copied bool) {
	if copied {
		// The source stays; materialize the copy only where the target's
		// children are already known.
		parent := tree.Find(b.root, paths.Parent(newPath))
		if parent != nil && b.loadedChildren[parent.Path] && tree.Child(parent, paths.Base(newPath)) == nil {
			if src := tree.Find(b.root, oldPath); src != nil {
				clone := cloneSubtree(src)
				clone.Name = paths.Base(newPath)
				tree.RewritePaths(clone, oldPath, newPath)
				b.adoptLoadedFlagsLocked(src, oldPath, newPath)
				tree.InsertChild(parent, clone)
			}
		}
		b.refreshTreeRowsLocked()
		return
	}

	if node := tree.Find(b.root, oldPath); node != nil {
		if oldParent := tree.Find(b.root, paths.Parent(oldPath)); oldParent != nil {
			tree.RemoveChild(oldParent, node.Name)
		}
		node.Name = paths.Base(newPath)
		tree.RewritePaths(node, oldPath, newPath)
		if newParent := tree.Find(b.root, paths.Parent(newPath)); newParent != nil && b.loadedChildren[newParent.Path] {
			tree.InsertChild(newParent, node)
		}
	}
	b.rewriteStateLocked(oldPath, newPath)
	b.refreshTreeRowsLocked()
	b.rebuildLocked()
	b.notifier.ExpansionChanged(b.expandedListLocked())
}

// adoptLoadedFlagsLocked copies children-loaded flags from a source subtree
// onto its copy so the copy's rows don't pretend to be unloaded.
func (b *Browser) adoptLoadedFlagsLocked(src *models.Node, oldPath, newPath string) {
	tree.Walk(src, func(n *models.Node) {
		if b.loadedChildren[n.Path] {
			b.loadedChildren[paths.Rewrite(n.Path, oldPath, newPath)] = true
		}
	})
}

// applyFileMoveLocked mirrors a successful file move or copy in the current
// listing. Listings of other folders are server state and need no mirroring.
func (b *Browser) applyFileMoveLocked(oldPath, newPath string, copied bool) {
	cur := b.currentFolder
	srcListed := paths.Parent(oldPath) == cur
	dstListed := paths.Parent(newPath) == cur

	switch {
	case copied && srcListed && dstListed:
		for _, it := range b.fileItems {
			if it.Path == oldPath {
				dup := it
				dup.Path = newPath
				dup.Name = paths.Base(newPath)
				b.fileItems = append(b.fileItems, dup)
				break
			}
		}
	case copied:
		// Copy elsewhere: nothing listed changes.
	case srcListed && dstListed:
		for i := range b.fileItems {
			if b.fileItems[i].Path == oldPath {
				b.fileItems[i].Path = newPath
				b.fileItems[i].Name = paths.Base(newPath)
				break
			}
		}
		b.filePane.rewritePath(oldPath, newPath)
	case srcListed:
		for i := range b.fileItems {
			if b.fileItems[i].Path == oldPath {
				b.fileItems = append(b.fileItems[:i], b.fileItems[i+1:]...)
				break
			}
		}
	}
	b.rebuildLocked()
}

func cloneSubtree(n *models.Node) *models.Node {
	c := *n
	c.Children = make([]*models.Node, 0, len(n.Children))
	for _, child := range n.Children {
		c.Children = append(c.Children, cloneSubtree(child))
	}
	return &c
}
