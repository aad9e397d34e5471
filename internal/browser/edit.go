package browser

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// EditKind identifies what an inline rename edits.
type EditKind int

const (
	EditNone EditKind = iota
	EditFile
	EditFolder
)

// editState tracks the single inline rename that may be active at a time.
// The edit stays recorded while a submitted save is in flight so a second
// edit cannot start underneath it.
type editState struct {
	kind   EditKind
	path   string
	saving bool
}

var errNoActiveEdit = errors.New("no rename in progress")

// EditState reports the active inline rename, if any.
func (b *Browser) EditState() (EditKind, string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.edit.kind, b.edit.path
}

// StartRename opens an inline rename for the given item. It reports false
// without side effects when another edit is already active or the item is
// not visible in its pane.
func (b *Browser) StartRename(kind EditKind, path string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.edit.kind != EditNone {
		b.log.Debug("rename already active",
			zap.String("active", b.edit.path),
			zap.String("requested", path))
		return false
	}
	switch kind {
	case EditFolder:
		if b.treePane.visibleIndex(path) < 0 {
			return false
		}
	case EditFile:
		if b.filePane.visibleIndex(path) < 0 {
			return false
		}
	default:
		return false
	}
	b.edit = editState{kind: kind, path: path}
	return true
}

// CancelRename abandons the active inline rename and returns to normal.
func (b *Browser) CancelRename() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.edit = editState{}
}

// SubmitRename commits the active inline rename with the entered name. The
// edit stays recorded until the save resolves and then returns to normal
// whatever the outcome; a name conflict hands off to ConfirmMerge or
// CancelMerge like any other folder rename.
func (b *Browser) SubmitRename(ctx context.Context, newName string) (TransferOutcome, error) {
	b.mu.Lock()
	if b.edit.kind == EditNone || b.edit.saving {
		b.mu.Unlock()
		return TransferFailed, errNoActiveEdit
	}
	kind, path := b.edit.kind, b.edit.path
	b.edit.saving = true
	b.mu.Unlock()

	var (
		outcome TransferOutcome
		err     error
	)
	if kind == EditFolder {
		outcome, err = b.renameFolder(ctx, path, newName)
	} else {
		outcome, err = b.renameFile(ctx, path, newName)
	}

	b.mu.Lock()
	b.edit = editState{}
	b.mu.Unlock()
	return outcome, err
}
