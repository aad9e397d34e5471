package browser

import (
	"context"
	"reflect"
	"testing"

	"github.com/Vincenzoferrara/metadata-remote/pkg/client"
	"github.com/Vincenzoferrara/metadata-remote/pkg/models"
)

func TestStartRenameRequiresVisibleIdleTarget(t *testing.T) {
	f := newFixture()
	b, _ := newTestBrowser(t, f)

	if !b.StartRename(EditFolder, "docs") {
		t.Fatal("visible folder should be editable")
	}
	if b.StartRename(EditFolder, "music") {
		t.Fatal("a second edit must not start while one is active")
	}
	if kind, path := b.EditState(); kind != EditFolder || path != "docs" {
		t.Fatalf("edit state = %v %q", kind, path)
	}

	b.CancelRename()
	if kind, _ := b.EditState(); kind != EditNone {
		t.Fatalf("edit state after cancel = %v", kind)
	}

	// Collapsed descendants are not visible, files pane knows only the
	// current listing.
	if b.StartRename(EditFolder, "docs/reports") {
		t.Fatal("hidden folder should not be editable")
	}
	if b.StartRename(EditFile, "music/song.mp3") {
		t.Fatal("file outside the listing should not be editable")
	}
	if !b.StartRename(EditFile, "docs/a.txt") {
		t.Fatal("listed file should be editable")
	}
}

func TestSubmitRenameFile(t *testing.T) {
	f := newFixture()
	b, _ := newTestBrowser(t, f)
	ctx := context.Background()

	if !b.StartRename(EditFile, "docs/a.txt") {
		t.Fatal("StartRename failed")
	}
	outcome, err := b.SubmitRename(ctx, "alpha.txt")
	if err != nil || outcome != TransferApplied {
		t.Fatalf("outcome = %v, err = %v", outcome, err)
	}
	if kind, _ := b.EditState(); kind != EditNone {
		t.Fatalf("edit state = %v, want none after the save resolves", kind)
	}
	if got := rowNames(b.FileRows()); !reflect.DeepEqual(got, []string{"alpha.txt", "b.txt", "c.pdf"}) {
		t.Fatalf("file rows = %v", got)
	}
}

func TestSubmitRenameWithoutEditFails(t *testing.T) {
	f := newFixture()
	b, _ := newTestBrowser(t, f)

	outcome, err := b.SubmitRename(context.Background(), "anything")
	if outcome != TransferFailed || err == nil {
		t.Fatalf("outcome = %v, err = %v", outcome, err)
	}
}

func TestSubmitRenameValidationReturnsToNormal(t *testing.T) {
	f := newFixture()
	b, _ := newTestBrowser(t, f)
	ctx := context.Background()

	if !b.StartRename(EditFolder, "docs") {
		t.Fatal("StartRename failed")
	}
	outcome, err := b.SubmitRename(ctx, "bad/name")
	if outcome != TransferFailed || err == nil {
		t.Fatalf("outcome = %v, err = %v", outcome, err)
	}
	if kind, _ := b.EditState(); kind != EditNone {
		t.Fatalf("edit state = %v, want none", kind)
	}
	// The failed edit releases the slot for the next one.
	if !b.StartRename(EditFolder, "docs") {
		t.Fatal("a new edit should start after a failed submit")
	}
}

func TestSubmitRenameMergeHandoff(t *testing.T) {
	f := newFakeService()
	f.children[""] = []models.Node{folderNode("Music"), folderNode("music")}
	f.files["music"] = []models.Node{fileNode("music/a.mp3", 2, tBase)}
	f.renameFolderFn = func(path, newName string, merge bool) (string, error) {
		return "", &client.FolderExistsError{Path: path}
	}
	b, _ := newTestBrowser(t, f)
	ctx := context.Background()

	if !b.StartRename(EditFolder, "music") {
		t.Fatal("StartRename failed")
	}
	outcome, err := b.SubmitRename(ctx, "Music")
	if err != nil || outcome != TransferNeedsMergeConfirm {
		t.Fatalf("outcome = %v, err = %v", outcome, err)
	}

	// The edit box is gone; the pending decision lives in the transfer flow.
	if kind, _ := b.EditState(); kind != EditNone {
		t.Fatalf("edit state = %v, want none", kind)
	}
	if got := b.TransferState(); got != TransferMergeConfirm {
		t.Fatalf("transfer state = %v", got)
	}
	if got := b.CancelMerge(); got != TransferCancelled {
		t.Fatalf("cancel = %v", got)
	}
}
