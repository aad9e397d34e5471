package library

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/Vincenzoferrara/metadata-remote/internal/logging"
	"github.com/Vincenzoferrara/metadata-remote/pkg/models"
)

func TestMain(m *testing.M) {
	logging.Init(logging.Config{Level: "error", Format: "console"})
	os.Exit(m.Run())
}

// memStore records every persistence call and can fail selected operations.
type memStore struct {
	nodes   []models.Node
	saved   []string
	deleted []string
	rewrote [][2]string
	fail    map[string]error
}

func newMemStore(nodes ...models.Node) *memStore {
	return &memStore{nodes: nodes, fail: map[string]error{}}
}

func (s *memStore) LoadAll(context.Context) ([]models.Node, error) {
	return s.nodes, s.fail["load"]
}

func (s *memStore) SaveNode(_ context.Context, n models.Node) error {
	if err := s.fail["save"]; err != nil {
		return err
	}
	s.saved = append(s.saved, n.Path)
	return nil
}

func (s *memStore) DeletePath(_ context.Context, path string, recursive bool) error {
	if err := s.fail["delete"]; err != nil {
		return err
	}
	s.deleted = append(s.deleted, fmt.Sprintf("%s recursive=%t", path, recursive))
	return nil
}

func (s *memStore) RewritePrefix(_ context.Context, oldPath, newPath string) error {
	if err := s.fail["rewrite"]; err != nil {
		return err
	}
	s.rewrote = append(s.rewrote, [2]string{oldPath, newPath})
	return nil
}

func (s *memStore) Close() error { return nil }

var tBase = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func folder(path string) models.Node {
	return models.Node{Path: path, IsDir: true}
}

func file(path string, size int64) models.Node {
	return models.Node{Path: path, Size: size, ModTime: tBase}
}

func newCatalog(t *testing.T, nodes ...models.Node) (*Library, *memStore) {
	t.Helper()
	store := newMemStore(nodes...)
	l := New(store)
	if err := l.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return l, store
}

// fixture returns the nodes deliberately out of depth order to exercise
// tree reconstruction.
func fixture() []models.Node {
	return []models.Node{
		file("docs/reports/q1.pdf", 100),
		folder("docs"),
		file("docs/b.txt", 2048),
		folder("music"),
		file("docs/a.txt", 1024),
		folder("docs/reports"),
		file("music/song.mp3", 999),
		folder("pics"),
		file("pics/cat.jpg", 555),
	}
}

func childNames(t *testing.T, l *Library, path string) []string {
	t.Helper()
	children, err := l.Children(path)
	if err != nil {
		t.Fatalf("Children(%q): %v", path, err)
	}
	names := make([]string, len(children))
	for i, c := range children {
		names[i] = c.Name
	}
	return names
}

func TestLoadBuildsTree(t *testing.T) {
	l, _ := newCatalog(t, fixture()...)

	if got := l.NodeCount(); got != 9 {
		t.Fatalf("NodeCount = %d, want 9", got)
	}
	if got := childNames(t, l, ""); !reflect.DeepEqual(got, []string{"docs", "music", "pics"}) {
		t.Fatalf("root children = %v", got)
	}
	if got := childNames(t, l, "docs"); !reflect.DeepEqual(got, []string{"reports", "a.txt", "b.txt"}) {
		t.Fatalf("docs children = %v", got)
	}
	n, ok := l.Get("docs/reports/q1.pdf")
	if !ok || n.IsDir || n.Size != 100 {
		t.Fatalf("Get(q1.pdf) = %+v ok=%t", n, ok)
	}
}

func TestLoadSynthesizesMissingParents(t *testing.T) {
	l, _ := newCatalog(t, file("a/b/c.txt", 7))

	n, ok := l.Get("a/b")
	if !ok || !n.IsDir {
		t.Fatalf("parent a/b not synthesized: %+v ok=%t", n, ok)
	}
	if got := l.NodeCount(); got != 3 {
		t.Fatalf("NodeCount = %d, want 3", got)
	}
}

func TestChildrenOrdersFoldersFirst(t *testing.T) {
	l, _ := newCatalog(t,
		file("zz.txt", 1),
		folder("Beta"),
		file("Alpha.txt", 1),
		folder("alpha"),
	)

	got := childNames(t, l, "")
	want := []string{"alpha", "Beta", "Alpha.txt", "zz.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("root children = %v, want %v", got, want)
	}
}

func TestChildrenErrors(t *testing.T) {
	l, _ := newCatalog(t, fixture()...)

	if _, err := l.Children("ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Children(ghost) err = %v", err)
	}
	if _, err := l.Children("docs/a.txt"); !errors.Is(err, ErrNotFolder) {
		t.Fatalf("Children(file) err = %v", err)
	}
}

func TestStatsExcludeTheFolderItself(t *testing.T) {
	l, _ := newCatalog(t, fixture()...)

	st, err := l.Stats("docs")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := models.FolderStats{FolderCount: 1, FileCount: 3, TotalSizeBytes: 3172}
	if st != want {
		t.Fatalf("Stats(docs) = %+v, want %+v", st, want)
	}

	st, err = l.Stats("")
	if err != nil {
		t.Fatalf("Stats root: %v", err)
	}
	want = models.FolderStats{FolderCount: 4, FileCount: 5, TotalSizeBytes: 4726}
	if st != want {
		t.Fatalf("Stats(root) = %+v, want %+v", st, want)
	}
}

func TestUpsertCreatesAndPersistsParents(t *testing.T) {
	l, store := newCatalog(t)

	err := l.Upsert(context.Background(), file("albums/2026/live.flac", 42))
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	want := []string{"albums", "albums/2026", "albums/2026/live.flac"}
	if !reflect.DeepEqual(store.saved, want) {
		t.Fatalf("saved = %v, want %v", store.saved, want)
	}
	if _, ok := l.Get("albums/2026"); !ok {
		t.Fatal("parent folder missing from catalog")
	}
}

func TestUpsertRejectsKindChange(t *testing.T) {
	l, _ := newCatalog(t, fixture()...)

	if err := l.Upsert(context.Background(), file("docs", 1)); err == nil {
		t.Fatal("expected error turning a folder into a file")
	}
}

func TestRenameFile(t *testing.T) {
	l, store := newCatalog(t, fixture()...)

	newPath, err := l.RenameFile(context.Background(), "docs/a.txt", "notes.txt")
	if err != nil {
		t.Fatalf("RenameFile: %v", err)
	}
	if newPath != "docs/notes.txt" {
		t.Fatalf("newPath = %q", newPath)
	}
	if _, ok := l.Get("docs/a.txt"); ok {
		t.Fatal("old path still present")
	}
	n, ok := l.Get("docs/notes.txt")
	if !ok || n.Size != 1024 {
		t.Fatalf("renamed node = %+v ok=%t", n, ok)
	}
	if !reflect.DeepEqual(store.rewrote, [][2]string{{"docs/a.txt", "docs/notes.txt"}}) {
		t.Fatalf("rewrote = %v", store.rewrote)
	}
}

func TestRenameFileValidation(t *testing.T) {
	l, store := newCatalog(t, fixture()...)

	tests := []struct {
		name    string
		newName string
		wantErr error
	}{
		{"empty", "", ErrInvalidName},
		{"slash", "a/b", ErrInvalidName},
		{"taken", "b.txt", ErrFileExists},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := l.RenameFile(context.Background(), "docs/a.txt", tc.newName)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
	if len(store.rewrote) != 0 {
		t.Fatalf("store touched by rejected renames: %v", store.rewrote)
	}
}

func TestRenameFileUnchangedNameIsNoOp(t *testing.T) {
	l, store := newCatalog(t, fixture()...)

	newPath, err := l.RenameFile(context.Background(), "docs/a.txt", "a.txt")
	if err != nil || newPath != "docs/a.txt" {
		t.Fatalf("got (%q, %v)", newPath, err)
	}
	if len(store.rewrote) != 0 {
		t.Fatalf("store touched by no-op rename: %v", store.rewrote)
	}
}

func TestRenameFolderRewritesSubtree(t *testing.T) {
	l, _ := newCatalog(t, fixture()...)

	newPath, err := l.RenameFolder(context.Background(), "docs", "papers", false)
	if err != nil {
		t.Fatalf("RenameFolder: %v", err)
	}
	if newPath != "papers" {
		t.Fatalf("newPath = %q", newPath)
	}
	for _, gone := range []string{"docs", "docs/reports", "docs/reports/q1.pdf"} {
		if _, ok := l.Get(gone); ok {
			t.Fatalf("%s still present after rename", gone)
		}
	}
	got := l.FilesUnder("papers")
	want := []string{"papers/reports/q1.pdf", "papers/a.txt", "papers/b.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("FilesUnder(papers) = %v, want %v", got, want)
	}
	if got := childNames(t, l, ""); !reflect.DeepEqual(got, []string{"music", "papers", "pics"}) {
		t.Fatalf("root order after rename = %v", got)
	}
}

func TestRenameFolderWithoutMergeRejectsExisting(t *testing.T) {
	l, store := newCatalog(t,
		folder("Music"),
		file("Music/a.mp3", 1),
		folder("music"),
	)

	_, err := l.RenameFolder(context.Background(), "Music", "music", false)
	if !errors.Is(err, ErrFolderExists) {
		t.Fatalf("err = %v, want ErrFolderExists", err)
	}
	if len(store.rewrote)+len(store.saved)+len(store.deleted) != 0 {
		t.Fatal("store touched by rejected rename")
	}
}

func TestMergeConflictsReportEveryCollision(t *testing.T) {
	l, store := newCatalog(t,
		folder("Music"),
		file("Music/b.mp3", 1),
		file("Music/a.mp3", 1),
		folder("Music/live"),
		file("Music/live/x.flac", 1),
		folder("music"),
		file("music/a.mp3", 2),
		file("music/b.mp3", 2),
	)

	_, err := l.RenameFolder(context.Background(), "Music", "music", true)
	mc, ok := AsMergeConflict(err)
	if !ok {
		t.Fatalf("err = %v, want MergeConflictError", err)
	}
	want := []string{"music/a.mp3", "music/b.mp3"}
	if !reflect.DeepEqual(mc.Conflicts, want) {
		t.Fatalf("Conflicts = %v, want %v", mc.Conflicts, want)
	}
	if _, ok := l.Get("Music/a.mp3"); !ok {
		t.Fatal("source changed by a conflicted merge")
	}
	if len(store.saved)+len(store.deleted) != 0 {
		t.Fatal("store touched by a conflicted merge")
	}
}

func TestMergeFoldsSourceIntoDestination(t *testing.T) {
	l, store := newCatalog(t,
		folder("Music"),
		file("Music/a.mp3", 1),
		folder("Music/live"),
		file("Music/live/x.flac", 3),
		folder("music"),
		file("music/b.mp3", 2),
	)

	newPath, err := l.RenameFolder(context.Background(), "Music", "music", true)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if newPath != "music" {
		t.Fatalf("newPath = %q", newPath)
	}
	if _, ok := l.Get("Music"); ok {
		t.Fatal("source folder survived the merge")
	}
	got := l.FilesUnder("music")
	want := []string{"music/live/x.flac", "music/a.mp3", "music/b.mp3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("FilesUnder(music) = %v, want %v", got, want)
	}
	if !reflect.DeepEqual(store.deleted, []string{"Music recursive=true"}) {
		t.Fatalf("deleted = %v", store.deleted)
	}
}

func TestMergeIntoExistingSubfolder(t *testing.T) {
	l, _ := newCatalog(t,
		folder("Music"),
		folder("Music/live"),
		file("Music/live/x.flac", 3),
		folder("music"),
		folder("music/live"),
		file("music/live/y.flac", 4),
	)

	if _, err := l.RenameFolder(context.Background(), "Music", "music", true); err != nil {
		t.Fatalf("merge: %v", err)
	}
	got := l.FilesUnder("music/live")
	want := []string{"music/live/x.flac", "music/live/y.flac"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("FilesUnder(music/live) = %v, want %v", got, want)
	}
}

func TestMoveFile(t *testing.T) {
	l, _ := newCatalog(t, fixture()...)

	newPath, err := l.MoveFile(context.Background(), "docs/a.txt", "music", false)
	if err != nil {
		t.Fatalf("MoveFile: %v", err)
	}
	if newPath != "music/a.txt" {
		t.Fatalf("newPath = %q", newPath)
	}
	if _, ok := l.Get("docs/a.txt"); ok {
		t.Fatal("source survived the move")
	}
	if got := childNames(t, l, "music"); !reflect.DeepEqual(got, []string{"a.txt", "song.mp3"}) {
		t.Fatalf("music children = %v", got)
	}
}

func TestMoveFileCopyKeepsSource(t *testing.T) {
	l, store := newCatalog(t, fixture()...)

	newPath, err := l.MoveFile(context.Background(), "docs/a.txt", "music", true)
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	if _, ok := l.Get("docs/a.txt"); !ok {
		t.Fatal("source removed by copy")
	}
	if _, ok := l.Get(newPath); !ok {
		t.Fatal("copy missing")
	}
	if !reflect.DeepEqual(store.saved, []string{"music/a.txt"}) {
		t.Fatalf("saved = %v", store.saved)
	}
	if len(store.rewrote) != 0 {
		t.Fatalf("copy must not rewrite: %v", store.rewrote)
	}
}

func TestMoveFolderIntoOwnSubtreeRejected(t *testing.T) {
	l, _ := newCatalog(t, fixture()...)

	if _, err := l.MoveFolder(context.Background(), "docs", "docs/reports", false, false); err == nil {
		t.Fatal("expected error moving a folder into its descendant")
	}
	if _, err := l.MoveFolder(context.Background(), "docs", "docs", false, false); err == nil {
		t.Fatal("expected error moving a folder into itself")
	}
}

func TestMoveFolderCopyClonesSubtree(t *testing.T) {
	l, store := newCatalog(t, fixture()...)

	newPath, err := l.MoveFolder(context.Background(), "docs/reports", "music", false, true)
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	if newPath != "music/reports" {
		t.Fatalf("newPath = %q", newPath)
	}
	if _, ok := l.Get("docs/reports/q1.pdf"); !ok {
		t.Fatal("source removed by copy")
	}
	if got := l.FilesUnder("music/reports"); !reflect.DeepEqual(got, []string{"music/reports/q1.pdf"}) {
		t.Fatalf("copied files = %v", got)
	}
	want := []string{"music/reports", "music/reports/q1.pdf"}
	if !reflect.DeepEqual(store.saved, want) {
		t.Fatalf("saved = %v, want %v", store.saved, want)
	}
}

func TestDeleteFolderNonRecursiveRequiresEmpty(t *testing.T) {
	l, _ := newCatalog(t, fixture()...)

	if err := l.DeleteFolder(context.Background(), "docs", false); !errors.Is(err, ErrFolderNotEmpty) {
		t.Fatalf("err = %v, want ErrFolderNotEmpty", err)
	}
	if err := l.DeleteFolder(context.Background(), "docs", true); err != nil {
		t.Fatalf("recursive delete: %v", err)
	}
	if _, ok := l.Get("docs/reports/q1.pdf"); ok {
		t.Fatal("subtree survived recursive delete")
	}
	if got := l.NodeCount(); got != 4 {
		t.Fatalf("NodeCount = %d, want 4", got)
	}
}

func TestDeleteFile(t *testing.T) {
	l, store := newCatalog(t, fixture()...)

	if err := l.DeleteFile(context.Background(), "music/song.mp3"); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if err := l.DeleteFile(context.Background(), "music/song.mp3"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete err = %v", err)
	}
	if err := l.DeleteFile(context.Background(), "docs"); !errors.Is(err, ErrNotFile) {
		t.Fatalf("delete folder as file err = %v", err)
	}
	if !reflect.DeepEqual(store.deleted, []string{"music/song.mp3 recursive=false"}) {
		t.Fatalf("deleted = %v", store.deleted)
	}
}

func TestStoreFailureLeavesCatalogUnchanged(t *testing.T) {
	l, store := newCatalog(t, fixture()...)
	store.fail["rewrite"] = errors.New("connection reset")

	_, err := l.RenameFolder(context.Background(), "docs", "papers", false)
	if err == nil {
		t.Fatal("expected persistence error")
	}
	if _, ok := l.Get("docs/reports/q1.pdf"); !ok {
		t.Fatal("catalog mutated despite store failure")
	}
	if _, ok := l.Get("papers"); ok {
		t.Fatal("new path appeared despite store failure")
	}
}

func TestRootOperationsRejected(t *testing.T) {
	l, _ := newCatalog(t, fixture()...)

	if _, err := l.RenameFolder(context.Background(), "", "x", false); !errors.Is(err, ErrIsRoot) {
		t.Fatalf("rename root err = %v", err)
	}
	if err := l.DeleteFolder(context.Background(), "", true); !errors.Is(err, ErrIsRoot) {
		t.Fatalf("delete root err = %v", err)
	}
	if _, err := l.MoveFolder(context.Background(), "", "docs", false, false); !errors.Is(err, ErrIsRoot) {
		t.Fatalf("move root err = %v", err)
	}
}
