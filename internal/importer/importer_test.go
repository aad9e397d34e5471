package importer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Vincenzoferrara/metadata-remote/internal/events"
	"github.com/Vincenzoferrara/metadata-remote/internal/library"
	"github.com/Vincenzoferrara/metadata-remote/internal/logging"
)

func TestMain(m *testing.M) {
	logging.Init(logging.Config{Level: "error", Format: "console"})
	os.Exit(m.Run())
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestScanBuildsCatalog(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "docs", "a.txt"), "hello")
	writeFile(t, filepath.Join(dir, "docs", "reports", "q1.pdf"), "q1")
	writeFile(t, filepath.Join(dir, "music", "song.mp3"), "tune!")
	if err := os.MkdirAll(filepath.Join(dir, "empty"), 0o755); err != nil {
		t.Fatal(err)
	}

	lib := library.New(nil)
	im := New(dir, lib, nil)
	if err := im.Scan(context.Background()); err != nil {
		t.Fatalf("scan: %v", err)
	}

	// docs, docs/a.txt, docs/reports, docs/reports/q1.pdf, music,
	// music/song.mp3, empty
	if got := lib.NodeCount(); got != 7 {
		t.Fatalf("node count = %d, want 7", got)
	}
	node, ok := lib.Get("docs/a.txt")
	if !ok {
		t.Fatal("docs/a.txt missing")
	}
	if node.Size != 5 || node.IsDir {
		t.Errorf("node = %+v", node)
	}
	if reports, ok := lib.Get("docs/reports"); !ok || !reports.IsDir {
		t.Errorf("docs/reports = %+v ok=%v", reports, ok)
	}
}

func TestScanSkipsBackendTempFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "keep.txt"), "x")
	writeFile(t, filepath.Join(dir, ".mdr-123.tmp"), "partial")

	lib := library.New(nil)
	im := New(dir, lib, nil)
	if err := im.Scan(context.Background()); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if _, ok := lib.Get(".mdr-123.tmp"); ok {
		t.Error("temp file should not be imported")
	}
	if _, ok := lib.Get("keep.txt"); !ok {
		t.Error("regular file missing")
	}
}

func TestWatchMirrorsFilesystemChanges(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "docs", "a.txt"), "hello")

	lib := library.New(nil)
	broadcaster := events.NewBroadcaster()
	im := New(dir, lib, broadcaster)
	if err := im.Scan(context.Background()); err != nil {
		t.Fatalf("scan: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := im.Watch(ctx); err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer im.Close()

	ch := broadcaster.Subscribe()
	defer broadcaster.Unsubscribe(ch)

	// A new file lands in the catalog.
	writeFile(t, filepath.Join(dir, "docs", "b.txt"), "fresh")
	waitFor(t, "created file", func() bool {
		_, ok := lib.Get("docs/b.txt")
		return ok
	})

	// And on the event feed.
	select {
	case event := <-ch:
		if event.Path != "docs/b.txt" {
			t.Errorf("event path = %q", event.Path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for change event")
	}

	// Deletion leaves the catalog too.
	if err := os.Remove(filepath.Join(dir, "docs", "b.txt")); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "deleted file", func() bool {
		_, ok := lib.Get("docs/b.txt")
		return !ok
	})
}

func TestWatchFollowsNewDirectories(t *testing.T) {
	dir := t.TempDir()

	lib := library.New(nil)
	im := New(dir, lib, nil)
	if err := im.Scan(context.Background()); err != nil {
		t.Fatalf("scan: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := im.Watch(ctx); err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer im.Close()

	if err := os.MkdirAll(filepath.Join(dir, "albums"), 0o755); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "created folder", func() bool {
		_, ok := lib.Get("albums")
		return ok
	})

	writeFile(t, filepath.Join(dir, "albums", "live.flac"), "pcm")
	waitFor(t, "file in new folder", func() bool {
		_, ok := lib.Get("albums/live.flac")
		return ok
	})
}
