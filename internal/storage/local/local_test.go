package local

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := New(Config{RootPath: t.TempDir(), CreateDirs: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

func TestPutGetRoundtrip(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	content := "hello storage"

	if err := b.PutObject(ctx, "docs/a.txt", strings.NewReader(content), int64(len(content))); err != nil {
		t.Fatalf("PutObject: %v", err)
	}

	rc, size, err := b.GetObject(ctx, "docs/a.txt", 0, 0)
	if err != nil {
		t.Fatalf("GetObject: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != content || size != int64(len(content)) {
		t.Fatalf("got %q size=%d, want %q size=%d", got, size, content, len(content))
	}
}

func TestGetObjectRange(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	if err := b.PutObject(ctx, "r.bin", bytes.NewReader([]byte("0123456789")), 10); err != nil {
		t.Fatalf("PutObject: %v", err)
	}

	tests := []struct {
		offset, length int64
		want           string
	}{
		{0, 4, "0123"},
		{5, 3, "567"},
		{5, 0, "56789"},
	}
	for _, tc := range tests {
		rc, _, err := b.GetObject(ctx, "r.bin", tc.offset, tc.length)
		if err != nil {
			t.Fatalf("GetObject(%d,%d): %v", tc.offset, tc.length, err)
		}
		got, _ := io.ReadAll(rc)
		rc.Close()
		if string(got) != tc.want {
			t.Fatalf("GetObject(%d,%d) = %q, want %q", tc.offset, tc.length, got, tc.want)
		}
	}
}

func TestPutLeavesNoTempFiles(t *testing.T) {
	b := newBackend(t)
	if err := b.PutObject(context.Background(), "x.txt", strings.NewReader("x"), 1); err != nil {
		t.Fatalf("PutObject: %v", err)
	}
	entries, err := os.ReadDir(b.rootPath)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestCopyAndDelete(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	if err := b.PutObject(ctx, "a/src.txt", strings.NewReader("payload"), 7); err != nil {
		t.Fatalf("PutObject: %v", err)
	}

	if err := b.CopyObject(ctx, "a/src.txt", "b/dst.txt"); err != nil {
		t.Fatalf("CopyObject: %v", err)
	}
	ok, err := b.ObjectExists(ctx, "b/dst.txt")
	if err != nil || !ok {
		t.Fatalf("copied object missing: ok=%t err=%v", ok, err)
	}

	if err := b.DeleteObject(ctx, "a/src.txt"); err != nil {
		t.Fatalf("DeleteObject: %v", err)
	}
	ok, _ = b.ObjectExists(ctx, "a/src.txt")
	if ok {
		t.Fatal("source still exists after delete")
	}
	// Deleting a missing object is not an error.
	if err := b.DeleteObject(ctx, "a/src.txt"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}
