// Package webdav exposes the catalog over WebDAV. Listings and metadata come
// from the in-memory catalog; file content is read from and written to the
// storage backend.
package webdav

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/webdav"

	"github.com/Vincenzoferrara/metadata-remote/internal/events"
	"github.com/Vincenzoferrara/metadata-remote/internal/library"
	"github.com/Vincenzoferrara/metadata-remote/internal/storage"
	"github.com/Vincenzoferrara/metadata-remote/pkg/models"
	"github.com/Vincenzoferrara/metadata-remote/pkg/paths"
	"github.com/Vincenzoferrara/metadata-remote/pkg/protocol"
)

// CatalogFS implements webdav.FileSystem over the catalog and a storage
// backend.
type CatalogFS struct {
	lib         *library.Library
	backend     storage.Backend
	broadcaster *events.Broadcaster
	log         *zap.Logger
}

var _ webdav.FileSystem = (*CatalogFS)(nil)

// cleanName converts a WebDAV path into a catalog path: forward slashes, no
// leading slash, "" for the root.
func cleanName(name string) string {
	return strings.Trim(path.Clean("/"+name), "/")
}

// Mkdir creates a folder.
func (fs *CatalogFS) Mkdir(ctx context.Context, name string, perm os.FileMode) error {
	p := cleanName(name)
	if p == "" {
		return nil
	}

	err := fs.lib.Upsert(ctx, models.Node{
		Path:    p,
		Name:    paths.Base(p),
		IsDir:   true,
		ModTime: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	fs.publish(protocol.EventCreated, p, "", true)
	return nil
}

// OpenFile opens or creates a file.
func (fs *CatalogFS) OpenFile(ctx context.Context, name string, flag int, perm os.FileMode) (webdav.File, error) {
	p := cleanName(name)

	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC) != 0 {
		return &CatalogFile{
			fs:       fs,
			name:     p,
			writable: true,
			buf:      &bytes.Buffer{},
			ctx:      ctx,
		}, nil
	}

	node, ok := fs.lib.Get(p)
	if !ok {
		return nil, os.ErrNotExist
	}
	return &CatalogFile{fs: fs, name: p, node: node, ctx: ctx}, nil
}

// RemoveAll removes a file or a folder subtree.
func (fs *CatalogFS) RemoveAll(ctx context.Context, name string) error {
	p := cleanName(name)
	if p == "" {
		return errors.New("cannot remove root")
	}

	node, ok := fs.lib.Get(p)
	if !ok {
		return os.ErrNotExist
	}

	if node.IsDir {
		files := fs.lib.FilesUnder(p)
		if err := fs.lib.DeleteFolder(ctx, p, true); err != nil {
			return err
		}
		for _, f := range files {
			if err := fs.backend.DeleteObject(ctx, f); err != nil {
				fs.log.Error("delete object failed", zap.String("path", f), zap.Error(err))
			}
		}
		fs.publish(protocol.EventDeleted, p, "", true)
		return nil
	}

	if err := fs.lib.DeleteFile(ctx, p); err != nil {
		return err
	}
	if err := fs.backend.DeleteObject(ctx, p); err != nil {
		fs.log.Error("delete object failed", zap.String("path", p), zap.Error(err))
	}
	fs.publish(protocol.EventDeleted, p, "", false)
	return nil
}

// Rename moves a file. Folder renames are not supported here; the move
// endpoints handle those with merge semantics.
func (fs *CatalogFS) Rename(ctx context.Context, oldName, newName string) error {
	src := cleanName(oldName)
	dst := cleanName(newName)
	if src == "" || dst == "" {
		return errors.New("cannot rename root")
	}

	node, ok := fs.lib.Get(src)
	if !ok {
		return os.ErrNotExist
	}
	if node.IsDir {
		return errors.New("directory rename not supported over WebDAV")
	}

	cur := src
	if paths.Parent(dst) != paths.Parent(cur) {
		moved, err := fs.lib.MoveFile(ctx, cur, paths.Parent(dst), false)
		if err != nil {
			return err
		}
		fs.moveObject(ctx, cur, moved)
		cur = moved
	}
	if paths.Base(dst) != paths.Base(cur) {
		renamed, err := fs.lib.RenameFile(ctx, cur, paths.Base(dst))
		if err != nil {
			return err
		}
		fs.moveObject(ctx, cur, renamed)
		cur = renamed
	}
	if cur != src {
		fs.publish(protocol.EventMoved, src, cur, false)
	}
	return nil
}

// Stat returns file info for a path.
func (fs *CatalogFS) Stat(ctx context.Context, name string) (os.FileInfo, error) {
	p := cleanName(name)
	if p == "" {
		return &fileInfo{name: "/", isDir: true, modTime: time.Now()}, nil
	}

	node, ok := fs.lib.Get(p)
	if !ok {
		return nil, os.ErrNotExist
	}
	return &fileInfo{
		name:    node.Name,
		size:    node.Size,
		isDir:   node.IsDir,
		modTime: node.ModTime,
	}, nil
}

func (fs *CatalogFS) moveObject(ctx context.Context, oldKey, newKey string) {
	if err := fs.backend.CopyObject(ctx, oldKey, newKey); err != nil {
		fs.log.Error("copy object failed",
			zap.String("src", oldKey), zap.String("dst", newKey), zap.Error(err))
		return
	}
	if err := fs.backend.DeleteObject(ctx, oldKey); err != nil {
		fs.log.Error("delete object failed", zap.String("path", oldKey), zap.Error(err))
	}
}

func (fs *CatalogFS) publish(eventType, p, newPath string, isDir bool) {
	if fs.broadcaster == nil {
		return
	}
	fs.broadcaster.Publish(protocol.ChangeEvent{
		Type:    eventType,
		Path:    p,
		NewPath: newPath,
		IsDir:   isDir,
	})
}

// CatalogFile implements webdav.File. Writes buffer in memory and land in
// storage on Close; reads stream lazily from the backend.
type CatalogFile struct {
	fs       *CatalogFS
	name     string
	node     models.Node
	writable bool
	buf      *bytes.Buffer
	ctx      context.Context
	closed   bool

	// Read state
	reader io.ReadCloser
	offset int64
	size   int64
}

var _ webdav.File = (*CatalogFile)(nil)

func (f *CatalogFile) Close() error {
	if f.reader != nil {
		f.reader.Close()
		f.reader = nil
	}
	if !f.writable || f.closed {
		return nil
	}
	f.closed = true

	content := f.buf.Bytes()
	if err := f.fs.backend.PutObject(f.ctx, f.name, bytes.NewReader(content), int64(len(content))); err != nil {
		return err
	}

	eventType := protocol.EventCreated
	if existing, ok := f.fs.lib.Get(f.name); ok && !existing.IsDir {
		eventType = protocol.EventUpdated
	}

	err := f.fs.lib.Upsert(f.ctx, models.Node{
		Path:    f.name,
		Name:    paths.Base(f.name),
		Size:    int64(len(content)),
		ModTime: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	f.fs.publish(eventType, f.name, "", false)
	f.fs.log.Debug("webdav file written",
		zap.String("path", f.name),
		zap.Int("size", len(content)))
	return nil
}

func (f *CatalogFile) Read(p []byte) (int, error) {
	if f.writable {
		return 0, errors.New("file opened for writing")
	}
	if f.node.IsDir {
		return 0, errors.New("is a directory")
	}

	// Lazy fetch from the storage backend
	if f.reader == nil {
		reader, size, err := f.fs.backend.GetObject(f.ctx, f.name, f.offset, 0)
		if err != nil {
			return 0, err
		}
		f.reader = reader
		f.size = size
	}

	n, err := f.reader.Read(p)
	f.offset += int64(n)
	return n, err
}

func (f *CatalogFile) Write(p []byte) (int, error) {
	if !f.writable {
		return 0, errors.New("file not opened for writing")
	}
	return f.buf.Write(p)
}

func (f *CatalogFile) Seek(offset int64, whence int) (int64, error) {
	var newOffset int64
	switch whence {
	case io.SeekStart:
		newOffset = offset
	case io.SeekCurrent:
		newOffset = f.offset + offset
	case io.SeekEnd:
		newOffset = f.node.Size + offset
	}
	if newOffset < 0 {
		return 0, errors.New("negative seek position")
	}

	// Seeking invalidates an open reader; the next Read re-fetches.
	if f.reader != nil && newOffset != f.offset {
		f.reader.Close()
		f.reader = nil
	}

	f.offset = newOffset
	return newOffset, nil
}

func (f *CatalogFile) Readdir(count int) ([]os.FileInfo, error) {
	if f.writable || !f.node.IsDir {
		return nil, errors.New("not a directory")
	}

	children, err := f.fs.lib.Children(f.name)
	if err != nil {
		return nil, err
	}

	var infos []os.FileInfo
	for _, child := range children {
		infos = append(infos, &fileInfo{
			name:    child.Name,
			size:    child.Size,
			isDir:   child.IsDir,
			modTime: child.ModTime,
		})
	}
	if count > 0 && len(infos) > count {
		infos = infos[:count]
	}
	return infos, nil
}

func (f *CatalogFile) Stat() (os.FileInfo, error) {
	if f.writable {
		return &fileInfo{
			name:    paths.Base(f.name),
			size:    int64(f.buf.Len()),
			modTime: time.Now(),
		}, nil
	}
	name := f.node.Name
	if f.name == "" {
		name = "/"
	}
	return &fileInfo{
		name:    name,
		size:    f.node.Size,
		isDir:   f.node.IsDir,
		modTime: f.node.ModTime,
	}, nil
}

// fileInfo implements os.FileInfo.
type fileInfo struct {
	name    string
	size    int64
	isDir   bool
	modTime time.Time
}

func (fi *fileInfo) Name() string       { return fi.name }
func (fi *fileInfo) Size() int64        { return fi.size }
func (fi *fileInfo) IsDir() bool        { return fi.isDir }
func (fi *fileInfo) ModTime() time.Time { return fi.modTime }
func (fi *fileInfo) Sys() interface{}   { return nil }

func (fi *fileInfo) Mode() os.FileMode {
	if fi.isDir {
		return os.ModeDir | 0755
	}
	return 0644
}
