// Package importer populates the catalog from a local directory tree and,
// when watching is enabled, keeps it current as the tree changes on disk.
package importer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Vincenzoferrara/metadata-remote/internal/events"
	"github.com/Vincenzoferrara/metadata-remote/internal/library"
	"github.com/Vincenzoferrara/metadata-remote/internal/logging"
	"github.com/Vincenzoferrara/metadata-remote/internal/metrics"
	"github.com/Vincenzoferrara/metadata-remote/pkg/models"
	"github.com/Vincenzoferrara/metadata-remote/pkg/protocol"
)

// Importer mirrors a local directory into the catalog.
type Importer struct {
	root        string
	lib         *library.Library
	broadcaster *events.Broadcaster
	log         *zap.Logger

	watcher *fsnotify.Watcher
	wg      sync.WaitGroup
}

// New creates an importer rooted at the library directory.
func New(root string, lib *library.Library, broadcaster *events.Broadcaster) *Importer {
	return &Importer{
		root:        root,
		lib:         lib,
		broadcaster: broadcaster,
		log:         logging.Named("importer"),
	}
}

// Scan walks the library directory and replaces the catalog with what it
// finds on disk.
func (im *Importer) Scan(ctx context.Context) error {
	var mu sync.Mutex
	var nodes []models.Node

	conf := &fastwalk.Config{Follow: true}
	err := fastwalk.Walk(conf, im.root, func(fullPath string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			im.log.Warn("scan: skipping entry", zap.String("path", fullPath), zap.Error(walkErr))
			return nil
		}
		rel := im.relPath(fullPath)
		if rel == "" || isIgnored(d.Name()) {
			return nil
		}
		info, err := fastwalk.StatDirEntry(fullPath, d)
		if err != nil {
			return nil
		}
		node := models.Node{
			Path:    rel,
			IsDir:   info.IsDir(),
			ModTime: info.ModTime().UTC(),
		}
		if !info.IsDir() {
			node.Size = info.Size()
		}
		mu.Lock()
		nodes = append(nodes, node)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", im.root, err)
	}

	if err := im.lib.ReplaceAll(ctx, nodes); err != nil {
		return err
	}
	metrics.RecordImportedNodes(len(nodes))
	im.log.Info("library scan complete",
		zap.String("root", im.root),
		zap.Int("nodes", len(nodes)))
	return nil
}

// Watch starts mirroring filesystem changes into the catalog. Every
// directory in the tree is watched; new subdirectories are added as they
// appear.
func (im *Importer) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	im.watcher = w

	if err := im.watchTree(im.root); err != nil {
		w.Close()
		im.watcher = nil
		return err
	}

	im.wg.Add(1)
	go im.run(ctx)
	im.log.Info("watching library directory", zap.String("root", im.root))
	return nil
}

// Close stops the watcher, if one is running.
func (im *Importer) Close() error {
	if im.watcher == nil {
		return nil
	}
	err := im.watcher.Close()
	im.wg.Wait()
	return err
}

func (im *Importer) watchTree(dir string) error {
	conf := &fastwalk.Config{Follow: false}
	return fastwalk.Walk(conf, dir, func(fullPath string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || !d.IsDir() {
			return nil
		}
		if err := im.watcher.Add(fullPath); err != nil {
			im.log.Warn("watch add failed", zap.String("path", fullPath), zap.Error(err))
		}
		return nil
	})
}

func (im *Importer) run(ctx context.Context) {
	defer im.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-im.watcher.Events:
			if !ok {
				return
			}
			im.handleEvent(ctx, event)
		case err, ok := <-im.watcher.Errors:
			if !ok {
				return
			}
			im.log.Warn("watcher error", zap.Error(err))
		}
	}
}

func (im *Importer) handleEvent(ctx context.Context, event fsnotify.Event) {
	rel := im.relPath(event.Name)
	if rel == "" || isIgnored(filepath.Base(event.Name)) {
		return
	}

	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		info, err := os.Stat(event.Name)
		if err != nil {
			return // already gone
		}
		node := models.Node{Path: rel, IsDir: info.IsDir(), ModTime: info.ModTime().UTC()}
		if !info.IsDir() {
			node.Size = info.Size()
		}
		// Watch new directories before they become visible in the catalog.
		if node.IsDir && event.Has(fsnotify.Create) {
			if err := im.watcher.Add(event.Name); err != nil {
				im.log.Warn("watch add failed", zap.String("path", event.Name), zap.Error(err))
			}
		}
		eventType := protocol.EventCreated
		if _, ok := im.lib.Get(rel); ok {
			eventType = protocol.EventUpdated
		}
		if err := im.lib.Upsert(ctx, node); err != nil {
			im.log.Warn("watch upsert failed", zap.String("path", rel), zap.Error(err))
			return
		}
		metrics.RecordWatchEvent(eventType)
		im.publish(eventType, rel, node.IsDir)

	// A rename shows up as Rename on the old path plus Create on the new
	// one, so both cases reduce to a delete here.
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		node, ok := im.lib.Get(rel)
		if !ok {
			return
		}
		var err error
		if node.IsDir {
			err = im.lib.DeleteFolder(ctx, rel, true)
		} else {
			err = im.lib.DeleteFile(ctx, rel)
		}
		if err != nil {
			im.log.Warn("watch delete failed", zap.String("path", rel), zap.Error(err))
			return
		}
		metrics.RecordWatchEvent(protocol.EventDeleted)
		im.publish(protocol.EventDeleted, rel, node.IsDir)
	}
}

func (im *Importer) publish(eventType, path string, isDir bool) {
	if im.broadcaster == nil {
		return
	}
	im.broadcaster.Publish(protocol.ChangeEvent{
		Type:  eventType,
		Path:  path,
		IsDir: isDir,
	})
}

// relPath converts an absolute on-disk path into a catalog path. The walk
// root itself maps to "".
func (im *Importer) relPath(fullPath string) string {
	rel, err := filepath.Rel(im.root, fullPath)
	if err != nil || rel == "." {
		return ""
	}
	return filepath.ToSlash(rel)
}

// isIgnored filters the temp files the local backend writes before renaming
// into place.
func isIgnored(name string) bool {
	return strings.HasPrefix(name, ".mdr-") && strings.HasSuffix(name, ".tmp")
}
