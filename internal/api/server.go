// Package api implements the HTTP server: the catalog read and mutation
// endpoints the explorer engine consumes, the SSE change feed, health, and
// the WebDAV mount.
package api

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Vincenzoferrara/metadata-remote/internal/auth"
	"github.com/Vincenzoferrara/metadata-remote/internal/events"
	"github.com/Vincenzoferrara/metadata-remote/internal/library"
	"github.com/Vincenzoferrara/metadata-remote/internal/logging"
	"github.com/Vincenzoferrara/metadata-remote/internal/metrics"
	"github.com/Vincenzoferrara/metadata-remote/internal/storage"
	"github.com/Vincenzoferrara/metadata-remote/internal/webdav"
	"github.com/Vincenzoferrara/metadata-remote/pkg/models"
	"github.com/Vincenzoferrara/metadata-remote/pkg/paths"
	"github.com/Vincenzoferrara/metadata-remote/pkg/protocol"
)

const version = "1.0"

// Pool gzip writers to reduce allocations on the listing endpoints.
var gzipPool = sync.Pool{
	New: func() any { return gzip.NewWriter(nil) },
}

// Server serves the API over a catalog, a storage backend, and a change
// broadcaster.
type Server struct {
	lib         *library.Library
	backend     storage.Backend
	auth        *auth.Auth
	broadcaster *events.Broadcaster
	log         *zap.Logger
}

// NewServer wires the API handlers.
func NewServer(lib *library.Library, backend storage.Backend, authHandler *auth.Auth, broadcaster *events.Broadcaster) *Server {
	return &Server{
		lib:         lib,
		backend:     backend,
		auth:        authHandler,
		broadcaster: broadcaster,
		log:         logging.Named("api"),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public endpoints
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/v1/auth/token", s.auth.HandleLogin)

	// WebDAV endpoint (has its own basic-auth middleware)
	dav := webdav.NewHandler(s.lib, s.backend, s.auth, s.broadcaster)
	mux.Handle("/webdav/", dav)
	mux.Handle("/webdav", dav)

	// Protected endpoints
	protected := http.NewServeMux()

	protected.HandleFunc("GET /api/v1/tree", s.handleTreeRoot)
	protected.HandleFunc("GET /api/v1/tree/{path...}", s.handleTree)
	protected.HandleFunc("GET /api/v1/files/{path...}", s.handleFiles)
	protected.HandleFunc("GET /api/v1/stats/{path...}", s.handleStats)

	protected.HandleFunc("POST /api/v1/file/rename", s.handleRenameFile)
	protected.HandleFunc("POST /api/v1/folder/rename", s.handleRenameFolder)
	protected.HandleFunc("POST /api/v1/file/move", s.handleMoveFile)
	protected.HandleFunc("POST /api/v1/folder/move", s.handleMoveFolder)
	protected.HandleFunc("DELETE /api/v1/file/{path...}", s.handleDeleteFile)
	protected.HandleFunc("DELETE /api/v1/folder/{path...}", s.handleDeleteFolder)

	protected.HandleFunc("GET /api/v1/events", s.handleEvents)

	mux.Handle("/api/v1/", s.auth.Middleware(protected))

	return metrics.Middleware(logging.Middleware(mux))
}

// ─── Health ─────────────────────────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := protocol.HealthResponse{
		Status:       "ok",
		Version:      version,
		CatalogNodes: s.lib.NodeCount(),
	}
	if dr, ok := s.backend.(storage.DiskReporter); ok {
		if _, free, err := dr.DiskStats(); err == nil {
			resp.DiskFreeBytes = int64(free)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ─── Listings ───────────────────────────────────────────────────────────────

func (s *Server) handleTreeRoot(w http.ResponseWriter, r *http.Request) {
	s.sendListing(w, r, "", true)
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	s.sendListing(w, r, pathParam(r), true)
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	s.sendListing(w, r, pathParam(r), false)
}

// sendListing writes the folder's child folders (or files) in listing order.
func (s *Server) sendListing(w http.ResponseWriter, r *http.Request, path string, folders bool) {
	children, err := s.lib.Children(path)
	if err != nil {
		s.sendLibraryError(w, err)
		return
	}
	items := make([]models.Node, 0, len(children))
	for _, c := range children {
		if c.IsDir == folders {
			items = append(items, c)
		}
	}
	s.sendJSON(w, r, protocol.ListResponse{Items: items})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.lib.Stats(pathParam(r))
	if err != nil {
		s.sendLibraryError(w, err)
		return
	}
	s.sendJSON(w, r, protocol.StatsResponse{
		Status:         protocol.StatusOK,
		FolderCount:    st.FolderCount,
		FileCount:      st.FileCount,
		TotalSizeBytes: st.TotalSizeBytes,
	})
}

// ─── Renames ────────────────────────────────────────────────────────────────

func (s *Server) handleRenameFile(w http.ResponseWriter, r *http.Request) {
	var req protocol.RenameFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	newPath, err := s.lib.RenameFile(r.Context(), req.Path, req.NewName)
	if err != nil {
		s.sendLibraryError(w, err)
		return
	}
	if newPath != req.Path {
		s.moveObject(r.Context(), req.Path, newPath)
		s.publish(protocol.EventMoved, req.Path, newPath, false)
	}
	s.sendJSON(w, r, protocol.RenameResponse{Status: protocol.StatusOK, NewPath: newPath})
}

func (s *Server) handleRenameFolder(w http.ResponseWriter, r *http.Request) {
	var req protocol.RenameFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	target := paths.Join(paths.Parent(req.Path), req.NewName)
	existing, hadTarget := s.lib.Get(target)
	merged := req.Merge && hadTarget && existing.IsDir && target != req.Path

	files := s.lib.FilesUnder(req.Path)
	newPath, err := s.lib.RenameFolder(r.Context(), req.Path, req.NewName, req.Merge)
	if err != nil {
		s.sendLibraryError(w, err)
		return
	}
	if newPath != req.Path {
		s.moveObjects(r.Context(), files, req.Path, newPath)
		s.publish(protocol.EventMoved, req.Path, newPath, true)
	}
	s.sendJSON(w, r, protocol.RenameResponse{
		Status:  protocol.StatusOK,
		NewPath: newPath,
		Merged:  merged,
	})
}

// ─── Moves ──────────────────────────────────────────────────────────────────

func (s *Server) handleMoveFile(w http.ResponseWriter, r *http.Request) {
	var req protocol.MoveFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	newPath, err := s.lib.MoveFile(r.Context(), req.Path, req.Destination, req.Copy)
	if err != nil {
		s.sendLibraryError(w, err)
		return
	}
	if newPath != req.Path {
		if req.Copy {
			s.copyObject(r.Context(), req.Path, newPath)
			s.publish(protocol.EventCreated, newPath, "", false)
		} else {
			s.moveObject(r.Context(), req.Path, newPath)
			s.publish(protocol.EventMoved, req.Path, newPath, false)
		}
	}
	s.sendJSON(w, r, protocol.MoveResponse{Status: protocol.StatusOK, NewPath: newPath})
}

func (s *Server) handleMoveFolder(w http.ResponseWriter, r *http.Request) {
	var req protocol.MoveFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	target := paths.Join(req.Destination, paths.Base(req.Path))
	existing, hadTarget := s.lib.Get(target)
	merged := req.Merge && hadTarget && existing.IsDir && target != req.Path

	files := s.lib.FilesUnder(req.Path)
	newPath, err := s.lib.MoveFolder(r.Context(), req.Path, req.Destination, req.Merge, req.Copy)
	if err != nil {
		s.sendLibraryError(w, err)
		return
	}
	if newPath != req.Path {
		if req.Copy {
			for _, f := range files {
				s.copyObject(r.Context(), f, paths.Rewrite(f, req.Path, newPath))
			}
			s.publish(protocol.EventCreated, newPath, "", true)
		} else {
			s.moveObjects(r.Context(), files, req.Path, newPath)
			s.publish(protocol.EventMoved, req.Path, newPath, true)
		}
	}
	s.sendJSON(w, r, protocol.MoveResponse{
		Status:  protocol.StatusOK,
		NewPath: newPath,
		Merged:  merged,
	})
}

// ─── Deletes ────────────────────────────────────────────────────────────────

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	path := pathParam(r)
	if err := s.lib.DeleteFile(r.Context(), path); err != nil {
		s.sendLibraryError(w, err)
		return
	}
	if err := s.backend.DeleteObject(r.Context(), path); err != nil {
		s.log.Error("delete object failed", zap.String("path", path), zap.Error(err))
	}
	s.publish(protocol.EventDeleted, path, "", false)
	s.sendJSON(w, r, protocol.DeleteResponse{Status: protocol.StatusOK, Path: path})
}

func (s *Server) handleDeleteFolder(w http.ResponseWriter, r *http.Request) {
	path := pathParam(r)
	recursive := r.URL.Query().Get("recursive") == "true"

	if recursive {
		if claims := auth.GetClaims(r.Context()); claims != nil && !claims.IsAdmin {
			s.sendError(w, http.StatusForbidden, "recursive delete requires administrator access")
			return
		}
	}

	files := s.lib.FilesUnder(path)
	if err := s.lib.DeleteFolder(r.Context(), path, recursive); err != nil {
		s.sendLibraryError(w, err)
		return
	}
	for _, f := range files {
		if err := s.backend.DeleteObject(r.Context(), f); err != nil {
			s.log.Error("delete object failed", zap.String("path", f), zap.Error(err))
		}
	}
	s.publish(protocol.EventDeleted, path, "", true)
	s.sendJSON(w, r, protocol.DeleteResponse{Status: protocol.StatusOK, Path: path})
}

// ─── SSE Events ─────────────────────────────────────────────────────────────

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.sendError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			data, err := events.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		}
	}
}

func (s *Server) publish(eventType, path, newPath string, isDir bool) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.Publish(protocol.ChangeEvent{
		Type:    eventType,
		Path:    path,
		NewPath: newPath,
		IsDir:   isDir,
	})
}

// ─── Storage coordination ───────────────────────────────────────────────────

// moveObject relocates a stored object after a catalog move. Failures are
// logged, not propagated: the catalog is the source of truth and a full
// import reconciles strays.
func (s *Server) moveObject(ctx context.Context, oldKey, newKey string) {
	if err := s.backend.CopyObject(ctx, oldKey, newKey); err != nil {
		metrics.RecordTransfer("error")
		s.log.Error("copy object failed",
			zap.String("src", oldKey), zap.String("dst", newKey), zap.Error(err))
		return
	}
	if err := s.backend.DeleteObject(ctx, oldKey); err != nil {
		s.log.Error("delete object failed", zap.String("path", oldKey), zap.Error(err))
	}
	metrics.RecordTransfer("success")
}

// copyObject duplicates a stored object, best effort.
func (s *Server) copyObject(ctx context.Context, srcKey, dstKey string) {
	if err := s.backend.CopyObject(ctx, srcKey, dstKey); err != nil {
		metrics.RecordTransfer("error")
		s.log.Error("copy object failed",
			zap.String("src", srcKey), zap.String("dst", dstKey), zap.Error(err))
		return
	}
	metrics.RecordTransfer("success")
}

// moveObjects relocates every file that lived under a moved folder.
func (s *Server) moveObjects(ctx context.Context, files []string, oldPrefix, newPrefix string) {
	for _, f := range files {
		s.moveObject(ctx, f, paths.Rewrite(f, oldPrefix, newPrefix))
	}
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func pathParam(r *http.Request) string {
	return strings.Trim(r.PathValue("path"), "/")
}

func acceptsGzip(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept-Encoding"), "gzip")
}

func (s *Server) sendJSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if acceptsGzip(r) {
		w.Header().Set("Content-Encoding", "gzip")
		gw := gzipPool.Get().(*gzip.Writer)
		gw.Reset(w)
		json.NewEncoder(gw).Encode(v)
		gw.Close()
		gzipPool.Put(gw)
		return
	}
	json.NewEncoder(w).Encode(v)
}

// sendLibraryError maps catalog errors onto the wire contract. The two
// recoverable conflicts carry their exact protocol strings.
func (s *Server) sendLibraryError(w http.ResponseWriter, err error) {
	var mc *library.MergeConflictError
	switch {
	case errors.As(err, &mc):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(protocol.ErrorResponse{
			Error:     protocol.ErrMsgMergeConflicts,
			Code:      http.StatusConflict,
			Conflicts: mc.Conflicts,
		})
	case errors.Is(err, library.ErrFolderExists):
		s.sendError(w, http.StatusConflict, protocol.ErrMsgFolderExists)
	case errors.Is(err, library.ErrFileExists):
		s.sendError(w, http.StatusConflict, library.ErrFileExists.Error())
	case errors.Is(err, library.ErrFolderNotEmpty):
		s.sendError(w, http.StatusConflict, library.ErrFolderNotEmpty.Error())
	case errors.Is(err, library.ErrNotFound):
		s.sendError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, library.ErrNotFolder),
		errors.Is(err, library.ErrNotFile),
		errors.Is(err, library.ErrInvalidName),
		errors.Is(err, library.ErrIsRoot):
		s.sendError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error("operation failed", zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) sendError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(protocol.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
