package webdav

import (
	"net/http"

	"golang.org/x/net/webdav"

	"github.com/Vincenzoferrara/metadata-remote/internal/auth"
	"github.com/Vincenzoferrara/metadata-remote/internal/events"
	"github.com/Vincenzoferrara/metadata-remote/internal/library"
	"github.com/Vincenzoferrara/metadata-remote/internal/logging"
	"github.com/Vincenzoferrara/metadata-remote/internal/storage"
)

// NewHandler creates an authenticated WebDAV handler mounted at /webdav.
func NewHandler(lib *library.Library, backend storage.Backend, authHandler *auth.Auth, broadcaster *events.Broadcaster) http.Handler {
	davHandler := &webdav.Handler{
		FileSystem: &CatalogFS{
			lib:         lib,
			backend:     backend,
			broadcaster: broadcaster,
			log:         logging.Named("webdav"),
		},
		LockSystem: webdav.NewMemLS(),
		Prefix:     "/webdav",
	}
	return BasicAuthMiddleware(authHandler)(davHandler)
}
