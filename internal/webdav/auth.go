package webdav

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Vincenzoferrara/metadata-remote/internal/auth"
	"github.com/Vincenzoferrara/metadata-remote/internal/logging"
	"github.com/Vincenzoferrara/metadata-remote/internal/metrics"
)

// BasicAuthMiddleware authenticates WebDAV requests via Basic Auth, or via
// Bearer token for programmatic access.
func BasicAuthMiddleware(a *auth.Auth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Bearer tokens go through the JWT middleware.
			if strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
				a.Middleware(next).ServeHTTP(w, r)
				return
			}

			username, password, ok := r.BasicAuth()
			if !ok {
				w.Header().Set("WWW-Authenticate", `Basic realm="metadata-remote"`)
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			claims, err := a.ValidateCredentials(username, password)
			if err != nil {
				metrics.RecordAuthAttempt(false)
				logging.L().Warn("webdav auth failed",
					zap.String("username", username),
					zap.Error(err))
				w.Header().Set("WWW-Authenticate", `Basic realm="metadata-remote"`)
				http.Error(w, "Invalid credentials", http.StatusUnauthorized)
				return
			}

			metrics.RecordAuthAttempt(true)
			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		})
	}
}
