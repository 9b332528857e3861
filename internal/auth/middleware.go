package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/myrjola/cdms/internal/contexthelpers"
	"github.com/myrjola/cdms/internal/logging"
)

// Authenticate loads the identity of the session into the request context. It must run inside the session
// manager's LoadAndSave.
func (g *Gate) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		identity, ok := g.Identity(ctx)

		// User has not yet authenticated.
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		r = contexthelpers.AuthenticateContext(r, identity)

		// Add session information to logging context.
		attrs := []slog.Attr{slog.String("username", identity.Username)}
		if token := g.sessionManager.Token(ctx); token != "" {
			attrs = append(attrs, slog.String("session_hash", g.hashSessionToken(token)))
		}
		r = r.WithContext(logging.WithAttrs(r.Context(), attrs...))

		next.ServeHTTP(w, r)
	})
}

// hashSessionToken hashes the token to avoid leaking it in logs.
func (g *Gate) hashSessionToken(token string) string {
	mac := hmac.New(sha256.New, g.hashKey)
	_, _ = mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// RequireAuthentication redirects unauthenticated requests to the login page.
func (g *Gate) RequireAuthentication(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !contexthelpers.IsAuthenticated(r.Context()) {
			g.logger.LogAttrs(r.Context(), slog.LevelDebug, "redirecting unauthenticated request",
				slog.String("uri", r.URL.RequestURI()))
			g.Redirect(w, r, LoginPath)
			return
		}

		w.Header().Add("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// Redirect sends the client to target with 303 See Other, or with the HX-Redirect header for htmx requests.
// The htmx request headers are read from the context populated by go-htmx's middleware.MiddleWare.
func (g *Gate) Redirect(w http.ResponseWriter, r *http.Request, target string) {
	h := g.htmx.NewHandler(w, r)
	if h.Request().HxRequest {
		h.Redirect(target)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
