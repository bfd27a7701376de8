// Package middleware provides HTTP middlewares for authentication and logging.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"github.com/credihogar/catalog/internal/models"
)

type ctxKey string

const sessionKey ctxKey = "session"

// CookieName is the name of the browser session cookie.
const CookieName = "credihogar_session"

// CookieTokenKey is the cookie session value holding the bearer token.
const CookieTokenKey = "token"

// TokenVerifier resolves a bearer token into a live session.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (models.Session, error)
}

// SessionAuth resolves the caller's principal from an
// "Authorization: Bearer" header or, failing that, the session cookie, and
// stores it in the request context. Requests without a valid credential
// pass through anonymously; handlers decide whether a principal is required.
func SessionAuth(verifier TokenVerifier, store sessions.Store, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r, store)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			sess, err := verifier.Verify(r.Context(), token)
			if err != nil {
				log.Debug("rejected session token", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

// TokenFromRequest returns the bearer token of r, or the token stored in the
// session cookie when no header is present.
func TokenFromRequest(r *http.Request, store sessions.Store) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if store == nil {
		return ""
	}
	cs, err := store.Get(r, CookieName)
	if err != nil {
		return ""
	}
	token, _ := cs.Values[CookieTokenKey].(string)
	return token
}

// WithSession returns a copy of ctx carrying sess.
func WithSession(ctx context.Context, sess models.Session) context.Context {
	return context.WithValue(ctx, sessionKey, &sess)
}

// GetSessionFromContext returns the verified session, or nil.
func GetSessionFromContext(ctx context.Context) *models.Session {
	s, _ := ctx.Value(sessionKey).(*models.Session)
	return s
}

// GetPrincipalFromContext returns the authenticated user, or nil for
// anonymous requests.
func GetPrincipalFromContext(ctx context.Context) *models.User {
	if s := GetSessionFromContext(ctx); s != nil {
		return &s.User
	}
	return nil
}
