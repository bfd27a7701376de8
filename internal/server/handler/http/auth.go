// Package http provides the REST handlers of the catalog API.
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/sessions"

	"github.com/credihogar/catalog/internal/apperr"
	"github.com/credihogar/catalog/internal/middleware"
	"github.com/credihogar/catalog/internal/models"
)

// AuthService defines the account operations required by AuthHandler.
type AuthService interface {
	Register(ctx context.Context, email, password string) (models.Session, error)
	Login(ctx context.Context, email, password string) (models.Session, error)
	Logout(ctx context.Context, token string) error
	Profile(ctx context.Context, userID string) (models.User, error)
}

// AuthHandler serves /api/auth?action=login|register|logout|session|profile.
type AuthHandler struct {
	AuthService AuthService
	// Cookies stores the browser session cookie. Nil disables cookies and
	// leaves bearer tokens as the only credential.
	Cookies sessions.Store
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionInfo struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type authResponse struct {
	Success bool        `json:"success"`
	User    models.User `json:"user"`
	Session sessionInfo `json:"session"`
}

// Handle dispatches on method and the action query parameter.
func (h *AuthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	action := r.URL.Query().Get("action")
	switch r.Method {
	case http.MethodPost:
		switch action {
		case "login":
			h.signIn(w, r, h.AuthService.Login, http.StatusOK)
		case "register":
			h.signIn(w, r, h.AuthService.Register, http.StatusCreated)
		case "logout":
			h.Logout(w, r)
		default:
			writeError(w, apperr.Validation("Acción no válida"))
		}
	case http.MethodGet:
		switch action {
		case "session":
			h.Session(w, r)
		case "profile":
			h.Profile(w, r)
		default:
			writeError(w, apperr.Validation("Acción no válida"))
		}
	default:
		methodNotAllowed(w)
	}
}

type signInFunc func(ctx context.Context, email, password string) (models.Session, error)

func (h *AuthHandler) signIn(w http.ResponseWriter, r *http.Request, fn signInFunc, status int) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("Email y password son requeridos"))
		return
	}
	sess, err := fn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	h.saveCookie(w, r, sess)
	writeJSON(w, status, authResponse{
		Success: true,
		User:    sess.User,
		Session: sessionInfo{Token: sess.Token, ExpiresAt: sess.ExpiresAt},
	})
}

// Logout revokes the caller's token and clears the cookie. It succeeds even
// for anonymous callers.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.TokenFromRequest(r, h.Cookies); token != "" {
		if err := h.AuthService.Logout(r.Context(), token); err != nil {
			writeError(w, err)
			return
		}
	}
	h.clearCookie(w, r)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Sesión cerrada"})
}

// Session reports the caller's verified principal.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSessionFromContext(r.Context())
	if sess == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"authenticated": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user":          sess.User,
		"expires_at":    sess.ExpiresAt,
	})
}

// Profile returns the caller's user record.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipalFromContext(r.Context())
	if principal == nil {
		writeError(w, apperr.Unauthenticated("No autenticado"))
		return
	}
	u, err := h.AuthService.Profile(r.Context(), principal.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *AuthHandler) saveCookie(w http.ResponseWriter, r *http.Request, sess models.Session) {
	if h.Cookies == nil {
		return
	}
	// Get returns a fresh session alongside a decode error for stale cookies.
	cs, _ := h.Cookies.Get(r, middleware.CookieName)
	cs.Values[middleware.CookieTokenKey] = sess.Token
	cs.Options.MaxAge = int(time.Until(sess.ExpiresAt).Seconds())
	_ = cs.Save(r, w)
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter, r *http.Request) {
	if h.Cookies == nil {
		return
	}
	cs, _ := h.Cookies.Get(r, middleware.CookieName)
	delete(cs.Values, middleware.CookieTokenKey)
	cs.Options.MaxAge = -1
	_ = cs.Save(r, w)
}
