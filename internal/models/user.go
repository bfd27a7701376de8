package models

import "time"

// Roles assigned to users.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is an authenticated principal.
type User struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Role    string `json:"role"`
	IsAdmin bool   `json:"is_admin"`
	// CreatedAt is only populated by profile lookups.
	CreatedAt time.Time `json:"created_at,omitzero"`
	// PasswordHash never leaves the server.
	PasswordHash []byte `json:"-"`
}

// CanModify reports whether the principal may change a record owned by ownerID.
func (u *User) CanModify(ownerID string) bool {
	if u == nil {
		return false
	}
	return u.IsAdmin || u.ID == ownerID
}

// Session binds a principal to a bearer credential.
type Session struct {
	User      User      `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session has passed its expiry at now.
// A zero ExpiresAt never expires.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Category is a name-only tag used to partition products.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DefaultCategories is the fixed category set used when the backend provides none.
var DefaultCategories = []string{
	"Accesorios de baño",
	"Almohadas y rellenos",
	"Catálogo navideño",
	"Cobijas",
	"Cojines",
	"Cortinas",
	"Manteleria",
	"Protectores",
	"Sabanas",
	"Tendidos estandar",
	"Tendidos premium",
	"Toallas",
}
