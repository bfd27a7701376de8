// Package session holds the client's single active session and persists it
// across restarts.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/credihogar/catalog/internal/apperr"
	"github.com/credihogar/catalog/internal/client/backend"
	"github.com/credihogar/catalog/internal/models"
)

// State is the authentication state of the store.
type State int

const (
	Anonymous State = iota
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// ErrSignInInProgress rejects a sign-in started while another is running.
var ErrSignInInProgress = &apperr.Error{Kind: apperr.KindValidation, Message: "Ya hay un inicio de sesión en curso"}

// Persister is the durable storage of the session.
type Persister interface {
	SaveSession(s models.Session) error
	LoadSession() (*models.Session, error)
	ClearSession() error
}

// Store is the session state machine. It is safe for concurrent use.
type Store struct {
	auth    backend.Auth
	persist Persister
	log     *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	state   State
	current *models.Session
	// epoch changes on every sign in and sign out. A remote check that
	// started under an older epoch is discarded.
	epoch uint64
}

// New returns a Store hydrated from persist. The hydrated session is handed
// to the backend without a round trip; call Verify to validate it.
func New(auth backend.Auth, persist Persister, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{auth: auth, persist: persist, log: log, now: time.Now}
	s.hydrate()
	return s
}

func (s *Store) hydrate() {
	sess, err := s.persist.LoadSession()
	if err != nil {
		s.log.Warn("failed to load stored session", zap.Error(err))
		return
	}
	if sess == nil {
		return
	}
	if sess.Expired(s.now()) {
		s.clearPersisted()
		return
	}
	s.auth.Resume(*sess)
	s.current = sess
	s.state = Authenticated
}

// State returns the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked()
	return s.state
}

// Current returns a copy of the active session, or nil. An expired session
// is destroyed on detection.
func (s *Store) Current() *models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked()
	if s.current == nil {
		return nil
	}
	out := *s.current
	return &out
}

// Principal returns the user of the active session, or nil.
func (s *Store) Principal() *models.User {
	if sess := s.Current(); sess != nil {
		return &sess.User
	}
	return nil
}

// SignIn authenticates with the backend and stores the new session.
func (s *Store) SignIn(ctx context.Context, email, password string) (models.Session, error) {
	return s.authenticate(func() (models.Session, error) {
		return s.auth.SignIn(ctx, email, password)
	})
}

// SignUp registers a new account and stores its session.
func (s *Store) SignUp(ctx context.Context, email, password string) (models.Session, error) {
	return s.authenticate(func() (models.Session, error) {
		return s.auth.SignUp(ctx, email, password)
	})
}

func (s *Store) authenticate(call func() (models.Session, error)) (models.Session, error) {
	s.mu.Lock()
	if s.state == Authenticating {
		s.mu.Unlock()
		return models.Session{}, ErrSignInInProgress
	}
	prev := s.state
	s.state = Authenticating
	s.mu.Unlock()

	sess, err := call()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = prev
		return models.Session{}, err
	}
	s.current = &sess
	s.state = Authenticated
	s.epoch++
	if perr := s.persist.SaveSession(sess); perr != nil {
		s.log.Warn("failed to persist session", zap.Error(perr))
	}
	return sess, nil
}

// SignOut ends the session. Local state is cleared even when the backend
// call fails; that failure is still returned.
func (s *Store) SignOut(ctx context.Context) error {
	err := s.auth.SignOut(ctx)
	s.mu.Lock()
	s.clearLocked()
	s.mu.Unlock()
	if err != nil {
		s.log.Warn("remote sign out failed", zap.Error(err))
	}
	return err
}

// Verify validates the session against the backend. A rejected session is
// destroyed and Verify returns nil. Other failures leave the session in
// place and are returned.
func (s *Store) Verify(ctx context.Context) (*models.Session, error) {
	s.mu.Lock()
	s.expireLocked()
	active, epoch := s.current != nil, s.epoch
	s.mu.Unlock()
	if !active {
		return nil, nil
	}
	sess, err := s.auth.CurrentSession(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		s.log.Debug("discarding session check overtaken by sign in or sign out")
		if s.current == nil {
			return nil, nil
		}
		out := *s.current
		return &out, nil
	}
	if sess == nil {
		s.clearLocked()
		return nil, nil
	}
	if sess.Token == "" && s.current != nil {
		sess.Token = s.current.Token
	}
	s.current = sess
	s.state = Authenticated
	if perr := s.persist.SaveSession(*sess); perr != nil {
		s.log.Warn("failed to persist session", zap.Error(perr))
	}
	out := *sess
	return &out, nil
}

// RequirePrincipal verifies the session remotely and returns its user, or
// an Unauthenticated error.
func (s *Store) RequirePrincipal(ctx context.Context) (*models.User, error) {
	sess, err := s.Verify(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, apperr.Unauthenticated("No autenticado")
	}
	return &sess.User, nil
}

func (s *Store) expireLocked() {
	if s.current != nil && s.current.Expired(s.now()) {
		s.log.Info("session expired", zap.String("user", s.current.User.Email))
		s.auth.Forget()
		s.clearLocked()
	}
}

func (s *Store) clearLocked() {
	s.current = nil
	s.epoch++
	if s.state != Authenticating {
		s.state = Anonymous
	}
	s.clearPersisted()
}

func (s *Store) clearPersisted() {
	if err := s.persist.ClearSession(); err != nil {
		s.log.Warn("failed to clear stored session", zap.Error(err))
	}
}
