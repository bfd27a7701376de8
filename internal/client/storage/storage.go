// Package storage is the client's durable key/value storage, the analogue of
// browser local storage. It keeps the persisted session and the state of the
// offline fallback backend in a single bbolt file.
package storage

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/credihogar/catalog/internal/models"
)

// Keys stored in the bucket.
const (
	KeyUser      = "user"
	KeyToken     = "token"
	KeyExpiresAt = "expires_at"
	KeyState     = "credihogar_data_v1"
)

var bucket = []byte("credihogar")

// Store is a bbolt-backed key/value store.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the storage file at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns a copy of the value at key, or nil when absent.
func (s *Store) Get(key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucket).Get([]byte(key)); v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, err
}

// Put stores v at key.
func (s *Store) Put(key string, v []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), v)
	})
}

// Delete removes keys. Missing keys are ignored.
func (s *Store) Delete(keys ...string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		for _, k := range keys {
			if err := b.Delete([]byte(k)); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveSession persists the principal, token and expiry together.
func (s *Store) SaveSession(sess models.Session) error {
	user, err := json.Marshal(sess.User)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	exp, err := sess.ExpiresAt.MarshalText()
	if err != nil {
		return fmt.Errorf("encode expiry: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if err := b.Put([]byte(KeyUser), user); err != nil {
			return err
		}
		if err := b.Put([]byte(KeyToken), []byte(sess.Token)); err != nil {
			return err
		}
		return b.Put([]byte(KeyExpiresAt), exp)
	})
}

// LoadSession returns the persisted session, or nil when none is stored or
// the stored entries are incomplete.
func (s *Store) LoadSession() (*models.Session, error) {
	var sess *models.Session
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		user, token := b.Get([]byte(KeyUser)), b.Get([]byte(KeyToken))
		if user == nil || len(token) == 0 {
			return nil
		}
		out := models.Session{Token: string(token)}
		if err := json.Unmarshal(user, &out.User); err != nil {
			return nil
		}
		if exp := b.Get([]byte(KeyExpiresAt)); exp != nil {
			if err := out.ExpiresAt.UnmarshalText(exp); err != nil {
				return nil
			}
		}
		sess = &out
		return nil
	})
	return sess, err
}

// ClearSession removes the persisted session.
func (s *Store) ClearSession() error {
	return s.Delete(KeyUser, KeyToken, KeyExpiresAt)
}

// Settings of the offline fallback mode.
type Settings struct {
	WhatsApp  string `json:"whatsapp"`
	AdminPass string `json:"adminPass"`
}

// LocalState is the document kept under KeyState by the fallback backend.
type LocalState struct {
	Products []models.Product `json:"products"`
	Settings Settings         `json:"settings"`
}

// LoadState returns the fallback document. A missing or unreadable document
// yields an empty state.
func (s *Store) LoadState() (LocalState, error) {
	raw, err := s.Get(KeyState)
	if err != nil {
		return LocalState{}, err
	}
	return decodeState(raw), nil
}

// SaveState replaces the fallback document.
func (s *Store) SaveState(st LocalState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	return s.Put(KeyState, raw)
}

// UpdateState applies fn to the fallback document inside one transaction.
// Nothing is written when fn fails.
func (s *Store) UpdateState(fn func(*LocalState) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		st := decodeState(b.Get([]byte(KeyState)))
		if err := fn(&st); err != nil {
			return err
		}
		raw, err := json.Marshal(st)
		if err != nil {
			return fmt.Errorf("encode state: %w", err)
		}
		return b.Put([]byte(KeyState), raw)
	})
}

func decodeState(raw []byte) LocalState {
	st := LocalState{Products: []models.Product{}}
	if raw == nil || json.Unmarshal(raw, &st) != nil {
		return LocalState{Products: []models.Product{}}
	}
	if st.Products == nil {
		st.Products = []models.Product{}
	}
	return st
}
