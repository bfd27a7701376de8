// Package backend defines the capability interface every catalog backend
// implements: authentication, table queries and mutations, and file buckets.
//
// All variants classify their failures into the apperr taxonomy so callers
// cannot tell which backend is active.
package backend

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/credihogar/catalog/internal/apperr"
	"github.com/credihogar/catalog/internal/models"
)

// Tables and buckets known to every backend.
const (
	TableProducts   = "products"
	TableCategories = "categories"
	BucketProducts  = "products"
)

// Backend is the uniform entry point to a catalog store.
type Backend interface {
	Auth() Auth
	Table(name string) Table
	Files() Files
}

// Auth manages the backend credential.
type Auth interface {
	SignIn(ctx context.Context, email, password string) (models.Session, error)
	SignUp(ctx context.Context, email, password string) (models.Session, error)
	// SignOut drops the credential. The local credential is dropped even
	// when the remote call fails.
	SignOut(ctx context.Context) error
	// CurrentSession validates the held credential against the backend. It
	// returns nil without error when there is no valid session.
	CurrentSession(ctx context.Context) (*models.Session, error)
	// Resume installs a previously persisted credential without a round trip.
	Resume(sess models.Session)
	// Forget drops the held credential without a round trip.
	Forget()
}

// Order sorts a query.
type Order struct {
	Column    string
	Ascending bool
}

// Query selects records. Filters are equality or search constraints keyed by
// column; the products table understands "category" and "search".
type Query struct {
	Filters map[string]string
	Order   Order
}

// Table exposes the rows of one table as Records.
type Table interface {
	Query(ctx context.Context, q Query) ([]models.Record, error)
	GetByID(ctx context.Context, id string) (models.Record, error)
	// Insert returns the stored record with its server-assigned id and
	// timestamps.
	Insert(ctx context.Context, rec models.Record) (models.Record, error)
	// Update applies a partial record and returns the stored result.
	Update(ctx context.Context, id string, rec models.Record) (models.Record, error)
	Delete(ctx context.Context, id string) error
}

// File is an upload payload.
type File struct {
	Name string
	Size int64
	Body io.Reader
}

// Files stores objects in named buckets.
type Files interface {
	// Upload stores f and returns a path accepted by PublicURL.
	Upload(ctx context.Context, bucket string, f File) (string, error)
	// PublicURL resolves a stored path into an absolute URL.
	PublicURL(bucket, path string) string
}

// ProductFilter converts q into the server-side product filter.
func ProductFilter(q Query) models.ProductFilter {
	return models.ProductFilter{
		Category:  q.Filters[models.FieldCategory],
		Search:    q.Filters["search"],
		OrderBy:   q.Order.Column,
		Ascending: q.Order.Ascending,
	}
}

// IsAbsolute reports whether path is already a full URL.
func IsAbsolute(path string) bool {
	if strings.HasPrefix(path, "data:") {
		return true
	}
	scheme, _, ok := strings.Cut(path, "://")
	return ok && scheme != "" && !strings.Contains(scheme, "/")
}

// ReadOnly returns a Table that answers every mutation with 405. Reads are
// served by list.
func ReadOnly(list func(ctx context.Context) ([]models.Record, error)) Table {
	return readOnly{list: list}
}

// Unknown returns a Table that fails every call for an unknown table name.
func Unknown(name string) Table {
	return readOnly{list: func(context.Context) ([]models.Record, error) {
		return nil, apperr.Backend(http.StatusBadRequest, "Tabla desconocida: "+name)
	}}
}

type readOnly struct {
	list func(ctx context.Context) ([]models.Record, error)
}

func (t readOnly) Query(ctx context.Context, _ Query) ([]models.Record, error) {
	return t.list(ctx)
}

func (t readOnly) GetByID(ctx context.Context, id string) (models.Record, error) {
	recs, err := t.list(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range recs {
		if r[models.FieldID] == id {
			return r, nil
		}
	}
	return nil, apperr.NotFound("Registro no encontrado")
}

func (readOnly) Insert(context.Context, models.Record) (models.Record, error) {
	return nil, notAllowed()
}

func (readOnly) Update(context.Context, string, models.Record) (models.Record, error) {
	return nil, notAllowed()
}

func (readOnly) Delete(context.Context, string) error {
	return notAllowed()
}

func notAllowed() error {
	return apperr.Backend(http.StatusMethodNotAllowed, "Método no permitido")
}

// CategoryRecords converts categories into records.
func CategoryRecords(cats []models.Category) []models.Record {
	out := make([]models.Record, 0, len(cats))
	for _, c := range cats {
		out = append(out, models.Record{models.FieldID: c.ID, models.FieldName: c.Name})
	}
	return out
}
