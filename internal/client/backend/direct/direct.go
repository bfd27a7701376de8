// Package direct implements backend.Backend by calling the catalog services
// in process, the way a managed-store SDK calls its backend without a REST
// hop. Errors are reclassified through their HTTP status so callers observe
// exactly what the rest variant reports.
package direct

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/credihogar/catalog/internal/apperr"
	"github.com/credihogar/catalog/internal/client/backend"
	"github.com/credihogar/catalog/internal/models"
)

// AuthService is the account surface of the managed store.
type AuthService interface {
	Register(ctx context.Context, email, password string) (models.Session, error)
	Login(ctx context.Context, email, password string) (models.Session, error)
	Logout(ctx context.Context, token string) error
	Verify(ctx context.Context, token string) (models.Session, error)
}

// CatalogService is the product and category surface of the managed store.
type CatalogService interface {
	List(ctx context.Context, f models.ProductFilter) ([]models.Product, error)
	Get(ctx context.Context, id string) (models.Product, error)
	Create(ctx context.Context, principal *models.User, rec models.Record) (models.Product, error)
	Update(ctx context.Context, principal *models.User, id string, rec models.Record) (models.Product, error)
	Delete(ctx context.Context, principal *models.User, id string) error
	Categories(ctx context.Context) ([]models.Category, error)
}

// UploadService stores images.
type UploadService interface {
	Upload(ctx context.Context, principal *models.User, filename string, size int64, r io.Reader) (models.StoredImage, error)
}

// Client is an in-process backend.
type Client struct {
	auth      AuthService
	catalog   CatalogService
	uploads   UploadService
	publicURL func(path string) string

	mu      sync.RWMutex
	session *models.Session
	epoch   uint64
	now     func() time.Time
}

// New returns a Client. publicURL resolves stored paths; nil leaves them
// unchanged.
func New(auth AuthService, catalog CatalogService, uploads UploadService, publicURL func(string) string) *Client {
	if publicURL == nil {
		publicURL = func(p string) string { return p }
	}
	return &Client{
		auth:      auth,
		catalog:   catalog,
		uploads:   uploads,
		publicURL: publicURL,
		now:       time.Now,
	}
}

func (c *Client) Auth() backend.Auth { return c }

func (c *Client) Files() backend.Files { return c }

func (c *Client) Table(name string) backend.Table {
	switch name {
	case backend.TableProducts:
		return products{c}
	case backend.TableCategories:
		return backend.ReadOnly(c.categories)
	default:
		return backend.Unknown(name)
	}
}

// classify reduces err to what a remote caller could observe: its status
// and message.
func classify(err error) error {
	if err == nil {
		return nil
	}
	return reclassify(err, apperr.FromStatus)
}

func reclassify(err error, from func(int, string) error) error {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		return from(http.StatusInternalServerError, "Error interno del servidor")
	}
	return from(apperr.HTTPStatus(err), apperr.Message(err))
}

func (c *Client) held() *models.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

func (c *Client) setSession(s *models.Session) {
	c.mu.Lock()
	c.session = s
	c.epoch++
	c.mu.Unlock()
}

// settle installs next if the credential has not changed since epoch and
// returns a copy of the credential now held.
func (c *Client) settle(epoch uint64, next *models.Session) *models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch == epoch {
		c.session = next
	}
	if c.session == nil {
		return nil
	}
	out := *c.session
	return &out
}

// principal resolves the held token the way the server's session middleware
// does: an invalid token makes the caller anonymous.
func (c *Client) principal(ctx context.Context) *models.User {
	held := c.held()
	if held == nil || held.Token == "" {
		return nil
	}
	sess, err := c.auth.Verify(ctx, held.Token)
	if err != nil {
		return nil
	}
	return &sess.User
}

func (c *Client) SignIn(ctx context.Context, email, password string) (models.Session, error) {
	sess, err := c.auth.Login(ctx, email, password)
	if err != nil {
		return models.Session{}, classify(err)
	}
	c.setSession(&sess)
	return sess, nil
}

func (c *Client) SignUp(ctx context.Context, email, password string) (models.Session, error) {
	sess, err := c.auth.Register(ctx, email, password)
	if err != nil {
		return models.Session{}, classify(err)
	}
	c.setSession(&sess)
	return sess, nil
}

func (c *Client) SignOut(ctx context.Context) error {
	var err error
	if held := c.held(); held != nil {
		err = c.auth.Logout(ctx, held.Token)
	}
	c.setSession(nil)
	return classify(err)
}

func (c *Client) CurrentSession(ctx context.Context) (*models.Session, error) {
	c.mu.RLock()
	held, epoch := c.session, c.epoch
	c.mu.RUnlock()
	if held == nil {
		return nil, nil
	}
	if held.Expired(c.now()) {
		return c.settle(epoch, nil), nil
	}
	sess, err := c.auth.Verify(ctx, held.Token)
	if err != nil {
		err = classify(err)
		if apperr.KindOf(err) == apperr.KindUnauthenticated {
			return c.settle(epoch, nil), nil
		}
		return nil, err
	}
	return c.settle(epoch, &sess), nil
}

func (c *Client) Resume(sess models.Session) {
	c.setSession(&sess)
}

func (c *Client) Forget() {
	c.setSession(nil)
}

func (c *Client) categories(ctx context.Context) ([]models.Record, error) {
	cats, err := c.catalog.Categories(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return backend.CategoryRecords(cats), nil
}

func (c *Client) Upload(ctx context.Context, _ string, f backend.File) (string, error) {
	img, err := c.uploads.Upload(ctx, c.principal(ctx), f.Name, f.Size, f.Body)
	if err != nil {
		return "", reclassify(err, apperr.FromUploadStatus)
	}
	return img.URL, nil
}

func (c *Client) PublicURL(_ string, path string) string {
	if backend.IsAbsolute(path) {
		return path
	}
	return c.publicURL(path)
}

type products struct {
	c *Client
}

func (t products) Query(ctx context.Context, q backend.Query) ([]models.Record, error) {
	list, err := t.c.catalog.List(ctx, backend.ProductFilter(q))
	if err != nil {
		return nil, classify(err)
	}
	out := make([]models.Record, 0, len(list))
	for _, p := range list {
		out = append(out, p.Record())
	}
	return out, nil
}

func (t products) GetByID(ctx context.Context, id string) (models.Record, error) {
	p, err := t.c.catalog.Get(ctx, id)
	if err != nil {
		return nil, classify(err)
	}
	return p.Record(), nil
}

func (t products) Insert(ctx context.Context, rec models.Record) (models.Record, error) {
	p, err := t.c.catalog.Create(ctx, t.c.principal(ctx), rec)
	if err != nil {
		return nil, classify(err)
	}
	return p.Record(), nil
}

func (t products) Update(ctx context.Context, id string, rec models.Record) (models.Record, error) {
	p, err := t.c.catalog.Update(ctx, t.c.principal(ctx), id, rec)
	if err != nil {
		return nil, classify(err)
	}
	return p.Record(), nil
}

func (t products) Delete(ctx context.Context, id string) error {
	return classify(t.c.catalog.Delete(ctx, t.c.principal(ctx), id))
}
