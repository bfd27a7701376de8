package rest_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/credihogar/catalog/internal/apperr"
	"github.com/credihogar/catalog/internal/client/backend"
	"github.com/credihogar/catalog/internal/client/backend/backendtest"
	"github.com/credihogar/catalog/internal/client/backend/rest"
	"github.com/credihogar/catalog/internal/filestore"
	"github.com/credihogar/catalog/internal/middleware"
	"github.com/credihogar/catalog/internal/models"
	"github.com/credihogar/catalog/internal/repository/memory"
	handler "github.com/credihogar/catalog/internal/server/handler/http"
	"github.com/credihogar/catalog/internal/service"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// newServer runs the real catalog API over an in-memory store.
func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	var h http.Handler
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	store := memory.New()
	dir := t.TempDir()
	files := filestore.NewLocal(dir, srv.URL)
	log := zap.NewNop()

	auth := service.NewAuthService(store.Users(), store.Sessions(), time.Hour)
	catalog := service.NewCatalogService(store.Products(), store.Categories(), files, log)
	uploads := service.NewUploadService(files)
	cookies := sessions.NewCookieStore([]byte("test-secret-test-secret-test-sec"))

	h = handler.NewRouter(
		&handler.AuthHandler{AuthService: auth, Cookies: cookies},
		&handler.ProductHandler{CatalogService: catalog},
		&handler.UploadHandler{UploadService: uploads},
		middleware.SessionAuth(auth, cookies, log),
		dir,
		log,
	)
	return srv
}

func TestContract(t *testing.T) {
	backendtest.Run(t, func(t *testing.T) backendtest.Factory {
		srv := newServer(t)
		return func() backend.Backend { return newClient(t, srv) }
	})
}

func newClient(t *testing.T, srv *httptest.Server) *rest.Client {
	t.Helper()
	c, err := rest.New(srv.URL+"/api", nil, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestAuth_ExpiredSessionSkipsServer(t *testing.T) {
	called := false
	c, err := rest.New("http://example.com/api", &http.Client{Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
		called = true
		return nil, errors.New("unexpected call")
	})}, nil)
	require.NoError(t, err)

	c.Auth().Resume(models.Session{Token: "old", ExpiresAt: time.Now().Add(-time.Minute)})
	current, err := c.Auth().CurrentSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, current)
	assert.False(t, called)
}

func TestProducts_Lifecycle(t *testing.T) {
	ctx := context.Background()
	c := newClient(t, newServer(t))
	_, err := c.Auth().SignUp(ctx, "owner@x.com", "secret1")
	require.NoError(t, err)
	table := c.Table(backend.TableProducts)

	created, err := table.Insert(ctx, models.Record{"name": "Sábana King", "price": 120000, "category": "Sabanas"})
	require.NoError(t, err)
	p, err := models.ProductFromRecord(created)
	require.NoError(t, err)
	require.NotEmpty(t, p.ID)
	assert.False(t, p.CreatedAt.IsZero())

	got, err := table.GetByID(ctx, p.ID)
	require.NoError(t, err)
	fetched, err := models.ProductFromRecord(got)
	require.NoError(t, err)
	assert.Equal(t, p.ID, fetched.ID)
	assert.Equal(t, "Sábana King", fetched.Name)
	assert.Equal(t, 120000.0, fetched.Price)
	assert.Equal(t, "Sabanas", fetched.Category)

	_, err = table.Insert(ctx, models.Record{"name": "Toalla", "price": "35000", "category": "Toallas"})
	require.NoError(t, err)

	recs, err := table.Query(ctx, backend.Query{Filters: map[string]string{"category": "toallas"}})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Toalla", recs[0]["name"])

	recs, err = table.Query(ctx, backend.Query{Filters: map[string]string{"search": "SÁBANA"}})
	require.NoError(t, err)
	require.Len(t, recs, 1)

	updated, err := table.Update(ctx, p.ID, models.Record{"price": 130000})
	require.NoError(t, err)
	up, err := models.ProductFromRecord(updated)
	require.NoError(t, err)
	assert.Equal(t, 130000.0, up.Price)
	assert.Equal(t, p.ID, up.ID)

	require.NoError(t, table.Delete(ctx, p.ID))
	err = table.Delete(ctx, p.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, "Producto no encontrado", err.Error())

	_, err = table.GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCategories(t *testing.T) {
	ctx := context.Background()
	c := newClient(t, newServer(t))

	recs, err := c.Table(backend.TableCategories).Query(ctx, backend.Query{})
	require.NoError(t, err)
	assert.Len(t, recs, len(models.DefaultCategories))

	_, err = c.Table(backend.TableCategories).Insert(ctx, models.Record{"name": "Nueva"})
	assert.Equal(t, http.StatusMethodNotAllowed, apperr.HTTPStatus(err))

	_, err = c.Table("orders").Query(ctx, backend.Query{})
	assert.ErrorIs(t, err, apperr.ErrBackend)
}

func TestFiles_UploadedImageIsServed(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t)
	c := newClient(t, srv)
	_, err := c.Auth().SignUp(ctx, "owner@x.com", "secret1")
	require.NoError(t, err)

	path, err := c.Files().Upload(ctx, backend.BucketProducts, backend.File{Name: "a.png", Body: bytes.NewReader(backendtest.PNG(t))})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, "uploads/products/"), path)

	u := c.Files().PublicURL(backend.BucketProducts, path)
	assert.True(t, strings.HasPrefix(u, srv.URL+"/uploads/"), u)
	resp, err := http.Get(u)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCookieSessionWithoutBearer(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t)
	c := newClient(t, srv)
	sess, err := c.Auth().SignUp(ctx, "owner@x.com", "secret1")
	require.NoError(t, err)

	// Only the cookie jar carries the credential from here on.
	c.Auth().Resume(models.Session{User: sess.User, ExpiresAt: sess.ExpiresAt})
	current, err := c.Auth().CurrentSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, sess.User.ID, current.User.ID)
}

func TestPublicURL(t *testing.T) {
	c, err := rest.New("https://shop.example/api", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example/uploads/products/x.png", c.Files().PublicURL(backend.BucketProducts, "uploads/products/x.png"))
	assert.Equal(t, "https://cdn.example/x.png", c.Files().PublicURL(backend.BucketProducts, "https://cdn.example/x.png"))
}

func TestTransportError(t *testing.T) {
	c, err := rest.New("http://example.com/api", &http.Client{Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("network down")
	})}, nil)
	require.NoError(t, err)

	_, err = c.Table(backend.TableProducts).Query(context.Background(), backend.Query{})
	assert.ErrorIs(t, err, apperr.ErrTransport)
	assert.Contains(t, err.Error(), "network down")
}

func TestBackendErrorWithoutPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := rest.New(srv.URL+"/api", nil, nil)
	require.NoError(t, err)
	_, err = c.Table(backend.TableProducts).Query(context.Background(), backend.Query{})
	assert.ErrorIs(t, err, apperr.ErrBackend)
	assert.Equal(t, http.StatusText(http.StatusBadGateway), err.Error())
}

func TestSignOut_WinsOverInFlightSessionCheck(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	var mu sync.Mutex
	var lastBearer string
	c, err := rest.New("http://catalog.test/api", &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		mu.Lock()
		lastBearer = req.Header.Get("Authorization")
		mu.Unlock()
		body := `{}`
		switch req.URL.Query().Get("action") {
		case "session":
			started <- struct{}{}
			<-release
			body = `{"authenticated":true,"user":{"id":"u1","email":"a@x.com"},"expires_at":"2999-01-01T00:00:00Z"}`
		case "":
			body = `[]`
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": {"application/json"}},
			Body:       io.NopCloser(strings.NewReader(body)),
			Request:    req,
		}, nil
	})}, nil)
	require.NoError(t, err)
	c.Auth().Resume(models.Session{User: models.User{ID: "u1"}, Token: "tok", ExpiresAt: time.Now().Add(time.Hour)})

	type result struct {
		sess *models.Session
		err  error
	}
	checked := make(chan result, 1)
	go func() {
		sess, err := c.Auth().CurrentSession(context.Background())
		checked <- result{sess, err}
	}()
	<-started
	require.NoError(t, c.Auth().SignOut(context.Background()))
	close(release)

	res := <-checked
	require.NoError(t, res.err)
	assert.Nil(t, res.sess)

	_, err = c.Table(backend.TableCategories).Query(context.Background(), backend.Query{})
	require.NoError(t, err)
	mu.Lock()
	assert.Empty(t, lastBearer)
	mu.Unlock()
}

func TestSignOut_ExpiresCookiesInCallerJar(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	hc := &http.Client{Jar: jar}
	c, err := rest.New(srv.URL+"/api", hc, nil)
	require.NoError(t, err)

	_, err = c.Auth().SignUp(ctx, "owner@x.com", "secret1")
	require.NoError(t, err)
	u, err := url.Parse(srv.URL + "/api/")
	require.NoError(t, err)
	require.NotEmpty(t, jar.Cookies(u))

	require.NoError(t, c.Auth().SignOut(ctx))
	assert.Same(t, jar, hc.Jar)
	assert.Empty(t, jar.Cookies(u))

	current, err := c.Auth().CurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestNew_LeavesCallerClientUntouched(t *testing.T) {
	hc := &http.Client{Timeout: time.Second}
	_, err := rest.New("http://catalog.test/api", hc, nil)
	require.NoError(t, err)
	assert.Nil(t, hc.Jar)
}

func TestForget_DropsBearer(t *testing.T) {
	var bearer string
	c, err := rest.New("http://catalog.test/api", &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		bearer = req.Header.Get("Authorization")
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(`[]`)), Request: req}, nil
	})}, nil)
	require.NoError(t, err)

	c.Auth().Resume(models.Session{Token: "tok", ExpiresAt: time.Now().Add(time.Hour)})
	_, err = c.Table(backend.TableCategories).Query(context.Background(), backend.Query{})
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", bearer)

	c.Auth().Forget()
	_, err = c.Table(backend.TableCategories).Query(context.Background(), backend.Query{})
	require.NoError(t, err)
	assert.Empty(t, bearer)
}
