// Package rest implements backend.Backend over the catalog's REST API. The
// credential travels both as a bearer token and as the server's session
// cookie.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/credihogar/catalog/internal/apperr"
	"github.com/credihogar/catalog/internal/client/backend"
	"github.com/credihogar/catalog/internal/models"
)

// UploadField is the multipart field the upload endpoint reads.
const UploadField = "image"

// Client talks to a catalog server rooted at BaseURL (for example
// http://localhost:8080/api).
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger

	mu      sync.RWMutex
	session *models.Session
	epoch   uint64
	now     func() time.Time
}

// New returns a Client. A nil httpClient gets a default client with a cookie
// jar; a client without a jar is copied and the copy gets one.
func New(baseURL string, httpClient *http.Client, log *zap.Logger) (*Client, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		own := *httpClient
		own.Jar = jar
		httpClient = &own
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		log:     log,
		now:     time.Now,
	}, nil
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

type classifier func(status int, msg string) error

type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	classify    classifier
}

// do sends req and decodes a 2xx JSON body into out. Non-2xx answers are
// classified from their {"error": ...} payload.
func (c *Client) do(ctx context.Context, req request, out any) error {
	u := c.baseURL + "/" + req.path
	if len(req.query) > 0 {
		u += "?" + req.query.Encode()
	}
	hr, err := http.NewRequestWithContext(ctx, req.method, u, req.body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	hr.Header.Set("Accept", "application/json")
	if req.contentType != "" {
		hr.Header.Set("Content-Type", req.contentType)
	}
	if token := c.token(); token != "" {
		hr.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(hr)
	if err != nil {
		c.log.Debug("request failed", zap.String("method", req.method), zap.String("path", req.path), zap.Error(err))
		return apperr.Transport(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Transport(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		classify := req.classify
		if classify == nil {
			classify = apperr.FromStatus
		}
		return classify(resp.StatusCode, errorMessage(resp.StatusCode, data))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &apperr.Error{
			Kind:    apperr.KindBackend,
			Status:  resp.StatusCode,
			Message: "Respuesta inválida del servidor",
			Err:     fmt.Errorf("decode %s: %w", req.path, err),
		}
	}
	return nil
}

func errorMessage(status int, body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return http.StatusText(status)
}

func jsonBody(v any) (io.Reader, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	return bytes.NewReader(b), nil
}

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return ""
	}
	return c.session.Token
}

func (c *Client) setSession(s *models.Session) {
	c.mu.Lock()
	c.session = s
	c.epoch++
	c.mu.Unlock()
}

// settle installs next unless the credential changed after epoch was read,
// and returns a copy of whatever is held afterwards.
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

type authResponse struct {
	User    models.User `json:"user"`
	Session struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	} `json:"session"`
}

func (c *Client) SignIn(ctx context.Context, email, password string) (models.Session, error) {
	return c.authenticate(ctx, "login", email, password)
}

func (c *Client) SignUp(ctx context.Context, email, password string) (models.Session, error) {
	return c.authenticate(ctx, "register", email, password)
}

func (c *Client) authenticate(ctx context.Context, action, email, password string) (models.Session, error) {
	body, err := jsonBody(map[string]string{"email": email, "password": password})
	if err != nil {
		return models.Session{}, err
	}
	var resp authResponse
	err = c.do(ctx, request{
		method:      http.MethodPost,
		path:        "auth",
		query:       url.Values{"action": {action}},
		body:        body,
		contentType: "application/json",
	}, &resp)
	if err != nil {
		return models.Session{}, err
	}
	sess := models.Session{User: resp.User, Token: resp.Session.Token, ExpiresAt: resp.Session.ExpiresAt}
	c.setSession(&sess)
	return sess, nil
}

func (c *Client) SignOut(ctx context.Context) error {
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "auth",
		query:  url.Values{"action": {"logout"}},
	}, nil)
	c.setSession(nil)
	c.expireCookies()
	return err
}

// expireCookies removes the cookies the jar holds for the base URL.
func (c *Client) expireCookies() {
	u, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return
	}
	held := c.http.Jar.Cookies(u)
	if len(held) == 0 {
		return
	}
	gone := make([]*http.Cookie, 0, len(held))
	for _, ck := range held {
		gone = append(gone, &http.Cookie{Name: ck.Name, Path: "/", MaxAge: -1})
	}
	c.http.Jar.SetCookies(u, gone)
}

func (c *Client) CurrentSession(ctx context.Context) (*models.Session, error) {
	c.mu.RLock()
	held, epoch := c.session, c.epoch
	c.mu.RUnlock()
	if held != nil && held.Expired(c.now()) {
		return c.settle(epoch, nil), nil
	}

	var resp struct {
		Authenticated bool        `json:"authenticated"`
		User          models.User `json:"user"`
		ExpiresAt     time.Time   `json:"expires_at"`
	}
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "auth",
		query:  url.Values{"action": {"session"}},
	}, &resp)
	if apperr.KindOf(err) == apperr.KindUnauthenticated {
		return c.settle(epoch, nil), nil
	}
	if err != nil {
		return nil, err
	}
	if !resp.Authenticated {
		return c.settle(epoch, nil), nil
	}

	sess := models.Session{User: resp.User, ExpiresAt: resp.ExpiresAt}
	if held != nil {
		sess.Token = held.Token
	}
	return c.settle(epoch, &sess), nil
}

func (c *Client) Resume(sess models.Session) {
	c.setSession(&sess)
}

func (c *Client) Forget() {
	c.setSession(nil)
	c.expireCookies()
}

func (c *Client) categories(ctx context.Context) ([]models.Record, error) {
	var recs []models.Record
	if err := c.do(ctx, request{method: http.MethodGet, path: "categories"}, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// Upload posts f to the upload endpoint. The server chooses the bucket, so
// bucket only documents intent.
func (c *Client) Upload(ctx context.Context, _ string, f backend.File) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(UploadField, f.Name)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f.Body); err != nil {
		return "", apperr.Upload("Error al subir archivo")
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}

	var resp struct {
		URL string `json:"url"`
	}
	err = c.do(ctx, request{
		method:      http.MethodPost,
		path:        "upload",
		body:        &buf,
		contentType: mw.FormDataContentType(),
		classify:    apperr.FromUploadStatus,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", apperr.Upload("Error al subir archivo")
	}
	return resp.URL, nil
}

// PublicURL resolves a stored path against the site root, which is the API
// base without its /api suffix.
func (c *Client) PublicURL(_ string, path string) string {
	if backend.IsAbsolute(path) {
		return path
	}
	root := strings.TrimSuffix(c.baseURL, "/api")
	return root + "/" + strings.TrimLeft(path, "/")
}

type products struct {
	c *Client
}

func (t products) Query(ctx context.Context, q backend.Query) ([]models.Record, error) {
	f := backend.ProductFilter(q)
	params := url.Values{}
	if f.Category != "" {
		params.Set("category", f.Category)
	}
	if f.Search != "" {
		params.Set("search", f.Search)
	}
	if f.OrderBy != "" {
		params.Set("order", f.OrderBy)
		if f.Ascending {
			params.Set("dir", "asc")
		} else {
			params.Set("dir", "desc")
		}
	}
	var recs []models.Record
	if err := t.c.do(ctx, request{method: http.MethodGet, path: backend.TableProducts, query: params}, &recs); err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []models.Record{}
	}
	return recs, nil
}

func (t products) GetByID(ctx context.Context, id string) (models.Record, error) {
	var rec models.Record
	err := t.c.do(ctx, request{
		method: http.MethodGet,
		path:   backend.TableProducts,
		query:  url.Values{"id": {id}},
	}, &rec)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Insert creates the record and re-reads it, since the server answers with
// the id only.
func (t products) Insert(ctx context.Context, rec models.Record) (models.Record, error) {
	body, err := jsonBody(rec)
	if err != nil {
		return nil, err
	}
	var resp struct {
		ID string `json:"id"`
	}
	err = t.c.do(ctx, request{
		method:      http.MethodPost,
		path:        backend.TableProducts,
		body:        body,
		contentType: "application/json",
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, apperr.Backend(http.StatusBadGateway, "Respuesta inválida del servidor")
	}
	return t.GetByID(ctx, resp.ID)
}

func (t products) Update(ctx context.Context, id string, rec models.Record) (models.Record, error) {
	body, err := jsonBody(rec)
	if err != nil {
		return nil, err
	}
	err = t.c.do(ctx, request{
		method:      http.MethodPut,
		path:        backend.TableProducts,
		query:       url.Values{"id": {id}},
		body:        body,
		contentType: "application/json",
	}, nil)
	if err != nil {
		return nil, err
	}
	return t.GetByID(ctx, id)
}

func (t products) Delete(ctx context.Context, id string) error {
	return t.c.do(ctx, request{
		method: http.MethodDelete,
		path:   backend.TableProducts,
		query:  url.Values{"id": {id}},
	}, nil)
}
