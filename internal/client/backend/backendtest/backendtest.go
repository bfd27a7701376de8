// Package backendtest holds the behavioral contract every backend.Backend
// variant must satisfy, written as reusable subtests.
package backendtest

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credihogar/catalog/internal/apperr"
	"github.com/credihogar/catalog/internal/client/backend"
	"github.com/credihogar/catalog/internal/models"
)

// Factory returns a fresh, signed-out client of one shared backend. Each
// call is a separate principal's device.
type Factory func() backend.Backend

// Run executes the contract against the backend built by setup. setup is
// called once per subtest so subtests do not share state.
func Run(t *testing.T, setup func(t *testing.T) Factory) {
	t.Run("RegisterLogout", func(t *testing.T) { registerLogout(t, setup(t)) })
	t.Run("RoundTrip", func(t *testing.T) { roundTrip(t, setup(t)) })
	t.Run("DeleteMissing", func(t *testing.T) { deleteMissing(t, setup(t)) })
	t.Run("Authorization", func(t *testing.T) { authorization(t, setup(t)) })
	t.Run("Validation", func(t *testing.T) { validation(t, setup(t)) })
	t.Run("Filtering", func(t *testing.T) { filtering(t, setup(t)) })
	t.Run("Upload", func(t *testing.T) { upload(t, setup(t)) })
	t.Run("ExpiredSession", func(t *testing.T) { expiredSession(t, setup(t)) })
	t.Run("Forget", func(t *testing.T) { forget(t, setup(t)) })
}

// PNG returns a small encodable image.
func PNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 8, 8))))
	return buf.Bytes()
}

func signUp(t *testing.T, b backend.Backend, email string) models.Session {
	t.Helper()
	sess, err := b.Auth().SignUp(context.Background(), email, "secret1")
	require.NoError(t, err)
	return sess
}

func registerLogout(t *testing.T, newClient Factory) {
	ctx := context.Background()
	b := newClient()

	sess := signUp(t, b, "a@x.com")
	assert.Equal(t, models.RoleUser, sess.User.Role)
	assert.False(t, sess.User.IsAdmin)
	assert.NotEmpty(t, sess.Token)
	assert.True(t, sess.ExpiresAt.After(time.Now()))

	current, err := b.Auth().CurrentSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, sess.User.ID, current.User.ID)

	require.NoError(t, b.Auth().SignOut(ctx))
	current, err = b.Auth().CurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)

	_, err = newClient().Auth().SignIn(ctx, "a@x.com", "bad-password")
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func roundTrip(t *testing.T, newClient Factory) {
	ctx := context.Background()
	b := newClient()
	signUp(t, b, "owner@x.com")
	table := b.Table(backend.TableProducts)

	rec, err := table.Insert(ctx, models.Record{"name": "Sábana King", "price": 120000, "category": "Sabanas"})
	require.NoError(t, err)
	created, err := models.ProductFromRecord(rec)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.NotEmpty(t, created.OwnerID)

	for i := 0; i < 2; i++ {
		got, err := table.GetByID(ctx, created.ID)
		require.NoError(t, err)
		p, err := models.ProductFromRecord(got)
		require.NoError(t, err)
		assert.Equal(t, created.ID, p.ID)
		assert.Equal(t, "Sábana King", p.Name)
		assert.Equal(t, 120000.0, p.Price)
		assert.Equal(t, "Sabanas", p.Category)
	}

	rec, err = table.Update(ctx, created.ID, models.Record{"description": "Algodón 200 hilos"})
	require.NoError(t, err)
	updated, err := models.ProductFromRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Sábana King", updated.Name)
	assert.Equal(t, "Algodón 200 hilos", updated.Description)
}

func deleteMissing(t *testing.T, newClient Factory) {
	ctx := context.Background()
	b := newClient()
	signUp(t, b, "owner@x.com")

	err := b.Table(backend.TableProducts).Delete(ctx, "does-not-exist")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, "Producto no encontrado", err.Error())

	_, err = b.Table(backend.TableProducts).GetByID(ctx, "does-not-exist")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func authorization(t *testing.T, newClient Factory) {
	ctx := context.Background()
	owner := newClient()
	signUp(t, owner, "owner@x.com")
	rec, err := owner.Table(backend.TableProducts).Insert(ctx, models.Record{"name": "Cojín", "price": 20000, "category": "Cojines"})
	require.NoError(t, err)
	id, _ := rec[models.FieldID].(string)

	other := newClient()
	signUp(t, other, "other@x.com")

	_, err = other.Table(backend.TableProducts).Update(ctx, id, models.Record{"name": "Robado"})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	assert.Equal(t, "No tienes permiso para editar este producto", err.Error())
	err = other.Table(backend.TableProducts).Delete(ctx, id)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	anon := newClient()
	_, err = anon.Table(backend.TableProducts).Insert(ctx, models.Record{"name": "X", "price": 1})
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	got, err := anon.Table(backend.TableProducts).GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Cojín", got[models.FieldName])
}

func validation(t *testing.T, newClient Factory) {
	ctx := context.Background()
	b := newClient()
	signUp(t, b, "owner@x.com")

	_, err := b.Table(backend.TableProducts).Insert(ctx, models.Record{"price": 10})
	assert.ErrorIs(t, err, apperr.ErrBackend)
	assert.Equal(t, 400, apperr.HTTPStatus(err))
	assert.Equal(t, "Nombre y precio son requeridos", err.Error())

	_, err = newClient().Auth().SignUp(ctx, "owner@x.com", "secret1")
	assert.Equal(t, 409, apperr.HTTPStatus(err))
}

func filtering(t *testing.T, newClient Factory) {
	ctx := context.Background()
	b := newClient()
	signUp(t, b, "owner@x.com")
	table := b.Table(backend.TableProducts)
	for _, rec := range []models.Record{
		{"name": "Cobija Polar", "price": 90000, "category": "Cobijas"},
		{"name": "Toalla Baño", "price": 35000, "category": "Toallas"},
		{"name": "Juego King", "description": "Sábana de algodón", "price": 120000, "category": "Sabanas"},
	} {
		_, err := table.Insert(ctx, rec)
		require.NoError(t, err)
	}

	recs, err := table.Query(ctx, backend.Query{Filters: map[string]string{"category": "Toallas"}})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Toalla Baño", recs[0][models.FieldName])

	recs, err = table.Query(ctx, backend.Query{Filters: map[string]string{"search": "sábana"}})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Juego King", recs[0][models.FieldName])

	recs, err = table.Query(ctx, backend.Query{Filters: map[string]string{"category": "Cortinas"}})
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)

	recs, err = table.Query(ctx, backend.Query{Order: backend.Order{Column: models.FieldPrice, Ascending: true}})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "Toalla Baño", recs[0][models.FieldName])
}

func upload(t *testing.T, newClient Factory) {
	ctx := context.Background()
	b := newClient()
	files := b.Files()

	_, err := files.Upload(ctx, backend.BucketProducts, backend.File{Name: "a.png", Body: bytes.NewReader(PNG(t))})
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	signUp(t, b, "owner@x.com")
	data := PNG(t)
	path, err := files.Upload(ctx, backend.BucketProducts, backend.File{Name: "a.png", Size: int64(len(data)), Body: bytes.NewReader(data)})
	require.NoError(t, err)
	u := files.PublicURL(backend.BucketProducts, path)
	assert.True(t, strings.HasPrefix(u, "http"), u)
	assert.Equal(t, u, files.PublicURL(backend.BucketProducts, u))

	_, err = files.Upload(ctx, backend.BucketProducts, backend.File{Name: "notes.txt", Size: 2, Body: strings.NewReader("hi")})
	assert.ErrorIs(t, err, apperr.ErrUpload)

	_, err = files.Upload(ctx, backend.BucketProducts, backend.File{Name: "fake.png", Size: 4, Body: strings.NewReader("nope")})
	assert.ErrorIs(t, err, apperr.ErrUpload)
	assert.Equal(t, "El archivo no es una imagen válida", err.Error())
}

func expiredSession(t *testing.T, newClient Factory) {
	ctx := context.Background()
	b := newClient()
	sess := signUp(t, b, "owner@x.com")

	fresh := newClient()
	fresh.Auth().Resume(sess)
	current, err := fresh.Auth().CurrentSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)

	sess.ExpiresAt = time.Now().Add(-time.Minute)
	fresh.Auth().Resume(sess)
	current, err = fresh.Auth().CurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)
}

func forget(t *testing.T, newClient Factory) {
	ctx := context.Background()
	b := newClient()
	signUp(t, b, "owner@x.com")

	b.Auth().Forget()
	current, err := b.Auth().CurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)

	_, err = b.Table(backend.TableProducts).Insert(ctx, models.Record{"name": "X", "price": 1, "category": "Cobijas"})
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}
