package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credihogar/catalog/internal/apperr"
	"github.com/credihogar/catalog/internal/models"
)

func TestUsers(t *testing.T) {
	ctx := context.Background()
	users := New().Users()

	require.NoError(t, users.Create(ctx, models.User{ID: "u1", Email: "Ana@Shop.co", Role: models.RoleUser}))
	err := users.Create(ctx, models.User{ID: "u2", Email: "ana@shop.co"})
	assert.Equal(t, 409, apperr.HTTPStatus(err))

	u, err := users.GetByEmail(ctx, "ana@shop.co")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.False(t, u.CreatedAt.IsZero())

	ok, err := users.PromoteAdmin(ctx, "ANA@shop.co")
	require.NoError(t, err)
	assert.True(t, ok)
	u, _ = users.GetByID(ctx, "u1")
	assert.True(t, u.IsAdmin)
	assert.Equal(t, models.RoleAdmin, u.Role)

	ok, _ = users.PromoteAdmin(ctx, "nobody@shop.co")
	assert.False(t, ok)
	_, err = users.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSessions(t *testing.T) {
	ctx := context.Background()
	store := New()
	require.NoError(t, store.Users().Create(ctx, models.User{ID: "u1", Email: "a@x.com"}))
	sessions := store.Sessions()

	now := time.Now()
	require.NoError(t, sessions.Create(ctx, "u1", "tok", now.Add(time.Hour)))

	sess, err := sessions.Lookup(ctx, "tok", now)
	require.NoError(t, err)
	assert.Equal(t, "u1", sess.User.ID)

	_, err = sessions.Lookup(ctx, "tok", now.Add(2*time.Hour))
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, sessions.Delete(ctx, "tok"))
	_, err = sessions.Lookup(ctx, "tok", now)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestProducts(t *testing.T) {
	ctx := context.Background()
	products := New().Products()
	created := time.Now().UTC()

	require.NoError(t, products.Insert(ctx, models.Product{ID: "p1", Name: "Toalla", Category: "Toallas", CreatedAt: created}))
	require.NoError(t, products.Insert(ctx, models.Product{ID: "p2", Name: "Cobija", Category: "Cobijas", CreatedAt: created.Add(time.Second)}))

	list, err := products.List(ctx, models.ProductFilter{Category: "toallas"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "p1", list[0].ID)

	name := "Toalla Grande"
	require.NoError(t, products.Update(ctx, "p1", models.ProductPatch{Name: &name}, created.Add(time.Minute)))
	p, err := products.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, name, p.Name)
	assert.Equal(t, "Toallas", p.Category)

	require.NoError(t, products.Delete(ctx, "p1"))
	assert.ErrorIs(t, products.Delete(ctx, "p1"), apperr.ErrNotFound)
	assert.ErrorIs(t, products.Update(ctx, "p1", models.ProductPatch{Name: &name}, created), apperr.ErrNotFound)
}

func TestCategoriesSeeded(t *testing.T) {
	cats, err := New().Categories().List(context.Background())
	require.NoError(t, err)
	assert.Len(t, cats, len(models.DefaultCategories))
}
