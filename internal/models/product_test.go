package models

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePrice(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    float64
		wantErr bool
	}{
		{"float", 120000.0, 120000, false},
		{"int", 850, 850, false},
		{"numeric string", " 1500.50 ", 1500.5, false},
		{"negative clamps", -3, 0, false},
		{"garbage", "abc", 0, true},
		{"empty string", "", 0, true},
		{"infinite", math.Inf(1), 0, true},
		{"nan", math.NaN(), 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePrice(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProductFromRecord(t *testing.T) {
	rec := Record{
		"id":          "p1",
		"name":        "Sábana King",
		"description": "Algodón",
		"price":       "120000.00",
		"category":    "Sabanas",
		"image_url":   nil,
		"owner_id":    "u1",
		"created_at":  "2024-03-01 10:20:30",
		"updated_at":  "2024-03-02T08:00:00Z",
	}

	p, err := ProductFromRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, "Sábana King", p.Name)
	assert.Equal(t, 120000.0, p.Price)
	assert.Equal(t, "", p.ImageURL)
	assert.True(t, time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC).Equal(p.CreatedAt), "created_at = %v", p.CreatedAt)
	assert.True(t, time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC).Equal(p.UpdatedAt), "updated_at = %v", p.UpdatedAt)
}

func TestProductRecordRoundTrip(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	in := Product{ID: "x", Name: "Toalla", Price: 35000, Category: "Toallas", OwnerID: "u", CreatedAt: now, UpdatedAt: now}

	out, err := ProductFromRecord(in.Record())
	require.NoError(t, err)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
	assert.True(t, in.UpdatedAt.Equal(out.UpdatedAt))
	out.CreatedAt, out.UpdatedAt = in.CreatedAt, in.UpdatedAt
	assert.Equal(t, in, out)
}

func TestProductFromRecord_BadPrice(t *testing.T) {
	_, err := ProductFromRecord(Record{"id": "p", "price": "free"})
	assert.Error(t, err)
}

func TestPatchFromRecord(t *testing.T) {
	patch, err := PatchFromRecord(Record{"name": "  ", "description": "", "price": "10", "image_url": "http://x/y.png"})
	require.NoError(t, err)

	assert.Nil(t, patch.Name, "blank name must not overwrite")
	require.NotNil(t, patch.Description)
	assert.Equal(t, "", *patch.Description)
	require.NotNil(t, patch.Price)
	assert.Equal(t, 10.0, *patch.Price)
	assert.Nil(t, patch.Category)
	assert.False(t, patch.Empty())

	applied := patch.Apply(Product{Name: "keep", Description: "old", Price: 1})
	assert.Equal(t, "keep", applied.Name)
	assert.Equal(t, "", applied.Description)
	assert.Equal(t, 10.0, applied.Price)
	assert.Equal(t, "http://x/y.png", applied.ImageURL)

	assert.True(t, ProductPatch{}.Empty())
}

func TestUserCanModify(t *testing.T) {
	var anon *User
	assert.False(t, anon.CanModify("u1"))
	assert.True(t, (&User{ID: "u1"}).CanModify("u1"))
	assert.False(t, (&User{ID: "u2"}).CanModify("u1"))
	assert.True(t, (&User{ID: "u2", IsAdmin: true}).CanModify("u1"))
}

func TestSessionExpired(t *testing.T) {
	now := time.Now()
	assert.True(t, (&Session{ExpiresAt: now.Add(-time.Second)}).Expired(now))
	assert.False(t, (&Session{ExpiresAt: now.Add(time.Hour)}).Expired(now))
	assert.False(t, (&Session{}).Expired(now))
	var s *Session
	assert.True(t, s.Expired(now))
}

func TestProductFilter(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	products := []Product{
		{ID: "1", Name: "Cobija Polar", Category: "Cobijas", Price: 90000, CreatedAt: base},
		{ID: "2", Name: "Toalla Baño", Category: "Toallas", Price: 35000, CreatedAt: base.Add(time.Hour)},
		{ID: "3", Name: "Juego King", Description: "Sábana de algodón", Category: "Sabanas", Price: 120000, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "4", Name: "Toalla Mano", Category: "toallas", Price: 15000, CreatedAt: base.Add(3 * time.Hour)},
	}
	ids := func(ps []Product) []string {
		out := []string{}
		for _, p := range ps {
			out = append(out, p.ID)
		}
		return out
	}

	tests := []struct {
		name   string
		filter ProductFilter
		want   []string
	}{
		{"default newest first", ProductFilter{}, []string{"4", "3", "2", "1"}},
		{"all category", ProductFilter{Category: "all"}, []string{"4", "3", "2", "1"}},
		{"category case-insensitive", ProductFilter{Category: "Toallas"}, []string{"4", "2"}},
		{"search description", ProductFilter{Search: "sábana"}, []string{"3"}},
		{"search upper", ProductFilter{Search: "TOALLA"}, []string{"4", "2"}},
		{"price ascending", ProductFilter{OrderBy: FieldPrice, Ascending: true}, []string{"4", "2", "1", "3"}},
		{"name descending", ProductFilter{OrderBy: FieldName}, []string{"4", "2", "3", "1"}},
		{"no match", ProductFilter{Category: "Cortinas"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(tt.filter.Apply(products)))
		})
	}
	assert.Equal(t, "1", products[0].ID, "input must not be reordered")
}
