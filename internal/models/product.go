// Package models defines the core data structures of the catalog: products,
// categories, users and sessions, plus the loosely typed Record used by the
// backend adapters.
package models

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"
)

// Product is a catalog item.
type Product struct {
	// ID is server-assigned and immutable.
	ID string `json:"id"`
	// Name is required and never empty.
	Name string `json:"name"`
	// Description is optional free text.
	Description string `json:"description"`
	// Price is a finite, non-negative amount.
	Price float64 `json:"price"`
	// Category is a partition key for filtering.
	Category string `json:"category"`
	// ImageURL is an absolute, publicly fetchable URL or empty.
	ImageURL string `json:"image_url"`
	// OwnerID is the id of the principal who created the product.
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProductPatch carries a partial update. Nil fields are left untouched.
type ProductPatch struct {
	Name        *string
	Description *string
	Price       *float64
	Category    *string
	ImageURL    *string
}

// Empty reports whether the patch changes nothing.
func (p ProductPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Price == nil &&
		p.Category == nil && p.ImageURL == nil
}

// Apply returns a copy of prod with the patch applied.
func (p ProductPatch) Apply(prod Product) Product {
	if p.Name != nil {
		prod.Name = *p.Name
	}
	if p.Description != nil {
		prod.Description = *p.Description
	}
	if p.Price != nil {
		prod.Price = *p.Price
	}
	if p.Category != nil {
		prod.Category = *p.Category
	}
	if p.ImageURL != nil {
		prod.ImageURL = *p.ImageURL
	}
	return prod
}

// ProductFilter narrows and orders a product listing.
type ProductFilter struct {
	// Category matches case-insensitively. Empty or "all" disables it.
	Category string
	// Search is a case-insensitive substring of name or description.
	Search string
	// OrderBy is one of created_at, updated_at, name or price.
	OrderBy string
	// Ascending flips the default newest-first order.
	Ascending bool
}

// Match reports whether p passes the category and search constraints of f.
func (f ProductFilter) Match(p Product) bool {
	if c := strings.TrimSpace(f.Category); c != "" && !strings.EqualFold(c, "all") &&
		!strings.EqualFold(p.Category, c) {
		return false
	}
	if s := strings.ToLower(strings.TrimSpace(f.Search)); s != "" &&
		!strings.Contains(strings.ToLower(p.Name), s) &&
		!strings.Contains(strings.ToLower(p.Description), s) {
		return false
	}
	return true
}

// Apply returns the products matching f in f's order. The input is not
// modified.
func (f ProductFilter) Apply(products []Product) []Product {
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	less := func(a, b Product) bool { return a.CreatedAt.Before(b.CreatedAt) }
	switch f.OrderBy {
	case FieldUpdatedAt:
		less = func(a, b Product) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	case FieldName:
		less = func(a, b Product) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }
	case FieldPrice:
		less = func(a, b Product) bool { return a.Price < b.Price }
	}
	sort.SliceStable(out, func(i, j int) bool {
		if f.Ascending {
			return less(out[i], out[j])
		}
		return less(out[j], out[i])
	})
	return out
}

// NormalizePrice coerces loosely typed input (numbers or numeric strings) to
// a finite, non-negative amount. Negative amounts are clamped to zero.
func NormalizePrice(v any) (float64, error) {
	if s, ok := v.(string); ok {
		v = strings.TrimSpace(s)
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, fmt.Errorf("price %v is not a number", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("price %v is not a finite number", v)
	}
	if f < 0 {
		return 0, nil
	}
	return f, nil
}

// Record is a loosely typed table row as exchanged with a backend.
type Record map[string]any

// Record field names of a product.
const (
	FieldID          = "id"
	FieldName        = "name"
	FieldDescription = "description"
	FieldPrice       = "price"
	FieldCategory    = "category"
	FieldImageURL    = "image_url"
	FieldOwnerID     = "owner_id"
	FieldCreatedAt   = "created_at"
	FieldUpdatedAt   = "updated_at"
)

// Record converts the product into a Record.
func (p Product) Record() Record {
	rec := Record{
		FieldID:          p.ID,
		FieldName:        p.Name,
		FieldDescription: p.Description,
		FieldPrice:       p.Price,
		FieldCategory:    p.Category,
		FieldImageURL:    p.ImageURL,
		FieldOwnerID:     p.OwnerID,
	}
	if !p.CreatedAt.IsZero() {
		rec[FieldCreatedAt] = p.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	if !p.UpdatedAt.IsZero() {
		rec[FieldUpdatedAt] = p.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	return rec
}

// ProductFromRecord decodes a Record into a Product. Timestamps may be
// RFC3339 or SQL datetime strings; price may be a number or numeric string.
func ProductFromRecord(rec Record) (Product, error) {
	in := make(map[string]any, len(rec))
	for k, v := range rec {
		in[k] = v
	}
	if v, ok := in[FieldPrice]; ok && v != nil {
		price, err := NormalizePrice(v)
		if err != nil {
			return Product{}, err
		}
		in[FieldPrice] = price
	}

	var p Product
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.DecodeHookFuncType(timeHook),
		Result:           &p,
	})
	if err != nil {
		return Product{}, fmt.Errorf("new decoder: %w", err)
	}
	if err := dec.Decode(in); err != nil {
		return Product{}, fmt.Errorf("decode product: %w", err)
	}
	return p, nil
}

// PatchFromRecord builds a ProductPatch from the keys present in rec.
func PatchFromRecord(rec Record) (ProductPatch, error) {
	var patch ProductPatch
	if v, ok := rec[FieldName]; ok {
		s := strings.TrimSpace(cast.ToString(v))
		if s != "" {
			patch.Name = &s
		}
	}
	if v, ok := rec[FieldDescription]; ok {
		s := strings.TrimSpace(cast.ToString(v))
		patch.Description = &s
	}
	if v, ok := rec[FieldPrice]; ok && v != nil {
		price, err := NormalizePrice(v)
		if err != nil {
			return ProductPatch{}, err
		}
		patch.Price = &price
	}
	if v, ok := rec[FieldCategory]; ok {
		s := strings.TrimSpace(cast.ToString(v))
		if s != "" {
			patch.Category = &s
		}
	}
	if v, ok := rec[FieldImageURL]; ok {
		s := strings.TrimSpace(cast.ToString(v))
		patch.ImageURL = &s
	}
	return patch, nil
}

// Record converts the patch into a Record holding only the set fields.
func (p ProductPatch) Record() Record {
	rec := Record{}
	if p.Name != nil {
		rec[FieldName] = *p.Name
	}
	if p.Description != nil {
		rec[FieldDescription] = *p.Description
	}
	if p.Price != nil {
		rec[FieldPrice] = *p.Price
	}
	if p.Category != nil {
		rec[FieldCategory] = *p.Category
	}
	if p.ImageURL != nil {
		rec[FieldImageURL] = *p.ImageURL
	}
	return rec
}

var timeType = reflect.TypeOf(time.Time{})

func timeHook(from, to reflect.Type, data any) (any, error) {
	if to != timeType || from.Kind() != reflect.String {
		return data, nil
	}
	s := strings.TrimSpace(data.(string))
	if s == "" {
		return time.Time{}, nil
	}
	return dateparse.ParseIn(s, time.UTC)
}
