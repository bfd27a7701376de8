package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/credihogar/catalog/internal/db"
	"github.com/credihogar/catalog/internal/models"
)

var orderColumns = map[string]bool{
	models.FieldCreatedAt: true,
	models.FieldUpdatedAt: true,
	models.FieldName:      true,
	models.FieldPrice:     true,
}

const productColumns = `id, name, COALESCE(description, ''), price, category, COALESCE(image_url, ''), COALESCE(owner_id, ''), created_at, updated_at`

// ProductRepository stores catalog products.
type ProductRepository struct {
	DB      *sql.DB
	Dialect db.Dialect
}

// NewProductRepository creates a ProductRepository over conn.
func NewProductRepository(conn *sql.DB, dialect db.Dialect) *ProductRepository {
	return &ProductRepository{DB: conn, Dialect: dialect}
}

// List returns the products matching f.
func (r *ProductRepository) List(ctx context.Context, f models.ProductFilter) ([]models.Product, error) {
	var (
		where []string
		args  []any
	)
	if c := strings.TrimSpace(f.Category); c != "" && !strings.EqualFold(c, "all") {
		where = append(where, `LOWER(category) = LOWER(?)`)
		args = append(args, c)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		where = append(where, `(LOWER(name) LIKE ? OR LOWER(COALESCE(description, '')) LIKE ?)`)
		args = append(args, like, like)
	}

	order := models.FieldCreatedAt
	if orderColumns[f.OrderBy] {
		order = f.OrderBy
	}
	dir := "DESC"
	if f.Ascending {
		dir = "ASC"
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY ` + order + ` ` + dir

	rows, err := r.DB.QueryContext(ctx, r.Dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// Get returns the product with the given id.
func (r *ProductRepository) Get(ctx context.Context, id string) (models.Product, error) {
	row := r.DB.QueryRowContext(ctx, r.Dialect.Rebind(`SELECT `+productColumns+` FROM products WHERE id = ?`), id)
	p, err := scanProduct(row)
	if err != nil {
		return models.Product{}, notFound(err, "Producto no encontrado")
	}
	return p, nil
}

// Insert stores p. The caller assigns the id and timestamps.
func (r *ProductRepository) Insert(ctx context.Context, p models.Product) error {
	_, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(`
		INSERT INTO products (id, name, description, price, category, image_url, owner_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		p.ID, p.Name, p.Description, p.Price, p.Category, p.ImageURL, nullString(p.OwnerID),
		p.CreatedAt.UTC(), p.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// Update applies patch to the product with the given id and stamps
// updated_at. A missing product yields a not-found error.
func (r *ProductRepository) Update(ctx context.Context, id string, patch models.ProductPatch, updatedAt time.Time) error {
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		sets = append(sets, col+` = ?`)
		args = append(args, v)
	}
	if patch.Name != nil {
		add(models.FieldName, *patch.Name)
	}
	if patch.Description != nil {
		add(models.FieldDescription, *patch.Description)
	}
	if patch.Price != nil {
		add(models.FieldPrice, *patch.Price)
	}
	if patch.Category != nil {
		add(models.FieldCategory, *patch.Category)
	}
	if patch.ImageURL != nil {
		add(models.FieldImageURL, *patch.ImageURL)
	}
	add(models.FieldUpdatedAt, updatedAt.UTC())
	args = append(args, id)

	res, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(
		`UPDATE products SET `+strings.Join(sets, ", ")+` WHERE id = ?`), args...)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return affected(res, "Producto no encontrado")
}

// Delete removes the product with the given id.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(`DELETE FROM products WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return affected(res, "Producto no encontrado")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(s scanner) (models.Product, error) {
	var p models.Product
	err := s.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Category, &p.ImageURL, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func affected(res sql.Result, msg string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound(sql.ErrNoRows, msg)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
