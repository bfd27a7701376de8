package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/credihogar/catalog/internal/models"
)

// CategoryRepository reads the category list.
type CategoryRepository struct {
	DB *sql.DB
}

// NewCategoryRepository creates a CategoryRepository over conn.
func NewCategoryRepository(conn *sql.DB) *CategoryRepository {
	return &CategoryRepository{DB: conn}
}

// List returns all categories ordered by name.
func (r *CategoryRepository) List(ctx context.Context) ([]models.Category, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
