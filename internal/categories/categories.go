// Package categories manages the product category tree (flat, one level).
package categories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrCategoryExists   = errors.New("category already exists")
	ErrCategoryNotFound = errors.New("category not found")
)

// InUseError reports a delete attempt on a category still referenced by
// products.
type InUseError struct {
	ProductCount int
}

func (e *InUseError) Error() string {
	return fmt.Sprintf("cannot delete category with %d associated products", e.ProductCount)
}

type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Image       string    `json:"image"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type NewCategory struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

type UpdateCategory struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
	IsActive    *bool  `json:"is_active"`
}

type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (*Conf, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Conf{db: db}, nil
}

const categoryColumns = `id, name, description, image, is_active, created_at, updated_at`

func scanCategory(row interface{ Scan(...any) error }) (Category, error) {
	var c Category
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Image, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// InsertCategory creates a category; names are unique.
func (c *Conf) InsertCategory(ctx context.Context, nc NewCategory) (Category, error) {
	category := Category{
		ID:          uuid.NewString(),
		Name:        nc.Name,
		Description: nc.Description,
		Image:       nc.Image,
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}

	var exists bool
	err := c.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM categories WHERE name = $1)`, nc.Name).Scan(&exists)
	if err != nil {
		return Category{}, fmt.Errorf("failed to check category name: %w", err)
	}
	if exists {
		return Category{}, ErrCategoryExists
	}

	query := `
		INSERT INTO categories (id, name, description, image, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = c.db.ExecContext(ctx, query, category.ID, category.Name, category.Description,
		category.Image, category.IsActive, category.CreatedAt, category.UpdatedAt)
	if err != nil {
		return Category{}, fmt.Errorf("failed to insert category: %w", err)
	}
	return category, nil
}

// ListActiveCategories returns every active category.
func (c *Conf) ListActiveCategories(ctx context.Context) ([]Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE is_active ORDER BY name`
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var result []Category
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		result = append(result, category)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}
	return result, nil
}

func (c *Conf) GetCategoryByID(ctx context.Context, categoryID string) (Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1`
	category, err := scanCategory(c.db.QueryRowContext(ctx, query, categoryID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Category{}, ErrCategoryNotFound
		}
		return Category{}, fmt.Errorf("failed to query category: %w", err)
	}
	return category, nil
}

func (c *Conf) UpdateCategory(ctx context.Context, categoryID string, uc UpdateCategory) (Category, error) {
	query := `
		UPDATE categories
		SET name = COALESCE(NULLIF($2, ''), name),
		    description = COALESCE(NULLIF($3, ''), description),
		    image = COALESCE(NULLIF($4, ''), image),
		    is_active = COALESCE($5, is_active),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + categoryColumns + `
	`
	category, err := scanCategory(c.db.QueryRowContext(ctx, query, categoryID,
		uc.Name, uc.Description, uc.Image, uc.IsActive))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Category{}, ErrCategoryNotFound
		}
		return Category{}, fmt.Errorf("failed to update category: %w", err)
	}
	return category, nil
}

// DeleteCategory removes a category unless products still reference it.
func (c *Conf) DeleteCategory(ctx context.Context, categoryID string) error {
	var productCount int
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products WHERE category_id = $1`, categoryID).Scan(&productCount)
	if err != nil {
		return fmt.Errorf("failed to count category products: %w", err)
	}
	if productCount > 0 {
		return &InUseError{ProductCount: productCount}
	}

	res, err := c.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, categoryID)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrCategoryNotFound
	}
	return nil
}
