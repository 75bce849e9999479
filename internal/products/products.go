// Package products manages the catalog: CRUD, filtered listings and
// reviews. Stock arithmetic lives with the order core, not here.
package products

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrAlreadyReviewed = errors.New("product already reviewed")
)

type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (*Conf, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Conf{db: db}, nil
}

func (c *Conf) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		er := tx.Rollback()
		if er != nil && !errors.Is(er, sql.ErrTxDone) {
			return fmt.Errorf("failed to rollback withTx: %w", err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit withTx: %w", err)
	}
	return nil
}

const productColumns = `
	p.id, p.name, p.description, p.price, p.image, p.brand, p.category_id,
	p.stock, p.rating, p.num_reviews, p.features, p.specifications,
	p.is_featured, p.created_at, p.updated_at
`

func scanProduct(row interface{ Scan(...any) error }, extra ...any) (Product, error) {
	var p Product
	var features, specs []byte

	dest := []any{
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Image, &p.Brand, &p.CategoryID,
		&p.Stock, &p.Rating, &p.NumReviews, &features, &specs,
		&p.IsFeatured, &p.CreatedAt, &p.UpdatedAt,
	}
	dest = append(dest, extra...)

	if err := row.Scan(dest...); err != nil {
		return Product{}, err
	}

	if len(features) > 0 {
		if err := json.Unmarshal(features, &p.Features); err != nil {
			return Product{}, fmt.Errorf("failed to decode features: %w", err)
		}
	}
	if len(specs) > 0 {
		if err := json.Unmarshal(specs, &p.Specifications); err != nil {
			return Product{}, fmt.Errorf("failed to decode specifications: %w", err)
		}
	}
	return p, nil
}

func encodeFeatures(features []string) ([]byte, error) {
	if features == nil {
		features = []string{}
	}
	out, err := json.Marshal(features)
	if err != nil {
		return nil, fmt.Errorf("failed to encode features: %w", err)
	}
	return out, nil
}

func encodeSpecs(specs map[string]string) ([]byte, error) {
	if specs == nil {
		specs = map[string]string{}
	}
	out, err := json.Marshal(specs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode specifications: %w", err)
	}
	return out, nil
}

// InsertProduct creates a catalog entry with zero rating and no reviews.
func (c *Conf) InsertProduct(ctx context.Context, np NewProduct) (Product, error) {
	specs, err := encodeSpecs(np.Specifications)
	if err != nil {
		return Product{}, err
	}
	features, err := encodeFeatures(np.Features)
	if err != nil {
		return Product{}, err
	}

	product := Product{
		ID:             uuid.NewString(),
		Name:           np.Name,
		Description:    np.Description,
		Price:          np.Price,
		Image:          np.Image,
		Brand:          np.Brand,
		CategoryID:     np.CategoryID,
		Stock:          np.Stock,
		Features:       np.Features,
		Specifications: np.Specifications,
		IsFeatured:     np.IsFeatured,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}

	query := `
		INSERT INTO products (id, name, description, price, image, brand, category_id,
		                      stock, features, specifications, is_featured, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = c.db.ExecContext(ctx, query, product.ID, product.Name, product.Description,
		product.Price, product.Image, product.Brand, product.CategoryID, product.Stock,
		features, specs, product.IsFeatured,
		product.CreatedAt, product.UpdatedAt)
	if err != nil {
		return Product{}, fmt.Errorf("failed to insert product: %w", err)
	}
	return product, nil
}

// GetProductByID returns the product with its category name and reviews.
func (c *Conf) GetProductByID(ctx context.Context, productID string) (Product, error) {
	query := `
		SELECT ` + productColumns + `, c.name
		FROM products p
		JOIN categories c ON c.id = p.category_id
		WHERE p.id = $1
	`
	var categoryName string
	product, err := scanProduct(c.db.QueryRowContext(ctx, query, productID), &categoryName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, fmt.Errorf("failed to query product: %w", err)
	}
	product.CategoryName = categoryName

	reviews, err := c.listReviews(ctx, productID)
	if err != nil {
		return Product{}, err
	}
	product.Reviews = reviews
	return product, nil
}

func (c *Conf) listReviews(ctx context.Context, productID string) ([]Review, error) {
	query := `
		SELECT id, user_id, name, rating, comment, created_at
		FROM reviews
		WHERE product_id = $1
		ORDER BY created_at
	`
	rows, err := c.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer rows.Close()

	var reviews []Review
	for rows.Next() {
		var r Review
		if err := rows.Scan(&r.ID, &r.UserID, &r.Name, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reviews: %w", err)
	}
	return reviews, nil
}

var sortColumns = map[string]string{
	"name":       "p.name",
	"price":      "p.price",
	"rating":     "p.rating",
	"created_at": "p.created_at",
}

// ListProducts applies the filter and returns one page plus the total
// match count.
func (c *Conf) ListProducts(ctx context.Context, f Filter, page, pageSize int) ([]Product, int, error) {
	where := " WHERE 1=1"
	args := []any{}

	if f.Keyword != "" {
		args = append(args, "%"+f.Keyword+"%")
		n := len(args)
		where += fmt.Sprintf(" AND (p.name ILIKE $%d OR p.description ILIKE $%d)", n, n)
	}
	if f.CategoryID != "" {
		args = append(args, f.CategoryID)
		where += fmt.Sprintf(" AND p.category_id = $%d", len(args))
	}
	if f.MinPrice != nil && f.MaxPrice != nil {
		args = append(args, *f.MinPrice)
		where += fmt.Sprintf(" AND p.price >= $%d", len(args))
		args = append(args, *f.MaxPrice)
		where += fmt.Sprintf(" AND p.price <= $%d", len(args))
	}

	var count int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products p`+where, args...).Scan(&count)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	// Sort column comes from a fixed whitelist; never from user input
	// directly.
	orderBy := "p.created_at DESC"
	if col, ok := sortColumns[f.SortBy]; ok {
		direction := "ASC"
		if f.SortOrder == "desc" {
			direction = "DESC"
		}
		orderBy = col + " " + direction
	}

	args = append(args, pageSize)
	limitPos := len(args)
	args = append(args, (page-1)*pageSize)
	offsetPos := len(args)

	query := `
		SELECT ` + productColumns + `, c.name
		FROM products p
		JOIN categories c ON c.id = p.category_id` + where +
		fmt.Sprintf(" ORDER BY %s LIMIT $%d OFFSET $%d", orderBy, limitPos, offsetPos)

	return c.queryProducts(ctx, query, count, args...)
}

func (c *Conf) queryProducts(ctx context.Context, query string, count int, args ...any) ([]Product, int, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var result []Product
	for rows.Next() {
		var categoryName string
		product, err := scanProduct(rows, &categoryName)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan product: %w", err)
		}
		product.CategoryName = categoryName
		result = append(result, product)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating products: %w", err)
	}
	return result, count, nil
}

// ListByCategory pages products of a single category.
func (c *Conf) ListByCategory(ctx context.Context, categoryID string, page, pageSize int) ([]Product, int, error) {
	var count int
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products WHERE category_id = $1`, categoryID).Scan(&count)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	query := `
		SELECT ` + productColumns + `, c.name
		FROM products p
		JOIN categories c ON c.id = p.category_id
		WHERE p.category_id = $1
		ORDER BY p.created_at DESC
		LIMIT $2 OFFSET $3
	`
	return c.queryProducts(ctx, query, count, categoryID, pageSize, (page-1)*pageSize)
}

// TopProducts returns the highest rated products.
func (c *Conf) TopProducts(ctx context.Context, limit int) ([]Product, error) {
	query := `
		SELECT ` + productColumns + `, c.name
		FROM products p
		JOIN categories c ON c.id = p.category_id
		ORDER BY p.rating DESC
		LIMIT $1
	`
	result, _, err := c.queryProducts(ctx, query, 0, limit)
	return result, err
}

// FeaturedProducts returns up to limit products flagged featured.
func (c *Conf) FeaturedProducts(ctx context.Context, limit int) ([]Product, error) {
	query := `
		SELECT ` + productColumns + `, c.name
		FROM products p
		JOIN categories c ON c.id = p.category_id
		WHERE p.is_featured
		LIMIT $1
	`
	result, _, err := c.queryProducts(ctx, query, 0, limit)
	return result, err
}

// UpdateProduct patches the supplied fields. Setting stock here replaces
// the count outright; it is a catalog edit, not a ledger movement.
func (c *Conf) UpdateProduct(ctx context.Context, productID string, up UpdateProduct) (Product, error) {
	var specs []byte
	if up.Specifications != nil {
		var err error
		specs, err = encodeSpecs(up.Specifications)
		if err != nil {
			return Product{}, err
		}
	}

	var features []byte
	if up.Features != nil {
		var err error
		features, err = encodeFeatures(up.Features)
		if err != nil {
			return Product{}, err
		}
	}

	query := `
		UPDATE products p
		SET name = COALESCE(NULLIF($2, ''), name),
		    description = COALESCE(NULLIF($3, ''), description),
		    price = COALESCE($4, price),
		    image = COALESCE(NULLIF($5, ''), image),
		    brand = COALESCE(NULLIF($6, ''), brand),
		    category_id = COALESCE(NULLIF($7, '')::uuid, category_id),
		    stock = COALESCE($8, stock),
		    features = COALESCE($9, features),
		    specifications = COALESCE($10, specifications),
		    is_featured = COALESCE($11, is_featured),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + productColumns + `
	`
	product, err := scanProduct(c.db.QueryRowContext(ctx, query, productID,
		up.Name, up.Description, up.Price, up.Image, up.Brand, up.CategoryID,
		up.Stock, features, specs, up.IsFeatured))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, fmt.Errorf("failed to update product: %w", err)
	}
	return product, nil
}

func (c *Conf) DeleteProduct(ctx context.Context, productID string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// AddReview appends a review and recomputes the product's mean rating and
// review count in the same transaction. A user reviews a product at most
// once.
func (c *Conf) AddReview(ctx context.Context, productID, userID, userName string, nr NewReview) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check product: %w", err)
		}
		if !exists {
			return ErrProductNotFound
		}

		var reviewed bool
		err = tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM reviews WHERE product_id = $1 AND user_id = $2)`,
			productID, userID).Scan(&reviewed)
		if err != nil {
			return fmt.Errorf("failed to check existing review: %w", err)
		}
		if reviewed {
			return ErrAlreadyReviewed
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO reviews (id, product_id, user_id, name, rating, comment, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
			uuid.NewString(), productID, userID, userName, nr.Rating, nr.Comment)
		if err != nil {
			return fmt.Errorf("failed to insert review: %w", err)
		}

		recompute := `
			UPDATE products
			SET rating = (SELECT AVG(rating) FROM reviews WHERE product_id = $1),
			    num_reviews = (SELECT COUNT(*) FROM reviews WHERE product_id = $1),
			    updated_at = NOW()
			WHERE id = $1
		`
		if _, err := tx.ExecContext(ctx, recompute, productID); err != nil {
			return fmt.Errorf("failed to recompute rating: %w", err)
		}
		return nil
	})
}
