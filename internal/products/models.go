package products

import "time"

// Product is a catalog entry. Rating and NumReviews are derived from the
// product's reviews and recomputed on every review append. Stock is only
// ever decremented by the order core; catalog edits set it outright.
type Product struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	Price          int64             `json:"price"`
	Image          string            `json:"image"`
	Brand          string            `json:"brand"`
	CategoryID     string            `json:"category_id"`
	CategoryName   string            `json:"category_name,omitempty"`
	Stock          int               `json:"stock"`
	Rating         float64           `json:"rating"`
	NumReviews     int               `json:"num_reviews"`
	Features       []string          `json:"features"`
	Specifications map[string]string `json:"specifications"`
	IsFeatured     bool              `json:"is_featured"`
	Reviews        []Review          `json:"reviews,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Review is one user's review of a product; one per user per product.
type Review struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

type NewProduct struct {
	Name           string            `json:"name" validate:"required"`
	Description    string            `json:"description" validate:"required"`
	Price          int64             `json:"price" validate:"min=0"`
	Image          string            `json:"image" validate:"required"`
	Brand          string            `json:"brand"`
	CategoryID     string            `json:"category_id" validate:"required"`
	Stock          int               `json:"stock" validate:"min=0"`
	Features       []string          `json:"features"`
	Specifications map[string]string `json:"specifications"`
	IsFeatured     bool              `json:"is_featured"`
}

// UpdateProduct carries optional patches; nil pointers keep the current
// value so zero is a settable price/stock.
type UpdateProduct struct {
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	Price          *int64            `json:"price" validate:"omitempty,min=0"`
	Image          string            `json:"image"`
	Brand          string            `json:"brand"`
	CategoryID     string            `json:"category_id"`
	Stock          *int              `json:"stock" validate:"omitempty,min=0"`
	Features       []string          `json:"features"`
	Specifications map[string]string `json:"specifications"`
	IsFeatured     *bool             `json:"is_featured"`
}

type NewReview struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"required"`
}

// Filter narrows and orders a product listing.
type Filter struct {
	Keyword    string
	CategoryID string
	MinPrice   *int64
	MaxPrice   *int64
	SortBy     string
	SortOrder  string
}
