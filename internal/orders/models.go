package orders

import "time"

// Order statuses form a closed set. The original free-form status string is
// deliberately narrowed here; SetStatus rejects anything else.
const (
	StatusPlaced    = "placed"
	StatusPaid      = "paid"
	StatusShipped   = "shipped"
	StatusDelivered = "delivered"
	StatusCancelled = "cancelled"
)

// ValidStatus reports whether s is one of the recognized order statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusPlaced, StatusPaid, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Address is stored by value on the order; later edits to the user's saved
// addresses never touch it.
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
	Country string `json:"country"`
}

// OrderItem is a line item snapshot: product reference, quantity and the
// unit price captured at order time. Prices are in the smallest currency
// unit.
type OrderItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Price     int64  `json:"price"`
}

// PaymentResult is the opaque payload returned by the payment gateway.
type PaymentResult struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	UpdateTime   string `json:"update_time"`
	EmailAddress string `json:"email_address"`
}

// Order represents a persisted order. Items and prices are immutable after
// creation; only the payment, delivery and status fields change.
type Order struct {
	ID              string        `json:"id"`
	UserID          string        `json:"user_id"`
	UserName        string        `json:"user_name,omitempty"`
	UserEmail       string        `json:"user_email,omitempty"`
	Items           []OrderItem   `json:"order_items"`
	ShippingAddress Address       `json:"shipping_address"`
	PaymentMethod   string        `json:"payment_method"`
	ItemsPrice      int64         `json:"items_price"`
	TaxPrice        int64         `json:"tax_price"`
	ShippingPrice   int64         `json:"shipping_price"`
	TotalPrice      int64         `json:"total_price"`
	IsPaid          bool          `json:"is_paid"`
	PaidAt          *time.Time    `json:"paid_at,omitempty"`
	PaymentResult   PaymentResult `json:"payment_result"`
	IsDelivered     bool          `json:"is_delivered"`
	DeliveredAt     *time.Time    `json:"delivered_at,omitempty"`
	Status          string        `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// NewOrderItem is a requested line item. Price is the unit price as
// submitted by the client; it is persisted verbatim, not recomputed from
// the catalog.
type NewOrderItem struct {
	ProductID string `json:"product" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
	Price     int64  `json:"price" validate:"min=0"`
}

// NewOrder is the checkout request body. The four price fields are trusted
// as submitted.
type NewOrder struct {
	Items           []NewOrderItem `json:"order_items"`
	ShippingAddress Address        `json:"shipping_address" validate:"required"`
	PaymentMethod   string         `json:"payment_method" validate:"required"`
	ItemsPrice      int64          `json:"items_price" validate:"min=0"`
	TaxPrice        int64          `json:"tax_price" validate:"min=0"`
	ShippingPrice   int64          `json:"shipping_price" validate:"min=0"`
	TotalPrice      int64          `json:"total_price" validate:"min=0"`
}

// CatalogProduct is the slice of product state the order core needs for
// intake validation.
type CatalogProduct struct {
	ID    string
	Name  string
	Price int64
	Stock int
}

// Stats is the admin order/sales aggregation.
type Stats struct {
	TotalOrders  int           `json:"total_orders"`
	TotalSales   int64         `json:"total_sales"`
	DailySales   []DailySale   `json:"daily_sales"`
	StatusCounts []StatusCount `json:"status_counts"`
}

type DailySale struct {
	Date   string `json:"date"`
	Sales  int64  `json:"sales"`
	Orders int    `json:"orders"`
}

type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}
