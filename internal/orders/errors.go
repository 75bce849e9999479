package orders

import (
	"errors"
	"fmt"
)

var (
	ErrNoOrderItems  = errors.New("no order items")
	ErrOrderNotFound = errors.New("order not found")
	ErrNotOwner      = errors.New("not authorized to view this order")
	ErrInvalidStatus = errors.New("invalid order status")
)

// ProductNotFoundError names the line item whose product reference did not
// resolve.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product not found: %s", e.ProductID)
}

// OutOfStockError names the product whose stock cannot cover the requested
// quantity.
type OutOfStockError struct {
	ProductID string
	Name      string
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("product %s is out of stock", e.Name)
}
