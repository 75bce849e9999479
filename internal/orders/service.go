// Package orders implements the order core: intake validation against the
// catalog, materialization of the immutable order snapshot, the stock
// ledger decrement, and the payment/delivery status transitions.
package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Catalog is the narrow slice of the product catalog the order core reads
// and mutates. ProductForOrder returns nil when the reference does not
// resolve. ReserveStock performs a single conditional decrement and
// reports false when the remaining stock cannot cover the quantity.
type Catalog interface {
	ProductForOrder(ctx context.Context, productID string) (*CatalogProduct, error)
	ReserveStock(ctx context.Context, productID string, quantity int) (bool, error)
}

// Store persists orders. Lookups return nil when the order is absent.
type Store interface {
	Create(ctx context.Context, order Order) (Order, error)
	GetByID(ctx context.Context, orderID string) (*Order, error)
	MarkPaid(ctx context.Context, orderID string, result PaymentResult, paidAt time.Time) (*Order, error)
	SetStatus(ctx context.Context, orderID string, status string, delivered bool, deliveredAt time.Time) (*Order, error)
	ListByUser(ctx context.Context, userID string, page, pageSize int) ([]Order, int, error)
	List(ctx context.Context, statusKeyword string, page, pageSize int) ([]Order, int, error)
	Stats(ctx context.Context) (*Stats, error)
}

type Conf struct {
	store   Store
	catalog Catalog
}

func NewConf(store Store, catalog Catalog) (*Conf, error) {
	if store == nil || catalog == nil {
		return nil, errors.New("store and catalog cannot be nil")
	}
	return &Conf{store: store, catalog: catalog}, nil
}

// validateItems checks every requested line item against current catalog
// state, in input order, failing on the first violation. It is read-only;
// nothing is reserved until the order row exists. The returned items carry
// the product name snapshot alongside the submitted unit price.
func (c *Conf) validateItems(ctx context.Context, items []NewOrderItem) ([]OrderItem, error) {
	if len(items) == 0 {
		return nil, ErrNoOrderItems
	}

	validated := make([]OrderItem, 0, len(items))
	for _, item := range items {
		product, err := c.catalog.ProductForOrder(ctx, item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("fetching product %s: %w", item.ProductID, err)
		}
		if product == nil {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		if product.Stock < item.Quantity {
			return nil, &OutOfStockError{ProductID: product.ID, Name: product.Name}
		}
		validated = append(validated, OrderItem{
			ProductID: item.ProductID,
			Name:      product.Name,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	return validated, nil
}

// PlaceOrder runs intake validation, materializes the order, then applies
// the stock decrements. The submitted price fields are persisted verbatim.
// A reservation failure after the order row exists is returned as an error
// without deleting the order; the validation pass plus the conditional
// decrement make that reachable only under concurrent submissions.
func (c *Conf) PlaceOrder(ctx context.Context, userID string, no NewOrder) (Order, error) {
	items, err := c.validateItems(ctx, no.Items)
	if err != nil {
		return Order{}, err
	}

	now := time.Now().UTC()
	order := Order{
		ID:              uuid.NewString(),
		UserID:          userID,
		Items:           items,
		ShippingAddress: no.ShippingAddress,
		PaymentMethod:   no.PaymentMethod,
		ItemsPrice:      no.ItemsPrice,
		TaxPrice:        no.TaxPrice,
		ShippingPrice:   no.ShippingPrice,
		TotalPrice:      no.TotalPrice,
		Status:          StatusPlaced,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	created, err := c.store.Create(ctx, order)
	if err != nil {
		return Order{}, fmt.Errorf("creating order: %w", err)
	}

	for _, item := range created.Items {
		ok, err := c.catalog.ReserveStock(ctx, item.ProductID, item.Quantity)
		if err != nil {
			return Order{}, fmt.Errorf("reserving stock for product %s: %w", item.ProductID, err)
		}
		if !ok {
			return Order{}, &OutOfStockError{ProductID: item.ProductID, Name: item.Name}
		}
	}

	return created, nil
}

// GetOrder fetches an order with the owner's name and email populated.
// requesterID/requesterIsAdmin implement the owner-or-admin view rule.
func (c *Conf) GetOrder(ctx context.Context, orderID, requesterID string, requesterIsAdmin bool) (Order, error) {
	order, err := c.store.GetByID(ctx, orderID)
	if err != nil {
		return Order{}, fmt.Errorf("fetching order %s: %w", orderID, err)
	}
	if order == nil {
		return Order{}, ErrOrderNotFound
	}
	if order.UserID != requesterID && !requesterIsAdmin {
		return Order{}, ErrNotOwner
	}
	return *order, nil
}

// MarkPaid flips is_paid once and stamps the payment time. Repeat calls
// are accepted; they overwrite the gateway payload and timestamp while
// is_paid stays true.
func (c *Conf) MarkPaid(ctx context.Context, orderID string, result PaymentResult) (Order, error) {
	order, err := c.store.MarkPaid(ctx, orderID, result, time.Now().UTC())
	if err != nil {
		return Order{}, fmt.Errorf("marking order %s paid: %w", orderID, err)
	}
	if order == nil {
		return Order{}, ErrOrderNotFound
	}
	return *order, nil
}

// SetStatus moves the order to one of the recognized statuses. The
// delivered transition additionally sets is_delivered and stamps the
// delivery time; no status is terminal.
func (c *Conf) SetStatus(ctx context.Context, orderID, status string) (Order, error) {
	if !ValidStatus(status) {
		return Order{}, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}

	delivered := status == StatusDelivered
	order, err := c.store.SetStatus(ctx, orderID, status, delivered, time.Now().UTC())
	if err != nil {
		return Order{}, fmt.Errorf("updating status of order %s: %w", orderID, err)
	}
	if order == nil {
		return Order{}, ErrOrderNotFound
	}
	return *order, nil
}

// MyOrders returns the requesting user's orders, newest first.
func (c *Conf) MyOrders(ctx context.Context, userID string, page, pageSize int) ([]Order, int, error) {
	return c.store.ListByUser(ctx, userID, page, pageSize)
}

// AllOrders returns every order, optionally filtered by a status keyword.
func (c *Conf) AllOrders(ctx context.Context, statusKeyword string, page, pageSize int) ([]Order, int, error) {
	return c.store.List(ctx, statusKeyword, page, pageSize)
}

func (c *Conf) OrderStats(ctx context.Context) (*Stats, error) {
	return c.store.Stats(ctx)
}
