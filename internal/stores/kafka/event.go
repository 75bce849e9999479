package kafka

import "time"

const (
	TopicOrderPlaced = `order-service.order-placed`
	TopicOrderPaid   = `order-service.order-paid`
)

// OrderPlacedEvent is produced once per order after a successful checkout.
type OrderPlacedEvent struct {
	OrderId    string    `json:"order_id"`
	UserId     string    `json:"user_id"`
	TotalPrice int64     `json:"total_price"`
	CreatedAt  time.Time `json:"created_at"`
}

// OrderPaidEvent is produced per line item once payment is confirmed, so
// downstream consumers can react per product.
type OrderPaidEvent struct {
	OrderId   string    `json:"order_id"`
	ProductId string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}
