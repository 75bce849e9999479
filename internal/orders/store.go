package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresStore persists orders and their line items.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		er := tx.Rollback()
		if er != nil && !errors.Is(er, sql.ErrTxDone) {
			return fmt.Errorf("failed to rollback withTx: %w", err)
		}
		return fmt.Errorf("failed to execute withTx: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit withTx: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, order Order) (Order, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		queryOrder := `
			INSERT INTO orders (id, user_id, shipping_street, shipping_city, shipping_state,
			                    shipping_zip_code, shipping_country, payment_method,
			                    items_price, tax_price, shipping_price, total_price,
			                    status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		`
		_, err := tx.ExecContext(ctx, queryOrder,
			order.ID, order.UserID,
			order.ShippingAddress.Street, order.ShippingAddress.City, order.ShippingAddress.State,
			order.ShippingAddress.ZipCode, order.ShippingAddress.Country, order.PaymentMethod,
			order.ItemsPrice, order.TaxPrice, order.ShippingPrice, order.TotalPrice,
			order.Status, order.CreatedAt, order.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}

		queryItem := `
			INSERT INTO order_items (order_id, product_id, name, quantity, price)
			VALUES ($1, $2, $3, $4, $5)
		`
		for _, item := range order.Items {
			_, err := tx.ExecContext(ctx, queryItem, order.ID, item.ProductID, item.Name, item.Quantity, item.Price)
			if err != nil {
				return fmt.Errorf("failed to insert order item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

const orderColumns = `
	o.id, o.user_id, o.shipping_street, o.shipping_city, o.shipping_state,
	o.shipping_zip_code, o.shipping_country, o.payment_method,
	o.items_price, o.tax_price, o.shipping_price, o.total_price,
	o.is_paid, o.paid_at, o.payment_id, o.payment_status, o.payment_update_time, o.payer_email,
	o.is_delivered, o.delivered_at, o.status, o.created_at, o.updated_at
`

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.UserID, &o.ShippingAddress.Street, &o.ShippingAddress.City, &o.ShippingAddress.State,
		&o.ShippingAddress.ZipCode, &o.ShippingAddress.Country, &o.PaymentMethod,
		&o.ItemsPrice, &o.TaxPrice, &o.ShippingPrice, &o.TotalPrice,
		&o.IsPaid, &o.PaidAt, &o.PaymentResult.ID, &o.PaymentResult.Status,
		&o.PaymentResult.UpdateTime, &o.PaymentResult.EmailAddress,
		&o.IsDelivered, &o.DeliveredAt, &o.Status, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

func (s *PostgresStore) loadItems(ctx context.Context, q interface {
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
}, orderID string) ([]OrderItem, error) {
	query := `
		SELECT product_id, name, quantity, price
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`
	rows, err := q.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.Quantity, &item.Price); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, orderID string) (*Order, error) {
	query := `
		SELECT ` + orderColumns + `, u.name, u.email
		FROM orders o
		JOIN users u ON u.id = o.user_id
		WHERE o.id = $1
	`
	row := s.db.QueryRowContext(ctx, query, orderID)

	var o Order
	err := row.Scan(
		&o.ID, &o.UserID, &o.ShippingAddress.Street, &o.ShippingAddress.City, &o.ShippingAddress.State,
		&o.ShippingAddress.ZipCode, &o.ShippingAddress.Country, &o.PaymentMethod,
		&o.ItemsPrice, &o.TaxPrice, &o.ShippingPrice, &o.TotalPrice,
		&o.IsPaid, &o.PaidAt, &o.PaymentResult.ID, &o.PaymentResult.Status,
		&o.PaymentResult.UpdateTime, &o.PaymentResult.EmailAddress,
		&o.IsDelivered, &o.DeliveredAt, &o.Status, &o.CreatedAt, &o.UpdatedAt,
		&o.UserName, &o.UserEmail,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query order: %w", err)
	}

	items, err := s.loadItems(ctx, s.db, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (s *PostgresStore) MarkPaid(ctx context.Context, orderID string, result PaymentResult, paidAt time.Time) (*Order, error) {
	query := `
		UPDATE orders o
		SET is_paid = TRUE, paid_at = $2,
		    payment_id = $3, payment_status = $4, payment_update_time = $5, payer_email = $6,
		    updated_at = NOW()
		WHERE o.id = $1
		RETURNING ` + orderColumns + `
	`
	row := s.db.QueryRowContext(ctx, query, orderID, paidAt,
		result.ID, result.Status, result.UpdateTime, result.EmailAddress)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update order payment: %w", err)
	}

	items, err := s.loadItems(ctx, s.db, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (s *PostgresStore) SetStatus(ctx context.Context, orderID string, status string, delivered bool, deliveredAt time.Time) (*Order, error) {
	query := `
		UPDATE orders o
		SET status = $2,
		    is_delivered = CASE WHEN $3 THEN TRUE ELSE is_delivered END,
		    delivered_at = CASE WHEN $3 THEN $4 ELSE delivered_at END,
		    updated_at = NOW()
		WHERE o.id = $1
		RETURNING ` + orderColumns + `
	`
	row := s.db.QueryRowContext(ctx, query, orderID, status, delivered, deliveredAt)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	items, err := s.loadItems(ctx, s.db, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string, page, pageSize int) ([]Order, int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders o
		WHERE o.user_id = $1
		ORDER BY o.created_at DESC
		LIMIT $2 OFFSET $3
	`
	return s.listOrders(ctx, query, count, userID, pageSize, (page-1)*pageSize)
}

func (s *PostgresStore) List(ctx context.Context, statusKeyword string, page, pageSize int) ([]Order, int, error) {
	keyword := "%" + statusKeyword + "%"

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE ($1 = '%%' OR status ILIKE $1)`, keyword).Scan(&count)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders o
		WHERE ($1 = '%%' OR o.status ILIKE $1)
		ORDER BY o.created_at DESC
		LIMIT $2 OFFSET $3
	`
	return s.listOrders(ctx, query, count, keyword, pageSize, (page-1)*pageSize)
}

func (s *PostgresStore) listOrders(ctx context.Context, query string, count int, args ...any) ([]Order, int, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var result []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan order: %w", err)
		}
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating orders: %w", err)
	}

	for i := range result {
		items, err := s.loadItems(ctx, s.db, result[i].ID)
		if err != nil {
			return nil, 0, err
		}
		result[i].Items = items
	}
	return result, count, nil
}

func (s *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(total_price), 0) FROM orders`).
		Scan(&stats.TotalOrders, &stats.TotalSales)
	if err != nil {
		return nil, fmt.Errorf("failed to query order totals: %w", err)
	}

	dailyQuery := `
		SELECT TO_CHAR(created_at, 'YYYY-MM-DD') AS day,
		       COALESCE(SUM(total_price), 0), COUNT(*)
		FROM orders
		WHERE created_at >= NOW() - INTERVAL '30 days'
		GROUP BY day
		ORDER BY day
	`
	rows, err := s.db.QueryContext(ctx, dailyQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily sales: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var d DailySale
		if err := rows.Scan(&d.Date, &d.Sales, &d.Orders); err != nil {
			return nil, fmt.Errorf("failed to scan daily sales: %w", err)
		}
		stats.DailySales = append(stats.DailySales, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily sales: %w", err)
	}

	statusRows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to query status counts: %w", err)
	}
	defer statusRows.Close()
	for statusRows.Next() {
		var sc StatusCount
		if err := statusRows.Scan(&sc.Status, &sc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		stats.StatusCounts = append(stats.StatusCounts, sc)
	}
	if err := statusRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status counts: %w", err)
	}

	return &stats, nil
}

// PostgresCatalog is the order core's view of the products table. Stock is
// mutated here and nowhere else; catalog edits set the column directly but
// never run decrement arithmetic.
type PostgresCatalog struct {
	db *sql.DB
}

func NewPostgresCatalog(db *sql.DB) (*PostgresCatalog, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &PostgresCatalog{db: db}, nil
}

func (c *PostgresCatalog) ProductForOrder(ctx context.Context, productID string) (*CatalogProduct, error) {
	query := `SELECT id, name, price, stock FROM products WHERE id = $1`
	var p CatalogProduct
	err := c.db.QueryRowContext(ctx, query, productID).Scan(&p.ID, &p.Name, &p.Price, &p.Stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query product: %w", err)
	}
	return &p, nil
}

// ReserveStock decrements stock in one conditional statement, so two
// concurrent orders can never drive stock negative between a read and a
// write.
func (c *PostgresCatalog) ReserveStock(ctx context.Context, productID string, quantity int) (bool, error) {
	query := `
		UPDATE products
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND stock >= $2
	`
	res, err := c.db.ExecContext(ctx, query, productID, quantity)
	if err != nil {
		return false, fmt.Errorf("failed to decrement stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected == 1, nil
}
