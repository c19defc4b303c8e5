package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/ent0n29/concierge/internal/reliability"
)

const trackOrderQuery = `SELECT o.id, COALESCE(o.order_number, ''), o.status, o.total_price, o.created_at,
	COALESCE(o.tracking_number, ''),
	COALESCE((SELECT json_agg(json_build_object('productId', oi.product_id, 'quantity', oi.quantity, 'price', oi.price))
		FROM order_items oi WHERE oi.order_id = o.id), '[]'::json)::text
FROM orders o
WHERE o.id::text = $1 OR o.order_number = $1
LIMIT 1`

// SQLLookup reads orders straight from the storefront database.
type SQLLookup struct {
	db *sql.DB
}

func NewSQLLookup(db *sql.DB) *SQLLookup {
	return &SQLLookup{db: db}
}

func (l *SQLLookup) TrackOrder(ctx context.Context, id string) (*Order, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}

	var (
		order Order
		items string
	)
	err := l.db.QueryRowContext(ctx, trackOrderQuery, id).Scan(
		&order.ID,
		&order.OrderNumber,
		&order.Status,
		&order.TotalPrice,
		&order.CreatedAt,
		&order.TrackingNumber,
		&items,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		if reliability.IsTransient(err) {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return nil, fmt.Errorf("query order: %w", err)
	}
	if err := json.Unmarshal([]byte(items), &order.Items); err != nil {
		return nil, fmt.Errorf("decode order items: %w", err)
	}
	return &order, nil
}
