package orders

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotFound    = errors.New("order not found")
	ErrUnavailable = errors.New("order lookup unavailable")
)

type Order struct {
	ID             string            `json:"id"`
	OrderNumber    string            `json:"orderNumber,omitempty"`
	Status         string            `json:"status"`
	Items          []json.RawMessage `json:"items"`
	TotalPrice     float64           `json:"totalPrice"`
	CreatedAt      time.Time         `json:"createdAt"`
	TrackingNumber string            `json:"trackingNumber,omitempty"`
}

// Lookup resolves an order id (or order number) to an order record.
// Implementations return ErrNotFound for unknown ids and wrap transport
// problems with ErrUnavailable. Callers make one attempt per turn.
type Lookup interface {
	TrackOrder(ctx context.Context, id string) (*Order, error)
}
