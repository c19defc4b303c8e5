package orders

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// StaticLookup serves a fixed set of orders, keyed by id and order number.
type StaticLookup struct {
	byKey map[string]Order
}

func NewStaticLookup(orders []Order) *StaticLookup {
	s := &StaticLookup{byKey: make(map[string]Order, len(orders)*2)}
	for _, o := range orders {
		s.byKey[strings.ToUpper(o.ID)] = o
		if o.OrderNumber != "" {
			s.byKey[strings.ToUpper(o.OrderNumber)] = o
		}
	}
	return s
}

func (s *StaticLookup) TrackOrder(ctx context.Context, id string) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o, ok := s.byKey[strings.ToUpper(strings.TrimSpace(id))]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

// SampleOrders is the fixture set used when no real order backend is configured.
func SampleOrders(now time.Time) []Order {
	return []Order{
		{
			ID:             "9f1c2d7e-4b3a-4e51-9a0b-1c2d3e4f5a6b",
			OrderNumber:    "ORD-10001",
			Status:         "shipped",
			Items:          []json.RawMessage{json.RawMessage(`{"productId":"bag-001","quantity":1}`)},
			TotalPrice:     489,
			CreatedAt:      now.AddDate(0, 0, -3),
			TrackingNumber: "1Z999AA10123456784",
		},
		{
			ID:          "3a7b9c1d-2e4f-4a6b-8c0d-ef1234567890",
			OrderNumber: "ORD-10002",
			Status:      "processing",
			Items: []json.RawMessage{
				json.RawMessage(`{"productId":"jwl-002","quantity":1}`),
				json.RawMessage(`{"productId":"acc-001","quantity":2}`),
			},
			TotalPrice: 1260.5,
			CreatedAt:  now.AddDate(0, 0, -1),
		},
	}
}
