package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
)

// Product is the subset of storefront catalog fields the concierge reads.
type Product struct {
	ID             string   `json:"id" yaml:"id"`
	Name           string   `json:"name" yaml:"name"`
	Price          float64  `json:"price" yaml:"price"`
	CompareAtPrice *float64 `json:"compareAtPrice,omitempty" yaml:"compareAtPrice,omitempty"`
	CategorySlug   string   `json:"categorySlug" yaml:"categorySlug"`
	CategoryName   string   `json:"categoryName" yaml:"categoryName"`
	Tags           []string `json:"tags" yaml:"tags"`
	IsNew          bool     `json:"isNew" yaml:"isNew"`
	IsFeatured     bool     `json:"isFeatured" yaml:"isFeatured"`
	Rating         float64  `json:"rating" yaml:"rating"`
	NumReviews     int      `json:"numReviews" yaml:"numReviews"`
	Image          string   `json:"image" yaml:"image"`
}

// OnSale reports whether the compare-at price is present and above the price.
func (p Product) OnSale() bool {
	return p.CompareAtPrice != nil && *p.CompareAtPrice > p.Price
}

// Provider returns the ordered product set. Implementations must be safe for
// concurrent readers; the returned slice must not be mutated by callers.
type Provider interface {
	Products(ctx context.Context) ([]Product, error)
}

var ErrInvalidProduct = errors.New("invalid product")

func validateProducts(products []Product) error {
	seen := make(map[string]struct{}, len(products))
	for i, p := range products {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return fmt.Errorf("%w: product %d has no id", ErrInvalidProduct, i)
		}
		if p.Price < 0 {
			return fmt.Errorf("%w: product %s has negative price", ErrInvalidProduct, id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate id %s", ErrInvalidProduct, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// Static serves an in-memory snapshot that can be swapped atomically between turns.
type Static struct {
	snapshot atomic.Pointer[[]Product]
}

func NewStatic(products []Product) (*Static, error) {
	s := &Static{}
	if err := s.Replace(products); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Static) Products(_ context.Context) ([]Product, error) {
	p := s.snapshot.Load()
	if p == nil {
		return nil, nil
	}
	return *p, nil
}

// Replace validates and installs a new snapshot. Readers holding the old slice keep it.
func (s *Static) Replace(products []Product) error {
	if err := validateProducts(products); err != nil {
		return err
	}
	cp := make([]Product, len(products))
	copy(cp, products)
	s.snapshot.Store(&cp)
	return nil
}
