package retrieval

import (
	"context"
	"sort"
	"strings"

	"github.com/ent0n29/concierge/internal/catalog"
	"github.com/ent0n29/concierge/internal/logger"
)

const MaxResults = 4

type Result struct {
	Products []catalog.Product
	Filter   FilterSpec
}

// Retriever turns free text into at most MaxResults candidates from the catalog.
// It has no side effects; callers decide what to remember from Result.
type Retriever struct {
	catalog catalog.Provider
	log     logger.Logger
}

func New(provider catalog.Provider, log logger.Logger) *Retriever {
	return &Retriever{
		catalog: provider,
		log:     log.With(map[string]any{"component": "retriever"}),
	}
}

func (r *Retriever) Search(ctx context.Context, text string) Result {
	spec := ParseFilters(strings.ToLower(strings.TrimSpace(text)))
	if !spec.HasFilter() {
		return Result{Filter: spec}
	}

	products, err := r.catalog.Products(ctx)
	if err != nil {
		r.log.Warn("catalog read failed; treating as empty", map[string]any{"error": err})
		return Result{Filter: spec}
	}
	return Result{Products: Apply(products, spec), Filter: spec}
}

// Apply filters and orders products for spec. The input slice is not modified.
func Apply(products []catalog.Product, spec FilterSpec) []catalog.Product {
	if !spec.HasFilter() {
		return nil
	}

	out := make([]catalog.Product, 0, len(products))
	for _, p := range products {
		if p.Price < spec.PriceMin || p.Price > spec.PriceMax {
			continue
		}
		if spec.CategorySlug != "" && p.CategorySlug != spec.CategorySlug {
			continue
		}
		if spec.Occasion != "" && !matchesOccasion(p, spec.OccasionKeywords) {
			continue
		}
		out = append(out, p)
	}

	switch spec.Sort {
	case SortPopular:
		sort.SliceStable(out, func(i, j int) bool { return out[i].NumReviews > out[j].NumReviews })
	case SortNew:
		out = keep(out, func(p catalog.Product) bool { return p.IsNew })
		sort.SliceStable(out, func(i, j int) bool { return out[i].Rating > out[j].Rating })
	case SortSale:
		out = keep(out, catalog.Product.OnSale)
	case SortCheap:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	case SortLuxury:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price > out[j].Price })
	}

	if len(out) > MaxResults {
		out = out[:MaxResults]
	}
	return out
}

func matchesOccasion(p catalog.Product, keywords []string) bool {
	name := strings.ToLower(p.Name)
	for _, k := range keywords {
		if strings.Contains(name, k) {
			return true
		}
		for _, tag := range p.Tags {
			if strings.EqualFold(tag, k) {
				return true
			}
		}
	}
	return false
}

func keep(products []catalog.Product, pred func(catalog.Product) bool) []catalog.Product {
	out := products[:0]
	for _, p := range products {
		if pred(p) {
			out = append(out, p)
		}
	}
	return out
}
