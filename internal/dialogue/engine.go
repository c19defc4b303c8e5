package dialogue

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/ent0n29/concierge/internal/catalog"
	"github.com/ent0n29/concierge/internal/logger"
	"github.com/ent0n29/concierge/internal/orders"
	"github.com/ent0n29/concierge/internal/policy"
	"github.com/ent0n29/concierge/internal/retrieval"
)

const (
	DefaultHistoryLimit  = 10
	DefaultLookupTimeout = 5 * time.Second
)

var (
	styleWords = []string{"classic", "minimalist", "bohemian", "boho", "vintage", "modern", "elegant", "casual", "edgy", "romantic", "sporty", "chic"}
	colorWords = []string{"black", "white", "red", "blue", "navy", "green", "pink", "gold", "silver", "beige", "brown", "nude", "cream"}

	styleWordRe = wordSetRe(styleWords)
	colorWordRe = wordSetRe(colorWords)
)

type Options struct {
	HistoryLimit  int
	LookupTimeout time.Duration
	Clock         func() time.Time
}

// Engine runs one turn at a time for a single conversation. It holds no
// per-session state; the context is passed in and returned.
type Engine struct {
	resolver      *Resolver
	retriever     Searcher
	orders        orders.Lookup
	composer      *Composer
	historyLimit  int
	lookupTimeout time.Duration
	log           logger.Logger
}

func NewEngine(retriever Searcher, lookup orders.Lookup, opts Options, log logger.Logger) *Engine {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = DefaultLookupTimeout
	}
	return &Engine{
		resolver:      NewResolver(retriever),
		retriever:     retriever,
		orders:        lookup,
		composer:      NewComposer(opts.Clock),
		historyLimit:  opts.HistoryLimit,
		lookupTimeout: opts.LookupTimeout,
		log:           log.With(map[string]any{"component": "dialogue"}),
	}
}

func (e *Engine) Composer() *Composer {
	return e.composer
}

func (e *Engine) Resolver() *Resolver {
	return e.resolver
}

// HandleTurn always returns exactly one assistant message and the next context.
func (e *Engine) HandleTurn(ctx context.Context, raw string, cc ConversationContext) (Message, ConversationContext) {
	next := cc.Clone()
	text := Normalize(raw)
	reopen := next.Reopenable
	next.Reopenable = nil

	if next.State() == StateAwaitingOrderID {
		slot := next.PendingSlot
		next.PendingSlot = nil
		if text == "cancel" {
			next.Reopenable = slot
			return e.composer.OrderCancelled(), next
		}
		msg := e.trackOrder(ctx, strings.TrimSpace(raw), &next)
		return msg, next
	}

	if isTrackRequest(text) {
		next.PendingSlot = &Slot{Kind: SlotOrderID}
		return e.composer.OrderPrompt(false), next
	}

	if text == "try again" && reopen != nil {
		next.PendingSlot = reopen
		return e.composer.OrderPrompt(true), next
	}

	next.History = appendBounded(next.History, raw, e.historyLimit)
	capturePreferences(text, &next)

	if m, ok := e.resolver.Resolve(ctx, text, next); ok {
		if m.Retrieval != nil {
			applyRetrieval(*m.Retrieval, m.Products, &next)
		}
		return e.composer.FromMatch(*m), next
	}

	res := e.retriever.Search(ctx, text)
	applyRetrieval(res, res.Products, &next)
	if len(res.Products) > 0 {
		return e.composer.Products(res.Products, res.Filter.CategorySlug), next
	}
	return e.composer.Fallback(), next
}

func (e *Engine) trackOrder(ctx context.Context, id string, next *ConversationContext) Message {
	lookupCtx, cancel := context.WithTimeout(ctx, e.lookupTimeout)
	defer cancel()

	order, err := e.orders.TrackOrder(lookupCtx, id)
	if err != nil {
		next.Reopenable = &Slot{Kind: SlotOrderID}
		e.log.Info("order lookup failed", map[string]any{
			"order_ref": policy.LogSafe(id),
			"error":     err.Error(),
		})
		return e.composer.OrderError(id, err)
	}
	return e.composer.OrderStatus(*order)
}

func isTrackRequest(text string) bool {
	return strings.Contains(text, "track") &&
		(strings.Contains(text, "order") || strings.Contains(text, "another"))
}

func appendBounded(history []string, entry string, limit int) []string {
	history = append(history, entry)
	if over := len(history) - limit; over > 0 {
		history = append([]string(nil), history[over:]...)
	}
	return history
}

func applyRetrieval(res retrieval.Result, shown []catalog.Product, next *ConversationContext) {
	if res.Filter.CategorySlug != "" {
		next.LastCategorySlug = res.Filter.CategorySlug
	}
	if len(shown) > 0 {
		next.LastProductID = shown[0].ID
	}
	if res.Filter.HasPriceBound() {
		next.Preferences.PriceRange = &[2]float64{res.Filter.PriceMin, res.Filter.PriceMax}
	}
}

func capturePreferences(text string, next *ConversationContext) {
	for _, s := range styleWordRe.FindAllString(text, -1) {
		next.Preferences.Styles = appendUnique(next.Preferences.Styles, s)
	}
	for _, c := range colorWordRe.FindAllString(text, -1) {
		next.Preferences.Colors = appendUnique(next.Preferences.Colors, c)
	}
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func wordSetRe(words []string) *regexp.Regexp {
	return regexp.MustCompile(`\b(` + strings.Join(words, "|") + `)\b`)
}
