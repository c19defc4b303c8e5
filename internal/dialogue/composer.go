package dialogue

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ent0n29/concierge/internal/catalog"
	"github.com/ent0n29/concierge/internal/orders"
)

// Intents reported on composed messages. Resolver rule keys are used as-is.
const (
	IntentProducts         = "products"
	IntentFallback         = "fallback"
	IntentOrderPrompt      = "order_prompt"
	IntentOrderStatus      = "order_status"
	IntentOrderNotFound    = "order_not_found"
	IntentOrderUnavailable = "order_unavailable"
	IntentOrderCancelled   = "order_cancelled"
)

var (
	orderSuccessReplies = []string{"Track another order", "Contact support", "Back to shopping"}
	orderFailureReplies = []string{"Try again", "View my orders", "Contact support"}
	capabilityReplies   = []string{"✨ New arrivals", "🔥 Best sellers", "💡 Style advice", "📦 Track my order", "🚚 Shipping info"}
)

var browseAction = Action{Label: "Browse all products", Action: ActionBrowse, Icon: "🛍️", Route: "/products"}

var statusEmoji = map[string]string{
	"pending":    "⏳",
	"processing": "⚙️",
	"shipped":    "🚚",
	"delivered":  "✅",
	"cancelled":  "❌",
}

// Composer normalizes every turn outcome into a Message.
type Composer struct {
	now     func() time.Time
	newID   func() string
	printer *message.Printer
}

func NewComposer(now func() time.Time) *Composer {
	if now == nil {
		now = time.Now
	}
	return &Composer{
		now:     now,
		newID:   uuid.NewString,
		printer: message.NewPrinter(language.English),
	}
}

func (c *Composer) UserMessage(text string) Message {
	return Message{
		ID:        c.newID(),
		Author:    AuthorUser,
		Text:      text,
		CreatedAt: c.now().UTC(),
	}
}

func (c *Composer) reply(intent, text string, replies []string, actions []Action, products []catalog.Product) Message {
	return Message{
		ID:           c.newID(),
		Author:       AuthorAssistant,
		Text:         text,
		Intent:       intent,
		Products:     c.cards(products),
		QuickReplies: append([]string(nil), replies...),
		Actions:      append([]Action(nil), actions...),
		CreatedAt:    c.now().UTC(),
	}
}

func (c *Composer) FromMatch(m MatchResult) Message {
	return c.reply(m.Key, m.Text, m.QuickReplies, m.Actions, m.Products)
}

func (c *Composer) Products(products []catalog.Product, categorySlug string) Message {
	text := "Here are a few pieces I think you'll love:"
	if categorySlug != "" {
		text = fmt.Sprintf("Here are some %s picks I think you'll love:", categorySlug)
	}
	actions := []Action{{Label: "See all", Action: ActionShop, Icon: "🛍️", Route: categoryRoute(categorySlug)}}
	return c.reply(IntentProducts, text, []string{"🏷️ On sale", "💡 Style advice", "🔥 Best sellers"}, actions, products)
}

func (c *Composer) Fallback() Message {
	return c.reply(IntentFallback,
		"I'm not sure I caught that, but here's what I can help you with:",
		capabilityReplies, []Action{browseAction}, nil)
}

func (c *Composer) OrderPrompt(retry bool) Message {
	text := "Sure! Please enter your order number (for example ORD-12345) and I'll look it up."
	if retry {
		text = "Let's try that again. What's your order number?"
	}
	return c.reply(IntentOrderPrompt, text, nil, nil, nil)
}

func (c *Composer) OrderCancelled() Message {
	return c.reply(IntentOrderCancelled, "No problem, I've stopped the order lookup.",
		[]string{"Try again", "Back to shopping"}, nil, nil)
}

func (c *Composer) OrderError(id string, err error) Message {
	intent := IntentOrderUnavailable
	text := "I'm having trouble reaching our order system right now. Please try again in a moment."
	if errors.Is(err, orders.ErrNotFound) {
		intent = IntentOrderNotFound
		text = fmt.Sprintf("I couldn't find an order matching %q. Please double-check the number in your confirmation email.", id)
	}
	actions := []Action{{Label: "My orders", Action: ActionNavigate, Icon: "📋", Route: "/account/orders"}}
	return c.reply(intent, text, orderFailureReplies, actions, nil)
}

func (c *Composer) OrderStatus(o orders.Order) Message {
	emoji, ok := statusEmoji[strings.ToLower(o.Status)]
	if !ok {
		emoji = "📦"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s Order %s: %s\n", emoji, OrderLabel(o), cases.Title(language.English).String(o.Status))
	if n := len(o.Items); n == 1 {
		b.WriteString("Items: 1 item\n")
	} else {
		fmt.Fprintf(&b, "Items: %d items\n", n)
	}
	fmt.Fprintf(&b, "Total: %s\n", c.Currency(o.TotalPrice))
	if !o.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "Placed: %s\n", o.CreatedAt.Format("Jan 2, 2006"))
	}
	if o.TrackingNumber != "" {
		fmt.Fprintf(&b, "Tracking number: %s\n", o.TrackingNumber)
	}

	actions := []Action{{Label: "Order details", Action: ActionTrackOrder, Icon: "📦", Route: "/account/orders/" + o.ID}}
	return c.reply(IntentOrderStatus, strings.TrimRight(b.String(), "\n"), orderSuccessReplies, actions, nil)
}

// OrderLabel is the order number, or the last 8 characters of the id uppercased.
func OrderLabel(o orders.Order) string {
	if o.OrderNumber != "" {
		return o.OrderNumber
	}
	id := o.ID
	if len(id) > 8 {
		id = id[len(id)-8:]
	}
	return strings.ToUpper(id)
}

func (c *Composer) Currency(v float64) string {
	return c.printer.Sprintf("$%.2f", v)
}

func (c *Composer) cards(products []catalog.Product) []ProductCard {
	if len(products) == 0 {
		return nil
	}
	out := make([]ProductCard, 0, len(products))
	for _, p := range products {
		card := ProductCard{
			ID:           p.ID,
			Name:         p.Name,
			CategorySlug: p.CategorySlug,
			CategoryName: p.CategoryName,
			Image:        p.Image,
			Rating:       p.Rating,
			NumReviews:   p.NumReviews,
			Price:        p.Price,
			PriceLabel:   c.Currency(p.Price),
		}
		if p.OnSale() {
			card.CompareAtLabel = c.Currency(*p.CompareAtPrice)
		}
		out = append(out, card)
	}
	return out
}

func categoryRoute(slug string) string {
	if slug == "" {
		return "/products"
	}
	return "/products?category=" + slug
}
