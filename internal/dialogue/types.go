package dialogue

import (
	"time"
)

type Author string

const (
	AuthorUser      Author = "user"
	AuthorAssistant Author = "assistant"
)

// Action names understood by the host UI.
const (
	ActionBrowse     = "browse"
	ActionShop       = "shop"
	ActionRecommend  = "recommend"
	ActionFAQ        = "faq"
	ActionSupport    = "support"
	ActionNavigate   = "navigate"
	ActionTrackOrder = "track_order"
)

type Action struct {
	Label  string `json:"label"`
	Action string `json:"action"`
	Icon   string `json:"icon,omitempty"`
	Route  string `json:"route,omitempty"`
}

type ProductCard struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	CategorySlug   string  `json:"categorySlug"`
	CategoryName   string  `json:"categoryName,omitempty"`
	Image          string  `json:"image,omitempty"`
	Rating         float64 `json:"rating"`
	NumReviews     int     `json:"numReviews"`
	Price          float64 `json:"price"`
	PriceLabel     string  `json:"priceLabel"`
	CompareAtLabel string  `json:"compareAtLabel,omitempty"`
}

// Message is one entry of the conversation. It is never modified after composition.
type Message struct {
	ID           string        `json:"id"`
	Author       Author        `json:"author"`
	Text         string        `json:"text"`
	Intent       string        `json:"intent,omitempty"`
	Products     []ProductCard `json:"products,omitempty"`
	QuickReplies []string      `json:"quickReplies,omitempty"`
	Actions      []Action      `json:"actions,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
}

type SlotKind string

const SlotOrderID SlotKind = "order-id"

type Slot struct {
	Kind SlotKind
}

type State string

const (
	StateIdle            State = "IDLE"
	StateAwaitingOrderID State = "AWAITING_ORDER_ID"
)

type Preferences struct {
	// PriceRange is [min, max]; max is +Inf when only a lower bound was given.
	PriceRange *[2]float64
	Styles     []string
	Colors     []string
}

// ConversationContext is the per-session dialogue state. It is owned by a single
// writer and passed by value into and out of every turn.
type ConversationContext struct {
	LastCategorySlug string
	LastProductID    string
	Preferences      Preferences
	History          []string
	PendingSlot      *Slot
	// Reopenable is the slot a following "try again" may re-open. Any other turn clears it.
	Reopenable *Slot
}

func (c ConversationContext) State() State {
	if c.PendingSlot != nil && c.PendingSlot.Kind == SlotOrderID {
		return StateAwaitingOrderID
	}
	return StateIdle
}

// Clone returns a deep copy so the caller's context is never aliased by the next turn.
func (c ConversationContext) Clone() ConversationContext {
	out := c
	out.History = append([]string(nil), c.History...)
	out.Preferences.Styles = append([]string(nil), c.Preferences.Styles...)
	out.Preferences.Colors = append([]string(nil), c.Preferences.Colors...)
	if c.Preferences.PriceRange != nil {
		pr := *c.Preferences.PriceRange
		out.Preferences.PriceRange = &pr
	}
	if c.PendingSlot != nil {
		s := *c.PendingSlot
		out.PendingSlot = &s
	}
	if c.Reopenable != nil {
		s := *c.Reopenable
		out.Reopenable = &s
	}
	return out
}
