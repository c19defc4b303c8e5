package dialogue

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ent0n29/concierge/internal/catalog"
	"github.com/ent0n29/concierge/internal/retrieval"
)

// MatchResult is a resolver answer. Products is only set by the styling rule.
type MatchResult struct {
	Key          string
	Text         string
	QuickReplies []string
	Actions      []Action
	Products     []catalog.Product
	// Retrieval is the underlying search when the rule consulted the retriever.
	Retrieval *retrieval.Result
}

// Searcher is the product retriever as seen by the dialogue layer.
type Searcher interface {
	Search(ctx context.Context, text string) retrieval.Result
}

type rule struct {
	key     string
	match   func(text string) bool
	respond func(ctx context.Context, text string, cc ConversationContext) MatchResult
}

const styleSeedQuery = "formal dress jewelry heels"

var (
	greetingRe   = regexp.MustCompile(`^(hi|hello|hey|good (morning|afternoon|evening)|greetings|howdy)\b`)
	thanksRe     = regexp.MustCompile(`\b(thank|thx|appreciate)`)
	farewellRe   = regexp.MustCompile(`\b(bye|goodbye|see you|see ya|farewell|take care)\b`)
	styleRe      = regexp.MustCompile(`\b(style|styling|advice|outfit|recommend|suggest)`)
	comparisonRe = regexp.MustCompile(`\bcompar|\bvs\b|difference between`)
	helpRe       = regexp.MustCompile(`\bhelp\b|\bfaq\b|what can you do`)
)

// Resolver evaluates an ordered rule list; the first rule that matches answers the turn.
type Resolver struct {
	rules     []rule
	retriever Searcher
}

func NewResolver(retriever Searcher) *Resolver {
	r := &Resolver{retriever: retriever}
	r.rules = []rule{
		{key: "greeting", match: greetingRe.MatchString, respond: greeting},
		{key: "thanks", match: thanksRe.MatchString, respond: thanks},
		{key: "farewell", match: farewellRe.MatchString, respond: farewell},
		{key: "style_advice", match: styleRe.MatchString, respond: r.styleAdvice},
		{key: "comparison", match: comparisonRe.MatchString, respond: comparison},
	}
	for _, entry := range faqEntries {
		r.rules = append(r.rules, faqRule(entry))
	}
	r.rules = append(r.rules, rule{key: "help", match: helpRe.MatchString, respond: help})
	return r
}

// Rules returns rule keys in evaluation order.
func (r *Resolver) Rules() []string {
	keys := make([]string, 0, len(r.rules))
	for _, rl := range r.rules {
		keys = append(keys, rl.key)
	}
	return keys
}

func (r *Resolver) Resolve(ctx context.Context, text string, cc ConversationContext) (*MatchResult, bool) {
	text = Normalize(text)
	if text == "" {
		return nil, false
	}
	for _, rl := range r.rules {
		if !rl.match(text) {
			continue
		}
		res := rl.respond(ctx, text, cc)
		if res.Key == "" {
			res.Key = rl.key
		}
		return &res, true
	}
	return nil, false
}

func faqRule(entry faqEntry) rule {
	return rule{
		key:   "faq:" + entry.key,
		match: func(text string) bool { return strings.Contains(text, entry.key) },
		respond: func(context.Context, string, ConversationContext) MatchResult {
			return MatchResult{Text: entry.answer, QuickReplies: entry.replies, Actions: entry.actions}
		},
	}
}

func greeting(_ context.Context, _ string, cc ConversationContext) MatchResult {
	text := "Hello and welcome! ✨ I'm your personal shopping concierge. I can help you discover new pieces, put together an outfit, or check on an order. What are you looking for today?"
	if cc.LastCategorySlug != "" {
		text = fmt.Sprintf("Welcome back! ✨ Still browsing %s, or shall we look at something new today?", cc.LastCategorySlug)
	}
	return MatchResult{
		Text:         text,
		QuickReplies: []string{"✨ New arrivals", "🔥 Best sellers", "💡 Style advice", "📦 Track my order"},
	}
}

func thanks(context.Context, string, ConversationContext) MatchResult {
	return MatchResult{
		Text:         "You're very welcome! 💕 Is there anything else I can help you find?",
		QuickReplies: []string{"✨ New arrivals", "💡 Style advice", "👋 Bye"},
	}
}

func farewell(context.Context, string, ConversationContext) MatchResult {
	return MatchResult{
		Text:         "Thank you for stopping by! Come back any time, happy shopping! 👋",
		QuickReplies: []string{"✨ New arrivals", "📦 Track my order"},
	}
}

func (r *Resolver) styleAdvice(ctx context.Context, text string, cc ConversationContext) MatchResult {
	if strings.Contains(text, "wedding") || strings.Contains(text, "formal") {
		res := r.retriever.Search(ctx, styleSeedQuery)
		products := res.Products
		if len(products) > retrieval.MaxResults {
			products = products[:retrieval.MaxResults]
		}
		return MatchResult{
			Key:          "style_formal",
			Text:         "For a formal occasion or a wedding, I'd pair an elegant dress with statement jewelry and a classic heel. Here are a few pieces to start with:",
			QuickReplies: []string{"💎 Jewelry", "👠 Shoes", "👜 Evening bags"},
			Actions:      []Action{{Label: "Shop the look", Action: ActionRecommend, Icon: "✨", Route: "/products?occasion=wedding"}},
			Products:     products,
			Retrieval:    &res,
		}
	}

	intro := "I'd love to help you put together a look!"
	if cc.LastCategorySlug != "" {
		intro = fmt.Sprintf("I'd love to help you style something, maybe around the %s you were looking at!", cc.LastCategorySlug)
	}
	return MatchResult{
		Text: intro + " Tell me a little more:\n" +
			"1. What's the occasion?\n" +
			"2. Which colors or styles do you usually reach for?\n" +
			"3. Do you have a budget in mind?",
		QuickReplies: []string{"💒 Wedding guest", "💼 For work", "🌙 Date night", "🏖️ Vacation", "🎉 Party"},
	}
}

func comparison(context.Context, string, ConversationContext) MatchResult {
	return MatchResult{
		Text:         "Happy to help you compare! Open the products you're deciding between and I'll point out the differences in material, price and reviews. Which category are you comparing?",
		QuickReplies: []string{"👜 Handbags", "💎 Jewelry", "👠 Shoes"},
		Actions:      []Action{{Label: "Browse products", Action: ActionShop, Icon: "🛍️", Route: "/products"}},
	}
}

func help(context.Context, string, ConversationContext) MatchResult {
	return MatchResult{
		Text: "Here's what I can do for you:\n" +
			"• Find products by category, budget or occasion\n" +
			"• Give styling advice\n" +
			"• Track your orders\n" +
			"• Answer questions about shipping, returns, sizing and payment",
		QuickReplies: capabilityReplies,
		Actions:      []Action{{Label: "Read the FAQ", Action: ActionFAQ, Icon: "❓", Route: "/faq"}},
	}
}
