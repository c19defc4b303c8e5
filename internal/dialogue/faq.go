package dialogue

type faqEntry struct {
	key     string
	answer  string
	replies []string
	actions []Action
}

// Matched by plain substring in declaration order; the first key present wins.
var faqEntries = []faqEntry{
	{
		key:     "shipping",
		answer:  "We offer free standard shipping on orders over $100 (3-5 business days). Express shipping (1-2 business days) is $15, and we ship to over 50 countries.",
		replies: []string{"Returns policy", "📦 Track my order", "Contact support"},
	},
	{
		key:     "returns",
		answer:  "You can return unworn items with tags attached within 30 days for a full refund. Start a return from your account and we'll email a prepaid label.",
		replies: []string{"Shipping info", "Sizing guide", "Contact support"},
		actions: []Action{{Label: "Start a return", Action: ActionNavigate, Icon: "↩️", Route: "/account/orders"}},
	},
	{
		key:     "sizing",
		answer:  "Every product page has a size chart. Between sizes? We recommend sizing up for shoes and checking the measurements for dresses.",
		replies: []string{"👠 Shoes", "👗 Dresses", "Returns policy"},
		actions: []Action{{Label: "Size guide", Action: ActionFAQ, Icon: "📏", Route: "/faq#sizing"}},
	},
	{
		key:     "payment",
		answer:  "We accept all major credit cards, PayPal, Apple Pay and Google Pay. Payments are processed securely and never stored on our servers.",
		replies: []string{"Shipping info", "Gift cards", "Contact support"},
	},
	{
		key:     "track order",
		answer:  "You can track any order from your account page, or just tell me \"track my order\" and I'll look it up for you.",
		replies: []string{"📦 Track my order", "Shipping info"},
		actions: []Action{{Label: "My orders", Action: ActionNavigate, Icon: "📋", Route: "/account/orders"}},
	},
	{
		key:     "contact",
		answer:  "Our support team is available Monday to Friday, 9am-6pm EST at support@luxe-store.com or through live chat on the contact page.",
		replies: []string{"Shipping info", "Returns policy"},
		actions: []Action{{Label: "Contact support", Action: ActionSupport, Icon: "💬", Route: "/contact"}},
	},
	{
		key:     "gift",
		answer:  "We offer complimentary gift wrapping at checkout and digital gift cards from $25 to $1,000.",
		replies: []string{"🧣 Scarves under $200", "💎 Jewelry", "Accessories"},
	},
	{
		key:     "loyalty",
		answer:  "Members of our loyalty program earn 1 point per $1 spent, get early access to new arrivals and enjoy a birthday reward every year.",
		replies: []string{"✨ New arrivals", "Contact support"},
	},
}
