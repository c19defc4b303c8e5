package retrieval

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

type Sort string

const (
	SortNone    Sort = ""
	SortPopular Sort = "popular"
	SortNew     Sort = "new"
	SortSale    Sort = "sale"
	SortCheap   Sort = "cheap"
	SortLuxury  Sort = "luxury"
)

// FilterSpec is derived from one turn's text and never persisted.
type FilterSpec struct {
	PriceMin         float64
	PriceMax         float64
	CategorySlug     string
	Occasion         string
	OccasionKeywords []string
	Sort             Sort
}

func (f FilterSpec) HasPriceBound() bool {
	return f.PriceMin > 0 || !math.IsInf(f.PriceMax, 1)
}

// HasFilter reports whether any price, category, occasion or sort keyword narrowed the query.
func (f FilterSpec) HasFilter() bool {
	return f.HasPriceBound() || f.CategorySlug != "" || f.Occasion != "" || f.Sort != SortNone
}

const amount = `\$?\s*([\d,]+(?:\.\d+)?)`

type pricePattern struct {
	re    *regexp.Regexp
	apply func(f *FilterSpec, vals []float64)
}

// Evaluated in order; the first pattern that matches sets the bounds.
var pricePatterns = []pricePattern{
	{
		re:    regexp.MustCompile(`\b(?:under|below|less than)\s+` + amount),
		apply: func(f *FilterSpec, v []float64) { f.PriceMax = v[0] },
	},
	{
		re:    regexp.MustCompile(`\b(?:over|above|more than)\s+` + amount),
		apply: func(f *FilterSpec, v []float64) { f.PriceMin = v[0] },
	},
	{
		re: regexp.MustCompile(`\bbetween\s+` + amount + `\s+and\s+` + amount),
		apply: func(f *FilterSpec, v []float64) {
			lo, hi := v[0], v[1]
			if lo > hi {
				lo, hi = hi, lo
			}
			f.PriceMin, f.PriceMax = lo, hi
		},
	},
}

type keywordSet struct {
	name     string
	keywords []string
}

// Declaration order is the tie-break: the first category with a hit wins.
var categories = []keywordSet{
	{"handbags", []string{"bag", "purse", "handbag", "clutch", "tote", "satchel", "crossbody", "backpack"}},
	{"jewelry", []string{"jewel", "necklace", "earring", "bracelet", "pendant", "diamond"}},
	{"shoes", []string{"shoe", "heel", "sneaker", "boot", "sandal", "loafer", "pump"}},
	{"dresses", []string{"dress", "gown", "maxi", "midi"}},
	{"accessories", []string{"accessor", "scarf", "belt", "sunglass", "wallet", "watch"}},
}

type occasion struct {
	phrase   string
	keywords []string
}

var occasions = []occasion{
	{"wedding", []string{"wedding", "formal", "elegant", "bridal", "pearl", "silk", "evening"}},
	{"party", []string{"party", "evening", "cocktail", "sequin", "statement"}},
	{"work", []string{"work", "office", "professional", "structured", "classic", "tote"}},
	{"date night", []string{"date", "romantic", "evening", "silk", "heels"}},
	{"vacation", []string{"vacation", "summer", "beach", "resort", "straw", "sandal"}},
	{"gift", []string{"gift", "scarf", "wallet", "jewelry", "accessories"}},
}

type sortRule struct {
	sort Sort
	re   *regexp.Regexp
}

// An if/else-if chain: the first rule that matches is the only one applied.
var sortRules = []sortRule{
	{SortPopular, regexp.MustCompile(`\b(popular|best)`)},
	{SortNew, regexp.MustCompile(`\b(new|newest|latest)\b`)},
	{SortSale, regexp.MustCompile(`\b(sale|discount)`)},
	{SortCheap, regexp.MustCompile(`\b(cheap|affordable)`)},
	{SortLuxury, regexp.MustCompile(`\b(luxury|premium|expensive)`)},
}

// ParseFilters extracts the filter spec from already-lowercased text.
func ParseFilters(text string) FilterSpec {
	f := FilterSpec{PriceMax: math.Inf(1)}

	for _, p := range pricePatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		vals := make([]float64, 0, len(m)-1)
		for _, raw := range m[1:] {
			v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
			if err != nil {
				vals = nil
				break
			}
			vals = append(vals, v)
		}
		if vals != nil {
			p.apply(&f, vals)
			break
		}
	}

	for _, c := range categories {
		if containsAny(text, c.keywords) {
			f.CategorySlug = c.name
			break
		}
	}

	if f.CategorySlug == "" {
		for _, o := range occasions {
			if strings.Contains(text, o.phrase) {
				f.Occasion = o.phrase
				f.OccasionKeywords = o.keywords
				break
			}
		}
	}

	for _, r := range sortRules {
		if r.re.MatchString(text) {
			f.Sort = r.sort
			break
		}
	}
	return f
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
