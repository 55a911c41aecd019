package storefront

import (
	"sort"
	"strings"
)

// MaxTermVariations bounds how many search variations are tried per term.
const MaxTermVariations = 5

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "with": {}, "for": {}, "of": {}, "in": {},
}

// relevanceSynonyms maps a term fragment to words that make a title relevant.
var relevanceSynonyms = []struct {
	key      string
	synonyms []string
}{
	{"sunglass", []string{"sunglass", "eyewear", "shades", "glasses"}},
	{"bottle", []string{"bottle", "flask", "thermos", "canteen"}},
	{"notebook", []string{"notebook", "journal", "diary"}},
	{"mug", []string{"mug", "cup"}},
	{"towel", []string{"towel"}},
	{"lunchbox", []string{"lunchbox", "lunch box", "bento"}},
	{"lunch box", []string{"lunchbox", "lunch box", "bento"}},
	{"shawl", []string{"shawl", "stole", "scarf", "wrap"}},
	{"cushion", []string{"cushion", "pillow"}},
	{"phone stand", []string{"stand", "holder", "dock"}},
}

// IsRelevant reports whether a listing title plausibly answers term.
func IsRelevant(title, term string) bool {
	title = strings.ToLower(title)
	term = strings.ToLower(term)

	for _, w := range strings.Fields(term) {
		if _, stop := stopWords[w]; stop || len(w) <= 2 {
			continue
		}
		if strings.Contains(title, w) {
			return true
		}
	}
	for _, rs := range relevanceSynonyms {
		if !strings.Contains(term, rs.key) {
			continue
		}
		for _, syn := range rs.synonyms {
			if strings.Contains(title, syn) {
				return true
			}
		}
	}
	return false
}

// ExpandSearchTerms returns term followed by up to MaxTermVariations-1
// synonym variations, in a stable order.
func ExpandSearchTerms(term string) []string {
	t := strings.ToLower(strings.TrimSpace(term))
	if t == "" {
		return nil
	}
	extra := map[string]struct{}{}
	add := func(vs ...string) {
		for _, v := range vs {
			if v != t {
				extra[v] = struct{}{}
			}
		}
	}
	has := func(s string) bool { return strings.Contains(t, s) }
	repl := func(old, new string) string { return strings.ReplaceAll(t, old, new) }

	if has("wood") {
		add(repl("wooden", "wood"), repl("wooden", "bamboo"), repl("wood", "bamboo"))
	}
	if has("sunglass") {
		add(repl("sunglasses", "shades"), repl("sunglass", "eyewear"), repl("sunglass", "glasses"))
	}
	if has("thermos") || has("bottle") {
		add(repl("thermos", "insulated"), repl("thermos", "bottle"), t+" flask", "water bottle", "insulated bottle")
	}
	if has("mug") {
		add("coffee mug", "tea mug", "mug")
	}
	if has("phone stand") {
		add(repl("phone stand", "phone holder"), repl("phone stand", "mobile stand"), "mobile holder", "cell phone stand")
	}
	if has("lunchbox") || has("lunch box") {
		add("lunch box", "bento box", "lunchbox", "tiffin")
	}
	if has("shawl") || has("scarf") || has("stole") {
		add(repl("shawl", "scarf"), repl("scarf", "shawl"), repl("stole", "scarf"), repl("shawl", "stole"))
	}
	if has("notebook") {
		add("journal", "notebook", "diary", "sketchbook")
	}
	if has("cushion") {
		add(repl("cushion", "pillow"), "cushion cover", "pillow cover", "pillowcase")
	}
	if has("towel") {
		add("hand towel", "bath towel", "tea towel")
	}

	variations := make([]string, 0, len(extra))
	for v := range extra {
		variations = append(variations, v)
	}
	sort.Strings(variations)

	out := append([]string{t}, variations...)
	if len(out) > MaxTermVariations {
		out = out[:MaxTermVariations]
	}
	return out
}
