package services

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/saptarshihalder/Dzukou-Pricing-2.0/models"
)

// MatchReasonExact marks a listing whose title equals a catalog name.
const MatchReasonExact = "exact_title"

// minSharedTokens stops single-word titles from matching on one common noun.
const minSharedTokens = 2

// MatchResult is the outcome of matching one listing. ProductID is empty
// when nothing matched.
type MatchResult struct {
	ProductID string
	Score     float64
	Reason    string
}

func (r MatchResult) Matched() bool { return r.ProductID != "" }

type catalogEntry struct {
	id     string
	title  string
	tokens map[string]struct{}
}

// Matcher links competitor listings to catalog products. It is immutable
// after construction and safe for concurrent use.
type Matcher struct {
	threshold float64
	entries   []catalogEntry
}

// NewMatcher indexes catalog. Listings scoring below threshold on token
// overlap stay unmatched.
func NewMatcher(catalog []*models.Product, threshold float64) *Matcher {
	entries := make([]catalogEntry, 0, len(catalog))
	for _, p := range catalog {
		entries = append(entries, catalogEntry{
			id:     p.ID,
			title:  normaliseTitle(p.Name),
			tokens: tokenSet(p.Name + " " + p.Brand),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })
	return &Matcher{threshold: threshold, entries: entries}
}

// Match tries an exact normalised title first, then token overlap. Ties go
// to the higher score, then to the smallest product id.
func (m *Matcher) Match(title, brand string) MatchResult {
	norm := normaliseTitle(title)
	if norm != "" {
		for _, e := range m.entries {
			if e.title == norm {
				return MatchResult{ProductID: e.id, Score: 1, Reason: MatchReasonExact}
			}
		}
	}

	listing := tokenSet(title + " " + brand)
	var best MatchResult
	for _, e := range m.entries {
		shared, score := overlap(listing, e.tokens)
		if shared < minSharedTokens || score < m.threshold {
			continue
		}
		if score > best.Score {
			best = MatchResult{ProductID: e.id, Score: score}
		}
	}
	if best.Matched() {
		best.Reason = fmt.Sprintf("token_overlap=%.2f", best.Score)
	}
	return best
}

// Apply matches every listing in place and returns how many matched.
func (m *Matcher) Apply(listings []*models.ScrapedListing) int {
	matched := 0
	for _, l := range listings {
		r := m.Match(l.Title, l.Brand)
		l.MatchedCatalogID = r.ProductID
		l.SimilarityScore = r.Score
		l.MatchReason = r.Reason
		if r.Matched() {
			matched++
		}
	}
	return matched
}

// overlap returns the shared token count and that count over the smaller set.
func overlap(a, b map[string]struct{}) (int, float64) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	shared := 0
	for t := range a {
		if _, ok := b[t]; ok {
			shared++
		}
	}
	return shared, float64(shared) / float64(len(a))
}

func normaliseTitle(s string) string {
	return strings.ToLower(normaliseText(s))
}

// tokenSet lowercases s, splits on anything that is not a letter or digit
// and drops one-character tokens.
func tokenSet(s string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if len([]rune(f)) > 1 {
			set[f] = struct{}{}
		}
	}
	return set
}
