// Package optimizer rewrites free-text job titles into the taxonomy phrases
// the provider indexes best, and produces search suggestions. For a fixed
// taxonomy both entry points are pure functions of their input.
package optimizer

import "strings"

const (
	maxSuggestions  = 5
	minPrefixLength = 2
)

// Optimizer expands abbreviations and fuzzy-matches queries against the
// category taxonomy.
type Optimizer struct {
	taxonomy Taxonomy
}

// New returns an Optimizer over the built-in taxonomy.
func New() *Optimizer {
	return &Optimizer{taxonomy: defaultTaxonomy}
}

// NewWithTaxonomy returns an Optimizer over a custom taxonomy.
func NewWithTaxonomy(t Taxonomy) *Optimizer {
	return &Optimizer{taxonomy: t}
}

// Optimize returns the best taxonomy rewrite of the query, or the query
// unchanged when it is empty, already structured with boolean operators, or
// nothing longer matches. The rewrite is always strictly longer than the
// input, never a truncation of the user's intent.
func (o *Optimizer) Optimize(query string) string {
	if !o.rewritable(query) {
		return query
	}

	candidates := o.collect(query)
	best := query
	for _, c := range candidates {
		if len(c) > len(best) {
			best = c
		}
	}
	return best
}

// Suggest returns up to 5 distinct taxonomy phrases related to the query,
// in collection order, for display alongside results.
func (o *Optimizer) Suggest(query string) []string {
	if !o.rewritable(query) {
		return nil
	}

	normalized := normalize(query)
	seen := make(map[string]bool)
	var out []string
	for _, c := range o.collectAll(query) {
		if c == normalized || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}

// rewritable reports whether the optimizer may touch the query at all.
// Queries the user has already structured with boolean operators are left
// alone.
func (o *Optimizer) rewritable(query string) bool {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return false
	}
	for _, w := range strings.Fields(trimmed) {
		if w == "OR" || w == "AND" {
			return false
		}
	}
	return true
}

// collect runs the full pipeline and drops candidates that are no
// improvement: equal to the original query or shorter than it.
func (o *Optimizer) collect(query string) []string {
	normalized := normalize(query)
	var out []string
	for _, c := range o.collectAll(query) {
		if c == normalized || len(c) < len(normalized) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// collectAll gathers taxonomy candidates for the query and each of its
// abbreviation-expanded variants, in deterministic collection order.
func (o *Optimizer) collectAll(query string) []string {
	var out []string
	for _, variant := range o.variants(query) {
		out = append(out, o.matchPhrases(variant)...)
	}
	return out
}

// variants returns the normalized query followed by every single-word
// abbreviation expansion of it.
func (o *Optimizer) variants(query string) []string {
	normalized := normalize(query)
	out := []string{normalized}

	words := strings.Fields(normalized)
	for i, w := range words {
		expansion, ok := o.taxonomy.Abbreviations[w]
		if !ok {
			continue
		}
		expanded := make([]string, len(words))
		copy(expanded, words)
		expanded[i] = expansion
		out = append(out, strings.Join(expanded, " "))
	}
	return out
}

// matchPhrases returns the taxonomy phrases the query matches: by category
// alias, by substring or phrase prefix, or by word-prefix matching where
// every query word is a prefix of some phrase word.
func (o *Optimizer) matchPhrases(query string) []string {
	var out []string
	for _, cat := range o.taxonomy.Categories {
		if cat.Key == query {
			out = append(out, cat.Phrases...)
			continue
		}
		for _, phrase := range cat.Phrases {
			if strings.Contains(phrase, query) || strings.HasPrefix(phrase, query) || wordPrefixMatch(query, phrase) {
				out = append(out, phrase)
			}
		}
	}
	return out
}

// wordPrefixMatch reports whether every word of the query is a prefix (of at
// least two characters) of some word in the phrase. This is what lets
// partial or typo'd multi-word titles like "front dev" reach
// "frontend developer".
func wordPrefixMatch(query, phrase string) bool {
	queryWords := strings.Fields(query)
	phraseWords := strings.Fields(phrase)
	if len(queryWords) == 0 {
		return false
	}

	for _, qw := range queryWords {
		if len(qw) < minPrefixLength {
			return false
		}
		matched := false
		for _, pw := range phraseWords {
			if strings.HasPrefix(pw, qw) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func normalize(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(query))), " ")
}
