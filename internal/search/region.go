package search

import "strings"

// regionKeywords maps coarse location keywords to provider country codes.
// First match in declaration order wins; unknown locations fall back to the
// configured default country.
var regionKeywords = []struct {
	keyword string
	country string
}{
	{"united kingdom", "gb"},
	{"london", "gb"},
	{"manchester", "gb"},
	{"edinburgh", "gb"},
	{"uk", "gb"},
	{"germany", "de"},
	{"berlin", "de"},
	{"munich", "de"},
	{"france", "fr"},
	{"paris", "fr"},
	{"netherlands", "nl"},
	{"amsterdam", "nl"},
	{"canada", "ca"},
	{"toronto", "ca"},
	{"vancouver", "ca"},
	{"australia", "au"},
	{"sydney", "au"},
	{"melbourne", "au"},
	{"india", "in"},
	{"bangalore", "in"},
	{"mumbai", "in"},
	{"singapore", "sg"},
	{"brazil", "br"},
	{"poland", "pl"},
	{"warsaw", "pl"},
	{"austria", "at"},
	{"vienna", "at"},
	{"switzerland", "ch"},
	{"zurich", "ch"},
	{"spain", "es"},
	{"madrid", "es"},
	{"barcelona", "es"},
	{"italy", "it"},
	{"mexico", "mx"},
	{"south africa", "za"},
	{"new zealand", "nz"},
}

// regionFor derives the provider country code from a free-text location.
// Matching is whole-word so "dublin, uk office" resolves while "kyiv" does
// not accidentally match anything.
func regionFor(location, defaultCountry string) string {
	loc := strings.ToLower(strings.TrimSpace(location))
	if loc == "" {
		return defaultCountry
	}

	words := tokenize(loc)
	for _, rk := range regionKeywords {
		if strings.Contains(rk.keyword, " ") {
			if strings.Contains(loc, rk.keyword) {
				return rk.country
			}
			continue
		}
		for _, w := range words {
			if w == rk.keyword {
				return rk.country
			}
		}
	}
	return defaultCountry
}

// tokenize splits a location on anything that is not a letter.
func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	})
}
