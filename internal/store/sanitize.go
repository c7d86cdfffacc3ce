package store

import (
	"strings"

	"github.com/jobscout/jobscout/internal/model"
)

// Provider payloads carry internal bookkeeping fields whose names are wrapped
// in double underscores (e.g. "__CLASS__"). The document backends reject
// them, so the write path filters the raw payload against a single declared
// rule before persisting: a key is allowed unless it is dunder-wrapped.

// allowedKey reports whether a raw payload key may be persisted.
func allowedKey(k string) bool {
	return !(strings.HasPrefix(k, "__") && strings.HasSuffix(k, "__"))
}

// sanitizeListing returns a copy of the listing with its raw payload cleaned.
// The typed fields are never touched; only the free-form Raw map is walked.
func sanitizeListing(l model.Listing) model.Listing {
	if l.Raw != nil {
		l.Raw = sanitizeMap(l.Raw)
	}
	return l
}

func sanitizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if !allowedKey(k) {
			continue
		}
		out[k] = sanitizeValue(v)
	}
	return out
}

func sanitizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return sanitizeMap(t)
	case []any:
		out := make([]any, 0, len(t))
		for _, e := range t {
			out = append(out, sanitizeValue(e))
		}
		return out
	default:
		return v
	}
}
