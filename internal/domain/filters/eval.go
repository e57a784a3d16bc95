package filters

import (
	"path"
	"strings"
	"time"
)

// Resolver maps a filter field to a candidate's value. The second return
// reports whether the field exists on the candidate; any operator applied to
// a missing field evaluates to false.
type Resolver func(field string) (any, bool)

// MapResolver adapts a plain map to a Resolver.
func MapResolver(m map[string]any) Resolver {
	return func(field string) (any, bool) {
		v, ok := m[field]
		return v, ok
	}
}

// Satisfies reports whether a conjunction holds for the candidate. An empty
// conjunction matches everything.
func Satisfies(group Filters, resolve Resolver) bool {
	for _, f := range group {
		if !satisfiesOne(f, resolve) {
			return false
		}
	}
	return true
}

// SatisfiesGroups reports whether at least one conjunction holds. An empty
// disjunction matches everything.
func SatisfiesGroups(groups Groups, resolve Resolver) bool {
	if len(groups) == 0 {
		return true
	}
	for _, group := range groups {
		if Satisfies(group, resolve) {
			return true
		}
	}
	return false
}

func satisfiesOne(f Filter, resolve Resolver) bool {
	value, ok := resolve(f.Field)
	if !ok {
		return false
	}

	// Fulltext comparisons are case and diacritic folded.
	folded := f.Field == "fulltext"

	switch f.Operator {
	case OpEqual:
		return equals(value, f.Value, folded)
	case OpNotEqual:
		return !equals(value, f.Value, folded)
	case OpLess, OpLessOrEqual, OpGreater, OpGreaterOrEqual:
		return ordered(value, f.Value, f.Operator)
	case OpIn:
		return in(value, f.Value, folded)
	case OpContains:
		return contains(value, f.Value, folded)
	case OpMatch:
		return globMatch(value, f.Value, folded)
	case OpStartsWith:
		a, b, ok := stringPair(value, f.Value, folded)
		return ok && strings.HasPrefix(a, b)
	case OpEndsWith:
		a, b, ok := stringPair(value, f.Value, folded)
		return ok && strings.HasSuffix(a, b)
	case OpSemantic:
		// Without the semantic plane the operator degrades to folded token
		// containment against the resolved field value.
		return tokenMatch(value, f.Value)
	default:
		return false
	}
}

func equals(a, b any, folded bool) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
		return false
	}
	if ba, ok := a.(bool); ok {
		bb, ok := b.(bool)
		return ok && ba == bb
	}
	sa, sb, ok := stringPair(a, b, folded)
	return ok && sa == sb
}

func ordered(a, b any, op Operator) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return false
		}
		switch op {
		case OpLess:
			return fa < fb
		case OpLessOrEqual:
			return fa <= fb
		case OpGreater:
			return fa > fb
		case OpGreaterOrEqual:
			return fa >= fb
		}
		return false
	}

	// Strings (timestamps included: ISO 8601 UTC sorts lexicographically).
	sa, sb, ok := stringPair(a, b, false)
	if !ok {
		return false
	}
	switch op {
	case OpLess:
		return sa < sb
	case OpLessOrEqual:
		return sa <= sb
	case OpGreater:
		return sa > sb
	case OpGreaterOrEqual:
		return sa >= sb
	}
	return false
}

func in(value, list any, folded bool) bool {
	items, ok := toSlice(list)
	if !ok {
		return false
	}
	for _, item := range items {
		if equals(value, item, folded) {
			return true
		}
	}
	return false
}

func contains(value, needle any, folded bool) bool {
	items, ok := toSlice(value)
	if !ok {
		return false
	}
	for _, item := range items {
		if equals(item, needle, folded) {
			return true
		}
	}
	return false
}

func globMatch(value, pattern any, folded bool) bool {
	s, p, ok := stringPair(value, pattern, folded)
	if !ok {
		return false
	}
	matched, err := path.Match(p, s)
	return err == nil && matched
}

func tokenMatch(value, query any) bool {
	s, ok := toString(value)
	if !ok {
		return false
	}
	q, ok := toString(query)
	if !ok {
		return false
	}
	haystack := Fold(s)
	for _, token := range FoldTokens(q) {
		if !strings.Contains(haystack, token) {
			return false
		}
	}
	return true
}

func stringPair(a, b any, folded bool) (string, string, bool) {
	sa, ok := toString(a)
	if !ok {
		return "", "", false
	}
	sb, ok := toString(b)
	if !ok {
		return "", "", false
	}
	if folded {
		return Fold(sa), Fold(sb), true
	}
	return sa, sb, true
}

func toString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case time.Time:
		return s.UTC().Format(time.RFC3339), true
	default:
		return "", false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func toSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	case []float64:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	case []int:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	default:
		return nil, false
	}
}
