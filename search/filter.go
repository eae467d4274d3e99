package search

import "strings"

// FilterOp is one leaf comparator in a metadata filter tree.
type FilterOp string

const (
	OpEq       FilterOp = "eq"
	OpNe       FilterOp = "ne"
	OpGt       FilterOp = "gt"
	OpGte      FilterOp = "gte"
	OpLt       FilterOp = "lt"
	OpLte      FilterOp = "lte"
	OpIn       FilterOp = "in"
	OpNin      FilterOp = "nin"
	OpContains FilterOp = "contains"
	OpIcontains FilterOp = "icontains"
)

// Filter is a node in the metadata filter tree: either a boolean
// combinator (And/Or/Not) over children, or a leaf comparator against
// a metadata field.
type Filter struct {
	And      []Filter
	Or       []Filter
	Not      *Filter
	Field    string
	Op       FilterOp
	Value    any
}

// Eval evaluates the filter tree against a metadata map client-side.
// Repositories that can translate a subtree into SQL do so instead;
// this is always the fallback evaluator and the one the in-memory
// store uses directly.
func (f Filter) Eval(metadata map[string]any) bool {
	switch {
	case len(f.And) > 0:
		for _, c := range f.And {
			if !c.Eval(metadata) {
				return false
			}
		}
		return true
	case len(f.Or) > 0:
		for _, c := range f.Or {
			if c.Eval(metadata) {
				return true
			}
		}
		return false
	case f.Not != nil:
		return !f.Not.Eval(metadata)
	case f.Field != "":
		return evalLeaf(metadata[f.Field], f.Op, f.Value)
	default:
		return true
	}
}

func evalLeaf(actual any, op FilterOp, want any) bool {
	switch op {
	case OpEq:
		return compareEqual(actual, want)
	case OpNe:
		return !compareEqual(actual, want)
	case OpGt:
		c, ok := compareOrdered(actual, want)
		return ok && c > 0
	case OpGte:
		c, ok := compareOrdered(actual, want)
		return ok && c >= 0
	case OpLt:
		c, ok := compareOrdered(actual, want)
		return ok && c < 0
	case OpLte:
		c, ok := compareOrdered(actual, want)
		return ok && c <= 0
	case OpIn:
		return containsValue(want, actual)
	case OpNin:
		return !containsValue(want, actual)
	case OpContains:
		as, aok := actual.(string)
		ws, wok := want.(string)
		return aok && wok && strings.Contains(as, ws)
	case OpIcontains:
		as, aok := actual.(string)
		ws, wok := want.(string)
		return aok && wok && strings.Contains(strings.ToLower(as), strings.ToLower(ws))
	default:
		return false
	}
}

func compareEqual(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return a == b
}

func compareOrdered(a, b any) (int, bool) {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return 0, false
	}
	switch {
	case af < bf:
		return -1, true
	case af > bf:
		return 1, true
	default:
		return 0, true
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
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func containsValue(collection any, target any) bool {
	list, ok := collection.([]any)
	if !ok {
		return false
	}
	for _, item := range list {
		if compareEqual(item, target) {
			return true
		}
	}
	return false
}
