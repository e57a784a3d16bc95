package domain

import (
	"fmt"
	"sort"

	apperrors "antbox-backend/pkg/errors"
)

// Aggregation declares a computation over a smart folder's result set.
type Aggregation struct {
	Title     string `json:"title"`
	FieldName string `json:"fieldName"`
	Formula   string `json:"formula"`
}

// AggregationResult pairs a declared aggregation with its computed value.
type AggregationResult struct {
	Title string `json:"title"`
	Value any    `json:"value"`
}

var aggregationFormulas = map[string]bool{
	"count": true, "sum": true, "avg": true,
	"min": true, "max": true, "med": true,
}

// Apply computes the aggregation over the evaluated nodes. Unknown formulas
// and non-numeric fields under numeric formulas yield AggregationFormulaError.
func (a Aggregation) Apply(nodes []*Node) (AggregationResult, error) {
	if !aggregationFormulas[a.Formula] {
		return AggregationResult{}, apperrors.NewAggregationFormula(
			fmt.Sprintf("unknown aggregation formula %q", a.Formula))
	}

	if a.Formula == "count" {
		return AggregationResult{Title: a.Title, Value: len(nodes)}, nil
	}

	values := make([]float64, 0, len(nodes))
	for _, n := range nodes {
		v, ok := n.FilterValue(a.FieldName)
		if !ok {
			continue
		}
		f, ok := numericValue(v)
		if !ok {
			return AggregationResult{}, apperrors.NewAggregationFormula(
				fmt.Sprintf("field %q is not numeric", a.FieldName))
		}
		values = append(values, f)
	}
	if len(values) == 0 {
		return AggregationResult{Title: a.Title, Value: 0.0}, nil
	}

	var value float64
	switch a.Formula {
	case "sum", "avg":
		for _, f := range values {
			value += f
		}
		if a.Formula == "avg" {
			value /= float64(len(values))
		}
	case "min":
		value = values[0]
		for _, f := range values[1:] {
			if f < value {
				value = f
			}
		}
	case "max":
		value = values[0]
		for _, f := range values[1:] {
			if f > value {
				value = f
			}
		}
	case "med":
		sort.Float64s(values)
		mid := len(values) / 2
		if len(values)%2 == 0 {
			value = (values[mid-1] + values[mid]) / 2
		} else {
			value = values[mid]
		}
	}
	return AggregationResult{Title: a.Title, Value: value}, nil
}

func numericValue(v any) (float64, bool) {
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
