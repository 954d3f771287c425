package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/lumo/internal/ir"
)

func TestValidate_ValidQueries(t *testing.T) {
	tests := []struct {
		name  string
		query Query
	}{
		{"bare select", Select{From: "journal"}},
		{"pointer select", &Select{From: "journal", Filter: &Equals{Field: "kind", Value: ir.IRString("connect")}}},
		{"columns and limit", Select{From: "journal", Columns: []string{"seq", "kind"}, Limit: 3}},
		{"nested and", Select{From: "journal", Filter: And{Predicates: []Predicate{
			In{Field: "kind", Values: []ir.IRValue{ir.IRString("connect"), ir.IRString("disconnect")}},
			Range{Field: "seq", Min: ir.IRInt(1), Max: ir.IRInt(9)},
			&And{},
		}}}},
		{"open range", Select{From: "deliveries", Filter: &Range{Field: "journal_seq", Max: ir.IRInt(4)}}},
		{"empty in", Select{From: "journal", Filter: In{Field: "kind"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.query)
			assert.True(t, result.Valid, "problems: %v", result.Problems)
			assert.Empty(t, result.Problems)
		})
	}
}

func TestValidate_Problems(t *testing.T) {
	tests := []struct {
		name     string
		query    Query
		contains string
	}{
		{"nil query", nil, "nil query"},
		{"no table", Select{}, "without a table"},
		{"negative limit", Select{From: "journal", Limit: -1}, "negative limit"},
		{"empty column", Select{From: "journal", Columns: []string{""}}, "column 0"},
		{"no field", Select{From: "journal", Filter: Equals{Value: ir.IRInt(1)}}, "without a field"},
		{"null literal", Select{From: "journal", Filter: Equals{Field: "token", Value: ir.IRNull{}}}, "NULL"},
		{"nil literal", Select{From: "journal", Filter: In{Field: "kind", Values: []ir.IRValue{nil}}}, "NULL"},
		{"array literal", Select{From: "journal", Filter: Equals{Field: "kind", Value: ir.IRArray{}}}, "non-scalar"},
		{"unbounded range", Select{From: "journal", Filter: Range{Field: "seq"}}, "no bounds"},
		{"mixed range", Select{From: "journal", Filter: Range{Field: "seq", Min: ir.IRInt(1), Max: ir.IRString("9")}}, "mixes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.query)
			assert.False(t, result.Valid)
			if assert.NotEmpty(t, result.Problems) {
				assert.Contains(t, result.Problems[0], tt.contains)
			}
		})
	}
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	result := Validate(Select{
		Limit: -2,
		Filter: And{Predicates: []Predicate{
			Equals{Field: "", Value: ir.IRString("x")},
			Range{Field: "seq"},
		}},
	})
	assert.False(t, result.Valid)
	assert.Len(t, result.Problems, 4)
}
