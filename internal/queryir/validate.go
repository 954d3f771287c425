package queryir

import (
	"fmt"

	"github.com/roach88/lumo/internal/ir"
)

// ValidationResult lists the problems found in a query.
type ValidationResult struct {
	Valid    bool
	Problems []string
}

// Validate checks a query against the fragment rules:
//
//  1. Select names a table
//  2. every predicate names a field
//  3. literals are non-null scalars (string, int, bool)
//  4. Range has at least one bound, and both bounds share a type
//  5. Limit is not negative
//
// Validate does not know table schemas; the backend checks names.
func Validate(query Query) ValidationResult {
	v := &validator{problems: []string{}}
	v.validateQuery(query)
	return ValidationResult{Valid: len(v.problems) == 0, Problems: v.problems}
}

type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case nil:
		v.addProblem("nil query")
	case Select:
		v.validateSelect(query)
	case *Select:
		v.validateSelect(*query)
	default:
		v.addProblem("unknown query type %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	if sel.From == "" {
		v.addProblem("select without a table")
	}
	if sel.Limit < 0 {
		v.addProblem("negative limit %d", sel.Limit)
	}
	for i, c := range sel.Columns {
		if c == "" {
			v.addProblem("column %d has no name", i)
		}
	}
	if sel.Filter != nil {
		v.validatePredicate(sel.Filter)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
	case Equals:
		v.field(pred.Field)
		v.literal(pred.Field, pred.Value)
	case *Equals:
		v.validatePredicate(*pred)
	case In:
		v.field(pred.Field)
		for _, val := range pred.Values {
			v.literal(pred.Field, val)
		}
	case *In:
		v.validatePredicate(*pred)
	case Range:
		v.validateRange(pred)
	case *Range:
		v.validateRange(*pred)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case *And:
		v.validatePredicate(*pred)
	default:
		v.addProblem("unknown predicate type %T", p)
	}
}

func (v *validator) validateRange(r Range) {
	v.field(r.Field)
	if r.Min == nil && r.Max == nil {
		v.addProblem("range on '%s' has no bounds", r.Field)
		return
	}
	if r.Min != nil {
		v.literal(r.Field, r.Min)
	}
	if r.Max != nil {
		v.literal(r.Field, r.Max)
	}
	if r.Min != nil && r.Max != nil && fmt.Sprintf("%T", r.Min) != fmt.Sprintf("%T", r.Max) {
		v.addProblem("range on '%s' mixes %T and %T bounds", r.Field, r.Min, r.Max)
	}
}

func (v *validator) field(name string) {
	if name == "" {
		v.addProblem("predicate without a field")
	}
}

func (v *validator) literal(field string, val ir.IRValue) {
	switch val.(type) {
	case ir.IRString, ir.IRInt, ir.IRBool:
	case nil, ir.IRNull:
		v.addProblem("field '%s' compared to NULL", field)
	default:
		v.addProblem("field '%s' compared to non-scalar %T", field, val)
	}
}
