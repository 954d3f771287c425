package queryir

import "github.com/roach88/lumo/internal/ir"

// Query is a sealed query node.
type Query interface {
	queryNode()
}

// Predicate is a sealed filter node.
type Predicate interface {
	predicateNode()
}

// Select reads rows from one table.
//
//	SELECT <columns> FROM <from> WHERE <filter> ORDER BY <seq key> LIMIT <limit>
//
// Example, the connect and disconnect entries after seq 10:
//
//	Select{
//	  From: "journal",
//	  Filter: And{Predicates: []Predicate{
//	    In{Field: "kind", Values: []ir.IRValue{ir.IRString("connect"), ir.IRString("disconnect")}},
//	    Range{Field: "seq", Min: ir.IRInt(11)},
//	  }},
//	}
type Select struct {
	From    string    // table name
	Filter  Predicate // nil = every row
	Columns []string  // nil = the backend's full row for From
	Limit   int       // 0 = no limit
}

func (Select) queryNode() {}

// Equals matches rows whose field equals a literal.
//
//	kind = 'connect'
type Equals struct {
	Field string
	Value ir.IRValue
}

func (Equals) predicateNode() {}

// In matches rows whose field equals any of the literals.
//
//	kind IN ('connect', 'reconnect')
//
// An empty Values list matches nothing.
type In struct {
	Field  string
	Values []ir.IRValue
}

func (In) predicateNode() {}

// Range matches rows whose field lies in [Min, Max]. A nil bound is open.
//
//	seq >= 5 AND seq <= 9
type Range struct {
	Field string
	Min   ir.IRValue
	Max   ir.IRValue
}

func (Range) predicateNode() {}

// And is a conjunction. Empty Predicates is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}
