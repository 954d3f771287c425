// Package queryir is a small, sealed query representation for reading the
// edit journal and its delivery rows.
//
// Callers build a Select with a Predicate tree; a backend (querysql)
// compiles it. The IR carries field names and ir.IRValue literals only, so
// backends decide quoting, parameter binding and ordering.
//
// FRAGMENT:
//
//   - Select(from, filter, columns, limit) over one table
//   - Predicates: Equals, In, Range, And
//
// Excluded: joins, OR, NULL comparisons, floats. Every compiled query is
// totally ordered by the table's sequence key, so two reads of the same
// journal return rows in the same order.
//
// SEALED INTERFACES:
//
// Query and Predicate use the marker-method pattern. Only this package
// implements them, which keeps backend type switches exhaustive:
//
//	switch p := pred.(type) {
//	case Equals:
//	case In:
//	case Range:
//	case And:
//	}
package queryir
