package querysql

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/lumo/internal/ir"
	"github.com/roach88/lumo/internal/queryir"
)

// Table describes one queryable table: its columns in row order and the
// columns that totally order its rows.
type Table struct {
	Columns  []string
	OrderKey []string
}

// SQLCompiler compiles queryir to parameterized SQLite.
//
// Every query ends in ORDER BY over the table's order key, so results are
// deterministic. Values are always bound as ? parameters; table and column
// names must appear in Tables, so nothing from a query is spliced into SQL
// unchecked.
type SQLCompiler struct {
	Tables map[string]Table
}

// NewSQLCompiler creates a compiler for the given tables.
func NewSQLCompiler(tables map[string]Table) *SQLCompiler {
	return &SQLCompiler{Tables: tables}
}

// Compile converts a query to SQL and its parameters.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if q == nil {
		return "", nil, fmt.Errorf("cannot compile nil query")
	}
	if res := queryir.Validate(q); !res.Valid {
		return "", nil, fmt.Errorf("invalid query: %s", strings.Join(res.Problems, "; "))
	}

	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	table, ok := c.Tables[q.From]
	if !ok {
		return "", nil, fmt.Errorf("unknown table %q", q.From)
	}
	if len(table.OrderKey) == 0 {
		return "", nil, fmt.Errorf("table %q has no order key", q.From)
	}

	columns := q.Columns
	if len(columns) == 0 {
		columns = table.Columns
	}
	for _, col := range columns {
		if !slices.Contains(table.Columns, col) {
			return "", nil, fmt.Errorf("unknown column %q in table %q", col, q.From)
		}
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(columns, ", "))
	b.WriteString(" FROM ")
	b.WriteString(q.From)

	var params []any
	if q.Filter != nil {
		where, whereParams, err := c.compilePredicate(table, q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" WHERE ")
		b.WriteString(where)
		params = whereParams
	}

	b.WriteString(" ORDER BY ")
	b.WriteString(stableOrderKey(table))

	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		params = append(params, q.Limit)
	}
	return b.String(), params, nil
}

// stableOrderKey renders the table's order key. COLLATE BINARY keeps text
// ordering identical across SQLite builds.
func stableOrderKey(t Table) string {
	parts := make([]string, len(t.OrderKey))
	for i, col := range t.OrderKey {
		parts[i] = col + " COLLATE BINARY ASC"
	}
	return strings.Join(parts, ", ")
}

func (c *SQLCompiler) compilePredicate(t Table, p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case queryir.Equals:
		return c.compileEquals(t, pred)
	case *queryir.Equals:
		return c.compileEquals(t, *pred)
	case queryir.In:
		return c.compileIn(t, pred)
	case *queryir.In:
		return c.compileIn(t, *pred)
	case queryir.Range:
		return c.compileRange(t, pred)
	case *queryir.Range:
		return c.compileRange(t, *pred)
	case queryir.And:
		return c.compileAnd(t, pred)
	case *queryir.And:
		return c.compileAnd(t, *pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func checkColumn(t Table, field string) error {
	if !slices.Contains(t.Columns, field) {
		return fmt.Errorf("unknown column %q", field)
	}
	return nil
}

func (c *SQLCompiler) compileEquals(t Table, eq queryir.Equals) (string, []any, error) {
	if err := checkColumn(t, eq.Field); err != nil {
		return "", nil, err
	}
	param, err := irValueToParam(eq.Value)
	if err != nil {
		return "", nil, fmt.Errorf("convert value: %w", err)
	}
	return eq.Field + " = ?", []any{param}, nil
}

func (c *SQLCompiler) compileIn(t Table, in queryir.In) (string, []any, error) {
	if err := checkColumn(t, in.Field); err != nil {
		return "", nil, err
	}
	if len(in.Values) == 0 {
		return "1 = 0", nil, nil
	}
	params := make([]any, len(in.Values))
	for i, v := range in.Values {
		param, err := irValueToParam(v)
		if err != nil {
			return "", nil, fmt.Errorf("convert value: %w", err)
		}
		params[i] = param
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(params)), ", ")
	return in.Field + " IN (" + marks + ")", params, nil
}

func (c *SQLCompiler) compileRange(t Table, r queryir.Range) (string, []any, error) {
	if err := checkColumn(t, r.Field); err != nil {
		return "", nil, err
	}
	var parts []string
	var params []any
	if r.Min != nil {
		param, err := irValueToParam(r.Min)
		if err != nil {
			return "", nil, fmt.Errorf("convert min: %w", err)
		}
		parts = append(parts, r.Field+" >= ?")
		params = append(params, param)
	}
	if r.Max != nil {
		param, err := irValueToParam(r.Max)
		if err != nil {
			return "", nil, fmt.Errorf("convert max: %w", err)
		}
		parts = append(parts, r.Field+" <= ?")
		params = append(params, param)
	}
	return strings.Join(parts, " AND "), params, nil
}

func (c *SQLCompiler) compileAnd(t Table, and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}
	var sqlParts []string
	var allParams []any
	for _, pred := range and.Predicates {
		sql, params, err := c.compilePredicate(t, pred)
		if err != nil {
			return "", nil, err
		}
		if len(and.Predicates) > 1 {
			sql = "(" + sql + ")"
		}
		sqlParts = append(sqlParts, sql)
		allParams = append(allParams, params...)
	}
	return strings.Join(sqlParts, " AND "), allParams, nil
}

// irValueToParam converts a scalar literal to a driver parameter.
func irValueToParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRBool:
		return bool(val), nil
	default:
		return nil, fmt.Errorf("unsupported IRValue type for SQL parameter: %T", v)
	}
}
