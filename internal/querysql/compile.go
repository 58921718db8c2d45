package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/renewal/internal/ir"
	"github.com/roach88/renewal/internal/queryir"
)

// SQLCompiler compiles QueryIR to parameterized SQL for SQLite.
//
// CRITICAL: ALL queries include ORDER BY for deterministic results.
// CRITICAL: All values are parameterized (never interpolated).
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts a QueryIR query to parameterized SQL.
// Returns (sql, params, error). The query is validated first; an invalid
// identifier never reaches the SQL text.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if res := queryir.Validate(q); !res.Valid {
		return "", nil, res.Err()
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

// Compile is a convenience wrapper around a zero SQLCompiler.
func Compile(q queryir.Query) (string, []any, error) {
	return NewSQLCompiler().Compile(q)
}

// compileSelect compiles a Select. Parameters are emitted in textual order:
// select-list subqueries, WHERE, LIMIT.
func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	var b strings.Builder
	var params []any

	b.WriteString("SELECT ")
	if q.Distinct {
		b.WriteString("DISTINCT ")
	}
	for i, col := range q.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		if col.Sub != nil {
			sub, subParams, err := c.compileSelect(*col.Sub)
			if err != nil {
				return "", nil, fmt.Errorf("compile column %s: %w", col.As, err)
			}
			b.WriteString("(" + sub + ")")
			params = append(params, subParams...)
		} else {
			b.WriteString(col.Field)
		}
		if col.As != "" {
			b.WriteString(" AS " + col.As)
		}
	}

	b.WriteString(" FROM " + q.From)
	if q.Alias != "" {
		b.WriteString(" " + q.Alias)
	}

	if q.Filter != nil {
		where, whereParams, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" WHERE " + where)
		params = append(params, whereParams...)
	}

	// MANDATORY: Always add ORDER BY
	b.WriteString(" ORDER BY " + c.stableOrderKey(q))

	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		params = append(params, int64(q.Limit))
	}

	return b.String(), params, nil
}

// stableOrderKey returns the ORDER BY clause for a query.
// MANDATORY: Every query MUST call this function.
func (c *SQLCompiler) stableOrderKey(q queryir.Select) string {
	if len(q.OrderBy) == 0 {
		if q.Distinct {
			// DISTINCT lists order by what they select
			return q.Columns[0].Field + " ASC"
		}
		if q.Alias != "" {
			return q.Alias + ".id ASC"
		}
		return "id ASC"
	}
	parts := make([]string, len(q.OrderBy))
	for i, o := range q.OrderBy {
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		parts[i] = o.Field + " " + dir
	}
	return strings.Join(parts, ", ")
}

// compilePredicate compiles a predicate to a WHERE fragment.
// CRITICAL: Values NEVER interpolated - always use ? placeholders.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		param, err := irValueToParam(pred.Value)
		if err != nil {
			return "", nil, fmt.Errorf("field %s: %w", pred.Field, err)
		}
		return pred.Field + " = ?", []any{param}, nil

	case queryir.Compare:
		param, err := irValueToParam(pred.Value)
		if err != nil {
			return "", nil, fmt.Errorf("field %s: %w", pred.Field, err)
		}
		return fmt.Sprintf("%s %s ?", pred.Field, pred.Op), []any{param}, nil

	case queryir.In:
		marks := make([]string, len(pred.Values))
		params := make([]any, len(pred.Values))
		for i, v := range pred.Values {
			param, err := irValueToParam(v)
			if err != nil {
				return "", nil, fmt.Errorf("field %s: %w", pred.Field, err)
			}
			marks[i] = "?"
			params[i] = param
		}
		op := "IN"
		if pred.Negate {
			op = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", pred.Field, op, strings.Join(marks, ", ")), params, nil

	case queryir.NotInSelect:
		sub, params, err := c.compileSelect(pred.Query)
		if err != nil {
			return "", nil, fmt.Errorf("field %s subquery: %w", pred.Field, err)
		}
		return fmt.Sprintf("%s NOT IN (%s)", pred.Field, sub), params, nil

	case queryir.IsNull:
		if pred.Negate {
			return pred.Field + " IS NOT NULL", nil, nil
		}
		return pred.Field + " IS NULL", nil, nil

	case queryir.FieldEquals:
		return pred.Left + " = " + pred.Right, nil, nil

	case queryir.And:
		return c.compileJunction(pred.Predicates, " AND ", "1 = 1")

	case queryir.Or:
		return c.compileJunction(pred.Predicates, " OR ", "1 = 0")

	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileJunction joins sub-predicates. Each operand is parenthesized so
// nested And/Or keep their grouping.
func (c *SQLCompiler) compileJunction(preds []queryir.Predicate, sep, empty string) (string, []any, error) {
	if len(preds) == 0 {
		return empty, nil, nil
	}
	if len(preds) == 1 {
		return c.compilePredicate(preds[0])
	}
	parts := make([]string, 0, len(preds))
	var params []any
	for _, p := range preds {
		sql, ps, err := c.compilePredicate(p)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+sql+")")
		params = append(params, ps...)
	}
	return strings.Join(parts, sep), params, nil
}

// irValueToParam converts an ir.IRValue to a Go native SQL parameter.
func irValueToParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRBool:
		return bool(val), nil
	case ir.IRArray:
		return nil, fmt.Errorf("IRArray cannot be used as SQL parameter directly")
	case ir.IRObject:
		return nil, fmt.Errorf("IRObject cannot be used as SQL parameter directly")
	default:
		return nil, fmt.Errorf("unsupported IRValue type for SQL parameter: %T", v)
	}
}
