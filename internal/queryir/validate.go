package queryir

import (
	"fmt"
	"regexp"
)

// identPattern accepts a column or table name, optionally qualified by an
// alias ("p.id").
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidIdent reports whether s may appear as an identifier in compiled SQL.
func ValidIdent(s string) bool {
	return identPattern.MatchString(s)
}

// ValidationResult lists structural problems found in a query.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// Err returns the first problem as an error, or nil.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return fmt.Errorf("invalid query: %s", r.Errors[0])
}

// Validate checks identifiers, operators and value lists of a query.
// Validate is a pure function with no side effects.
func Validate(query Query) ValidationResult {
	v := &validator{}
	v.validateQuery(query)
	return ValidationResult{Valid: len(v.errs) == 0, Errors: v.errs}
}

type validator struct {
	errs []string
}

func (v *validator) addError(format string, args ...any) {
	v.errs = append(v.errs, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case nil:
		v.addError("nil query")
	case Select:
		v.validateSelect(query)
	case *Select:
		if query == nil {
			v.addError("nil query")
			return
		}
		v.validateSelect(*query)
	default:
		v.addError("unknown query type %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	v.ident("table", sel.From)
	if sel.Alias != "" {
		v.ident("alias", sel.Alias)
	}
	if len(sel.Columns) == 0 {
		v.addError("select from %s has no columns", sel.From)
	}
	for _, col := range sel.Columns {
		switch {
		case col.Field != "" && col.Sub != nil:
			v.addError("column %q sets both field and subquery", col.As)
		case col.Sub != nil:
			if col.As == "" {
				v.addError("subquery column needs an alias")
			}
			v.validateSelect(*col.Sub)
		default:
			v.ident("column", col.Field)
		}
		if col.As != "" {
			v.ident("column alias", col.As)
		}
	}
	for _, o := range sel.OrderBy {
		v.ident("order field", o.Field)
	}
	if sel.Limit < 0 {
		v.addError("negative limit %d", sel.Limit)
	}
	if sel.Filter != nil {
		v.validatePredicate(sel.Filter)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
		v.addError("nil predicate")
	case Equals:
		v.ident("field", pred.Field)
		v.value(pred.Field, pred.Value)
	case Compare:
		v.ident("field", pred.Field)
		v.value(pred.Field, pred.Value)
		switch pred.Op {
		case OpGreater, OpGreaterEqual, OpLess, OpLessEqual, OpNotEqual:
		default:
			v.addError("unknown operator %q on %s", pred.Op, pred.Field)
		}
	case In:
		v.ident("field", pred.Field)
		if len(pred.Values) == 0 {
			v.addError("empty IN list on %s", pred.Field)
		}
		for _, val := range pred.Values {
			v.value(pred.Field, val)
		}
	case NotInSelect:
		v.ident("field", pred.Field)
		if len(pred.Query.Columns) != 1 {
			v.addError("NOT IN subquery on %s must select exactly one column", pred.Field)
		}
		v.validateSelect(pred.Query)
	case IsNull:
		v.ident("field", pred.Field)
	case FieldEquals:
		v.ident("field", pred.Left)
		v.ident("field", pred.Right)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case Or:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	default:
		v.addError("unknown predicate type %T", p)
	}
}

func (v *validator) ident(kind, s string) {
	if !ValidIdent(s) {
		v.addError("invalid %s identifier %q", kind, s)
	}
}

func (v *validator) value(field string, val any) {
	if val == nil {
		v.addError("nil value for %s; use IsNull", field)
	}
}
