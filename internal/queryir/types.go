package queryir

import "github.com/roach88/renewal/internal/ir"

// Query represents an abstract query.
//
// This is a sealed interface - only types in this package implement it.
type Query interface {
	queryNode()
}

// Predicate represents a filter condition.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	predicateNode()
}

// Select represents table access with filtering, ordering and a row limit.
//
// Example:
//
//	Select{
//	  From:    "profiles",
//	  Columns: []Column{{Field: "id"}, {Field: "entity_type"}},
//	  Filter: And{Predicates: []Predicate{
//	    Equals{Field: "tenant_id", Value: ir.IRInt(1)},
//	    Compare{Field: "id", Op: OpGreater, Value: ir.IRInt(500)},
//	  }},
//	  OrderBy: []Order{{Field: "id"}},
//	  Limit:   500,
//	}
//
// Translates to:
//
//	SELECT id, entity_type FROM profiles
//	WHERE tenant_id = ? AND id > ? ORDER BY id ASC LIMIT ?
type Select struct {
	From     string    // table name
	Alias    string    // optional table alias used by qualified fields
	Columns  []Column  // selected columns in scan order (required)
	Filter   Predicate // WHERE conditions (nil = no filter)
	OrderBy  []Order   // empty = primary key ascending
	Limit    int       // 0 = no limit
	Distinct bool
}

func (Select) queryNode() {}

// Column is one entry of the select list.
// Exactly one of Field and Sub is set. Sub must return a single column and
// is usually limited to one row.
type Column struct {
	Field string
	Sub   *Select
	As    string
}

// Order is one ORDER BY term.
type Order struct {
	Field string
	Desc  bool
}

// Equals represents <field> = <value>.
type Equals struct {
	Field string
	Value ir.IRValue
}

func (Equals) predicateNode() {}

// CompareOp is a binary comparison operator.
type CompareOp string

const (
	OpGreater      CompareOp = ">"
	OpGreaterEqual CompareOp = ">="
	OpLess         CompareOp = "<"
	OpLessEqual    CompareOp = "<="
	OpNotEqual     CompareOp = "!="
)

// Compare represents <field> <op> <value>.
type Compare struct {
	Field string
	Op    CompareOp
	Value ir.IRValue
}

func (Compare) predicateNode() {}

// In represents <field> IN (<values>), or NOT IN when Negate is set.
// Values must not be empty.
type In struct {
	Field  string
	Values []ir.IRValue
	Negate bool
}

func (In) predicateNode() {}

// NotInSelect represents <field> NOT IN (<query>).
type NotInSelect struct {
	Field string
	Query Select
}

func (NotInSelect) predicateNode() {}

// IsNull represents <field> IS NULL, or IS NOT NULL when Negate is set.
type IsNull struct {
	Field  string
	Negate bool
}

func (IsNull) predicateNode() {}

// FieldEquals represents <left> = <right> between two columns. It is how a
// scalar subquery column is correlated with the outer row.
type FieldEquals struct {
	Left  string
	Right string
}

func (FieldEquals) predicateNode() {}

// And represents a conjunction. Empty means always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or represents a disjunction. Empty means always false.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// Ints converts integers to IR values for In predicates.
func Ints[T ~int | ~int64](vals ...T) []ir.IRValue {
	out := make([]ir.IRValue, len(vals))
	for i, v := range vals {
		out[i] = ir.IRInt(int64(v))
	}
	return out
}

// Strings converts strings to IR values for In predicates.
func Strings(vals ...string) []ir.IRValue {
	out := make([]ir.IRValue, len(vals))
	for i, v := range vals {
		out[i] = ir.IRString(v)
	}
	return out
}
