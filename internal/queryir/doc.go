// Package queryir provides the predicate-composition layer used by the store
// to build every relational read.
//
// Queries are assembled from typed nodes instead of concatenated WHERE/JOIN
// strings, then compiled to parameterized SQL by package querysql:
//
//	[store method] → [Query IR] → [querysql] → (sql, params)
//
// NODES:
//
//   - Select(from, columns, filter, order, limit)
//   - Predicates: Equals, Compare, In (and NOT IN), NotInSelect, IsNull, FieldEquals, And, Or
//   - Column: a field or a scalar subquery (correlated through FieldEquals)
//
// SEALED INTERFACES:
//
// Query and Predicate are sealed with marker methods so that compilers can
// switch exhaustively over every node type.
//
// CRITICAL PATTERNS:
//
// Deterministic Query Results
// Every compiled Select carries an ORDER BY. Callers that do not name one
// get the primary key.
//
// No Interpolation
// Literal values only ever travel as ir.IRValue and become ? placeholders.
// Identifiers are validated against a strict pattern before compilation.
package queryir
