package assoc

import (
	"fmt"
	"strings"
)

// Cond is a driver-agnostic condition fragment: an SQL expression with "?"
// placeholders and its arguments. Fragments compose with And.
type Cond struct {
	Expr string
	Args []any
}

// RawCond builds a condition fragment from a raw expression, for static
// relationship conditions.
func RawCond(expr string, args ...any) *Cond {
	return &Cond{Expr: expr, Args: args}
}

// And merges two fragments into a single AND-ed fragment. A nil side is
// ignored.
func And(a, b *Cond) *Cond {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	args := make([]any, 0, len(a.Args)+len(b.Args))
	args = append(args, a.Args...)
	args = append(args, b.Args...)
	return &Cond{
		Expr: fmt.Sprintf("(%s) AND (%s)", a.Expr, b.Expr),
		Args: args,
	}
}

// Connection quotes identifiers for the dialect in use. Fragments and join
// text delegate all quoting here.
type Connection interface {
	QuoteName(identifier string) string
}

// PlainConnection performs no quoting. It is the default for registries that
// only plan queries.
type PlainConnection struct{}

func (PlainConnection) QuoteName(identifier string) string { return identifier }

// ConditionFactory turns key columns and value rows into a condition
// fragment. keys are qualified column names ("table.column"); rows are
// positional value tuples matching keys.
type ConditionFactory interface {
	CreateConditions(conn Connection, keys []string, rows [][]any) *Cond
}

// StandardConditionFactory produces equality for a single row, membership for
// many rows, and row-value membership for composite keys.
type StandardConditionFactory struct{}

func (StandardConditionFactory) CreateConditions(conn Connection, keys []string, rows [][]any) *Cond {
	if len(keys) == 0 || len(rows) == 0 {
		return nil
	}

	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = quoteQualified(conn, k)
	}

	if len(keys) == 1 {
		if len(rows) == 1 {
			return &Cond{Expr: quoted[0] + " = ?", Args: []any{rows[0][0]}}
		}
		args := make([]any, 0, len(rows))
		phs := make([]string, 0, len(rows))
		for _, row := range rows {
			phs = append(phs, "?")
			args = append(args, row[0])
		}
		return &Cond{
			Expr: fmt.Sprintf("%s IN (%s)", quoted[0], strings.Join(phs, ",")),
			Args: args,
		}
	}

	// Composite keys match positionally as row values.
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",") + ")"
	args := make([]any, 0, len(rows)*len(keys))
	tuples := make([]string, 0, len(rows))
	for _, row := range rows {
		tuples = append(tuples, tuple)
		args = append(args, row...)
	}
	return &Cond{
		Expr: fmt.Sprintf("(%s) IN (%s)", strings.Join(quoted, ","), strings.Join(tuples, ",")),
		Args: args,
	}
}

// quoteQualified quotes each dot-separated part of a possibly qualified
// identifier.
func quoteQualified(conn Connection, identifier string) string {
	parts := strings.Split(identifier, ".")
	for i, p := range parts {
		parts[i] = conn.QuoteName(p)
	}
	return strings.Join(parts, ".")
}

func qualify(table, column string) string {
	return table + "." + column
}
