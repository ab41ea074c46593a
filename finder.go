package assoc

import (
	"context"
	"database/sql"
	"sort"
	"strconv"
	"strings"
)

// FindOptions narrows a relationship query. Zero values mean "not set".
type FindOptions struct {
	Select     string
	Conditions *Cond
	Joins      string
	Include    []string
	Order      string
	Group      string
	Having     string
	Limit      int
	Offset     int
}

// Finder fetches related records for a table. FindFirst reports
// ErrRecordNotFound when no row matches.
type Finder interface {
	FindFirst(t *Table, opts *FindOptions) (*Record, error)
	FindAll(t *Table, opts *FindOptions) ([]*Record, error)
}

// Persister writes records built through a relationship. Insert returns the
// generated id when the driver exposes one; returning names the primary key
// column to read back on drivers that report generated keys through a
// RETURNING clause rather than the result, or "" when no key is needed.
type Persister interface {
	Insert(table string, attrs map[string]any, returning string) (int64, error)
}

// SQLFinder implements Finder and Persister over database/sql. Reads go to
// a replica, writes to the primary; a transaction-scoped finder routes
// everything through its transaction.
type SQLFinder struct {
	resolver *DBResolver
	dialect  *Dialect
	stmts    *StmtCache
	tx       *sql.Tx
}

// NewSQLFinder wraps a single connection, used for both reads and writes.
func NewSQLFinder(db *sql.DB, dialect *Dialect) *SQLFinder {
	return &SQLFinder{resolver: NewDBResolver(WithPrimary(db)), dialect: dialect}
}

// NewResolvingFinder splits traffic across a primary/replica resolver.
func NewResolvingFinder(resolver *DBResolver, dialect *Dialect) *SQLFinder {
	return &SQLFinder{resolver: resolver, dialect: dialect}
}

// WithStatementCache enables an LRU prepared-statement cache of the given
// capacity and returns the finder for chaining.
func (f *SQLFinder) WithStatementCache(capacity int) *SQLFinder {
	f.stmts = NewStmtCache(capacity)
	return f
}

// WithTx returns a copy of the finder scoped to tx: every read and write
// runs inside the transaction instead of the resolver's pools.
func (f *SQLFinder) WithTx(tx *sql.Tx) *SQLFinder {
	scoped := *f
	scoped.tx = tx
	scoped.stmts = nil
	return &scoped
}

func (f *SQLFinder) query(ctx context.Context, query string, args []any) (*sql.Rows, error) {
	if f.tx != nil {
		return f.tx.QueryContext(ctx, query, args...)
	}
	db := f.resolver.Replica()
	if f.stmts != nil {
		stmt, release, err := f.stmts.Prepare(ctx, db, query)
		if err != nil {
			return nil, err
		}
		defer release()
		return stmt.QueryContext(ctx, args...)
	}
	return db.QueryContext(ctx, query, args...)
}

func (f *SQLFinder) exec(ctx context.Context, query string, args []any) (sql.Result, error) {
	if f.tx != nil {
		return f.tx.ExecContext(ctx, query, args...)
	}
	db := f.resolver.Primary()
	if f.stmts != nil {
		stmt, release, err := f.stmts.Prepare(ctx, db, query)
		if err != nil {
			return nil, err
		}
		defer release()
		return stmt.ExecContext(ctx, args...)
	}
	return db.ExecContext(ctx, query, args...)
}

func (f *SQLFinder) FindFirst(t *Table, opts *FindOptions) (*Record, error) {
	o := *opts
	if o.Limit == 0 {
		o.Limit = 1
	}
	recs, err := f.FindAll(t, &o)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrRecordNotFound
	}
	return recs[0], nil
}

func (f *SQLFinder) FindAll(t *Table, opts *FindOptions) ([]*Record, error) {
	query, args := f.buildSelect(t, opts)
	rows, err := f.query(context.Background(), query, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recs, err := scanRecords(t, rows)
	if err != nil {
		return nil, err
	}
	if len(opts.Include) > 0 {
		if err := LoadIncludes(t, recs, opts.Include...); err != nil {
			return nil, err
		}
	}
	return recs, nil
}

func (f *SQLFinder) Insert(table string, attrs map[string]any, returning string) (int64, error) {
	cols := make([]string, 0, len(attrs))
	for col := range attrs {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	args := make([]any, 0, len(cols))
	quoted := make([]string, 0, len(cols))
	for _, col := range cols {
		quoted = append(quoted, f.dialect.QuoteName(col))
		args = append(args, attrs[col])
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(quoteQualified(f.dialect, table))
	sb.WriteString(" (")
	sb.WriteString(strings.Join(quoted, ", "))
	sb.WriteString(") VALUES (")
	sb.WriteString(strings.Join(placeholders(len(cols)), ", "))
	sb.WriteString(")")

	ctx := context.Background()

	// Postgres-style drivers never report generated keys through the exec
	// result; read the key back with RETURNING instead.
	if returning != "" && f.dialect.SupportsReturning {
		sb.WriteString(" RETURNING ")
		sb.WriteString(f.dialect.QuoteName(returning))
		var id int64
		if err := f.queryRow(ctx, f.dialect.rebind(sb.String()), args).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}

	query := f.dialect.rebind(sb.String())
	res, err := f.exec(ctx, query, args)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		// Drivers without LastInsertId support still performed the insert.
		return 0, nil
	}
	return id, nil
}

func (f *SQLFinder) queryRow(ctx context.Context, query string, args []any) *sql.Row {
	if f.tx != nil {
		return f.tx.QueryRowContext(ctx, query, args...)
	}
	return f.resolver.Primary().QueryRowContext(ctx, query, args...)
}

func (f *SQLFinder) buildSelect(t *Table, o *FindOptions) (string, []any) {
	var sb strings.Builder
	var args []any

	sb.WriteString("SELECT ")
	if o.Select != "" {
		sb.WriteString(o.Select)
	} else {
		sb.WriteString(quoteQualified(f.dialect, t.QualifiedName()))
		sb.WriteString(".*")
	}
	sb.WriteString(" FROM ")
	sb.WriteString(quoteQualified(f.dialect, t.QualifiedName()))

	if o.Joins != "" {
		sb.WriteString(" ")
		sb.WriteString(o.Joins)
	}
	if o.Conditions != nil && o.Conditions.Expr != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(o.Conditions.Expr)
		args = append(args, o.Conditions.Args...)
	}
	if o.Group != "" {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(o.Group)
	}
	if o.Having != "" {
		sb.WriteString(" HAVING ")
		sb.WriteString(o.Having)
	}
	if o.Order != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(o.Order)
	}
	if o.Limit > 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(o.Limit))
	}
	if o.Offset > 0 {
		sb.WriteString(" OFFSET ")
		sb.WriteString(strconv.Itoa(o.Offset))
	}

	return f.dialect.rebind(sb.String()), args
}

func scanRecords(t *Table, rows *sql.Rows) ([]*Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var recs []*Record
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		attrs := make(map[string]any, len(cols))
		for i, col := range cols {
			attrs[col] = normalizeScanned(vals[i])
		}
		recs = append(recs, t.Hydrate(attrs))
	}
	return recs, rows.Err()
}

// normalizeScanned keeps attribute values comparable across drivers: raw
// byte slices become strings so key matching works on the text value.
func normalizeScanned(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func placeholders(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "?"
	}
	return out
}
