package assoc

import (
	"fmt"
	"strings"
)

// Record is a row of a registered table: a column/value attribute map plus
// any relationships attached by a load. Related records attach under the
// relationship's attribute name; plural relationships hold a slice, singular
// ones a single record or nil.
type Record struct {
	table     *Table
	attrs     map[string]any
	one       map[string]*Record
	many      map[string][]*Record
	loaded    map[string]bool
	originals map[string]any
	persisted bool
}

// NewRecord returns an empty, unpersisted record for t.
func (t *Table) NewRecord() *Record {
	return &Record{
		table:  t,
		attrs:  map[string]any{},
		one:    map[string]*Record{},
		many:   map[string][]*Record{},
		loaded: map[string]bool{},
	}
}

// Hydrate returns a persisted record carrying the given column values, as
// produced by a query result.
func (t *Table) Hydrate(attrs map[string]any) *Record {
	r := t.NewRecord()
	for k, v := range attrs {
		r.attrs[k] = v
	}
	r.persisted = true
	r.snapshot()
	return r
}

// Table returns the table metadata this record belongs to.
func (r *Record) Table() *Table { return r.table }

// Persisted reports whether the record came from, or has been written to,
// the database.
func (r *Record) Persisted() bool { return r.persisted }

// Get returns the value of a column, or nil when unset.
func (r *Record) Get(column string) any { return r.attrs[column] }

// Set assigns a single column unconditionally.
func (r *Record) Set(column string, value any) { r.attrs[column] = value }

// Attributes returns a copy of the record's column values.
func (r *Record) Attributes() map[string]any {
	out := make(map[string]any, len(r.attrs))
	for k, v := range r.attrs {
		out[k] = v
	}
	return out
}

// Assign mass-assigns attrs. With guarded set, columns listed in the table's
// protected set are silently skipped; Set bypasses the guard for single
// columns.
func (r *Record) Assign(attrs map[string]any, guarded bool) {
	for k, v := range attrs {
		if guarded && r.table.isProtected(k) {
			continue
		}
		r.attrs[k] = v
	}
}

// values returns the record's values for the given columns in order, and
// whether every one of them is null.
func (r *Record) values(columns []string) ([]any, bool) {
	vals := make([]any, len(columns))
	allNull := true
	for i, c := range columns {
		vals[i] = r.attrs[c]
		if vals[i] != nil {
			allNull = false
		}
	}
	return vals, allNull
}

// PrimaryKeyValues returns the record's primary key values in declaration
// order.
func (r *Record) PrimaryKeyValues() []any {
	vals, _ := r.values(r.table.PrimaryKey)
	return vals
}

// One returns the singular related record attached under name, which is nil
// when the relationship loaded empty or has not been loaded.
func (r *Record) One(name string) *Record { return r.one[name] }

// Many returns the related records attached under name.
func (r *Record) Many(name string) []*Record { return r.many[name] }

// Loaded reports whether the named relationship has been resolved on this
// record.
func (r *Record) Loaded(name string) bool { return r.loaded[name] }

func (r *Record) setOne(name string, rec *Record) {
	r.one[name] = rec
	r.loaded[name] = true
}

func (r *Record) setMany(name string, recs []*Record) {
	if recs == nil {
		recs = []*Record{}
	}
	r.many[name] = recs
	r.loaded[name] = true
}

func (r *Record) appendMany(name string, rec *Record) {
	r.many[name] = append(r.many[name], rec)
	r.loaded[name] = true
}

// Clone returns an independent copy of the record: its own attribute map and
// its own association maps. Attached records are shared, not copied.
func (r *Record) Clone() *Record {
	c := r.table.NewRecord()
	c.persisted = r.persisted
	for k, v := range r.attrs {
		c.attrs[k] = v
	}
	for k, v := range r.one {
		c.one[k] = v
	}
	for k, v := range r.many {
		c.many[k] = append([]*Record(nil), v...)
	}
	for k, v := range r.loaded {
		c.loaded[k] = v
	}
	if r.originals != nil {
		c.originals = make(map[string]any, len(r.originals))
		for k, v := range r.originals {
			c.originals[k] = v
		}
	}
	return c
}

// keyString flattens a value tuple into a map key. Values of different
// numeric widths that print alike compare alike, matching how they correlate
// across driver result sets.
func keyString(vals []any) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprintf("%v", v)
	}
	return strings.Join(parts, "\x1f")
}
