package assoc

import "reflect"

// Dirty tracking: hydrated records snapshot their column values, so callers
// can tell what changed since the row left the database. Records built in
// memory have no snapshot and count as fully dirty.

// snapshot stores the current attribute values as originals.
func (r *Record) snapshot() {
	r.originals = make(map[string]any, len(r.attrs))
	for k, v := range r.attrs {
		r.originals[k] = v
	}
}

// Original returns the value a column had when the record was hydrated, or
// nil if the record is untracked or the column was absent.
func (r *Record) Original(column string) any {
	if r.originals == nil {
		return nil
	}
	return r.originals[column]
}

// IsDirty reports whether a column has changed since hydration. Untracked
// records are dirty in every column they carry.
func (r *Record) IsDirty(column string) bool {
	if r.originals == nil {
		_, ok := r.attrs[column]
		return ok
	}
	orig, ok := r.originals[column]
	if !ok {
		_, present := r.attrs[column]
		return present
	}
	return !reflect.DeepEqual(orig, r.attrs[column])
}

// Dirty returns the changed columns and their current values. Primary key
// columns are excluded; they identify the row rather than describe it.
func (r *Record) Dirty() map[string]any {
	dirty := map[string]any{}
	for k, v := range r.attrs {
		if r.isPrimaryKeyColumn(k) {
			continue
		}
		if r.originals == nil {
			dirty[k] = v
			continue
		}
		if orig, ok := r.originals[k]; !ok || !reflect.DeepEqual(orig, v) {
			dirty[k] = v
		}
	}
	return dirty
}

// Clean resets the snapshot to the current values, typically after the
// changes have been written back.
func (r *Record) Clean() {
	r.snapshot()
}

func (r *Record) isPrimaryKeyColumn(column string) bool {
	for _, c := range r.table.PrimaryKey {
		if c == column {
			return true
		}
	}
	return false
}
