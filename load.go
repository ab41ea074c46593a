package assoc

import "errors"

// loadScope is the query shape shared by lazy and eager resolution: which
// table to query, which qualified columns filter it, which owner columns
// supply the values, and any join text the indirection needs.
type loadScope struct {
	target     *Table
	filterCols []string
	ownerCols  []string
	joins      string
}

func (r *Relationship) loadScope() (*loadScope, error) {
	if r.opts.Through != "" {
		tj, err := r.resolveThrough()
		if err != nil {
			return nil, err
		}
		target, err := r.target()
		if err != nil {
			return nil, err
		}
		sc := &loadScope{target: target, ownerCols: tj.ownerCols, joins: tj.joinSQL}
		for _, c := range tj.filterCols {
			sc.filterCols = append(sc.filterCols, qualify(tj.filterTable, c))
		}
		return sc, nil
	}

	if err := r.resolveKeys(); err != nil {
		return nil, err
	}
	target, err := r.target()
	if err != nil {
		return nil, err
	}

	sc := &loadScope{target: target}
	switch r.kind {
	case KindHasMany, KindHasOne:
		sc.ownerCols = r.primaryKey
		for _, c := range r.foreignKey {
			sc.filterCols = append(sc.filterCols, qualify(target.QualifiedName(), c))
		}

	case KindBelongsTo:
		sc.ownerCols = r.foreignKey
		for _, c := range r.primaryKey {
			sc.filterCols = append(sc.filterCols, qualify(target.QualifiedName(), c))
		}

	case KindHasAndBelongsToMany:
		join, err := r.habtmTargetJoin()
		if err != nil {
			return nil, err
		}
		sc.joins = join
		sc.ownerCols = r.primaryKey
		for _, c := range r.foreignKey {
			sc.filterCols = append(sc.filterCols, qualify(r.joinTable, c))
		}
	}

	return sc, nil
}

func (r *Relationship) findOptions(cond *Cond, scopeJoins string) *FindOptions {
	return &FindOptions{
		Conditions: And(cond, r.opts.Conditions),
		Joins:      mergeJoins(scopeJoins, r.opts.Joins),
		Include:    r.opts.Include,
		Order:      r.opts.Order,
		Group:      r.opts.Group,
		Limit:      r.opts.Limit,
		Offset:     r.opts.Offset,
	}
}

// Load resolves the relationship for a single owner and attaches the result
// under the attribute name: all matches for plural kinds, the first match or
// nil for singular ones. When every participating owner key value is null
// the result is attached empty without issuing a query. Indirect
// relationships resolve in the same single round trip via their injected
// join.
func (r *Relationship) Load(owner *Record) error {
	sc, err := r.loadScope()
	if err != nil {
		return err
	}

	vals, allNull := owner.values(sc.ownerCols)
	if allNull {
		if r.IsPoly() {
			owner.setMany(r.name, nil)
		} else {
			owner.setOne(r.name, nil)
		}
		return nil
	}

	finder := r.owner.reg.finder
	if finder == nil {
		return ErrNoFinder
	}

	reg := r.owner.reg
	cond := reg.factory.CreateConditions(reg.conn, sc.filterCols, [][]any{vals})
	opts := r.findOptions(cond, sc.joins)

	if r.IsPoly() {
		recs, err := finder.FindAll(sc.target, opts)
		if err != nil {
			return err
		}
		owner.setMany(r.name, recs)
		return nil
	}

	rec, err := finder.FindFirst(sc.target, opts)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			owner.setOne(r.name, nil)
			return nil
		}
		return err
	}
	owner.setOne(r.name, rec)
	return nil
}

// Build constructs an unpersisted record of the target type: attrs are
// mass-assigned under the requested guard, then the foreign key toward the
// owner is injected unguarded. The new record attaches to the owner, joining
// the collection for plural kinds and replacing the value for singular ones.
func (r *Relationship) Build(owner *Record, attrs map[string]any, guarded bool) (*Record, error) {
	if r.opts.Through != "" {
		return nil, assocErr(r.owner, r.name, r.opts.Through, ErrThroughReadOnly)
	}
	if err := r.resolveKeys(); err != nil {
		return nil, err
	}
	target, err := r.target()
	if err != nil {
		return nil, err
	}

	rec := target.NewRecord()
	rec.Assign(attrs, guarded)

	switch r.kind {
	case KindHasMany, KindHasOne:
		for i := range r.foreignKey {
			rec.Set(r.foreignKey[i], owner.Get(r.primaryKey[i]))
		}
	case KindBelongsTo:
		for i := range r.foreignKey {
			owner.Set(r.foreignKey[i], rec.Get(r.primaryKey[i]))
		}
	}

	if r.IsPoly() {
		owner.appendMany(r.name, rec)
	} else {
		owner.setOne(r.name, rec)
	}

	return rec, nil
}

// Create builds and persists a record of the target type. For
// HasAndBelongsToMany the join table row is written as well; for BelongsTo
// the owner's foreign key is refreshed once the new primary key is known.
func (r *Relationship) Create(owner *Record, attrs map[string]any, guarded bool) (*Record, error) {
	rec, err := r.Build(owner, attrs, guarded)
	if err != nil {
		return nil, err
	}

	persister := r.owner.reg.persister
	if persister == nil {
		return nil, ErrNoPersister
	}
	target := rec.table

	returning := ""
	if len(target.PrimaryKey) == 1 {
		returning = target.PrimaryKey[0]
	}
	id, err := persister.Insert(target.QualifiedName(), rec.Attributes(), returning)
	if err != nil {
		return nil, err
	}
	if len(target.PrimaryKey) == 1 && rec.Get(target.PrimaryKey[0]) == nil && id != 0 {
		rec.Set(target.PrimaryKey[0], id)
	}
	rec.persisted = true
	rec.Clean()

	switch r.kind {
	case KindBelongsTo:
		for i := range r.foreignKey {
			owner.Set(r.foreignKey[i], rec.Get(r.primaryKey[i]))
		}

	case KindHasAndBelongsToMany:
		if len(target.PrimaryKey) != len(r.assocKey) {
			return nil, configErr(r.owner, r.name, ErrKeyLengthMismatch)
		}
		row := map[string]any{}
		for i := range r.foreignKey {
			row[r.foreignKey[i]] = owner.Get(r.primaryKey[i])
		}
		for i := range r.assocKey {
			row[r.assocKey[i]] = rec.Get(target.PrimaryKey[i])
		}
		if _, err := persister.Insert(r.joinTable, row, ""); err != nil {
			return nil, err
		}
	}

	return rec, nil
}
