package assoc

// throughJoin is the resolved shape of an indirect relationship: the join
// fragment from the final target to the intermediate table, plus the key
// pair that correlates owners with intermediate rows. It is computed from
// explicit key pairs without touching the descriptor's own foreign/primary
// keys, so overlapping loads see consistent state, and memoized after the
// first resolution.
type throughJoin struct {
	intermediate *Relationship
	source       *Relationship

	// Physical join: INNER JOIN <filterTable> ON(<targetTable>.<targetCols> = <filterTable>.<joinCols>)
	joinSQL     string
	targetTable string
	targetCols  []string
	joinCols    []string

	// Owner correlation: filterTable.filterCols match owner.ownerCols values.
	filterTable string
	filterCols  []string
	ownerCols   []string
}

// resolveThrough resolves the intermediate and source relationships of a
// through declaration. The intermediate is always looked up on the declaring
// table and must be BelongsTo or HasMany; the source is looked up on the
// intermediate's table, under the Source option or the singularized
// attribute name, and must reach the declared target type. Resolution is
// deferred to first load so the intermediate may be declared later on the
// same table.
func (r *Relationship) resolveThrough() (*throughJoin, error) {
	if r.through != nil {
		return r.through, nil
	}

	throughName := r.opts.Through
	inter := r.owner.Relationship(r.owner.reg.inflector.Underscore(throughName))
	if inter == nil {
		return nil, assocErr(r.owner, r.name, throughName, ErrThroughNotFound)
	}
	if inter.kind != KindBelongsTo && inter.kind != KindHasMany {
		return nil, assocErr(r.owner, r.name, throughName, ErrInvalidThroughKind)
	}

	interTable, err := inter.target()
	if err != nil {
		return nil, assocErr(r.owner, r.name, throughName, err)
	}
	targetTable, err := r.target()
	if err != nil {
		return nil, err
	}

	source := r.sourceOn(interTable)
	if source == nil {
		return nil, assocErr(r.owner, r.name, throughName, ErrSourceNotFound)
	}
	if source.typeName != r.typeName {
		return nil, assocErr(r.owner, r.name, throughName, ErrThroughMismatch)
	}

	if err := inter.resolveKeys(); err != nil {
		return nil, assocErr(r.owner, r.name, throughName, err)
	}
	if err := source.resolveKeys(); err != nil {
		return nil, assocErr(r.owner, r.name, throughName, err)
	}

	tj := &throughJoin{
		intermediate: inter,
		source:       source,
		targetTable:  targetTable.QualifiedName(),
		filterTable:  interTable.QualifiedName(),
	}

	// The two halves are independent: the source kind decides which side of
	// the physical join carries the foreign key, the intermediate kind
	// decides how owners correlate with intermediate rows.
	switch source.kind {
	case KindBelongsTo:
		// Intermediate points at the target.
		tj.targetCols = source.primaryKey
		tj.joinCols = source.foreignKey
	case KindHasMany, KindHasOne:
		// Target points back at the intermediate.
		tj.targetCols = source.foreignKey
		tj.joinCols = source.primaryKey
	default:
		return nil, assocErr(r.owner, r.name, throughName, ErrInvalidThroughKind)
	}

	switch inter.kind {
	case KindHasMany:
		tj.filterCols = inter.foreignKey
		tj.ownerCols = inter.primaryKey
	case KindBelongsTo:
		tj.filterCols = inter.primaryKey
		tj.ownerCols = inter.foreignKey
	}

	tj.joinSQL = innerJoinText(r.owner.reg.conn, tj.filterTable, "", tj.targetTable, tj.targetCols, tj.joinCols)

	r.through = tj
	return tj, nil
}

// sourceOn finds the relationship on the intermediate's table that reaches
// this relationship's target: the Source option if given, otherwise the
// attribute name as declared, otherwise its singular form.
func (r *Relationship) sourceOn(interTable *Table) *Relationship {
	inf := r.owner.reg.inflector

	if r.opts.Source != "" {
		return interTable.Relationship(inf.Underscore(r.opts.Source))
	}
	if s := interTable.Relationship(r.name); s != nil {
		return s
	}
	return interTable.Relationship(inf.Singularize(r.name))
}
