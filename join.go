package assoc

import "strings"

// innerJoinText renders one inner-join fragment:
//
//	INNER JOIN <joinTable> [<alias> ]ON(<fromTable>.<a> = <joinTable>.<b> [AND ...])
//
// Column pairs correlate positionally; the join side qualifies with the
// alias when one is given. Quoting is delegated to conn.
func innerJoinText(conn Connection, joinTable, alias, fromTable string, fromCols, joinCols []string) string {
	joinSide := joinTable
	if alias != "" {
		joinSide = alias
	}

	pairs := make([]string, len(fromCols))
	for i := range fromCols {
		pairs[i] = quoteQualified(conn, qualify(fromTable, fromCols[i])) +
			" = " +
			quoteQualified(conn, qualify(joinSide, joinCols[i]))
	}

	var sb strings.Builder
	sb.WriteString("INNER JOIN ")
	sb.WriteString(quoteQualified(conn, joinTable))
	sb.WriteString(" ")
	if alias != "" {
		sb.WriteString(conn.QuoteName(alias))
		sb.WriteString(" ")
	}
	sb.WriteString("ON(")
	sb.WriteString(strings.Join(pairs, " AND "))
	sb.WriteString(")")

	return sb.String()
}

// InnerJoinSQL builds the inner-join fragment correlating fromTable with the
// relationship's other side.
//
// For the direct case the join table is the target table (or the join table
// for HasAndBelongsToMany) and fromTable is the declaring side. Which column
// plays the foreign role depends on direction: HasMany and HasOne keep the
// foreign key on the target, BelongsTo and HasAndBelongsToMany keep it on
// the declaring side.
//
// With usingThrough the sides flip: fromTable is taken as the intermediate's
// physical table and the target table becomes the from side, joined on the
// key pair derived from the intermediate and source relationships. Only
// relationships declared with Through accept usingThrough.
func (r *Relationship) InnerJoinSQL(fromTable string, usingThrough bool, alias string) (string, error) {
	conn := r.owner.reg.conn

	if usingThrough {
		if r.opts.Through == "" {
			return "", assocErr(r.owner, r.name, "", ErrThroughNotFound)
		}
		tj, err := r.resolveThrough()
		if err != nil {
			return "", err
		}
		return innerJoinText(conn, fromTable, alias, tj.targetTable, tj.targetCols, tj.joinCols), nil
	}

	if err := r.resolveKeys(); err != nil {
		return "", err
	}

	switch r.kind {
	case KindHasMany, KindHasOne:
		t, err := r.target()
		if err != nil {
			return "", err
		}
		return innerJoinText(conn, t.QualifiedName(), alias, fromTable, r.primaryKey, r.foreignKey), nil

	case KindBelongsTo:
		t, err := r.target()
		if err != nil {
			return "", err
		}
		return innerJoinText(conn, t.QualifiedName(), alias, fromTable, r.foreignKey, r.primaryKey), nil

	case KindHasAndBelongsToMany:
		return innerJoinText(conn, r.joinTable, alias, fromTable, r.primaryKey, r.foreignKey), nil
	}

	return "", configErr(r.owner, r.name, ErrRelationshipNotFound)
}

// habtmTargetJoin is the target-side half of a HasAndBelongsToMany query:
// the join from the target table to the join table on the association key.
func (r *Relationship) habtmTargetJoin() (string, error) {
	t, err := r.target()
	if err != nil {
		return "", err
	}
	if len(t.PrimaryKey) != len(r.assocKey) {
		return "", configErr(r.owner, r.name, ErrKeyLengthMismatch)
	}
	conn := r.owner.reg.conn
	return innerJoinText(conn, r.joinTable, "", t.QualifiedName(), t.PrimaryKey, r.assocKey), nil
}

func mergeJoins(parts ...string) string {
	joined := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			joined = append(joined, p)
		}
	}
	return strings.Join(joined, " ")
}
