package assoc

import (
	"strconv"
	"strings"
)

// eagerKeyAlias prefixes the extra selected columns that carry the owner
// correlation value when it lives on a joined table rather than on the
// target itself (through and join-table relationships). The columns are
// stripped from the hydrated records after grouping.
const eagerKeyAlias = "_assoc_owner_key_"

// EagerLoad resolves the relationship for a whole layer of owners in one
// query and distributes the results. Call it once per relationship per
// layer, never once per owner.
//
// Owners whose key values are null take no part in the query and end up
// with an empty collection or nil. When a related record matches several
// owners, the first recipient is attached the fetched record itself and
// every later recipient an independent copy, so mutation through one owner
// never leaks into another. An empty owner slice returns immediately
// without touching anything.
func (r *Relationship) EagerLoad(owners []*Record, nested ...string) error {
	if len(owners) == 0 {
		return nil
	}

	sc, err := r.loadScope()
	if err != nil {
		return err
	}

	// Collect the distinct owner key tuples.
	ownerKeys := make([]string, len(owners))
	valid := make([]bool, len(owners))
	var rows [][]any
	seen := map[string]bool{}
	for i, o := range owners {
		vals, allNull := o.values(sc.ownerCols)
		if allNull || anyNull(vals) {
			continue
		}
		k := keyString(vals)
		ownerKeys[i] = k
		valid[i] = true
		if !seen[k] {
			seen[k] = true
			rows = append(rows, vals)
		}
	}

	if len(rows) == 0 {
		r.attachEmpty(owners)
		return nil
	}

	finder := r.owner.reg.finder
	if finder == nil {
		return ErrNoFinder
	}

	reg := r.owner.reg
	cond := reg.factory.CreateConditions(reg.conn, sc.filterCols, rows)
	opts := r.findOptions(cond, sc.joins)
	opts.Include = append(append([]string(nil), r.opts.Include...), nested...)
	// Row limits describe a single owner's collection; they cannot apply to
	// a batch.
	opts.Limit, opts.Offset = 0, 0

	joined := r.kind == KindHasAndBelongsToMany || r.opts.Through != ""
	if joined {
		opts.Select = r.eagerSelect(sc)
	}

	recs, err := finder.FindAll(sc.target, opts)
	if err != nil {
		return err
	}

	groups := r.groupByOwnerKey(recs, joined)

	// Canonical pool: one record instance per primary key, so identical rows
	// fetched through different intermediate rows share one original.
	pool := map[string]*Record{}
	for key, matches := range groups {
		for i, m := range matches {
			pkVals, allNull := m.values(sc.target.PrimaryKey)
			if allNull {
				continue
			}
			pk := keyString(pkVals)
			if canon, ok := pool[pk]; ok {
				groups[key][i] = canon
			} else {
				pool[pk] = m
			}
		}
	}

	taken := map[*Record]bool{}
	attach := func(m *Record) *Record {
		if taken[m] {
			return m.Clone()
		}
		taken[m] = true
		return m
	}

	for i, o := range owners {
		if !valid[i] {
			r.attachEmpty(owners[i : i+1])
			continue
		}
		matches := groups[ownerKeys[i]]
		if r.IsPoly() {
			out := make([]*Record, 0, len(matches))
			for _, m := range matches {
				out = append(out, attach(m))
			}
			o.setMany(r.name, out)
			continue
		}
		if len(matches) == 0 {
			o.setOne(r.name, nil)
			continue
		}
		o.setOne(r.name, attach(matches[0]))
	}

	return nil
}

func (r *Relationship) attachEmpty(owners []*Record) {
	for _, o := range owners {
		if r.IsPoly() {
			o.setMany(r.name, nil)
		} else {
			o.setOne(r.name, nil)
		}
	}
}

// eagerSelect widens the select list with the joined-side key columns so
// results can be grouped back to their owners.
func (r *Relationship) eagerSelect(sc *loadScope) string {
	conn := r.owner.reg.conn
	var sb strings.Builder
	sb.WriteString(quoteQualified(conn, sc.target.QualifiedName()))
	sb.WriteString(".*")
	for i, fc := range sc.filterCols {
		sb.WriteString(", ")
		sb.WriteString(quoteQualified(conn, fc))
		sb.WriteString(" AS ")
		sb.WriteString(eagerKeyAlias)
		sb.WriteString(strconv.Itoa(i))
	}
	return sb.String()
}

// groupByOwnerKey indexes fetched records by the owner correlation value:
// the aliased joined-side columns when the key came through a join, the
// record's own key columns otherwise.
func (r *Relationship) groupByOwnerKey(recs []*Record, joined bool) map[string][]*Record {
	var ownCols []string
	if !joined {
		switch r.kind {
		case KindBelongsTo:
			ownCols = r.primaryKey
		default:
			ownCols = r.foreignKey
		}
	}

	groups := map[string][]*Record{}
	for _, rec := range recs {
		var vals []any
		if joined {
			vals = make([]any, 0, 1)
			for i := 0; ; i++ {
				alias := eagerKeyAlias + strconv.Itoa(i)
				v, ok := rec.attrs[alias]
				if !ok {
					break
				}
				vals = append(vals, v)
				delete(rec.attrs, alias)
				delete(rec.originals, alias)
			}
		} else {
			vals, _ = rec.values(ownCols)
		}
		if len(vals) == 0 || anyNull(vals) {
			continue
		}
		groups[keyString(vals)] = append(groups[keyString(vals)], rec)
	}
	return groups
}

func anyNull(vals []any) bool {
	for _, v := range vals {
		if v == nil {
			return true
		}
	}
	return false
}

// includeGroup is one root of a dot-notation include list with its nested
// remainder: "comments.author" contributes root "comments" and nested
// "author".
type includeGroup struct {
	name   string
	nested []string
}

func parseIncludes(includes []string) []includeGroup {
	var order []string
	byName := map[string]*includeGroup{}
	for _, inc := range includes {
		parts := strings.SplitN(inc, ".", 2)
		root := parts[0]
		g, ok := byName[root]
		if !ok {
			g = &includeGroup{name: root}
			byName[root] = g
			order = append(order, root)
		}
		if len(parts) > 1 {
			g.nested = append(g.nested, parts[1])
		}
	}

	out := make([]includeGroup, 0, len(order))
	for _, name := range order {
		out = append(out, *byName[name])
	}
	return out
}

// LoadIncludes eager loads the named relationships onto a layer of records
// of table t. Names use dot notation for nesting ("comments.author"); each
// distinct relationship in the layer resolves with a single batched query.
func LoadIncludes(t *Table, recs []*Record, includes ...string) error {
	if len(recs) == 0 || len(includes) == 0 {
		return nil
	}
	for _, g := range parseIncludes(includes) {
		rel := t.Relationship(g.name)
		if rel == nil {
			return configErr(t, g.name, ErrRelationshipNotFound)
		}
		if err := rel.EagerLoad(recs, g.nested...); err != nil {
			return err
		}
	}
	return nil
}
