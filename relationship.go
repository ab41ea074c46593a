package assoc

// Kind is the closed set of relationship shapes. Direction-sensitive logic
// (key defaulting, join flipping) dispatches on it.
type Kind int8

const (
	KindHasMany Kind = iota + 1
	KindHasOne
	KindBelongsTo
	KindHasAndBelongsToMany
)

func (k Kind) String() string {
	switch k {
	case KindHasMany:
		return "HasMany"
	case KindHasOne:
		return "HasOne"
	case KindBelongsTo:
		return "BelongsTo"
	case KindHasAndBelongsToMany:
		return "HasAndBelongsToMany"
	default:
		return "Unknown"
	}
}

// Options configures a relationship declaration. Every field is optional;
// unset keys and names are inferred from naming conventions at first load.
// Fields that do not apply to the declared kind are silently dropped.
type Options struct {
	// ClassName names the target type explicitly when it cannot be derived
	// from the attribute name.
	ClassName string

	// Namespace prefixes the derived type name for registry lookup.
	Namespace string

	// ForeignKey and PrimaryKey override the inferred key columns. Both are
	// ordered lists; composite keys correlate positionally.
	ForeignKey []string
	PrimaryKey []string

	// Conditions is a static fragment AND-merged into every load.
	Conditions *Cond

	Order  string
	Group  string
	Limit  int
	Offset int

	// Joins is raw join text appended to every load.
	Joins string

	// Include names relationships on the target to eager load alongside.
	Include []string

	// Through names an intermediate relationship on the declaring table;
	// plural kinds only.
	Through string

	// Source names the relationship on the intermediate's table that reaches
	// the target, when it differs from the singularized attribute name.
	Source string

	// JoinTable and AssociationForeignKey configure the join table of a
	// HasAndBelongsToMany.
	JoinTable             string
	AssociationForeignKey []string
}

// sanitizeOptions drops the option fields that do not apply to kind. Unknown
// configuration is not an error; it simply does not participate.
func sanitizeOptions(kind Kind, o Options) Options {
	switch kind {
	case KindHasMany:
		o.JoinTable = ""
		o.AssociationForeignKey = nil
	case KindHasOne:
		o.Through = ""
		o.Source = ""
		o.Group = ""
		o.Limit = 0
		o.Offset = 0
		o.JoinTable = ""
		o.AssociationForeignKey = nil
	case KindBelongsTo:
		o.Through = ""
		o.Source = ""
		o.Group = ""
		o.Limit = 0
		o.Offset = 0
		o.JoinTable = ""
		o.AssociationForeignKey = nil
	case KindHasAndBelongsToMany:
		o.Through = ""
		o.Source = ""
		o.PrimaryKey = nil
	}
	return o
}

// Relationship is one declared association on a table. It is shared by every
// record of the declaring type. Key columns resolve lazily on first use and
// the resolution is idempotent, so redundant re-derivation is harmless.
type Relationship struct {
	owner    *Table
	kind     Kind
	name     string // normalized attribute name
	typeName string
	opts     Options

	keysResolved bool
	foreignKey   []string
	primaryKey   []string

	// HasAndBelongsToMany join table shape; resolved at declaration.
	joinTable string
	assocKey  []string

	through *throughJoin // memoized at first load
}

func newRelationship(owner *Table, kind Kind, name string, opts Options) *Relationship {
	inf := owner.reg.inflector
	opts = sanitizeOptions(kind, opts)

	rel := &Relationship{
		owner: owner,
		kind:  kind,
		name:  inf.Underscore(name),
		opts:  opts,
	}

	rel.typeName = opts.ClassName
	if rel.typeName == "" {
		rel.typeName = inf.Classify(rel.name)
		if opts.Namespace != "" {
			rel.typeName = opts.Namespace + "." + rel.typeName
		}
	}

	if kind == KindHasAndBelongsToMany {
		rel.joinTable = opts.JoinTable
		if rel.joinTable == "" {
			rel.joinTable = inf.JoinTableName(owner.TypeName, rel.typeName)
		}
		rel.foreignKey = opts.ForeignKey
		if len(rel.foreignKey) == 0 {
			rel.foreignKey = []string{inf.Keyify(owner.TypeName)}
		}
		rel.assocKey = opts.AssociationForeignKey
		if len(rel.assocKey) == 0 {
			rel.assocKey = []string{inf.Keyify(rel.typeName)}
		}
		rel.primaryKey = owner.PrimaryKey
	}

	return rel
}

// Kind returns the relationship's shape.
func (r *Relationship) Kind() Kind { return r.kind }

// Name returns the normalized attribute name records attach under.
func (r *Relationship) Name() string { return r.name }

// TargetTypeName returns the resolved target type name.
func (r *Relationship) TargetTypeName() string { return r.typeName }

// IsPoly reports whether the relationship attaches a collection rather than
// a single record, so callers can expose the right accessor.
func (r *Relationship) IsPoly() bool {
	return r.kind == KindHasMany || r.kind == KindHasAndBelongsToMany
}

// JoinTable returns the join table of a HasAndBelongsToMany, or "".
func (r *Relationship) JoinTable() string { return r.joinTable }

func (r *Relationship) target() (*Table, error) {
	t, err := r.owner.reg.Table(r.typeName)
	if err != nil {
		return nil, configErr(r.owner, r.name, err)
	}
	return t, nil
}

// resolveKeys fills in the foreign/primary key column pair, preferring
// explicit configuration and falling back to naming conventions:
//
//   - BelongsTo derives the foreign key from the target type name and takes
//     the target's primary key.
//   - HasMany and HasOne derive the foreign key from the owner type name and
//     take the owner's declared primary key.
//   - HasAndBelongsToMany validates the pair fixed at declaration.
//
// The resolved lists are equal-length and correlate positionally.
func (r *Relationship) resolveKeys() error {
	if r.keysResolved {
		return nil
	}

	inf := r.owner.reg.inflector

	fk := r.opts.ForeignKey
	pk := r.opts.PrimaryKey

	switch r.kind {
	case KindBelongsTo:
		if len(fk) == 0 {
			fk = []string{inf.Keyify(r.typeName)}
		}
		if len(pk) == 0 {
			t, err := r.target()
			if err != nil {
				return err
			}
			pk = t.PrimaryKey
		}
	case KindHasMany, KindHasOne:
		if len(fk) == 0 {
			fk = []string{inf.Keyify(r.owner.TypeName)}
		}
		if len(pk) == 0 {
			pk = r.owner.PrimaryKey
		}
	case KindHasAndBelongsToMany:
		// Join table shape is fixed at declaration; the length check below
		// still applies, so a composite owner key needs an explicit
		// foreign key list of matching length.
		fk = r.foreignKey
		pk = r.primaryKey
	}

	if len(fk) == 0 || len(pk) == 0 || len(fk) != len(pk) {
		return configErr(r.owner, r.name, ErrKeyLengthMismatch)
	}

	r.foreignKey = fk
	r.primaryKey = pk
	r.keysResolved = true

	return nil
}

// ForeignKeyColumns returns the resolved foreign key columns, forcing
// resolution if needed.
func (r *Relationship) ForeignKeyColumns() ([]string, error) {
	if err := r.resolveKeys(); err != nil {
		return nil, err
	}
	return r.foreignKey, nil
}

// PrimaryKeyColumns returns the resolved primary key columns, forcing
// resolution if needed.
func (r *Relationship) PrimaryKeyColumns() ([]string, error) {
	if err := r.resolveKeys(); err != nil {
		return nil, err
	}
	return r.primaryKey, nil
}
