package assoc

import (
	"fmt"

	"github.com/jedib0t/go-pretty/table"
)

// Registry maps type names to table descriptors. Relationship targets are
// resolved against it by name, so every participating type must be
// registered before its relationships load. Registration order is free;
// forward references resolve lazily.
type Registry struct {
	tables    map[string]*Table
	order     []string
	inflector *Inflector
	factory   ConditionFactory
	conn      Connection
	finder    Finder
	persister Persister
}

// RegistryOption configures a Registry at construction.
type RegistryOption func(*Registry)

// WithFinder sets the query collaborator used by Load and EagerLoad.
func WithFinder(f Finder) RegistryOption {
	return func(r *Registry) { r.finder = f }
}

// WithPersister sets the write collaborator used by Create.
func WithPersister(p Persister) RegistryOption {
	return func(r *Registry) { r.persister = p }
}

// WithConnection sets the identifier-quoting collaborator. Defaults to
// PlainConnection.
func WithConnection(c Connection) RegistryOption {
	return func(r *Registry) { r.conn = c }
}

// WithConditionFactory overrides the default condition fragment factory.
func WithConditionFactory(f ConditionFactory) RegistryOption {
	return func(r *Registry) { r.factory = f }
}

// WithInflector overrides the default name inflector.
func WithInflector(i *Inflector) RegistryOption {
	return func(r *Registry) { r.inflector = i }
}

// NewRegistry returns an empty registry with default collaborators.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		tables:    map[string]*Table{},
		inflector: NewInflector(),
		factory:   StandardConditionFactory{},
		conn:      PlainConnection{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Table describes one registered type: its physical table, primary key
// columns, protected columns, and declared relationships. A Table is shared
// by every record of its type; it is built once at registration and read
// thereafter.
type Table struct {
	reg *Registry

	TypeName   string
	Name       string   // physical table name
	SchemaName string   // optional namespace prefix
	PrimaryKey []string // ordered; composite keys are positional
	Protected  []string // columns skipped by guarded mass-assignment

	rels     map[string]*Relationship
	relOrder []string
}

// TableOption configures a table at registration.
type TableOption func(*Table)

// TableName overrides the tableized default.
func TableName(name string) TableOption {
	return func(t *Table) { t.Name = name }
}

// Key sets the primary key columns. Defaults to "id".
func Key(columns ...string) TableOption {
	return func(t *Table) { t.PrimaryKey = columns }
}

// Namespace sets a schema prefix used in the fully qualified table name.
func Namespace(schema string) TableOption {
	return func(t *Table) { t.SchemaName = schema }
}

// Guard marks columns as protected from guarded mass-assignment.
func Guard(columns ...string) TableOption {
	return func(t *Table) { t.Protected = append(t.Protected, columns...) }
}

// Register adds a type to the registry and returns its table descriptor for
// relationship declarations. Registering a name twice replaces the earlier
// descriptor.
func (r *Registry) Register(typeName string, opts ...TableOption) *Table {
	t := &Table{
		reg:        r,
		TypeName:   typeName,
		Name:       r.inflector.Tableize(typeName),
		PrimaryKey: []string{"id"},
		rels:       map[string]*Relationship{},
	}
	for _, opt := range opts {
		opt(t)
	}

	if _, exists := r.tables[typeName]; !exists {
		r.order = append(r.order, typeName)
	}
	r.tables[typeName] = t

	return t
}

// Table returns the descriptor registered under typeName.
func (r *Registry) Table(typeName string) (*Table, error) {
	t, ok := r.tables[typeName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTypeNotRegistered, typeName)
	}
	return t, nil
}

// QualifiedName returns the table name with its schema prefix, if any.
func (t *Table) QualifiedName() string {
	if t.SchemaName == "" {
		return t.Name
	}
	return t.SchemaName + "." + t.Name
}

// Relationship returns the declared relationship under name, or nil.
func (t *Table) Relationship(name string) *Relationship {
	return t.rels[name]
}

// Relationships returns the table's relationships in declaration order.
func (t *Table) Relationships() []*Relationship {
	out := make([]*Relationship, 0, len(t.relOrder))
	for _, name := range t.relOrder {
		out = append(out, t.rels[name])
	}
	return out
}

func (t *Table) isProtected(column string) bool {
	for _, c := range t.Protected {
		if c == column {
			return true
		}
	}
	return false
}

func (t *Table) declare(kind Kind, name string, opts Options) *Relationship {
	rel := newRelationship(t, kind, name, opts)
	if _, exists := t.rels[rel.name]; !exists {
		t.relOrder = append(t.relOrder, rel.name)
	}
	t.rels[rel.name] = rel
	return rel
}

// HasMany declares a plural relationship whose foreign key lives on the
// target table.
func (t *Table) HasMany(name string, opts Options) *Relationship {
	return t.declare(KindHasMany, name, opts)
}

// HasOne declares a singular relationship whose foreign key lives on the
// target table.
func (t *Table) HasOne(name string, opts Options) *Relationship {
	return t.declare(KindHasOne, name, opts)
}

// BelongsTo declares a singular relationship whose foreign key lives on the
// declaring table.
func (t *Table) BelongsTo(name string, opts Options) *Relationship {
	return t.declare(KindBelongsTo, name, opts)
}

// HasAndBelongsToMany declares a plural relationship joined through a
// two-column join table. Join table and keys resolve at declaration.
func (t *Table) HasAndBelongsToMany(name string, opts Options) *Relationship {
	return t.declare(KindHasAndBelongsToMany, name, opts)
}

// Validate checks every declared relationship whose target can be checked
// now: the target type must be registered and explicit key lists must
// correlate. Through references are deliberately not validated here; they
// may legally point at relationships declared later and are checked at first
// load.
func (r *Registry) Validate() error {
	for _, typeName := range r.order {
		t := r.tables[typeName]
		for _, name := range t.relOrder {
			rel := t.rels[name]
			if _, err := r.Table(rel.typeName); err != nil {
				return configErr(t, rel.name, err)
			}
			if len(rel.opts.ForeignKey) > 0 && len(rel.opts.PrimaryKey) > 0 &&
				len(rel.opts.ForeignKey) != len(rel.opts.PrimaryKey) {
				return configErr(t, rel.name, ErrKeyLengthMismatch)
			}
		}
	}
	return nil
}

// PrintSchematic prints a visual representation of the registered schema:
// each table with its keys, and each relationship with its resolved shape.
// Useful for debugging how declarations were inferred.
func (r *Registry) PrintSchematic() {
	for _, typeName := range r.order {
		t := r.tables[typeName]
		fmt.Printf("---------------- %s ----------------\n", typeName)
		w := table.NewWriter()
		w.AppendHeader(table.Row{"Table", "Primary Key", "Guarded Columns"})
		w.AppendRow(table.Row{t.QualifiedName(), fmt.Sprint(t.PrimaryKey), fmt.Sprint(t.Protected)})
		fmt.Println(w.Render())

		for _, rel := range t.Relationships() {
			switch rel.kind {
			case KindHasOne, KindBelongsTo:
				fmt.Printf("%s 1-1 %s (%s) => %+v\n", typeName, rel.name, rel.kind, rel.opts)
			case KindHasMany:
				fmt.Printf("%s 1-N %s => %+v\n", typeName, rel.name, rel.opts)
			case KindHasAndBelongsToMany:
				fmt.Printf("%s N-N %s via %s => %+v\n", typeName, rel.name, rel.joinTable, rel.opts)
			}
		}
		fmt.Println("")
	}
}
