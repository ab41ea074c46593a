package assoc

import (
	"sort"
	"strings"

	"github.com/gertd/go-pluralize"
	"github.com/iancoleman/strcase"
)

// Inflector derives conventional names: table names from type names, foreign
// key columns from either side of a relationship, and type names from
// attribute names.
type Inflector struct {
	client *pluralize.Client
}

// NewInflector returns an Inflector with the default pluralization rules.
func NewInflector() *Inflector {
	return &Inflector{client: pluralize.NewClient()}
}

// Pluralize returns the plural form of word.
func (i *Inflector) Pluralize(word string) string {
	return i.client.Plural(word)
}

// Singularize returns the singular form of word.
func (i *Inflector) Singularize(word string) string {
	return i.client.Singular(word)
}

// Underscore converts CamelCase to snake_case.
func (i *Inflector) Underscore(s string) string {
	return strcase.ToSnake(s)
}

// Camelize converts snake_case to CamelCase.
func (i *Inflector) Camelize(s string) string {
	return strcase.ToCamel(s)
}

// Classify derives a type name from a table or attribute name:
// "line_items" becomes "LineItem".
func (i *Inflector) Classify(s string) string {
	return i.Camelize(i.Singularize(s))
}

// Tableize derives a table name from a type name: "LineItem" becomes
// "line_items".
func (i *Inflector) Tableize(typeName string) string {
	return i.Pluralize(i.Underscore(typeName))
}

// Keyify derives the conventional foreign key column for a type name:
// "LineItem" becomes "line_item_id".
func (i *Inflector) Keyify(typeName string) string {
	return i.Underscore(typeName) + "_id"
}

// JoinTableName derives the conventional join table for a many-to-many pair:
// both type names tableized, sorted lexically, joined with an underscore.
// ("Student", "Course") becomes "courses_students".
func (i *Inflector) JoinTableName(a, b string) string {
	names := []string{i.Tableize(a), i.Tableize(b)}
	sort.Strings(names)
	return strings.Join(names, "_")
}
