package assoc

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure cases
var (
	// ErrTypeNotRegistered is returned when a relationship targets a type
	// name that is not present in the registry.
	ErrTypeNotRegistered = errors.New("assoc: type not registered")

	// ErrRelationshipNotFound is returned when a relationship name cannot be
	// resolved on a table.
	ErrRelationshipNotFound = errors.New("assoc: relationship not found")

	// ErrRecordNotFound is returned when a singular lookup matches no row.
	ErrRecordNotFound = errors.New("assoc: record not found")

	// ErrKeyLengthMismatch is returned when explicit foreign and primary key
	// column lists are not the same length.
	ErrKeyLengthMismatch = errors.New("assoc: foreign/primary key column count mismatch")

	// ErrThroughNotFound is returned when the named intermediate relationship
	// does not exist on the declaring table.
	ErrThroughNotFound = errors.New("assoc: through relationship not found")

	// ErrInvalidThroughKind is returned when the intermediate relationship is
	// neither BelongsTo nor HasMany.
	ErrInvalidThroughKind = errors.New("assoc: through relationship must be BelongsTo or HasMany")

	// ErrSourceNotFound is returned when no source relationship exists on the
	// intermediate table.
	ErrSourceNotFound = errors.New("assoc: source relationship not found on intermediate")

	// ErrThroughMismatch is returned when the source relationship on the
	// intermediate resolves to a different type than the declared target.
	ErrThroughMismatch = errors.New("assoc: through source resolves to a different target type")

	// ErrThroughReadOnly is returned when Build or Create is called on a
	// through relationship; new records cannot be associated across an
	// intermediate.
	ErrThroughReadOnly = errors.New("assoc: cannot build records on a through relationship")

	// ErrNoFinder is returned when a load is attempted on a registry without
	// a configured finder.
	ErrNoFinder = errors.New("assoc: no finder configured")

	// ErrNoPersister is returned when Create is attempted on a registry
	// without a configured persister.
	ErrNoPersister = errors.New("assoc: no persister configured")
)

// ConfigurationError wraps fatal declaration problems: a relationship whose
// target type cannot be resolved, or key lists that cannot correlate.
type ConfigurationError struct {
	TypeName     string // declaring type
	Relationship string // attribute name
	Err          error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("assoc: configuration of %s.%s: %v", e.TypeName, e.Relationship, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// AssociationError wraps through-resolution failures. These surface at first
// load rather than at declaration, since the intermediate relationship may be
// declared after the one that references it.
type AssociationError struct {
	TypeName     string
	Relationship string
	Through      string
	Err          error
}

func (e *AssociationError) Error() string {
	return fmt.Sprintf("assoc: relationship %s.%s (through %s): %v",
		e.TypeName, e.Relationship, e.Through, e.Err)
}

func (e *AssociationError) Unwrap() error {
	return e.Err
}

func configErr(t *Table, rel string, err error) error {
	if err == nil {
		return nil
	}
	return &ConfigurationError{TypeName: t.TypeName, Relationship: rel, Err: err}
}

func assocErr(t *Table, rel, through string, err error) error {
	if err == nil {
		return nil
	}
	return &AssociationError{TypeName: t.TypeName, Relationship: rel, Through: through, Err: err}
}

// IsNotFound reports whether err is a missing-record result.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound)
}

// IsConfiguration reports whether err originated from a declaration problem.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
