package softdelete

// Marker is the value stored in an entity's deleted field while it is tombstoned.
const Marker = "1"

// Entity is implemented by records that can be soft deleted.
type Entity interface {
	// EntityType returns the entity type name (e.g., "post").
	// It scopes the index sets the entity is tracked in.
	EntityType() string

	// EntityID returns the identifier assigned by the model layer.
	// Integer ids are passed in their decimal form.
	EntityID() string
}

// Ref is an Entity known only by its type and id.
type Ref struct {
	Type string
	ID   string
}

func (r Ref) EntityType() string { return r.Type }
func (r Ref) EntityID() string   { return r.ID }

// Flag is the typed form of an entity's deleted field.
// The zero value is a live entity with the field absent.
type Flag struct {
	tombstoned bool
}

// Tombstone is the Flag of a soft-deleted entity.
var Tombstone = Flag{tombstoned: true}

// ParseFlag decodes a raw field value. Only the exact Marker counts as
// deleted; any other stored text, truthy or not, reads as live.
func ParseFlag(raw string, present bool) Flag {
	return Flag{tombstoned: present && raw == Marker}
}

// Deleted reports whether the flag marks a tombstone.
func (f Flag) Deleted() bool {
	return f.tombstoned
}

// Value returns the field value to write: the Marker, or nil to clear the field.
func (f Flag) Value() *string {
	if !f.tombstoned {
		return nil
	}
	m := Marker
	return &m
}

func (f Flag) String() string {
	if f.tombstoned {
		return "deleted"
	}
	return "live"
}
