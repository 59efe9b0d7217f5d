package softdelete

import "context"

// Tx is an ordered batch of writes that commits as one atomic unit.
// Writes are buffered until Commit; nothing is visible to other readers
// before Commit returns, and a failed Commit leaves the store unchanged.
type Tx interface {
	// SetAdd adds member to the set at key. Adding an existing member is a no-op.
	SetAdd(key, member string)

	// SetRemove removes member from the set at key. Removing a missing member is a no-op.
	SetRemove(key, member string)

	// SetField writes field in the attribute namespace at key.
	// A nil value removes the field.
	SetField(key, field string, value *string)

	// Commit submits every buffered write at once.
	Commit(ctx context.Context) error
}

// Reader performs single, uncached reads against the store.
type Reader interface {
	// IsMember reports whether member belongs to the set at key.
	IsMember(ctx context.Context, key, member string) (bool, error)

	// Members returns every member of the set at key, in no particular order.
	Members(ctx context.Context, key string) ([]string, error)

	// Field returns the value of field at key and whether it is present.
	Field(ctx context.Context, key, field string) (string, bool, error)
}

// Store is the transactional key-value store a Controller writes through.
type Store interface {
	Reader

	// Begin opens a new write batch.
	Begin() Tx
}
