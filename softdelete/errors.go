package softdelete

import "errors"

var (
	// ErrTransaction is returned when the store rejects or fails to commit a
	// delete or restore batch. The store's own error is wrapped alongside it.
	// No write of the batch took effect.
	ErrTransaction = errors.New("tombstone: transaction failed")

	// ErrInvalidID is returned for a blank id or an id that collides with an index set key.
	ErrInvalidID = errors.New("tombstone: invalid entity id")

	// ErrTypeMismatch is returned when an entity is passed to a controller of another type.
	ErrTypeMismatch = errors.New("tombstone: entity type does not match controller")

	// ErrUnknownType is returned when no controller is registered for an entity type.
	ErrUnknownType = errors.New("tombstone: unknown entity type")
)
