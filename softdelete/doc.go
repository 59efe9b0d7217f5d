// Package softdelete implements soft deletion for entities indexed in a
// set-based key-value store.
//
// Every entity type owns two index sets, "live" and "deleted". Instead of
// removing a record, [Controller.Delete] moves its id from the live set to the
// deleted set and writes the [Marker] into the entity's "deleted" field, all in
// one store transaction. [Controller.Restore] applies the inverse. The record's
// attributes are never touched otherwise, so a tombstoned id still resolves.
//
// # Invariant
//
// Between transactions every created entity id is in exactly one of the two
// sets, and it is in the deleted set exactly when its flag holds the Marker.
// [Controller.Audit] checks this for a single id; it is not called on the
// write path.
//
// # Stores
//
// A [Store] supplies uncached reads and a [Tx] batch that commits atomically.
// Implementations live under backend/: memory, redis (MULTI/EXEC), dynamo
// (TransactWriteItems) and sqlstore (database/sql).
//
//	store := redis.NewStore(redis.DefaultOptions())
//	posts := softdelete.New(store, softdelete.DefaultConfig("post"))
//
//	_ = posts.Delete(ctx, softdelete.Ref{Type: "post", ID: "42"})
//	deleted, _ := posts.IsDeleted(ctx, softdelete.Ref{Type: "post", ID: "42"}) // true
//	exists, _ := posts.Exists(ctx, "42")                                        // true
//
// # Existence
//
// [Controller.Exists] is the disjunction of the model layer's own predicate
// ([Config.BaseExists], by default live set membership) and deleted set
// membership, so tombstones keep existing while never-created ids do not.
//
// # Errors
//
//   - [ErrTransaction] - the store failed to commit; nothing was written
//   - [ErrInvalidID] - blank or reserved id
//   - [ErrTypeMismatch] - entity passed to another type's controller
//   - [ErrUnknownType] - registry lookup miss
package softdelete
