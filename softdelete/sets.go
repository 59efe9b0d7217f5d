package softdelete

import (
	"context"

	"github.com/jacentio/tombstone/internal/keyspace"
)

// IndexSets addresses the named id sets of one entity type.
// Writes are staged into a caller-owned Tx; reads go straight to the store.
type IndexSets struct {
	reader Reader
	layout keyspace.Layout
}

// NewIndexSets returns the sets of the entity type described by layout.
func NewIndexSets(reader Reader, layout keyspace.Layout) IndexSets {
	return IndexSets{reader: reader, layout: layout}
}

// Key returns the store key of the named set.
func (s IndexSets) Key(name string) string {
	return s.layout.Set(name)
}

// Add stages adding id to the named set.
func (s IndexSets) Add(tx Tx, name, id string) {
	tx.SetAdd(s.Key(name), id)
}

// Remove stages removing id from the named set.
func (s IndexSets) Remove(tx Tx, name, id string) {
	tx.SetRemove(s.Key(name), id)
}

// IsMember reports whether id is currently in the named set.
func (s IndexSets) IsMember(ctx context.Context, name, id string) (bool, error) {
	return s.reader.IsMember(ctx, s.Key(name), id)
}

// Members lists the ids currently in the named set.
func (s IndexSets) Members(ctx context.Context, name string) ([]string, error) {
	return s.reader.Members(ctx, s.Key(name))
}

// Predicate returns membership in the named set as an existence predicate.
func (s IndexSets) Predicate(name string) Predicate {
	return func(ctx context.Context, id string) (bool, error) {
		return s.IsMember(ctx, name, id)
	}
}
