// Package memory provides an in-process softdelete.Store.
//
// Commits are serialised by a single mutex and applied with an undo log, so a
// fault injected part way through a commit rolls every applied write back.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/jacentio/tombstone/softdelete"
)

// ErrTxDone is returned when Commit is called on a batch that already committed or failed.
var ErrTxDone = errors.New("memory: transaction already finished")

// Compile-time contract assertion.
var _ softdelete.Store = (*Store)(nil)

// Store keeps sets and attribute fields in maps.
type Store struct {
	mu     sync.RWMutex
	sets   map[string]map[string]struct{}
	fields map[string]map[string]string

	fault *fault
}

type fault struct {
	after int
	err   error
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		sets:   make(map[string]map[string]struct{}),
		fields: make(map[string]map[string]string),
	}
}

// FailNextCommit makes the next Commit fail with err after applying `after`
// of its writes. The applied writes are rolled back before Commit returns.
func (s *Store) FailNextCommit(after int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = &fault{after: after, err: err}
}

// Begin opens a new write batch.
func (s *Store) Begin() softdelete.Tx {
	return &tx{store: s}
}

// IsMember reports whether member belongs to the set at key.
func (s *Store) IsMember(ctx context.Context, key, member string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sets[key][member]
	return ok, nil
}

// Members returns the members of the set at key in sorted order.
func (s *Store) Members(ctx context.Context, key string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	members := make([]string, 0, len(s.sets[key]))
	for m := range s.sets[key] {
		members = append(members, m)
	}
	sort.Strings(members)
	return members, nil
}

// Field returns the value of field at key.
func (s *Store) Field(ctx context.Context, key, field string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.fields[key][field]
	return v, ok, nil
}

// Snapshot is a deep copy of the store contents.
type Snapshot struct {
	Sets   map[string][]string
	Fields map[string]map[string]string
}

// Snapshot copies the current contents. Empty sets and namespaces are omitted.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Sets:   make(map[string][]string),
		Fields: make(map[string]map[string]string),
	}
	for key, set := range s.sets {
		if len(set) == 0 {
			continue
		}
		members := make([]string, 0, len(set))
		for m := range set {
			members = append(members, m)
		}
		sort.Strings(members)
		snap.Sets[key] = members
	}
	for key, fields := range s.fields {
		if len(fields) == 0 {
			continue
		}
		cp := make(map[string]string, len(fields))
		for f, v := range fields {
			cp[f] = v
		}
		snap.Fields[key] = cp
	}
	return snap
}

type opKind int

const (
	opSetAdd opKind = iota
	opSetRemove
	opSetField
)

type op struct {
	kind   opKind
	key    string
	member string
	value  *string
}

type tx struct {
	store *Store
	ops   []op
	done  bool
}

func (t *tx) SetAdd(key, member string) {
	t.ops = append(t.ops, op{kind: opSetAdd, key: key, member: member})
}

func (t *tx) SetRemove(key, member string) {
	t.ops = append(t.ops, op{kind: opSetRemove, key: key, member: member})
}

func (t *tx) SetField(key, field string, value *string) {
	t.ops = append(t.ops, op{kind: opSetField, key: key, member: field, value: value})
}

// Commit applies the buffered writes under the store lock.
func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	if err := ctx.Err(); err != nil {
		return err
	}

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.fault
	s.fault = nil

	var undo []func()
	for i, o := range t.ops {
		if f != nil && i == f.after {
			rollback(undo)
			return f.err
		}
		undo = append(undo, s.apply(o))
	}
	if f != nil {
		rollback(undo)
		return f.err
	}
	return nil
}

func rollback(undo []func()) {
	for i := len(undo) - 1; i >= 0; i-- {
		undo[i]()
	}
}

// apply performs o and returns the closure that reverts it. Caller holds mu.
func (s *Store) apply(o op) func() {
	switch o.kind {
	case opSetAdd:
		set, ok := s.sets[o.key]
		if !ok {
			set = make(map[string]struct{})
			s.sets[o.key] = set
		}
		if _, had := set[o.member]; had {
			return func() {}
		}
		set[o.member] = struct{}{}
		return func() { delete(s.sets[o.key], o.member) }

	case opSetRemove:
		if _, had := s.sets[o.key][o.member]; !had {
			return func() {}
		}
		delete(s.sets[o.key], o.member)
		return func() { s.sets[o.key][o.member] = struct{}{} }

	default:
		fields, ok := s.fields[o.key]
		if !ok {
			fields = make(map[string]string)
			s.fields[o.key] = fields
		}
		prev, had := fields[o.member]
		if o.value == nil {
			delete(fields, o.member)
		} else {
			fields[o.member] = *o.value
		}
		return func() {
			if had {
				s.fields[o.key][o.member] = prev
			} else {
				delete(s.fields[o.key], o.member)
			}
		}
	}
}

// Seed adds ids to the set at key outside any batch. It stands in for the
// model layer registering newly created entities.
func (s *Store) Seed(key string, ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.apply(op{kind: opSetAdd, key: key, member: id})
	}
}

// SetRaw writes an attribute field directly, bypassing the batch path.
func (s *Store) SetRaw(key, field, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apply(op{kind: opSetField, key: key, member: field, value: &value})
}
