// Package redis implements softdelete.Store on Redis.
//
// Index sets are Redis sets and entity attributes are hashes, so the default
// layout produces SREM/SADD on "<type>:live" and "<type>:deleted" and
// HSET/HDEL on "<type>:<id>". A batch is sent as one MULTI/EXEC block.
//
// Redis executes a MULTI/EXEC block without interleaving other clients, but
// does not roll back commands that fail at run time (e.g. WRONGTYPE when a
// key holds another type). Keep the index keys reserved for this package.
//
// With Redis Cluster every key of a batch must hash to the same slot; enable
// softdelete.Config.HashTag and pass a cluster client to New.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/jacentio/tombstone/softdelete"
)

var (
	// ErrClosed is returned when the store's client has been closed.
	ErrClosed = errors.New("redis: store is closed")

	// ErrTxDone is returned when Commit is called twice on one batch.
	ErrTxDone = errors.New("redis: transaction already finished")
)

// Compile-time contract assertion.
var _ softdelete.Store = (*Store)(nil)

// Store is a softdelete.Store backed by a go-redis client.
type Store struct {
	client  redis.UniversalClient
	isOwner bool
}

// New wraps an existing client. The caller keeps ownership; Close is a no-op.
func New(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

// NewStore opens a new client with options. Close releases it.
func NewStore(options Options) *Store {
	return &Store{
		client:  openClient(options),
		isOwner: true,
	}
}

// Close closes the client if this store opened it.
func (s *Store) Close() error {
	if !s.isOwner || s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

// Ping tests connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if s.client == nil {
		return ErrClosed
	}
	return s.client.Ping(ctx).Err()
}

// Begin opens a new write batch.
func (s *Store) Begin() softdelete.Tx {
	return &tx{client: s.client}
}

// IsMember executes SISMEMBER.
func (s *Store) IsMember(ctx context.Context, key, member string) (bool, error) {
	if s.client == nil {
		return false, ErrClosed
	}
	return s.client.SIsMember(ctx, key, member).Result()
}

// Members executes SMEMBERS.
func (s *Store) Members(ctx context.Context, key string) ([]string, error) {
	if s.client == nil {
		return nil, ErrClosed
	}
	return s.client.SMembers(ctx, key).Result()
}

// Field executes HGET, reporting a missing key or field as absent.
func (s *Store) Field(ctx context.Context, key, field string) (string, bool, error) {
	if s.client == nil {
		return "", false, ErrClosed
	}
	v, err := s.client.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

type tx struct {
	client redis.UniversalClient
	ops    []func(ctx context.Context, pipe redis.Pipeliner)
	done   bool
}

func (t *tx) SetAdd(key, member string) {
	t.ops = append(t.ops, func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.SAdd(ctx, key, member)
	})
}

func (t *tx) SetRemove(key, member string) {
	t.ops = append(t.ops, func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.SRem(ctx, key, member)
	})
}

func (t *tx) SetField(key, field string, value *string) {
	if value == nil {
		t.ops = append(t.ops, func(ctx context.Context, pipe redis.Pipeliner) {
			pipe.HDel(ctx, key, field)
		})
		return
	}
	v := *value
	t.ops = append(t.ops, func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.HSet(ctx, key, field, v)
	})
}

// Commit sends the batch wrapped in MULTI/EXEC.
func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	if t.client == nil {
		return ErrClosed
	}
	if len(t.ops) == 0 {
		return nil
	}

	_, err := t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, op := range t.ops {
			op(ctx, pipe)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("exec %d commands: %w", len(t.ops), err)
	}
	return nil
}
