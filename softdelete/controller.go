package softdelete

import (
	"context"
	"fmt"

	"github.com/jacentio/tombstone/internal/keyspace"
)

type transition string

const (
	transitionDelete  transition = "delete"
	transitionRestore transition = "restore"
)

// Controller moves entities of one type between the live and deleted sets.
//
// Delete and Restore never read the current state: each stages the same
// three writes regardless of where the id is now, so repeated calls converge
// and a concurrent Delete and Restore resolve as last-writer-wins. There is
// no compare-and-swap; callers that need one must layer it on top.
type Controller struct {
	store  Store
	config Config
	layout keyspace.Layout
	sets   IndexSets
	exists ExistenceChecker
}

// New creates a Controller for config.EntityType backed by store.
func New(store Store, config Config) *Controller {
	config.validate()
	layout := config.layout()
	sets := NewIndexSets(store, layout)

	base := config.BaseExists
	if base == nil {
		base = sets.Predicate(config.LiveSet)
	}

	return &Controller{
		store:  store,
		config: config,
		layout: layout,
		sets:   sets,
		exists: ExistenceChecker{
			Base:    base,
			Deleted: sets.Predicate(config.DeletedSet),
		},
	}
}

// EntityType returns the entity type this controller manages.
func (c *Controller) EntityType() string {
	return c.config.EntityType
}

// Sets returns the index sets of the managed type.
func (c *Controller) Sets() IndexSets {
	return c.sets
}

// Checker returns the composed existence predicate.
func (c *Controller) Checker() ExistenceChecker {
	return c.exists
}

// AttributesKey returns the key of the attribute namespace holding id's flag.
func (c *Controller) AttributesKey(id string) string {
	return c.layout.Attributes(id)
}

// Delete tombstones the entity: it leaves the live set, joins the deleted
// set and gets the Marker, all in one transaction.
func (c *Controller) Delete(ctx context.Context, entity Entity) error {
	return c.apply(ctx, entity, transitionDelete)
}

// Restore reverses Delete: the entity rejoins the live set, leaves the
// deleted set and its flag is cleared, all in one transaction.
func (c *Controller) Restore(ctx context.Context, entity Entity) error {
	return c.apply(ctx, entity, transitionRestore)
}

func (c *Controller) apply(ctx context.Context, entity Entity, t transition) error {
	id, err := c.idOf(entity)
	if err != nil {
		return err
	}

	tx := c.store.Begin()
	switch t {
	case transitionDelete:
		c.sets.Remove(tx, c.config.LiveSet, id)
		c.sets.Add(tx, c.config.DeletedSet, id)
		tx.SetField(c.layout.Attributes(id), c.config.FlagField, Tombstone.Value())
	case transitionRestore:
		c.sets.Add(tx, c.config.LiveSet, id)
		c.sets.Remove(tx, c.config.DeletedSet, id)
		tx.SetField(c.layout.Attributes(id), c.config.FlagField, Flag{}.Value())
	}

	err = tx.Commit(ctx)
	c.config.Metrics.observeTransition(c.config.EntityType, t, err)
	if err != nil {
		c.config.Logger.Warn("soft delete transition failed",
			"entityType", c.config.EntityType,
			"id", id,
			"transition", string(t),
			"error", err,
		)
		return fmt.Errorf("%w: %s %s %q: %w", ErrTransaction, t, c.config.EntityType, id, err)
	}

	c.config.Logger.Debug("soft delete transition committed",
		"entityType", c.config.EntityType,
		"id", id,
		"transition", string(t),
	)
	return nil
}

// Flag reads the entity's deleted field.
func (c *Controller) Flag(ctx context.Context, entity Entity) (Flag, error) {
	id, err := c.idOf(entity)
	if err != nil {
		return Flag{}, err
	}
	raw, present, err := c.store.Field(ctx, c.layout.Attributes(id), c.config.FlagField)
	if err != nil {
		return Flag{}, fmt.Errorf("read flag: %w", err)
	}
	return ParseFlag(raw, present), nil
}

// IsDeleted reports whether the entity's flag holds exactly the Marker.
func (c *Controller) IsDeleted(ctx context.Context, entity Entity) (bool, error) {
	flag, err := c.Flag(ctx, entity)
	if err != nil {
		return false, err
	}
	return flag.Deleted(), nil
}

// Deleted lists the ids in the deleted set.
func (c *Controller) Deleted(ctx context.Context) ([]string, error) {
	return c.sets.Members(ctx, c.config.DeletedSet)
}

// Live lists the ids in the live set.
func (c *Controller) Live(ctx context.Context) ([]string, error) {
	return c.sets.Members(ctx, c.config.LiveSet)
}

// Exists reports whether id is a live entity or a tombstone.
// A blank id never exists.
func (c *Controller) Exists(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	return c.exists.Exists(ctx, id)
}

// idOf validates entity against this controller and returns its id.
func (c *Controller) idOf(entity Entity) (string, error) {
	if entity == nil {
		return "", ErrInvalidID
	}
	if t := entity.EntityType(); t != c.config.EntityType {
		return "", fmt.Errorf("%w: got %q, want %q", ErrTypeMismatch, t, c.config.EntityType)
	}
	id := entity.EntityID()
	if id == "" {
		return "", ErrInvalidID
	}
	// An id equal to a set name would share its key with that set.
	if id == c.config.LiveSet || id == c.config.DeletedSet {
		return "", fmt.Errorf("%w: %q is reserved", ErrInvalidID, id)
	}
	return id, nil
}
