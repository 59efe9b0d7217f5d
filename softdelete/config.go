package softdelete

import (
	"log/slog"

	"github.com/jacentio/tombstone/internal/keyspace"
)

// Config holds configuration for a Controller.
type Config struct {
	// EntityType is the entity type the controller manages. Required.
	EntityType string

	// LiveSet is the name of the set holding live ids.
	// Default: "live"
	LiveSet string

	// DeletedSet is the name of the set holding tombstoned ids.
	// Default: "deleted"
	DeletedSet string

	// FlagField is the attribute field carrying the Marker.
	// Default: "deleted"
	FlagField string

	// Separator joins the entity type with set names and ids.
	// Default: ":"
	Separator string

	// HashTag brace-wraps the entity type in every key so that all writes of
	// one transition land in a single Redis Cluster slot.
	HashTag bool

	// BaseExists is the model layer's own existence predicate.
	// Default: membership in LiveSet.
	BaseExists Predicate

	// Logger receives transition logs. Default: slog.Default().
	Logger *slog.Logger

	// Metrics, when set, counts transitions and audit violations.
	Metrics *Collector
}

// DefaultConfig returns the conventional key layout for entityType:
// "<type>:live", "<type>:deleted" and field "deleted".
func DefaultConfig(entityType string) Config {
	return Config{
		EntityType: entityType,
		LiveSet:    "live",
		DeletedSet: "deleted",
		FlagField:  "deleted",
		Separator:  keyspace.DefaultSeparator,
	}
}

// validate fills blank fields with their defaults.
func (c *Config) validate() {
	if c.LiveSet == "" {
		c.LiveSet = "live"
	}
	if c.DeletedSet == "" {
		c.DeletedSet = "deleted"
	}
	if c.FlagField == "" {
		c.FlagField = "deleted"
	}
	if c.Separator == "" {
		c.Separator = keyspace.DefaultSeparator
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

func (c Config) layout() keyspace.Layout {
	return keyspace.Layout{
		EntityType: c.EntityType,
		Separator:  c.Separator,
		HashTag:    c.HashTag,
	}
}
