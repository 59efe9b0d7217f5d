package dynamo

import "github.com/jacentio/tombstone/internal/shard"

// Config holds configuration for the Store.
type Config struct {
	// IndexTable holds one item per set member.
	// Key schema: pk (S, partition) = set key, member (S, sort) = id.
	// Default: "tombstone_index"
	IndexTable string

	// AttributeTable holds one item per entity attribute namespace.
	// Key schema: pk (S, partition) = attributes key.
	// Default: "tombstone_attributes"
	AttributeTable string

	// NumShards spreads each set over this many index table partitions.
	// A large deleted set in one partition is capped at the per-partition
	// write rate; sharding raises the cap, and enumeration then runs one
	// Query per shard.
	// Default: 1 (partition key is the set key)
	// Max: 256
	//
	// Changing NumShards on a populated table strands existing members.
	NumShards int
}

// DefaultConfig returns the default table names.
func DefaultConfig() Config {
	return Config{
		IndexTable:     "tombstone_index",
		AttributeTable: "tombstone_attributes",
		NumShards:      1,
	}
}

// validate fills blank table names with their defaults and clamps NumShards.
func (c *Config) validate() {
	if c.IndexTable == "" {
		c.IndexTable = "tombstone_index"
	}
	if c.AttributeTable == "" {
		c.AttributeTable = "tombstone_attributes"
	}
	c.NumShards = shard.Clamp(c.NumShards)
}
