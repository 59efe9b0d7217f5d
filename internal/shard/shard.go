// Package shard provides shard key generation for distributed DynamoDB tables.
package shard

import (
	"fmt"
	"hash/fnv"
)

// MaxShards is the largest supported shard count; shard suffixes are two hex digits.
const MaxShards = 256

// Clamp bounds numShards to [1, MaxShards].
func Clamp(numShards int) int {
	if numShards < 1 {
		return 1
	}
	if numShards > MaxShards {
		return MaxShards
	}
	return numShards
}

// SetPK computes the partition key for one member of a set.
// With numShards=1 the set key is used unchanged, so an unsharded table keeps
// one partition per set. With numShards>1, members are distributed across
// "<setKey>#<xx>" partitions based on the member hash.
func SetPK(setKey, member string, numShards int) string {
	numShards = Clamp(numShards)
	if numShards == 1 {
		return setKey
	}
	h := fnv.New32a()
	h.Write([]byte(member))
	return fmt.Sprintf("%s#%02x", setKey, h.Sum32()%uint32(numShards))
}

// SetPKs lists every partition key a set may occupy, in shard order.
func SetPKs(setKey string, numShards int) []string {
	numShards = Clamp(numShards)
	if numShards == 1 {
		return []string{setKey}
	}
	pks := make([]string, numShards)
	for i := range pks {
		pks[i] = fmt.Sprintf("%s#%02x", setKey, i)
	}
	return pks
}
