// Package keyspace derives the store keys used for index sets and entity attributes.
package keyspace

import "strings"

// DefaultSeparator joins the entity type and the set name or entity id.
const DefaultSeparator = ":"

// Layout describes how keys for one entity type are composed.
type Layout struct {
	EntityType string
	Separator  string

	// HashTag wraps the entity type in braces ("{post}:live") so a Redis
	// Cluster places every key of the type in the same hash slot.
	HashTag bool
}

func (l Layout) sep() string {
	if l.Separator == "" {
		return DefaultSeparator
	}
	return l.Separator
}

func (l Layout) prefix() string {
	if l.HashTag {
		return "{" + l.EntityType + "}"
	}
	return l.EntityType
}

// Set returns the key of the named index set, e.g. "post:deleted".
func (l Layout) Set(name string) string {
	return l.prefix() + l.sep() + name
}

// Attributes returns the key of an entity's attribute namespace, e.g. "post:42".
func (l Layout) Attributes(id string) string {
	return l.prefix() + l.sep() + id
}

// Parse splits an attribute key back into entity type and id.
// It reports false when the key does not belong to any layout with this separator.
func Parse(key, separator string, hashTag bool) (entityType, id string, ok bool) {
	if separator == "" {
		separator = DefaultSeparator
	}
	if hashTag {
		if !strings.HasPrefix(key, "{") {
			return "", "", false
		}
		end := strings.Index(key, "}")
		if end < 1 || !strings.HasPrefix(key[end+1:], separator) {
			return "", "", false
		}
		entityType = key[1:end]
		id = key[end+1+len(separator):]
	} else {
		entityType, id, ok = strings.Cut(key, separator)
		if !ok {
			return "", "", false
		}
	}
	if entityType == "" || id == "" {
		return "", "", false
	}
	return entityType, id, true
}
