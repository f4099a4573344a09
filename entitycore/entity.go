package entitycore

import (
	"maps"
	"time"
)

// Entity is the cached unit: one record per key.
type Entity struct {
	Key             string            `json:"key"`
	Fields          map[string]string `json:"fields"`
	LastRefreshedAt *time.Time        `json:"last_refreshed_at"`
}

// Validate reports ErrEmptyKey when the entity has no key.
func (e Entity) Validate() error {
	if e.Key == "" {
		return ErrEmptyKey
	}
	return nil
}

// Field returns the named field, or "" when absent.
func (e Entity) Field(name string) string {
	return e.Fields[name]
}

// Clone returns a deep copy so callers never share Fields or the timestamp.
func (e Entity) Clone() Entity {
	out := Entity{Key: e.Key, Fields: maps.Clone(e.Fields)}
	if e.LastRefreshedAt != nil {
		ts := *e.LastRefreshedAt
		out.LastRefreshedAt = &ts
	}
	return out
}

// Stamped returns a copy with LastRefreshedAt set to at.
func (e Entity) Stamped(at time.Time) Entity {
	out := e.Clone()
	out.LastRefreshedAt = &at
	return out
}

// IsStale reports whether the entity was never fetched or was last fetched before cutoff.
// A record refreshed exactly at cutoff is still fresh.
func (e Entity) IsStale(cutoff time.Time) bool {
	if e.LastRefreshedAt == nil {
		return true
	}
	return e.LastRefreshedAt.Before(cutoff)
}

// NewerThan reports whether e carries a strictly later refresh stamp than other.
// Unstamped entities are never newer.
func (e Entity) NewerThan(other Entity) bool {
	if e.LastRefreshedAt == nil {
		return false
	}
	if other.LastRefreshedAt == nil {
		return true
	}
	return e.LastRefreshedAt.After(*other.LastRefreshedAt)
}
