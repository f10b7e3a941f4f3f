// Package planner owns the assignment state of every guild: the assignment
// records themselves, the per-guild output channels and the queue of guilds
// whose chat messages need to be reconciled.
package planner

import (
	"context"
)

// Document keys in the persistent store.
const (
	KeyWorks   = "WORKS"
	KeyGuild   = "GUILD"
	KeyToday   = "TODAY"
	KeyTodayTH = "TODAY-TH"
)

// DocumentKeys lists every document the bot persists.
var DocumentKeys = []string{KeyWorks, KeyGuild, KeyToday, KeyTodayTH}

// Store is a schemaless key to JSON document store.
// Implementations live in internal/infrastructure/persistence.
type Store interface {
	// Load decodes the document stored under key into dst.
	// It returns false with a nil error when the key does not exist.
	Load(ctx context.Context, key string, dst any) (bool, error)

	// Dump encodes value as JSON and stores it under key.
	Dump(ctx context.Context, key string, value any) error
}
