package sismos

import "context"

// Source fetches the provider feed (e.g. FUNVISIS).
type Source interface {
	Name() string
	Fetch(ctx context.Context) (RawCollection, error)
}

// Store is the contract the snapshot file store satisfies.
type Store interface {
	// Load returns the current snapshot, or nil when none is usable.
	Load() *Collection
	// Save persists c, first backing up the existing snapshot when backup is set.
	Save(c *Collection, backup bool) error
	// Exists reports whether a snapshot file is present, valid or not.
	Exists() bool
}
