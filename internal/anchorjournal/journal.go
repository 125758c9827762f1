package anchorjournal

import "context"

// Journal is the interface for the append-only anchor journal.
// MemoryJournal, SQLiteJournal, and PostgresJournal implement it.
type Journal interface {
	// Append adds a new entry chained to the previous one. body is
	// JSON-marshalled and its SHA-256 is stored as BodyHash. Appends are
	// serialized by the implementation; concurrent callers never fork the
	// chain.
	Append(ctx context.Context, kind Kind, actor string, body any) (*Entry, error)

	// Get returns the entry at the given zero-based index.
	Get(ctx context.Context, index uint64) (*Entry, error)

	// Len returns the total number of entries (including the genesis entry).
	Len(ctx context.Context) (uint64, error)

	// Scan walks all entries in index order, calling fn for each.
	// A non-nil error from fn stops the walk and is returned unchanged.
	Scan(ctx context.Context, fn func(*Entry) error) error

	// Verify walks the entire chain and checks hash consistency.
	// Returns nil if the chain is intact.
	Verify(ctx context.Context) error

	// Root returns the hash of the most recent entry (the chain tip).
	Root(ctx context.Context) (string, error)
}
