package anchorjournal

import (
	"context"
	"fmt"
	"sync"
)

// MemoryJournal is an in-memory, thread-safe Journal implementation.
// It is primarily useful for testing and for ephemeral single-process runs
// that do not require durability across restarts.
type MemoryJournal struct {
	mu      sync.RWMutex
	entries []*Entry
}

// New creates a MemoryJournal initialised with the canonical genesis entry.
// The genesis entry is at index 0 and its hash is GenesisHash.
func New() *MemoryJournal {
	return &MemoryJournal{entries: []*Entry{newGenesis()}}
}

// Append implements Journal.
func (j *MemoryJournal) Append(_ context.Context, kind Kind, actor string, body any) (*Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	prev := j.entries[len(j.entries)-1]
	entry, err := buildEntry(prev, kind, actor, body)
	if err != nil {
		return nil, err
	}
	j.entries = append(j.entries, entry)
	return entry, nil
}

// Get implements Journal.
func (j *MemoryJournal) Get(_ context.Context, index uint64) (*Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if index >= uint64(len(j.entries)) {
		return nil, fmt.Errorf("index %d out of range", index)
	}
	return j.entries[index], nil
}

// Len implements Journal.
func (j *MemoryJournal) Len(_ context.Context) (uint64, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return uint64(len(j.entries)), nil
}

// Scan implements Journal.
func (j *MemoryJournal) Scan(_ context.Context, fn func(*Entry) error) error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	for _, e := range j.entries {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// Verify implements Journal. It walks the chain and checks that all hashes
// are consistent. The genesis entry (index 0) is validated against GenesisHash.
func (j *MemoryJournal) Verify(_ context.Context) error {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var prev *Entry
	for _, curr := range j.entries {
		if err := checkLink(prev, curr); err != nil {
			return err
		}
		prev = curr
	}
	return nil
}

// Root implements Journal.
func (j *MemoryJournal) Root(_ context.Context) (string, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.entries[len(j.entries)-1].Hash, nil
}
