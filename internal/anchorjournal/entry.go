package anchorjournal

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// GenesisHash is the canonical well-known hash of the genesis entry.
// It is the trust anchor of the chain; all subsequent entry hashes chain
// from this constant rather than from a computed value.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Kind identifies the mutating operation a journal entry records.
type Kind string

const (
	KindGenesis    Kind = "genesis"
	KindInitialize Kind = "initialize"
	KindRotate     Kind = "rotate"
	KindAnchor     Kind = "anchor"
)

// SystemActor is the actor recorded on the genesis entry.
const SystemActor = "bhulekh-system"

// Entry is a single record in the anchor journal.
type Entry struct {
	Index      uint64          `json:"index"`
	Kind       Kind            `json:"kind"`
	Actor      string          `json:"actor"` // principal address or SystemActor
	RecordedAt time.Time       `json:"recorded_at"`
	Body       json.RawMessage `json:"body,omitempty"` // full argument set of the call
	BodyHash   string          `json:"body_hash"`      // SHA-256 of Body
	PrevHash   string          `json:"prev_hash"`
	Hash       string          `json:"hash"`
}

// hashEntry computes a deterministic SHA-256 hash over an entry's fields.
// This function must never be called on the genesis entry (index 0).
func hashEntry(e *Entry) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%s|%s|%s|%s|%s",
		e.Index, e.Kind, e.Actor,
		e.RecordedAt.Format(time.RFC3339Nano),
		e.BodyHash, e.PrevHash,
	)
	return hex.EncodeToString(h.Sum(nil))
}

// sha256Sum returns the hex-encoded SHA-256 digest of data.
func sha256Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// now returns the current UTC time truncated to microseconds, the finest
// precision every backend can round-trip (Postgres timestamptz drops
// nanoseconds, which would break hash verification after a reload).
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// newGenesis builds the canonical genesis entry.
func newGenesis() *Entry {
	return &Entry{
		Index:      0,
		Kind:       KindGenesis,
		Actor:      SystemActor,
		RecordedAt: now(),
		BodyHash:   GenesisHash,
		PrevHash:   GenesisHash,
		Hash:       GenesisHash, // well-known constant, not computed
	}
}

// buildEntry marshals body and assembles a chained entry following prev.
func buildEntry(prev *Entry, kind Kind, actor string, body any) (*Entry, error) {
	var raw json.RawMessage
	var err error
	if body != nil {
		raw, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal entry body: %w", err)
		}
	}
	e := &Entry{
		Index:      prev.Index + 1,
		Kind:       kind,
		Actor:      actor,
		RecordedAt: now(),
		Body:       raw,
		BodyHash:   sha256Sum(raw),
		PrevHash:   prev.Hash,
	}
	e.Hash = hashEntry(e)
	return e, nil
}

// checkLink validates curr against its predecessor. prev is nil for the
// genesis entry, which must carry the well-known constant hash.
func checkLink(prev, curr *Entry) error {
	if prev == nil {
		if curr.Hash != GenesisHash {
			return fmt.Errorf("genesis entry has wrong hash: got %q", curr.Hash)
		}
		return nil
	}
	if curr.Index != prev.Index+1 {
		return fmt.Errorf("journal not contiguous at index %d", curr.Index)
	}
	if curr.PrevHash != prev.Hash {
		return fmt.Errorf("hash chain broken at index %d", curr.Index)
	}
	if curr.BodyHash != sha256Sum(curr.Body) {
		return fmt.Errorf("entry %d body does not match its body hash", curr.Index)
	}
	if curr.Hash != hashEntry(curr) {
		return fmt.Errorf("entry %d has invalid hash", curr.Index)
	}
	return nil
}
