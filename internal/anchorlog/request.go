package anchorlog

import (
	"encoding/hex"
	"time"
)

// AnchorRequest is a proposed anchor: a batch of permissioned-ledger blocks
// summarized by a caller-computed state root. The log never recomputes or
// verifies the root; it only guarantees structural integrity and
// authorization.
type AnchorRequest struct {
	// SourceNamespace identifies the originating jurisdiction,
	// e.g. an Indian state code such as "UP" or "MH".
	SourceNamespace string

	// ChannelID names the permissioned-ledger channel the batch came from,
	// e.g. "land-registry-channel".
	ChannelID string

	// BlockStart and BlockEnd are the inclusive source-ledger block range
	// covered by the batch.
	BlockStart uint64
	BlockEnd   uint64

	// StateRoot is the Merkle root of all state changes in the batch.
	StateRoot []byte

	// TxCount is the number of source-ledger transactions summarized.
	TxCount uint64
}

// Validate checks structural invariants only. SourceNamespace, ChannelID,
// and TxCount are opaque to the log: batching semantics belong to the
// caller. No continuity or overlap check is made against prior anchors of
// the same channel; out-of-order batches are accepted if individually
// well-formed.
func (r *AnchorRequest) Validate() error {
	if r.BlockEnd < r.BlockStart {
		return ErrInvalidBlockRange
	}
	if len(r.StateRoot) == 0 {
		return ErrEmptyStateRoot
	}
	return nil
}

// AnchorRecord is an accepted anchor. Created exactly once at acceptance,
// immutable thereafter; durably recorded as the body of an anchor journal
// entry.
type AnchorRecord struct {
	// Sequence is the 1-indexed position among all accepted anchors.
	Sequence uint64 `json:"sequence"`

	SourceNamespace string `json:"source_namespace"`
	ChannelID       string `json:"channel_id"`
	BlockStart      uint64 `json:"block_start"`
	BlockEnd        uint64 `json:"block_end"`

	// StateRoot is the hex-encoded batch digest.
	StateRoot string `json:"state_root"`

	TxCount uint64 `json:"tx_count"`

	// JournalIndex is the journal position of the committing entry — the
	// logical time unit standing in for the host ledger round.
	JournalIndex uint64 `json:"journal_index"`

	// RecordedAt is the UTC acceptance time.
	RecordedAt time.Time `json:"recorded_at"`
}

// newRecord freezes a validated request into a record with the assigned
// sequence number. JournalIndex and RecordedAt are filled at commit.
func newRecord(seq uint64, r *AnchorRequest) *AnchorRecord {
	return &AnchorRecord{
		Sequence:        seq,
		SourceNamespace: r.SourceNamespace,
		ChannelID:       r.ChannelID,
		BlockStart:      r.BlockStart,
		BlockEnd:        r.BlockEnd,
		StateRoot:       hex.EncodeToString(r.StateRoot),
		TxCount:         r.TxCount,
	}
}

// initializeEvent is the journal body of an Initialize call.
type initializeEvent struct {
	Authority string `json:"authority"`
}

// rotateEvent is the journal body of a RotateAuthority call.
type rotateEvent struct {
	Previous string `json:"previous"`
	Next     string `json:"next"`
}
