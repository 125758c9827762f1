package anchorlog

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/siash1/bhulekh-chain/internal/anchorjournal"
	"go.uber.org/zap"
)

// Marker is the logical time of the most recent accepted anchor: the journal
// index of its committing entry plus the UTC acceptance time.
type Marker struct {
	JournalIndex uint64    `json:"journal_index"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// Log is the anchor-log state machine. It is the sole writer of its journal;
// all mutating calls are serialized by an internal mutex, so callers observe
// a single global total ordering exactly as a host-ledger contract would.
type Log struct {
	owner   Principal
	journal anchorjournal.Journal
	logger  *zap.Logger

	mu         sync.RWMutex
	authority  Principal // zero until Initialize succeeds
	total      uint64
	lastMarker Marker
}

// Open creates a Log owned by the deploying principal and rebuilds the
// derived state (authority, counter, marker) by replaying the journal.
// It fails if owner is malformed or the journal replay is inconsistent.
func Open(ctx context.Context, owner Principal, journal anchorjournal.Journal, logger *zap.Logger) (*Log, error) {
	if !owner.Valid() {
		return nil, fmt.Errorf("%w: owner %q", ErrInvalidAuthority, owner)
	}
	l := &Log{owner: owner, journal: journal, logger: logger}
	if err := l.replay(ctx); err != nil {
		return nil, fmt.Errorf("replay journal: %w", err)
	}
	return l, nil
}

// replay rebuilds authority, counter, and marker from the journal.
func (l *Log) replay(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.authority = ""
	l.total = 0
	l.lastMarker = Marker{}

	return l.journal.Scan(ctx, func(e *anchorjournal.Entry) error {
		switch e.Kind {
		case anchorjournal.KindGenesis:
			// Nothing to derive.
		case anchorjournal.KindInitialize:
			var ev initializeEvent
			if err := json.Unmarshal(e.Body, &ev); err != nil {
				return fmt.Errorf("decode initialize event at %d: %w", e.Index, err)
			}
			if !l.authority.IsZero() {
				return fmt.Errorf("duplicate initialize event at %d", e.Index)
			}
			l.authority = Principal(ev.Authority)
		case anchorjournal.KindRotate:
			var ev rotateEvent
			if err := json.Unmarshal(e.Body, &ev); err != nil {
				return fmt.Errorf("decode rotate event at %d: %w", e.Index, err)
			}
			if l.authority != Principal(ev.Previous) {
				return fmt.Errorf("rotate event at %d does not follow from authority %q", e.Index, l.authority)
			}
			l.authority = Principal(ev.Next)
		case anchorjournal.KindAnchor:
			var rec AnchorRecord
			if err := json.Unmarshal(e.Body, &rec); err != nil {
				return fmt.Errorf("decode anchor record at %d: %w", e.Index, err)
			}
			if rec.Sequence != l.total+1 {
				return fmt.Errorf("anchor at %d has sequence %d, want %d", e.Index, rec.Sequence, l.total+1)
			}
			l.total++
			l.lastMarker = Marker{JournalIndex: e.Index, RecordedAt: rec.RecordedAt}
		default:
			return fmt.Errorf("unknown journal entry kind %q at %d", e.Kind, e.Index)
		}
		return nil
	})
}

// Owner returns the deploying principal.
func (l *Log) Owner() Principal { return l.owner }

// Authority returns the current anchor authority and whether the log has
// been initialized.
func (l *Log) Authority() (Principal, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.authority, !l.authority.IsZero()
}

// IsAuthorized reports whether p is the current anchor authority.
// Always false before initialization.
func (l *Log) IsAuthorized(p Principal) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return !l.authority.IsZero() && p == l.authority
}

// AnchorCount returns the number of anchors ever accepted. Public read.
func (l *Log) AnchorCount(_ context.Context) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.total
}

// LastMarker returns the logical time of the most recent accepted anchor.
// The zero Marker means no anchor has been accepted yet.
func (l *Log) LastMarker(_ context.Context) Marker {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastMarker
}

// Initialize sets the anchor authority. Only the owner may call it, and only
// before any authority is set: the first successful call wins forever.
func (l *Log) Initialize(ctx context.Context, caller, authority Principal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return ErrNotOwner
	}
	if !l.authority.IsZero() {
		return ErrAlreadyInitialized
	}
	if !authority.Valid() {
		return ErrInvalidAuthority
	}

	ev := initializeEvent{Authority: authority.String()}
	if _, err := l.journal.Append(ctx, anchorjournal.KindInitialize, caller.String(), ev); err != nil {
		return fmt.Errorf("record initialize: %w", err)
	}
	l.authority = authority

	l.logger.Info("anchor authority initialized",
		zap.String("authority", authority.String()),
	)
	return nil
}

// RotateAuthority replaces the anchor authority. Only the current authority
// may call it; the previous authority loses all anchoring rights immediately.
func (l *Log) RotateAuthority(ctx context.Context, caller, next Principal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.authority.IsZero() || caller != l.authority {
		return ErrUnauthorized
	}
	if !next.Valid() {
		return ErrInvalidAuthority
	}

	ev := rotateEvent{Previous: l.authority.String(), Next: next.String()}
	if _, err := l.journal.Append(ctx, anchorjournal.KindRotate, caller.String(), ev); err != nil {
		return fmt.Errorf("record rotation: %w", err)
	}
	prev := l.authority
	l.authority = next

	l.logger.Info("anchor authority rotated",
		zap.String("previous", prev.String()),
		zap.String("next", next.String()),
	)
	return nil
}

// AnchorState accepts an anchor: authorization, then validation, then an
// atomic commit of the journal entry and the counter advance. On success it
// returns the record with its assigned 1-indexed sequence number. On any
// failure no state changes.
func (l *Log) AnchorState(ctx context.Context, caller Principal, req *AnchorRequest) (*AnchorRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.authority.IsZero() || caller != l.authority {
		return nil, ErrUnauthorized
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	rec := newRecord(l.total+1, req)
	rec.RecordedAt = time.Now().UTC().Truncate(time.Microsecond)

	// Single writer under l.mu: the next journal index is exactly Len.
	next, err := l.journal.Len(ctx)
	if err != nil {
		return nil, fmt.Errorf("read journal length: %w", err)
	}
	rec.JournalIndex = next

	entry, err := l.journal.Append(ctx, anchorjournal.KindAnchor, caller.String(), rec)
	if err != nil {
		return nil, fmt.Errorf("record anchor: %w", err)
	}
	if entry.Index != rec.JournalIndex {
		// Another writer got between Len and Append; the journal is shared
		// in a way this Log does not support.
		return nil, fmt.Errorf("journal advanced concurrently: entry at %d, expected %d", entry.Index, rec.JournalIndex)
	}

	l.total++
	l.lastMarker = Marker{JournalIndex: entry.Index, RecordedAt: rec.RecordedAt}

	l.logger.Info("anchor accepted",
		zap.Uint64("sequence", rec.Sequence),
		zap.String("channel_id", rec.ChannelID),
		zap.Uint64("block_start", rec.BlockStart),
		zap.Uint64("block_end", rec.BlockEnd),
		zap.Uint64("tx_count", rec.TxCount),
	)
	return rec, nil
}

// AnchorBySequence returns the accepted anchor with the given 1-indexed
// sequence number, or nil if no such anchor exists. Public read; O(n) walk
// of the journal.
func (l *Log) AnchorBySequence(ctx context.Context, seq uint64) (*AnchorRecord, error) {
	if seq == 0 {
		return nil, nil
	}
	var found *AnchorRecord
	err := l.journal.Scan(ctx, func(e *anchorjournal.Entry) error {
		if e.Kind != anchorjournal.KindAnchor {
			return nil
		}
		var rec AnchorRecord
		if err := json.Unmarshal(e.Body, &rec); err != nil {
			return fmt.Errorf("decode anchor record at %d: %w", e.Index, err)
		}
		if rec.Sequence == seq {
			found = &rec
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}
