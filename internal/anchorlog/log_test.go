package anchorlog_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/siash1/bhulekh-chain/internal/anchorjournal"
	"github.com/siash1/bhulekh-chain/internal/anchorlog"
	"go.uber.org/zap"
)

var ctx = context.Background()

const (
	owner      = anchorlog.Principal("OWNER7IXLJ4RRO2BGLHonestDEPLOYER")
	authorityA = anchorlog.Principal("ANCHORAUTHA5K3MWXVPQ")
	authorityB = anchorlog.Principal("ANCHORAUTHB9T2NYDRZF")
	stranger   = anchorlog.Principal("SOMEOTHERACCOUNT4J7Q")
)

func openLog(t *testing.T) *anchorlog.Log {
	t.Helper()
	l, err := anchorlog.Open(ctx, owner, anchorjournal.New(), zap.NewNop())
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	return l
}

func initializedLog(t *testing.T) *anchorlog.Log {
	t.Helper()
	l := openLog(t)
	if err := l.Initialize(ctx, owner, authorityA); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return l
}

func validRequest(start, end uint64, rootByte byte) *anchorlog.AnchorRequest {
	return &anchorlog.AnchorRequest{
		SourceNamespace: "UP",
		ChannelID:       "land-registry-channel",
		BlockStart:      start,
		BlockEnd:        end,
		StateRoot:       bytes.Repeat([]byte{rootByte}, 32),
		TxCount:         10,
	}
}

// ── Initialize ───────────────────────────────────────────────────────────────

func TestInitialize_onlyOwner(t *testing.T) {
	l := openLog(t)
	if err := l.Initialize(ctx, stranger, authorityA); !errors.Is(err, anchorlog.ErrNotOwner) {
		t.Errorf("expected ErrNotOwner, got %v", err)
	}
	if _, ok := l.Authority(); ok {
		t.Error("authority set despite rejected initialize")
	}
}

func TestInitialize_firstCallWins(t *testing.T) {
	l := openLog(t)
	if err := l.Initialize(ctx, owner, authorityA); err != nil {
		t.Fatalf("first initialize: %v", err)
	}

	// Every subsequent call fails regardless of caller or argument.
	for _, caller := range []anchorlog.Principal{owner, authorityA, stranger} {
		if err := l.Initialize(ctx, caller, authorityB); !errors.Is(err, anchorlog.ErrAlreadyInitialized) {
			t.Errorf("reinitialize by %s: expected ErrAlreadyInitialized, got %v", caller, err)
		}
	}

	got, ok := l.Authority()
	if !ok || got != authorityA {
		t.Errorf("authority: got %q (initialized=%v), want %q", got, ok, authorityA)
	}
}

func TestInitialize_rejectsMalformedAuthority(t *testing.T) {
	l := openLog(t)
	for _, bad := range []anchorlog.Principal{"", "has space", " padded ", "line\nbreak"} {
		if err := l.Initialize(ctx, owner, bad); !errors.Is(err, anchorlog.ErrInvalidAuthority) {
			t.Errorf("initialize with %q: expected ErrInvalidAuthority, got %v", bad, err)
		}
	}
}

// ── AnchorState ──────────────────────────────────────────────────────────────

func TestAnchorState_sequencesFromOne(t *testing.T) {
	l := initializedLog(t)

	r1, err := l.AnchorState(ctx, authorityA, validRequest(1, 50, 0x01))
	if err != nil {
		t.Fatalf("first anchor: %v", err)
	}
	if r1.Sequence != 1 {
		t.Errorf("first sequence: got %d, want 1", r1.Sequence)
	}

	r2, err := l.AnchorState(ctx, authorityA, validRequest(51, 100, 0x02))
	if err != nil {
		t.Fatalf("second anchor: %v", err)
	}
	if r2.Sequence != 2 {
		t.Errorf("second sequence: got %d, want 2", r2.Sequence)
	}

	if got := l.AnchorCount(ctx); got != 2 {
		t.Errorf("AnchorCount: got %d, want 2", got)
	}
}

func TestAnchorState_unauthorizedCallers(t *testing.T) {
	l := initializedLog(t)

	for _, caller := range []anchorlog.Principal{owner, authorityB, stranger} {
		if _, err := l.AnchorState(ctx, caller, validRequest(1, 50, 0x01)); !errors.Is(err, anchorlog.ErrUnauthorized) {
			t.Errorf("anchor by %s: expected ErrUnauthorized, got %v", caller, err)
		}
	}
	if got := l.AnchorCount(ctx); got != 0 {
		t.Errorf("counter moved on rejected calls: %d", got)
	}
}

func TestAnchorState_beforeInitialize(t *testing.T) {
	l := openLog(t)
	if _, err := l.AnchorState(ctx, owner, validRequest(1, 50, 0x01)); !errors.Is(err, anchorlog.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized before initialize, got %v", err)
	}
}

func TestAnchorState_invalidBlockRange(t *testing.T) {
	l := initializedLog(t)

	req := validRequest(100, 50, 0x01)
	if _, err := l.AnchorState(ctx, authorityA, req); !errors.Is(err, anchorlog.ErrInvalidBlockRange) {
		t.Errorf("expected ErrInvalidBlockRange, got %v", err)
	}
	if got := l.AnchorCount(ctx); got != 0 {
		t.Errorf("counter moved on rejected anchor: %d", got)
	}
}

func TestAnchorState_equalStartEndAllowed(t *testing.T) {
	l := initializedLog(t)
	if _, err := l.AnchorState(ctx, authorityA, validRequest(7, 7, 0x01)); err != nil {
		t.Errorf("single-block range rejected: %v", err)
	}
}

func TestAnchorState_emptyStateRoot(t *testing.T) {
	l := initializedLog(t)

	req := validRequest(1, 50, 0x01)
	req.StateRoot = nil
	if _, err := l.AnchorState(ctx, authorityA, req); !errors.Is(err, anchorlog.ErrEmptyStateRoot) {
		t.Errorf("expected ErrEmptyStateRoot, got %v", err)
	}
	if got := l.AnchorCount(ctx); got != 0 {
		t.Errorf("counter moved on rejected anchor: %d", got)
	}
}

func TestAnchorState_overlappingRangesAccepted(t *testing.T) {
	l := initializedLog(t)

	// No continuity or overlap enforcement across anchors of one channel.
	if _, err := l.AnchorState(ctx, authorityA, validRequest(1, 50, 0x01)); err != nil {
		t.Fatal(err)
	}
	if _, err := l.AnchorState(ctx, authorityA, validRequest(40, 60, 0x02)); err != nil {
		t.Errorf("overlapping range rejected: %v", err)
	}
	if _, err := l.AnchorState(ctx, authorityA, validRequest(10, 20, 0x03)); err != nil {
		t.Errorf("out-of-order range rejected: %v", err)
	}
}

func TestAnchorState_updatesMarker(t *testing.T) {
	l := initializedLog(t)

	if m := l.LastMarker(ctx); m != (anchorlog.Marker{}) {
		t.Errorf("marker before any anchor: %+v", m)
	}

	rec, err := l.AnchorState(ctx, authorityA, validRequest(1, 50, 0x01))
	if err != nil {
		t.Fatal(err)
	}

	m := l.LastMarker(ctx)
	if m.JournalIndex != rec.JournalIndex {
		t.Errorf("marker index: got %d, want %d", m.JournalIndex, rec.JournalIndex)
	}
	if !m.RecordedAt.Equal(rec.RecordedAt) {
		t.Errorf("marker time: got %v, want %v", m.RecordedAt, rec.RecordedAt)
	}
}

// ── RotateAuthority ──────────────────────────────────────────────────────────

func TestRotateAuthority_oldAuthorityLosesRights(t *testing.T) {
	l := initializedLog(t)

	if err := l.RotateAuthority(ctx, authorityA, authorityB); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	if _, err := l.AnchorState(ctx, authorityA, validRequest(1, 50, 0x01)); !errors.Is(err, anchorlog.ErrUnauthorized) {
		t.Errorf("old authority after rotation: expected ErrUnauthorized, got %v", err)
	}

	// Counter is global, not per-authority: B's first anchor is sequence 1.
	rec, err := l.AnchorState(ctx, authorityB, validRequest(1, 50, 0x01))
	if err != nil {
		t.Fatalf("new authority anchor: %v", err)
	}
	if rec.Sequence != 1 {
		t.Errorf("sequence after rotation: got %d, want 1", rec.Sequence)
	}
}

func TestRotateAuthority_unauthorized(t *testing.T) {
	l := initializedLog(t)

	for _, caller := range []anchorlog.Principal{owner, authorityB, stranger} {
		if err := l.RotateAuthority(ctx, caller, authorityB); !errors.Is(err, anchorlog.ErrUnauthorized) {
			t.Errorf("rotate by %s: expected ErrUnauthorized, got %v", caller, err)
		}
	}
}

func TestRotateAuthority_invalidNext(t *testing.T) {
	l := initializedLog(t)

	if err := l.RotateAuthority(ctx, authorityA, ""); !errors.Is(err, anchorlog.ErrInvalidAuthority) {
		t.Errorf("expected ErrInvalidAuthority, got %v", err)
	}
	if got, _ := l.Authority(); got != authorityA {
		t.Errorf("authority changed on rejected rotate: %q", got)
	}
}

func TestRotateAuthority_beforeInitialize(t *testing.T) {
	l := openLog(t)
	if err := l.RotateAuthority(ctx, owner, authorityA); !errors.Is(err, anchorlog.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

// ── Reads and replay ─────────────────────────────────────────────────────────

func TestAnchorBySequence(t *testing.T) {
	l := initializedLog(t)

	want, err := l.AnchorState(ctx, authorityA, validRequest(1, 50, 0x01))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := l.AnchorState(ctx, authorityA, validRequest(51, 100, 0x02)); err != nil {
		t.Fatal(err)
	}

	got, err := l.AnchorBySequence(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.StateRoot != want.StateRoot || got.Sequence != 1 {
		t.Errorf("AnchorBySequence(1): got %+v, want %+v", got, want)
	}

	missing, err := l.AnchorBySequence(ctx, 99)
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Errorf("AnchorBySequence(99): got %+v, want nil", missing)
	}
	if zero, _ := l.AnchorBySequence(ctx, 0); zero != nil {
		t.Errorf("AnchorBySequence(0): got %+v, want nil", zero)
	}
}

func TestReplay_reproducesDerivedState(t *testing.T) {
	journal := anchorjournal.New()

	l, err := anchorlog.Open(ctx, owner, journal, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Initialize(ctx, owner, authorityA); err != nil {
		t.Fatal(err)
	}
	if _, err := l.AnchorState(ctx, authorityA, validRequest(1, 50, 0x01)); err != nil {
		t.Fatal(err)
	}
	if err := l.RotateAuthority(ctx, authorityA, authorityB); err != nil {
		t.Fatal(err)
	}
	last, err := l.AnchorState(ctx, authorityB, validRequest(51, 100, 0x02))
	if err != nil {
		t.Fatal(err)
	}

	// A fresh Log over the same journal must resume with identical state.
	reopened, err := anchorlog.Open(ctx, owner, journal, zap.NewNop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := reopened.AnchorCount(ctx); got != 2 {
		t.Errorf("replayed count: got %d, want 2", got)
	}
	if got, ok := reopened.Authority(); !ok || got != authorityB {
		t.Errorf("replayed authority: got %q (initialized=%v), want %q", got, ok, authorityB)
	}
	if m := reopened.LastMarker(ctx); m.JournalIndex != last.JournalIndex {
		t.Errorf("replayed marker: got %d, want %d", m.JournalIndex, last.JournalIndex)
	}

	rec, err := reopened.AnchorState(ctx, authorityB, validRequest(101, 150, 0x03))
	if err != nil {
		t.Fatalf("anchor after replay: %v", err)
	}
	if rec.Sequence != 3 {
		t.Errorf("sequence after replay: got %d, want 3", rec.Sequence)
	}
}

func TestOpen_rejectsMalformedOwner(t *testing.T) {
	if _, err := anchorlog.Open(ctx, "", anchorjournal.New(), zap.NewNop()); !errors.Is(err, anchorlog.ErrInvalidAuthority) {
		t.Errorf("expected ErrInvalidAuthority, got %v", err)
	}
}

func TestIsAuthorized(t *testing.T) {
	l := openLog(t)
	if l.IsAuthorized(owner) || l.IsAuthorized("") {
		t.Error("IsAuthorized true before initialize")
	}
	if err := l.Initialize(ctx, owner, authorityA); err != nil {
		t.Fatal(err)
	}
	if !l.IsAuthorized(authorityA) {
		t.Error("current authority not authorized")
	}
	if l.IsAuthorized(stranger) {
		t.Error("stranger authorized")
	}
}
