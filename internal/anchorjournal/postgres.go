package anchorjournal

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// advisoryLockKey is a stable PostgreSQL advisory lock key used to serialise
// concurrent Append calls. The value is arbitrary but must be consistent
// across all anchord instances sharing a database.
const advisoryLockKey = int64(7_415_092_331)

// PostgresJournal persists the anchor journal to a PostgreSQL database.
// It implements the Journal interface. The genesis entry is seeded by the
// schema migration, so the journal table is never empty.
type PostgresJournal struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresJournal creates a PostgresJournal backed by the given pool.
func NewPostgresJournal(pool *pgxpool.Pool, logger *zap.Logger) *PostgresJournal {
	return &PostgresJournal{pool: pool, logger: logger}
}

// Append implements Journal.
// It acquires a PostgreSQL advisory lock, reads the chain tail, computes the
// new entry hash, and inserts it — all within a single transaction. The lock
// is what keeps replicas from forking the chain.
func (j *PostgresJournal) Append(ctx context.Context, kind Kind, actor string, body any) (*Entry, error) {
	tx, err := j.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Serialise concurrent appends with a transaction-scoped advisory lock.
	// Released automatically when the transaction commits or rolls back.
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockKey); err != nil {
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	prev := &Entry{}
	if err := tx.QueryRow(ctx,
		"SELECT idx, hash FROM anchor_journal ORDER BY idx DESC LIMIT 1",
	).Scan(&prev.Index, &prev.Hash); err != nil {
		return nil, fmt.Errorf("read journal tail: %w", err)
	}

	entry, err := buildEntry(prev, kind, actor, body)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO anchor_journal (idx, kind, actor, recorded_at, body, body_hash, prev_hash, hash)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.Index, string(entry.Kind), entry.Actor, entry.RecordedAt,
		[]byte(entry.Body), entry.BodyHash, entry.PrevHash, entry.Hash,
	); err != nil {
		return nil, fmt.Errorf("insert journal entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit journal tx: %w", err)
	}

	j.logger.Debug("journal entry appended",
		zap.Uint64("idx", entry.Index),
		zap.String("kind", string(entry.Kind)),
		zap.String("actor", entry.Actor),
	)
	return entry, nil
}

// Get implements Journal.
func (j *PostgresJournal) Get(ctx context.Context, index uint64) (*Entry, error) {
	entry := &Entry{}
	var kind string
	var body []byte
	if err := j.pool.QueryRow(ctx,
		`SELECT idx, kind, actor, recorded_at, body, body_hash, prev_hash, hash
		 FROM anchor_journal WHERE idx = $1`, index,
	).Scan(
		&entry.Index, &kind, &entry.Actor, &entry.RecordedAt,
		&body, &entry.BodyHash, &entry.PrevHash, &entry.Hash,
	); err != nil {
		return nil, fmt.Errorf("get journal entry %d: %w", index, err)
	}
	entry.Kind = Kind(kind)
	entry.Body = body
	return entry, nil
}

// Len implements Journal.
func (j *PostgresJournal) Len(ctx context.Context) (uint64, error) {
	var n uint64
	if err := j.pool.QueryRow(ctx, "SELECT COUNT(*) FROM anchor_journal").Scan(&n); err != nil {
		return 0, fmt.Errorf("count journal entries: %w", err)
	}
	return n, nil
}

// Scan implements Journal. It streams all rows ordered by idx.
func (j *PostgresJournal) Scan(ctx context.Context, fn func(*Entry) error) error {
	rows, err := j.pool.Query(ctx,
		`SELECT idx, kind, actor, recorded_at, body, body_hash, prev_hash, hash
		 FROM anchor_journal ORDER BY idx ASC`,
	)
	if err != nil {
		return fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		curr := &Entry{}
		var kind string
		var body []byte
		if err := rows.Scan(
			&curr.Index, &kind, &curr.Actor, &curr.RecordedAt,
			&body, &curr.BodyHash, &curr.PrevHash, &curr.Hash,
		); err != nil {
			return fmt.Errorf("scan journal row: %w", err)
		}
		curr.Kind = Kind(kind)
		curr.Body = body
		if err := fn(curr); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Verify implements Journal. O(n) in journal length; may be slow for very
// long journals.
func (j *PostgresJournal) Verify(ctx context.Context) error {
	var prev *Entry
	return j.Scan(ctx, func(curr *Entry) error {
		if err := checkLink(prev, curr); err != nil {
			return err
		}
		prev = curr
		return nil
	})
}

// Root implements Journal.
func (j *PostgresJournal) Root(ctx context.Context) (string, error) {
	var hash string
	if err := j.pool.QueryRow(ctx,
		"SELECT hash FROM anchor_journal ORDER BY idx DESC LIMIT 1",
	).Scan(&hash); err != nil {
		return "", fmt.Errorf("get journal root: %w", err)
	}
	return hash, nil
}
