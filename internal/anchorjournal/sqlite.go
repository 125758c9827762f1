package anchorjournal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver for database/sql
)

// SQLiteJournal persists the anchor journal to a SQLite database.
// It implements the Journal interface and is intended for single-node
// deployments where running PostgreSQL is not warranted.
type SQLiteJournal struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS anchor_journal (
  idx         INTEGER PRIMARY KEY,
  kind        TEXT NOT NULL,
  actor       TEXT NOT NULL,
  recorded_at TEXT NOT NULL,
  body        BLOB,
  body_hash   TEXT NOT NULL,
  prev_hash   TEXT NOT NULL,
  hash        TEXT NOT NULL
);
`

// OpenSQLite opens/creates a SQLite journal and ensures schema, PRAGMAs,
// and the genesis entry.
func OpenSQLite(dsn string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	for _, p := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=FULL;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", p, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, err
	}

	// Seed the genesis entry on first open.
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM anchor_journal").Scan(&n); err != nil {
		_ = db.Close()
		return nil, err
	}
	if n == 0 {
		g := newGenesis()
		if _, err := db.Exec(
			`INSERT INTO anchor_journal(idx, kind, actor, recorded_at, body, body_hash, prev_hash, hash)
			 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
			g.Index, string(g.Kind), g.Actor, g.RecordedAt.Format(time.RFC3339Nano),
			[]byte(g.Body), g.BodyHash, g.PrevHash, g.Hash,
		); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("seed genesis entry: %w", err)
		}
	}
	return &SQLiteJournal{db: db}, nil
}

// Close closes the underlying database handle.
func (j *SQLiteJournal) Close() error { return j.db.Close() }

// DB exposes the underlying handle for maintenance tooling.
func (j *SQLiteJournal) DB() *sql.DB { return j.db }

// Append implements Journal. The tail read, contiguity check, and insert
// happen inside a single serializable transaction.
func (j *SQLiteJournal) Append(ctx context.Context, kind Kind, actor string, body any) (*Entry, error) {
	tx, err := j.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	prev := &Entry{}
	if err := tx.QueryRowContext(ctx,
		"SELECT idx, hash FROM anchor_journal ORDER BY idx DESC LIMIT 1",
	).Scan(&prev.Index, &prev.Hash); err != nil {
		return nil, fmt.Errorf("read journal tail: %w", err)
	}

	entry, err := buildEntry(prev, kind, actor, body)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO anchor_journal(idx, kind, actor, recorded_at, body, body_hash, prev_hash, hash)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Index, string(entry.Kind), entry.Actor,
		entry.RecordedAt.Format(time.RFC3339Nano),
		[]byte(entry.Body), entry.BodyHash, entry.PrevHash, entry.Hash,
	); err != nil {
		return nil, fmt.Errorf("insert journal entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit journal tx: %w", err)
	}
	return entry, nil
}

// scanEntry decodes one row into an Entry.
func scanEntry(scan func(...any) error) (*Entry, error) {
	e := &Entry{}
	var kind, recordedAt string
	var body []byte
	if err := scan(
		&e.Index, &kind, &e.Actor, &recordedAt,
		&body, &e.BodyHash, &e.PrevHash, &e.Hash,
	); err != nil {
		return nil, err
	}
	ts, err := time.Parse(time.RFC3339Nano, recordedAt)
	if err != nil {
		return nil, fmt.Errorf("parse recorded_at: %w", err)
	}
	e.Kind = Kind(kind)
	e.RecordedAt = ts
	e.Body = body
	return e, nil
}

// Get implements Journal.
func (j *SQLiteJournal) Get(ctx context.Context, index uint64) (*Entry, error) {
	row := j.db.QueryRowContext(ctx,
		`SELECT idx, kind, actor, recorded_at, body, body_hash, prev_hash, hash
		 FROM anchor_journal WHERE idx = ?`, index,
	)
	entry, err := scanEntry(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("get journal entry %d: %w", index, err)
	}
	return entry, nil
}

// Len implements Journal.
func (j *SQLiteJournal) Len(ctx context.Context) (uint64, error) {
	var n uint64
	if err := j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM anchor_journal").Scan(&n); err != nil {
		return 0, fmt.Errorf("count journal entries: %w", err)
	}
	return n, nil
}

// Scan implements Journal.
func (j *SQLiteJournal) Scan(ctx context.Context, fn func(*Entry) error) error {
	rows, err := j.db.QueryContext(ctx,
		`SELECT idx, kind, actor, recorded_at, body, body_hash, prev_hash, hash
		 FROM anchor_journal ORDER BY idx ASC`,
	)
	if err != nil {
		return fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		curr, err := scanEntry(rows.Scan)
		if err != nil {
			return fmt.Errorf("scan journal row: %w", err)
		}
		if err := fn(curr); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Verify implements Journal.
func (j *SQLiteJournal) Verify(ctx context.Context) error {
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
func (j *SQLiteJournal) Root(ctx context.Context) (string, error) {
	var hash string
	if err := j.db.QueryRowContext(ctx,
		"SELECT hash FROM anchor_journal ORDER BY idx DESC LIMIT 1",
	).Scan(&hash); err != nil {
		return "", fmt.Errorf("get journal root: %w", err)
	}
	return hash, nil
}
