package title

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CertificateRepository persists certificates and their transfer records in
// PostgreSQL.
type CertificateRepository struct {
	pool *pgxpool.Pool
}

// NewCertificateRepository creates a CertificateRepository.
func NewCertificateRepository(pool *pgxpool.Pool) *CertificateRepository {
	return &CertificateRepository{pool: pool}
}

// Create inserts a new certificate.
func (r *CertificateRepository) Create(ctx context.Context, c *Certificate) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO title_certificates
		   (id, property_id, owner_hash, fabric_tx_id, document_hash, frozen, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.PropertyID, c.OwnerHash, c.FabricTxID, c.DocumentHash,
		c.Frozen, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert certificate: %w", err)
	}
	return nil
}

const certificateColumns = `id, property_id, owner_hash, fabric_tx_id, document_hash, frozen, created_at, updated_at`

func scanCertificate(row pgx.Row) (*Certificate, error) {
	c := &Certificate{}
	err := row.Scan(
		&c.ID, &c.PropertyID, &c.OwnerHash, &c.FabricTxID,
		&c.DocumentHash, &c.Frozen, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan certificate: %w", err)
	}
	return c, nil
}

// GetByID returns the certificate with the given id, or ErrNotFound.
func (r *CertificateRepository) GetByID(ctx context.Context, id uuid.UUID) (*Certificate, error) {
	return scanCertificate(r.pool.QueryRow(ctx,
		`SELECT `+certificateColumns+` FROM title_certificates WHERE id = $1`, id))
}

// GetByPropertyID returns the certificate for a property, or ErrNotFound.
func (r *CertificateRepository) GetByPropertyID(ctx context.Context, propertyID string) (*Certificate, error) {
	return scanCertificate(r.pool.QueryRow(ctx,
		`SELECT `+certificateColumns+` FROM title_certificates WHERE property_id = $1`, propertyID))
}

// ApplyTransfer appends a transfer record and updates the certificate's
// current owner in a single transaction.
func (r *CertificateRepository) ApplyTransfer(ctx context.Context, rec *TransferRecord, newOwnerHash string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := insertRecord(ctx, tx, rec); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE title_certificates SET owner_hash = $1, updated_at = $2 WHERE id = $3`,
		newOwnerHash, rec.RecordedAt, rec.CertificateID,
	); err != nil {
		return fmt.Errorf("update certificate owner: %w", err)
	}
	return tx.Commit(ctx)
}

// ApplyStatus appends a freeze/unfreeze record and updates the certificate's
// frozen flag in a single transaction.
func (r *CertificateRepository) ApplyStatus(ctx context.Context, rec *TransferRecord, frozen bool) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := insertRecord(ctx, tx, rec); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE title_certificates SET frozen = $1, updated_at = $2 WHERE id = $3`,
		frozen, rec.RecordedAt, rec.CertificateID,
	); err != nil {
		return fmt.Errorf("update certificate status: %w", err)
	}
	return tx.Commit(ctx)
}

func insertRecord(ctx context.Context, tx pgx.Tx, rec *TransferRecord) error {
	if _, err := tx.Exec(ctx,
		`INSERT INTO title_transfers
		   (id, certificate_id, action, previous_owner_hash, new_owner_hash, fabric_tx_id, memo, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.CertificateID, rec.Action, rec.PreviousOwnerHash,
		rec.NewOwnerHash, rec.FabricTxID, rec.Memo, rec.RecordedAt,
	); err != nil {
		return fmt.Errorf("insert transfer record: %w", err)
	}
	return nil
}

// ListRecords returns a certificate's transfer records in commit order.
func (r *CertificateRepository) ListRecords(ctx context.Context, certificateID uuid.UUID) ([]*TransferRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, certificate_id, action, previous_owner_hash, new_owner_hash, fabric_tx_id, memo, recorded_at
		 FROM title_transfers WHERE certificate_id = $1 ORDER BY recorded_at ASC, id ASC`,
		certificateID,
	)
	if err != nil {
		return nil, fmt.Errorf("query transfer records: %w", err)
	}
	defer rows.Close()

	var records []*TransferRecord
	for rows.Next() {
		rec := &TransferRecord{}
		if err := rows.Scan(
			&rec.ID, &rec.CertificateID, &rec.Action, &rec.PreviousOwnerHash,
			&rec.NewOwnerHash, &rec.FabricTxID, &rec.Memo, &rec.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transfer record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
