// Package title implements the companion title-certificate feature: one
// unique public certificate per registered property, with ownership changes
// and dispute freezes recorded as immutable bhulekhchain-v1 memo records.
// Anyone can reconstruct a property's full ownership history by reading its
// transfer records chronologically.
package title

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/siash1/bhulekh-chain/internal/anchorlog"
	"github.com/siash1/bhulekh-chain/pkg/titlememo"
	"go.uber.org/zap"
)

var (
	// ErrNotFound — no certificate with the given id or property.
	ErrNotFound = errors.New("title certificate not found")

	// ErrFrozen — the certificate is frozen by a dispute; transfers are
	// blocked until it is unfrozen.
	ErrFrozen = errors.New("title certificate is frozen")

	// ErrDuplicateProperty — a certificate already exists for the property.
	ErrDuplicateProperty = errors.New("property already has a title certificate")
)

// certificateRepo is the persistence interface for the title service.
// *CertificateRepository satisfies it.
type certificateRepo interface {
	Create(ctx context.Context, c *Certificate) error
	GetByID(ctx context.Context, id uuid.UUID) (*Certificate, error)
	GetByPropertyID(ctx context.Context, propertyID string) (*Certificate, error)
	ApplyTransfer(ctx context.Context, rec *TransferRecord, newOwnerHash string) error
	ApplyStatus(ctx context.Context, rec *TransferRecord, frozen bool) error
	ListRecords(ctx context.Context, certificateID uuid.UUID) ([]*TransferRecord, error)
}

// Authorizer gates mutating title operations on the anchor authority.
// *anchorlog.Log satisfies it.
type Authorizer interface {
	IsAuthorized(p anchorlog.Principal) bool
}

// Service contains business logic for title certificate lifecycle.
type Service struct {
	repo   certificateRepo
	auth   Authorizer
	logger *zap.Logger
}

// NewService creates a title Service.
func NewService(repo certificateRepo, auth Authorizer, logger *zap.Logger) *Service {
	return &Service{repo: repo, auth: auth, logger: logger}
}

// IssueParams are the inputs to Issue.
type IssueParams struct {
	PropertyID   string
	OwnerHash    string
	FabricTxID   string
	DocumentHash string
}

// Issue creates the title certificate for a newly registered property.
// Only the anchor authority may call it; one certificate per property, ever.
func (s *Service) Issue(ctx context.Context, caller anchorlog.Principal, p IssueParams) (*Certificate, error) {
	if !s.auth.IsAuthorized(caller) {
		return nil, anchorlog.ErrUnauthorized
	}

	// Memo validation doubles as input validation: property id, hashed
	// owner, and fabric tx id are all checked by the wire schema.
	memo := titlememo.NewCertificate(p.PropertyID, p.OwnerHash, p.FabricTxID, p.DocumentHash)
	if _, err := memo.Encode(); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetByPropertyID(ctx, p.PropertyID); err == nil {
		return nil, ErrDuplicateProperty
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("check existing certificate: %w", err)
	}

	now := time.Now().UTC()
	cert := &Certificate{
		ID:           uuid.New(),
		PropertyID:   p.PropertyID,
		OwnerHash:    p.OwnerHash,
		FabricTxID:   p.FabricTxID,
		DocumentHash: p.DocumentHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, cert); err != nil {
		return nil, fmt.Errorf("create certificate: %w", err)
	}

	s.logger.Info("title certificate issued",
		zap.String("certificate_id", cert.ID.String()),
		zap.String("property_id", cert.PropertyID),
	)
	return cert, nil
}

// Transfer records an ownership change. The certificate stays in place; only
// the hashed owner and the history change.
func (s *Service) Transfer(ctx context.Context, caller anchorlog.Principal, certificateID uuid.UUID, newOwnerHash, fabricTxID string) (*TransferRecord, error) {
	if !s.auth.IsAuthorized(caller) {
		return nil, anchorlog.ErrUnauthorized
	}

	cert, err := s.repo.GetByID(ctx, certificateID)
	if err != nil {
		return nil, err
	}
	if cert.Frozen {
		return nil, ErrFrozen
	}

	memo := titlememo.NewTransfer(cert.ID.String(), cert.OwnerHash, newOwnerHash, fabricTxID)
	encoded, err := memo.Encode()
	if err != nil {
		return nil, err
	}

	rec := &TransferRecord{
		ID:                uuid.New(),
		CertificateID:     cert.ID,
		Action:            titlememo.ActionTransfer,
		PreviousOwnerHash: cert.OwnerHash,
		NewOwnerHash:      newOwnerHash,
		FabricTxID:        fabricTxID,
		Memo:              encoded,
		RecordedAt:        time.Now().UTC(),
	}
	if err := s.repo.ApplyTransfer(ctx, rec, newOwnerHash); err != nil {
		return nil, fmt.Errorf("apply transfer: %w", err)
	}

	s.logger.Info("title ownership transferred",
		zap.String("certificate_id", cert.ID.String()),
		zap.String("fabric_tx_id", fabricTxID),
	)
	return rec, nil
}

// Freeze marks a certificate as disputed, blocking transfers.
func (s *Service) Freeze(ctx context.Context, caller anchorlog.Principal, certificateID uuid.UUID, fabricTxID string) error {
	return s.setFrozen(ctx, caller, certificateID, fabricTxID, true)
}

// Unfreeze lifts a dispute freeze.
func (s *Service) Unfreeze(ctx context.Context, caller anchorlog.Principal, certificateID uuid.UUID, fabricTxID string) error {
	return s.setFrozen(ctx, caller, certificateID, fabricTxID, false)
}

func (s *Service) setFrozen(ctx context.Context, caller anchorlog.Principal, certificateID uuid.UUID, fabricTxID string, frozen bool) error {
	if !s.auth.IsAuthorized(caller) {
		return anchorlog.ErrUnauthorized
	}

	cert, err := s.repo.GetByID(ctx, certificateID)
	if err != nil {
		return err
	}

	action := titlememo.ActionUnfreeze
	if frozen {
		action = titlememo.ActionFreeze
	}
	memo := titlememo.Memo{
		Standard:      titlememo.Standard,
		Action:        action,
		CertificateID: cert.ID.String(),
		FabricTxID:    fabricTxID,
	}
	encoded, err := memo.Encode()
	if err != nil {
		return err
	}

	rec := &TransferRecord{
		ID:            uuid.New(),
		CertificateID: cert.ID,
		Action:        action,
		FabricTxID:    fabricTxID,
		Memo:          encoded,
		RecordedAt:    time.Now().UTC(),
	}
	if err := s.repo.ApplyStatus(ctx, rec, frozen); err != nil {
		return fmt.Errorf("apply status change: %w", err)
	}

	s.logger.Info("title certificate status changed",
		zap.String("certificate_id", cert.ID.String()),
		zap.Bool("frozen", frozen),
	)
	return nil
}

// Get returns a certificate by id. Public read.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Certificate, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByProperty returns the certificate for a property. Public read.
func (s *Service) GetByProperty(ctx context.Context, propertyID string) (*Certificate, error) {
	return s.repo.GetByPropertyID(ctx, propertyID)
}

// History returns a certificate's transfer records in commit order.
// Public read.
func (s *Service) History(ctx context.Context, id uuid.UUID) ([]*TransferRecord, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListRecords(ctx, id)
}
