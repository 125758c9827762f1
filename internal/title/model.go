package title

import (
	"time"

	"github.com/google/uuid"
)

// Certificate is a land-title certificate: a unique, non-divisible public
// record for one registered property. Ownership is tracked via hashed
// identifiers only; raw identity data never reaches this service.
type Certificate struct {
	ID           uuid.UUID `json:"id"`
	PropertyID   string    `json:"property_id"`   // e.g. "UP-LKO-001-00123"
	OwnerHash    string    `json:"owner_hash"`    // SHA-256 of the owner's identity number
	FabricTxID   string    `json:"fabric_tx_id"`  // permissioned-ledger tx that registered the property
	DocumentHash string    `json:"document_hash"` // IPFS CID or SHA-256 of the deed; may be empty
	Frozen       bool      `json:"frozen"`        // set while the property is disputed
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TransferRecord is one immutable entry in a certificate's public history:
// an ownership transfer or a dispute freeze/unfreeze. The Memo field holds
// the encoded bhulekhchain-v1 record exactly as published.
type TransferRecord struct {
	ID            uuid.UUID `json:"id"`
	CertificateID uuid.UUID `json:"certificate_id"`
	Action        string    `json:"action"` // titlememo action constant

	PreviousOwnerHash string `json:"previous_owner_hash,omitempty"`
	NewOwnerHash      string `json:"new_owner_hash,omitempty"`

	FabricTxID string    `json:"fabric_tx_id"`
	Memo       []byte    `json:"memo"`
	RecordedAt time.Time `json:"recorded_at"`
}
