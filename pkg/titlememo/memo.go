// Package titlememo defines the "bhulekhchain-v1" memo format: the structured
// record attached to every title-certificate operation on the public ledger.
// The format is a fixed external wire contract — compact JSON with the field
// names below — consumed by off-chain verifiers that reconstruct ownership
// history, so it must stay byte-compatible across versions.
package titlememo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
)

// Standard is the schema tag carried by every memo.
const Standard = "bhulekhchain-v1"

// Memo types and actions.
const (
	TypeCertificate = "TITLE_CERTIFICATE"

	ActionTransfer = "OWNERSHIP_TRANSFER"
	ActionFreeze   = "DISPUTE_FREEZE"
	ActionUnfreeze = "DISPUTE_UNFREEZE"
)

// hexHashRe matches a lowercase hex SHA-256 digest. Owner identifiers are
// always hashed before they reach a public record; raw PII never appears.
var hexHashRe = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Memo is a bhulekhchain-v1 record. A certificate memo carries Type,
// PropertyID, and OwnerHash; a transfer memo carries Action,
// PreviousOwnerHash, and NewOwnerHash. FabricTxID always cross-references
// the permissioned-ledger transaction that caused the change.
type Memo struct {
	Standard          string `json:"standard"`
	Type              string `json:"type,omitempty"`
	Action            string `json:"action,omitempty"`
	PropertyID        string `json:"property_id,omitempty"`
	CertificateID     string `json:"certificate_id,omitempty"`
	OwnerHash         string `json:"owner_hash,omitempty"`
	PreviousOwnerHash string `json:"previous_owner_hash,omitempty"`
	NewOwnerHash      string `json:"new_owner_hash,omitempty"`
	FabricTxID        string `json:"fabric_tx_id"`
	DocumentHash      string `json:"document_hash,omitempty"`
}

// NewCertificate builds the memo recorded when a title certificate is issued.
// documentHash (IPFS CID or SHA-256 of the registration deed) may be empty.
func NewCertificate(propertyID, ownerHash, fabricTxID, documentHash string) Memo {
	return Memo{
		Standard:     Standard,
		Type:         TypeCertificate,
		PropertyID:   propertyID,
		OwnerHash:    ownerHash,
		FabricTxID:   fabricTxID,
		DocumentHash: documentHash,
	}
}

// NewTransfer builds the memo recorded on an ownership transfer.
func NewTransfer(certificateID, previousOwnerHash, newOwnerHash, fabricTxID string) Memo {
	return Memo{
		Standard:          Standard,
		Action:            ActionTransfer,
		CertificateID:     certificateID,
		PreviousOwnerHash: previousOwnerHash,
		NewOwnerHash:      newOwnerHash,
		FabricTxID:        fabricTxID,
	}
}

// Validate checks that the memo is a well-formed bhulekhchain-v1 record.
func (m *Memo) Validate() error {
	if m.Standard != Standard {
		return fmt.Errorf("unknown memo standard %q", m.Standard)
	}
	if m.FabricTxID == "" {
		return fmt.Errorf("memo missing fabric_tx_id")
	}

	switch {
	case m.Type == TypeCertificate:
		if m.PropertyID == "" {
			return fmt.Errorf("certificate memo missing property_id")
		}
		if !hexHashRe.MatchString(m.OwnerHash) {
			return fmt.Errorf("certificate memo owner_hash is not a SHA-256 hex digest")
		}
	case m.Action == ActionTransfer:
		if m.CertificateID == "" {
			return fmt.Errorf("transfer memo missing certificate_id")
		}
		if !hexHashRe.MatchString(m.PreviousOwnerHash) {
			return fmt.Errorf("transfer memo previous_owner_hash is not a SHA-256 hex digest")
		}
		if !hexHashRe.MatchString(m.NewOwnerHash) {
			return fmt.Errorf("transfer memo new_owner_hash is not a SHA-256 hex digest")
		}
	case m.Action == ActionFreeze, m.Action == ActionUnfreeze:
		if m.CertificateID == "" {
			return fmt.Errorf("%s memo missing certificate_id", m.Action)
		}
	default:
		return fmt.Errorf("memo has neither a known type nor a known action")
	}
	return nil
}

// Encode returns the canonical compact-JSON encoding of the memo.
func (m Memo) Encode() ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("encode memo: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Decode parses and validates a bhulekhchain-v1 memo.
func Decode(data []byte) (Memo, error) {
	var m Memo
	if err := json.Unmarshal(data, &m); err != nil {
		return Memo{}, fmt.Errorf("decode memo: %w", err)
	}
	if err := m.Validate(); err != nil {
		return Memo{}, err
	}
	return m, nil
}
