package models

import "time"

type TransferKind string

const (
	TransferKindManual          TransferKind = "manual"
	TransferKindOverspend       TransferKind = "overspend"
	TransferKindCoverage        TransferKind = "coverage"
	TransferKindCoverageRelease TransferKind = "coverage_release"
)

// Transfer is an append-only audit record of allocated money moved between envelopes.
type Transfer struct {
	ID             int64        `json:"id"`
	UserID         int64        `json:"user_id"`
	FromEnvelopeID *int64       `json:"from_envelope_id"`
	ToEnvelopeID   *int64       `json:"to_envelope_id"`
	Amount         Cents        `json:"amount"`
	Reason         string       `json:"reason"`
	Kind           TransferKind `json:"kind"`
	Automated      bool         `json:"automated"`
	TransactionID  *int64       `json:"transaction_id,omitempty"`
	ReversalOf     *int64       `json:"reversal_of,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}
