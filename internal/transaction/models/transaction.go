package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus is the terminal classification of a checked transaction.
type TransactionStatus string

const (
	StatusPending  TransactionStatus = "PENDING"
	StatusApproved TransactionStatus = "APPROVED"
	StatusRejected TransactionStatus = "REJECTED"
	StatusHold     TransactionStatus = "HOLD"
)

// IsValid checks if the status is one of the supported enum values.
func (s TransactionStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusHold:
		return true
	}
	return false
}

// Transaction is the record the detection service classifies and persists.
// The service consumes an already-validated value from intake; it never
// constructs one itself.
//
// Invariants:
//   - TransactionID is unique; a second check with the same ID is a duplicate
//   - Status and StatusReason are written exactly once per check by the
//     detection service and are immutable afterwards
//   - Amount and IPAddress may be absent; absent fields make the related
//     rule predicates non-matching, never an error
type Transaction struct {
	TransactionID     string            `json:"transaction_id"`
	Amount            *decimal.Decimal  `json:"amount,omitempty"`
	IPAddress         *string           `json:"ip_address,omitempty"`
	OriginatorDetails map[string]string `json:"originator_details,omitempty"`
	TransferDetails   map[string]string `json:"transfer_details,omitempty"`
	Status            TransactionStatus `json:"status"`
	StatusReason      string            `json:"status_reason,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}

// FraudDetectionResult is the single actionable decision returned per check.
type FraudDetectionResult struct {
	TransactionID string            `json:"transaction_id"`
	Status        TransactionStatus `json:"status"`
	Reason        string            `json:"reason"`
}
