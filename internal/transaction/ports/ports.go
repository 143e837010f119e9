// Package ports defines shared interfaces for the transaction module.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"fraudwatch/internal/transaction/models"
)

// TransactionStore persists checked transactions and answers the duplicate
// check. Implementations return sentinel errors for infrastructure facts.
type TransactionStore interface {
	// ExistsByID reports whether a transaction with this business id has
	// already been checked and persisted.
	ExistsByID(ctx context.Context, transactionID string) (bool, error)

	// Save persists the transaction with its final status exactly once.
	// Returns sentinel.ErrConflict when the transaction id already exists.
	Save(ctx context.Context, txn models.Transaction) (models.Transaction, error)

	// FindByTransactionID returns sentinel.ErrNotFound when absent.
	FindByTransactionID(ctx context.Context, transactionID string) (models.Transaction, error)
}
