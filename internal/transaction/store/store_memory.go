package store

import (
	"context"
	"sync"

	"fraudwatch/internal/transaction/models"
	"fraudwatch/pkg/platform/sentinel"
)

// InMemory implements ports.TransactionStore with a mutex-guarded map,
// keyed by business transaction id.
type InMemory struct {
	mu   sync.RWMutex
	txns map[string]models.Transaction
}

// NewInMemory creates an empty in-memory transaction store.
func NewInMemory() *InMemory {
	return &InMemory{txns: make(map[string]models.Transaction)}
}

func (s *InMemory) ExistsByID(ctx context.Context, transactionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.txns[transactionID]
	return ok, nil
}

func (s *InMemory) Save(ctx context.Context, txn models.Transaction) (models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.txns[txn.TransactionID]; ok {
		return models.Transaction{}, sentinel.ErrConflict
	}
	s.txns[txn.TransactionID] = txn
	return txn, nil
}

func (s *InMemory) FindByTransactionID(ctx context.Context, transactionID string) (models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txn, ok := s.txns[transactionID]
	if !ok {
		return models.Transaction{}, sentinel.ErrNotFound
	}
	return txn, nil
}
