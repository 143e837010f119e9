// Package events publishes decision outcomes for downstream consumers
// (case review, analytics). Publishing is advisory: it never blocks or
// fails a fraud decision.
package events

import (
	"context"
	"time"
)

// DecisionEvent records one fraud decision.
type DecisionEvent struct {
	TransactionID string    `json:"transaction_id"`
	Status        string    `json:"status"`
	Reason        string    `json:"reason"`
	RuleName      string    `json:"rule_name,omitempty"`
	EvaluatedAt   time.Time `json:"evaluated_at"`
}

// Publisher emits decision events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Emit(ctx context.Context, event DecisionEvent) error
	Close() error
}
