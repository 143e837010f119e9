// Package service orchestrates a fraud check: duplicate detection, rule
// evaluation, status mapping, and persistence, with fail-closed semantics on
// every internal error.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"fraudwatch/internal/detection/engine"
	"fraudwatch/internal/detection/metrics"
	rulemodels "fraudwatch/internal/rule/models"
	ruleports "fraudwatch/internal/rule/ports"
	txmodels "fraudwatch/internal/transaction/models"
	txports "fraudwatch/internal/transaction/ports"
	dErrors "fraudwatch/pkg/domain-errors"
	"fraudwatch/pkg/platform/events"
	"fraudwatch/pkg/platform/executor"
)

// Reason strings written onto transactions. These are part of the API
// surface consumed by callers and tests; do not reword casually.
const (
	ReasonDuplicate   = "Duplicate transaction ID"
	ReasonSystemError = "System error during fraud detection"
)

// DefaultEvaluationTimeout bounds one rule evaluation, cache reload
// included. Exceeding it is a system error, never a silent approval.
const DefaultEvaluationTimeout = 5 * time.Second

// Service decides, per transaction, whether to approve, reject, or hold.
//
// Per-transaction flow, strictly ordered: duplicate check, rule evaluation,
// status mapping, persistence. The service suspends exactly once, on the
// evaluation result; evaluation itself runs on a dedicated bounded pool so
// slow cache reloads or regex matching cannot starve the request handlers.
type Service struct {
	rules       ruleports.ActiveRuleSource
	txStore     txports.TransactionStore
	evalPool    *executor.Pool
	evalTimeout time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
	publisher   events.Publisher
	tracer      trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics attaches detection metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithPublisher attaches a decision event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithEvaluationTimeout overrides the evaluation deadline.
func WithEvaluationTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.evalTimeout = d
		}
	}
}

// New constructs the detection service. The evaluation pool is constructed
// and sized by the caller and passed in; the service never spawns unbounded
// goroutines for evaluation.
func New(rules ruleports.ActiveRuleSource, txStore txports.TransactionStore, evalPool *executor.Pool, opts ...Option) (*Service, error) {
	if rules == nil {
		return nil, fmt.Errorf("active rule source is required")
	}
	if txStore == nil {
		return nil, fmt.Errorf("transaction store is required")
	}
	if evalPool == nil {
		return nil, fmt.Errorf("evaluation pool is required")
	}

	s := &Service{
		rules:       rules,
		txStore:     txStore,
		evalPool:    evalPool,
		evalTimeout: DefaultEvaluationTimeout,
		logger:      slog.Default(),
		tracer:      otel.Tracer("fraudwatch/detection"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CheckTransaction runs the full decision flow and returns the single
// actionable result. It never lets an internal failure escape as a bare
// error without a well-formed REJECTED result: the only case where err is
// non-nil is a persistence failure, and even then the rejected result
// accompanies it so the caller knows no decision was durably recorded.
func (s *Service) CheckTransaction(ctx context.Context, txn txmodels.Transaction) (txmodels.FraudDetectionResult, error) {
	s.logger.InfoContext(ctx, "starting fraud check", "transaction_id", txn.TransactionID)

	// Step 1: duplicate check, synchronous, before any evaluation. A
	// duplicate is rejected without touching the first persisted record.
	exists, err := s.txStore.ExistsByID(ctx, txn.TransactionID)
	if err != nil {
		s.logger.ErrorContext(ctx, "duplicate check failed",
			"transaction_id", txn.TransactionID, "error", err)
		return s.failClosed(ctx, txn, err)
	}
	if exists {
		s.logger.WarnContext(ctx, "duplicate transaction detected",
			"transaction_id", txn.TransactionID)
		if s.metrics != nil {
			s.metrics.IncrementDuplicates()
		}
		return txmodels.FraudDetectionResult{
			TransactionID: txn.TransactionID,
			Status:        txmodels.StatusRejected,
			Reason:        ReasonDuplicate,
		}, nil
	}

	// Step 2: evaluate rules on the evaluation pool, waiting synchronously
	// with a deadline.
	evalResult, err := s.evaluate(ctx, txn)
	if err != nil {
		return s.failClosed(ctx, txn, err)
	}

	// Step 3: map the triggered action onto a transaction status. An
	// unknown action cannot normally occur, but if it does the mapping
	// fails closed.
	status := mapActionToStatus(evalResult.Action)
	reason := evalResult.Message

	// Step 4: persist the final state exactly once.
	if err := s.persist(ctx, txn, status, reason); err != nil {
		return s.failClosed(ctx, txn, err)
	}

	s.logger.InfoContext(ctx, "fraud check completed",
		"transaction_id", txn.TransactionID,
		"status", status,
		"rule", evalResult.RuleName,
	)
	if s.metrics != nil {
		s.metrics.IncrementDecisions(string(status))
	}
	s.publish(ctx, txn.TransactionID, status, reason, evalResult.RuleName)

	return txmodels.FraudDetectionResult{
		TransactionID: txn.TransactionID,
		Status:        status,
		Reason:        reason,
	}, nil
}

// CheckOutcome carries an asynchronous check result.
type CheckOutcome struct {
	Result txmodels.FraudDetectionResult
	Err    error
}

// CheckTransactionAsync runs CheckTransaction on the given detection pool
// and delivers the outcome on the returned channel. The channel is buffered;
// the caller may abandon it without leaking a goroutine.
func (s *Service) CheckTransactionAsync(ctx context.Context, pool *executor.Pool, txn txmodels.Transaction) <-chan CheckOutcome {
	out := make(chan CheckOutcome, 1)
	pool.Do(func() {
		result, err := s.CheckTransaction(ctx, txn)
		out <- CheckOutcome{Result: result, Err: err}
	})
	return out
}

type evalOutcome struct {
	result rulemodels.RuleEvaluationResult
	err    error
}

// evaluate fetches the active rule snapshot and runs the engine on the
// evaluation pool, bounded by the evaluation timeout.
func (s *Service) evaluate(ctx context.Context, txn txmodels.Transaction) (rulemodels.RuleEvaluationResult, error) {
	evalCtx, cancel := context.WithTimeout(ctx, s.evalTimeout)
	defer cancel()

	spanCtx, span := s.tracer.Start(evalCtx, "detection.evaluate",
		trace.WithAttributes(attribute.String("transaction.id", txn.TransactionID)))
	defer span.End()

	start := time.Now()
	outCh := make(chan evalOutcome, 1)
	s.evalPool.Do(func() {
		rules, err := s.rules.ActiveRules(spanCtx)
		if err != nil {
			outCh <- evalOutcome{err: fmt.Errorf("load active rules: %w", err)}
			return
		}
		outCh <- evalOutcome{result: engine.Evaluate(rules, txn)}
	})

	select {
	case out := <-outCh:
		if s.metrics != nil {
			s.metrics.ObserveEvaluationDuration(time.Since(start).Seconds())
		}
		if out.err != nil {
			span.RecordError(out.err)
			return rulemodels.RuleEvaluationResult{}, out.err
		}
		span.SetAttributes(
			attribute.Bool("evaluation.triggered", out.result.Triggered),
			attribute.String("evaluation.rule", out.result.RuleName),
		)
		return out.result, nil
	case <-spanCtx.Done():
		if s.metrics != nil {
			s.metrics.IncrementEvaluationTimeouts()
		}
		err := dErrors.Wrap(spanCtx.Err(), dErrors.CodeTimeout, "rule evaluation timed out")
		span.RecordError(err)
		return rulemodels.RuleEvaluationResult{}, err
	}
}

// persist writes the final status and reason onto the transaction and
// stores it.
func (s *Service) persist(ctx context.Context, txn txmodels.Transaction, status txmodels.TransactionStatus, reason string) error {
	txn.Status = status
	txn.StatusReason = reason
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}
	if _, err := s.txStore.Save(ctx, txn); err != nil {
		return fmt.Errorf("persist transaction %s: %w", txn.TransactionID, err)
	}
	s.logger.DebugContext(ctx, "transaction persisted",
		"transaction_id", txn.TransactionID, "status", status)
	return nil
}

// failClosed is the single error path for steps 2-4: the transaction is
// persisted as REJECTED with a fixed reason and that result is returned.
// If the compensating persistence itself fails, the error surfaces to the
// caller alongside the rejected result: the service never claims success
// for a decision that was not durably recorded.
func (s *Service) failClosed(ctx context.Context, txn txmodels.Transaction, cause error) (txmodels.FraudDetectionResult, error) {
	s.logger.ErrorContext(ctx, "fraud check failed, rejecting",
		"transaction_id", txn.TransactionID, "error", cause)
	if s.metrics != nil {
		s.metrics.IncrementSystemErrors()
		s.metrics.IncrementDecisions(string(txmodels.StatusRejected))
	}

	result := txmodels.FraudDetectionResult{
		TransactionID: txn.TransactionID,
		Status:        txmodels.StatusRejected,
		Reason:        ReasonSystemError,
	}

	if err := s.persist(ctx, txn, txmodels.StatusRejected, ReasonSystemError); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist rejected transaction",
			"transaction_id", txn.TransactionID, "error", err)
		return result, dErrors.Wrap(err, dErrors.CodeInternal, "decision not durably recorded")
	}

	s.publish(ctx, txn.TransactionID, txmodels.StatusRejected, ReasonSystemError, "")
	return result, nil
}

// publish emits the decision event, best effort.
func (s *Service) publish(ctx context.Context, transactionID string, status txmodels.TransactionStatus, reason, ruleName string) {
	if s.publisher == nil {
		return
	}
	event := events.DecisionEvent{
		TransactionID: transactionID,
		Status:        string(status),
		Reason:        reason,
		RuleName:      ruleName,
		EvaluatedAt:   time.Now().UTC(),
	}
	if err := s.publisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "decision event emit failed",
			"transaction_id", transactionID, "error", err)
	}
}

// mapActionToStatus converts a rule action into the terminal transaction
// status. Absent or unknown actions map to REJECTED: fail closed.
func mapActionToStatus(action rulemodels.ActionType) txmodels.TransactionStatus {
	switch action {
	case rulemodels.ActionApprove:
		return txmodels.StatusApproved
	case rulemodels.ActionReject:
		return txmodels.StatusRejected
	case rulemodels.ActionHold, rulemodels.ActionFlagForReview:
		return txmodels.StatusHold
	default:
		return txmodels.StatusRejected
	}
}
