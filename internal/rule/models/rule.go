package models

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	dErrors "fraudwatch/pkg/domain-errors"
)

// RuleType is the closed set of predicate families a rule can belong to.
// Adding a value here requires a matching arm in the evaluator's dispatch;
// the exhaustive switch there is the compile-time checklist.
type RuleType string

const (
	RuleTypeAmountThreshold RuleType = "AMOUNT_THRESHOLD"
	RuleTypeIPBlacklist     RuleType = "IP_BLACKLIST"
	// RuleTypeDuplicateTransaction is reserved. The duplicate check runs as a
	// hardcoded step in the detection service before any rule evaluation; as a
	// standalone rule this type never matches.
	RuleTypeDuplicateTransaction RuleType = "DUPLICATE_TRANSACTION"
)

// IsValid checks if the rule type is one of the supported enum values.
func (t RuleType) IsValid() bool {
	switch t {
	case RuleTypeAmountThreshold, RuleTypeIPBlacklist, RuleTypeDuplicateTransaction:
		return true
	}
	return false
}

// ParseRuleType creates a RuleType from a string, validating it.
func ParseRuleType(s string) (RuleType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "rule type cannot be empty")
	}
	t := RuleType(s)
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "unknown rule type: "+s)
	}
	return t, nil
}

// ActionType is the decision a triggered rule requests.
type ActionType string

const (
	ActionApprove       ActionType = "APPROVE"
	ActionReject        ActionType = "REJECT"
	ActionHold          ActionType = "HOLD"
	ActionFlagForReview ActionType = "FLAG_FOR_REVIEW"
)

// IsValid checks if the action type is one of the supported enum values.
func (a ActionType) IsValid() bool {
	switch a {
	case ActionApprove, ActionReject, ActionHold, ActionFlagForReview:
		return true
	}
	return false
}

// Condition operator codes. Which codes are meaningful depends on the rule
// type; an operator outside its type's set simply never matches.
const (
	CondGreaterThan        = "GREATER_THAN"
	CondGreaterThanOrEqual = "GREATER_THAN_OR_EQUAL"
	CondLessThan           = "LESS_THAN"
	CondLessThanOrEqual    = "LESS_THAN_OR_EQUAL"

	CondStartsWith = "STARTS_WITH"
	CondEquals     = "EQUALS"
	CondContains   = "CONTAINS"
	CondRegex      = "REGEX"
)

// ConditionsFor returns the operator codes valid for a rule type.
func ConditionsFor(t RuleType) []string {
	switch t {
	case RuleTypeAmountThreshold:
		return []string{CondGreaterThan, CondGreaterThanOrEqual, CondLessThan, CondLessThanOrEqual}
	case RuleTypeIPBlacklist:
		return []string{CondStartsWith, CondEquals, CondContains, CondRegex}
	default:
		return nil
	}
}

// Rule is a stored, priority-ordered predicate/action pair.
//
// Invariants:
//   - Name is unique across all rules
//   - Priority orders evaluation ascending; ties break on ID for a total order
//   - Inactive rules are invisible to evaluation
//   - Exactly one of ThresholdValue / StringValue is meaningful per Type;
//     the other is ignored by the evaluator
//   - Timestamps are stamped by the lifecycle service, never by the evaluator
type Rule struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Type           RuleType         `json:"rule_type"`
	Condition      string           `json:"condition"`
	Action         ActionType       `json:"action_type"`
	ActionMessage  string           `json:"action_message"`
	Priority       int              `json:"priority"`
	IsActive       bool             `json:"is_active"`
	ThresholdValue *decimal.Decimal `json:"threshold_value,omitempty"`
	StringValue    *string          `json:"string_value,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// Validate enforces the structural invariants a rule must satisfy before it
// can be persisted. Predicate-level problems (e.g. a regex that does not
// compile) are not validated here; the evaluator treats those as non-matches.
func (r *Rule) Validate() error {
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "rule name is required")
	}
	if !r.Type.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "unknown rule type: "+string(r.Type))
	}
	if r.Condition == "" {
		return dErrors.New(dErrors.CodeValidation, "rule condition is required")
	}
	if !r.Action.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "unknown action type: "+string(r.Action))
	}
	return nil
}

// NoRulePriority is the priority reported when no rule triggered. It is the
// maximum sentinel so a non-trigger never outranks a real match when results
// are compared.
const NoRulePriority = math.MaxInt32

// Default-approve sentinel values returned when the active set is exhausted
// without a match. Exhaustion is an explicit approval outcome, not a null one.
const (
	DefaultApproveRuleName = "DEFAULT_APPROVE"
	DefaultApproveMessage  = "All checks passed"
)

// RuleEvaluationResult reports the outcome of evaluating an ordered rule set
// against a single transaction.
type RuleEvaluationResult struct {
	Triggered bool       `json:"triggered"`
	Action    ActionType `json:"action_type,omitempty"`
	Message   string     `json:"message,omitempty"`
	RuleName  string     `json:"rule_name,omitempty"`
	Priority  int        `json:"priority"`
}

// NotTriggered is the outcome for a rule whose predicate did not match.
func NotTriggered() RuleEvaluationResult {
	return RuleEvaluationResult{Triggered: false, Priority: NoRulePriority}
}

// Triggered builds the outcome for the first rule whose predicate matched.
func Triggered(r Rule) RuleEvaluationResult {
	return RuleEvaluationResult{
		Triggered: true,
		Action:    r.Action,
		Message:   r.ActionMessage,
		RuleName:  r.Name,
		Priority:  r.Priority,
	}
}

// DefaultApprove is the explicit outcome for an exhausted rule set.
func DefaultApprove() RuleEvaluationResult {
	return RuleEvaluationResult{
		Triggered: true,
		Action:    ActionApprove,
		Message:   DefaultApproveMessage,
		RuleName:  DefaultApproveRuleName,
		Priority:  0,
	}
}
