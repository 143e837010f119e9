package handler

import (
	"github.com/shopspring/decimal"

	"fraudwatch/internal/rule/models"
	dErrors "fraudwatch/pkg/domain-errors"
)

// RuleRequest is the write payload for creating or replacing a rule.
// IsActive defaults to true when omitted.
type RuleRequest struct {
	Name           string  `json:"name"`
	RuleType       string  `json:"rule_type"`
	Condition      string  `json:"condition"`
	ActionType     string  `json:"action_type"`
	ActionMessage  string  `json:"action_message"`
	Priority       int     `json:"priority"`
	IsActive       *bool   `json:"is_active,omitempty"`
	ThresholdValue *string `json:"threshold_value,omitempty"`
	StringValue    *string `json:"string_value,omitempty"`
}

// Validate checks the fields that must be well formed before the payload can
// be turned into a rule.
func (r *RuleRequest) Validate() error {
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if _, err := models.ParseRuleType(r.RuleType); err != nil {
		return err
	}
	if r.Condition == "" {
		return dErrors.New(dErrors.CodeValidation, "condition is required")
	}
	if !models.ActionType(r.ActionType).IsValid() {
		return dErrors.New(dErrors.CodeValidation, "unknown action type: "+r.ActionType)
	}
	if r.ThresholdValue != nil {
		if _, err := decimal.NewFromString(*r.ThresholdValue); err != nil {
			return dErrors.New(dErrors.CodeValidation, "threshold_value is not a valid decimal")
		}
	}
	return nil
}

// toModel converts a validated request into a rule model. The lifecycle
// service owns id assignment and timestamps.
func (r *RuleRequest) toModel() models.Rule {
	rule := models.Rule{
		Name:          r.Name,
		Type:          models.RuleType(r.RuleType),
		Condition:     r.Condition,
		Action:        models.ActionType(r.ActionType),
		ActionMessage: r.ActionMessage,
		Priority:      r.Priority,
		IsActive:      true,
		StringValue:   r.StringValue,
	}
	if r.IsActive != nil {
		rule.IsActive = *r.IsActive
	}
	if r.ThresholdValue != nil {
		v, _ := decimal.NewFromString(*r.ThresholdValue)
		rule.ThresholdValue = &v
	}
	return rule
}
