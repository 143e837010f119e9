package handler

import (
	"time"

	"fraudwatch/internal/rule/models"
)

// RuleResponse is the JSON view of a rule.
type RuleResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	RuleType       string    `json:"rule_type"`
	Condition      string    `json:"condition"`
	ActionType     string    `json:"action_type"`
	ActionMessage  string    `json:"action_message"`
	Priority       int       `json:"priority"`
	IsActive       bool      `json:"is_active"`
	ThresholdValue *string   `json:"threshold_value,omitempty"`
	StringValue    *string   `json:"string_value,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toResponse(r models.Rule) RuleResponse {
	resp := RuleResponse{
		ID:            r.ID,
		Name:          r.Name,
		RuleType:      string(r.Type),
		Condition:     r.Condition,
		ActionType:    string(r.Action),
		ActionMessage: r.ActionMessage,
		Priority:      r.Priority,
		IsActive:      r.IsActive,
		StringValue:   r.StringValue,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.ThresholdValue != nil {
		s := r.ThresholdValue.String()
		resp.ThresholdValue = &s
	}
	return resp
}

func toResponses(rules []models.Rule) []RuleResponse {
	out := make([]RuleResponse, 0, len(rules))
	for _, r := range rules {
		out = append(out, toResponse(r))
	}
	return out
}

// ListResponse is one page of rules.
type ListResponse struct {
	Rules []RuleResponse `json:"rules"`
	Page  int            `json:"page"`
	Size  int            `json:"size"`
	Total int            `json:"total"`
}

// StatsResponse summarizes the rule population.
type StatsResponse struct {
	ActiveRules int `json:"active_rules"`
	TotalRules  int `json:"total_rules"`
}
