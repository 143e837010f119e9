package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	rulemodels "fraudwatch/internal/rule/models"
	txmodels "fraudwatch/internal/transaction/models"
)

func decPtr(s string) *decimal.Decimal {
	v := decimal.RequireFromString(s)
	return &v
}

func strPtr(s string) *string {
	return &s
}

// defaultRules mirrors the seed set: reject over 2000, hold at 1000 and
// above, reject the 192.0.0.0/24 subnet.
func defaultRules() []rulemodels.Rule {
	return []rulemodels.Rule{
		{
			ID:             "r1",
			Name:           "AMOUNT_REJECT_THRESHOLD",
			Type:           rulemodels.RuleTypeAmountThreshold,
			Condition:      rulemodels.CondGreaterThan,
			Action:         rulemodels.ActionReject,
			ActionMessage:  "Amount exceeds maximum limit",
			Priority:       1,
			IsActive:       true,
			ThresholdValue: decPtr("2000"),
		},
		{
			ID:             "r2",
			Name:           "AMOUNT_HOLD_THRESHOLD",
			Type:           rulemodels.RuleTypeAmountThreshold,
			Condition:      rulemodels.CondGreaterThanOrEqual,
			Action:         rulemodels.ActionHold,
			ActionMessage:  "Requires manual review",
			Priority:       2,
			IsActive:       true,
			ThresholdValue: decPtr("1000"),
		},
		{
			ID:            "r3",
			Name:          "IP_BLACKLIST_192_SUBNET",
			Type:          rulemodels.RuleTypeIPBlacklist,
			Condition:     rulemodels.CondStartsWith,
			Action:        rulemodels.ActionReject,
			ActionMessage: "IP address is blocked",
			Priority:      3,
			IsActive:      true,
			StringValue:   strPtr("192.0.0."),
		},
	}
}

func txn(amount string, ip string) txmodels.Transaction {
	t := txmodels.Transaction{TransactionID: "txn-1"}
	if amount != "" {
		t.Amount = decPtr(amount)
	}
	if ip != "" {
		t.IPAddress = strPtr(ip)
	}
	return t
}

func TestEvaluateDefaultRuleSet(t *testing.T) {
	rules := defaultRules()

	tests := []struct {
		name        string
		txn         txmodels.Transaction
		wantAction  rulemodels.ActionType
		wantMessage string
		wantRule    string
	}{
		{
			name:        "amount over reject threshold",
			txn:         txn("2500", "10.0.0.1"),
			wantAction:  rulemodels.ActionReject,
			wantMessage: "Amount exceeds maximum limit",
			wantRule:    "AMOUNT_REJECT_THRESHOLD",
		},
		{
			name:        "amount at hold threshold",
			txn:         txn("1000", "10.0.0.1"),
			wantAction:  rulemodels.ActionHold,
			wantMessage: "Requires manual review",
			wantRule:    "AMOUNT_HOLD_THRESHOLD",
		},
		{
			name:        "amount between thresholds",
			txn:         txn("1500", "10.0.0.1"),
			wantAction:  rulemodels.ActionHold,
			wantMessage: "Requires manual review",
			wantRule:    "AMOUNT_HOLD_THRESHOLD",
		},
		{
			name:        "blacklisted subnet",
			txn:         txn("50", "192.0.0.10"),
			wantAction:  rulemodels.ActionReject,
			wantMessage: "IP address is blocked",
			wantRule:    "IP_BLACKLIST_192_SUBNET",
		},
		{
			name:        "clean transaction approves by default",
			txn:         txn("50", "10.0.0.1"),
			wantAction:  rulemodels.ActionApprove,
			wantMessage: rulemodels.DefaultApproveMessage,
			wantRule:    rulemodels.DefaultApproveRuleName,
		},
		{
			name:        "boundary amount 2000 holds rather than rejects",
			txn:         txn("2000", "10.0.0.1"),
			wantAction:  rulemodels.ActionHold,
			wantMessage: "Requires manual review",
			wantRule:    "AMOUNT_HOLD_THRESHOLD",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Evaluate(rules, tt.txn)
			assert.True(t, result.Triggered)
			assert.Equal(t, tt.wantAction, result.Action)
			assert.Equal(t, tt.wantMessage, result.Message)
			assert.Equal(t, tt.wantRule, result.RuleName)
		})
	}
}

func TestEvaluateShortCircuitsOnFirstMatch(t *testing.T) {
	// Both rules match; only the first in order may decide.
	rules := []rulemodels.Rule{
		{
			ID: "r1", Name: "FIRST", Type: rulemodels.RuleTypeAmountThreshold,
			Condition: rulemodels.CondGreaterThan, Action: rulemodels.ActionHold,
			ActionMessage: "first", Priority: 1, IsActive: true, ThresholdValue: decPtr("10"),
		},
		{
			ID: "r2", Name: "SECOND", Type: rulemodels.RuleTypeAmountThreshold,
			Condition: rulemodels.CondGreaterThan, Action: rulemodels.ActionReject,
			ActionMessage: "second", Priority: 2, IsActive: true, ThresholdValue: decPtr("10"),
		},
	}

	result := Evaluate(rules, txn("100", ""))
	assert.Equal(t, "FIRST", result.RuleName)
	assert.Equal(t, rulemodels.ActionHold, result.Action)
}

func TestEvaluateEmptyRuleSet(t *testing.T) {
	result := Evaluate(nil, txn("999999", "192.0.0.1"))
	assert.True(t, result.Triggered)
	assert.Equal(t, rulemodels.ActionApprove, result.Action)
	assert.Equal(t, rulemodels.DefaultApproveRuleName, result.RuleName)
	assert.Equal(t, rulemodels.DefaultApproveMessage, result.Message)
}

func TestEvaluateMissingTransactionFields(t *testing.T) {
	rules := defaultRules()

	// No amount: amount rules cannot match, IP rule still can.
	result := Evaluate(rules, txn("", "192.0.0.5"))
	assert.Equal(t, "IP_BLACKLIST_192_SUBNET", result.RuleName)

	// Neither field: nothing matches, default approve.
	result = Evaluate(rules, txn("", ""))
	assert.Equal(t, rulemodels.DefaultApproveRuleName, result.RuleName)
}

func TestEvaluateMissingRuleValueNeverMatches(t *testing.T) {
	rules := []rulemodels.Rule{{
		ID: "r1", Name: "NO_THRESHOLD", Type: rulemodels.RuleTypeAmountThreshold,
		Condition: rulemodels.CondGreaterThan, Action: rulemodels.ActionReject,
		Priority: 1, IsActive: true,
	}}

	result := Evaluate(rules, txn("5000", ""))
	assert.Equal(t, rulemodels.DefaultApproveRuleName, result.RuleName)
}

func TestIPBlacklistConditions(t *testing.T) {
	tests := []struct {
		name      string
		condition string
		pattern   string
		ip        string
		want      bool
	}{
		{"starts_with match", rulemodels.CondStartsWith, "192.0.0.", "192.0.0.77", true},
		{"starts_with miss", rulemodels.CondStartsWith, "192.0.0.", "192.0.1.77", false},
		{"equals match", rulemodels.CondEquals, "10.1.2.3", "10.1.2.3", true},
		{"equals miss", rulemodels.CondEquals, "10.1.2.3", "10.1.2.4", false},
		{"contains match", rulemodels.CondContains, ".13.", "172.13.0.9", true},
		{"regex match", rulemodels.CondRegex, `^10\.(1|2)\.`, "10.2.0.1", true},
		{"regex miss", rulemodels.CondRegex, `^10\.(1|2)\.`, "10.3.0.1", false},
		{"malformed regex never matches", rulemodels.CondRegex, `([unclosed`, "10.0.0.1", false},
		{"unknown condition never matches", "BETWEEN", "10.", "10.0.0.1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := rulemodels.Rule{
				ID: "r1", Name: "IP_RULE", Type: rulemodels.RuleTypeIPBlacklist,
				Condition: tt.condition, Action: rulemodels.ActionReject,
				Priority: 1, IsActive: true, StringValue: strPtr(tt.pattern),
			}
			result := Evaluate([]rulemodels.Rule{rule}, txn("", tt.ip))
			if tt.want {
				assert.Equal(t, "IP_RULE", result.RuleName)
			} else {
				assert.Equal(t, rulemodels.DefaultApproveRuleName, result.RuleName)
			}
		})
	}
}

func TestAmountThresholdConditions(t *testing.T) {
	tests := []struct {
		name      string
		condition string
		threshold string
		amount    string
		want      bool
	}{
		{"greater_than strict", rulemodels.CondGreaterThan, "100", "100", false},
		{"greater_than above", rulemodels.CondGreaterThan, "100", "100.01", true},
		{"gte at boundary", rulemodels.CondGreaterThanOrEqual, "100", "100", true},
		{"less_than below", rulemodels.CondLessThan, "100", "99.99", true},
		{"lte at boundary", rulemodels.CondLessThanOrEqual, "100", "100", true},
		{"lte above", rulemodels.CondLessThanOrEqual, "100", "100.01", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := rulemodels.Rule{
				ID: "r1", Name: "AMOUNT_RULE", Type: rulemodels.RuleTypeAmountThreshold,
				Condition: tt.condition, Action: rulemodels.ActionHold,
				Priority: 1, IsActive: true, ThresholdValue: decPtr(tt.threshold),
			}
			result := Evaluate([]rulemodels.Rule{rule}, txn(tt.amount, ""))
			if tt.want {
				assert.Equal(t, "AMOUNT_RULE", result.RuleName)
			} else {
				assert.Equal(t, rulemodels.DefaultApproveRuleName, result.RuleName)
			}
		})
	}
}

func TestDuplicateTransactionRuleTypeIsInert(t *testing.T) {
	rules := []rulemodels.Rule{{
		ID: "r1", Name: "DUP_RULE", Type: rulemodels.RuleTypeDuplicateTransaction,
		Condition: rulemodels.CondEquals, Action: rulemodels.ActionReject,
		Priority: 1, IsActive: true, StringValue: strPtr("x"),
	}}

	result := Evaluate(rules, txn("100", "10.0.0.1"))
	assert.Equal(t, rulemodels.DefaultApproveRuleName, result.RuleName)
}
