package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fraudwatch/internal/rule/models"
	"fraudwatch/internal/rule/ports"
)

// SeedDefaultRules installs the baseline rule set when the store is empty.
// It replaces the limits that used to be hardcoded in the detection path:
// reject above 2000, hold at 1000 and above, block the 192.0.0.0/24 subnet.
// A non-empty store is left untouched.
func SeedDefaultRules(ctx context.Context, rs ports.RuleStore) (int, error) {
	existing, _, err := rs.List(ctx, 0, 1)
	if err != nil {
		return 0, fmt.Errorf("seed rules: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rejectThreshold := decimal.NewFromInt(2000)
	holdThreshold := decimal.NewFromInt(1000)
	blockedSubnet := "192.0.0."

	defaults := []models.Rule{
		{
			ID:             uuid.NewString(),
			Name:           "AMOUNT_REJECT_THRESHOLD",
			Type:           models.RuleTypeAmountThreshold,
			Condition:      models.CondGreaterThan,
			Action:         models.ActionReject,
			ActionMessage:  "Amount exceeds maximum limit",
			Priority:       1,
			IsActive:       true,
			ThresholdValue: &rejectThreshold,
			CreatedAt:      now,
			UpdatedAt:      now,
		},
		{
			ID:             uuid.NewString(),
			Name:           "AMOUNT_HOLD_THRESHOLD",
			Type:           models.RuleTypeAmountThreshold,
			Condition:      models.CondGreaterThanOrEqual,
			Action:         models.ActionHold,
			ActionMessage:  "Requires manual review",
			Priority:       2,
			IsActive:       true,
			ThresholdValue: &holdThreshold,
			CreatedAt:      now,
			UpdatedAt:      now,
		},
		{
			ID:            uuid.NewString(),
			Name:          "IP_BLACKLIST_192_SUBNET",
			Type:          models.RuleTypeIPBlacklist,
			Condition:     models.CondStartsWith,
			Action:        models.ActionReject,
			ActionMessage: "IP address is blocked",
			Priority:      3,
			IsActive:      true,
			StringValue:   &blockedSubnet,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
	}

	for _, r := range defaults {
		if _, err := rs.Save(ctx, r); err != nil {
			return 0, fmt.Errorf("seed rule %s: %w", r.Name, err)
		}
	}
	return len(defaults), nil
}
