package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fraudwatch/internal/rule/models"
	"fraudwatch/pkg/platform/sentinel"
	platformtx "fraudwatch/pkg/platform/tx"
)

// Postgres persists rules in PostgreSQL. Names are kept unique by a
// constraint on lower(name); violations surface as sentinel.ErrConflict.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed rule store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// q returns the transaction carried by ctx when one is present, so callers
// can group store operations atomically via platformtx.WithTx.
func (s *Postgres) q(ctx context.Context) querier {
	if tx, ok := platformtx.From(ctx); ok {
		return tx
	}
	return s.db
}

const ruleColumns = `id, name, rule_type, condition, action_type, action_message,
	priority, is_active, threshold_value, string_value, created_at, updated_at`

func (s *Postgres) ListActive(ctx context.Context) ([]models.Rule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM fraud_rules
		WHERE is_active = TRUE
		ORDER BY priority ASC, id ASC
	`
	rows, err := s.q(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}
	defer rows.Close()
	return scanRules(rows)
}

func (s *Postgres) ListActiveByType(ctx context.Context, ruleType models.RuleType) ([]models.Rule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM fraud_rules
		WHERE is_active = TRUE AND rule_type = $1
		ORDER BY priority ASC, id ASC
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, string(ruleType))
	if err != nil {
		return nil, fmt.Errorf("list active rules by type: %w", err)
	}
	defer rows.Close()
	return scanRules(rows)
}

func (s *Postgres) CountActive(ctx context.Context) (int, error) {
	var count int
	err := s.q(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM fraud_rules WHERE is_active = TRUE`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active rules: %w", err)
	}
	return count, nil
}

func (s *Postgres) List(ctx context.Context, offset, limit int) ([]models.Rule, int, error) {
	var total int
	if err := s.q(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM fraud_rules`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count rules: %w", err)
	}

	query := `
		SELECT ` + ruleColumns + `
		FROM fraud_rules
		ORDER BY priority ASC, id ASC
		OFFSET $1 LIMIT $2
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	rules, err := scanRules(rows)
	if err != nil {
		return nil, 0, err
	}
	return rules, total, nil
}

func (s *Postgres) Save(ctx context.Context, rule models.Rule) (models.Rule, error) {
	query := `
		INSERT INTO fraud_rules (` + ruleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			rule_type = EXCLUDED.rule_type,
			condition = EXCLUDED.condition,
			action_type = EXCLUDED.action_type,
			action_message = EXCLUDED.action_message,
			priority = EXCLUDED.priority,
			is_active = EXCLUDED.is_active,
			threshold_value = EXCLUDED.threshold_value,
			string_value = EXCLUDED.string_value,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		rule.ID,
		rule.Name,
		string(rule.Type),
		rule.Condition,
		string(rule.Action),
		rule.ActionMessage,
		rule.Priority,
		rule.IsActive,
		nullDecimal(rule.ThresholdValue),
		nullString(rule.StringValue),
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Rule{}, sentinel.ErrConflict
		}
		return models.Rule{}, fmt.Errorf("save rule: %w", err)
	}
	return rule, nil
}

func (s *Postgres) FindByID(ctx context.Context, id string) (models.Rule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM fraud_rules
		WHERE id = $1
	`
	rule, err := scanRule(s.q(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Rule{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Rule{}, fmt.Errorf("find rule by id: %w", err)
	}
	return rule, nil
}

func (s *Postgres) DeleteByID(ctx context.Context, id string) error {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM fraud_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// scanner lets scanRule work for both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRule(row scanner) (models.Rule, error) {
	var (
		r         models.Rule
		ruleType  string
		action    string
		threshold sql.NullString
		strValue  sql.NullString
		createdAt time.Time
		updatedAt time.Time
	)
	err := row.Scan(
		&r.ID, &r.Name, &ruleType, &r.Condition, &action, &r.ActionMessage,
		&r.Priority, &r.IsActive, &threshold, &strValue, &createdAt, &updatedAt,
	)
	if err != nil {
		return models.Rule{}, err
	}
	r.Type = models.RuleType(ruleType)
	r.Action = models.ActionType(action)
	r.CreatedAt = createdAt
	r.UpdatedAt = updatedAt
	if threshold.Valid {
		d, err := decimal.NewFromString(threshold.String)
		if err != nil {
			return models.Rule{}, fmt.Errorf("parse threshold value: %w", err)
		}
		r.ThresholdValue = &d
	}
	if strValue.Valid {
		v := strValue.String
		r.StringValue = &v
	}
	return r, nil
}

func scanRules(rows *sql.Rows) ([]models.Rule, error) {
	var rules []models.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	return rules, nil
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
