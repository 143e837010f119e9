package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"fraudwatch/internal/transaction/models"
	"fraudwatch/pkg/platform/sentinel"
	platformtx "fraudwatch/pkg/platform/tx"
)

// Postgres persists checked transactions in PostgreSQL. The transaction_id
// column carries a unique constraint; a second insert for the same id
// surfaces as sentinel.ErrConflict, which keeps the first persisted decision
// immutable.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed transaction store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Postgres) q(ctx context.Context) querier {
	if tx, ok := platformtx.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Postgres) ExistsByID(ctx context.Context, transactionID string) (bool, error) {
	var exists bool
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM transactions WHERE transaction_id = $1)`,
		transactionID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check transaction exists: %w", err)
	}
	return exists, nil
}

func (s *Postgres) Save(ctx context.Context, txn models.Transaction) (models.Transaction, error) {
	originator, err := json.Marshal(txn.OriginatorDetails)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("marshal originator details: %w", err)
	}
	transfer, err := json.Marshal(txn.TransferDetails)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("marshal transfer details: %w", err)
	}

	query := `
		INSERT INTO transactions
			(transaction_id, amount, ip_address, originator_details,
			 transfer_details, status, status_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = s.q(ctx).ExecContext(ctx, query,
		txn.TransactionID,
		nullDecimal(txn.Amount),
		nullString(txn.IPAddress),
		originator,
		transfer,
		string(txn.Status),
		txn.StatusReason,
		txn.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.Transaction{}, sentinel.ErrConflict
		}
		return models.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	return txn, nil
}

func (s *Postgres) FindByTransactionID(ctx context.Context, transactionID string) (models.Transaction, error) {
	query := `
		SELECT transaction_id, amount, ip_address, originator_details,
			transfer_details, status, status_reason, created_at
		FROM transactions
		WHERE transaction_id = $1
	`
	var (
		txn        models.Transaction
		amount     sql.NullString
		ip         sql.NullString
		originator []byte
		transfer   []byte
		status     string
		createdAt  time.Time
	)
	err := s.q(ctx).QueryRowContext(ctx, query, transactionID).Scan(
		&txn.TransactionID, &amount, &ip, &originator,
		&transfer, &status, &txn.StatusReason, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Transaction{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Transaction{}, fmt.Errorf("find transaction: %w", err)
	}

	txn.Status = models.TransactionStatus(status)
	txn.CreatedAt = createdAt
	if amount.Valid {
		d, err := decimal.NewFromString(amount.String)
		if err != nil {
			return models.Transaction{}, fmt.Errorf("parse transaction amount: %w", err)
		}
		txn.Amount = &d
	}
	if ip.Valid {
		v := ip.String
		txn.IPAddress = &v
	}
	if len(originator) > 0 {
		if err := json.Unmarshal(originator, &txn.OriginatorDetails); err != nil {
			return models.Transaction{}, fmt.Errorf("unmarshal originator details: %w", err)
		}
	}
	if len(transfer) > 0 {
		if err := json.Unmarshal(transfer, &txn.TransferDetails); err != nil {
			return models.Transaction{}, fmt.Errorf("unmarshal transfer details: %w", err)
		}
	}
	return txn, nil
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
