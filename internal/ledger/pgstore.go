package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is a Postgres-backed Store. Schema lives in migrations/.
type PGStore struct {
	Pool *pgxpool.Pool
}

var _ Store = PGStore{}

// FindByReference returns the transaction with the given reference.
func (s PGStore) FindByReference(ctx context.Context, reference string) (Transaction, error) {
	var tx Transaction
	row := s.Pool.QueryRow(ctx, `
		SELECT id, reference, amount, currency, status, status_message, created_at, updated_at
		FROM transactions
		WHERE reference = $1`, reference)
	var status string
	err := row.Scan(&tx.ID, &tx.Reference, &tx.Amount, &tx.Currency, &status, &tx.StatusMessage, &tx.CreatedAt, &tx.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, ErrNotFound
	}
	if err != nil {
		return Transaction{}, fmt.Errorf("find transaction %q: %w", reference, err)
	}
	tx.Status = Status(status)
	return tx, nil
}

// MarkPaid transitions the transaction to paid.
func (s PGStore) MarkPaid(ctx context.Context, reference, message string) error {
	return s.setStatus(ctx, reference, StatusPaid, message)
}

// MarkFailed transitions the transaction to failed.
func (s PGStore) MarkFailed(ctx context.Context, reference, message string) error {
	return s.setStatus(ctx, reference, StatusFailed, message)
}

// MarkCanceled transitions the transaction to canceled.
func (s PGStore) MarkCanceled(ctx context.Context, reference, message string) error {
	return s.setStatus(ctx, reference, StatusCanceled, message)
}

// setStatus applies the transition and records an event, both skipped when the
// status is already current so redeliveries stay side-effect free.
func (s PGStore) setStatus(ctx context.Context, reference string, status Status, message string) error {
	dbtx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transition: %w", err)
	}
	defer func() { _ = dbtx.Rollback(ctx) }()

	var from string
	err = dbtx.QueryRow(ctx,
		`SELECT status FROM transactions WHERE reference = $1 FOR UPDATE`, reference,
	).Scan(&from)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock transaction %q: %w", reference, err)
	}
	if Status(from) == status {
		return dbtx.Commit(ctx)
	}
	if _, err := dbtx.Exec(ctx, `
		UPDATE transactions
		SET status = $2, status_message = $3, updated_at = now()
		WHERE reference = $1`, reference, string(status), message); err != nil {
		return fmt.Errorf("update transaction %q: %w", reference, err)
	}
	if _, err := dbtx.Exec(ctx, `
		INSERT INTO transaction_events (reference, from_status, to_status, message)
		VALUES ($1, $2, $3, $4)`, reference, from, string(status), message); err != nil {
		return fmt.Errorf("record transition %q: %w", reference, err)
	}
	return dbtx.Commit(ctx)
}
