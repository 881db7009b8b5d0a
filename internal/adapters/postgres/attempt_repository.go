package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/civicgate/payment-orchestrator/internal/domain"
)

// AttemptRepository implements ports.AttemptRepository. The attempts table is
// the ledger the reconciler sweeps, so unresolved rows must stay queryable by
// age and status.
type AttemptRepository struct {
	db *Executor
}

func NewAttemptRepository(db *Executor) *AttemptRepository {
	return &AttemptRepository{db: db}
}

const attemptColumns = `id, session_id, customer_id, merchant_id, entity_type, entity_id, method,
	instrument_id, base_amount_cents, total_amount_cents, status,
	COALESCE(transaction_id, ''), COALESCE(failure_message, ''),
	created_at, updated_at, resolved_at`

func (r *AttemptRepository) Create(ctx context.Context, attempt *domain.PaymentAttempt) error {
	_, err := r.db.Pool().Exec(ctx, `
		INSERT INTO payment_attempts (
			id, session_id, customer_id, merchant_id, entity_type, entity_id, method,
			instrument_id, base_amount_cents, total_amount_cents, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())`,
		attempt.ID, attempt.SessionID, attempt.CustomerID, attempt.MerchantID,
		attempt.Entity.Type, attempt.Entity.ID, attempt.Method,
		attempt.InstrumentID, attempt.BaseAmountCents, attempt.TotalAmountCents,
		attempt.Status)
	if err != nil {
		return fmt.Errorf("create payment attempt: %w", err)
	}
	return nil
}

// Resolve records the submission result. resolved_at is only stamped for
// terminal statuses; unknown attempts remain open for the reconciler.
func (r *AttemptRepository) Resolve(ctx context.Context, id string, status domain.AttemptStatus, transactionID, failureMessage string) error {
	tag, err := r.db.Pool().Exec(ctx, `
		UPDATE payment_attempts
		SET status = $2,
			transaction_id = NULLIF($3, ''),
			failure_message = NULLIF($4, ''),
			resolved_at = CASE WHEN $2 IN ('succeeded', 'failed') THEN NOW() ELSE resolved_at END,
			updated_at = NOW()
		WHERE id = $1`,
		id, status, transactionID, failureMessage)
	if err != nil {
		return fmt.Errorf("resolve payment attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAttemptNotFound
	}
	return nil
}

func (r *AttemptRepository) GetByID(ctx context.Context, id string) (*domain.PaymentAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM payment_attempts WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *AttemptRepository) GetBySessionID(ctx context.Context, sessionID string) (*domain.PaymentAttempt, error) {
	query := `SELECT ` + attemptColumns + `
		FROM payment_attempts
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT 1`
	return r.getOne(ctx, query, sessionID)
}

// ListUnresolved returns pending and unknown attempts created before the
// cutoff, oldest first. Freshly submitted attempts are excluded by the
// cutoff so the reconciler never races an in-flight submission.
func (r *AttemptRepository) ListUnresolved(ctx context.Context, olderThan time.Time, limit int32) ([]*domain.PaymentAttempt, error) {
	rows, err := r.db.Pool().Query(ctx, `SELECT `+attemptColumns+`
		FROM payment_attempts
		WHERE status IN ('pending', 'unknown') AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2`,
		olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("list unresolved attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*domain.PaymentAttempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, attempt)
	}
	return attempts, rows.Err()
}

func (r *AttemptRepository) getOne(ctx context.Context, query string, arg any) (*domain.PaymentAttempt, error) {
	attempt, err := scanAttempt(r.db.Pool().QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAttemptNotFound
		}
		return nil, err
	}
	return attempt, nil
}

func scanAttempt(row pgx.Row) (*domain.PaymentAttempt, error) {
	var pa domain.PaymentAttempt
	err := row.Scan(
		&pa.ID, &pa.SessionID, &pa.CustomerID, &pa.MerchantID,
		&pa.Entity.Type, &pa.Entity.ID, &pa.Method,
		&pa.InstrumentID, &pa.BaseAmountCents, &pa.TotalAmountCents,
		&pa.Status, &pa.TransactionID, &pa.FailureMessage,
		&pa.CreatedAt, &pa.UpdatedAt, &pa.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return &pa, nil
}
