package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/civicgate/payment-orchestrator/internal/domain"
)

// InstrumentRepository implements ports.InstrumentRepository with raw SQL
type InstrumentRepository struct {
	db *Executor
}

func NewInstrumentRepository(db *Executor) *InstrumentRepository {
	return &InstrumentRepository{db: db}
}

const instrumentColumns = `id, customer_id, merchant_id, type, last_four, brand, exp_month, exp_year,
	bank_name, account_type, is_default, is_enabled, status, created_at, updated_at, last_used_at`

// ListByCustomer returns the customer's instruments, default first then
// newest first, matching the order the portal renders them in
func (r *InstrumentRepository) ListByCustomer(ctx context.Context, merchantID, customerID string) ([]*domain.PaymentInstrument, error) {
	query := `SELECT ` + instrumentColumns + `
		FROM payment_instruments
		WHERE merchant_id = $1 AND customer_id = $2 AND is_enabled = TRUE
		ORDER BY is_default DESC, created_at DESC`

	rows, err := r.db.Pool().Query(ctx, query, merchantID, customerID)
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}
	defer rows.Close()

	var instruments []*domain.PaymentInstrument
	for rows.Next() {
		instrument, err := scanInstrument(rows)
		if err != nil {
			return nil, err
		}
		instruments = append(instruments, instrument)
	}
	return instruments, rows.Err()
}

func (r *InstrumentRepository) GetByID(ctx context.Context, id string) (*domain.PaymentInstrument, error) {
	query := `SELECT ` + instrumentColumns + ` FROM payment_instruments WHERE id = $1`

	row := r.db.Pool().QueryRow(ctx, query, id)
	instrument, err := scanInstrument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrInstrumentNotFound
		}
		return nil, err
	}
	return instrument, nil
}

// SetDefault makes the instrument the customer's default. Clearing the old
// default and setting the new one happen in one transaction so two
// concurrent calls cannot leave the customer with two defaults.
func (r *InstrumentRepository) SetDefault(ctx context.Context, merchantID, customerID, id string) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		// Clear first: a partial unique index enforces one default per
		// customer, so the old flag must drop before the new one is set
		if _, err := tx.Exec(ctx, `
			UPDATE payment_instruments
			SET is_default = FALSE, updated_at = NOW()
			WHERE merchant_id = $1 AND customer_id = $2 AND id <> $3 AND is_default = TRUE`,
			merchantID, customerID, id); err != nil {
			return fmt.Errorf("clear previous default: %w", err)
		}

		tag, err := tx.Exec(ctx, `
			UPDATE payment_instruments
			SET is_default = TRUE, updated_at = NOW()
			WHERE id = $1 AND merchant_id = $2 AND customer_id = $3 AND is_enabled = TRUE`,
			id, merchantID, customerID)
		if err != nil {
			return fmt.Errorf("set default instrument: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrInstrumentNotFound
		}
		return nil
	})
}

// Disable soft-removes an instrument. Historical attempts keep referencing
// it, so rows are never deleted.
func (r *InstrumentRepository) Disable(ctx context.Context, id string) error {
	tag, err := r.db.Pool().Exec(ctx, `
		UPDATE payment_instruments
		SET is_enabled = FALSE, is_default = FALSE, status = $2, updated_at = NOW()
		WHERE id = $1`,
		id, domain.InstrumentStatusDisabled)
	if err != nil {
		return fmt.Errorf("disable instrument: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInstrumentNotFound
	}
	return nil
}

func (r *InstrumentRepository) TouchLastUsed(ctx context.Context, id string) error {
	_, err := r.db.Pool().Exec(ctx, `
		UPDATE payment_instruments
		SET last_used_at = NOW(), updated_at = NOW()
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("touch instrument: %w", err)
	}
	return nil
}

func scanInstrument(row pgx.Row) (*domain.PaymentInstrument, error) {
	var pi domain.PaymentInstrument
	err := row.Scan(
		&pi.ID, &pi.CustomerID, &pi.MerchantID, &pi.Type, &pi.LastFour,
		&pi.Brand, &pi.ExpMonth, &pi.ExpYear,
		&pi.BankName, &pi.AccountType,
		&pi.IsDefault, &pi.IsEnabled, &pi.Status,
		&pi.CreatedAt, &pi.UpdatedAt, &pi.LastUsedAt,
	)
	if err != nil {
		return nil, err
	}
	return &pi, nil
}
