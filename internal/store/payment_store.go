package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/voxscribe/api/internal/model"
)

const paymentColumns = `id, user_id, plan_id, provider_session_id, amount_cents, currency, status, error, created_at, updated_at`

// PaymentStore tracks checkout attempts keyed by provider session id.
type PaymentStore struct {
	db *sql.DB
}

func NewPaymentStore(db *sql.DB) *PaymentStore {
	return &PaymentStore{db: db}
}

// Create inserts a PENDING payment row for a new checkout session.
func (s *PaymentStore) Create(ctx context.Context, payment *model.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.New().String()
	}
	now := time.Now()
	payment.CreatedAt = now
	payment.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO payments (id, user_id, plan_id, provider_session_id, amount_cents, currency, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		payment.ID, payment.UserID, payment.PlanID, payment.ProviderSessionID,
		payment.AmountCents, payment.Currency, payment.Status, payment.CreatedAt, payment.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

// GetBySessionID returns the payment for a provider session, or
// ErrPaymentNotFound.
func (s *PaymentStore) GetBySessionID(ctx context.Context, sessionID string) (*model.Payment, error) {
	var p model.Payment
	var errMsg sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE provider_session_id = $1`, sessionID).
		Scan(&p.ID, &p.UserID, &p.PlanID, &p.ProviderSessionID, &p.AmountCents,
			&p.Currency, &p.Status, &errMsg, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}
	if errMsg.Valid {
		p.Error = &errMsg.String
	}
	return &p, nil
}

// MarkPaid flips a PENDING payment to PAID and reports whether this caller
// performed the flip. Replayed webhook deliveries lose the conditional
// update and must not re-apply the upgrade.
func (s *PaymentStore) MarkPaid(ctx context.Context, paymentID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE payments SET status = $2, updated_at = now() WHERE id = $1 AND status = $3`,
		paymentID, model.PaymentStatusPaid, model.PaymentStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to mark payment paid: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// MarkFailed records a terminal payment failure with its reason.
func (s *PaymentStore) MarkFailed(ctx context.Context, paymentID, reason string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE payments SET status = $2, error = $3, updated_at = now() WHERE id = $1 AND status = $4`,
		paymentID, model.PaymentStatusFailed, reason, model.PaymentStatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark payment failed: %w", err)
	}
	return nil
}
