package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voxscribe/api/internal/model"
)

// execer is satisfied by both *sql.DB and *sql.Tx so ledger mutations can
// run standalone or inside the admission transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

const accountColumns = `id, user_id, plan_id, total_limit_minutes, used_minutes, is_paid, is_active, start_date, end_date`

// SubscriptionStore is the usage ledger. One row per active account; all
// minute mutations are single guarded UPDATE statements.
type SubscriptionStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSubscriptionStore(db *sql.DB, logger *zap.Logger) *SubscriptionStore {
	return &SubscriptionStore{db: db, logger: logger}
}

// GetActive returns the user's active account, or ErrAccountNotFound.
func (s *SubscriptionStore) GetActive(ctx context.Context, userID string) (*model.SubscriptionAccount, error) {
	return scanAccount(s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM subscriptions WHERE user_id = $1 AND is_active`, userID))
}

// CreateFreeIfAbsent returns the active account, creating one on the free
// plan if the user has none. The partial unique index on (user_id) WHERE
// is_active makes the create race-safe across API instances.
func (s *SubscriptionStore) CreateFreeIfAbsent(ctx context.Context, userID string, freePlan *model.Plan) (*model.SubscriptionAccount, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions (id, user_id, plan_id, total_limit_minutes, used_minutes, is_paid, is_active)
		 VALUES ($1, $2, $3, $4, 0, FALSE, TRUE)
		 ON CONFLICT (user_id) WHERE is_active DO NOTHING`,
		uuid.New().String(), userID, freePlan.ID, freePlan.TotalLimitMinutes)
	if err != nil {
		return nil, fmt.Errorf("failed to create free account: %w", err)
	}
	return s.GetActive(ctx, userID)
}

// CanAdmit checks whether the requested duration fits in the account's
// remaining quota. First-time users get a free account instead of failing.
// The check is advisory; the authoritative guard is the conditional
// increment inside the admission transaction.
func (s *SubscriptionStore) CanAdmit(ctx context.Context, userID string, requestedSeconds int, freePlan *model.Plan) (*model.SubscriptionAccount, error) {
	account, err := s.CreateFreeIfAbsent(ctx, userID, freePlan)
	if err != nil {
		return nil, err
	}

	usedSeconds := account.UsedMinutes * 60
	limitSeconds := account.TotalLimitMinutes * 60
	if usedSeconds >= limitSeconds || usedSeconds+float64(requestedSeconds) > limitSeconds {
		return nil, fmt.Errorf("%w: %.2f minutes remaining", model.ErrQuotaExceeded, account.RemainingMinutes())
	}
	return account, nil
}

// IncrementUsage atomically adds committed minutes to the active account.
// The update is guarded so the ledger can never be pushed past the limit by
// concurrent admissions.
func (s *SubscriptionStore) IncrementUsage(ctx context.Context, userID string, minutes float64) error {
	return incrementUsage(ctx, s.db, userID, minutes)
}

// DecrementUsage atomically returns minutes to the active account, clamped
// at zero to protect against double-compensation drift.
func (s *SubscriptionStore) DecrementUsage(ctx context.Context, userID string, minutes float64) error {
	return decrementUsage(ctx, s.db, userID, minutes)
}

// ResetFreeTier zeroes used minutes on every active free account. Invoked
// by the scheduled reset task, never user-triggered.
func (s *SubscriptionStore) ResetFreeTier(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET used_minutes = 0 WHERE is_paid = FALSE AND is_active`)
	if err != nil {
		return 0, fmt.Errorf("failed to reset free tier usage: %w", err)
	}
	return res.RowsAffected()
}

// Upgrade deactivates the user's current account and creates a new active
// one on the given plan. Unused minutes on a still-active, non-exhausted
// account carry forward into the new limit.
func (s *SubscriptionStore) Upgrade(ctx context.Context, userID string, plan *model.Plan) (*model.SubscriptionAccount, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin upgrade transaction: %w", err)
	}
	defer tx.Rollback()

	carryover := 0.0
	old, err := scanAccount(tx.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM subscriptions WHERE user_id = $1 AND is_active FOR UPDATE`, userID))
	switch {
	case err == nil:
		if old.UsedMinutes < old.TotalLimitMinutes {
			carryover = old.TotalLimitMinutes - old.UsedMinutes
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE subscriptions SET is_active = FALSE, end_date = now() WHERE id = $1`, old.ID); err != nil {
			return nil, fmt.Errorf("failed to deactivate account: %w", err)
		}
	case errors.Is(err, model.ErrAccountNotFound):
		// first account for this user
	default:
		return nil, err
	}

	account := &model.SubscriptionAccount{
		ID:                uuid.New().String(),
		UserID:            userID,
		PlanID:            plan.ID,
		TotalLimitMinutes: plan.TotalLimitMinutes + carryover,
		UsedMinutes:       0,
		IsPaid:            plan.IsPaid,
		IsActive:          true,
		StartDate:         time.Now(),
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO subscriptions (id, user_id, plan_id, total_limit_minutes, used_minutes, is_paid, is_active, start_date)
		 VALUES ($1, $2, $3, $4, 0, $5, TRUE, $6)`,
		account.ID, account.UserID, account.PlanID, account.TotalLimitMinutes, account.IsPaid, account.StartDate); err != nil {
		return nil, fmt.Errorf("failed to create upgraded account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit upgrade: %w", err)
	}

	s.logger.Info("subscription upgraded",
		zap.String("userId", userID),
		zap.String("planId", plan.ID),
		zap.Float64("carryoverMinutes", carryover))
	return account, nil
}

func incrementUsage(ctx context.Context, q execer, userID string, minutes float64) error {
	res, err := q.ExecContext(ctx,
		`UPDATE subscriptions
		 SET used_minutes = used_minutes + $2
		 WHERE user_id = $1 AND is_active AND used_minutes + $2 <= total_limit_minutes`,
		userID, minutes)
	if err != nil {
		return fmt.Errorf("failed to increment usage: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		var exists bool
		if err := q.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM subscriptions WHERE user_id = $1 AND is_active)`, userID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check account existence: %w", err)
		}
		if exists {
			return model.ErrQuotaExceeded
		}
		return model.ErrAccountNotFound
	}
	return nil
}

func decrementUsage(ctx context.Context, q execer, userID string, minutes float64) error {
	res, err := q.ExecContext(ctx,
		`UPDATE subscriptions
		 SET used_minutes = GREATEST(used_minutes - $2, 0)
		 WHERE user_id = $1 AND is_active`,
		userID, minutes)
	if err != nil {
		return fmt.Errorf("failed to decrement usage: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return model.ErrAccountNotFound
	}
	return nil
}

func scanAccount(row *sql.Row) (*model.SubscriptionAccount, error) {
	var account model.SubscriptionAccount
	var endDate sql.NullTime
	err := row.Scan(&account.ID, &account.UserID, &account.PlanID,
		&account.TotalLimitMinutes, &account.UsedMinutes,
		&account.IsPaid, &account.IsActive, &account.StartDate, &endDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan subscription account: %w", err)
	}
	if endDate.Valid {
		account.EndDate = &endDate.Time
	}
	return &account, nil
}
