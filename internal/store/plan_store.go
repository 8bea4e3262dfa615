package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/voxscribe/api/internal/model"
)

const planColumns = `id, name, description, total_limit_minutes, price_cents, currency, is_paid, is_active`

// PlanStore holds the purchasable plan catalog.
type PlanStore struct {
	db *sql.DB
}

func NewPlanStore(db *sql.DB) *PlanStore {
	return &PlanStore{db: db}
}

// Seed upserts the built-in plans. Limits and pricing come from config so
// deployments can tune them without a migration.
func (s *PlanStore) Seed(ctx context.Context, plans []model.Plan) error {
	for _, p := range plans {
		id := p.ID
		if id == "" {
			id = uuid.New().String()
		}
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO plans (id, name, description, total_limit_minutes, price_cents, currency, is_paid, is_active)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
			 ON CONFLICT (name) DO UPDATE SET
			   total_limit_minutes = EXCLUDED.total_limit_minutes,
			   price_cents = EXCLUDED.price_cents,
			   currency = EXCLUDED.currency,
			   is_paid = EXCLUDED.is_paid`,
			id, p.Name, p.Description, p.TotalLimitMinutes, p.PriceCents, p.Currency, p.IsPaid)
		if err != nil {
			return fmt.Errorf("failed to seed plan %q: %w", p.Name, err)
		}
	}
	return nil
}

// GetByID returns the plan, or ErrPlanNotFound.
func (s *PlanStore) GetByID(ctx context.Context, planID string) (*model.Plan, error) {
	return scanPlan(s.db.QueryRowContext(ctx,
		`SELECT `+planColumns+` FROM plans WHERE id = $1`, planID))
}

// GetByName returns the plan, or ErrPlanNotFound.
func (s *PlanStore) GetByName(ctx context.Context, name string) (*model.Plan, error) {
	return scanPlan(s.db.QueryRowContext(ctx,
		`SELECT `+planColumns+` FROM plans WHERE name = $1`, name))
}

// ListActive returns all purchasable plans, cheapest first.
func (s *PlanStore) ListActive(ctx context.Context) ([]model.Plan, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+planColumns+` FROM plans WHERE is_active ORDER BY price_cents`)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var plans []model.Plan
	for rows.Next() {
		var p model.Plan
		var desc sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &desc, &p.TotalLimitMinutes,
			&p.PriceCents, &p.Currency, &p.IsPaid, &p.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		p.Description = desc.String
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func scanPlan(row *sql.Row) (*model.Plan, error) {
	var p model.Plan
	var desc sql.NullString
	err := row.Scan(&p.ID, &p.Name, &desc, &p.TotalLimitMinutes,
		&p.PriceCents, &p.Currency, &p.IsPaid, &p.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan plan: %w", err)
	}
	p.Description = desc.String
	return &p, nil
}
