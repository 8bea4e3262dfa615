package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/voxscribe/api/internal/model"
	"github.com/voxscribe/api/internal/store"
)

// SubscriptionService exposes the usage view and plan-change operations on
// top of the ledger.
type SubscriptionService struct {
	subscriptions *store.SubscriptionStore
	plans         *store.PlanStore
	freePlan      *model.Plan
	logger        *zap.Logger
}

func NewSubscriptionService(subscriptions *store.SubscriptionStore, plans *store.PlanStore, freePlan *model.Plan, logger *zap.Logger) *SubscriptionService {
	return &SubscriptionService{
		subscriptions: subscriptions,
		plans:         plans,
		freePlan:      freePlan,
		logger:        logger,
	}
}

// GetUsage returns the user's quota position, creating a free account for
// first-time users.
func (s *SubscriptionService) GetUsage(ctx context.Context, userID string) (*model.UsageResponse, error) {
	account, err := s.subscriptions.CreateFreeIfAbsent(ctx, userID, s.freePlan)
	if err != nil {
		return nil, err
	}
	return &model.UsageResponse{
		PlanID:            account.PlanID,
		IsPaid:            account.IsPaid,
		TotalLimitMinutes: account.TotalLimitMinutes,
		UsedMinutes:       account.UsedMinutes,
		RemainingMinutes:  account.RemainingMinutes(),
	}, nil
}

// Upgrade moves the user onto a paid plan, carrying forward unused minutes.
func (s *SubscriptionService) Upgrade(ctx context.Context, userID, planID string) (*model.SubscriptionAccount, error) {
	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if !plan.IsPaid {
		return nil, fmt.Errorf("%w: cannot upgrade to free plan %q", model.ErrPlanNotFound, plan.Name)
	}
	return s.subscriptions.Upgrade(ctx, userID, plan)
}

// ListPlans returns the purchasable catalog.
func (s *SubscriptionService) ListPlans(ctx context.Context) ([]model.Plan, error) {
	return s.plans.ListActive(ctx)
}

// ResetFreeTierUsage zeroes usage for every active free account. Called by
// the scheduled reset task only.
func (s *SubscriptionService) ResetFreeTierUsage(ctx context.Context) (int64, error) {
	count, err := s.subscriptions.ResetFreeTier(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info("free tier usage reset", zap.Int64("accounts", count))
	return count, nil
}
