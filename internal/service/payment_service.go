package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"

	"github.com/voxscribe/api/internal/config"
	"github.com/voxscribe/api/internal/model"
	"github.com/voxscribe/api/internal/store"
)

// PaymentService creates Stripe checkout sessions and finalizes them from
// webhook events. A finalized payment upgrades the subscription.
type PaymentService struct {
	payments      *store.PaymentStore
	plans         *store.PlanStore
	subscriptions *SubscriptionService
	cfg           config.StripeConfig
	logger        *zap.Logger
}

func NewPaymentService(payments *store.PaymentStore, plans *store.PlanStore, subscriptions *SubscriptionService, cfg config.StripeConfig, logger *zap.Logger) *PaymentService {
	stripe.Key = cfg.SecretKey
	return &PaymentService{
		payments:      payments,
		plans:         plans,
		subscriptions: subscriptions,
		cfg:           cfg,
		logger:        logger,
	}
}

// CreateCheckout starts a hosted checkout for a paid plan and records a
// PENDING payment keyed by the session id.
func (s *PaymentService) CreateCheckout(ctx context.Context, userID, planID string) (*model.CheckoutResponse, error) {
	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if !plan.IsPaid {
		return nil, fmt.Errorf("%w: plan %q is not purchasable", model.ErrPlanNotFound, plan.Name)
	}

	params := &stripe.CheckoutSessionParams{
		SuccessURL: stripe.String(s.cfg.SuccessURL),
		CancelURL:  stripe.String(s.cfg.CancelURL),
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(plan.Currency),
					UnitAmount: stripe.Int64(plan.PriceCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(plan.Name),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.AddMetadata("userId", userID)
	params.AddMetadata("planId", plan.ID)

	sess, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	payment := &model.Payment{
		UserID:            userID,
		PlanID:            plan.ID,
		ProviderSessionID: sess.ID,
		AmountCents:       plan.PriceCents,
		Currency:          plan.Currency,
		Status:            model.PaymentStatusPending,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, err
	}

	return &model.CheckoutResponse{SessionID: sess.ID, CheckoutURL: sess.URL}, nil
}

// HandleWebhook verifies and dispatches a Stripe webhook delivery.
// Deliveries are at-least-once; finalization is idempotent on the payment
// row's PENDING->PAID transition.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEvent(payload, signature, s.cfg.WebhookSecret)
	if err != nil {
		return fmt.Errorf("webhook signature verification failed: %w", err)
	}

	var sess stripe.CheckoutSession
	switch event.Type {
	case "checkout.session.completed":
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return fmt.Errorf("failed to parse checkout session: %w", err)
		}
		return s.finalize(ctx, sess.ID)
	case "checkout.session.expired":
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return fmt.Errorf("failed to parse checkout session: %w", err)
		}
		return s.expire(ctx, sess.ID)
	default:
		s.logger.Debug("ignoring webhook event", zap.String("type", string(event.Type)))
		return nil
	}
}

func (s *PaymentService) finalize(ctx context.Context, sessionID string) error {
	payment, err := s.payments.GetBySessionID(ctx, sessionID)
	if err != nil {
		return err
	}

	won, err := s.payments.MarkPaid(ctx, payment.ID)
	if err != nil {
		return err
	}
	if !won {
		s.logger.Info("payment already finalized", zap.String("paymentId", payment.ID))
		return nil
	}

	if _, err := s.subscriptions.Upgrade(ctx, payment.UserID, payment.PlanID); err != nil {
		// Payment is marked paid but the plan change did not land.
		s.logger.Error("upgrade after payment failed",
			zap.String("paymentId", payment.ID),
			zap.String("userId", payment.UserID),
			zap.Error(err))
		return err
	}

	s.logger.Info("payment finalized",
		zap.String("paymentId", payment.ID),
		zap.String("userId", payment.UserID),
		zap.String("planId", payment.PlanID))
	return nil
}

func (s *PaymentService) expire(ctx context.Context, sessionID string) error {
	payment, err := s.payments.GetBySessionID(ctx, sessionID)
	if err != nil {
		return err
	}
	return s.payments.MarkFailed(ctx, payment.ID, "checkout session expired")
}
