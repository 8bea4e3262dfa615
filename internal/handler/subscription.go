package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/voxscribe/api/internal/middleware"
	"github.com/voxscribe/api/internal/service"
	"github.com/voxscribe/api/pkg/response"
)

type SubscriptionHandler struct {
	subscriptions *service.SubscriptionService
}

func NewSubscriptionHandler(subscriptions *service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptions: subscriptions}
}

// Usage handles GET /api/v1/subscription/usage
func (h *SubscriptionHandler) Usage(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	usage, err := h.subscriptions.GetUsage(c.Context(), userID)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, usage)
}

// Plans handles GET /api/v1/plans
func (h *SubscriptionHandler) Plans(c *fiber.Ctx) error {
	plans, err := h.subscriptions.ListPlans(c.Context())
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, plans)
}
