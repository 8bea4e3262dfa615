package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/voxscribe/api/internal/middleware"
	"github.com/voxscribe/api/internal/model"
	"github.com/voxscribe/api/internal/service"
	"github.com/voxscribe/api/pkg/response"
)

type PaymentHandler struct {
	payments  *service.PaymentService
	validator *validator.Validate
}

func NewPaymentHandler(payments *service.PaymentService, v *validator.Validate) *PaymentHandler {
	return &PaymentHandler{payments: payments, validator: v}
}

// Checkout handles POST /api/v1/payments/checkout
func (h *PaymentHandler) Checkout(c *fiber.Ctx) error {
	var req model.CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	userID := middleware.GetUserID(c)
	result, err := h.payments.CreateCheckout(c.Context(), userID, req.PlanID)
	if err != nil {
		if errors.Is(err, model.ErrPlanNotFound) {
			return response.NotFound(c, "Plan not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Created(c, result)
}

// Webhook handles POST /api/v1/payments/webhook. No auth: Stripe signs the
// payload and the service verifies the signature.
func (h *PaymentHandler) Webhook(c *fiber.Ctx) error {
	signature := c.Get("Stripe-Signature")
	if err := h.payments.HandleWebhook(c.Context(), c.Body(), signature); err != nil {
		if errors.Is(err, model.ErrPaymentNotFound) {
			return response.NotFound(c, "Unknown payment session")
		}
		return response.PaymentError(c, err.Error())
	}
	return response.OK(c, fiber.Map{"received": true})
}
