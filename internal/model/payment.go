package model

import "time"

// Payment tracks one checkout attempt against a plan.
type Payment struct {
	ID                string        `json:"id"`
	UserID            string        `json:"userId"`
	PlanID            string        `json:"planId"`
	ProviderSessionID string        `json:"providerSessionId"`
	AmountCents       int64         `json:"amountCents"`
	Currency          string        `json:"currency"`
	Status            PaymentStatus `json:"status"`
	Error             *string       `json:"error,omitempty"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// CheckoutRequest starts a checkout for a plan
type CheckoutRequest struct {
	PlanID string `json:"planId" validate:"required"`
}

// CheckoutResponse carries the hosted checkout URL
type CheckoutResponse struct {
	SessionID   string `json:"sessionId"`
	CheckoutURL string `json:"checkoutUrl"`
}
