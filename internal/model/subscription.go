package model

import "time"

// SubscriptionAccount is the per-user usage ledger. At most one account per
// user is active at any time; upgrading deactivates the old account and
// carries forward its unused minutes.
type SubscriptionAccount struct {
	ID                string     `json:"id"`
	UserID            string     `json:"userId"`
	PlanID            string     `json:"planId"`
	TotalLimitMinutes float64    `json:"totalLimitMinutes"`
	UsedMinutes       float64    `json:"usedMinutes"`
	IsPaid            bool       `json:"isPaid"`
	IsActive          bool       `json:"isActive"`
	StartDate         time.Time  `json:"startDate"`
	EndDate           *time.Time `json:"endDate,omitempty"`
}

// RemainingMinutes returns the uncommitted minutes left on the account,
// never negative.
func (a *SubscriptionAccount) RemainingMinutes() float64 {
	remaining := a.TotalLimitMinutes - a.UsedMinutes
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Plan is a purchasable quota tier.
type Plan struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Description       string  `json:"description,omitempty"`
	TotalLimitMinutes float64 `json:"totalLimitMinutes"`
	PriceCents        int64   `json:"priceCents"`
	Currency          string  `json:"currency"`
	IsPaid            bool    `json:"isPaid"`
	IsActive          bool    `json:"isActive"`
}

// UsageResponse is returned by GET /api/v1/subscription/usage.
type UsageResponse struct {
	PlanID            string  `json:"planId"`
	IsPaid            bool    `json:"isPaid"`
	TotalLimitMinutes float64 `json:"totalLimitMinutes"`
	UsedMinutes       float64 `json:"usedMinutes"`
	RemainingMinutes  float64 `json:"remainingMinutes"`
}
