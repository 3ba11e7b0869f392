package models

import "time"

const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusCanceled = "canceled"
	SubscriptionStatusTrialing = "trialing"
	SubscriptionStatusPaused   = "paused"
)

const BillingProviderPaddle = "paddle"

// Subscription mirrors a payment provider subscription and the internal plan
// it grants. Rows are matched by ExternalSubscriptionID and never hard-deleted.
type Subscription struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	UserID                 string     `gorm:"type:varchar(64);not null;index" json:"user_id"`
	Provider               string     `gorm:"type:varchar(20);not null;default:'paddle';index:idx_subscriptions_provider_status,priority:1" json:"provider"`
	ExternalSubscriptionID string     `gorm:"type:varchar(191);not null;uniqueIndex:ux_subscriptions_external_id" json:"external_subscription_id"`
	ExternalPriceID        *string    `gorm:"type:varchar(191);default:null;index" json:"external_price_id,omitempty"`
	PlanID                 string     `gorm:"type:varchar(50);not null;default:'free';index" json:"plan_id"`
	Status                 string     `gorm:"type:varchar(32);not null;default:'active';index:idx_subscriptions_provider_status,priority:2" json:"status"`
	CurrentPeriodStart     *time.Time `gorm:"type:timestamp;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd       *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd      bool       `gorm:"default:false" json:"cancel_at_period_end"`
	LastEventAt            *time.Time `gorm:"type:timestamp;default:null" json:"last_event_at,omitempty"`
	CreatedAt              time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsPaidActive reports whether the row counts toward recurring revenue.
func (s *Subscription) IsPaidActive() bool {
	return s != nil && s.Status == SubscriptionStatusActive && s.PlanID != "" && s.PlanID != "free"
}
