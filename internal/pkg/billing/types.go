package billing

import (
	"encoding/json"
	"strings"
	"time"
)

// EventKind is the closed set of Paddle notification types the reconciler
// understands. Anything else decodes to UnknownEvent.
type EventKind string

const (
	KindSubscriptionCreated   EventKind = "subscription.created"
	KindSubscriptionActivated EventKind = "subscription.activated"
	KindSubscriptionUpdated   EventKind = "subscription.updated"
	KindSubscriptionCanceled  EventKind = "subscription.canceled"
	KindSubscriptionPastDue   EventKind = "subscription.past_due"
	KindTransactionCompleted  EventKind = "transaction.completed"
)

// Outcome describes what applying an event did.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeUntracked Outcome = "untracked"
	OutcomeStale     Outcome = "stale"
)

// EventMeta carries the envelope fields shared by every event.
type EventMeta struct {
	EventID    string
	EventType  string
	OccurredAt *time.Time
}

func (m EventMeta) Meta() EventMeta { return m }

// Event is implemented by every decoded notification.
type Event interface {
	Meta() EventMeta
	isEvent()
}

// SubscriptionActivated covers both subscription.created and subscription.activated.
type SubscriptionActivated struct {
	EventMeta
	Subscription SubscriptionData
}

type SubscriptionUpdated struct {
	EventMeta
	Subscription SubscriptionData
}

type SubscriptionCanceled struct {
	EventMeta
	Subscription SubscriptionData
}

type SubscriptionPastDue struct {
	EventMeta
	Subscription SubscriptionData
}

// TransactionCompleted is recognized but carries no subscription state.
type TransactionCompleted struct {
	EventMeta
	TransactionID string
}

// UnknownEvent is any event type outside the closed set.
type UnknownEvent struct {
	EventMeta
}

func (SubscriptionActivated) isEvent() {}
func (SubscriptionUpdated) isEvent()   {}
func (SubscriptionCanceled) isEvent()  {}
func (SubscriptionPastDue) isEvent()   {}
func (TransactionCompleted) isEvent()  {}
func (UnknownEvent) isEvent()          {}

type BillingPeriod struct {
	StartsAt *time.Time `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at"`
}

type ScheduledChange struct {
	Action      string     `json:"action"`
	EffectiveAt *time.Time `json:"effective_at"`
}

// SubscriptionData is the strictly typed subset of a Paddle subscription entity.
type SubscriptionData struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	CustomData *struct {
		UserID string `json:"user_id"`
	} `json:"custom_data"`
	Items []struct {
		Price struct {
			ID string `json:"id"`
		} `json:"price"`
	} `json:"items"`
	CurrentBillingPeriod *BillingPeriod   `json:"current_billing_period"`
	ScheduledChange      *ScheduledChange `json:"scheduled_change"`
}

// UserID returns the application user id passed through checkout custom data.
func (d SubscriptionData) UserID() string {
	if d.CustomData == nil {
		return ""
	}
	return strings.TrimSpace(d.CustomData.UserID)
}

// PriceID returns the first item's price reference.
func (d SubscriptionData) PriceID() string {
	if len(d.Items) == 0 {
		return ""
	}
	return strings.TrimSpace(d.Items[0].Price.ID)
}

func (d SubscriptionData) PeriodStart() *time.Time {
	if d.CurrentBillingPeriod == nil {
		return nil
	}
	return d.CurrentBillingPeriod.StartsAt
}

func (d SubscriptionData) PeriodEnd() *time.Time {
	if d.CurrentBillingPeriod == nil {
		return nil
	}
	return d.CurrentBillingPeriod.EndsAt
}

// CancelScheduled reports whether the pending change is a cancellation.
func (d SubscriptionData) CancelScheduled() bool {
	return d.ScheduledChange != nil && strings.EqualFold(strings.TrimSpace(d.ScheduledChange.Action), "cancel")
}

type envelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt *time.Time      `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
	OccurredAt      *time.Time
}

// WebhookResult is returned by HandleWebhook.
type WebhookResult struct {
	EventType string
	Outcome   Outcome
	Duplicate bool
}
