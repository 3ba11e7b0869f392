package billing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bossboard/bossboard/app/models"
	"gorm.io/gorm"
)

type memoryRepo struct {
	mu       sync.Mutex
	subs     map[string]models.Subscription
	profiles map[string]string
	events   []models.BillingWebhookEvent
	writes   int
	failWith error
	// foundRows makes duplicate inserts report created, like MySQL with
	// clientFoundRows.
	foundRows bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		subs:     map[string]models.Subscription{},
		profiles: map[string]string{},
	}
}

func (r *memoryRepo) FindSubscription(_ context.Context, externalID string) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[externalID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &sub, nil
}

func (r *memoryRepo) UpsertSubscription(_ context.Context, sub *models.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	r.writes++
	if existing, ok := r.subs[sub.ExternalSubscriptionID]; ok {
		sub.ID = existing.ID
		sub.CancelAtPeriodEnd = existing.CancelAtPeriodEnd
		sub.CreatedAt = existing.CreatedAt
	} else {
		sub.ID = uint(len(r.subs) + 1)
	}
	r.subs[sub.ExternalSubscriptionID] = *sub
	return nil
}

func (r *memoryRepo) UpdateSubscription(_ context.Context, externalID string, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	sub, ok := r.subs[externalID]
	if !ok {
		return nil
	}
	r.writes++
	for k, v := range updates {
		switch k {
		case "external_price_id":
			sub.ExternalPriceID = v.(*string)
		case "plan_id":
			sub.PlanID = v.(string)
		case "status":
			sub.Status = v.(string)
		case "current_period_start":
			sub.CurrentPeriodStart = v.(*time.Time)
		case "current_period_end":
			sub.CurrentPeriodEnd = v.(*time.Time)
		case "cancel_at_period_end":
			sub.CancelAtPeriodEnd = v.(bool)
		case "last_event_at":
			sub.LastEventAt = v.(*time.Time)
		default:
			return errors.New("unexpected column " + k)
		}
	}
	r.subs[externalID] = sub
	return nil
}

func (r *memoryRepo) UpdateSubscriptionsPlanByUser(_ context.Context, userID, planID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, sub := range r.subs {
		if sub.UserID == userID {
			sub.PlanID = planID
			r.subs[id] = sub
		}
	}
	return nil
}

func (r *memoryRepo) SetProfilePlan(_ context.Context, userID, planID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	r.writes++
	r.profiles[userID] = planID
	return nil
}

func (r *memoryRepo) UpdateProfilePlan(_ context.Context, userID, planID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.profiles[userID]; !ok {
		return false, nil
	}
	r.profiles[userID] = planID
	return true, nil
}

func (r *memoryRepo) CreateWebhookEventIfNotExists(_ context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.events {
		if r.events[i].Provider == event.Provider && r.events[i].ProviderEventID == event.ProviderEventID {
			stored := r.events[i]
			return r.foundRows, &stored, nil
		}
	}
	event.ID = uint(len(r.events) + 1)
	r.events = append(r.events, *event)
	stored := *event
	return true, &stored, nil
}

func (r *memoryRepo) GetWebhookEvent(_ context.Context, id uint) (*models.BillingWebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.events {
		if r.events[i].ID == id {
			stored := r.events[i]
			return &stored, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memoryRepo) MarkWebhookEvent(_ context.Context, id uint, status, processingError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.events {
		if r.events[i].ID == id {
			r.events[i].Status = status
			r.events[i].ProcessingError = processingError
			r.events[i].Attempts++
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *memoryRepo) ListFailedWebhookEvents(_ context.Context, maxAttempts, limit int) ([]models.BillingWebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.BillingWebhookEvent
	for _, e := range r.events {
		if e.Status == models.WebhookStatusFailed && e.Attempts < maxAttempts {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memoryRepo) sub(id string) models.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subs[id]
}

func (r *memoryRepo) profilePlan(userID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.profiles[userID]
}
