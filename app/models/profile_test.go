package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProfileIsBanned(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	assert.False(t, (*Profile)(nil).IsBanned(now))
	assert.False(t, (&Profile{}).IsBanned(now))
	assert.True(t, (&Profile{BannedUntil: &future}).IsBanned(now))
	assert.False(t, (&Profile{BannedUntil: &past}).IsBanned(now))
}

func TestProfileEffectivePlanID(t *testing.T) {
	assert.Equal(t, "free", (*Profile)(nil).EffectivePlanID())
	assert.Equal(t, "free", (&Profile{}).EffectivePlanID())
	assert.Equal(t, "pro", (&Profile{PlanID: "pro"}).EffectivePlanID())
}

func TestSubscriptionIsPaidActive(t *testing.T) {
	assert.True(t, (&Subscription{Status: SubscriptionStatusActive, PlanID: "pro"}).IsPaidActive())
	assert.False(t, (&Subscription{Status: SubscriptionStatusActive, PlanID: "free"}).IsPaidActive())
	assert.False(t, (&Subscription{Status: SubscriptionStatusPastDue, PlanID: "pro"}).IsPaidActive())
	assert.False(t, (*Subscription)(nil).IsPaidActive())
}
