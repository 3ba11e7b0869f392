package billing

import (
	"context"
	"errors"
	"time"

	"github.com/bossboard/bossboard/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the billing service.
type Repository interface {
	FindSubscription(ctx context.Context, externalID string) (*models.Subscription, error)
	UpsertSubscription(ctx context.Context, sub *models.Subscription) error
	UpdateSubscription(ctx context.Context, externalID string, updates map[string]interface{}) error
	UpdateSubscriptionsPlanByUser(ctx context.Context, userID, planID string) error
	SetProfilePlan(ctx context.Context, userID, planID string) error
	UpdateProfilePlan(ctx context.Context, userID, planID string) (bool, error)
	CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	GetWebhookEvent(ctx context.Context, id uint) (*models.BillingWebhookEvent, error)
	MarkWebhookEvent(ctx context.Context, id uint, status, processingError string) error
	ListFailedWebhookEvents(ctx context.Context, maxAttempts, limit int) ([]models.BillingWebhookEvent, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) FindSubscription(ctx context.Context, externalID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).Where("external_subscription_id = ?", externalID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) UpsertSubscription(ctx context.Context, sub *models.Subscription) error {
	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "external_subscription_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id",
			"provider",
			"external_price_id",
			"plan_id",
			"status",
			"current_period_start",
			"current_period_end",
			"last_event_at",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return db.Where("external_subscription_id = ?", sub.ExternalSubscriptionID).First(sub).Error
}

func (r *gormRepository) UpdateSubscription(ctx context.Context, externalID string, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("external_subscription_id = ?", externalID).
		Updates(updates).Error
}

func (r *gormRepository) UpdateSubscriptionsPlanByUser(ctx context.Context, userID, planID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("user_id = ?", userID).
		Update("plan_id", planID).Error
}

// SetProfilePlan writes the plan pointer, creating the profile row if the
// identity provider has not synced it yet.
func (r *gormRepository) SetProfilePlan(ctx context.Context, userID, planID string) error {
	profile := &models.Profile{ID: userID, PlanID: planID}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"plan_id", "updated_at"}),
	}).Create(profile).Error
}

func (r *gormRepository) UpdateProfilePlan(ctx context.Context, userID, planID string) (bool, error) {
	db := r.db.WithContext(ctx)
	var profile models.Profile
	if err := db.Select("id").Where("id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, db.Model(&models.Profile{}).Where("id = ?", userID).Update("plan_id", planID).Error
}

func (r *gormRepository) CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	db := r.db.WithContext(ctx)
	tx := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	var stored models.BillingWebhookEvent
	if err := db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	// RowsAffected is 1 for a duplicate under clientFoundRows; only a fresh
	// insert hands back the auto-increment id of the stored row.
	created := tx.RowsAffected > 0 && event.ID != 0 && event.ID == stored.ID
	return created, &stored, nil
}

func (r *gormRepository) GetWebhookEvent(ctx context.Context, id uint) (*models.BillingWebhookEvent, error) {
	var event models.BillingWebhookEvent
	if err := r.db.WithContext(ctx).First(&event, id).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *gormRepository) MarkWebhookEvent(ctx context.Context, id uint, status, processingError string) error {
	updates := map[string]interface{}{
		"status":           status,
		"processing_error": processingError,
		"attempts":         gorm.Expr("attempts + 1"),
	}
	if status == models.WebhookStatusProcessed {
		now := time.Now()
		updates["processed_at"] = &now
	}
	return r.db.WithContext(ctx).Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

func (r *gormRepository) ListFailedWebhookEvents(ctx context.Context, maxAttempts, limit int) ([]models.BillingWebhookEvent, error) {
	var events []models.BillingWebhookEvent
	err := r.db.WithContext(ctx).
		Where("status = ? AND attempts < ?", models.WebhookStatusFailed, maxAttempts).
		Order("id ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}
