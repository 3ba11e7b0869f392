package repository

import (
	"context"
	"time"

	"github.com/bossboard/bossboard/app/models"
	"gorm.io/gorm"
)

// ProfileRepository defines the interface for profile-related database operations
type ProfileRepository interface {
	GetByID(ctx context.Context, id string) (*models.Profile, error)
	List(ctx context.Context, offset, limit int) ([]models.Profile, error)
	Count(ctx context.Context) (int64, error)
	SetBannedUntil(ctx context.Context, id string, until *time.Time) (bool, error)
}

// BusinessRepository defines the interface for business-related database operations
type BusinessRepository interface {
	GetForUser(ctx context.Context, id, userID string) (*models.Business, error)
	FirstForUser(ctx context.Context, userID string) (*models.Business, error)
	Count(ctx context.Context) (int64, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	Profile  ProfileRepository
	Business BusinessRepository
}

// NewRepositories creates a new instance of all repositories. Business
// lookups go through a short-lived in-process cache.
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Profile:  NewProfileRepository(db),
		Business: NewCachedBusinessRepository(NewBusinessRepository(db), DefaultBusinessCacheSize, DefaultBusinessCacheTTL),
	}
}
