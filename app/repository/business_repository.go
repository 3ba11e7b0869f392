package repository

import (
	"context"
	"time"

	"github.com/bossboard/bossboard/app/models"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"gorm.io/gorm"
)

const (
	DefaultBusinessCacheSize = 1024
	DefaultBusinessCacheTTL  = 5 * time.Minute
)

type businessRepository struct {
	db *gorm.DB
}

// NewBusinessRepository creates a new business repository instance
func NewBusinessRepository(db *gorm.DB) BusinessRepository {
	return &businessRepository{db: db}
}

// GetForUser loads a business only if it belongs to userID.
func (r *businessRepository) GetForUser(ctx context.Context, id, userID string) (*models.Business, error) {
	var business models.Business
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&business).Error
	if err != nil {
		return nil, err
	}
	return &business, nil
}

// FirstForUser returns the user's oldest business.
func (r *businessRepository) FirstForUser(ctx context.Context, userID string) (*models.Business, error) {
	var business models.Business
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at ASC").First(&business).Error
	if err != nil {
		return nil, err
	}
	return &business, nil
}

func (r *businessRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Business{}).Count(&count).Error
	return count, err
}

// cachedBusinessRepository keeps recently used business rows in memory.
// Misses and errors are not cached.
type cachedBusinessRepository struct {
	next  BusinessRepository
	cache *expirable.LRU[string, models.Business]
}

// NewCachedBusinessRepository wraps next with an expiring LRU cache.
func NewCachedBusinessRepository(next BusinessRepository, size int, ttl time.Duration) BusinessRepository {
	return &cachedBusinessRepository{
		next:  next,
		cache: expirable.NewLRU[string, models.Business](size, nil, ttl),
	}
}

func (r *cachedBusinessRepository) GetForUser(ctx context.Context, id, userID string) (*models.Business, error) {
	key := userID + ":" + id
	if b, ok := r.cache.Get(key); ok {
		return &b, nil
	}
	b, err := r.next.GetForUser(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	r.cache.Add(key, *b)
	return b, nil
}

func (r *cachedBusinessRepository) FirstForUser(ctx context.Context, userID string) (*models.Business, error) {
	return r.next.FirstForUser(ctx, userID)
}

func (r *cachedBusinessRepository) Count(ctx context.Context) (int64, error) {
	return r.next.Count(ctx)
}
