package credits

import (
	"context"
	"time"

	"github.com/bossboard/bossboard/app/models"
	"gorm.io/gorm"
)

// Repository is the persistence boundary of the ledger.
type Repository interface {
	SumByFeatureSince(ctx context.Context, userID string, since time.Time) (map[string]int, error)
	Append(ctx context.Context, rec *models.UsageRecord) error
}

type gormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

type featureSum struct {
	Feature string
	Credits int
}

func (r *gormRepository) SumByFeatureSince(ctx context.Context, userID string, since time.Time) (map[string]int, error) {
	var rows []featureSum
	err := r.db.WithContext(ctx).
		Model(&models.UsageRecord{}).
		Select("feature, COALESCE(SUM(credits_used), 0) AS credits").
		Where("user_id = ? AND created_at >= ?", userID, since).
		Group("feature").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.Feature] += row.Credits
	}
	return out, nil
}

func (r *gormRepository) Append(ctx context.Context, rec *models.UsageRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}
