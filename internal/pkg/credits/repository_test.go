package credits

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bossboard/bossboard/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestGormRepositorySumByFeatureSince(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormRepository(db)
	since := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT feature, COALESCE(SUM(credits_used), 0) AS credits FROM `usage_records` WHERE user_id = ? AND created_at >= ?")).
		WithArgs("u1", since).
		WillReturnRows(sqlmock.NewRows([]string{"feature", "credits"}).
			AddRow("caption", 4).
			AddRow("script", 6))

	sums, err := repo.SumByFeatureSince(context.Background(), "u1", since)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"caption": 4, "script": 6}, sums)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormRepositoryAppend(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormRepository(db)
	at := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `usage_records`")).
		WithArgs("u1", "b1", "script", 3, at).
		WillReturnResult(sqlmock.NewResult(7, 1))

	rec := &models.UsageRecord{UserID: "u1", BusinessID: "b1", Feature: "script", CreditsUsed: 3, CreatedAt: at}
	require.NoError(t, repo.Append(context.Background(), rec))
	assert.Equal(t, uint(7), rec.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
