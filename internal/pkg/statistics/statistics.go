package statistics

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/bossboard/bossboard/app/models"
	"github.com/bossboard/bossboard/internal/pkg/cache"
	"github.com/bossboard/bossboard/internal/pkg/credits"
	"github.com/bossboard/bossboard/internal/pkg/plans"
)

const (
	CacheKeyOverview = "statistics:admin:overview"
	CacheKeyRevenue  = "statistics:admin:revenue"
	CacheKeyUsage    = "statistics:admin:usage"
	CacheExpiration  = 5 * time.Minute

	// CostPerCredit is the estimated provider cost of one credit in USD.
	CostPerCredit = 0.015
	topUsersLimit = 10
)

type Overview struct {
	TotalUsers          int64            `json:"totalUsers"`
	TotalBusinesses     int64            `json:"totalBusinesses"`
	TotalCreditsUsed    int64            `json:"totalCreditsUsed"`
	ActiveSubscriptions int64            `json:"activeSubscriptions"`
	MRR                 float64          `json:"mrr"`
	PlanDistribution    map[string]int64 `json:"planDistribution"`
}

type PlanRevenue struct {
	PlanID      string  `json:"planId"`
	Name        string  `json:"name"`
	Users       int64   `json:"users"`
	Subscribers int64   `json:"subscribers"`
	MRR         float64 `json:"mrr"`
}

type Revenue struct {
	MRR                 float64       `json:"mrr"`
	ARR                 float64       `json:"arr"`
	ActiveSubscriptions int64         `json:"activeSubscriptions"`
	Churning            int64         `json:"churning"`
	PastDue             int64         `json:"pastDue"`
	ByPlan              []PlanRevenue `json:"byPlan"`
}

type FeatureUsage struct {
	Feature string `json:"feature"`
	Calls   int64  `json:"calls"`
	Credits int64  `json:"credits"`
}

type UserUsage struct {
	UserID  string `json:"userId"`
	Email   string `json:"email"`
	Credits int64  `json:"credits"`
}

type Usage struct {
	TotalCalls       int64          `json:"totalCalls"`
	TotalCredits     int64          `json:"totalCredits"`
	MonthCredits     int64          `json:"monthCredits"`
	EstimatedCostUSD float64        `json:"estimatedCostUsd"`
	ByFeature        []FeatureUsage `json:"byFeature"`
	TopUsers         []UserUsage    `json:"topUsers"`
}

// Service computes the admin dashboard aggregates and keeps them in Redis
// for CacheExpiration. Cache failures fall through to the database.
type Service struct {
	db      *gorm.DB
	catalog *plans.Catalog
	loc     *time.Location
	now     func() time.Time
}

func NewService(db *gorm.DB, catalog *plans.Catalog, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{db: db, catalog: catalog, loc: loc, now: time.Now}
}

type groupCount struct {
	Key   string
	Count int64
}

func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	var out Overview
	err := cached(CacheKeyOverview, &out, func() error {
		db := s.db.WithContext(ctx)
		if err := db.Model(&models.Profile{}).Count(&out.TotalUsers).Error; err != nil {
			return err
		}
		if err := db.Model(&models.Business{}).Count(&out.TotalBusinesses).Error; err != nil {
			return err
		}
		if err := db.Model(&models.UsageRecord{}).Select("COALESCE(SUM(credits_used), 0)").Scan(&out.TotalCreditsUsed).Error; err != nil {
			return err
		}

		dist, err := s.planDistribution(ctx)
		if err != nil {
			return err
		}
		out.PlanDistribution = dist

		active, err := s.activeSubscriptionsByPlan(ctx)
		if err != nil {
			return err
		}
		for planID, n := range active {
			out.ActiveSubscriptions += n
			out.MRR += float64(n) * s.catalog.Resolve(planID).MonthlyPrice
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) Revenue(ctx context.Context) (*Revenue, error) {
	var out Revenue
	err := cached(CacheKeyRevenue, &out, func() error {
		db := s.db.WithContext(ctx)

		active, err := s.activeSubscriptionsByPlan(ctx)
		if err != nil {
			return err
		}
		users, err := s.planDistribution(ctx)
		if err != nil {
			return err
		}
		if err := db.Model(&models.Subscription{}).
			Where("status = ? AND cancel_at_period_end = ?", models.SubscriptionStatusActive, true).
			Count(&out.Churning).Error; err != nil {
			return err
		}
		if err := db.Model(&models.Subscription{}).
			Where("status = ?", models.SubscriptionStatusPastDue).
			Count(&out.PastDue).Error; err != nil {
			return err
		}

		out.ByPlan = make([]PlanRevenue, 0, len(s.catalog.All()))
		for _, p := range s.catalog.All() {
			id := string(p.ID)
			row := PlanRevenue{
				PlanID:      id,
				Name:        p.Name,
				Users:       users[id],
				Subscribers: active[id],
				MRR:         float64(active[id]) * p.MonthlyPrice,
			}
			out.ActiveSubscriptions += row.Subscribers
			out.MRR += row.MRR
			out.ByPlan = append(out.ByPlan, row)
		}
		out.ARR = out.MRR * 12
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) Usage(ctx context.Context) (*Usage, error) {
	var out Usage
	err := cached(CacheKeyUsage, &out, func() error {
		db := s.db.WithContext(ctx)

		var totals struct {
			Calls   int64
			Credits int64
		}
		if err := db.Model(&models.UsageRecord{}).
			Select("COUNT(*) AS calls, COALESCE(SUM(credits_used), 0) AS credits").
			Scan(&totals).Error; err != nil {
			return err
		}
		out.TotalCalls = totals.Calls
		out.TotalCredits = totals.Credits
		out.EstimatedCostUSD = float64(totals.Credits) * CostPerCredit

		monthStart := credits.MonthStart(s.now(), s.loc)
		if err := db.Model(&models.UsageRecord{}).
			Select("COALESCE(SUM(credits_used), 0)").
			Where("created_at >= ?", monthStart).
			Scan(&out.MonthCredits).Error; err != nil {
			return err
		}

		out.ByFeature = []FeatureUsage{}
		if err := db.Model(&models.UsageRecord{}).
			Select("feature, COUNT(*) AS calls, COALESCE(SUM(credits_used), 0) AS credits").
			Group("feature").
			Order("credits DESC").
			Scan(&out.ByFeature).Error; err != nil {
			return err
		}

		out.TopUsers = []UserUsage{}
		if err := db.Model(&models.UsageRecord{}).
			Select("user_id, COALESCE(SUM(credits_used), 0) AS credits").
			Group("user_id").
			Order("credits DESC").
			Limit(topUsersLimit).
			Scan(&out.TopUsers).Error; err != nil {
			return err
		}
		return s.attachEmails(ctx, out.TopUsers)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Invalidate drops the cached aggregates after an admin changed a plan.
func (s *Service) Invalidate() {
	for _, key := range []string{CacheKeyOverview, CacheKeyRevenue, CacheKeyUsage} {
		if err := cache.Delete(key); err != nil {
			log.Warnf("[Statistics] Error deleting %s: %v", key, err)
		}
	}
}

func (s *Service) planDistribution(ctx context.Context) (map[string]int64, error) {
	var rows []groupCount
	if err := s.db.WithContext(ctx).Model(&models.Profile{}).
		Select("plan_id AS `key`, COUNT(*) AS count").
		Group("plan_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	dist := make(map[string]int64, len(rows))
	for _, r := range rows {
		key := r.Key
		if key == "" {
			key = models.DefaultPlanID
		}
		dist[key] += r.Count
	}
	return dist, nil
}

func (s *Service) activeSubscriptionsByPlan(ctx context.Context) (map[string]int64, error) {
	var rows []groupCount
	if err := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Select("plan_id AS `key`, COUNT(*) AS count").
		Where("status = ? AND plan_id <> ?", models.SubscriptionStatusActive, string(plans.Free)).
		Group("plan_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Count
	}
	return out, nil
}

func (s *Service) attachEmails(ctx context.Context, users []UserUsage) error {
	if len(users) == 0 {
		return nil
	}
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.UserID
	}
	var profiles []models.Profile
	if err := s.db.WithContext(ctx).Select("id", "email").Where("id IN ?", ids).Find(&profiles).Error; err != nil {
		return err
	}
	emails := make(map[string]string, len(profiles))
	for _, p := range profiles {
		emails[p.ID] = p.Email
	}
	for i := range users {
		users[i].Email = emails[users[i].UserID]
	}
	return nil
}

// cached fills out from key when present, otherwise runs compute and stores
// the result.
func cached(key string, out interface{}, compute func() error) error {
	if raw, err := cache.Get(key); err == nil {
		if err := json.Unmarshal([]byte(raw), out); err == nil {
			return nil
		}
		log.Warnf("[Statistics] Discarding unreadable cache entry %s", key)
	}

	if err := compute(); err != nil {
		log.Errorf("[Statistics] Error computing %s: %v", key, err)
		return err
	}

	data, err := json.Marshal(out)
	if err != nil {
		return err
	}
	if err := cache.Set(key, data, CacheExpiration); err != nil {
		log.Warnf("[Statistics] Error caching %s: %v", key, err)
	}
	return nil
}
