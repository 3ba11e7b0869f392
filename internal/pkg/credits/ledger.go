package credits

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bossboard/bossboard/app/models"
	"github.com/bossboard/bossboard/internal/pkg/metrics"
	"github.com/bossboard/bossboard/internal/pkg/plans"
	"gorm.io/gorm"
)

var (
	ErrUnknownFeature = errors.New("unknown feature")
	ErrInvalidCredits = errors.New("credits must be a positive integer matching the feature cost")
	ErrUnknownPlan    = plans.ErrUnknownPlan
	ErrDataAccess     = errors.New("usage ledger unavailable")
)

// MonthlyUsage is the caller's consumption since the start of the current month.
type MonthlyUsage struct {
	Total     int            `json:"total"`
	ByFeature map[string]int `json:"byFeature"`
}

// QuotaDecision is the result of an advisory quota check. Remaining and Limit
// are plans.Unlimited for plans without a cap.
type QuotaDecision struct {
	Allowed   bool `json:"allowed"`
	Remaining int  `json:"remaining"`
	Limit     int  `json:"limit"`
}

func (d QuotaDecision) Unlimited() bool {
	return d.Limit == plans.Unlimited
}

// Ledger is the credit ledger and quota gate. It holds no mutable state of its
// own; concurrent checks for the same user may both admit before either
// records usage.
type Ledger struct {
	repo    Repository
	catalog *plans.Catalog
	loc     *time.Location
	now     func() time.Time
}

func NewLedger(repo Repository, catalog *plans.Catalog, loc *time.Location) *Ledger {
	if loc == nil {
		loc = time.UTC
	}
	return &Ledger{repo: repo, catalog: catalog, loc: loc, now: time.Now}
}

func NewLedgerFromDB(db *gorm.DB, catalog *plans.Catalog, loc *time.Location) *Ledger {
	return NewLedger(NewGormRepository(db), catalog, loc)
}

// WithClock replaces the time source. Used by tests.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

func (l *Ledger) Catalog() *plans.Catalog {
	return l.catalog
}

// PeriodStart is the first instant counted by ComputeMonthlyUsage.
func (l *Ledger) PeriodStart() time.Time {
	return MonthStart(l.now(), l.loc)
}

// ComputeMonthlyUsage sums the user's credits since the start of the current
// calendar month in the reference time zone.
func (l *Ledger) ComputeMonthlyUsage(ctx context.Context, userID string) (*MonthlyUsage, error) {
	byFeature, err := l.repo.SumByFeatureSince(ctx, userID, l.PeriodStart())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataAccess, err)
	}

	usage := &MonthlyUsage{ByFeature: make(map[string]int, len(byFeature))}
	for feature, credits := range byFeature {
		usage.ByFeature[feature] = credits
		usage.Total += credits
	}
	return usage, nil
}

// CheckQuota admits the request iff the plan is unlimited or the remaining
// allowance covers creditsRequested. A zero request is treated as one credit.
// Read failures are returned so callers can fail closed.
func (l *Ledger) CheckQuota(ctx context.Context, userID, planID string, creditsRequested int) (*QuotaDecision, error) {
	if creditsRequested == 0 {
		creditsRequested = 1
	}
	if creditsRequested < 0 {
		return nil, ErrInvalidCredits
	}

	plan, ok := l.catalog.Get(planID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlan, planID)
	}

	if plan.IsUnlimited() {
		metrics.QuotaDecisions.WithLabelValues(string(plan.ID), "allowed").Inc()
		return &QuotaDecision{Allowed: true, Remaining: plans.Unlimited, Limit: plans.Unlimited}, nil
	}

	usage, err := l.ComputeMonthlyUsage(ctx, userID)
	if err != nil {
		metrics.QuotaCheckErrors.Inc()
		return nil, err
	}

	limit := plan.Limits.AICredits
	remaining := limit - usage.Total
	decision := &QuotaDecision{
		Allowed:   remaining >= creditsRequested,
		Remaining: max(remaining, 0),
		Limit:     limit,
	}

	outcome := "allowed"
	if !decision.Allowed {
		outcome = "denied"
	}
	metrics.QuotaDecisions.WithLabelValues(string(plan.ID), outcome).Inc()
	return decision, nil
}

// RecordUsage appends one ledger entry. There is no idempotency key: calling
// it twice charges twice.
func (l *Ledger) RecordUsage(ctx context.Context, userID, businessID string, feature Feature, credits int) error {
	if strings.TrimSpace(userID) == "" {
		return errors.New("user_id is required")
	}
	cost, err := CostOf(feature)
	if err != nil {
		return err
	}
	if credits <= 0 || credits != cost {
		return fmt.Errorf("%w: %s costs %d, got %d", ErrInvalidCredits, feature, cost, credits)
	}

	rec := &models.UsageRecord{
		UserID:      userID,
		BusinessID:  businessID,
		Feature:     string(feature),
		CreditsUsed: credits,
		CreatedAt:   l.now(),
	}
	if err := l.repo.Append(ctx, rec); err != nil {
		metrics.UsageRecordFailures.WithLabelValues("append").Inc()
		return fmt.Errorf("%w: %v", ErrDataAccess, err)
	}
	metrics.UsageRecorded.WithLabelValues(string(feature)).Add(float64(credits))
	return nil
}
