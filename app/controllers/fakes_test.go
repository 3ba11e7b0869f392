package controllers

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/bossboard/bossboard/app/models"
	"github.com/bossboard/bossboard/app/repository"
	"github.com/bossboard/bossboard/internal/pkg/credits"
	"github.com/bossboard/bossboard/internal/pkg/llm"
	"github.com/bossboard/bossboard/internal/pkg/mail"
	"github.com/bossboard/bossboard/internal/pkg/plans"
	"github.com/bossboard/bossboard/internal/pkg/statistics"
	"github.com/bossboard/bossboard/internal/pkg/usercontext"
)

func testCatalog(t *testing.T) *plans.Catalog {
	t.Helper()
	c, err := plans.NewCatalog([]plans.Plan{
		{ID: plans.Free, Name: "Free", Limits: plans.Limits{AICredits: 30}},
		{ID: plans.Pro, Name: "Pro", MonthlyPrice: 19.99, PriceIDMonthly: "price_pro_m", Limits: plans.Limits{AICredits: 1000}},
		{ID: plans.Business, Name: "Business", MonthlyPrice: 39.99, Limits: plans.Limits{AICredits: plans.Unlimited}},
	}, plans.Pro)
	require.NoError(t, err)
	return c
}

// withUser installs an identity the way the JWT middleware does. Requests
// without X-Test-User stay anonymous.
func withUser(c *fiber.Ctx) error {
	if id := c.Get("X-Test-User"); id != "" {
		usercontext.Set(c, usercontext.UserContext{
			UserID:     id,
			Email:      c.Get("X-Test-Email"),
			IsLoggedIn: true,
			IsAdmin:    c.Get("X-Test-Admin") == "1",
		})
	}
	return c.Next()
}

func jsonRequest(method, path, body, userID string) *http.Request {
	req, _ := http.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-Test-User", userID)
	}
	return req
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]*models.Profile
	err      error
}

func newFakeProfiles(list ...models.Profile) *fakeProfiles {
	f := &fakeProfiles{profiles: map[string]*models.Profile{}}
	for i := range list {
		p := list[i]
		f.profiles[p.ID] = &p
	}
	return f
}

func (f *fakeProfiles) GetByID(_ context.Context, id string) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.profiles[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProfiles) List(_ context.Context, offset, limit int) ([]models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Profile, 0, len(f.profiles))
	for _, p := range f.profiles {
		out = append(out, *p)
	}
	if offset >= len(out) {
		return []models.Profile{}, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

func (f *fakeProfiles) Count(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.profiles)), nil
}

func (f *fakeProfiles) SetBannedUntil(_ context.Context, id string, until *time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return false, nil
	}
	p.BannedUntil = until
	return true, nil
}

type fakeBusinesses struct {
	byID map[string]models.Business
}

func (f *fakeBusinesses) GetForUser(_ context.Context, id, userID string) (*models.Business, error) {
	b, ok := f.byID[id]
	if !ok || b.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return &b, nil
}

func (f *fakeBusinesses) FirstForUser(_ context.Context, userID string) (*models.Business, error) {
	var first *models.Business
	for _, b := range f.byID {
		if b.UserID != userID {
			continue
		}
		if first == nil || b.CreatedAt.Before(first.CreatedAt) {
			b := b
			first = &b
		}
	}
	if first == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return first, nil
}

func (f *fakeBusinesses) Count(context.Context) (int64, error) {
	return int64(len(f.byID)), nil
}

type quotaCall struct {
	userID string
	planID string
	n      int
}

type fakeLedger struct {
	mu       sync.Mutex
	decision credits.QuotaDecision
	err      error
	usage    credits.MonthlyUsage
	checks   []quotaCall
}

func (f *fakeLedger) CheckQuota(_ context.Context, userID, planID string, n int) (*credits.QuotaDecision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks = append(f.checks, quotaCall{userID, planID, n})
	if f.err != nil {
		return nil, f.err
	}
	d := f.decision
	return &d, nil
}

func (f *fakeLedger) ComputeMonthlyUsage(context.Context, string) (*credits.MonthlyUsage, error) {
	if f.err != nil {
		return nil, f.err
	}
	u := f.usage
	return &u, nil
}

type fakeStream struct {
	chunks []string
	err    error
	closed bool
}

func (s *fakeStream) Next() (string, error) {
	if len(s.chunks) == 0 {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	chunk := s.chunks[0]
	s.chunks = s.chunks[1:]
	return chunk, nil
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

type fakeGenerator struct {
	mu          sync.Mutex
	chunks      []string
	text        string
	openErr     error
	completeErr error
	requests    []llm.Request
}

func (g *fakeGenerator) Open(_ context.Context, req llm.Request) (llm.Stream, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.openErr != nil {
		return nil, g.openErr
	}
	return &fakeStream{chunks: append([]string(nil), g.chunks...)}, nil
}

func (g *fakeGenerator) Complete(_ context.Context, req llm.Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	return g.text, g.completeErr
}

func (g *fakeGenerator) calls() []llm.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]llm.Request(nil), g.requests...)
}

type dispatchCall struct {
	userID     string
	businessID string
	feature    credits.Feature
	credits    int
}

type recordingDispatcher struct {
	mu    sync.Mutex
	calls []dispatchCall
}

func (d *recordingDispatcher) Dispatch(userID, businessID string, feature credits.Feature, n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, dispatchCall{userID, businessID, feature, n})
}

func (d *recordingDispatcher) snapshot() []dispatchCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]dispatchCall(nil), d.calls...)
}

type fakeOverrider struct {
	err   error
	calls [][2]string
}

func (f *fakeOverrider) OverridePlan(_ context.Context, userID, planID string) error {
	f.calls = append(f.calls, [2]string{userID, planID})
	return f.err
}

type fakeStats struct {
	err         error
	invalidated int
}

func (f *fakeStats) Overview(context.Context) (*statistics.Overview, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &statistics.Overview{TotalUsers: 3, MRR: 19.99, PlanDistribution: map[string]int64{"free": 2, "pro": 1}}, nil
}

func (f *fakeStats) Revenue(context.Context) (*statistics.Revenue, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &statistics.Revenue{MRR: 19.99, ARR: 239.88, ActiveSubscriptions: 1}, nil
}

func (f *fakeStats) Usage(context.Context) (*statistics.Usage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &statistics.Usage{TotalCalls: 4, TotalCredits: 6}, nil
}

func (f *fakeStats) Invalidate() { f.invalidated++ }

type fakeSender struct {
	err  error
	sent []mail.Message
}

func (f *fakeSender) Send(msg mail.Message) error {
	f.sent = append(f.sent, msg)
	return f.err
}

var (
	_ repository.ProfileRepository  = (*fakeProfiles)(nil)
	_ repository.BusinessRepository = (*fakeBusinesses)(nil)
	_ QuotaLedger                   = (*fakeLedger)(nil)
	_ llm.Generator                 = (*fakeGenerator)(nil)
	_ AdminStatistics               = (*fakeStats)(nil)
)
