package plans

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type ID string

const (
	Free       ID = "free"
	Pro        ID = "pro"
	Business   ID = "business"
	Enterprise ID = "enterprise"
)

// Unlimited is the allowance sentinel for plans without a cap.
const Unlimited = -1

var (
	ErrUnknownPlan     = errors.New("unknown plan")
	ErrInvalidCatalog  = errors.New("invalid plan catalog")
	errDuplicatePrice  = errors.New("price id mapped to more than one plan")
	errFreeAllowance   = errors.New("free plan allowance must be finite and positive")
	errMissingFreePlan = errors.New("free plan missing")
)

type Limits struct {
	AICredits   int `mapstructure:"ai_credits" json:"aiCredits"`
	Businesses  int `mapstructure:"businesses" json:"businesses"`
	SocialPosts int `mapstructure:"social_posts" json:"socialPosts"`
	TeamMembers int `mapstructure:"team_members" json:"teamMembers"`
}

type Plan struct {
	ID             ID       `mapstructure:"id" json:"id"`
	Name           string   `mapstructure:"name" json:"name"`
	Description    string   `mapstructure:"description" json:"description"`
	MonthlyPrice   float64  `mapstructure:"monthly_price" json:"monthlyPrice"`
	AnnualPrice    float64  `mapstructure:"annual_price" json:"annualPrice"`
	PriceIDMonthly string   `mapstructure:"price_id_monthly" json:"-"`
	PriceIDAnnual  string   `mapstructure:"price_id_annual" json:"-"`
	Limits         Limits   `mapstructure:"limits" json:"limits"`
	Features       []string `mapstructure:"features" json:"features"`
}

// IsUnlimited reports whether the plan has no monthly credit cap.
func (p Plan) IsUnlimited() bool {
	return p.Limits.AICredits == Unlimited
}

// Catalog is the immutable set of plans loaded at start. It is safe for
// concurrent use because nothing mutates it after NewCatalog returns.
type Catalog struct {
	plans       map[ID]Plan
	order       []ID
	byPrice     map[string]ID
	defaultPaid ID
}

// NewCatalog validates the plan list and builds the lookup tables.
func NewCatalog(list []Plan, defaultPaid ID) (*Catalog, error) {
	c := &Catalog{
		plans:   make(map[ID]Plan, len(list)),
		byPrice: make(map[string]ID),
	}
	for _, p := range list {
		p.ID = ID(strings.ToLower(strings.TrimSpace(string(p.ID))))
		if p.ID == "" {
			return nil, fmt.Errorf("%w: plan without id", ErrInvalidCatalog)
		}
		if _, dup := c.plans[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate plan %q", ErrInvalidCatalog, p.ID)
		}
		if p.Limits.AICredits < Unlimited {
			return nil, fmt.Errorf("%w: plan %q has negative allowance", ErrInvalidCatalog, p.ID)
		}
		for _, price := range []string{p.PriceIDMonthly, p.PriceIDAnnual} {
			price = strings.TrimSpace(price)
			if price == "" {
				continue
			}
			if owner, taken := c.byPrice[price]; taken && owner != p.ID {
				return nil, fmt.Errorf("%w: %s (%s, %s)", errDuplicatePrice, price, owner, p.ID)
			}
			c.byPrice[price] = p.ID
		}
		c.plans[p.ID] = p
		c.order = append(c.order, p.ID)
	}

	free, ok := c.plans[Free]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, errMissingFreePlan)
	}
	if free.IsUnlimited() || free.Limits.AICredits <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, errFreeAllowance)
	}

	if defaultPaid == "" {
		defaultPaid = Pro
	}
	if _, ok := c.plans[defaultPaid]; !ok {
		return nil, fmt.Errorf("%w: default paid plan %q not in catalog", ErrInvalidCatalog, defaultPaid)
	}
	c.defaultPaid = defaultPaid

	sort.SliceStable(c.order, func(i, j int) bool {
		a, b := c.plans[c.order[i]], c.plans[c.order[j]]
		if a.MonthlyPrice != b.MonthlyPrice {
			return a.MonthlyPrice < b.MonthlyPrice
		}
		return a.ID < b.ID
	})

	return c, nil
}

// Get returns the plan with the given id.
func (c *Catalog) Get(id string) (Plan, bool) {
	p, ok := c.plans[ID(strings.ToLower(strings.TrimSpace(id)))]
	return p, ok
}

// Resolve returns the plan for id, or the free plan when id is unknown.
func (c *Catalog) Resolve(id string) Plan {
	if p, ok := c.Get(id); ok {
		return p
	}
	return c.plans[Free]
}

// ByPriceID translates a provider price reference back to a plan.
func (c *Catalog) ByPriceID(priceID string) (Plan, bool) {
	id, ok := c.byPrice[strings.TrimSpace(priceID)]
	if !ok {
		return Plan{}, false
	}
	return c.plans[id], true
}

func (c *Catalog) Free() Plan {
	return c.plans[Free]
}

// DefaultPaid is used when a paid activation carries an unrecognized price.
func (c *Catalog) DefaultPaid() Plan {
	return c.plans[c.defaultPaid]
}

// All returns the plans ordered by monthly price.
func (c *Catalog) All() []Plan {
	out := make([]Plan, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.plans[id])
	}
	return out
}
