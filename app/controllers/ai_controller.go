package controllers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/bossboard/bossboard/app/models"
	"github.com/bossboard/bossboard/app/repository"
	"github.com/bossboard/bossboard/internal/pkg/credits"
	"github.com/bossboard/bossboard/internal/pkg/llm"
	"github.com/bossboard/bossboard/internal/pkg/metrics"
	"github.com/bossboard/bossboard/internal/pkg/plans"
	"github.com/bossboard/bossboard/internal/pkg/prompts"
	"github.com/bossboard/bossboard/internal/pkg/usercontext"
)

const generationTimeout = 2 * time.Minute

// QuotaLedger is the part of credits.Ledger the generation handlers use.
type QuotaLedger interface {
	CheckQuota(ctx context.Context, userID, planID string, creditsRequested int) (*credits.QuotaDecision, error)
	ComputeMonthlyUsage(ctx context.Context, userID string) (*credits.MonthlyUsage, error)
}

// UsageDispatcher records consumed credits off the request path.
type UsageDispatcher interface {
	Dispatch(userID, businessID string, feature credits.Feature, creditsUsed int)
}

// AIController serves the metered generation endpoints.
type AIController struct {
	profiles   repository.ProfileRepository
	businesses repository.BusinessRepository
	ledger     QuotaLedger
	catalog    *plans.Catalog
	gen        llm.Generator
	usage      UsageDispatcher
	now        func() time.Time
}

func NewAIController(repos *repository.Repositories, ledger QuotaLedger, catalog *plans.Catalog, gen llm.Generator, usage UsageDispatcher) *AIController {
	return &AIController{
		profiles:   repos.Profile,
		businesses: repos.Business,
		ledger:     ledger,
		catalog:    catalog,
		gen:        gen,
		usage:      usage,
		now:        time.Now,
	}
}

type admission struct {
	userID string
	planID string
	cost   int
}

type reviewReplyRequest struct {
	BusinessID   string `json:"businessId" validate:"required"`
	ReviewerName string `json:"reviewerName"`
	Rating       int    `json:"rating" validate:"omitempty,min=1,max=5"`
	ReviewText   string `json:"reviewText" validate:"required"`
	Tone         string `json:"tone" validate:"required"`
}

type captionRequest struct {
	BusinessID  string `json:"businessId" validate:"required"`
	Description string `json:"description" validate:"required"`
	Tone        string `json:"tone" validate:"required"`
	Platform    string `json:"platform"`
}

type emailMarketingRequest struct {
	BusinessID   string `json:"businessId" validate:"required"`
	PromoDetails string `json:"promoDetails" validate:"required"`
	Audience     string `json:"audience"`
	Tone         string `json:"tone" validate:"required"`
}

type scriptRequest struct {
	BusinessID string `json:"businessId" validate:"required"`
	Format     string `json:"format" validate:"required"`
	Topic      string `json:"topic" validate:"required"`
	Audience   string `json:"audience"`
}

type translateRequest struct {
	BusinessID     string `json:"businessId"`
	Text           string `json:"text" validate:"required"`
	TargetLanguage string `json:"targetLanguage" validate:"required"`
}

type chatRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
}

type reviewInsightsRequest struct {
	BusinessID string   `json:"businessId" validate:"required"`
	Reviews    []string `json:"reviews" validate:"required,min=1,max=200,dive,required"`
}

func (ac *AIController) HandleReviewReply(c *fiber.Ctx) error {
	var req reviewReplyRequest
	return ac.streamFeature(c, credits.FeatureReviewReply, &req, func(b prompts.Business) llm.Request {
		return prompts.ReviewReply(b, prompts.ReviewReplyInput{
			ReviewerName: req.ReviewerName,
			Rating:       req.Rating,
			ReviewText:   req.ReviewText,
			Tone:         req.Tone,
		})
	})
}

func (ac *AIController) HandleCaption(c *fiber.Ctx) error {
	var req captionRequest
	return ac.streamFeature(c, credits.FeatureCaption, &req, func(b prompts.Business) llm.Request {
		return prompts.Caption(b, prompts.CaptionInput{
			Description: req.Description,
			Tone:        req.Tone,
			Platform:    req.Platform,
		})
	})
}

func (ac *AIController) HandleEmailMarketing(c *fiber.Ctx) error {
	var req emailMarketingRequest
	return ac.streamFeature(c, credits.FeatureEmailMarketing, &req, func(b prompts.Business) llm.Request {
		return prompts.EmailMarketing(b, prompts.EmailMarketingInput{
			PromoDetails: req.PromoDetails,
			Audience:     req.Audience,
			Tone:         req.Tone,
		})
	})
}

func (ac *AIController) HandleScript(c *fiber.Ctx) error {
	var req scriptRequest
	return ac.streamFeature(c, credits.FeatureScript, &req, func(b prompts.Business) llm.Request {
		return prompts.Script(b, prompts.ScriptInput{
			Format:   req.Format,
			Topic:    req.Topic,
			Audience: req.Audience,
		})
	})
}

func (ac *AIController) HandleTranslate(c *fiber.Ctx) error {
	var req translateRequest
	return ac.streamFeature(c, credits.FeatureTranslation, &req, func(prompts.Business) llm.Request {
		return prompts.Translate(prompts.TranslateInput{
			Text:           req.Text,
			TargetLanguage: req.TargetLanguage,
		})
	})
}

// HandleChat answers the in-app assistant. Free plans are refused before the
// quota check.
func (ac *AIController) HandleChat(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	if !uc.IsLoggedIn {
		return textError(c, fiber.StatusUnauthorized, msgUnauthorized)
	}
	var req chatRequest
	if err := bindJSON(c, &req); err != nil {
		return textError(c, fiber.StatusBadRequest, msgMissingFields)
	}

	adm, done, err := ac.admit(c, uc.UserID, credits.FeatureChat)
	if done {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), generationTimeout)
	defer cancel()
	start := time.Now()
	reply, err := ac.gen.Complete(ctx, prompts.Chat(req.Message))
	metrics.GenerationDuration.WithLabelValues(string(credits.FeatureChat)).Observe(time.Since(start).Seconds())
	if err != nil {
		log.Errorf("[AI] Chat generation failed for %s: %v", adm.userID, err)
		return jsonError(c, fiber.StatusBadGateway, "generation_failed")
	}

	ac.usage.Dispatch(adm.userID, ac.firstBusinessID(ctx, adm.userID), credits.FeatureChat, adm.cost)
	return c.JSON(fiber.Map{"reply": reply})
}

// HandleReviewInsights asks for a JSON report over a batch of reviews.
func (ac *AIController) HandleReviewInsights(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	if !uc.IsLoggedIn {
		return textError(c, fiber.StatusUnauthorized, msgUnauthorized)
	}
	var req reviewInsightsRequest
	if err := bindJSON(c, &req); err != nil {
		return textError(c, fiber.StatusBadRequest, msgMissingFields)
	}

	adm, done, err := ac.admit(c, uc.UserID, credits.FeatureReviewInsights)
	if done {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), generationTimeout)
	defer cancel()
	b := ac.business(ctx, adm.userID, req.BusinessID)

	start := time.Now()
	text, err := ac.gen.Complete(ctx, prompts.ReviewInsights(b, req.Reviews))
	metrics.GenerationDuration.WithLabelValues(string(credits.FeatureReviewInsights)).Observe(time.Since(start).Seconds())
	if err != nil {
		log.Errorf("[AI] Review insights generation failed for %s: %v", adm.userID, err)
		return jsonError(c, fiber.StatusBadGateway, "generation_failed")
	}

	// charged even when the output does not parse
	ac.usage.Dispatch(adm.userID, req.BusinessID, credits.FeatureReviewInsights, adm.cost)

	var insights json.RawMessage
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &insights); err != nil {
		log.Warnf("[AI] Review insights for %s were not valid JSON: %v", adm.userID, err)
		return textError(c, fiber.StatusInternalServerError, "Failed to parse AI response")
	}
	return c.JSON(fiber.Map{"insights": insights})
}

// HandleUsage reports the caller's consumption for the current month.
func (ac *AIController) HandleUsage(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	if !uc.IsLoggedIn {
		return textError(c, fiber.StatusUnauthorized, msgUnauthorized)
	}

	profile, err := ac.profile(c.UserContext(), uc.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusServiceUnavailable, "quota_unavailable")
	}
	usage, err := ac.ledger.ComputeMonthlyUsage(c.UserContext(), uc.UserID)
	if err != nil {
		log.Errorf("[AI] Usage lookup failed for %s: %v", uc.UserID, err)
		return jsonError(c, fiber.StatusServiceUnavailable, "quota_unavailable")
	}

	plan := ac.catalog.Resolve(profile.EffectivePlanID())
	limit := plan.Limits.AICredits
	remaining := plans.Unlimited
	if !plan.IsUnlimited() {
		remaining = limit - usage.Total
		if remaining < 0 {
			remaining = 0
		}
	}

	return c.JSON(fiber.Map{
		"planId":    string(plan.ID),
		"limit":     limit,
		"remaining": remaining,
		"total":     usage.Total,
		"byFeature": usage.ByFeature,
	})
}

// businessScoped request bodies name the business the credits are charged to.
type businessScoped interface {
	businessRef() string
}

func (r *reviewReplyRequest) businessRef() string    { return r.BusinessID }
func (r *captionRequest) businessRef() string        { return r.BusinessID }
func (r *emailMarketingRequest) businessRef() string { return r.BusinessID }
func (r *scriptRequest) businessRef() string         { return r.BusinessID }
func (r *translateRequest) businessRef() string      { return r.BusinessID }

// streamFeature is the shared path of the streamed generation endpoints.
// build runs after the gate with the resolved business context.
func (ac *AIController) streamFeature(c *fiber.Ctx, feature credits.Feature, req businessScoped, build func(prompts.Business) llm.Request) error {
	uc := usercontext.GetUserContext(c)
	if !uc.IsLoggedIn {
		return textError(c, fiber.StatusUnauthorized, msgUnauthorized)
	}
	if err := bindJSON(c, req); err != nil {
		return textError(c, fiber.StatusBadRequest, msgMissingFields)
	}

	adm, done, err := ac.admit(c, uc.UserID, feature)
	if done {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), generationTimeout)
	businessID := req.businessRef()
	prompt := build(ac.business(ctx, adm.userID, businessID))

	start := time.Now()
	stream, err := ac.gen.Open(ctx, prompt)
	if err != nil {
		cancel()
		log.Errorf("[AI] %s generation failed for %s: %v", feature, adm.userID, err)
		return jsonError(c, fiber.StatusBadGateway, "generation_failed")
	}

	c.Set(fiber.HeaderContentType, "text/plain; charset=utf-8")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		defer stream.Close()

		charged := false
		for {
			chunk, err := stream.Next()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					log.Warnf("[AI] %s stream for %s ended early: %v", feature, adm.userID, err)
				}
				break
			}
			if chunk == "" {
				continue
			}
			if _, err := w.WriteString(chunk); err != nil {
				break
			}
			if err := w.Flush(); err != nil {
				log.Warnf("[AI] Client for %s went away: %v", adm.userID, err)
				break
			}
			if !charged {
				ac.usage.Dispatch(adm.userID, businessID, feature, adm.cost)
				charged = true
			}
		}
		metrics.GenerationDuration.WithLabelValues(string(feature)).Observe(time.Since(start).Seconds())
	})
	return nil
}

// admit resolves the caller's plan and runs the quota gate. When done is
// true the response has already been written and err is its send result.
func (ac *AIController) admit(c *fiber.Ctx, userID string, feature credits.Feature) (adm *admission, done bool, err error) {
	cost, err := credits.CostOf(feature)
	if err != nil {
		return nil, true, jsonError(c, fiber.StatusInternalServerError, "unknown_feature")
	}

	profile, err := ac.profile(c.UserContext(), userID)
	if err != nil {
		return nil, true, jsonError(c, fiber.StatusServiceUnavailable, "quota_unavailable")
	}
	if profile.IsBanned(ac.now()) {
		return nil, true, textError(c, fiber.StatusForbidden, msgBanned)
	}

	// ids missing from the catalog are gated as free
	planID := string(ac.catalog.Resolve(profile.EffectivePlanID()).ID)
	if feature == credits.FeatureChat && planID == string(plans.Free) {
		return nil, true, textError(c, fiber.StatusForbidden, msgChatRequiresPro)
	}

	decision, err := ac.ledger.CheckQuota(c.UserContext(), userID, planID, cost)
	if err != nil {
		log.Errorf("[AI] Quota check failed for %s: %v", userID, err)
		return nil, true, jsonError(c, fiber.StatusServiceUnavailable, "quota_unavailable")
	}
	if !decision.Allowed {
		return nil, true, textError(c, fiber.StatusTooManyRequests, msgQuotaExceeded)
	}

	return &admission{userID: userID, planID: planID, cost: cost}, false, nil
}

// profile loads the caller's plan pointer. A missing row is a free user.
func (ac *AIController) profile(ctx context.Context, userID string) (*models.Profile, error) {
	p, err := ac.profiles.GetByID(ctx, userID)
	if err == nil {
		return p, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.Profile{ID: userID, PlanID: models.DefaultPlanID}, nil
	}
	log.Errorf("[AI] Profile lookup failed for %s: %v", userID, err)
	return nil, err
}

// business returns the prompt context for a business the caller owns. Lookup
// misses degrade to a generic context.
func (ac *AIController) business(ctx context.Context, userID, businessID string) prompts.Business {
	if businessID == "" {
		return prompts.Business{}
	}
	b, err := ac.businesses.GetForUser(ctx, businessID, userID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[AI] Business lookup failed for %s: %v", businessID, err)
		}
		return prompts.Business{}
	}
	return prompts.Business{Name: b.Name, Type: b.Type}
}

// firstBusinessID names the business chat usage is charged to. Users without
// one are charged with no business.
func (ac *AIController) firstBusinessID(ctx context.Context, userID string) string {
	b, err := ac.businesses.FirstForUser(ctx, userID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[AI] Business lookup failed for %s: %v", userID, err)
		}
		return ""
	}
	return b.ID
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
