package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/bossboard/bossboard/app/models"
	"github.com/bossboard/bossboard/internal/pkg/metrics"
	"github.com/bossboard/bossboard/internal/pkg/plans"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

var (
	ErrProfileNotFound  = errors.New("profile not found")
	ErrUnsupportedEvent = errors.New("unsupported event")
)

// MaxWebhookAttempts caps automatic replays of a failed delivery.
const MaxWebhookAttempts = 5

// Service reconciles payment provider lifecycle events into subscription rows
// and the user's plan pointer. The two writes are not atomic; the next event
// for the subscription converges them.
type Service struct {
	repo    Repository
	catalog *plans.Catalog
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository, catalog *plans.Catalog) *Service {
	return &Service{repo: repo, catalog: catalog}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, catalog *plans.Catalog) *Service {
	return NewService(NewRepository(db), catalog)
}

// HandleWebhook decodes, journals and applies one delivery. Decode errors are
// returned before anything is written. Unknown event types are ignored
// without touching the datastore.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, signatureValid bool) (*WebhookResult, error) {
	ev, err := DecodeEvent(body)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("invalid", "rejected").Inc()
		return nil, err
	}
	meta := ev.Meta()

	if _, unknown := ev.(UnknownEvent); unknown {
		log.Infof("[Paddle] Ignoring event type %q", meta.EventType)
		metrics.WebhookEvents.WithLabelValues("unknown", string(OutcomeIgnored)).Inc()
		return &WebhookResult{EventType: meta.EventType, Outcome: OutcomeIgnored}, nil
	}

	_, stored, err := s.RecordWebhookEvent(ctx, WebhookEventInput{
		Provider:        models.BillingProviderPaddle,
		ProviderEventID: meta.EventID,
		EventType:       meta.EventType,
		PayloadJSON:     string(body),
		SignatureValid:  signatureValid,
		OccurredAt:      meta.OccurredAt,
	})
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(meta.EventType, "error").Inc()
		return nil, fmt.Errorf("record webhook event: %w", err)
	}
	if stored.IsProcessed() {
		metrics.WebhookEvents.WithLabelValues(meta.EventType, "duplicate").Inc()
		return &WebhookResult{EventType: meta.EventType, Outcome: OutcomeIgnored, Duplicate: true}, nil
	}

	outcome, err := s.process(ctx, stored.ID, ev)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(meta.EventType, "error").Inc()
		return nil, err
	}
	metrics.WebhookEvents.WithLabelValues(meta.EventType, string(outcome)).Inc()
	return &WebhookResult{EventType: meta.EventType, Outcome: outcome}, nil
}

// ReplayWebhookEvent re-applies a journaled delivery. Already processed
// events are skipped.
func (s *Service) ReplayWebhookEvent(ctx context.Context, webhookEventID uint) error {
	stored, err := s.repo.GetWebhookEvent(ctx, webhookEventID)
	if err != nil {
		return err
	}
	if stored.IsProcessed() {
		return nil
	}

	ev, err := DecodeEvent([]byte(stored.PayloadJSON))
	if err != nil {
		if markErr := s.repo.MarkWebhookEvent(ctx, stored.ID, models.WebhookStatusFailed, err.Error()); markErr != nil {
			log.Errorf("[Paddle] Failed to mark webhook event %d: %v", stored.ID, markErr)
		}
		return err
	}

	outcome, err := s.process(ctx, stored.ID, ev)
	if err != nil {
		return err
	}
	log.Infof("[Paddle] Replayed webhook event %d (%s): %s", stored.ID, stored.EventType, outcome)
	return nil
}

// RetryableWebhookEventIDs lists failed deliveries still below the attempt cap.
func (s *Service) RetryableWebhookEventIDs(ctx context.Context, limit int) ([]uint, error) {
	events, err := s.repo.ListFailedWebhookEvents(ctx, MaxWebhookAttempts, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	return ids, nil
}

func (s *Service) process(ctx context.Context, webhookEventID uint, ev Event) (Outcome, error) {
	outcome, applyErr := s.Apply(ctx, ev)
	if applyErr != nil {
		if err := s.repo.MarkWebhookEvent(ctx, webhookEventID, models.WebhookStatusFailed, applyErr.Error()); err != nil {
			log.Errorf("[Paddle] Failed to mark webhook event %d as failed: %v", webhookEventID, err)
		}
		return "", applyErr
	}
	if err := s.repo.MarkWebhookEvent(ctx, webhookEventID, models.WebhookStatusProcessed, ""); err != nil {
		return "", fmt.Errorf("mark webhook processed: %w", err)
	}
	return outcome, nil
}

// Apply dispatches a decoded event to its transition.
func (s *Service) Apply(ctx context.Context, ev Event) (Outcome, error) {
	switch e := ev.(type) {
	case SubscriptionActivated:
		return s.applyActivated(ctx, e)
	case SubscriptionUpdated:
		return s.applyUpdated(ctx, e)
	case SubscriptionCanceled:
		return s.applyCanceled(ctx, e)
	case SubscriptionPastDue:
		return s.applyPastDue(ctx, e)
	case TransactionCompleted, UnknownEvent:
		return OutcomeIgnored, nil
	default:
		return "", fmt.Errorf("%w: %T", ErrUnsupportedEvent, ev)
	}
}

func (s *Service) applyActivated(ctx context.Context, e SubscriptionActivated) (Outcome, error) {
	data := e.Subscription
	existing, err := s.findTracked(ctx, data.ID)
	if err != nil {
		return "", err
	}
	if isStale(existing, e.EventMeta) {
		return OutcomeStale, nil
	}

	userID := data.UserID()
	if userID == "" && existing != nil {
		userID = existing.UserID
	}
	if userID == "" {
		log.Warnf("[Paddle] %s for %s carries no user_id, skipping", e.EventType, data.ID)
		return OutcomeIgnored, nil
	}

	priceID := data.PriceID()
	plan, ok := s.catalog.ByPriceID(priceID)
	if !ok {
		plan = s.catalog.DefaultPaid()
		log.Warnf("[Paddle] Unrecognized price %q on %s, granting %s", priceID, data.ID, plan.ID)
	}

	lastEventAt := e.OccurredAt
	if lastEventAt == nil && existing != nil {
		lastEventAt = existing.LastEventAt
	}

	sub := &models.Subscription{
		UserID:                 userID,
		Provider:               models.BillingProviderPaddle,
		ExternalSubscriptionID: data.ID,
		ExternalPriceID:        stringPtr(priceID),
		PlanID:                 string(plan.ID),
		Status:                 models.SubscriptionStatusActive,
		CurrentPeriodStart:     data.PeriodStart(),
		CurrentPeriodEnd:       data.PeriodEnd(),
		LastEventAt:            lastEventAt,
	}
	if err := s.repo.UpsertSubscription(ctx, sub); err != nil {
		return "", err
	}
	if err := s.repo.SetProfilePlan(ctx, userID, string(plan.ID)); err != nil {
		return "", err
	}
	return OutcomeApplied, nil
}

func (s *Service) applyUpdated(ctx context.Context, e SubscriptionUpdated) (Outcome, error) {
	data := e.Subscription
	existing, err := s.findTracked(ctx, data.ID)
	if err != nil {
		return "", err
	}
	if existing == nil {
		return OutcomeUntracked, nil
	}
	if isStale(existing, e.EventMeta) {
		return OutcomeStale, nil
	}

	priceID := data.PriceID()
	plan, ok := s.catalog.ByPriceID(priceID)
	if !ok {
		plan = s.catalog.Free()
	}

	updates := map[string]interface{}{
		"external_price_id":    stringPtr(priceID),
		"plan_id":              string(plan.ID),
		"current_period_start": data.PeriodStart(),
		"current_period_end":   data.PeriodEnd(),
		"cancel_at_period_end": data.CancelScheduled(),
	}
	if status := normalizeStatus(data.Status); status != "" {
		updates["status"] = status
	}
	if e.OccurredAt != nil {
		updates["last_event_at"] = e.OccurredAt
	}

	if err := s.repo.UpdateSubscription(ctx, data.ID, updates); err != nil {
		return "", err
	}
	if err := s.repo.SetProfilePlan(ctx, existing.UserID, string(plan.ID)); err != nil {
		return "", err
	}
	return OutcomeApplied, nil
}

func (s *Service) applyCanceled(ctx context.Context, e SubscriptionCanceled) (Outcome, error) {
	existing, err := s.findTracked(ctx, e.Subscription.ID)
	if err != nil {
		return "", err
	}
	if existing == nil {
		return OutcomeUntracked, nil
	}
	if isStale(existing, e.EventMeta) {
		return OutcomeStale, nil
	}

	free := string(s.catalog.Free().ID)
	updates := map[string]interface{}{
		"status":  models.SubscriptionStatusCanceled,
		"plan_id": free,
	}
	if e.OccurredAt != nil {
		updates["last_event_at"] = e.OccurredAt
	}
	if err := s.repo.UpdateSubscription(ctx, existing.ExternalSubscriptionID, updates); err != nil {
		return "", err
	}
	if err := s.repo.SetProfilePlan(ctx, existing.UserID, free); err != nil {
		return "", err
	}
	return OutcomeApplied, nil
}

// applyPastDue only flips the status; the user keeps the plan until an
// explicit cancellation arrives.
func (s *Service) applyPastDue(ctx context.Context, e SubscriptionPastDue) (Outcome, error) {
	existing, err := s.findTracked(ctx, e.Subscription.ID)
	if err != nil {
		return "", err
	}
	if existing == nil {
		return OutcomeUntracked, nil
	}
	if isStale(existing, e.EventMeta) {
		return OutcomeStale, nil
	}

	updates := map[string]interface{}{
		"status": models.SubscriptionStatusPastDue,
	}
	if e.OccurredAt != nil {
		updates["last_event_at"] = e.OccurredAt
	}
	if err := s.repo.UpdateSubscription(ctx, existing.ExternalSubscriptionID, updates); err != nil {
		return "", err
	}
	return OutcomeApplied, nil
}

func (s *Service) findTracked(ctx context.Context, externalID string) (*models.Subscription, error) {
	sub, err := s.repo.FindSubscription(ctx, externalID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return sub, nil
}

// isStale reports whether the event predates the last event applied to the row.
func isStale(sub *models.Subscription, meta EventMeta) bool {
	return sub != nil && sub.LastEventAt != nil && meta.OccurredAt != nil && meta.OccurredAt.Before(*sub.LastEventAt)
}

// OverridePlan is the manual back-office plan change. It bypasses the
// provider path, so billing state may disagree until the next event.
func (s *Service) OverridePlan(ctx context.Context, userID, planID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New("user_id is required")
	}
	plan, ok := s.catalog.Get(planID)
	if !ok {
		return fmt.Errorf("%w: %q", plans.ErrUnknownPlan, planID)
	}

	found, err := s.repo.UpdateProfilePlan(ctx, userID, string(plan.ID))
	if err != nil {
		return err
	}
	if !found {
		return ErrProfileNotFound
	}
	return s.repo.UpdateSubscriptionsPlanByUser(ctx, userID, string(plan.ID))
}

// RecordWebhookEvent persists webhook payloads idempotently.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.BillingWebhookEvent, error) {
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.BillingWebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
		Status:          models.WebhookStatusReceived,
		OccurredAt:      in.OccurredAt,
	}
	return s.repo.CreateWebhookEventIfNotExists(ctx, event)
}
