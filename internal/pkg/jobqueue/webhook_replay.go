package jobqueue

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// WebhookReplayer re-applies journaled webhook deliveries.
type WebhookReplayer interface {
	ReplayWebhookEvent(ctx context.Context, webhookEventID uint) error
	RetryableWebhookEventIDs(ctx context.Context, limit int) ([]uint, error)
}

// NewWebhookReplayHandler returns the worker side of webhook_replay jobs.
func NewWebhookReplayHandler(replayer WebhookReplayer) Handler {
	return func(ctx context.Context, job *Job) error {
		payload, err := WebhookReplayJobPayloadFromMap(job.Payload)
		if err != nil || payload.WebhookEventID == 0 {
			return fmt.Errorf("%w: bad payload", ErrDiscard)
		}
		err = replayer.ReplayWebhookEvent(ctx, payload.WebhookEventID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: webhook event %d not found", ErrDiscard, payload.WebhookEventID)
		}
		return err
	}
}
