package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/bossboard/bossboard/internal/pkg/credits"
	"github.com/bossboard/bossboard/internal/pkg/metrics"
)

const (
	enqueueTimeout      = 2 * time.Second
	directRecordTimeout = 10 * time.Second
)

// UsageRecorder appends a usage ledger entry.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, userID, businessID string, feature credits.Feature, creditsUsed int) error
}

// NewUsageHandler returns the worker side of record_usage jobs.
func NewUsageHandler(recorder UsageRecorder) Handler {
	return func(ctx context.Context, job *Job) error {
		payload, err := RecordUsageJobPayloadFromMap(job.Payload)
		if err != nil {
			return fmt.Errorf("%w: bad payload: %v", ErrDiscard, err)
		}
		feature, err := credits.ParseFeature(payload.Feature)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDiscard, err)
		}
		err = recorder.RecordUsage(ctx, payload.UserID, payload.BusinessID, feature, payload.Credits)
		if errors.Is(err, credits.ErrInvalidCredits) {
			return fmt.Errorf("%w: %v", ErrDiscard, err)
		}
		return err
	}
}

// UsageDispatcher records usage off the request path. It prefers the queue
// and falls back to a direct append when Redis is unavailable.
type UsageDispatcher struct {
	queue    *Queue
	recorder UsageRecorder
}

// NewUsageDispatcher creates a dispatcher. queue may be nil.
func NewUsageDispatcher(queue *Queue, recorder UsageRecorder) *UsageDispatcher {
	return &UsageDispatcher{queue: queue, recorder: recorder}
}

// Dispatch never blocks on the ledger write and never reports an error to
// the caller; failures are logged and counted.
func (d *UsageDispatcher) Dispatch(userID, businessID string, feature credits.Feature, creditsUsed int) {
	if d.queue != nil {
		ctx, cancel := context.WithTimeout(context.Background(), enqueueTimeout)
		_, err := d.queue.EnqueueJob(ctx, JobTypeRecordUsage, RecordUsageJobPayload{
			UserID:     userID,
			BusinessID: businessID,
			Feature:    string(feature),
			Credits:    creditsUsed,
		}.ToMap())
		cancel()
		if err == nil {
			return
		}
		metrics.UsageRecordFailures.WithLabelValues("enqueue").Inc()
		log.Warnf("[JobQueue] Usage enqueue failed for %s/%s, recording directly: %v", userID, feature, err)
	}

	go d.recordDirect(userID, businessID, feature, creditsUsed)
}

func (d *UsageDispatcher) recordDirect(userID, businessID string, feature credits.Feature, creditsUsed int) {
	ctx, cancel := context.WithTimeout(context.Background(), directRecordTimeout)
	defer cancel()
	if err := d.recorder.RecordUsage(ctx, userID, businessID, feature, creditsUsed); err != nil {
		log.Errorf("[JobQueue] Failed to record usage for %s (%s, %d credits): %v", userID, feature, creditsUsed, err)
	}
}
