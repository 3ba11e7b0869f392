package jobqueue

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/robfig/cron/v3"
)

const (
	DefaultReplaySchedule = "@every 5m"
	replayBatchSize       = 50
	replayLockPrefix      = "webhook_replay_lock:"
	replayLockTTL         = 4 * time.Minute
)

// Manager runs the job queue and the cron schedule that feeds it.
type Manager struct {
	queue    *Queue
	replayer WebhookReplayer
	cron     *cron.Cron
	mu       sync.Mutex
	running  bool
}

// NewManager wires the queue with its periodic replay task. replayer may be
// nil, in which case no schedule is installed.
func NewManager(queue *Queue, replayer WebhookReplayer, replaySchedule string) (*Manager, error) {
	m := &Manager{
		queue:    queue,
		replayer: replayer,
		cron:     cron.New(),
	}
	if replayer == nil {
		return m, nil
	}
	if replaySchedule == "" {
		replaySchedule = DefaultReplaySchedule
	}
	if _, err := m.cron.AddFunc(replaySchedule, m.runReplay); err != nil {
		return nil, fmt.Errorf("invalid replay schedule %q: %w", replaySchedule, err)
	}
	return m, nil
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	m.queue.Start()
	m.cron.Start()

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")
	<-m.cron.Stop().Done()
	m.queue.Stop()
	m.running = false
	log.Info("[JobQueue Manager] Stopped successfully")
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) runReplay() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := m.EnqueueWebhookReplays(ctx)
	if err != nil {
		log.Errorf("[JobQueue Manager] Webhook replay scan failed: %v", err)
		return
	}
	if n > 0 {
		log.Infof("[JobQueue Manager] Enqueued %d webhook replays", n)
	}
}

// EnqueueWebhookReplays schedules a replay job for every failed delivery
// still below the attempt cap. A short Redis lock keeps overlapping scans
// from enqueueing the same event twice.
func (m *Manager) EnqueueWebhookReplays(ctx context.Context) (int, error) {
	if m.replayer == nil {
		return 0, nil
	}
	ids, err := m.replayer.RetryableWebhookEventIDs(ctx, replayBatchSize)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, id := range ids {
		key := replayLockPrefix + strconv.FormatUint(uint64(id), 10)
		ok, err := m.queue.client.SetNX(ctx, key, 1, replayLockTTL).Result()
		if err != nil {
			return enqueued, err
		}
		if !ok {
			continue
		}
		if _, err := m.queue.EnqueueJob(ctx, JobTypeWebhookReplay, WebhookReplayJobPayload{WebhookEventID: id}.ToMap()); err != nil {
			_ = m.queue.client.Del(ctx, key).Err()
			return enqueued, err
		}
		enqueued++
	}
	return enqueued, nil
}
