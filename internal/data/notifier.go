package data

import (
	"context"
	"encoding/json"

	"github.com/cuongccna/ProjectBotTrading/internal/conf"
	"github.com/cuongccna/ProjectBotTrading/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// RedisNotifier implements biz.Notifier by pushing notification intents
// onto a Redis list consumed by the external notification workers.
//
// Delivery is fire-and-forget through a buffered channel: the event is
// already durable in MySQL when an intent is produced, so a full channel
// or an unreachable Redis drops the intent with a warning instead of
// blocking or failing the triggering operation.
type RedisNotifier struct {
	rdb        *redis.Client
	queue      string
	intentChan chan *model.NotificationIntent
	logger     *log.Helper
}

// NewNotifier creates the notifier and starts its background worker.
func NewNotifier(rdb *redis.Client, cfg *conf.Review, logger log.Logger) *RedisNotifier {
	n := &RedisNotifier{
		rdb:        rdb,
		queue:      cfg.NotificationQueue,
		intentChan: make(chan *model.NotificationIntent, 1000), // Buffer size 1000 to prevent blocking
		logger:     log.NewHelper(logger),
	}

	// Start background goroutine for async delivery
	go n.start()

	return n
}

// start drains the intent channel into the Redis queue.
func (n *RedisNotifier) start() {
	for intent := range n.intentChan {
		ctx := context.Background()
		if n.rdb == nil {
			n.logger.Warnw("msg", "redis unavailable, dropping notification intent",
				"event_id", intent.EventID)
			continue
		}

		payload, err := json.Marshal(intent)
		if err != nil {
			n.logger.Errorw("msg", "failed to marshal notification intent",
				"event_id", intent.EventID, "error", err)
			continue
		}

		if err := n.rdb.LPush(ctx, n.queue, payload).Err(); err != nil {
			n.logger.Errorw("msg", "failed to push notification intent",
				"event_id", intent.EventID, "queue", n.queue, "error", err)
		} else {
			n.logger.Debugw("msg", "notification intent queued",
				"event_id", intent.EventID, "priority", intent.Priority)
		}
	}
}

// PushIntent enqueues an intent for delivery (non-blocking).
func (n *RedisNotifier) PushIntent(ctx context.Context, intent *model.NotificationIntent) {
	select {
	case n.intentChan <- intent:
		// Successfully queued
	default:
		n.logger.Warnw("msg", "notification channel full, dropping intent",
			"event_id", intent.EventID, "trigger_kind", intent.TriggerKind)
	}
}
