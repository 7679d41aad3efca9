package notification

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"classbook/internal/logger"
	"classbook/internal/metrics"

	"github.com/redis/go-redis/v9"
)

const (
	queueKey       = "notifications"
	failedQueueKey = "notifications:failed"
	maxTries       = 3
	popTimeout     = 2 * time.Second
)

type Job struct {
	Kind    Kind      `json:"kind"`
	Message Message   `json:"message"`
	Tries   int       `json:"tries"`
	Created time.Time `json:"created"`
}

// Service queues rendered notifications on a redis list and delivers them
// from a background worker, retrying up to three times.
type Service struct {
	redis      *redis.Client
	sender     Sender
	retryDelay time.Duration
}

func New(rdb *redis.Client, sender Sender) *Service {
	return &Service{redis: rdb, sender: sender, retryDelay: 5 * time.Second}
}

func (s *Service) Notify(ctx context.Context, to Recipient, kind Kind, payload Payload) error {
	subject, body, err := Render(kind, to, payload)
	if err != nil {
		return err
	}

	job := Job{
		Kind:    kind,
		Message: Message{To: to.Email, Name: to.Name, Subject: subject, Body: body},
		Created: time.Now(),
	}

	data, err := json.Marshal(job)
	if err != nil {
		return err
	}

	if err := s.redis.LPush(ctx, queueKey, data).Err(); err != nil {
		logger.Error("failed to queue notification", "kind", kind, "to", to.Email, "error", err)
		metrics.RecordNotification(string(kind), "queue_failed")
		return err
	}

	logger.Info("notification queued", "kind", kind, "to", to.Email)
	return nil
}

func (s *Service) Start(ctx context.Context) {
	logger.Info("notification worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("notification worker stopped")
			return
		default:
			s.processNext(ctx)
		}
	}
}

func (s *Service) processNext(ctx context.Context) {
	result, err := s.redis.BRPop(ctx, popTimeout, queueKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			logger.Error("failed to pop notification", "error", err)
		}
		return
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		logger.Error("bad notification data", "error", err)
		return
	}

	job.Tries++
	if err := s.sender.Send(ctx, job.Message); err != nil {
		logger.Error("failed to deliver notification", "kind", job.Kind, "to", job.Message.To, "attempt", job.Tries, "error", err)

		if job.Tries < maxTries {
			time.Sleep(s.retryDelay)
			data, _ := json.Marshal(job)
			s.redis.LPush(context.Background(), queueKey, data)
			return
		}

		metrics.RecordNotification(string(job.Kind), "failed")
		s.saveFailed(job, err)
		return
	}

	metrics.RecordNotification(string(job.Kind), "success")
	logger.Info("notification delivered", "kind", job.Kind, "to", job.Message.To)
}

func (s *Service) saveFailed(job Job, err error) {
	failed := map[string]interface{}{
		"job":   job,
		"error": err.Error(),
		"time":  time.Now(),
	}
	data, _ := json.Marshal(failed)
	s.redis.LPush(context.Background(), failedQueueKey, data)
	logger.Error("notification moved to failed queue", "kind", job.Kind, "to", job.Message.To)
}

func (s *Service) QueueLength(ctx context.Context) int64 {
	length, _ := s.redis.LLen(ctx, queueKey).Result()
	metrics.NotificationQueueLength.Set(float64(length))
	return length
}

func (s *Service) Close() error {
	return s.redis.Close()
}
