package noshow

import (
	"context"
	"time"

	"classbook/internal/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const sweepLockKey = "noshow:sweep:lock"

type OrganizationLister interface {
	EnabledOrganizations(ctx context.Context) ([]int64, error)
}

type Runner interface {
	Run(ctx context.Context, orgID int64) (*Summary, error)
}

// Scheduler sweeps every organization with an enabled policy on a fixed
// interval. The redis lock only avoids duplicate work across replicas; the
// penalty records are what make overlapping sweeps safe.
type Scheduler struct {
	runner   Runner
	orgs     OrganizationLister
	redis    *redis.Client
	interval time.Duration
	lockTTL  time.Duration
	owner    string
}

func NewScheduler(runner Runner, orgs OrganizationLister, rdb *redis.Client, interval time.Duration) *Scheduler {
	return &Scheduler{
		runner:   runner,
		orgs:     orgs,
		redis:    rdb,
		interval: interval,
		lockTTL:  interval,
		owner:    uuid.NewString(),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger.Info("no-show scheduler started", "interval", s.interval.String())

	for {
		select {
		case <-ctx.Done():
			logger.Info("no-show scheduler stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs the reconciler for each enabled organization and returns
// the summaries. It returns nil when another replica holds the sweep lock.
func (s *Scheduler) SweepOnce(ctx context.Context) []*Summary {
	if s.redis != nil {
		acquired, err := s.redis.SetNX(ctx, sweepLockKey, s.owner, s.lockTTL).Result()
		if err != nil {
			logger.Warn("no-show sweep lock unavailable, sweeping anyway", "error", err)
		} else if !acquired {
			logger.Debug("no-show sweep already running elsewhere")
			return nil
		} else {
			defer s.release(ctx)
		}
	}

	orgIDs, err := s.orgs.EnabledOrganizations(ctx)
	if err != nil {
		logger.Error("failed to list organizations for no-show sweep", "error", err)
		return nil
	}

	summaries := make([]*Summary, 0, len(orgIDs))
	for _, orgID := range orgIDs {
		summary, err := s.runner.Run(ctx, orgID)
		if err != nil {
			logger.Error("no-show sweep failed", "organization_id", orgID, "error", err)
			continue
		}
		summaries = append(summaries, summary)
	}
	return summaries
}

func (s *Scheduler) release(ctx context.Context) {
	owner, err := s.redis.Get(ctx, sweepLockKey).Result()
	if err != nil || owner != s.owner {
		return
	}
	if err := s.redis.Del(ctx, sweepLockKey).Err(); err != nil {
		logger.Warn("failed to release no-show sweep lock", "error", err)
	}
}
