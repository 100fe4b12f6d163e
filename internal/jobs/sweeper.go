package jobs

import (
	"context"
	"time"

	"schoolsite-app/internal/domain/communications"
	"schoolsite-app/internal/domain/subscriptions"
	"schoolsite-app/internal/infra/metrics"

	"go.uber.org/zap"
)

type Report struct {
	Communications communications.SweepResult `json:"communications"`
	ExpiredTrials  int64                      `json:"expired_trials"`
}

// Sweeper runs the idempotent periodic updates: communication visibility
// and trial expiry. Safe to run from several instances at once.
type Sweeper struct {
	comms communications.Store
	subs  subscriptions.Store
	log   *zap.Logger
	now   func() time.Time
}

func NewSweeper(comms communications.Store, subs subscriptions.Store, log *zap.Logger) *Sweeper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{comms: comms, subs: subs, log: log, now: time.Now}
}

func (s *Sweeper) Run(ctx context.Context) (Report, error) {
	now := s.now()
	var rep Report

	res, err := communications.Sweep(ctx, s.comms, now, s.log)
	if err != nil {
		s.log.Error("communications sweep failed", zap.Error(err))
		return rep, err
	}
	rep.Communications = res
	metrics.SweepUpdates.WithLabelValues("communications").Add(float64(res.Activated + res.Deactivated))

	n, err := s.subs.ExpireTrials(ctx, now)
	if err != nil {
		s.log.Error("trial expiry sweep failed", zap.Error(err))
		return rep, err
	}
	rep.ExpiredTrials = n
	metrics.SweepUpdates.WithLabelValues("trials").Add(float64(n))
	if n > 0 {
		s.log.Info("trials expired", zap.Int64("count", n))
	}

	return rep, nil
}
