package jobs

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

type Scheduler struct {
	scheduler gocron.Scheduler
	log       *zap.Logger
}

// NewScheduler registers the sweep every interval. Overlapping runs are
// skipped rather than queued.
func NewScheduler(sw *Sweeper, interval time.Duration, log *zap.Logger) (*Scheduler, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			if _, err := sw.Run(ctx); err != nil {
				log.Warn("scheduled sweep failed", zap.Error(err))
			}
		}),
		gocron.WithName("sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, err
	}

	return &Scheduler{scheduler: s, log: log}, nil
}

func (s *Scheduler) Start() {
	s.log.Info("starting background scheduler")
	s.scheduler.Start()
}

func (s *Scheduler) Stop() error {
	s.log.Info("stopping background scheduler")
	return s.scheduler.Shutdown()
}
