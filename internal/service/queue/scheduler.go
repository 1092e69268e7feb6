package queue

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler drives periodic drains of one queue on a cron schedule. It is
// just another stateless caller of the tick engine: a scheduled drain racing
// an HTTP-triggered or CLI drain is safe by construction.
type Scheduler struct {
	cron   *cron.Cron
	svc    *Service
	queue  string
	spec   string
	logger *slog.Logger
}

// NewScheduler creates a scheduler that drains the named queue per the cron
// spec (e.g. "@every 5m").
func NewScheduler(svc *Service, queueName, cronSpec string, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		svc:    svc,
		queue:  queueName,
		spec:   cronSpec,
		logger: logger,
	}
}

// Start registers the drain job and starts the cron loop.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, func() {
		ctx := context.Background()
		res, err := s.svc.DrainToEmpty(ctx, s.queue, 0)
		if err != nil {
			s.logger.Warn("scheduled drain failed",
				"queue", s.queue,
				"ticks", res.Ticks,
				"error", err,
			)
			return
		}
		s.logger.Info("scheduled drain finished",
			"queue", s.queue,
			"ticks", res.Ticks,
			"launched", res.Launched,
			"reason", res.LastReason,
		)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("drain scheduler started", "queue", s.queue, "schedule", s.spec)
	return nil
}

// Stop gracefully stops the cron loop.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("drain scheduler stopped", "queue", s.queue)
}
