// Package jobs runs the background maintenance work on a cron schedule.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	sweepBatchSize = 50
	sweepTimeout   = 5 * time.Minute
)

// PaymentSweeper reconciles payments that nobody polled to completion.
type PaymentSweeper interface {
	SweepPending(ctx context.Context, limit int) (int, error)
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron     *cron.Cron
	sweeper  PaymentSweeper
	schedule string
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewScheduler(sweeper PaymentSweeper, schedule string) *Scheduler {
	cronLogger := cron.PrintfLogger(logrus.StandardLogger())
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:     cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger))),
		sweeper:  sweeper,
		schedule: schedule,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start registers the sweep and starts the scheduler. An empty schedule
// leaves the sweep disabled.
func (s *Scheduler) Start() error {
	if s.schedule == "" {
		logrus.Info("Pending payment sweep disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, s.SweepPayments); err != nil {
		return err
	}
	logrus.WithField("schedule", s.schedule).Info("Scheduled pending payment sweep")

	s.cron.Start()
	return nil
}

// SweepPayments runs one sweep pass.
func (s *Scheduler) SweepPayments() {
	ctx, cancel := context.WithTimeout(s.ctx, sweepTimeout)
	defer cancel()

	resolved, err := s.sweeper.SweepPending(ctx, sweepBatchSize)
	if err != nil {
		logrus.WithError(err).Warn("Pending payment sweep stopped early")
		return
	}
	if resolved > 0 {
		logrus.WithField("resolved", resolved).Info("Pending payment sweep resolved payments")
	}
}

// Stop cancels a running sweep and waits for it to return.
func (s *Scheduler) Stop() context.Context {
	s.cancel()
	return s.cron.Stop()
}
