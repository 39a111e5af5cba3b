package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"
	"golang.org/x/sync/errgroup"

	"github.com/example/lingoloop/internal/config"
	"github.com/example/lingoloop/internal/logger"
	"github.com/example/lingoloop/pkg/models"
)

// Notifier interface for sending notifications
type Notifier interface {
	SendReminder(ctx context.Context, learner models.Learner, count int) error
}

// LearnerStore looks up learners to remind
type LearnerStore interface {
	ListForNotification(ctx context.Context, hour int) ([]models.Learner, error)
	GetByID(ctx context.Context, id string) (*models.Learner, error)
}

// DueCounter counts words waiting for review
type DueCounter interface {
	CountDue(ctx context.Context, learnerID string, now time.Time) (int, error)
}

// SweepResult summarizes one reminder sweep
type SweepResult struct {
	Skipped  bool // outside the notification window
	Checked  int
	Notified int
	Failed   int
}

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler *gocron.Scheduler
	cfg       config.ReminderConfig
	learners  LearnerStore
	words     DueCounter
	notifier  Notifier
	log       *logger.Logger
	now       func() time.Time
}

// New creates a new scheduler instance. Hours are UTC.
func New(cfg config.ReminderConfig, learners LearnerStore, words DueCounter, notifier Notifier, log *logger.Logger) *Scheduler {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Every <= 0 {
		cfg.Every = time.Hour
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		cfg:       cfg,
		learners:  learners,
		words:     words,
		notifier:  notifier,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start begins running all scheduled tasks
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.scheduler.Every(s.cfg.Every).Do(func() {
		result, err := s.Sweep(ctx)
		if err != nil {
			s.log.Error("Reminder sweep failed", "error", err)
			return
		}
		if !result.Skipped {
			s.log.Info("Reminder sweep finished",
				"checked", result.Checked, "notified", result.Notified, "failed", result.Failed)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reminder sweep: %w", err)
	}

	// Start the scheduler in a non-blocking manner
	s.scheduler.StartAsync()
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// Sweep reminds every learner whose notification hour is now and who has
// words due. Failures for one learner are logged and counted; only a failure
// to list learners is returned.
func (s *Scheduler) Sweep(ctx context.Context) (SweepResult, error) {
	now := s.now()
	hour := now.Hour()

	if hour < s.cfg.StartHour || hour > s.cfg.EndHour {
		s.log.Debug("Outside notification hours, skipping reminders",
			"hour", hour, "start", s.cfg.StartHour, "end", s.cfg.EndHour)
		return SweepResult{Skipped: true}, nil
	}

	// Get learners who should receive notifications at the current hour
	learners, err := s.learners.ListForNotification(ctx, hour)
	if err != nil {
		return SweepResult{}, fmt.Errorf("failed to get learners for notification: %w", err)
	}

	var notified, failed int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, learner := range learners {
		learner := learner
		g.Go(func() error {
			sent, err := s.remind(gctx, learner, now, true)
			switch {
			case err != nil:
				atomic.AddInt64(&failed, 1)
				s.log.Warn("Error sending reminder", "learner", learner.ID, "error", err)
			case sent:
				atomic.AddInt64(&notified, 1)
			}
			return nil
		})
	}
	_ = g.Wait()

	return SweepResult{
		Checked:  len(learners),
		Notified: int(notified),
		Failed:   int(failed),
	}, nil
}

// RunManualCheck forces a check for a specific learner, ignoring the
// notification window and the daily cap
func (s *Scheduler) RunManualCheck(ctx context.Context, learnerID string) (bool, error) {
	learner, err := s.learners.GetByID(ctx, learnerID)
	if err != nil {
		return false, err
	}
	return s.remind(ctx, *learner, s.now(), false)
}

func (s *Scheduler) remind(ctx context.Context, learner models.Learner, now time.Time, capped bool) (bool, error) {
	count, err := s.words.CountDue(ctx, learner.ID, now)
	if err != nil {
		return false, err
	}
	if count == 0 {
		return false, nil
	}
	// Don't send more than the learner's daily preference
	if capped && learner.WordsPerDay > 0 && count > learner.WordsPerDay {
		count = learner.WordsPerDay
	}
	if err := s.notifier.SendReminder(ctx, learner, count); err != nil {
		return false, err
	}
	return true, nil
}
