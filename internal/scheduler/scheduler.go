package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/example/tutorcore/internal/clock"
	"github.com/example/tutorcore/internal/syncqueue"
	"github.com/example/tutorcore/pkg/models"
	"github.com/go-co-op/gocron"
)

// Константы для настроек уведомлений по умолчанию
const (
	DefaultNotificationStartHour = 8  // Время начала уведомлений (8:00)
	DefaultNotificationEndHour   = 22 // Время окончания уведомлений (22:00)
	DefaultFlushInterval         = 5 * time.Minute
)

// Notifier interface for sending notifications
type Notifier interface {
	SendReminders(userID int64, count int) error
}

// ReminderSource finds users to remind and counts their due items
type ReminderSource interface {
	GetUsersForNotification(ctx context.Context, hour int) ([]models.UserProfile, error)
	CountAllDue(ctx context.Context, userID int64, now time.Time) (int, error)
}

// Flusher pushes pending sync entries to the remote store
type Flusher interface {
	FlushAll(ctx context.Context) map[int64]syncqueue.Status
}

// Options configure the background jobs
type Options struct {
	StartHour     int
	EndHour       int
	FlushInterval time.Duration
}

// DefaultOptions returns the default job settings
func DefaultOptions() Options {
	return Options{
		StartHour:     DefaultNotificationStartHour,
		EndHour:       DefaultNotificationEndHour,
		FlushInterval: DefaultFlushInterval,
	}
}

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler *gocron.Scheduler
	notifier  Notifier
	reminders ReminderSource
	flusher   Flusher
	clock     clock.Clock
	opts      Options
}

// New creates a new scheduler instance. A nil notifier disables reminders,
// a nil flusher disables periodic sync.
func New(notifier Notifier, reminders ReminderSource, flusher Flusher, clk clock.Clock, opts Options) *Scheduler {
	if clk == nil {
		clk = clock.Real()
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		notifier:  notifier,
		reminders: reminders,
		flusher:   flusher,
		clock:     clk,
		opts:      opts,
	}
}

// Start begins running all scheduled tasks
func (s *Scheduler) Start(ctx context.Context) error {
	if s.notifier != nil && s.reminders != nil {
		// Schedule hourly check for users who need notifications
		if _, err := s.scheduler.Every(1).Hour().Do(s.CheckReminders, ctx); err != nil {
			return fmt.Errorf("failed to schedule reminders: %w", err)
		}
	}
	if s.flusher != nil {
		if _, err := s.scheduler.Every(s.opts.FlushInterval).WaitForSchedule().Do(s.FlushPending, ctx); err != nil {
			return fmt.Errorf("failed to schedule sync flush: %w", err)
		}
	}

	// Start the scheduler in a non-blocking manner
	s.scheduler.StartAsync()
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// InNotificationHours reports whether hour lies in [StartHour, EndHour]
func (s *Scheduler) InNotificationHours(hour int) bool {
	return hour >= s.opts.StartHour && hour <= s.opts.EndHour
}

// CheckReminders sends reminders to users whose notification hour is now
func (s *Scheduler) CheckReminders(ctx context.Context) {
	now := s.clock.Now()
	currentHour := now.Hour()

	if !s.InNotificationHours(currentHour) {
		log.Printf("Current hour %d is outside notification hours (%d-%d), skipping reminders",
			currentHour, s.opts.StartHour, s.opts.EndHour)
		return
	}

	users, err := s.reminders.GetUsersForNotification(ctx, currentHour)
	if err != nil {
		log.Printf("Error getting users for notification: %v", err)
		return
	}

	for _, user := range users {
		if err := s.remind(ctx, user.ID, now); err != nil {
			log.Printf("Error sending reminder to user %d: %v", user.ID, err)
		}
	}
}

// RunManualCheck forces a check for a specific user
func (s *Scheduler) RunManualCheck(ctx context.Context, userID int64) error {
	return s.remind(ctx, userID, s.clock.Now())
}

func (s *Scheduler) remind(ctx context.Context, userID int64, now time.Time) error {
	count, err := s.reminders.CountAllDue(ctx, userID, now)
	if err != nil {
		return err
	}
	if count == 0 {
		return nil
	}
	return s.notifier.SendReminders(userID, count)
}

// FlushPending flushes every user's sync queue and logs failures
func (s *Scheduler) FlushPending(ctx context.Context) {
	for userID, status := range s.flusher.FlushAll(ctx) {
		if status != syncqueue.StatusSuccess {
			log.Printf("Background sync for user %d: %s", userID, status)
		}
	}
}
