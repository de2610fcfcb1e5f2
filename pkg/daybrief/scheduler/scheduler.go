// Package scheduler runs the assistant's proactive jobs: morning briefing,
// evening recap, pre-meeting reminders and urgent email alerts. Uses
// robfig/cron for cron expression parsing and execution, with the schedule
// persisted as an editable JSON file.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jholhewres/daybrief/pkg/daybrief/assistant"
	"github.com/jholhewres/daybrief/pkg/daybrief/outlook"
	"github.com/jholhewres/daybrief/pkg/daybrief/store"
)

const (
	// jobTimeout is the maximum time a single job execution can take.
	jobTimeout = 5 * time.Minute

	// reminderWindow is how often the reminder sweep runs. The firing
	// condition admits a meeting exactly once because each sweep only
	// claims the slice of the countdown that elapsed since the previous
	// sweep.
	reminderWindow = time.Minute
)

// Briefer generates prompt-driven replies for scheduled briefings.
type Briefer interface {
	Process(ctx context.Context, userMessage string) (*assistant.Result, error)
}

// Calendar lists today's events for meeting reminders.
type Calendar interface {
	TodayEvents(ctx context.Context) ([]outlook.Event, error)
}

// Mailbox lists unread messages for the urgent email sweep.
type Mailbox interface {
	UnreadMessages(ctx context.Context, limit int) ([]outlook.Message, error)
}

// Notifier pushes text to the user over the first available channel.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Scheduler manages the proactive jobs.
type Scheduler struct {
	file     *store.File
	auth     assistant.AuthChecker
	briefer  Briefer
	calendar Calendar
	mailbox  Mailbox
	notify   Notifier
	logger   *slog.Logger

	// runMu serializes Start, Stop and Reload. The dashboard's reload
	// endpoint can otherwise race the shutdown path over s.cron.
	runMu sync.Mutex
	cron  *cron.Cron

	// mu guards lastChecked, the cursor for the urgent email sweep.
	// Only mail received after the cursor can alert, so an email never
	// alerts twice and old backlog never alerts at all.
	mu          sync.Mutex
	lastChecked time.Time

	now func() time.Time
}

// New creates a Scheduler persisting its schedule in the given file.
func New(file *store.File, auth assistant.AuthChecker, briefer Briefer, calendar Calendar, mailbox Mailbox, notify Notifier, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		file:        file,
		auth:        auth,
		briefer:     briefer,
		calendar:    calendar,
		mailbox:     mailbox,
		notify:      notify,
		logger:      logger.With("component", "scheduler"),
		lastChecked: time.Now(),
		now:         time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
	s.mu.Lock()
	s.lastChecked = now()
	s.mu.Unlock()
}

// Load reads the schedule file, returning the default schedule when the
// file is absent or unreadable.
func (s *Scheduler) Load() Schedule {
	sched := Default()
	found, err := s.file.Load(&sched)
	if err != nil {
		s.logger.Warn("failed to load schedule, using defaults", "error", err)
		return Default()
	}
	if !found {
		return Default()
	}
	return sched
}

// Save persists the schedule file.
func (s *Scheduler) Save(sched Schedule) error {
	return s.file.Save(sched)
}

// Start loads the schedule and registers cron jobs for every enabled entry.
func (s *Scheduler) Start() error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.start()
}

func (s *Scheduler) start() error {
	sched := s.Load()

	if !sched.Enabled {
		s.logger.Info("scheduler is disabled")
		return nil
	}

	s.cron = cron.New(cron.WithLocation(sched.Location()))

	if sched.MorningSummary.Enabled {
		expr, err := timeToCron(sched.MorningSummary.Time)
		if err != nil {
			return fmt.Errorf("morning summary: %w", err)
		}
		if _, err := s.cron.AddFunc(expr, s.sendMorningSummary); err != nil {
			return fmt.Errorf("scheduling morning summary: %w", err)
		}
		s.logger.Info("morning summary scheduled", "time", sched.MorningSummary.Time)
	}

	if sched.EveningRecap.Enabled {
		expr, err := timeToCron(sched.EveningRecap.Time)
		if err != nil {
			return fmt.Errorf("evening recap: %w", err)
		}
		if _, err := s.cron.AddFunc(expr, s.sendEveningRecap); err != nil {
			return fmt.Errorf("scheduling evening recap: %w", err)
		}
		s.logger.Info("evening recap scheduled", "time", sched.EveningRecap.Time)
	}

	if sched.MeetingReminders.Enabled {
		expr := fmt.Sprintf("@every %s", reminderWindow)
		if _, err := s.cron.AddFunc(expr, s.checkMeetingReminders); err != nil {
			return fmt.Errorf("scheduling meeting reminders: %w", err)
		}
		s.logger.Info("meeting reminders enabled", "minutes_before", sched.MeetingReminders.MinutesBefore)
	}

	if sched.UrgentEmailAlerts.Enabled {
		minutes := sched.UrgentEmailAlerts.CheckEveryMinutes
		if minutes <= 0 {
			minutes = 30
		}
		expr := fmt.Sprintf("*/%d * * * *", minutes)
		if _, err := s.cron.AddFunc(expr, s.checkUrgentEmails); err != nil {
			return fmt.Errorf("scheduling urgent email alerts: %w", err)
		}
		s.logger.Info("urgent email alerts enabled", "every_minutes", minutes)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
	return nil
}

// Stop gracefully shuts down the scheduler, waiting for running jobs.
func (s *Scheduler) Stop() {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	s.stop()
}

func (s *Scheduler) stop() {
	if s.cron == nil {
		return
	}
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(10 * time.Second):
		s.logger.Warn("scheduler stop timed out")
	}
	s.cron = nil
	s.logger.Info("scheduler stopped")
}

// Reload restarts the scheduler from the current schedule file. Called
// after the file is edited.
func (s *Scheduler) Reload() error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	s.stop()
	return s.start()
}

// ---------- Jobs ----------

func (s *Scheduler) sendMorningSummary() {
	if !s.auth.IsAuthenticated() {
		s.logger.Info("skipping morning summary, not signed in")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	sched := s.Load()
	result, err := s.briefer.Process(ctx, "Give me my morning briefing: What's on my calendar today? Any important emails I should know about? Keep it concise.")
	if err != nil {
		s.logger.Error("failed to generate morning summary", "error", err)
		return
	}

	message := sched.MorningSummary.Message + "\n\n" + result.Reply
	if err := s.notify.Notify(ctx, message); err != nil {
		s.logger.Error("failed to deliver morning summary", "error", err)
		return
	}
	s.logger.Info("morning summary sent")
}

func (s *Scheduler) sendEveningRecap() {
	if !s.auth.IsAuthenticated() {
		s.logger.Info("skipping evening recap, not signed in")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	sched := s.Load()
	result, err := s.briefer.Process(ctx, "Give me a quick recap of today: How many emails did I get? Any I haven't read? Any meetings I had? Keep it brief.")
	if err != nil {
		s.logger.Error("failed to generate evening recap", "error", err)
		return
	}

	message := sched.EveningRecap.Message + "\n\n" + result.Reply
	if err := s.notify.Notify(ctx, message); err != nil {
		s.logger.Error("failed to deliver evening recap", "error", err)
		return
	}
	s.logger.Info("evening recap sent")
}

// checkMeetingReminders runs every reminderWindow and pings the user for
// each meeting whose countdown just crossed the reminder threshold.
func (s *Scheduler) checkMeetingReminders() {
	if !s.auth.IsAuthenticated() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	sched := s.Load()
	minutesBefore := sched.MeetingReminders.MinutesBefore
	if minutesBefore <= 0 {
		minutesBefore = 15
	}
	threshold := time.Duration(minutesBefore) * time.Minute

	events, err := s.calendar.TodayEvents(ctx)
	if err != nil {
		s.logger.Error("failed to fetch events for reminders", "error", err)
		return
	}

	now := s.now()
	for _, event := range events {
		until := event.Start.Sub(now)

		// Fire once per meeting: inside the threshold, but only in the
		// first sweep after crossing it.
		if until <= 0 || until > threshold || until <= threshold-reminderWindow {
			continue
		}

		location := ""
		if event.Location != "" {
			location = " at " + event.Location
		}
		minutes := int(math.Round(until.Minutes()))
		message := fmt.Sprintf("⏰ Reminder: %q%s starts in %d minutes!", event.Subject, location, minutes)

		if err := s.notify.Notify(ctx, message); err != nil {
			s.logger.Error("failed to deliver meeting reminder", "subject", event.Subject, "error", err)
			continue
		}
		s.logger.Info("meeting reminder sent", "subject", event.Subject)
	}
}

// checkUrgentEmails sweeps unread mail for new high-importance messages
// inside the configured daily window.
func (s *Scheduler) checkUrgentEmails() {
	if !s.auth.IsAuthenticated() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	sched := s.Load()
	now := s.now()

	clock := now.In(sched.Location()).Format("15:04")
	if !sched.UrgentEmailAlerts.OnlyDuring.inWindow(clock) {
		return
	}

	messages, err := s.mailbox.UnreadMessages(ctx, 50)
	if err != nil {
		s.logger.Error("failed to fetch unread mail for urgent sweep", "error", err)
		return
	}

	s.mu.Lock()
	cursor := s.lastChecked
	s.mu.Unlock()

	for _, msg := range messages {
		if !msg.HighImportance || !msg.ReceivedAt.After(cursor) {
			continue
		}

		from := msg.From.Name
		if from == "" {
			from = msg.From.Address
		}
		if from == "" {
			from = "Unknown"
		}
		alert := fmt.Sprintf("🚨 Urgent email from %s: %q", from, msg.Subject)

		if err := s.notify.Notify(ctx, alert); err != nil {
			s.logger.Error("failed to deliver urgent email alert", "subject", msg.Subject, "error", err)
			continue
		}
		s.logger.Info("urgent email alert sent", "subject", msg.Subject)
	}

	// Advance the cursor even when nothing alerted so the sweep never
	// rescans the same receipt times.
	s.mu.Lock()
	s.lastChecked = now
	s.mu.Unlock()
}
