package scheduler

import (
	"fmt"
	"time"
)

// Schedule configures the assistant's proactive jobs. It is persisted as a
// JSON file the user can edit by hand; field names stay camelCase so the
// file reads naturally.
type Schedule struct {
	// Enabled turns the whole scheduler on or off.
	Enabled bool `json:"enabled"`

	// Timezone is the IANA zone all job times are interpreted in.
	Timezone string `json:"timezone"`

	// MorningSummary sends a daily briefing at a fixed time.
	MorningSummary BriefingJob `json:"morningSummary"`

	// EveningRecap sends a recap of the day at a fixed time.
	EveningRecap BriefingJob `json:"eveningRecap"`

	// MeetingReminders pings the user shortly before each meeting.
	MeetingReminders ReminderJob `json:"meetingReminders"`

	// UrgentEmailAlerts periodically sweeps for new high-importance mail.
	UrgentEmailAlerts UrgentJob `json:"urgentEmailAlerts"`
}

// BriefingJob is a once-a-day prompt-driven notification.
type BriefingJob struct {
	Enabled bool `json:"enabled"`

	// Time is the send time as "HH:MM" in the schedule's timezone.
	Time string `json:"time"`

	// Message is the greeting prepended to the generated briefing.
	Message string `json:"message"`
}

// ReminderJob configures pre-meeting reminders.
type ReminderJob struct {
	Enabled bool `json:"enabled"`

	// MinutesBefore is how far ahead of the meeting start the reminder fires.
	MinutesBefore int `json:"minutesBefore"`
}

// UrgentJob configures the urgent-email sweep.
type UrgentJob struct {
	Enabled bool `json:"enabled"`

	// CheckEveryMinutes is the sweep interval.
	CheckEveryMinutes int `json:"checkEveryMinutes"`

	// OnlyDuring restricts alerts to a daily time window, so a 2 AM email
	// does not wake the user.
	OnlyDuring TimeWindow `json:"onlyDuring"`
}

// TimeWindow is an inclusive daily window, both ends as "HH:MM".
type TimeWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Default returns the schedule used when no schedule file exists yet.
func Default() Schedule {
	return Schedule{
		Enabled:  true,
		Timezone: "America/New_York",
		MorningSummary: BriefingJob{
			Enabled: true,
			Time:    "08:00",
			Message: "Good morning! Here's your daily briefing.",
		},
		EveningRecap: BriefingJob{
			Enabled: false,
			Time:    "18:00",
			Message: "Here's your evening recap.",
		},
		MeetingReminders: ReminderJob{
			Enabled:       true,
			MinutesBefore: 15,
		},
		UrgentEmailAlerts: UrgentJob{
			Enabled:           true,
			CheckEveryMinutes: 30,
			OnlyDuring: TimeWindow{
				Start: "09:00",
				End:   "17:00",
			},
		},
	}
}

// Location resolves the schedule's timezone, falling back to the system
// zone when the name is empty or unknown.
func (s Schedule) Location() *time.Location {
	if s.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// timeToCron converts an "HH:MM" clock time to a five-field cron expression.
func timeToCron(clock string) (string, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return "", fmt.Errorf("invalid time %q: expected HH:MM", clock)
	}
	return fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour()), nil
}

// inWindow reports whether the clock time "HH:MM" falls inside the window,
// boundaries included. Lexicographic comparison is correct for zero-padded
// 24-hour clock strings.
func (w TimeWindow) inWindow(clock string) bool {
	if w.Start == "" || w.End == "" {
		return true
	}
	return clock >= w.Start && clock <= w.End
}
