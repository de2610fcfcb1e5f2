package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jholhewres/daybrief/pkg/daybrief/outlook"
)

// Default fetch limits for the context snapshot.
const (
	todayMessageLimit  = 25
	unreadMessageLimit = 50
)

// timestampLayout renders times in prompt text.
const timestampLayout = "Mon, Jan 2 2006 3:04 PM"

// MailboxReader is the slice of the Graph client the snapshot needs.
type MailboxReader interface {
	TodayMessages(ctx context.Context, limit int) ([]outlook.Message, error)
	UnreadMessages(ctx context.Context, limit int) ([]outlook.Message, error)
	TodayEvents(ctx context.Context) ([]outlook.Event, error)
}

// ContextAssembler builds the textual mailbox/calendar snapshot injected
// into the model's system prompt.
type ContextAssembler struct {
	reader MailboxReader
	logger *slog.Logger
}

// NewContextAssembler creates a ContextAssembler over reader.
func NewContextAssembler(reader MailboxReader, logger *slog.Logger) *ContextAssembler {
	return &ContextAssembler{reader: reader, logger: logger.With("component", "context")}
}

// Snapshot fetches today's mail, today's calendar and unread counts, and
// renders them as prompt text. Each read degrades independently: a failed
// fetch becomes an explanatory line in the blob, never an error. The unread
// section fails silently.
func (ca *ContextAssembler) Snapshot(ctx context.Context) string {
	var b strings.Builder

	if msgs, err := ca.reader.TodayMessages(ctx, todayMessageLimit); err != nil {
		ca.logger.Warn("failed to fetch today's mail", "error", err)
		fmt.Fprintf(&b, "\n=== EMAILS ===\nUnable to fetch emails: %v\n", err)
	} else {
		fmt.Fprintf(&b, "\n=== TODAY'S EMAILS (%d total) ===\n", len(msgs))
		if len(msgs) == 0 {
			b.WriteString("No emails received today.\n")
		}
		for i, m := range msgs {
			fmt.Fprintf(&b, "\n--- Email %d ---\n%s", i+1, formatMessage(m))
		}
	}

	if events, err := ca.reader.TodayEvents(ctx); err != nil {
		ca.logger.Warn("failed to fetch today's calendar", "error", err)
		fmt.Fprintf(&b, "\n=== CALENDAR ===\nUnable to fetch calendar: %v\n", err)
	} else {
		fmt.Fprintf(&b, "\n=== TODAY'S CALENDAR (%d events) ===\n", len(events))
		if len(events) == 0 {
			b.WriteString("No events scheduled for today.\n")
		}
		for i, e := range events {
			fmt.Fprintf(&b, "\n--- Event %d ---\n%s", i+1, formatEvent(e))
		}
	}

	if unread, err := ca.reader.UnreadMessages(ctx, unreadMessageLimit); err == nil {
		fmt.Fprintf(&b, "\n=== UNREAD EMAILS ===\nYou have %d unread emails.\n", len(unread))

		var highPriority []outlook.Message
		for _, m := range unread {
			if m.HighImportance {
				highPriority = append(highPriority, m)
			}
		}
		if len(highPriority) > 0 {
			fmt.Fprintf(&b, "\n=== HIGH PRIORITY UNREAD (%d) ===\n", len(highPriority))
			for i, m := range highPriority {
				fmt.Fprintf(&b, "\n--- Priority Email %d ---\n%s", i+1, formatMessage(m))
			}
		}
	} else {
		// Unread counts are nice-to-have; drop the section on failure.
		ca.logger.Debug("failed to fetch unread mail", "error", err)
	}

	return b.String()
}

// formatMessage renders one mail message for prompt text.
func formatMessage(m outlook.Message) string {
	from := m.From.Name
	if from == "" {
		from = m.From.Address
	}
	if from == "" {
		from = "Unknown"
	}
	preview := m.Preview
	if preview == "" {
		preview = "No preview available"
	}

	var flags string
	if m.HighImportance {
		flags += "[HIGH PRIORITY] "
	}
	if !m.IsRead {
		flags += "[UNREAD] "
	}

	return fmt.Sprintf("%sFrom: %s\nDate: %s\nSubject: %s\nPreview: %s\n",
		flags, from, m.ReceivedAt.Format(timestampLayout), m.Subject, preview)
}

// formatEvent renders one calendar event for prompt text.
func formatEvent(e outlook.Event) string {
	location := e.Location
	if location == "" {
		location = "No location"
	}
	organizer := e.Organizer
	if organizer == "" {
		organizer = "Unknown"
	}

	s := fmt.Sprintf("Event: %s\nTime: %s - %s\nLocation: %s\nOrganizer: %s\n",
		e.Subject, e.Start.Format(timestampLayout), e.End.Format(timestampLayout), location, organizer)
	if e.Preview != "" {
		s += "Details: " + e.Preview + "\n"
	}
	return s
}
