package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jholhewres/daybrief/pkg/daybrief/memory"
	"github.com/jholhewres/daybrief/pkg/daybrief/outlook"
	"github.com/jholhewres/daybrief/pkg/daybrief/store"
)

// Effect records the side effect a processed message produced, so callers
// and tests can distinguish a plain reply from a calendar write.
type Effect int

const (
	// EffectNone means the reply carried no directive.
	EffectNone Effect = iota
	// EffectEventCreated means a calendar event was created.
	EffectEventCreated
	// EffectEventFailed means a valid directive was present but the
	// calendar write failed.
	EffectEventFailed
)

// Result is a processed reply plus the side effect it triggered.
type Result struct {
	Reply  string
	Effect Effect
}

// Confirmation suffixes appended after a directive is executed.
const (
	eventCreatedSuffix = "\n✓ Event added to your calendar!"
	eventFailedSuffix  = "\n⚠ Failed to add event to calendar."
)

// CalendarWriter is the slice of the Graph client the directive executor needs.
type CalendarWriter interface {
	CreateEvent(ctx context.Context, draft *outlook.EventDraft) error
}

// Processor runs one user message through the full pipeline: snapshot
// assembly, memory injection, the model call, and directive execution.
type Processor struct {
	assembler  *ContextAssembler
	calendar   CalendarWriter
	llm        Completer
	memoryFile *store.File
	logger     *slog.Logger
	now        func() time.Time
}

// NewProcessor creates a Processor.
func NewProcessor(assembler *ContextAssembler, calendar CalendarWriter, llm Completer, memoryFile *store.File, logger *slog.Logger) *Processor {
	return &Processor{
		assembler:  assembler,
		calendar:   calendar,
		llm:        llm,
		memoryFile: memoryFile,
		logger:     logger.With("component", "processor"),
		now:        time.Now,
	}
}

// SetClock overrides the clock (used in tests).
func (p *Processor) SetClock(now func() time.Time) { p.now = now }

// Process answers one user message. Model failures propagate wrapped in
// ErrAIProcessing; callers substitute an apology. Directive execution
// failures do not fail the call — the reply carries a warning suffix instead.
func (p *Processor) Process(ctx context.Context, userMessage string) (*Result, error) {
	snapshot := p.assembler.Snapshot(ctx)

	mem, err := memory.Load(p.memoryFile)
	if err != nil {
		// A corrupt memory record must not block replies.
		p.logger.Warn("failed to load user memory", "error", err)
		mem = &memory.Memory{}
	}

	reply, err := p.llm.Complete(ctx, p.systemPrompt(mem.Format(), snapshot), userMessage)
	if err != nil {
		return nil, err
	}

	draft, derr := ExtractDirective(reply)
	if derr != nil {
		// Malformed directive: deliver the reply as-is, markers included.
		p.logger.Warn("malformed event directive in model reply", "error", derr)
		return &Result{Reply: reply, Effect: EffectNone}, nil
	}
	if draft == nil {
		return &Result{Reply: reply, Effect: EffectNone}, nil
	}

	if err := p.calendar.CreateEvent(ctx, draft); err != nil {
		p.logger.Error("failed to create calendar event", "subject", draft.Subject, "error", err)
		return &Result{Reply: StripDirective(reply) + eventFailedSuffix, Effect: EffectEventFailed}, nil
	}
	return &Result{Reply: StripDirective(reply) + eventCreatedSuffix, Effect: EffectEventCreated}, nil
}

// DailySummary asks the model for a digest of today's mail and calendar.
func (p *Processor) DailySummary(ctx context.Context) (*Result, error) {
	return p.Process(ctx, "Give me a brief summary of my day - what emails came in today and what's on my calendar?")
}

// ImportantItems asks the model for the urgent items needing attention.
func (p *Processor) ImportantItems(ctx context.Context) (*Result, error) {
	return p.Process(ctx, "What are the most important or urgent items I should pay attention to today? Consider high-priority emails and upcoming meetings.")
}

// systemPrompt renders the full system prompt: capabilities, the current
// timestamp, the user memory block and the mailbox snapshot.
func (p *Processor) systemPrompt(memoryBlock, snapshot string) string {
	return fmt.Sprintf(`You are a helpful AI assistant that helps the user manage their Outlook email and calendar via SMS.
You have access to their current email and calendar data provided below.

Current Date/Time: %s
%s
%s

CAPABILITIES:
- READ emails (you can see and summarize emails)
- READ calendar (you can see calendar events)
- CREATE calendar events (you can add new events)
- You CANNOT send, write, or reply to emails - only read them

INSTRUCTIONS:
- Answer questions about their emails and calendar based on the data provided
- Be concise since responses are sent via SMS (keep under 300 characters when possible)
- Highlight important or urgent items, especially from important senders listed in preferences
- If asked about something not in the data, explain what information you have access to
- For emails, mention sender, subject, and key details
- For calendar, mention event name, time, and location
- Be friendly but professional
- Follow any custom instructions from the user's preferences
- If user asks to send/write/reply to an email, politely explain you can only read emails, not send them

CREATING CALENDAR EVENTS:
When the user asks to add something to their calendar, respond with the event details AND include a JSON block like this:
[CREATE_EVENT]{"subject": "Meeting title", "startDateTime": "2026-02-03T14:00:00", "endDateTime": "2026-02-03T15:00:00", "location": "Office", "body": "Optional notes"}[/CREATE_EVENT]

Use ISO 8601 format for dates. Always confirm what you're adding before adding it.`,
		p.now().Format(timestampLayout), memoryBlock, snapshot)
}
