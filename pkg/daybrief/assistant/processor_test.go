package assistant

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jholhewres/daybrief/pkg/daybrief/memory"
	"github.com/jholhewres/daybrief/pkg/daybrief/outlook"
	"github.com/jholhewres/daybrief/pkg/daybrief/store"
)

// fakeCompleter captures the prompts and replies with a scripted string.
type fakeCompleter struct {
	reply      string
	err        error
	gotSystem  string
	gotMessage string
	calls      int
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	f.calls++
	f.gotSystem = systemPrompt
	f.gotMessage = userMessage
	return f.reply, f.err
}

// fakeCalendar records CreateEvent calls.
type fakeCalendar struct {
	err    error
	drafts []*outlook.EventDraft
}

func (f *fakeCalendar) CreateEvent(ctx context.Context, draft *outlook.EventDraft) error {
	f.drafts = append(f.drafts, draft)
	return f.err
}

func newTestProcessor(t *testing.T, llm *fakeCompleter, cal *fakeCalendar, reader MailboxReader) (*Processor, *store.File) {
	t.Helper()
	if reader == nil {
		reader = &fakeReader{}
	}
	memFile := store.NewFile(filepath.Join(t.TempDir(), "memory.json"))
	logger := testLogger()
	p := NewProcessor(NewContextAssembler(reader, logger), cal, llm, memFile, logger)
	return p, memFile
}

func TestProcess(t *testing.T) {
	t.Run("plain reply passes through", func(t *testing.T) {
		llm := &fakeCompleter{reply: "You have 2 meetings."}
		cal := &fakeCalendar{}
		p, _ := newTestProcessor(t, llm, cal, nil)

		res, err := p.Process(context.Background(), "what's my day like?")
		if err != nil {
			t.Fatal(err)
		}
		if res.Reply != "You have 2 meetings." || res.Effect != EffectNone {
			t.Errorf("res = %+v", res)
		}
		if len(cal.drafts) != 0 {
			t.Errorf("unexpected calendar writes: %d", len(cal.drafts))
		}
		if llm.gotMessage != "what's my day like?" {
			t.Errorf("user message = %q", llm.gotMessage)
		}
	})

	t.Run("snapshot and memory reach the prompt", func(t *testing.T) {
		llm := &fakeCompleter{reply: "ok"}
		reader := &fakeReader{today: []outlook.Message{msg("Alice", "Budget", true, false)}}
		p, memFile := newTestProcessor(t, llm, &fakeCalendar{}, reader)

		if err := memFile.Save(&memory.Memory{UserName: "Jo", Notes: []string{"prefers bullets"}}); err != nil {
			t.Fatal(err)
		}

		if _, err := p.Process(context.Background(), "hi"); err != nil {
			t.Fatal(err)
		}
		for _, want := range []string{
			"Subject: Budget",
			"User's name: Jo",
			"- prefers bullets",
			"CREATE calendar events",
			"[CREATE_EVENT]",
		} {
			if !strings.Contains(llm.gotSystem, want) {
				t.Errorf("system prompt missing %q", want)
			}
		}
	})

	t.Run("directive creates event and rewrites reply", func(t *testing.T) {
		llm := &fakeCompleter{reply: `Adding it now.
[CREATE_EVENT]{"subject": "Dentist", "startDateTime": "2026-03-05T10:00:00", "endDateTime": "2026-03-05T10:30:00"}[/CREATE_EVENT]`}
		cal := &fakeCalendar{}
		p, _ := newTestProcessor(t, llm, cal, nil)

		res, err := p.Process(context.Background(), "book the dentist thursday at 10")
		if err != nil {
			t.Fatal(err)
		}
		if res.Effect != EffectEventCreated {
			t.Errorf("Effect = %v", res.Effect)
		}
		if len(cal.drafts) != 1 || cal.drafts[0].Subject != "Dentist" {
			t.Errorf("drafts = %+v", cal.drafts)
		}
		if strings.Contains(res.Reply, "[CREATE_EVENT]") || strings.Contains(res.Reply, "[/CREATE_EVENT]") {
			t.Errorf("markers in reply: %q", res.Reply)
		}
		if !strings.HasSuffix(res.Reply, "✓ Event added to your calendar!") {
			t.Errorf("missing confirmation: %q", res.Reply)
		}
	})

	t.Run("calendar write failure keeps reply with warning", func(t *testing.T) {
		llm := &fakeCompleter{reply: `Sure.
[CREATE_EVENT]{"subject": "Lunch", "startDateTime": "2026-03-05T12:00:00", "endDateTime": "2026-03-05T13:00:00"}[/CREATE_EVENT]`}
		cal := &fakeCalendar{err: errors.New("graph 503")}
		p, _ := newTestProcessor(t, llm, cal, nil)

		res, err := p.Process(context.Background(), "lunch thursday")
		if err != nil {
			t.Fatal(err)
		}
		if res.Effect != EffectEventFailed {
			t.Errorf("Effect = %v", res.Effect)
		}
		if strings.Contains(res.Reply, "[CREATE_EVENT]") {
			t.Errorf("markers in reply: %q", res.Reply)
		}
		if !strings.HasSuffix(res.Reply, "⚠ Failed to add event to calendar.") {
			t.Errorf("missing warning: %q", res.Reply)
		}
	})

	t.Run("malformed directive delivered as-is", func(t *testing.T) {
		raw := "Here you go. [CREATE_EVENT]{broken[/CREATE_EVENT]"
		llm := &fakeCompleter{reply: raw}
		cal := &fakeCalendar{}
		p, _ := newTestProcessor(t, llm, cal, nil)

		res, err := p.Process(context.Background(), "add something")
		if err != nil {
			t.Fatal(err)
		}
		if res.Reply != raw || res.Effect != EffectNone {
			t.Errorf("res = %+v", res)
		}
		if len(cal.drafts) != 0 {
			t.Error("calendar write issued for malformed directive")
		}
	})

	t.Run("model failure propagates wrapped", func(t *testing.T) {
		llm := &fakeCompleter{err: fmt.Errorf("%w: status 500", ErrAIProcessing)}
		p, _ := newTestProcessor(t, llm, &fakeCalendar{}, nil)

		_, err := p.Process(context.Background(), "hello")
		if !errors.Is(err, ErrAIProcessing) {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestCannedPrompts(t *testing.T) {
	llm := &fakeCompleter{reply: "ok"}
	p, _ := newTestProcessor(t, llm, &fakeCalendar{}, nil)

	if _, err := p.DailySummary(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(llm.gotMessage, "summary of my day") {
		t.Errorf("summary prompt = %q", llm.gotMessage)
	}

	if _, err := p.ImportantItems(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(llm.gotMessage, "important or urgent items") {
		t.Errorf("important prompt = %q", llm.gotMessage)
	}
}
