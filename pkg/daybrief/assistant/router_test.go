package assistant

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

type fakeAuth struct{ ok bool }

func (f *fakeAuth) IsAuthenticated() bool { return f.ok }

func newTestRouter(t *testing.T, llm *fakeCompleter, authed bool) (*Router, *fakeCompleter) {
	t.Helper()
	if llm == nil {
		llm = &fakeCompleter{reply: "model reply"}
	}
	p, _ := newTestProcessor(t, llm, &fakeCalendar{}, nil)
	return NewRouter(p, &fakeAuth{ok: authed}, testLogger()), llm
}

func TestHandleIncoming(t *testing.T) {
	t.Run("not connected skips the model", func(t *testing.T) {
		rt, llm := newTestRouter(t, nil, false)

		got := rt.HandleIncoming(context.Background(), "What's on my calendar?")
		if !strings.Contains(got, "not connected yet") {
			t.Errorf("reply = %q", got)
		}
		if llm.calls != 0 {
			t.Errorf("model called %d times, want 0", llm.calls)
		}
	})

	t.Run("test echo works before sign-in", func(t *testing.T) {
		rt, llm := newTestRouter(t, nil, false)

		got := rt.HandleIncoming(context.Background(), "test hello")
		if !strings.Contains(got, `"test hello"`) {
			t.Errorf("reply = %q", got)
		}
		if llm.calls != 0 {
			t.Error("model called for test echo")
		}
	})

	t.Run("authenticated text goes to the model", func(t *testing.T) {
		rt, llm := newTestRouter(t, nil, true)

		got := rt.HandleIncoming(context.Background(), "any urgent emails?")
		if got != "model reply" {
			t.Errorf("reply = %q", got)
		}
		if llm.gotMessage != "any urgent emails?" {
			t.Errorf("user message = %q", llm.gotMessage)
		}
	})

	t.Run("model failure becomes apology", func(t *testing.T) {
		llm := &fakeCompleter{err: fmt.Errorf("%w: boom", ErrAIProcessing)}
		rt, _ := newTestRouter(t, llm, true)

		got := rt.HandleIncoming(context.Background(), "hello")
		if got != apologyReply {
			t.Errorf("reply = %q", got)
		}
	})

	t.Run("never returns empty", func(t *testing.T) {
		rt, _ := newTestRouter(t, nil, false)
		for _, in := range []string{"", "   ", "/", "/bogus", "test"} {
			if got := rt.HandleIncoming(context.Background(), in); got == "" {
				t.Errorf("empty reply for input %q", in)
			}
		}
	})
}

func TestCommands(t *testing.T) {
	t.Run("start", func(t *testing.T) {
		rt, _ := newTestRouter(t, nil, true)
		got := rt.HandleIncoming(context.Background(), "/start")
		if !strings.Contains(got, "Welcome") || !strings.Contains(got, "/summary") {
			t.Errorf("reply = %q", got)
		}
	})

	t.Run("status reflects auth state", func(t *testing.T) {
		rt, _ := newTestRouter(t, nil, true)
		if got := rt.HandleIncoming(context.Background(), "/status"); !strings.Contains(got, "✅ Connected") {
			t.Errorf("reply = %q", got)
		}

		rt, _ = newTestRouter(t, nil, false)
		if got := rt.HandleIncoming(context.Background(), "/status"); !strings.Contains(got, "❌ Not connected") {
			t.Errorf("reply = %q", got)
		}
	})

	t.Run("summary runs the canned prompt", func(t *testing.T) {
		rt, llm := newTestRouter(t, nil, true)
		got := rt.HandleIncoming(context.Background(), "/summary")
		if got != "model reply" {
			t.Errorf("reply = %q", got)
		}
		if !strings.Contains(llm.gotMessage, "summary of my day") {
			t.Errorf("prompt = %q", llm.gotMessage)
		}
	})

	t.Run("summary requires sign-in", func(t *testing.T) {
		rt, llm := newTestRouter(t, nil, false)
		got := rt.HandleIncoming(context.Background(), "/summary")
		if !strings.Contains(got, "not connected") {
			t.Errorf("reply = %q", got)
		}
		if llm.calls != 0 {
			t.Error("model called while signed out")
		}
	})

	t.Run("bot-name suffix stripped", func(t *testing.T) {
		rt, _ := newTestRouter(t, nil, true)
		got := rt.HandleIncoming(context.Background(), "/status@daybrief_bot")
		if !strings.Contains(got, "Status") {
			t.Errorf("reply = %q", got)
		}
	})

	t.Run("help lists commands", func(t *testing.T) {
		rt, _ := newTestRouter(t, nil, true)
		got := rt.HandleIncoming(context.Background(), "/help")
		for _, want := range []string{"/start", "/status", "/summary", "/help"} {
			if !strings.Contains(got, want) {
				t.Errorf("help missing %q", want)
			}
		}
	})
}
