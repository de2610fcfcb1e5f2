package channels

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeChannel is a scripted Channel for manager tests.
type fakeChannel struct {
	name       string
	connectErr error
	incoming   chan *IncomingMessage

	mu        sync.Mutex
	sent      []*OutgoingMessage
	sentTo    []string
	connected bool
}

func newFakeChannel(name string) *fakeChannel {
	return &fakeChannel{name: name, incoming: make(chan *IncomingMessage, 8)}
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Connect(ctx context.Context) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	return nil
}

func (f *fakeChannel) Disconnect() error {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	return nil
}

func (f *fakeChannel) Send(ctx context.Context, to string, msg *OutgoingMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	f.sentTo = append(f.sentTo, to)
	return nil
}

func (f *fakeChannel) Receive() <-chan *IncomingMessage { return f.incoming }

func (f *fakeChannel) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeChannel) Health() HealthStatus {
	return HealthStatus{Connected: f.IsConnected()}
}

func (f *fakeChannel) lastSent() (*OutgoingMessage, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil, ""
	}
	return f.sent[len(f.sent)-1], f.sentTo[len(f.sentTo)-1]
}

// echoHandler replies with a fixed transform of the input.
type echoHandler struct{}

func (echoHandler) HandleIncoming(ctx context.Context, text string) string {
	return "reply: " + text
}

func TestManagerDispatch(t *testing.T) {
	ch := newFakeChannel("telegram")
	m := NewManager(echoHandler{}, testLogger())
	m.Register(ch)

	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer m.Stop()

	ch.incoming <- &IncomingMessage{ID: "42", Channel: "telegram", ChatID: "chat-1", Content: "hi"}

	deadline := time.After(2 * time.Second)
	for {
		if msg, to := ch.lastSent(); msg != nil {
			if msg.Content != "reply: hi" {
				t.Errorf("Content = %q", msg.Content)
			}
			if to != "chat-1" {
				t.Errorf("to = %q", to)
			}
			if msg.ReplyTo != "42" {
				t.Errorf("ReplyTo = %q", msg.ReplyTo)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("reply never sent")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestManagerConnectFailureSkipsChannel(t *testing.T) {
	bad := newFakeChannel("discord")
	bad.connectErr = errors.New("bad token")
	good := newFakeChannel("telegram")

	m := NewManager(echoHandler{}, testLogger())
	m.Register(bad)
	m.Register(good)

	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer m.Stop()

	if bad.IsConnected() {
		t.Error("failed channel marked connected")
	}
	if !good.IsConnected() {
		t.Error("good channel not connected")
	}
}

func TestManagerHealth(t *testing.T) {
	ch := newFakeChannel("telegram")
	m := NewManager(echoHandler{}, testLogger())
	m.Register(ch)

	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer m.Stop()

	h := m.Health()
	if status, ok := h["telegram"]; !ok || !status.Connected {
		t.Errorf("health = %+v", h)
	}
}

func TestManagerStopDisconnects(t *testing.T) {
	ch := newFakeChannel("telegram")
	m := NewManager(echoHandler{}, testLogger())
	m.Register(ch)

	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	m.Stop()

	if ch.IsConnected() {
		t.Error("channel still connected after Stop")
	}
}
