package discord

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/jholhewres/daybrief/pkg/daybrief/channels"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func botSession(botID string) *discordgo.Session {
	s := &discordgo.Session{State: discordgo.NewState()}
	s.State.User = &discordgo.User{ID: botID}
	return s
}

func message(id, authorID, channelID, content string, bot bool) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        id,
		ChannelID: channelID,
		Content:   content,
		Author:    &discordgo.User{ID: authorID, Username: "user", Bot: bot},
		Timestamp: time.Now(),
	}}
}

func TestConnectRequiresToken(t *testing.T) {
	d := New(Config{}, testLogger())
	if err := d.Connect(context.Background()); err == nil {
		t.Fatal("expected error connecting without token")
	}
}

func TestAuthorizedMessageForwarded(t *testing.T) {
	d := New(Config{Token: "x", ChannelID: "chan-1"}, testLogger())
	s := botSession("bot-1")

	d.onMessageCreate(s, message("m1", "user-1", "chan-1", "hello", false))

	select {
	case msg := <-d.Receive():
		if msg.Content != "hello" || msg.ChatID != "chan-1" || msg.From != "user-1" {
			t.Fatalf("unexpected message: %+v", msg)
		}
	default:
		t.Fatal("message was not forwarded")
	}
}

func TestUnauthorizedChannelDropped(t *testing.T) {
	d := New(Config{Token: "x", ChannelID: "chan-1"}, testLogger())
	s := botSession("bot-1")

	d.onMessageCreate(s, message("m1", "user-1", "chan-2", "hello", false))

	select {
	case msg := <-d.Receive():
		t.Fatalf("message from wrong channel forwarded: %+v", msg)
	default:
	}
}

func TestOwnAndBotMessagesIgnored(t *testing.T) {
	d := New(Config{Token: "x", ChannelID: "chan-1"}, testLogger())
	s := botSession("bot-1")

	d.onMessageCreate(s, message("m1", "bot-1", "chan-1", "self", false))
	d.onMessageCreate(s, message("m2", "other-bot", "chan-1", "beep", true))

	select {
	case msg := <-d.Receive():
		t.Fatalf("self or bot message forwarded: %+v", msg)
	default:
	}
}

func TestNoChannelConfiguredDropsEverything(t *testing.T) {
	d := New(Config{Token: "x"}, testLogger())
	s := botSession("bot-1")

	d.onMessageCreate(s, message("m1", "user-1", "chan-1", "hello", false))

	select {
	case msg := <-d.Receive():
		t.Fatalf("message forwarded with no channel configured: %+v", msg)
	default:
	}
}

func TestSendWhileDisconnected(t *testing.T) {
	d := New(Config{Token: "x", ChannelID: "chan-1"}, testLogger())
	err := d.Send(context.Background(), "chan-1", &channels.OutgoingMessage{Content: "hi"})
	if !errors.Is(err, channels.ErrChannelDisconnected) {
		t.Fatalf("expected ErrChannelDisconnected, got %v", err)
	}
}

func TestNotifyUserWithoutRecipient(t *testing.T) {
	d := New(Config{Token: "x"}, testLogger())
	err := d.NotifyUser(context.Background(), "ping")
	if !errors.Is(err, channels.ErrNoRecipient) {
		t.Fatalf("expected ErrNoRecipient, got %v", err)
	}
}

func TestHealthTracksLastMessage(t *testing.T) {
	d := New(Config{Token: "x", ChannelID: "chan-1"}, testLogger())
	s := botSession("bot-1")

	if h := d.Health(); h.Connected || !h.LastMessageAt.IsZero() {
		t.Fatalf("unexpected initial health: %+v", h)
	}

	d.onMessageCreate(s, message("m1", "user-1", "chan-1", "hello", false))
	<-d.Receive()

	if h := d.Health(); h.LastMessageAt.IsZero() {
		t.Fatal("LastMessageAt not updated after message")
	}
}
