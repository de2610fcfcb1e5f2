package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// notConnectedReply is the fixed reply for any substantive question asked
// before the user has signed in to Microsoft. No model call is made.
const notConnectedReply = `❌ Microsoft not connected yet.

Send "test" to verify the channel works, or visit the web dashboard to sign in to Microsoft.`

// apologyReply replaces any model-call failure.
const apologyReply = "Sorry, I encountered an error processing your request. Please try again."

// AuthChecker reports whether a Microsoft account is signed in.
type AuthChecker interface {
	IsAuthenticated() bool
}

// Router is the single inbound entry point shared by every channel: SMS
// webhook, Telegram long-poll and Discord all hand user text to
// HandleIncoming and deliver whatever it returns.
type Router struct {
	proc   *Processor
	auth   AuthChecker
	logger *slog.Logger
}

// NewRouter creates a Router.
func NewRouter(proc *Processor, auth AuthChecker, logger *slog.Logger) *Router {
	return &Router{proc: proc, auth: auth, logger: logger.With("component", "router")}
}

// HandleIncoming processes one inbound user message and returns the reply
// text. It never returns an empty reply: command handling, the
// not-connected branch and the model-failure apology all produce text.
func (rt *Router) HandleIncoming(ctx context.Context, text string) string {
	trimmed := strings.TrimSpace(text)

	if strings.HasPrefix(trimmed, "/") {
		return rt.handleCommand(ctx, trimmed)
	}

	// Plumbing check that works before sign-in.
	if strings.HasPrefix(strings.ToLower(trimmed), "test") {
		return fmt.Sprintf("✅ Channel is working! You said: %q", trimmed)
	}

	if !rt.auth.IsAuthenticated() {
		return notConnectedReply
	}

	res, err := rt.proc.Process(ctx, trimmed)
	if err != nil {
		rt.logger.Error("message processing failed", "error", err)
		return apologyReply
	}
	return res.Reply
}

func (rt *Router) handleCommand(ctx context.Context, cmd string) string {
	// Strip bot-name suffixes like /status@daybrief_bot.
	name := strings.ToLower(strings.SplitN(strings.TrimPrefix(cmd, "/"), "@", 2)[0])
	if fields := strings.Fields(name); len(fields) > 0 {
		name = fields[0]
	}

	switch name {
	case "start":
		return `👋 Welcome to your Outlook AI Assistant!

You can ask me about:
• Your emails - "What emails came in today?"
• Your calendar - "What's on my schedule?"
• Add events - "Add meeting with John tomorrow at 3pm"

Commands:
/status - Check connection status
/summary - Get daily summary
/help - Show this message`

	case "status":
		msStatus := "❌ Not connected"
		if rt.auth.IsAuthenticated() {
			msStatus = "✅ Connected"
		}
		return fmt.Sprintf("📊 Status:\n\nMicrosoft: %s\nChannel: ✅ Working", msStatus)

	case "summary":
		if !rt.auth.IsAuthenticated() {
			return "❌ Microsoft not connected. Please sign in via the web dashboard first."
		}
		res, err := rt.proc.DailySummary(ctx)
		if err != nil {
			rt.logger.Error("summary failed", "error", err)
			return apologyReply
		}
		return res.Reply

	case "help":
		return `📧 Outlook AI Assistant Help

Ask me things like:
• "What emails came in today?"
• "Any important emails?"
• "What's on my calendar?"
• "Do I have meetings tomorrow?"
• "Add lunch with Sarah tomorrow at noon"

Commands:
/start - Welcome message
/status - Check connection status
/summary - Get daily summary
/help - Show this help`

	default:
		return "Unknown command. Send /help for what I can do."
	}
}

// IsProcessingError reports whether err is a wrapped model-call failure.
func IsProcessingError(err error) bool {
	return errors.Is(err, ErrAIProcessing)
}
