package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/jholhewres/daybrief/pkg/daybrief/channels/twilio"
)

// ---------- Microsoft sign-in ----------

// handleSignin redirects the browser to the Microsoft consent page.
func (s *Server) handleSignin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.auth.IsConfigured() {
		http.Error(w, "Microsoft client credentials are not configured.", http.StatusServiceUnavailable)
		return
	}

	state := uuid.NewString()
	s.issueState(state)
	http.Redirect(w, r, s.auth.AuthURL(state), http.StatusFound)
}

// handleCallback finishes the OAuth flow: validates the state token and
// exchanges the authorization code for tokens.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	if errName := q.Get("error"); errName != "" {
		desc := q.Get("error_description")
		if desc == "" {
			desc = errName
		}
		s.logger.Warn("microsoft sign-in refused", "error", errName)
		http.Error(w, "Microsoft authentication failed: "+desc, http.StatusBadRequest)
		return
	}

	if !s.consumeState(q.Get("state")) {
		http.Error(w, "Invalid or expired sign-in state. Start again from /auth/signin.", http.StatusBadRequest)
		return
	}

	code := q.Get("code")
	if code == "" {
		http.Error(w, "No authorization code received.", http.StatusBadRequest)
		return
	}

	if err := s.auth.ExchangeCode(r.Context(), code); err != nil {
		s.logger.Error("code exchange failed", "error", err)
		http.Error(w, "Microsoft authentication failed. Check the server logs and try again.", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "✅ Microsoft account connected. You can close this window.")
}

// handleSignout clears the stored tokens.
func (s *Server) handleSignout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.auth.SignOut(); err != nil {
		s.logger.Error("sign-out failed", "error", err)
		http.Error(w, "Sign-out failed.", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "Signed out of Microsoft.")
}

// ---------- Twilio webhook ----------

func writeTwiML(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "text/xml")
	fmt.Fprint(w, twilio.TwiML(message))
}

// handleSMSWebhook answers inbound SMS. Every outcome is a TwiML reply so
// Twilio never retries: bad signatures are the only hard rejection.
func (s *Server) handleSMSWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if s.cfg.ValidateSignature {
		if s.sig == nil || !s.sig.ValidateSignature(s.cfg.BaseURL+"/sms/webhook", r.PostForm, r.Header.Get("X-Twilio-Signature")) {
			s.logger.Warn("sms webhook signature rejected")
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
	}

	from := r.PostFormValue("From")
	body := r.PostFormValue("Body")
	s.logger.Info("sms received", "from", from)

	if s.cfg.UserNumber != "" && from != s.cfg.UserNumber {
		s.logger.Info("ignoring sms from unauthorized number", "from", from)
		writeTwiML(w, "Unauthorized number.")
		return
	}

	writeTwiML(w, s.inbound.HandleIncoming(r.Context(), body))
}

// handleSMSStatus logs delivery receipts.
func (s *Server) handleSMSStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	s.logger.Info("sms delivery status",
		"sid", r.PostFormValue("MessageSid"),
		"status", r.PostFormValue("MessageStatus"),
	)
	w.WriteHeader(http.StatusOK)
}

// ---------- API ----------

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAPIStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"microsoftAuthenticated": s.auth.IsAuthenticated(),
		"notifyTargets":          s.notify.Targets(),
		"serverTime":             s.now().UTC(),
	})
}

func (s *Server) handleAPINotifyTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var body struct {
		Message string `json:"message"`
	}
	// An empty or absent body falls back to the default test message.
	json.NewDecoder(r.Body).Decode(&body)
	if body.Message == "" {
		body.Message = "Test message from Daybrief - notifications are working!"
	}

	if err := s.notify.Notify(r.Context(), body.Message); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleAPISummary(w http.ResponseWriter, r *http.Request) {
	if !s.auth.IsAuthenticated() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"success": false, "error": "Microsoft not connected"})
		return
	}

	result, err := s.summary.DailySummary(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "summary": result.Reply})
}

func (s *Server) handleAPIScheduleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if s.sched == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"success": false, "error": "scheduler not running"})
		return
	}
	if err := s.sched.Reload(); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
