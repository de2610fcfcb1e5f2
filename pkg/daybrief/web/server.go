// Package web implements the HTTP surface: Microsoft sign-in routes, the
// Twilio SMS webhook and a small Bearer-token JSON API for the dashboard.
package web

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jholhewres/daybrief/pkg/daybrief/assistant"
)

// stateTTL is how long a pending OAuth state token stays valid.
const stateTTL = 10 * time.Minute

// Config holds web server configuration.
type Config struct {
	// Address is the listen address, e.g. ":8080".
	Address string

	// AuthToken protects the /api/ routes. Empty disables API auth.
	AuthToken string

	// BaseURL is the public base URL, used to reconstruct the webhook
	// URL for Twilio signature validation.
	BaseURL string

	// UserNumber is the only phone number the SMS webhook answers.
	// Empty disables the allow-list.
	UserNumber string

	// ValidateSignature enables X-Twilio-Signature checking.
	ValidateSignature bool
}

// Authenticator is the Microsoft sign-in surface the web routes drive.
type Authenticator interface {
	IsConfigured() bool
	IsAuthenticated() bool
	AuthURL(state string) string
	ExchangeCode(ctx context.Context, code string) error
	SignOut() error
}

// Inbound handles one user message and returns the reply text.
type Inbound interface {
	HandleIncoming(ctx context.Context, text string) string
}

// Summarizer generates the on-demand daily summary for the API.
type Summarizer interface {
	DailySummary(ctx context.Context) (*assistant.Result, error)
}

// Notifier pushes a test notification through the delivery chain.
type Notifier interface {
	Notify(ctx context.Context, text string) error
	Targets() []string
}

// SignatureValidator checks Twilio webhook signatures.
type SignatureValidator interface {
	ValidateSignature(requestURL string, params url.Values, signature string) bool
}

// ScheduleReloader restarts the scheduler from the schedule file.
type ScheduleReloader interface {
	Reload() error
}

// Server is the HTTP server.
type Server struct {
	cfg     Config
	auth    Authenticator
	inbound Inbound
	summary Summarizer
	notify  Notifier
	sig     SignatureValidator
	sched   ScheduleReloader
	logger  *slog.Logger

	server *http.Server

	// states holds pending OAuth state tokens with their creation time.
	stateMu sync.Mutex
	states  map[string]time.Time

	now func() time.Time
}

// NewServer creates a Server. sig and sched may be nil when SMS or the
// scheduler are not configured.
func NewServer(cfg Config, auth Authenticator, inbound Inbound, summary Summarizer, notify Notifier, sig SignatureValidator, sched ScheduleReloader, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:     cfg,
		auth:    auth,
		inbound: inbound,
		summary: summary,
		notify:  notify,
		sig:     sig,
		sched:   sched,
		logger:  logger.With("component", "web"),
		states:  make(map[string]time.Time),
		now:     time.Now,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public routes. The webhook authenticates via Twilio's signature,
	// the auth routes are the sign-in flow itself.
	mux.HandleFunc("/auth/signin", s.handleSignin)
	mux.HandleFunc("/auth/callback", s.handleCallback)
	mux.HandleFunc("/auth/signout", s.handleSignout)
	mux.HandleFunc("/sms/webhook", s.handleSMSWebhook)
	mux.HandleFunc("/sms/status", s.handleSMSStatus)
	mux.HandleFunc("/healthz", s.handleHealthz)

	// Protected API routes.
	mux.HandleFunc("/api/status", s.authMiddleware(s.handleAPIStatus))
	mux.HandleFunc("/api/notify/test", s.authMiddleware(s.handleAPINotifyTest))
	mux.HandleFunc("/api/summary", s.authMiddleware(s.handleAPISummary))
	mux.HandleFunc("/api/schedule/reload", s.authMiddleware(s.handleAPIScheduleReload))

	return mux
}

// Start begins serving in the background.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Address,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("web server starting", "address", s.cfg.Address)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("web server error", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() {
	if s.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.server.Shutdown(ctx)
	s.logger.Info("web server stopped")
}

// ---------- OAuth state ----------

// issueState records a fresh state token, pruning expired ones.
func (s *Server) issueState(state string) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	now := s.now()
	for tok, created := range s.states {
		if now.Sub(created) > stateTTL {
			delete(s.states, tok)
		}
	}
	s.states[state] = now
}

// consumeState validates and removes a state token.
func (s *Server) consumeState(state string) bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	created, ok := s.states[state]
	if !ok {
		return false
	}
	delete(s.states, state)
	return s.now().Sub(created) <= stateTTL
}

// ---------- Middleware ----------

// authMiddleware validates the Bearer token if configured.
func (s *Server) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AuthToken == "" {
			next(w, r)
			return
		}

		token := ""
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			token = strings.TrimPrefix(auth, "Bearer ")
		}
		if !compareTokens(token, s.cfg.AuthToken) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}
		next(w, r)
	}
}

// compareTokens hashes both sides so length never leaks through timing.
func compareTokens(a, b string) bool {
	ha := sha256.Sum256([]byte(a))
	hb := sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(ha[:], hb[:]) == 1
}

// ---------- Helpers ----------

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
