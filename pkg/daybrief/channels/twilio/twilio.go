// Package twilio implements outbound SMS delivery via the Twilio REST API.
//
// Inbound SMS arrives over the web server's webhook rather than a persistent
// connection, so this package provides a Sender (a notify target) instead of
// a full channel, plus the signature validation and TwiML helpers the webhook
// route needs.
package twilio

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/jholhewres/daybrief/pkg/daybrief/channels"
)

const (
	twilioAPIBase = "https://api.twilio.com/2010-04-01"

	// Twilio rejects message bodies longer than this.
	maxSMSLen = 1600
)

// Config holds Twilio configuration.
type Config struct {
	// AccountSID is the Twilio account SID.
	AccountSID string `yaml:"account_sid"`

	// AuthToken is the Twilio auth token, also used for webhook
	// signature validation.
	AuthToken string `yaml:"auth_token"`

	// FromNumber is the Twilio phone number messages are sent from.
	FromNumber string `yaml:"from_number"`

	// UserNumber is the user's phone number, the only number the
	// assistant talks to.
	UserNumber string `yaml:"user_number"`
}

// Sender sends SMS messages through the Twilio REST API.
type Sender struct {
	cfg        Config
	logger     *slog.Logger
	httpClient *http.Client
	baseURL    string
}

// New creates a new Sender.
func New(cfg Config, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{
		cfg:        cfg,
		logger:     logger.With("component", "twilio"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    twilioAPIBase,
	}
}

// SetBaseURL overrides the API base URL, for tests.
func (s *Sender) SetBaseURL(base string) { s.baseURL = base }

// IsConfigured returns true when credentials and a from number are set.
func (s *Sender) IsConfigured() bool {
	return s.cfg.AccountSID != "" && s.cfg.AuthToken != "" && s.cfg.FromNumber != ""
}

// Name returns "sms".
func (s *Sender) Name() string { return "sms" }

// SendSMS sends a text message to the given number, splitting it into
// numbered parts when it exceeds the Twilio body limit.
func (s *Sender) SendSMS(ctx context.Context, to, body string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("twilio: not configured")
	}

	parts := channels.Split(body, maxSMSLen)
	for i, part := range parts {
		sid, err := s.createMessage(ctx, to, part)
		if err != nil {
			return fmt.Errorf("twilio: sending part %d/%d: %w", i+1, len(parts), err)
		}
		s.logger.Debug("twilio: sms sent", "to", to, "part", i+1, "parts", len(parts), "sid", sid)
	}
	return nil
}

// NotifyUser sends text to the configured user number.
func (s *Sender) NotifyUser(ctx context.Context, text string) error {
	if s.cfg.UserNumber == "" {
		return channels.ErrNoRecipient
	}
	return s.SendSMS(ctx, s.cfg.UserNumber, text)
}

func (s *Sender) createMessage(ctx context.Context, to, body string) (string, error) {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.cfg.FromNumber)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", s.baseURL, s.cfg.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(s.cfg.AccountSID, s.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("API status %d: %s", resp.StatusCode, truncate(string(raw), 300))
	}

	var reply struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(raw, &reply); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	return reply.SID, nil
}

// ValidateSignature checks an X-Twilio-Signature header against the request
// URL and POST parameters. Twilio signs the full URL concatenated with every
// parameter name and value in sorted key order, HMAC-SHA1 over the auth
// token, base64 encoded.
func (s *Sender) ValidateSignature(requestURL string, params url.Values, signature string) bool {
	if s.cfg.AuthToken == "" || signature == "" {
		return false
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var payload strings.Builder
	payload.WriteString(requestURL)
	for _, k := range keys {
		payload.WriteString(k)
		payload.WriteString(params.Get(k))
	}

	mac := hmac.New(sha1.New, []byte(s.cfg.AuthToken))
	mac.Write([]byte(payload.String()))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// twimlResponse is the TwiML document shape for a messaging reply.
type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message,omitempty"`
}

// TwiML renders a messaging TwiML reply containing the given message.
// An empty message renders an empty <Response/>, which acknowledges the
// webhook without replying.
func TwiML(message string) string {
	doc, err := xml.Marshal(twimlResponse{Message: message})
	if err != nil {
		// Marshalling a two-field struct cannot fail at runtime.
		return xml.Header + "<Response></Response>"
	}
	return xml.Header + string(doc)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Compile-time interface verification.
var _ channels.NotifyTarget = (*Sender)(nil)
