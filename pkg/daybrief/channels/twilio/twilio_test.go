package twilio

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/jholhewres/daybrief/pkg/daybrief/channels"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	return Config{
		AccountSID: "AC123",
		AuthToken:  "secret-token",
		FromNumber: "+15550001111",
		UserNumber: "+15552223333",
	}
}

type sentSMS struct {
	to   string
	from string
	body string
}

func newTestSender(t *testing.T) (*Sender, *[]sentSMS) {
	t.Helper()
	var sent []sentSMS

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Accounts/AC123/Messages.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC123" || pass != "secret-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parsing form: %v", err)
		}
		sent = append(sent, sentSMS{
			to:   r.PostFormValue("To"),
			from: r.PostFormValue("From"),
			body: r.PostFormValue("Body"),
		})
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM001"}`))
	}))
	t.Cleanup(srv.Close)

	s := New(testConfig(), testLogger())
	s.SetBaseURL(srv.URL)
	return s, &sent
}

func TestSendSMS(t *testing.T) {
	s, sent := newTestSender(t)

	if err := s.SendSMS(context.Background(), "+15559998888", "hello there"); err != nil {
		t.Fatalf("SendSMS: %v", err)
	}
	if len(*sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(*sent))
	}
	msg := (*sent)[0]
	if msg.to != "+15559998888" || msg.from != "+15550001111" || msg.body != "hello there" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestSendSMSSplitsLongMessages(t *testing.T) {
	s, sent := newTestSender(t)

	long := strings.Repeat("All work and no play makes for a dull day. ", 60)
	if err := s.SendSMS(context.Background(), "+15559998888", long); err != nil {
		t.Fatalf("SendSMS: %v", err)
	}
	if len(*sent) < 2 {
		t.Fatalf("expected split into multiple parts, got %d", len(*sent))
	}
	for i, msg := range *sent {
		if len(msg.body) > maxSMSLen {
			t.Errorf("part %d exceeds limit: %d chars", i+1, len(msg.body))
		}
		if !strings.HasPrefix(msg.body, "(") {
			t.Errorf("part %d missing part prefix: %q", i+1, msg.body[:20])
		}
	}
}

func TestNotifyUser(t *testing.T) {
	s, sent := newTestSender(t)

	if err := s.NotifyUser(context.Background(), "ping"); err != nil {
		t.Fatalf("NotifyUser: %v", err)
	}
	if len(*sent) != 1 || (*sent)[0].to != "+15552223333" {
		t.Fatalf("expected message to user number, got %+v", *sent)
	}
}

func TestNotifyUserWithoutNumber(t *testing.T) {
	cfg := testConfig()
	cfg.UserNumber = ""
	s := New(cfg, testLogger())

	err := s.NotifyUser(context.Background(), "ping")
	if !errors.Is(err, channels.ErrNoRecipient) {
		t.Fatalf("expected ErrNoRecipient, got %v", err)
	}
}

func TestSendSMSAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"invalid number"}`))
	}))
	defer srv.Close()

	s := New(testConfig(), testLogger())
	s.SetBaseURL(srv.URL)

	err := s.SendSMS(context.Background(), "bogus", "hi")
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Fatalf("expected API status error, got %v", err)
	}
}

func TestSendSMSUnconfigured(t *testing.T) {
	s := New(Config{}, testLogger())
	if err := s.SendSMS(context.Background(), "+1555", "hi"); err == nil {
		t.Fatal("expected error when unconfigured")
	}
}

func signPayload(token, requestURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	payload := requestURL
	for _, k := range keys {
		payload += k + params.Get(k)
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestValidateSignature(t *testing.T) {
	s := New(testConfig(), testLogger())
	reqURL := "https://example.com/sms/webhook"
	params := url.Values{
		"From": {"+15552223333"},
		"Body": {"hello"},
		"To":   {"+15550001111"},
	}
	sig := signPayload("secret-token", reqURL, params)

	if !s.ValidateSignature(reqURL, params, sig) {
		t.Fatal("valid signature rejected")
	}
	if s.ValidateSignature(reqURL, params, "bogus") {
		t.Fatal("invalid signature accepted")
	}
	params.Set("Body", "tampered")
	if s.ValidateSignature(reqURL, params, sig) {
		t.Fatal("tampered params accepted")
	}
	if s.ValidateSignature(reqURL, params, "") {
		t.Fatal("empty signature accepted")
	}
}

func TestTwiML(t *testing.T) {
	got := TwiML("Hello <world> & friends")
	if !strings.Contains(got, "<Response>") || !strings.Contains(got, "</Response>") {
		t.Fatalf("missing Response element: %s", got)
	}
	if !strings.Contains(got, "Hello &lt;world&gt; &amp; friends") {
		t.Fatalf("message not escaped: %s", got)
	}
	if empty := TwiML(""); strings.Contains(empty, "<Message>") {
		t.Fatalf("empty message should omit Message element: %s", empty)
	}
}
