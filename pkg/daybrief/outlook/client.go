package outlook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// graphBaseURL is the Microsoft Graph v1.0 endpoint.
const graphBaseURL = "https://graph.microsoft.com/v1.0"

// Client reads mail and calendar data from Microsoft Graph on behalf of the
// signed-in user. All reads request UTC timestamps via the Prefer header.
type Client struct {
	auth       *Authenticator
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
	loc        *time.Location
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL overrides the Graph endpoint (used in tests).
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithClock overrides the clock (used in tests).
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) { c.now = now }
}

// WithLocation sets the timezone used to decide where "today" starts.
// Defaults to the server's local zone.
func WithLocation(loc *time.Location) ClientOption {
	return func(c *Client) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// NewClient creates a Graph client using auth for tokens.
func NewClient(auth *Authenticator, logger *slog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		auth:       auth,
		baseURL:    graphBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With("component", "outlook"),
		now:        time.Now,
		loc:        time.Local,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsAuthenticated reports whether a signed-in user is available.
func (c *Client) IsAuthenticated() bool { return c.auth.IsAuthenticated() }

// Profile fetches the signed-in user's display name and address.
func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	var raw struct {
		ID                string `json:"id"`
		DisplayName       string `json:"displayName"`
		Mail              string `json:"mail"`
		UserPrincipalName string `json:"userPrincipalName"`
	}
	if err := c.get(ctx, "/me", nil, &raw); err != nil {
		return nil, fmt.Errorf("fetching profile: %w", err)
	}
	mail := raw.Mail
	if mail == "" {
		mail = raw.UserPrincipalName
	}
	return &Profile{DisplayName: raw.DisplayName, Mail: mail, UserID: raw.ID}, nil
}

// TodayMessages returns messages received since local midnight, newest first.
func (c *Client) TodayMessages(ctx context.Context, limit int) ([]Message, error) {
	since := c.startOfDay()
	return c.listMessages(ctx, url.Values{
		"$filter":  {fmt.Sprintf("receivedDateTime ge %s", since.Format(time.RFC3339))},
		"$orderby": {"receivedDateTime desc"},
		"$top":     {fmt.Sprint(limit)},
		"$select":  {messageSelect},
	})
}

// UnreadMessages returns unread messages, newest first.
func (c *Client) UnreadMessages(ctx context.Context, limit int) ([]Message, error) {
	return c.listMessages(ctx, url.Values{
		"$filter":  {"isRead eq false"},
		"$orderby": {"receivedDateTime desc"},
		"$top":     {fmt.Sprint(limit)},
		"$select":  {messageSelect},
	})
}

// RecentMessages returns messages received in the last given duration,
// newest first. The urgent-email sweep uses this with its cursor window.
func (c *Client) RecentMessages(ctx context.Context, since time.Time, limit int) ([]Message, error) {
	return c.listMessages(ctx, url.Values{
		"$filter":  {fmt.Sprintf("receivedDateTime ge %s", since.UTC().Format(time.RFC3339))},
		"$orderby": {"receivedDateTime desc"},
		"$top":     {fmt.Sprint(limit)},
		"$select":  {messageSelect},
	})
}

// SearchMessages searches mail by subject or sender.
func (c *Client) SearchMessages(ctx context.Context, query string, limit int) ([]Message, error) {
	return c.listMessages(ctx, url.Values{
		"$search": {fmt.Sprintf("%q", query)},
		"$top":    {fmt.Sprint(limit)},
		"$select": {messageSelect},
	})
}

// TodayEvents returns the events of the current local day in start order.
func (c *Client) TodayEvents(ctx context.Context) ([]Event, error) {
	start := c.startOfDay()
	end := start.Add(24 * time.Hour)
	return c.listEvents(ctx, start, end)
}

// UpcomingEvents returns events starting within the given window from now.
func (c *Client) UpcomingEvents(ctx context.Context, window time.Duration) ([]Event, error) {
	start := c.now().UTC()
	return c.listEvents(ctx, start, start.Add(window))
}

// CreateEvent creates a calendar event from a model-emitted draft.
// Draft times are interpreted in UTC.
func (c *Client) CreateEvent(ctx context.Context, draft *EventDraft) error {
	payload := map[string]any{
		"subject": draft.Subject,
		"start":   map[string]string{"dateTime": draft.StartDateTime, "timeZone": "UTC"},
		"end":     map[string]string{"dateTime": draft.EndDateTime, "timeZone": "UTC"},
	}
	if draft.Location != "" {
		payload["location"] = map[string]string{"displayName": draft.Location}
	}
	if draft.Body != "" {
		payload["body"] = map[string]string{"contentType": "text", "content": draft.Body}
	}

	if err := c.post(ctx, "/me/events", payload); err != nil {
		return fmt.Errorf("creating event %q: %w", draft.Subject, err)
	}
	c.logger.Info("calendar event created", "subject", draft.Subject, "start", draft.StartDateTime)
	return nil
}

// ---------- Internal ----------

const messageSelect = "id,subject,from,receivedDateTime,bodyPreview,isRead,importance"

// graphMessage is the Graph wire shape for a mail message.
type graphMessage struct {
	ID   string `json:"id"`
	Subj string `json:"subject"`
	From struct {
		EmailAddress EmailAddress `json:"emailAddress"`
	} `json:"from"`
	ReceivedDateTime time.Time `json:"receivedDateTime"`
	BodyPreview      string    `json:"bodyPreview"`
	IsRead           bool      `json:"isRead"`
	Importance       string    `json:"importance"`
}

// graphEvent is the Graph wire shape for a calendar event.
type graphEvent struct {
	ID    string `json:"id"`
	Subj  string `json:"subject"`
	Start struct {
		DateTime string `json:"dateTime"`
	} `json:"start"`
	End struct {
		DateTime string `json:"dateTime"`
	} `json:"end"`
	Location struct {
		DisplayName string `json:"displayName"`
	} `json:"location"`
	Organizer struct {
		EmailAddress EmailAddress `json:"emailAddress"`
	} `json:"organizer"`
	BodyPreview string `json:"bodyPreview"`
	IsAllDay    bool   `json:"isAllDay"`
}

func (c *Client) listMessages(ctx context.Context, params url.Values) ([]Message, error) {
	var raw struct {
		Value []graphMessage `json:"value"`
	}
	if err := c.get(ctx, "/me/messages", params, &raw); err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}

	msgs := make([]Message, 0, len(raw.Value))
	for _, m := range raw.Value {
		msgs = append(msgs, Message{
			ID:             m.ID,
			Subject:        m.Subj,
			From:           m.From.EmailAddress,
			ReceivedAt:     m.ReceivedDateTime,
			Preview:        m.BodyPreview,
			IsRead:         m.IsRead,
			HighImportance: m.Importance == "high",
		})
	}
	return msgs, nil
}

func (c *Client) listEvents(ctx context.Context, start, end time.Time) ([]Event, error) {
	params := url.Values{
		"startDateTime": {start.UTC().Format(time.RFC3339)},
		"endDateTime":   {end.UTC().Format(time.RFC3339)},
		"$orderby":      {"start/dateTime"},
		"$top":          {"50"},
	}
	var raw struct {
		Value []graphEvent `json:"value"`
	}
	if err := c.get(ctx, "/me/calendarView", params, &raw); err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}

	events := make([]Event, 0, len(raw.Value))
	for _, e := range raw.Value {
		events = append(events, Event{
			ID:        e.ID,
			Subject:   e.Subj,
			Start:     parseGraphTime(e.Start.DateTime),
			End:       parseGraphTime(e.End.DateTime),
			Location:  e.Location.DisplayName,
			Organizer: e.Organizer.EmailAddress.Name,
			Preview:   e.BodyPreview,
			IsAllDay:  e.IsAllDay,
		})
	}
	return events, nil
}

// parseGraphTime parses a Graph dateTime. Event times arrive zoneless in the
// preferred timezone (UTC, via the Prefer header), with fractional seconds.
func parseGraphTime(s string) time.Time {
	for _, layout := range []string{
		"2006-01-02T15:04:05.0000000",
		"2006-01-02T15:04:05",
		time.RFC3339,
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

func (c *Client) do(req *http.Request, out any) error {
	token, err := c.auth.AccessToken(req.Context())
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Prefer", `outlook.timezone="UTC"`)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("graph request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading graph response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrNotAuthenticated
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("graph returned status %d: %s", resp.StatusCode, truncate(string(body), 300))
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("parsing graph response: %w", err)
		}
	}
	return nil
}

// startOfDay returns midnight of the current day in the client's timezone,
// expressed as a UTC instant for Graph query parameters. At 9 PM in New York
// "today" still means the New York day, not the UTC one already underway.
func (c *Client) startOfDay() time.Time {
	now := c.now().In(c.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, c.loc).UTC()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
