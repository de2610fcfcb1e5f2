// Package outlook provides Microsoft Graph access to the user's mailbox and
// calendar: OAuth authentication, mail/event reads and event creation.
package outlook

import "time"

// EmailAddress is a Graph emailAddress resource.
type EmailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Message is a simplified Graph mail message.
type Message struct {
	ID             string       `json:"id"`
	Subject        string       `json:"subject"`
	From           EmailAddress `json:"from"`
	ReceivedAt     time.Time    `json:"receivedAt"`
	Preview        string       `json:"bodyPreview"`
	IsRead         bool         `json:"isRead"`
	HighImportance bool         `json:"highImportance"`
}

// Event is a simplified Graph calendar event.
type Event struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Location  string    `json:"location"`
	Organizer string    `json:"organizer"`
	Preview   string    `json:"bodyPreview"`
	IsAllDay  bool      `json:"isAllDay"`
}

// Profile is the signed-in user's Graph profile.
type Profile struct {
	DisplayName string `json:"displayName"`
	Mail        string `json:"mail"`
	UserID      string `json:"id"`
}

// EventDraft is the calendar event payload the model emits inside a
// [CREATE_EVENT] directive. Field names match the wire format exactly.
type EventDraft struct {
	Subject       string `json:"subject"`
	StartDateTime string `json:"startDateTime"`
	EndDateTime   string `json:"endDateTime"`
	Location      string `json:"location,omitempty"`
	Body          string `json:"body,omitempty"`
}
