// Package memory holds the persisted user preferences record. The record is
// read-only to the assistant core — whatever external process edits the
// backing file owns it. An absent file is a valid state and yields an empty
// memory.
package memory

import (
	"fmt"
	"strings"

	"github.com/jholhewres/daybrief/pkg/daybrief/store"
)

// Preferences controls how the assistant summarizes and prioritizes.
type Preferences struct {
	// SummaryStyle is a free-text hint (e.g. "short bullet points").
	SummaryStyle string `json:"summary_style,omitempty"`

	// ImportantSenders are highlighted in summaries and alerts.
	ImportantSenders []string `json:"important_senders,omitempty"`

	// ImportantKeywords are watched for in subjects and previews.
	ImportantKeywords []string `json:"important_keywords,omitempty"`
}

// Memory is the persisted user record.
type Memory struct {
	UserName           string      `json:"user_name,omitempty"`
	Preferences        Preferences `json:"preferences,omitempty"`
	Notes              []string    `json:"notes,omitempty"`
	CustomInstructions string      `json:"custom_instructions,omitempty"`
}

// Load reads the memory record from f. An absent file yields an empty
// memory, not an error.
func Load(f *store.File) (*Memory, error) {
	var m Memory
	if _, err := f.Load(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// IsEmpty reports whether the memory carries no information at all.
func (m *Memory) IsEmpty() bool {
	return m.UserName == "" &&
		m.Preferences.SummaryStyle == "" &&
		len(m.Preferences.ImportantSenders) == 0 &&
		len(m.Preferences.ImportantKeywords) == 0 &&
		len(m.Notes) == 0 &&
		m.CustomInstructions == ""
}

// Format renders the memory as a prompt block. Empty memory renders as "".
func (m *Memory) Format() string {
	if m == nil || m.IsEmpty() {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n=== USER PREFERENCES & MEMORY ===\n")

	if m.UserName != "" {
		fmt.Fprintf(&b, "User's name: %s\n", m.UserName)
	}
	if m.Preferences.SummaryStyle != "" {
		fmt.Fprintf(&b, "Preferred summary style: %s\n", m.Preferences.SummaryStyle)
	}
	if len(m.Preferences.ImportantSenders) > 0 {
		fmt.Fprintf(&b, "Important senders to highlight: %s\n", strings.Join(m.Preferences.ImportantSenders, ", "))
	}
	if len(m.Preferences.ImportantKeywords) > 0 {
		fmt.Fprintf(&b, "Important keywords to watch for: %s\n", strings.Join(m.Preferences.ImportantKeywords, ", "))
	}
	if len(m.Notes) > 0 {
		b.WriteString("\nNotes about user:\n")
		for _, note := range m.Notes {
			fmt.Fprintf(&b, "- %s\n", note)
		}
	}
	if m.CustomInstructions != "" {
		fmt.Fprintf(&b, "\nCustom instructions: %s\n", m.CustomInstructions)
	}
	return b.String()
}
