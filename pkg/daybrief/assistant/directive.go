package assistant

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/jholhewres/daybrief/pkg/daybrief/outlook"
)

// directivePattern matches the first delimited event-creation block the model
// emits. Non-greedy: only the first span is considered, extra blocks are
// ignored.
var directivePattern = regexp.MustCompile(`(?s)\[CREATE_EVENT\](.*?)\[/CREATE_EVENT\]`)

// ExtractDirective scans a model reply for a [CREATE_EVENT] block.
// Returns (nil, nil) when no block is present, and (nil, err) when a block
// exists but its interior does not decode. Callers treat a malformed block
// as absent: a broken directive must never block delivery of the reply.
func ExtractDirective(reply string) (*outlook.EventDraft, error) {
	m := directivePattern.FindStringSubmatch(reply)
	if m == nil {
		return nil, nil
	}

	var draft outlook.EventDraft
	if err := json.Unmarshal([]byte(m[1]), &draft); err != nil {
		return nil, fmt.Errorf("decoding event directive: %w", err)
	}
	if draft.Subject == "" || draft.StartDateTime == "" || draft.EndDateTime == "" {
		return nil, fmt.Errorf("event directive missing required fields")
	}
	return &draft, nil
}

// StripDirective removes the first directive block from a reply and trims
// surrounding whitespace. Replies without a block pass through unchanged.
func StripDirective(reply string) string {
	return strings.TrimSpace(replaceFirst(reply))
}

// replaceFirst removes only the first directive span, matching the
// non-greedy first-match extraction contract.
func replaceFirst(reply string) string {
	loc := directivePattern.FindStringIndex(reply)
	if loc == nil {
		return reply
	}
	return reply[:loc[0]] + reply[loc[1]:]
}
