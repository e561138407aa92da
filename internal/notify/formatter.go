package notify

import (
	"strconv"
	"strings"

	"github.com/digitalgenesis/supportbridge/internal/identity"
)

const marker = "**"

// JoinMarker renders the system marker posted when a visitor opens a chat.
func JoinMarker(id identity.Identity) string {
	return marker + id.String() + " has joined the chat" + marker
}

// LeaveMarker renders the system marker posted when a visitor leaves.
func LeaveMarker(id identity.Identity) string {
	return marker + id.String() + " has left the chat" + marker
}

// IsSystemMarker reports whether text is a join/leave marker rather than a
// chat message. Messages matching this are hidden from widget-visible
// history. A message that merely starts and ends with bold markdown is
// indistinguishable from a marker; such user messages are dropped too.
func IsSystemMarker(text string) bool {
	return strings.HasPrefix(text, marker) && strings.HasSuffix(text, marker)
}

// FormSubmission is a vendor form response reduced to what gets posted.
type FormSubmission struct {
	FormName     string
	SubmissionID string
	Answers      []FormAnswer
}

// FormAnswer carries one answered field with its vendor type discriminator.
// Exactly one of the value fields is meaningful, selected by Kind.
type FormAnswer struct {
	Question     string
	Kind         string
	Text         string
	Email        string
	URL          string
	Date         string
	Number       float64
	Boolean      bool
	ChoiceLabel  string
	ChoiceLabels []string
}

// FormatSubmission renders a form response as a single postable message:
// a title line, one bolded question per answer, and the submission id.
func FormatSubmission(sub FormSubmission) string {
	var b strings.Builder
	b.WriteString("New Response: " + sub.FormName)
	for _, answer := range sub.Answers {
		b.WriteString("\n**" + answer.Question + "**: " + renderAnswer(answer))
	}
	if sub.SubmissionID != "" {
		b.WriteString("\nSubmission ID: " + sub.SubmissionID)
	}
	return b.String()
}

func renderAnswer(a FormAnswer) string {
	switch a.Kind {
	case "choice":
		return a.ChoiceLabel
	case "choices":
		return strings.Join(a.ChoiceLabels, ", ")
	case "date":
		return a.Date
	case "email":
		return a.Email
	case "url":
		return a.URL
	case "number":
		return strconv.FormatFloat(a.Number, 'f', -1, 64)
	case "boolean":
		if a.Boolean {
			return "Yes"
		}
		return "No"
	case "text", "long_text":
		return a.Text
	default:
		return "Unsupported answer type"
	}
}
