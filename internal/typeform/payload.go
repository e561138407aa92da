package typeform

import (
	"encoding/json"
	"fmt"

	"github.com/digitalgenesis/supportbridge/internal/notify"
)

// WebhookPayload is the body of a Typeform webhook delivery, reduced to the
// fields the bridge consumes.
type WebhookPayload struct {
	EventID      string       `json:"event_id"`
	EventType    string       `json:"event_type"`
	FormResponse FormResponse `json:"form_response"`
}

type FormResponse struct {
	Token      string            `json:"token"`
	Definition FormDefinition    `json:"definition"`
	Hidden     map[string]string `json:"hidden"`
	Answers    []Answer          `json:"answers"`
}

type FormDefinition struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Answer is type-discriminated: Type selects which value field is set.
type Answer struct {
	Type    string   `json:"type"`
	Field   Field    `json:"field"`
	Text    string   `json:"text"`
	Email   string   `json:"email"`
	URL     string   `json:"url"`
	Date    string   `json:"date"`
	Number  float64  `json:"number"`
	Boolean bool     `json:"boolean"`
	Choice  *Choice  `json:"choice"`
	Choices *Choices `json:"choices"`
}

type Field struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
}

type Choice struct {
	Label string `json:"label"`
}

type Choices struct {
	Labels []string `json:"labels"`
}

// Parse decodes a verified delivery body.
func Parse(body []byte) (WebhookPayload, error) {
	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return WebhookPayload{}, fmt.Errorf("parse typeform payload: %w", err)
	}
	return payload, nil
}

// Submission maps the delivery into the formatter's vendor-neutral shape.
func (p WebhookPayload) Submission() notify.FormSubmission {
	sub := notify.FormSubmission{
		FormName:     p.FormResponse.Definition.Title,
		SubmissionID: p.FormResponse.Token,
		Answers:      make([]notify.FormAnswer, 0, len(p.FormResponse.Answers)),
	}
	for _, answer := range p.FormResponse.Answers {
		out := notify.FormAnswer{
			Question: answer.Field.Title,
			Kind:     answer.Type,
			Text:     answer.Text,
			Email:    answer.Email,
			URL:      answer.URL,
			Date:     answer.Date,
			Number:   answer.Number,
			Boolean:  answer.Boolean,
		}
		if answer.Choice != nil {
			out.ChoiceLabel = answer.Choice.Label
		}
		if answer.Choices != nil {
			out.ChoiceLabels = answer.Choices.Labels
		}
		sub.Answers = append(sub.Answers, out)
	}
	return sub
}
