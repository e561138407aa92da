package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitalgenesis/supportbridge/internal/logger"
	"github.com/digitalgenesis/supportbridge/internal/typeform"
)

type fakePoster struct {
	resolveErr error
	sendErr    error
	posts      []string
}

func (p *fakePoster) ResolveChannel(_ context.Context, name string) (*discordgo.Channel, error) {
	if p.resolveErr != nil {
		return nil, p.resolveErr
	}
	return &discordgo.Channel{ID: "results-1", Name: name}, nil
}

func (p *fakePoster) SendText(_ context.Context, _, text string) error {
	if p.sendErr != nil {
		return p.sendErr
	}
	p.posts = append(p.posts, text)
	return nil
}

const webhookSecret = "tf-secret"

const webhookBody = `{
  "event_id": "ev-1",
  "event_type": "form_response",
  "form_response": {
    "form_id": "form-1",
    "token": "tok-1",
    "definition": {
      "id": "form-1",
      "title": "Customer Feedback"
    },
    "answers": [
      {"type": "choice", "field": {"id": "f1", "title": "How did you hear about us?"}, "choice": {"label": "A friend"}},
      {"type": "boolean", "field": {"id": "f2", "title": "Would you recommend us?"}, "boolean": true}
    ]
  }
}`

func postWebhook(e *echo.Echo, body, signature string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/api/typeform-webhook", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if signature != "" {
		req.Header.Set("X-Signature", signature)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestWebhookRelaysSignedDelivery(t *testing.T) {
	t.Parallel()

	poster := &fakePoster{}
	h := NewTypeformWebhookHandler(logger.L, poster, "typeform-responses", webhookSecret)
	e := echo.New()

	c, rec := postWebhook(e, webhookBody, typeform.Sign([]byte(webhookBody), webhookSecret))
	require.NoError(t, h.Handle(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Webhook received", rec.Body.String())

	require.Len(t, poster.posts, 1)
	post := poster.posts[0]
	assert.Contains(t, post, "New Response: Customer Feedback")
	assert.Contains(t, post, "**How did you hear about us?**: A friend")
	assert.Contains(t, post, "**Would you recommend us?**: Yes")
	assert.Contains(t, post, "Submission ID: tok-1")
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	t.Parallel()

	poster := &fakePoster{}
	h := NewTypeformWebhookHandler(logger.L, poster, "typeform-responses", webhookSecret)
	e := echo.New()

	c, _ := postWebhook(e, webhookBody, "sha256=bm90LXRoZS1yZWFsLXNpZ25hdHVyZQ==")
	err := h.Handle(c)
	assert.Equal(t, http.StatusForbidden, httpStatus(t, err))
	assert.Empty(t, poster.posts)
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	t.Parallel()

	h := NewTypeformWebhookHandler(logger.L, &fakePoster{}, "typeform-responses", webhookSecret)
	e := echo.New()

	c, _ := postWebhook(e, webhookBody, "")
	err := h.Handle(c)
	assert.Equal(t, http.StatusForbidden, httpStatus(t, err))
}

func TestWebhookFailsClosedWithoutSecret(t *testing.T) {
	t.Parallel()

	h := NewTypeformWebhookHandler(logger.L, &fakePoster{}, "typeform-responses", "")
	e := echo.New()

	c, _ := postWebhook(e, webhookBody, typeform.Sign([]byte(webhookBody), webhookSecret))
	err := h.Handle(c)
	assert.Equal(t, http.StatusForbidden, httpStatus(t, err))
}

func TestWebhookRejectsMalformedBody(t *testing.T) {
	t.Parallel()

	h := NewTypeformWebhookHandler(logger.L, &fakePoster{}, "typeform-responses", webhookSecret)
	e := echo.New()

	body := `{"event_id": truncated`
	c, _ := postWebhook(e, body, typeform.Sign([]byte(body), webhookSecret))
	err := h.Handle(c)
	assert.Equal(t, http.StatusBadRequest, httpStatus(t, err))
}

func TestWebhookPostFailureIs500(t *testing.T) {
	t.Parallel()

	poster := &fakePoster{sendErr: assert.AnError}
	h := NewTypeformWebhookHandler(logger.L, poster, "typeform-responses", webhookSecret)
	e := echo.New()

	c, _ := postWebhook(e, webhookBody, typeform.Sign([]byte(webhookBody), webhookSecret))
	err := h.Handle(c)
	assert.Equal(t, http.StatusInternalServerError, httpStatus(t, err))
}
