package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/digitalgenesis/supportbridge/internal/notify"
	"github.com/digitalgenesis/supportbridge/internal/typeform"
)

const signatureHeader = "X-Signature"

const webhookMaxBodyBytes int64 = 1 << 20 // 1 MiB

type resultsPoster interface {
	ResolveChannel(ctx context.Context, name string) (*discordgo.Channel, error)
	SendText(ctx context.Context, channelID, text string) error
}

// TypeformWebhookHandler receives form-submission deliveries, verifies their
// signature against the raw body, and relays the formatted response into the
// results channel.
type TypeformWebhookHandler struct {
	logger         *slog.Logger
	poster         resultsPoster
	resultsChannel string
	secret         string
}

func NewTypeformWebhookHandler(log *slog.Logger, poster resultsPoster, resultsChannel, secret string) *TypeformWebhookHandler {
	return &TypeformWebhookHandler{
		logger:         log.With(slog.String("handler", "typeform_webhook")),
		poster:         poster,
		resultsChannel: resultsChannel,
		secret:         secret,
	}
}

func (h *TypeformWebhookHandler) Register(e *echo.Echo) {
	e.POST("/api/typeform-webhook", h.Handle)
}

func (h *TypeformWebhookHandler) Handle(c echo.Context) error {
	// The signature covers the exact bytes on the wire, so the body must be
	// captured before any parsing.
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, webhookMaxBodyBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
	}
	if int64(len(body)) > webhookMaxBodyBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, fmt.Sprintf("payload too large: max %d bytes", webhookMaxBodyBytes))
	}

	if !typeform.VerifySignature(body, c.Request().Header.Get(signatureHeader), h.secret) {
		h.logger.Warn("signature verification failed", slog.String("remote_ip", c.RealIP()))
		return echo.NewHTTPError(http.StatusForbidden, "Invalid signature")
	}

	payload, err := typeform.Parse(body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	deliveryID := payload.EventID
	if deliveryID == "" {
		deliveryID = uuid.NewString()
	}
	log := h.logger.With(slog.String("delivery_id", deliveryID))

	ctx := c.Request().Context()
	channel, err := h.poster.ResolveChannel(ctx, h.resultsChannel)
	if err != nil {
		log.Error("resolve results channel failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to process webhook")
	}

	if err := h.poster.SendText(ctx, channel.ID, notify.FormatSubmission(payload.Submission())); err != nil {
		log.Error("post submission failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to process webhook")
	}

	log.Info("form submission relayed", slog.String("form", payload.FormResponse.Definition.Title))
	return c.String(http.StatusOK, "Webhook received")
}
