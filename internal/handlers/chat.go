package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"github.com/labstack/echo/v4"

	"github.com/digitalgenesis/supportbridge/internal/discord"
	"github.com/digitalgenesis/supportbridge/internal/history"
	"github.com/digitalgenesis/supportbridge/internal/identity"
	"github.com/digitalgenesis/supportbridge/internal/notify"
	"github.com/digitalgenesis/supportbridge/internal/session"
)

type sessionRegistry interface {
	Join(ctx context.Context, id identity.Identity) bool
	Heartbeat(id identity.Identity) bool
	Touch(id identity.Identity)
	Leave(ctx context.Context, id identity.Identity) error
}

type threadDirectory interface {
	ResolveThread(ctx context.Context, id identity.Identity) (*discordgo.Channel, bool, error)
	SendText(ctx context.Context, channelID, text string) error
}

type historyService interface {
	Fetch(ctx context.Context, id identity.Identity) ([]history.ChatMessage, error)
	ArchiveAndRetire(ctx context.Context, id identity.Identity) error
}

// ChatHandler exposes the widget-facing conversation API.
type ChatHandler struct {
	logger    *slog.Logger
	sessions  sessionRegistry
	directory threadDirectory
	archiver  historyService
}

func NewChatHandler(log *slog.Logger, sessions sessionRegistry, directory threadDirectory, archiver historyService) *ChatHandler {
	return &ChatHandler{
		logger:    log.With(slog.String("handler", "chat")),
		sessions:  sessions,
		directory: directory,
		archiver:  archiver,
	}
}

func (h *ChatHandler) Register(e *echo.Echo) {
	e.POST("/api/join-chat", h.Join)
	e.POST("/api/heartbeat", h.Heartbeat)
	e.POST("/api/send-message", h.SendMessage)
	e.GET("/api/conversation-history", h.History)
	e.POST("/api/leave-chat", h.Leave)
	e.POST("/api/end-session", h.Leave)
	e.POST("/api/delete-chat-history", h.DeleteHistory)
}

type emailRequest struct {
	Email string `json:"email"`
}

type sendMessageRequest struct {
	Email string `json:"email"`
	Text  string `json:"text"`
}

func (h *ChatHandler) Join(c echo.Context) error {
	id, err := bindIdentity(c)
	if err != nil {
		return err
	}
	h.sessions.Join(c.Request().Context(), id)
	return c.String(http.StatusOK, "Join notification processed")
}

func (h *ChatHandler) Heartbeat(c echo.Context) error {
	id, err := bindIdentity(c)
	if err != nil {
		return err
	}
	h.sessions.Heartbeat(id)
	return c.String(http.StatusOK, "Heartbeat processed")
}

func (h *ChatHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	id, err := identity.Parse(req.Email)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}

	ctx := c.Request().Context()
	thread, created, err := h.directory.ResolveThread(ctx, id)
	if errors.Is(err, discord.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		h.logger.Error("resolve thread failed", slog.String("email", id.String()), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to send message")
	}

	// First-ever contact through send: the thread was just created, so the
	// join marker lands before the message, mirroring the join endpoint.
	if created {
		if err := h.directory.SendText(ctx, thread.ID, notify.JoinMarker(id)); err != nil {
			h.logger.Error("join marker failed", slog.String("email", id.String()), slog.Any("error", err))
		}
	}

	if err := h.directory.SendText(ctx, thread.ID, req.Text); err != nil {
		h.logger.Error("send failed", slog.String("email", id.String()), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to send message")
	}

	h.sessions.Touch(id)
	return c.String(http.StatusOK, "Message sent")
}

func (h *ChatHandler) History(c echo.Context) error {
	id, err := identity.Parse(c.QueryParam("email"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	messages, err := h.archiver.Fetch(c.Request().Context(), id)
	if errors.Is(err, discord.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		h.logger.Error("fetch history failed", slog.String("email", id.String()), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch conversation history")
	}

	if messages == nil {
		messages = []history.ChatMessage{}
	}
	return c.JSON(http.StatusOK, messages)
}

func (h *ChatHandler) Leave(c echo.Context) error {
	id, err := bindIdentity(c)
	if err != nil {
		return err
	}
	if err := h.sessions.Leave(c.Request().Context(), id); err != nil {
		if errors.Is(err, session.ErrNoActiveSession) {
			return echo.NewHTTPError(http.StatusBadRequest, "No active session for this email")
		}
		h.logger.Error("leave failed", slog.String("email", id.String()), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to end session")
	}
	return c.String(http.StatusOK, "Leave notification sent and session ended")
}

func (h *ChatHandler) DeleteHistory(c echo.Context) error {
	id, err := bindIdentity(c)
	if err != nil {
		return err
	}
	if err := h.archiver.ArchiveAndRetire(c.Request().Context(), id); err != nil {
		h.logger.Error("archive failed", slog.String("email", id.String()), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to delete chat history")
	}
	return c.String(http.StatusOK, "Chat history deleted")
}

func bindIdentity(c echo.Context) (identity.Identity, error) {
	var req emailRequest
	if err := c.Bind(&req); err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	id, err := identity.Parse(req.Email)
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return id, nil
}
