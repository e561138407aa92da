package discord

import (
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/digitalgenesis/supportbridge/internal/push"
)

// Broadcaster receives inbound platform messages for live delivery.
type Broadcaster interface {
	Broadcast(payload push.Payload)
}

// Gateway bridges the platform's event stream to the push hub. Any message
// a non-bot account posts into a thread is fanned out with the thread name
// as the identity; top-level channel messages are ignored.
type Gateway struct {
	logger *slog.Logger
	hub    Broadcaster
}

func NewGateway(log *slog.Logger, hub Broadcaster) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{
		logger: log.With(slog.String("component", "gateway")),
		hub:    hub,
	}
}

// Attach registers the message handler on the session and returns its
// remover.
func (g *Gateway) Attach(session *discordgo.Session) func() {
	return session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.Bot {
			return
		}
		text := strings.TrimSpace(m.Content)
		if text == "" {
			return
		}

		channel, err := s.State.Channel(m.ChannelID)
		if err != nil {
			channel, err = s.Channel(m.ChannelID)
		}
		if err != nil {
			g.logger.Warn("channel lookup failed", slog.String("channel_id", m.ChannelID), slog.Any("error", err))
			return
		}
		if !channel.IsThread() {
			return
		}

		g.logger.Debug("inbound thread message",
			slog.String("email", channel.Name),
			slog.String("author", m.Author.Username))

		g.hub.Broadcast(push.Payload{
			Email:     channel.Name,
			Text:      m.Content,
			Sender:    "bot",
			Timestamp: m.Timestamp,
		})
	})
}
