package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/digitalgenesis/supportbridge/internal/discord"
	"github.com/digitalgenesis/supportbridge/internal/identity"
	"github.com/digitalgenesis/supportbridge/internal/notify"
)

const (
	SenderUser    = "user"
	SenderSupport = "bot"
)

// ChatMessage is one widget-visible history entry. Sender "user" is the
// widget side (relayed through the bot account); "bot" is anything a human
// support account typed into the platform.
type ChatMessage struct {
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type threadDirectory interface {
	FindThread(ctx context.Context, id identity.Identity) (*discordgo.Channel, error)
	ResolveChannel(ctx context.Context, name string) (*discordgo.Channel, error)
	StartThread(ctx context.Context, channelID, name string) (*discordgo.Channel, error)
	SendText(ctx context.Context, channelID, text string) error
	Messages(ctx context.Context, channelID string, limit int) ([]*discordgo.Message, error)
	DeleteThread(ctx context.Context, threadID string) error
}

// Archiver reads a conversation's platform history and, on deletion
// requests, re-homes it into the archive channel before retiring the
// source thread.
type Archiver struct {
	logger         *slog.Logger
	directory      threadDirectory
	archiveChannel string
	fetchLimit     int
	chunkLimit     int

	now func() time.Time
}

func NewArchiver(log *slog.Logger, directory threadDirectory, archiveChannel string, fetchLimit, chunkLimit int) *Archiver {
	if log == nil {
		log = slog.Default()
	}
	return &Archiver{
		logger:         log.With(slog.String("component", "history")),
		directory:      directory,
		archiveChannel: archiveChannel,
		fetchLimit:     fetchLimit,
		chunkLimit:     chunkLimit,
		now:            time.Now,
	}
}

// Fetch returns the identity's conversation in chronological order with
// system markers stripped. Missing guild/channel/thread surfaces as
// discord.ErrNotFound.
func (a *Archiver) Fetch(ctx context.Context, id identity.Identity) ([]ChatMessage, error) {
	thread, err := a.directory.FindThread(ctx, id)
	if err != nil {
		return nil, err
	}

	raw, err := a.directory.Messages(ctx, thread.ID, a.fetchLimit)
	if err != nil {
		return nil, err
	}

	// The platform returns newest first; reverse into reading order.
	messages := make([]ChatMessage, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		msg := raw[i]
		if notify.IsSystemMarker(msg.Content) {
			continue
		}
		messages = append(messages, ChatMessage{
			Sender:    senderOf(msg),
			Text:      msg.Content,
			Timestamp: msg.Timestamp,
		})
	}
	return messages, nil
}

// ArchiveAndRetire copies the surviving conversation into a time-suffixed
// thread in the archive channel, then deletes the source thread. A missing
// source thread is a success: deleting history that is already gone must
// be idempotent.
func (a *Archiver) ArchiveAndRetire(ctx context.Context, id identity.Identity) error {
	thread, err := a.directory.FindThread(ctx, id)
	if errors.Is(err, discord.ErrNotFound) {
		a.logger.Info("no thread to archive", slog.String("email", id.String()))
		return nil
	}
	if err != nil {
		return err
	}

	messages, err := a.Fetch(ctx, id)
	if err != nil {
		return err
	}

	if len(messages) > 0 {
		archiveParent, err := a.directory.ResolveChannel(ctx, a.archiveChannel)
		if err != nil {
			return err
		}

		name := fmt.Sprintf("%s %s", id.String(), a.now().UTC().Format("2006-01-02 15:04"))
		archiveThread, err := a.directory.StartThread(ctx, archiveParent.ID, name)
		if err != nil {
			return err
		}

		lines := make([]string, 0, len(messages))
		for _, msg := range messages {
			lines = append(lines, renderLine(msg))
		}
		for _, chunk := range packLines(lines, a.chunkLimit) {
			if err := a.directory.SendText(ctx, archiveThread.ID, chunk); err != nil {
				return err
			}
		}
		a.logger.Info("conversation archived",
			slog.String("email", id.String()),
			slog.Int("messages", len(messages)),
			slog.String("archive_thread", archiveThread.ID))
	}

	return a.directory.DeleteThread(ctx, thread.ID)
}

func senderOf(msg *discordgo.Message) string {
	if msg.Author != nil && msg.Author.Bot {
		return SenderUser
	}
	return SenderSupport
}

func renderLine(msg ChatMessage) string {
	if msg.Sender == SenderUser {
		return "User: " + msg.Text
	}
	return "Support: " + msg.Text
}

// packLines greedily joins lines into newline-separated chunks of at most
// limit bytes. A line is never split across chunks; a single line longer
// than the limit gets a chunk to itself.
func packLines(lines []string, limit int) []string {
	var chunks []string
	var current string
	for _, line := range lines {
		switch {
		case current == "":
			current = line
		case len(current)+1+len(line) <= limit:
			current += "\n" + line
		default:
			chunks = append(chunks, current)
			current = line
		}
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}
