package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/digitalgenesis/supportbridge/internal/identity"
)

// ErrNotFound marks a missing guild, channel, or thread. It indicates
// misconfiguration or a retired conversation and is never retried.
var ErrNotFound = errors.New("not found")

// API is the slice of discordgo.Session the directory depends on.
type API interface {
	Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error)
	GuildChannels(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Channel, error)
	GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	GuildThreadsActive(guildID string, options ...discordgo.RequestOption) (*discordgo.ThreadsList, error)
	ThreadStart(channelID, name string, typ discordgo.ChannelType, archiveDuration int, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	ChannelDelete(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
}

// Directory resolves an identity to its conversation thread, creating the
// parent channel and the thread lazily. Thread name == identity is the one
// convention everything else hangs off: it is the reverse mapping for
// inbound messages and it makes racing creates self-correcting, since the
// next lookup converges on whichever duplicate is found first.
type Directory struct {
	logger         *slog.Logger
	api            API
	guildID        string
	supportChannel string
	autoArchiveMin int

	mu        sync.Mutex
	botUserID string
}

func NewDirectory(log *slog.Logger, api API, guildID, supportChannel string, autoArchiveMin int) *Directory {
	if log == nil {
		log = slog.Default()
	}
	return &Directory{
		logger:         log.With(slog.String("component", "directory")),
		api:            api,
		guildID:        guildID,
		supportChannel: supportChannel,
		autoArchiveMin: autoArchiveMin,
	}
}

// ResolveThread finds or creates the conversation thread for an identity.
// created is true only when this call started the thread; it gates the
// join marker on first contact. Concurrent resolves may both create; the
// platform keeps whichever wins and later lookups converge.
func (d *Directory) ResolveThread(ctx context.Context, id identity.Identity) (*discordgo.Channel, bool, error) {
	channel, err := d.ResolveChannel(ctx, d.supportChannel)
	if err != nil {
		return nil, false, err
	}

	thread, err := d.findThread(ctx, channel.ID, id.String())
	if err != nil {
		return nil, false, err
	}
	if thread != nil {
		return thread, false, nil
	}

	thread, err = d.api.ThreadStart(channel.ID, id.String(), discordgo.ChannelTypeGuildPublicThread, d.autoArchiveMin, discordgo.WithContext(ctx))
	if err != nil {
		return nil, false, fmt.Errorf("create thread %q: %w", id.String(), err)
	}
	d.logger.Info("thread created", slog.String("email", id.String()), slog.String("thread_id", thread.ID))
	return thread, true, nil
}

// FindThread resolves without creating anything. Each missing step fails
// with ErrNotFound.
func (d *Directory) FindThread(ctx context.Context, id identity.Identity) (*discordgo.Channel, error) {
	channel, err := d.FindChannel(ctx, d.supportChannel)
	if err != nil {
		return nil, err
	}
	thread, err := d.findThread(ctx, channel.ID, id.String())
	if err != nil {
		return nil, err
	}
	if thread == nil {
		return nil, fmt.Errorf("thread %q: %w", id.String(), ErrNotFound)
	}
	return thread, nil
}

// FindChannel looks up a text channel by name in the configured guild.
func (d *Directory) FindChannel(ctx context.Context, name string) (*discordgo.Channel, error) {
	if _, err := d.api.Guild(d.guildID, discordgo.WithContext(ctx)); err != nil {
		return nil, fmt.Errorf("guild %s: %w", d.guildID, ErrNotFound)
	}
	channels, err := d.api.GuildChannels(d.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	for _, ch := range channels {
		if ch.Name == name && ch.Type == discordgo.ChannelTypeGuildText {
			return ch, nil
		}
	}
	return nil, fmt.Errorf("channel %q: %w", name, ErrNotFound)
}

// ResolveChannel finds a text channel by name, creating it if absent. New
// channels are hidden from @everyone and opened to the bot account only;
// support staff get access through Discord-side role management.
func (d *Directory) ResolveChannel(ctx context.Context, name string) (*discordgo.Channel, error) {
	channel, err := d.FindChannel(ctx, name)
	if err == nil {
		return channel, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	// Guild itself missing is a configuration error, not a create case.
	if _, gerr := d.api.Guild(d.guildID, discordgo.WithContext(ctx)); gerr != nil {
		return nil, fmt.Errorf("guild %s: %w", d.guildID, ErrNotFound)
	}

	botID, err := d.resolveBotID(ctx)
	if err != nil {
		return nil, err
	}

	channel, err = d.api.GuildChannelCreateComplex(d.guildID, discordgo.GuildChannelCreateData{
		Name: name,
		Type: discordgo.ChannelTypeGuildText,
		PermissionOverwrites: []*discordgo.PermissionOverwrite{
			{
				// The @everyone role ID equals the guild ID.
				ID:   d.guildID,
				Type: discordgo.PermissionOverwriteTypeRole,
				Deny: discordgo.PermissionViewChannel,
			},
			{
				ID:    botID,
				Type:  discordgo.PermissionOverwriteTypeMember,
				Allow: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionReadMessageHistory,
			},
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("create channel %q: %w", name, err)
	}
	d.logger.Info("channel created", slog.String("channel", name), slog.String("channel_id", channel.ID))
	return channel, nil
}

// StartThread opens a new public thread under the given channel.
func (d *Directory) StartThread(ctx context.Context, channelID, name string) (*discordgo.Channel, error) {
	thread, err := d.api.ThreadStart(channelID, name, discordgo.ChannelTypeGuildPublicThread, d.autoArchiveMin, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("create thread %q: %w", name, err)
	}
	return thread, nil
}

// SendText posts a plain message into a channel or thread.
func (d *Directory) SendText(ctx context.Context, channelID, text string) error {
	if _, err := d.api.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// Messages fetches up to limit of the most recent messages, newest first.
func (d *Directory) Messages(ctx context.Context, channelID string, limit int) ([]*discordgo.Message, error) {
	messages, err := d.api.ChannelMessages(channelID, limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	return messages, nil
}

// DeleteThread removes a thread. Threads are channels to the platform.
func (d *Directory) DeleteThread(ctx context.Context, threadID string) error {
	if _, err := d.api.ChannelDelete(threadID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("delete thread: %w", err)
	}
	return nil
}

func (d *Directory) findThread(ctx context.Context, channelID, name string) (*discordgo.Channel, error) {
	list, err := d.api.GuildThreadsActive(d.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("list active threads: %w", err)
	}
	for _, thread := range list.Threads {
		if thread.ParentID == channelID && thread.Name == name {
			return thread, nil
		}
	}
	return nil, nil
}

func (d *Directory) resolveBotID(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.botUserID != "" {
		return d.botUserID, nil
	}
	user, err := d.api.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("resolve bot user: %w", err)
	}
	d.botUserID = user.ID
	return d.botUserID, nil
}
