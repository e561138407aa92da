package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// NewSession builds an authenticated gateway session. The caller owns
// Open/Close.
func NewSession(botToken string) (*discordgo.Session, error) {
	if botToken == "" {
		return nil, fmt.Errorf("discord bot token is required")
	}
	session, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuildMembers
	return session, nil
}
