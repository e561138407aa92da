package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultConfigPath         = "config.toml"
	DefaultHTTPAddr           = ":8080"
	DefaultAllowedOrigin      = "https://digitalgenesis.support"
	DefaultSupportChannel     = "support-chat"
	DefaultArchiveChannel     = "chat-archive"
	DefaultResultsChannel     = "typeform-responses"
	DefaultAutoArchiveMinutes = 1440
	DefaultInactivityMinutes  = 30
	DefaultSweepMinutes       = 5
	DefaultHistoryLimit       = 100
	DefaultChunkLimit         = 2000
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Discord  DiscordConfig  `toml:"discord"`
	Session  SessionConfig  `toml:"session"`
	Typeform TypeformConfig `toml:"typeform"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr          string `toml:"addr"`
	AllowedOrigin string `toml:"allowed_origin"`
}

type DiscordConfig struct {
	BotToken           string `toml:"bot_token"`
	GuildID            string `toml:"guild_id"`
	SupportChannel     string `toml:"support_channel"`
	ArchiveChannel     string `toml:"archive_channel"`
	ResultsChannel     string `toml:"results_channel"`
	AutoArchiveMinutes int    `toml:"auto_archive_minutes"`
	HistoryLimit       int    `toml:"history_limit"`
	ChunkLimit         int    `toml:"chunk_limit"`
}

type SessionConfig struct {
	InactivityMinutes int `toml:"inactivity_minutes"`
	SweepMinutes      int `toml:"sweep_minutes"`
}

type TypeformConfig struct {
	Secret string `toml:"secret"`
}

func (c SessionConfig) InactivityThreshold() time.Duration {
	return time.Duration(c.InactivityMinutes) * time.Minute
}

func (c SessionConfig) SweepPeriod() time.Duration {
	return time.Duration(c.SweepMinutes) * time.Minute
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr:          DefaultHTTPAddr,
			AllowedOrigin: DefaultAllowedOrigin,
		},
		Discord: DiscordConfig{
			SupportChannel:     DefaultSupportChannel,
			ArchiveChannel:     DefaultArchiveChannel,
			ResultsChannel:     DefaultResultsChannel,
			AutoArchiveMinutes: DefaultAutoArchiveMinutes,
			HistoryLimit:       DefaultHistoryLimit,
			ChunkLimit:         DefaultChunkLimit,
		},
		Session: SessionConfig{
			InactivityMinutes: DefaultInactivityMinutes,
			SweepMinutes:      DefaultSweepMinutes,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, err
		}
	} else if !os.IsNotExist(err) {
		return cfg, err
	}

	if token := os.Getenv("DISCORD_BOT_TOKEN"); token != "" {
		cfg.Discord.BotToken = token
	}
	if guild := os.Getenv("DISCORD_GUILD_ID"); guild != "" {
		cfg.Discord.GuildID = guild
	}
	if secret := os.Getenv("TYPEFORM_SECRET"); secret != "" {
		cfg.Typeform.Secret = secret
	}

	return cfg, nil
}
