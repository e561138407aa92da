package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/digitalgenesis/supportbridge/internal/config"
	"github.com/digitalgenesis/supportbridge/internal/discord"
	"github.com/digitalgenesis/supportbridge/internal/handlers"
	"github.com/digitalgenesis/supportbridge/internal/history"
	"github.com/digitalgenesis/supportbridge/internal/logger"
	"github.com/digitalgenesis/supportbridge/internal/push"
	"github.com/digitalgenesis/supportbridge/internal/server"
	"github.com/digitalgenesis/supportbridge/internal/session"
)

func runServe(cfgPath string) {
	fx.New(
		fx.Provide(
			func() (config.Config, error) {
				cfg, err := config.Load(cfgPath)
				if err != nil {
					return config.Config{}, fmt.Errorf("load config: %w", err)
				}
				return cfg, nil
			},
			provideLogger,
			provideDiscordSession,
			provideDirectory,
			push.NewHub,
			provideGateway,
			provideNotifier,
			provideRegistry,
			provideSweeper,
			provideArchiver,
			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(provideChatHandler),
			provideServerHandler(provideWSHandler),
			provideServerHandler(provideTypeformHandler),
			provideServer,
		),
		fx.Invoke(
			startDiscord,
			startSweeper,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDiscordSession(cfg config.Config) (*discordgo.Session, error) {
	return discord.NewSession(cfg.Discord.BotToken)
}

func provideDirectory(log *slog.Logger, dsession *discordgo.Session, cfg config.Config) *discord.Directory {
	return discord.NewDirectory(log, dsession, cfg.Discord.GuildID, cfg.Discord.SupportChannel, cfg.Discord.AutoArchiveMinutes)
}

func provideGateway(log *slog.Logger, hub *push.Hub) *discord.Gateway {
	return discord.NewGateway(log, hub)
}

func provideNotifier(log *slog.Logger, directory *discord.Directory) *discord.Notifier {
	return discord.NewNotifier(log, directory)
}

func provideRegistry(log *slog.Logger, notifier *discord.Notifier, cfg config.Config) *session.Registry {
	return session.NewRegistry(log, notifier, cfg.Session.InactivityThreshold())
}

func provideSweeper(log *slog.Logger, registry *session.Registry, cfg config.Config) *session.Sweeper {
	return session.NewSweeper(log, registry, cfg.Session.SweepPeriod())
}

func provideArchiver(log *slog.Logger, directory *discord.Directory, cfg config.Config) *history.Archiver {
	return history.NewArchiver(log, directory, cfg.Discord.ArchiveChannel, cfg.Discord.HistoryLimit, cfg.Discord.ChunkLimit)
}

func provideChatHandler(log *slog.Logger, registry *session.Registry, directory *discord.Directory, archiver *history.Archiver) *handlers.ChatHandler {
	return handlers.NewChatHandler(log, registry, directory, archiver)
}

func provideWSHandler(log *slog.Logger, hub *push.Hub, cfg config.Config) *handlers.WSHandler {
	return handlers.NewWSHandler(log, hub, cfg.Server.AllowedOrigin)
}

func provideTypeformHandler(log *slog.Logger, directory *discord.Directory, cfg config.Config) *handlers.TypeformWebhookHandler {
	return handlers.NewTypeformWebhookHandler(log, directory, cfg.Discord.ResultsChannel, cfg.Typeform.Secret)
}

type serverParams struct {
	fx.In
	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.New(params.Logger, params.Config.Server.Addr, params.Config.Server.AllowedOrigin, params.ServerHandlers...)
}

func startDiscord(lc fx.Lifecycle, log *slog.Logger, dsession *discordgo.Session, gateway *discord.Gateway) {
	var remove func()
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			remove = gateway.Attach(dsession)
			if err := dsession.Open(); err != nil {
				return fmt.Errorf("open discord session: %w", err)
			}
			log.Info("discord session open")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if remove != nil {
				remove()
			}
			return dsession.Close()
		},
	})
}

func startSweeper(lc fx.Lifecycle, sweeper *session.Sweeper) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error { return sweeper.Start() },
		OnStop:  func(ctx context.Context) error { return sweeper.Stop(ctx) },
	})
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, hub *push.Hub, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			hub.CloseAll()
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
