// Package discord connects the soundboard core and the presence manager to the
// Discord gateway: it turns gateway events into presence transitions and usage
// ingestion, and dispatches text and slash commands.
package discord

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/keshon/soundboard-stats/internal/command"
	"github.com/keshon/soundboard-stats/internal/config"
	"github.com/keshon/soundboard-stats/internal/middleware"
	"github.com/keshon/soundboard-stats/internal/presence"
	"github.com/keshon/soundboard-stats/internal/soundboard"
	"github.com/keshon/soundboard-stats/pkg/cmd"
	"github.com/keshon/soundboard-stats/pkg/jobmgr"
)

const (
	commandTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Bot is the gateway adapter.
type Bot struct {
	cfg *config.Config
	log zerolog.Logger
	dg  *discordgo.Session

	catalog  *soundboard.Catalog
	ingestor *soundboard.Ingestor
	presence *presence.Manager
	registry *cmd.Registry
	jobs     *jobmgr.Manager

	// ctx bounds work spawned from handlers; cancelled on shutdown.
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	slashHashes map[string]string
}

// New creates the session and wires every component that needs it. Nothing
// connects until Run.
func New(cfg *config.Config, store soundboard.Store, log zerolog.Logger) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMembers
	// Handlers run in receive order; anything doing I/O must hand off to a goroutine.
	dg.SyncEvents = true

	log = log.With().Str("component", "discord").Logger()
	catalog := soundboard.NewCatalog(NewSoundSource(dg), cfg.CatalogFetchTimeout, log)

	b := &Bot{
		cfg:      cfg,
		log:      log,
		dg:       dg,
		catalog:  catalog,
		ingestor: soundboard.NewIngestor(catalog, store, log),
		presence: presence.NewManager(NewVoiceDialer(dg), NewStateOccupancy(dg.State), presence.Config{
			AutoJoin:    cfg.VoiceAutoJoin,
			LeaveDelay:  cfg.VoiceLeaveDelay,
			JoinTimeout: cfg.VoiceJoinTimeout,
		}, log),
		registry:    cmd.NewRegistry(),
		slashHashes: make(map[string]string),
	}
	b.ctx, b.cancel = context.WithCancel(context.Background())
	b.jobs = jobmgr.NewManager(func(status string) {
		b.log.Debug().Str("status", status).Msg("job")
	})

	deps := command.Deps{
		Catalog:  catalog,
		Store:    store,
		Presence: b.presence,
		Latency:  dg.HeartbeatLatency,
	}
	for _, c := range command.All(deps) {
		wrapped := cmd.Apply(c,
			middleware.WithCommandLogger(log),
			middleware.WithGuildOnly(),
		)
		if err := b.registry.Register(wrapped); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Run opens the gateway and blocks until ctx is done, then leaves every voice
// channel and closes the session.
func (b *Bot) Run(ctx context.Context) error {
	b.dg.AddHandler(b.onReady)
	b.dg.AddHandler(b.onGuildCreate)
	b.dg.AddHandler(b.onVoiceStateUpdate)
	b.dg.AddHandler(b.onEvent)
	b.dg.AddHandler(b.onMessageCreate)
	b.dg.AddHandler(b.onInteractionCreate)

	if err := b.dg.Open(); err != nil {
		b.cancel()
		return fmt.Errorf("failed to open Discord session: %w", err)
	}

	<-ctx.Done()
	b.log.Info().Msg("shutdown signal received, cleaning up")
	return b.shutdown()
}

func (b *Bot) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := b.presence.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("leave voice channels: %w", err))
	}
	b.cancel()
	b.jobs.StopAll()
	if err := b.dg.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close session: %w", err))
	}
	return errors.Join(errs...)
}

func (b *Bot) isGuildBlacklisted(guildID string) bool {
	return slices.Contains(b.cfg.DiscordGuildBlacklist, guildID)
}

func (b *Bot) leaveGuild(guildID string) {
	b.log.Info().Str("guild", guildID).Msg("leaving blacklisted guild")
	if err := b.dg.GuildLeave(guildID); err != nil {
		b.log.Error().Err(err).Str("guild", guildID).Msg("failed to leave guild")
	}
}

// appID returns the bot's application ID, fetching from Discord if not cached in State.
func (b *Bot) appID() (string, error) {
	if u := b.dg.State.User; u != nil && u.ID != "" {
		return u.ID, nil
	}
	u, err := b.dg.User("@me")
	if err != nil {
		return "", fmt.Errorf("failed to fetch bot user: %w", err)
	}
	return u.ID, nil
}
