package discord

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/soundboard-stats/internal/command"
	"github.com/keshon/soundboard-stats/internal/presence"
	"github.com/keshon/soundboard-stats/internal/soundboard"
	"github.com/keshon/soundboard-stats/pkg/cmd"
	"github.com/keshon/soundboard-stats/pkg/util"
)

const warmupJob = "catalog-warmup"

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	ids := make([]string, 0, len(r.Guilds))
	for _, g := range r.Guilds {
		if b.isGuildBlacklisted(g.ID) {
			go b.leaveGuild(g.ID)
			continue
		}
		ids = append(ids, g.ID)
	}
	b.log.Info().Str("user", r.User.Username).Int("guilds", len(ids)).Msg("discord bot is running")
	b.startWarmup(ids)
}

// startWarmup fills every guild's catalog in the background. A reconnect while a
// warm-up is still running does not start a second one.
func (b *Bot) startWarmup(guildIDs []string) {
	err := b.jobs.StartAsync(b.ctx, warmupJob, func(ctx context.Context) error {
		return util.Parallel(ctx, guildIDs, b.cfg.CatalogWarmupWorkers, func(ctx context.Context, guildID string) error {
			// failures are logged by the catalog and retried on the next unknown sound
			_, _ = b.catalog.Refresh(ctx, guildID)
			return nil
		})
	})
	if err != nil {
		b.log.Debug().Err(err).Msg("catalog warm-up skipped")
	}
}

func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	if g.Guild == nil || g.Unavailable {
		return
	}
	if b.isGuildBlacklisted(g.ID) {
		go b.leaveGuild(g.ID)
		return
	}

	b.checkPermissions(s, g.Guild)

	if b.cfg.InitSlashCommands {
		go func() {
			if err := b.registerCommands(g.ID); err != nil {
				b.log.Error().Err(err).Str("guild", g.ID).Msg("failed to register slash commands")
			}
		}()
	}

	// guilds joined after startup are not covered by the warm-up
	if _, ok := b.catalog.Entries(g.ID); !ok && !b.warmupRunning() {
		go func() { _, _ = b.catalog.Refresh(b.ctx, g.ID) }()
	}
}

func (b *Bot) warmupRunning() bool {
	for _, name := range b.jobs.List() {
		if name == warmupJob {
			return true
		}
	}
	return false
}

func (b *Bot) checkPermissions(s *discordgo.Session, g *discordgo.Guild) {
	if s.State.User == nil {
		return
	}
	me, err := s.State.Member(g.ID, s.State.User.ID)
	if err != nil {
		return
	}
	s.State.RLock()
	perms := guildPermissions(g, me)
	s.State.RUnlock()

	if missing := missingPermissions(perms); len(missing) > 0 {
		b.log.Warn().Str("guild", g.ID).Str("name", g.Name).Strs("missing", missing).Msg("missing permissions")
		return
	}
	b.log.Info().Str("guild", g.ID).Str("name", g.Name).Msg("all required permissions present")
}

func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	if vs.VoiceState == nil {
		return
	}
	if s.State.User != nil && vs.UserID == s.State.User.ID {
		b.presence.ObserveSelf(vs.GuildID, vs.ChannelID)
		return
	}

	var before string
	if vs.BeforeUpdate != nil {
		before = vs.BeforeUpdate.ChannelID
	}
	b.presence.Observe(presence.Transition{
		GuildID: vs.GuildID,
		UserID:  vs.UserID,
		IsBot:   isBotVoiceState(s.State, vs.GuildID, vs.VoiceState),
		Before:  before,
		After:   vs.ChannelID,
	})
}

// onEvent picks the soundboard effect out of the raw event stream.
func (b *Bot) onEvent(s *discordgo.Session, e *discordgo.Event) {
	if e.Type != eventVoiceChannelEffectSend {
		return
	}
	ev, err := decodeEffect(e.RawData, time.Now())
	if err != nil {
		b.log.Warn().Err(err).Msg("malformed voice channel effect")
		return
	}
	go func() {
		if _, err := b.ingestor.Ingest(b.ctx, ev); err != nil && !errors.Is(err, soundboard.ErrNotSoundEffect) {
			b.log.Debug().Err(err).Str("guild", ev.GuildID).Msg("effect not counted")
		}
	}()
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	name, args, ok := parseCommand(m.Content, b.cfg.CommandPrefix)
	if !ok {
		return
	}
	c := b.registry.Get(name)
	if c == nil {
		return
	}

	ref := m.Reference()
	req := b.newRequest(m.GuildID, m.ChannelID, m.Author, func(ctx context.Context, content string) error {
		_, err := s.ChannelMessageSendReply(m.ChannelID, content, ref, discordgo.WithContext(ctx))
		return err
	})
	go b.execute(c, args, req)
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	name := i.ApplicationCommandData().Name
	c := b.registry.Get(name)
	if c == nil {
		b.log.Warn().Str("command", name).Msg("unknown slash command")
		return
	}

	user := i.User
	if i.Member != nil {
		user = i.Member.User
	}
	replier := newInteractionReplier(s, i.Interaction)
	req := b.newRequest(i.GuildID, i.ChannelID, user, replier.Reply)

	go func() {
		if err := replier.Defer(); err != nil {
			b.log.Error().Err(err).Str("command", name).Msg("failed to acknowledge interaction")
			return
		}
		b.execute(c, nil, req)
	}()
}

// execute runs c; outcome and duration are logged by the command middleware.
func (b *Bot) execute(c cmd.Command, args []string, req *command.Request) {
	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()
	_ = c.Run(ctx, &cmd.Invocation{Args: args, Data: req})
}

// newRequest describes the caller from the state cache: guild name, the caller's
// voice channel and the bot's guild permissions.
func (b *Bot) newRequest(guildID, channelID string, user *discordgo.User, reply func(context.Context, string) error) *command.Request {
	req := &command.Request{
		GuildID:   guildID,
		ChannelID: channelID,
		Reply:     reply,
	}
	if user != nil {
		req.UserID = user.ID
		req.Username = user.Username
	}
	if guildID == "" {
		return req
	}

	st := b.dg.State
	g, err := st.Guild(guildID)
	if err != nil {
		return req
	}
	req.GuildName = g.Name

	if st.User != nil {
		if me, err := st.Member(guildID, st.User.ID); err == nil {
			st.RLock()
			perms := guildPermissions(g, me)
			st.RUnlock()
			req.BotPermissions = permissionList(perms)
		}
	}

	if vs, err := st.VoiceState(guildID, req.UserID); err == nil && vs.ChannelID != "" {
		req.VoiceChannelID = vs.ChannelID
		if ch, err := st.Channel(vs.ChannelID); err == nil {
			req.VoiceChannelName = ch.Name
		}
	}
	return req
}

// parseCommand splits "!name arg1 arg2" into its lower-cased name and arguments.
func parseCommand(content, prefix string) (string, []string, bool) {
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", nil, false
	}
	fields := strings.Fields(strings.TrimPrefix(content, prefix))
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}
