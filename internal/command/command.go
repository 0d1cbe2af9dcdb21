// /internal/command/command.go
package command

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/soundboard-stats/internal/presence"
	"github.com/keshon/soundboard-stats/internal/soundboard"
	"github.com/keshon/soundboard-stats/pkg/cmd"
)

// messageLimit is Discord's maximum message length.
const messageLimit = 2000

var ErrWrongData = errors.New("invocation data is not a *command.Request")

// Request is what the Discord adapter passes in cmd.Invocation.Data for both
// prefixed text commands and slash commands.
type Request struct {
	GuildID   string
	GuildName string
	ChannelID string
	UserID    string
	Username  string

	// VoiceChannelID is the caller's current voice channel, "" when not in voice.
	VoiceChannelID   string
	VoiceChannelName string

	// BotPermissions lists the bot's permission names in this guild.
	BotPermissions []string

	Reply func(ctx context.Context, content string) error
}

// RequestFrom extracts the Request carried by inv.
func RequestFrom(inv *cmd.Invocation) (*Request, error) {
	req, ok := inv.Data.(*Request)
	if !ok || req == nil {
		return nil, ErrWrongData
	}
	return req, nil
}

// SlashProvider is implemented by commands that register a slash command.
type SlashProvider interface {
	SlashDefinition() *discordgo.ApplicationCommand
}

// Presence is the part of presence.Manager the commands use.
type Presence interface {
	Join(ctx context.Context, guildID, channelID string) (bool, error)
	Leave(ctx context.Context, guildID string) error
	Snapshot(guildID string) (presence.Record, bool)
}

// Catalog is the part of soundboard.Catalog the commands use.
type Catalog interface {
	Refresh(ctx context.Context, guildID string) ([]soundboard.Entry, error)
	Entries(guildID string) ([]soundboard.Entry, bool)
}

// Deps are the collaborators shared by all commands.
type Deps struct {
	Catalog  Catalog
	Store    soundboard.Store
	Presence Presence
	// Latency reports the gateway heartbeat latency.
	Latency func() time.Duration
}

// All returns every command bound to deps.
func All(deps Deps) []cmd.Command {
	help := &HelpCommand{}
	help.commands = []cmd.Command{
		&JoinCommand{deps: deps},
		&LeaveCommand{deps: deps},
		&SoundStatsCommand{deps: deps},
		&RefreshSoundsCommand{deps: deps},
		&SoundboardInfoCommand{deps: deps},
		&PingCommand{deps: deps},
		help,
	}
	return help.commands
}

func slashDefinition(c cmd.Command) *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Type:        discordgo.ChatApplicationCommand,
	}
}

// joinLines joins lines with newlines, dropping trailing lines that would push
// the message past Discord's length limit.
func joinLines(lines []string) string {
	var b strings.Builder
	for i, line := range lines {
		extra := utf8.RuneCountInString(line)
		if i > 0 {
			extra++
		}
		if utf8.RuneCountInString(b.String())+extra > messageLimit {
			break
		}
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}
	return b.String()
}

func customLabel(isCustom bool) string {
	if isCustom {
		return "(Custom)"
	}
	return "(Default)"
}
