package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/soundboard-stats/internal/command"
	"github.com/keshon/soundboard-stats/pkg/cmd"
)

// registerCommands replaces the guild's slash commands with the registry's, which
// also drops obsolete ones. Unchanged definitions are not sent again.
func (b *Bot) registerCommands(guildID string) error {
	defs := commandDefinitions(b.registry)
	hash := hashCommands(defs)

	b.mu.Lock()
	current := b.slashHashes[guildID]
	b.mu.Unlock()
	if current == hash {
		return nil
	}

	appID, err := b.appID()
	if err != nil {
		return err
	}
	if _, err := b.dg.ApplicationCommandBulkOverwrite(appID, guildID, defs); err != nil {
		return fmt.Errorf("overwrite commands in guild %s: %w", guildID, err)
	}

	b.mu.Lock()
	b.slashHashes[guildID] = hash
	b.mu.Unlock()

	b.log.Info().Str("guild", guildID).Int("commands", len(defs)).Msg("slash commands registered")
	return nil
}

// commandDefinitions collects the slash definitions of all registered commands.
func commandDefinitions(r *cmd.Registry) []*discordgo.ApplicationCommand {
	var defs []*discordgo.ApplicationCommand
	for _, c := range r.GetAll() {
		if def := commandDefinition(c); def != nil {
			defs = append(defs, def)
		}
	}
	return defs
}

// commandDefinition extracts the ApplicationCommand definition from a registered command,
// walking through middleware wrappers via cmd.Root.
func commandDefinition(c cmd.Command) *discordgo.ApplicationCommand {
	slash, ok := cmd.Root(c).(command.SlashProvider)
	if !ok {
		return nil
	}
	def := slash.SlashDefinition()
	if def != nil && def.Type == 0 {
		def.Type = discordgo.ChatApplicationCommand
	}
	return def
}
