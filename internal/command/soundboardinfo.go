package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/soundboard-stats/internal/soundboard"
	"github.com/keshon/soundboard-stats/pkg/cmd"
	"github.com/keshon/soundboard-stats/pkg/util"
)

type SoundboardInfoCommand struct{ deps Deps }

func (c *SoundboardInfoCommand) Name() string { return "soundboardinfo" }
func (c *SoundboardInfoCommand) Description() string {
	return "Show soundboard diagnostics for this server"
}

func (c *SoundboardInfoCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return slashDefinition(c)
}

func (c *SoundboardInfoCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	req, err := RequestFrom(inv)
	if err != nil {
		return err
	}

	entries, populated := c.deps.Catalog.Entries(req.GuildID)
	records, listErr := c.deps.Store.List(ctx, req.GuildID)

	lines := []string{
		"**Soundboard Debug Information:**",
		"Guild ID: " + req.GuildID,
		"Guild Name: " + req.GuildName,
		"Bot Permissions: " + strings.Join(req.BotPermissions, ", "),
	}

	if populated {
		lines = append(lines, fmt.Sprintf("Stored Sounds: %d", len(entries)))
	} else {
		lines = append(lines, "Stored Sounds: not loaded")
	}

	if listErr != nil {
		lines = append(lines, "Tracked Statistics: unavailable")
	} else {
		lines = append(lines, fmt.Sprintf("Tracked Statistics: %d", len(records)))
		if last, ok := lastPlayed(records); ok {
			lines = append(lines, fmt.Sprintf("Last Played: %q at %s UTC",
				last.SoundName, util.FormatDateTpl(last.LastUsedAt.UTC(), "YYYY-MM-DD hh:mm")))
		}
	}

	if rec, ok := c.deps.Presence.Snapshot(req.GuildID); ok {
		lines = append(lines, fmt.Sprintf("Voice: %s in <#%s> (epoch %d)", rec.State, rec.ChannelID, rec.Epoch))
	} else {
		lines = append(lines, "Voice: idle")
	}

	if err := req.Reply(ctx, joinLines(lines)); err != nil {
		return err
	}
	if listErr != nil {
		return listErr
	}
	if !populated {
		// Failures are logged by the catalog and leave an empty set behind.
		_, _ = c.deps.Catalog.Refresh(ctx, req.GuildID)
	}
	return nil
}

func lastPlayed(records []soundboard.UsageRecord) (soundboard.UsageRecord, bool) {
	var (
		last  soundboard.UsageRecord
		found bool
	)
	for _, r := range records {
		if r.LastUsedAt.IsZero() {
			continue
		}
		if !found || r.LastUsedAt.After(last.LastUsedAt) {
			last, found = r, true
		}
	}
	return last, found
}
