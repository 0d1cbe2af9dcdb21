package command

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/soundboard-stats/internal/soundboard"
	"github.com/keshon/soundboard-stats/pkg/cmd"
)

type SoundStatsCommand struct{ deps Deps }

func (c *SoundStatsCommand) Name() string        { return "soundstats" }
func (c *SoundStatsCommand) Description() string { return "Show how often each soundboard sound was played" }

func (c *SoundStatsCommand) SlashDefinition() *discordgo.ApplicationCommand { return slashDefinition(c) }

func (c *SoundStatsCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	req, err := RequestFrom(inv)
	if err != nil {
		return err
	}

	records, err := c.deps.Store.List(ctx, req.GuildID)
	if err != nil {
		_ = req.Reply(ctx, "Failed to load soundboard statistics.")
		return err
	}
	if len(records) == 0 {
		return req.Reply(ctx, "No soundboard statistics available yet!")
	}
	return req.Reply(ctx, renderStats(records))
}

func renderStats(records []soundboard.UsageRecord) string {
	lines := make([]string, 0, len(records)+1)
	lines = append(lines, "**Soundboard Usage Statistics:**")
	for i, r := range records {
		prefix := fmt.Sprintf("%d.", i+1)
		if r.Emoji != "" {
			prefix += " " + r.Emoji
		}
		lines = append(lines, fmt.Sprintf("%s \"%s\" - Used %d %s %s",
			prefix, r.SoundName, r.UsageCount, plural(r.UsageCount, "time", "times"), customLabel(r.IsCustom)))
	}
	return joinLines(lines)
}

func plural(n int64, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
