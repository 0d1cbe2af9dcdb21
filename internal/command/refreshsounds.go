package command

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/soundboard-stats/internal/soundboard"
	"github.com/keshon/soundboard-stats/pkg/cmd"
)

type RefreshSoundsCommand struct{ deps Deps }

func (c *RefreshSoundsCommand) Name() string        { return "refreshsounds" }
func (c *RefreshSoundsCommand) Description() string { return "Reload this server's soundboard sound list" }

func (c *RefreshSoundsCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return slashDefinition(c)
}

func (c *RefreshSoundsCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	req, err := RequestFrom(inv)
	if err != nil {
		return err
	}
	if err := req.Reply(ctx, "Refreshing sound list..."); err != nil {
		return err
	}

	if _, err := c.deps.Catalog.Refresh(ctx, req.GuildID); err != nil {
		_ = req.Reply(ctx, "Failed to refresh sound list.")
		return err
	}
	entries, _ := c.deps.Catalog.Entries(req.GuildID)
	if len(entries) == 0 {
		return req.Reply(ctx, "No sounds found in this server.")
	}
	return req.Reply(ctx, renderSounds(entries))
}

func renderSounds(entries []soundboard.Entry) string {
	lines := make([]string, 0, len(entries)+1)
	lines = append(lines, fmt.Sprintf("Found %d sounds:", len(entries)))
	for _, e := range entries {
		line := e.Name + " " + customLabel(e.IsCustom)
		if s := e.Emoji.String(); s != "" {
			line = s + " " + line
		}
		lines = append(lines, line)
	}
	return joinLines(lines)
}
