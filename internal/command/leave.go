package command

import (
	"context"
	"errors"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/soundboard-stats/internal/presence"
	"github.com/keshon/soundboard-stats/pkg/cmd"
)

type LeaveCommand struct{ deps Deps }

func (c *LeaveCommand) Name() string        { return "leave" }
func (c *LeaveCommand) Description() string { return "Leave the voice channel" }

func (c *LeaveCommand) SlashDefinition() *discordgo.ApplicationCommand { return slashDefinition(c) }

func (c *LeaveCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	req, err := RequestFrom(inv)
	if err != nil {
		return err
	}

	err = c.deps.Presence.Leave(ctx, req.GuildID)
	switch {
	case errors.Is(err, presence.ErrNotConnected):
		return req.Reply(ctx, "I'm not in a voice channel!")
	case err != nil:
		_ = req.Reply(ctx, "Failed to leave the voice channel cleanly.")
		return err
	}
	return req.Reply(ctx, "Left the voice channel!")
}
