package command

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/soundboard-stats/pkg/cmd"
)

type PingCommand struct{ deps Deps }

func (c *PingCommand) Name() string        { return "ping" }
func (c *PingCommand) Description() string { return "Check bot latency" }

func (c *PingCommand) SlashDefinition() *discordgo.ApplicationCommand { return slashDefinition(c) }

func (c *PingCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	req, err := RequestFrom(inv)
	if err != nil {
		return err
	}
	if c.deps.Latency == nil {
		return req.Reply(ctx, "🏓 Pong!")
	}
	return req.Reply(ctx, fmt.Sprintf("🏓 Pong! %dms", c.deps.Latency().Milliseconds()))
}
