package command

import (
	"context"
	"fmt"
	"sort"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/soundboard-stats/pkg/cmd"
)

// HelpCommand lists every command with its description.
type HelpCommand struct{ commands []cmd.Command }

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "Get a list of available commands" }

func (c *HelpCommand) SlashDefinition() *discordgo.ApplicationCommand { return slashDefinition(c) }

func (c *HelpCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	req, err := RequestFrom(inv)
	if err != nil {
		return err
	}

	list := make([]cmd.Command, len(c.commands))
	copy(list, c.commands)
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })

	lines := []string{"**Available commands:**"}
	for _, sub := range list {
		lines = append(lines, fmt.Sprintf("`%s` - %s", sub.Name(), sub.Description()))
	}
	return req.Reply(ctx, joinLines(lines))
}
