package command

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/soundboard-stats/pkg/cmd"
)

type JoinCommand struct{ deps Deps }

func (c *JoinCommand) Name() string        { return "join" }
func (c *JoinCommand) Description() string { return "Join your voice channel and count soundboard plays" }

func (c *JoinCommand) SlashDefinition() *discordgo.ApplicationCommand { return slashDefinition(c) }

func (c *JoinCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	req, err := RequestFrom(inv)
	if err != nil {
		return err
	}
	if req.VoiceChannelID == "" {
		return req.Reply(ctx, "You need to be in a voice channel first!")
	}

	// A failed fetch is logged by the catalog and retried on the next unknown sound.
	_, _ = c.deps.Catalog.Refresh(ctx, req.GuildID)

	joined, err := c.deps.Presence.Join(ctx, req.GuildID, req.VoiceChannelID)
	if err != nil {
		_ = req.Reply(ctx, "Failed to join the voice channel.")
		return err
	}
	if !joined {
		return req.Reply(ctx, fmt.Sprintf("Already in <#%s>!", req.VoiceChannelID))
	}
	return req.Reply(ctx, fmt.Sprintf("Joined %s!", channelLabel(req)))
}

func channelLabel(req *Request) string {
	if req.VoiceChannelName != "" {
		return req.VoiceChannelName
	}
	return "<#" + req.VoiceChannelID + ">"
}
