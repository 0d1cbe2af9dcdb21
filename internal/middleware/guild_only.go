package middleware

import (
	"context"

	"github.com/keshon/soundboard-stats/internal/command"
	"github.com/keshon/soundboard-stats/pkg/cmd"
)

// WithGuildOnly refuses to run a command outside a guild.
func WithGuildOnly() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			req, err := command.RequestFrom(inv)
			if err != nil {
				return err
			}
			if req.GuildID == "" {
				return req.Reply(ctx, "This command must be used in a server.")
			}
			return c.Run(ctx, inv)
		})
	}
}
