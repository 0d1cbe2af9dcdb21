package middleware

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/keshon/soundboard-stats/internal/command"
	"github.com/keshon/soundboard-stats/pkg/cmd"
)

// WithCommandLogger logs every command run with its caller, duration and outcome.
func WithCommandLogger(log zerolog.Logger) cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			start := time.Now()
			err := c.Run(ctx, inv)

			ev := log.Info()
			if err != nil {
				ev = log.Warn().Err(err)
			}
			if req, rerr := command.RequestFrom(inv); rerr == nil {
				ev = ev.Str("guild", req.GuildID).
					Str("channel", req.ChannelID).
					Str("user", req.UserID).
					Str("username", req.Username)
			}
			ev.Str("command", c.Name()).
				Strs("args", inv.Args).
				Dur("took", time.Since(start)).
				Msg("command executed")
			return err
		})
	}
}
