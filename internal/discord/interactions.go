package discord

import (
	"context"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// interactionReplier answers a slash command that was acknowledged with a deferred
// response: the first reply fills in the deferred message, later ones are followups.
type interactionReplier struct {
	dg *discordgo.Session
	ia *discordgo.Interaction

	mu      sync.Mutex
	replied bool
}

func newInteractionReplier(dg *discordgo.Session, ia *discordgo.Interaction) *interactionReplier {
	return &interactionReplier{dg: dg, ia: ia}
}

// Defer acknowledges the interaction. Discord drops interactions not acknowledged
// within three seconds, and joins or fetches can take longer.
func (r *interactionReplier) Defer() error {
	return r.dg.InteractionRespond(r.ia, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
}

func (r *interactionReplier) Reply(ctx context.Context, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.replied {
		if _, err := r.dg.InteractionResponseEdit(r.ia, &discordgo.WebhookEdit{Content: &content}, discordgo.WithContext(ctx)); err != nil {
			return err
		}
		r.replied = true
		return nil
	}
	_, err := r.dg.FollowupMessageCreate(r.ia, true, &discordgo.WebhookParams{Content: content}, discordgo.WithContext(ctx))
	return err
}
