package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/soundboard-stats/internal/presence"
)

// VoiceDialer joins voice channels through the gateway session.
type VoiceDialer struct {
	dg *discordgo.Session
}

func NewVoiceDialer(dg *discordgo.Session) *VoiceDialer {
	return &VoiceDialer{dg: dg}
}

type joinResult struct {
	vc  *discordgo.VoiceConnection
	err error
}

// Dial joins channelID undeafened and muted. ChannelVoiceJoin has no context, so a
// dial abandoned by ctx is disconnected once the join call returns.
func (d *VoiceDialer) Dial(ctx context.Context, guildID, channelID string) (presence.Connection, error) {
	done := make(chan joinResult, 1)
	go func() {
		vc, err := d.dg.ChannelVoiceJoin(guildID, channelID, true, false)
		done <- joinResult{vc: vc, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			if r.vc != nil {
				_ = r.vc.Disconnect()
			}
			return nil, fmt.Errorf("join voice %s/%s: %w", guildID, channelID, r.err)
		}
		return &voiceConnection{dg: d.dg, vc: r.vc, channelID: channelID}, nil
	case <-ctx.Done():
		go func() {
			if r := <-done; r.vc != nil {
				_ = r.vc.Disconnect()
			}
		}()
		return nil, ctx.Err()
	}
}

type voiceConnection struct {
	dg        *discordgo.Session
	vc        *discordgo.VoiceConnection
	channelID string
}

func (c *voiceConnection) ChannelID() string { return c.channelID }

// Close leaves the channel. A connection the session no longer tracks was already
// dropped by the gateway; its sockets are released and ErrConnectionClosed returned.
func (c *voiceConnection) Close() error {
	c.dg.RLock()
	current := c.dg.VoiceConnections[c.vc.GuildID]
	c.dg.RUnlock()

	if current != c.vc {
		c.vc.Close()
		return presence.ErrConnectionClosed
	}
	return c.vc.Disconnect()
}

// StateOccupancy counts members in a voice channel from the session state cache.
type StateOccupancy struct {
	state *discordgo.State
}

func NewStateOccupancy(state *discordgo.State) *StateOccupancy {
	return &StateOccupancy{state: state}
}

// HumanCount returns the number of non-bot members in the channel. Members missing
// from the cache count as humans so the bot never leaves a channel it can't see.
func (o *StateOccupancy) HumanCount(guildID, channelID string) int {
	g, err := o.state.Guild(guildID)
	if err != nil {
		return 0
	}

	o.state.RLock()
	var present []*discordgo.VoiceState
	for _, vs := range g.VoiceStates {
		if vs.ChannelID == channelID {
			present = append(present, vs)
		}
	}
	o.state.RUnlock()

	n := 0
	for _, vs := range present {
		if !isBotVoiceState(o.state, guildID, vs) {
			n++
		}
	}
	return n
}

// isBotVoiceState reports whether the member behind vs is a bot, falling back to the
// member cache when the voice state carries no member.
func isBotVoiceState(state *discordgo.State, guildID string, vs *discordgo.VoiceState) bool {
	if vs.Member != nil && vs.Member.User != nil {
		return vs.Member.User.Bot
	}
	m, err := state.Member(guildID, vs.UserID)
	if err != nil || m.User == nil {
		return false
	}
	return m.User.Bot
}
