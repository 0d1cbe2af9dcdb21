// Package presence keeps at most one voice channel membership per guild.
//
// The Manager joins when members show up, leaves after a debounced emptiness check
// and serves explicit join and leave requests. Every guild has an epoch counter: each
// scheduled emptiness check captures it and does nothing if it moved on by the time
// the check fires.
package presence

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrConnect wraps a failed connection establishment. The guild is Idle afterwards.
	ErrConnect = errors.New("voice connection failed")
	// ErrConnectionClosed is returned by Connection.Close when the connection is
	// already gone. The manager treats it as a successful teardown.
	ErrConnectionClosed = errors.New("voice connection already closed")
	// ErrNotConnected is returned by Leave for a guild without a connection.
	ErrNotConnected = errors.New("not connected to a voice channel")
	// ErrClosed is returned by Join after the manager has been closed.
	ErrClosed = errors.New("presence manager closed")
)

type State int

const (
	Idle State = iota
	Joining
	Connected
	Leaving
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Joining:
		return "joining"
	case Connected:
		return "connected"
	case Leaving:
		return "leaving"
	}
	return "unknown"
}

// Transition is one member's voice state change. An empty channel ID means
// "not in voice".
type Transition struct {
	GuildID string
	UserID  string
	IsBot   bool
	Before  string
	After   string
}

// Joined reports whether the member entered a channel.
func (t Transition) Joined() bool { return t.After != "" && t.After != t.Before }

// Left reports whether the member left a channel.
func (t Transition) Left() bool { return t.Before != "" && t.Before != t.After }

// Dialer establishes a voice connection.
type Dialer interface {
	Dial(ctx context.Context, guildID, channelID string) (Connection, error)
}

// Connection is an established voice channel membership.
type Connection interface {
	ChannelID() string
	Close() error
}

// Occupancy reports the number of non-bot members in a voice channel right now.
type Occupancy interface {
	HumanCount(guildID, channelID string) int
}

// Record is a point-in-time view of a guild's connection.
type Record struct {
	GuildID   string
	ChannelID string
	State     State
	Epoch     uint64
}

// Config tunes a Manager.
type Config struct {
	// AutoJoin joins the channel of a member who enters voice while the guild has
	// no connection.
	AutoJoin bool
	// LeaveDelay is the debounce window of the emptiness check.
	LeaveDelay time.Duration
	// JoinTimeout bounds connection establishment.
	JoinTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.LeaveDelay <= 0 {
		c.LeaveDelay = 5 * time.Second
	}
	if c.JoinTimeout <= 0 {
		c.JoinTimeout = 15 * time.Second
	}
	return c
}
