package presence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/keshon/soundboard-stats/internal/telemetry"
)

// Manager owns the per-guild connection records.
type Manager struct {
	dialer    Dialer
	occupancy Occupancy
	cfg       Config
	log       zerolog.Logger

	afterFunc func(time.Duration, func())
	spawn     func(func())

	mu     sync.Mutex
	guilds map[string]*guild
	closed bool
}

// guild outlives its record so the epoch keeps growing across reconnects.
type guild struct {
	epoch uint64
	rec   *record
}

type record struct {
	channelID string
	state     State
	conn      Connection
	joined    chan struct{} // closed when the dial finishes
	left      chan struct{} // closed when teardown finishes
}

func NewManager(dialer Dialer, occupancy Occupancy, cfg Config, log zerolog.Logger) *Manager {
	return &Manager{
		dialer:    dialer,
		occupancy: occupancy,
		cfg:       cfg.withDefaults(),
		log:       log.With().Str("component", "presence").Logger(),
		afterFunc: func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		spawn:     func(f func()) { go f() },
		guilds:    make(map[string]*guild),
	}
}

// Observe applies a member's voice state change. It never blocks on I/O:
// an auto join is dialled in the background.
func (m *Manager) Observe(t Transition) {
	if t.IsBot {
		return
	}

	var (
		dial     *record
		schedule bool
		epoch    uint64
	)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	g := m.guild(t.GuildID)
	rec := g.rec

	if t.Joined() {
		switch {
		case rec == nil && m.cfg.AutoJoin:
			dial = m.startJoin(g, t.After)
			rec = dial
		case rec != nil && rec.state == Connected && rec.channelID == t.After:
			// pending emptiness checks are obsolete
			g.epoch++
		}
	}

	if t.Left() && rec != nil && rec.state == Connected && rec.channelID == t.Before {
		if m.occupancy.HumanCount(t.GuildID, rec.channelID) == 0 {
			g.epoch++
			epoch = g.epoch
			schedule = true
		}
	}
	m.mu.Unlock()

	if dial != nil {
		m.log.Info().Str("guild", t.GuildID).Str("channel", t.After).Str("user", t.UserID).Msg("member joined voice, connecting")
		m.spawn(func() {
			if err := m.dial(context.Background(), t.GuildID, dial); err != nil {
				m.log.Warn().Err(err).Str("guild", t.GuildID).Msg("auto join failed")
			}
		})
	}
	if schedule {
		m.scheduleCheck(t.GuildID, epoch)
	}
}

// ObserveSelf applies a voice state change of the bot itself. Losing the channel
// while Connected means the connection was dropped from outside; a different
// channel means the bot was moved.
func (m *Manager) ObserveSelf(guildID, channelID string) {
	m.mu.Lock()
	g, ok := m.guilds[guildID]
	if !ok || g.rec == nil || g.rec.state != Connected || g.rec.channelID == channelID {
		m.mu.Unlock()
		return
	}
	rec := g.rec
	g.epoch++

	if channelID == "" {
		g.rec = nil
		m.mu.Unlock()

		telemetry.PresenceTransitions.WithLabelValues(Idle.String()).Inc()
		m.log.Info().Str("guild", guildID).Str("channel", rec.channelID).Msg("voice connection dropped externally")
		m.spawn(func() {
			if err := rec.conn.Close(); err != nil && !errors.Is(err, ErrConnectionClosed) {
				m.log.Debug().Err(err).Str("guild", guildID).Msg("release dropped connection")
			}
		})
		return
	}

	from := rec.channelID
	rec.channelID = channelID
	empty := m.occupancy.HumanCount(guildID, channelID) == 0
	epoch := g.epoch
	m.mu.Unlock()

	m.log.Info().Str("guild", guildID).Str("from", from).Str("to", channelID).Msg("moved to another voice channel")
	if empty {
		m.scheduleCheck(guildID, epoch)
	}
}

// Join connects to channelID and blocks until Connected or failed. It returns
// false without dialling when the guild is already Joining or Connected to that
// channel; a Connected guild has its pending emptiness checks cancelled. A
// connection to another channel is torn down first.
func (m *Manager) Join(ctx context.Context, guildID, channelID string) (bool, error) {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return false, ErrClosed
		}
		g := m.guild(guildID)
		rec := g.rec

		switch {
		case rec == nil:
			rec = m.startJoin(g, channelID)
			m.mu.Unlock()
			return true, m.dial(ctx, guildID, rec)

		case rec.state == Leaving:
			done := rec.left
			m.mu.Unlock()
			if err := wait(ctx, done); err != nil {
				return false, err
			}

		case rec.channelID == channelID:
			if rec.state == Connected {
				g.epoch++
			}
			m.mu.Unlock()
			return false, nil

		case rec.state == Joining:
			done := rec.joined
			m.mu.Unlock()
			if err := wait(ctx, done); err != nil {
				return false, err
			}

		default:
			m.beginLeave(g, rec)
			m.mu.Unlock()
			m.log.Info().Str("guild", guildID).Str("from", rec.channelID).Str("to", channelID).Msg("switching voice channel")
			if err := m.finishLeave(guildID, rec); err != nil {
				m.log.Warn().Err(err).Str("guild", guildID).Msg("teardown before switch failed")
			}
		}
	}
}

// Leave disconnects the guild immediately, without debounce. A join in progress
// is allowed to finish first.
func (m *Manager) Leave(ctx context.Context, guildID string) error {
	for {
		m.mu.Lock()
		g, ok := m.guilds[guildID]
		if !ok || g.rec == nil {
			m.mu.Unlock()
			return ErrNotConnected
		}
		rec := g.rec

		switch rec.state {
		case Joining:
			done := rec.joined
			m.mu.Unlock()
			if err := wait(ctx, done); err != nil {
				return err
			}
			continue
		case Leaving:
			done := rec.left
			m.mu.Unlock()
			return wait(ctx, done)
		}

		m.beginLeave(g, rec)
		m.mu.Unlock()
		return m.finishLeave(guildID, rec)
	}
}

// Snapshot returns the guild's current record. The bool is false for Idle guilds.
func (m *Manager) Snapshot(guildID string) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.guilds[guildID]
	if !ok || g.rec == nil {
		return Record{GuildID: guildID, State: Idle}, false
	}
	return Record{
		GuildID:   guildID,
		ChannelID: g.rec.channelID,
		State:     g.rec.state,
		Epoch:     g.epoch,
	}, true
}

// Close stops auto joins and leaves every guild.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	ids := make([]string, 0, len(m.guilds))
	for id, g := range m.guilds {
		if g.rec != nil {
			ids = append(ids, id)
		}
	}
	m.mu.Unlock()
	sort.Strings(ids)

	var errs []error
	for _, id := range ids {
		if err := m.Leave(ctx, id); err != nil && !errors.Is(err, ErrNotConnected) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// guild must be called with m.mu held.
func (m *Manager) guild(guildID string) *guild {
	g, ok := m.guilds[guildID]
	if !ok {
		g = &guild{}
		m.guilds[guildID] = g
	}
	return g
}

// startJoin must be called with m.mu held.
func (m *Manager) startJoin(g *guild, channelID string) *record {
	g.epoch++
	rec := &record{
		channelID: channelID,
		state:     Joining,
		joined:    make(chan struct{}),
	}
	g.rec = rec
	telemetry.PresenceTransitions.WithLabelValues(Joining.String()).Inc()
	return rec
}

func (m *Manager) dial(ctx context.Context, guildID string, rec *record) error {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.JoinTimeout)
	defer cancel()

	conn, err := m.dialer.Dial(ctx, guildID, rec.channelID)

	m.mu.Lock()
	g := m.guild(guildID)
	if err != nil {
		if g.rec == rec {
			g.rec = nil
		}
		close(rec.joined)
		m.mu.Unlock()

		telemetry.PresenceTransitions.WithLabelValues(Idle.String()).Inc()
		return fmt.Errorf("%w: guild %s channel %s: %v", ErrConnect, guildID, rec.channelID, err)
	}
	if g.rec != rec {
		close(rec.joined)
		m.mu.Unlock()
		_ = conn.Close()
		return fmt.Errorf("%w: guild %s channel %s: superseded", ErrConnect, guildID, rec.channelID)
	}

	rec.conn = conn
	rec.state = Connected
	close(rec.joined)
	empty := m.occupancy.HumanCount(guildID, rec.channelID) == 0
	var epoch uint64
	if empty {
		g.epoch++
		epoch = g.epoch
	}
	m.mu.Unlock()

	telemetry.PresenceTransitions.WithLabelValues(Connected.String()).Inc()
	m.log.Info().Str("guild", guildID).Str("channel", rec.channelID).Msg("voice connected")
	if empty {
		m.scheduleCheck(guildID, epoch)
	}
	return nil
}

// beginLeave must be called with m.mu held and rec Connected.
func (m *Manager) beginLeave(g *guild, rec *record) {
	g.epoch++
	rec.state = Leaving
	rec.left = make(chan struct{})
	telemetry.PresenceTransitions.WithLabelValues(Leaving.String()).Inc()
}

func (m *Manager) finishLeave(guildID string, rec *record) error {
	err := rec.conn.Close()

	m.mu.Lock()
	if g := m.guilds[guildID]; g != nil && g.rec == rec {
		g.rec = nil
	}
	close(rec.left)
	m.mu.Unlock()

	telemetry.PresenceTransitions.WithLabelValues(Idle.String()).Inc()
	if err != nil && !errors.Is(err, ErrConnectionClosed) {
		return fmt.Errorf("close voice connection in guild %s: %w", guildID, err)
	}
	m.log.Info().Str("guild", guildID).Str("channel", rec.channelID).Msg("voice disconnected")
	return nil
}

func (m *Manager) scheduleCheck(guildID string, epoch uint64) {
	m.log.Debug().Str("guild", guildID).Uint64("epoch", epoch).Dur("delay", m.cfg.LeaveDelay).Msg("channel empty, leave check scheduled")
	m.afterFunc(m.cfg.LeaveDelay, func() { m.checkEmpty(guildID, epoch) })
}

// checkEmpty is the debounced emptiness check. It reads the channel's occupancy
// at fire time and is a no-op once the guild's epoch has moved past epoch.
func (m *Manager) checkEmpty(guildID string, epoch uint64) {
	m.mu.Lock()
	g, ok := m.guilds[guildID]
	if !ok || g.epoch != epoch || g.rec == nil || g.rec.state != Connected {
		m.mu.Unlock()
		telemetry.StaleLeaveChecks.Inc()
		m.log.Debug().Str("guild", guildID).Uint64("epoch", epoch).Msg("stale leave check ignored")
		return
	}
	rec := g.rec
	if n := m.occupancy.HumanCount(guildID, rec.channelID); n > 0 {
		m.mu.Unlock()
		m.log.Debug().Str("guild", guildID).Int("members", n).Msg("channel refilled, staying")
		return
	}
	m.beginLeave(g, rec)
	m.mu.Unlock()

	if err := m.finishLeave(guildID, rec); err != nil {
		m.log.Warn().Err(err).Str("guild", guildID).Msg("leave after empty channel failed")
	}
}

func wait(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
