package command

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/soundboard-stats/internal/presence"
	"github.com/keshon/soundboard-stats/internal/soundboard"
	"github.com/keshon/soundboard-stats/pkg/cmd"
)

type presenceMock struct {
	JoinFunc     func(ctx context.Context, guildID, channelID string) (bool, error)
	LeaveFunc    func(ctx context.Context, guildID string) error
	SnapshotFunc func(guildID string) (presence.Record, bool)
}

func (m *presenceMock) Join(ctx context.Context, guildID, channelID string) (bool, error) {
	return m.JoinFunc(ctx, guildID, channelID)
}

func (m *presenceMock) Leave(ctx context.Context, guildID string) error {
	return m.LeaveFunc(ctx, guildID)
}

func (m *presenceMock) Snapshot(guildID string) (presence.Record, bool) {
	if m.SnapshotFunc == nil {
		return presence.Record{GuildID: guildID}, false
	}
	return m.SnapshotFunc(guildID)
}

type catalogMock struct {
	RefreshFunc func(ctx context.Context, guildID string) ([]soundboard.Entry, error)
	EntriesFunc func(guildID string) ([]soundboard.Entry, bool)

	refreshes int
}

func (m *catalogMock) Refresh(ctx context.Context, guildID string) ([]soundboard.Entry, error) {
	m.refreshes++
	if m.RefreshFunc == nil {
		return nil, nil
	}
	return m.RefreshFunc(ctx, guildID)
}

func (m *catalogMock) Entries(guildID string) ([]soundboard.Entry, bool) {
	if m.EntriesFunc == nil {
		return nil, false
	}
	return m.EntriesFunc(guildID)
}

type storeMock struct {
	ListFunc func(ctx context.Context, guildID string) ([]soundboard.UsageRecord, error)
}

func (m *storeMock) Increment(context.Context, string, string, string, string, bool) (soundboard.UsageRecord, error) {
	panic("storeMock.Increment: not expected")
}

func (m *storeMock) List(ctx context.Context, guildID string) ([]soundboard.UsageRecord, error) {
	return m.ListFunc(ctx, guildID)
}

func (m *storeMock) Count(context.Context, string, string) (int64, error) {
	panic("storeMock.Count: not expected")
}

type replies struct {
	mu   sync.Mutex
	msgs []string
}

func (r *replies) reply(_ context.Context, content string) error {
	r.mu.Lock()
	r.msgs = append(r.msgs, content)
	r.mu.Unlock()
	return nil
}

func (r *replies) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.msgs) == 0 {
		return ""
	}
	return r.msgs[len(r.msgs)-1]
}

func run(t *testing.T, c cmd.Command, req *Request) (*replies, error) {
	t.Helper()
	r := &replies{}
	req.Reply = r.reply
	err := c.Run(context.Background(), &cmd.Invocation{Data: req})
	return r, err
}

func TestAll_NamesAndSlashDefinitions(t *testing.T) {
	var names []string
	for _, c := range All(Deps{}) {
		names = append(names, c.Name())
		sp, ok := c.(SlashProvider)
		require.True(t, ok, c.Name())
		def := sp.SlashDefinition()
		assert.Equal(t, c.Name(), def.Name)
		assert.NotEmpty(t, def.Description)
	}
	assert.Equal(t, []string{"join", "leave", "soundstats", "refreshsounds", "soundboardinfo", "ping", "help"}, names)
}

func TestRequestFrom_WrongData(t *testing.T) {
	_, err := RequestFrom(&cmd.Invocation{Data: "nope"})
	assert.ErrorIs(t, err, ErrWrongData)
}

func TestJoin_NotInVoice(t *testing.T) {
	c := &JoinCommand{deps: Deps{Catalog: &catalogMock{}, Presence: &presenceMock{}}}

	r, err := run(t, c, &Request{GuildID: "g1"})
	require.NoError(t, err)
	assert.Equal(t, "You need to be in a voice channel first!", r.last())
}

func TestJoin_RefreshesThenJoins(t *testing.T) {
	cat := &catalogMock{RefreshFunc: func(context.Context, string) ([]soundboard.Entry, error) {
		return nil, soundboard.ErrCatalogFetch
	}}
	var joinedChannel string
	pres := &presenceMock{JoinFunc: func(_ context.Context, _, channelID string) (bool, error) {
		joinedChannel = channelID
		return true, nil
	}}
	c := &JoinCommand{deps: Deps{Catalog: cat, Presence: pres}}

	r, err := run(t, c, &Request{GuildID: "g1", VoiceChannelID: "c1", VoiceChannelName: "General"})
	require.NoError(t, err)
	assert.Equal(t, 1, cat.refreshes)
	assert.Equal(t, "c1", joinedChannel)
	assert.Equal(t, "Joined General!", r.last())
}

func TestJoin_AlreadyConnected(t *testing.T) {
	pres := &presenceMock{JoinFunc: func(context.Context, string, string) (bool, error) { return false, nil }}
	c := &JoinCommand{deps: Deps{Catalog: &catalogMock{}, Presence: pres}}

	r, err := run(t, c, &Request{GuildID: "g1", VoiceChannelID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, "Already in <#c1>!", r.last())
}

func TestJoin_Failure(t *testing.T) {
	pres := &presenceMock{JoinFunc: func(context.Context, string, string) (bool, error) {
		return true, presence.ErrConnect
	}}
	c := &JoinCommand{deps: Deps{Catalog: &catalogMock{}, Presence: pres}}

	r, err := run(t, c, &Request{GuildID: "g1", VoiceChannelID: "c1"})
	require.ErrorIs(t, err, presence.ErrConnect)
	assert.Equal(t, "Failed to join the voice channel.", r.last())
}

func TestLeave(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		reply   string
		wantErr bool
	}{
		{"connected", nil, "Left the voice channel!", false},
		{"not connected", presence.ErrNotConnected, "I'm not in a voice channel!", false},
		{"teardown failed", errors.New("ws closed"), "Failed to leave the voice channel cleanly.", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pres := &presenceMock{LeaveFunc: func(context.Context, string) error { return tt.err }}
			r, err := run(t, &LeaveCommand{deps: Deps{Presence: pres}}, &Request{GuildID: "g1"})
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.reply, r.last())
		})
	}
}

func TestSoundStats_Render(t *testing.T) {
	store := &storeMock{ListFunc: func(context.Context, string) ([]soundboard.UsageRecord, error) {
		return []soundboard.UsageRecord{
			{SoundName: "Airhorn", Emoji: "📯", UsageCount: 9, IsCustom: true},
			{SoundName: "Unknown Sound (abc)", UsageCount: 1},
		}, nil
	}}

	r, err := run(t, &SoundStatsCommand{deps: Deps{Store: store}}, &Request{GuildID: "g1"})
	require.NoError(t, err)
	assert.Equal(t, "**Soundboard Usage Statistics:**\n"+
		"1. 📯 \"Airhorn\" - Used 9 times (Custom)\n"+
		"2. \"Unknown Sound (abc)\" - Used 1 time (Default)", r.last())
}

func TestSoundStats_NamesKeepTheirQuotes(t *testing.T) {
	store := &storeMock{ListFunc: func(context.Context, string) ([]soundboard.UsageRecord, error) {
		return []soundboard.UsageRecord{{SoundName: `Say "hi" \o/`, UsageCount: 2}}, nil
	}}

	r, err := run(t, &SoundStatsCommand{deps: Deps{Store: store}}, &Request{GuildID: "g1"})
	require.NoError(t, err)
	assert.Equal(t, "**Soundboard Usage Statistics:**\n"+
		`1. "Say "hi" \o/" - Used 2 times (Default)`, r.last())
}

func TestSoundStats_EmptyAndFailure(t *testing.T) {
	empty := &storeMock{ListFunc: func(context.Context, string) ([]soundboard.UsageRecord, error) { return nil, nil }}
	r, err := run(t, &SoundStatsCommand{deps: Deps{Store: empty}}, &Request{GuildID: "g1"})
	require.NoError(t, err)
	assert.Equal(t, "No soundboard statistics available yet!", r.last())

	broken := &storeMock{ListFunc: func(context.Context, string) ([]soundboard.UsageRecord, error) {
		return nil, soundboard.ErrPersistence
	}}
	r, err = run(t, &SoundStatsCommand{deps: Deps{Store: broken}}, &Request{GuildID: "g1"})
	require.ErrorIs(t, err, soundboard.ErrPersistence)
	assert.Equal(t, "Failed to load soundboard statistics.", r.last())
}

func TestSoundStats_TruncatedToMessageLimit(t *testing.T) {
	records := make([]soundboard.UsageRecord, 200)
	for i := range records {
		records[i] = soundboard.UsageRecord{SoundName: strings.Repeat("x", 30), UsageCount: int64(200 - i)}
	}
	store := &storeMock{ListFunc: func(context.Context, string) ([]soundboard.UsageRecord, error) { return records, nil }}

	r, err := run(t, &SoundStatsCommand{deps: Deps{Store: store}}, &Request{GuildID: "g1"})
	require.NoError(t, err)
	assert.LessOrEqual(t, len([]rune(r.last())), messageLimit)
	assert.True(t, strings.HasPrefix(r.last(), "**Soundboard Usage Statistics:**\n1."))
}

func TestRefreshSounds_DistinguishesFailureFromEmpty(t *testing.T) {
	failing := &catalogMock{RefreshFunc: func(context.Context, string) ([]soundboard.Entry, error) {
		return nil, soundboard.ErrCatalogFetch
	}}
	r, err := run(t, &RefreshSoundsCommand{deps: Deps{Catalog: failing}}, &Request{GuildID: "g1"})
	require.ErrorIs(t, err, soundboard.ErrCatalogFetch)
	assert.Equal(t, []string{"Refreshing sound list...", "Failed to refresh sound list."}, r.msgs)

	empty := &catalogMock{EntriesFunc: func(string) ([]soundboard.Entry, bool) { return nil, true }}
	r, err = run(t, &RefreshSoundsCommand{deps: Deps{Catalog: empty}}, &Request{GuildID: "g1"})
	require.NoError(t, err)
	assert.Equal(t, "No sounds found in this server.", r.last())
}

func TestRefreshSounds_ListsSounds(t *testing.T) {
	entries := []soundboard.Entry{
		{SoundID: "1", Name: "Airhorn", Emoji: &soundboard.Emoji{Name: "📯"}, IsCustom: true},
		{SoundID: "2", Name: "Cricket"},
	}
	cat := &catalogMock{
		RefreshFunc: func(context.Context, string) ([]soundboard.Entry, error) { return entries, nil },
		EntriesFunc: func(string) ([]soundboard.Entry, bool) { return entries, true },
	}

	r, err := run(t, &RefreshSoundsCommand{deps: Deps{Catalog: cat}}, &Request{GuildID: "g1"})
	require.NoError(t, err)
	assert.Equal(t, "Found 2 sounds:\n📯 Airhorn (Custom)\nCricket (Default)", r.last())
}

func TestSoundboardInfo(t *testing.T) {
	played := time.Date(2025, 3, 4, 5, 6, 0, 0, time.UTC)
	cat := &catalogMock{EntriesFunc: func(string) ([]soundboard.Entry, bool) {
		return []soundboard.Entry{{SoundID: "1"}, {SoundID: "2"}}, true
	}}
	store := &storeMock{ListFunc: func(context.Context, string) ([]soundboard.UsageRecord, error) {
		return []soundboard.UsageRecord{
			{SoundName: "Airhorn", UsageCount: 4, LastUsedAt: played.Add(-time.Hour)},
			{SoundName: "Moo", UsageCount: 1, LastUsedAt: played},
		}, nil
	}}
	pres := &presenceMock{SnapshotFunc: func(g string) (presence.Record, bool) {
		return presence.Record{GuildID: g, ChannelID: "c1", State: presence.Connected, Epoch: 3}, true
	}}

	r, err := run(t, &SoundboardInfoCommand{deps: Deps{Catalog: cat, Store: store, Presence: pres}}, &Request{
		GuildID:        "g1",
		GuildName:      "Test Guild",
		BotPermissions: []string{"Connect", "ViewChannel"},
	})
	require.NoError(t, err)

	out := r.last()
	assert.Contains(t, out, "Guild Name: Test Guild")
	assert.Contains(t, out, "Bot Permissions: Connect, ViewChannel")
	assert.Contains(t, out, "Stored Sounds: 2")
	assert.Contains(t, out, "Tracked Statistics: 2")
	assert.Contains(t, out, `Last Played: "Moo" at 2025-03-04 05:06 UTC`)
	assert.Contains(t, out, "Voice: connected in <#c1> (epoch 3)")
	assert.Zero(t, cat.refreshes)
}

func TestSoundboardInfo_LoadsCatalogWhenMissing(t *testing.T) {
	cat := &catalogMock{}
	store := &storeMock{ListFunc: func(context.Context, string) ([]soundboard.UsageRecord, error) { return nil, nil }}

	r, err := run(t, &SoundboardInfoCommand{deps: Deps{Catalog: cat, Store: store, Presence: &presenceMock{}}}, &Request{GuildID: "g1"})
	require.NoError(t, err)
	assert.Contains(t, r.last(), "Stored Sounds: not loaded")
	assert.Contains(t, r.last(), "Voice: idle")
	assert.Equal(t, 1, cat.refreshes)
}

func TestPing(t *testing.T) {
	c := &PingCommand{deps: Deps{Latency: func() time.Duration { return 42 * time.Millisecond }}}
	r, err := run(t, c, &Request{GuildID: "g1"})
	require.NoError(t, err)
	assert.Equal(t, "🏓 Pong! 42ms", r.last())
}

func TestHelp_ListsCommandsSorted(t *testing.T) {
	var help cmd.Command
	for _, c := range All(Deps{}) {
		if c.Name() == "help" {
			help = c
		}
	}
	require.NotNil(t, help)

	r, err := run(t, help, &Request{GuildID: "g1"})
	require.NoError(t, err)
	lines := strings.Split(r.last(), "\n")
	require.Len(t, lines, 8)
	assert.Equal(t, "**Available commands:**", lines[0])
	assert.Equal(t, "`help` - Get a list of available commands", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "`join` - "))
	assert.True(t, strings.HasPrefix(lines[7], "`soundstats` - "))
}
