package soundboard

import (
	"context"
	"sort"
	"sync"
	"time"
)

// sourceMock is a moq-style mock of Source.
type sourceMock struct {
	FetchSoundsFunc func(ctx context.Context, guildID string) ([]Sound, error)

	mu    sync.Mutex
	calls []string
}

func (m *sourceMock) FetchSounds(ctx context.Context, guildID string) ([]Sound, error) {
	m.mu.Lock()
	m.calls = append(m.calls, guildID)
	m.mu.Unlock()
	if m.FetchSoundsFunc == nil {
		panic("sourceMock.FetchSoundsFunc: method is nil but FetchSounds was just called")
	}
	return m.FetchSoundsFunc(ctx, guildID)
}

func (m *sourceMock) FetchSoundsCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func staticSource(sounds ...Sound) *sourceMock {
	return &sourceMock{FetchSoundsFunc: func(context.Context, string) ([]Sound, error) {
		return sounds, nil
	}}
}

// memStore is an in-memory Store with the same ordering rules as the real drivers.
type memStore struct {
	mu   sync.Mutex
	seq  int64
	rows map[[2]string]*memRow
	err  error
}

type memRow struct {
	seq int64
	rec UsageRecord
}

func newMemStore() *memStore {
	return &memStore{rows: map[[2]string]*memRow{}}
}

func (s *memStore) Increment(_ context.Context, guildID, soundID, name, emoji string, isCustom bool) (UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return UsageRecord{}, s.err
	}
	key := [2]string{guildID, soundID}
	row, ok := s.rows[key]
	now := time.Now()
	if !ok {
		s.seq++
		row = &memRow{seq: s.seq, rec: UsageRecord{GuildID: guildID, SoundID: soundID, CreatedAt: now}}
		s.rows[key] = row
	}
	row.rec.SoundName = name
	row.rec.Emoji = emoji
	row.rec.IsCustom = isCustom
	row.rec.UsageCount++
	row.rec.LastUsedAt = now
	return row.rec, nil
}

func (s *memStore) List(_ context.Context, guildID string) ([]UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []*memRow
	for k, r := range s.rows {
		if k[0] == guildID {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].rec.UsageCount != rows[j].rec.UsageCount {
			return rows[i].rec.UsageCount > rows[j].rec.UsageCount
		}
		return rows[i].seq < rows[j].seq
	})
	out := make([]UsageRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.rec)
	}
	return out, nil
}

func (s *memStore) Count(_ context.Context, guildID, soundID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rows[[2]string{guildID, soundID}]; ok {
		return r.rec.UsageCount, nil
	}
	return 0, nil
}
