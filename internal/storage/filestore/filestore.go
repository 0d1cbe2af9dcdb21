// /internal/storage/filestore/filestore.go
package filestore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/keshon/datastore"

	"github.com/keshon/soundboard-stats/internal/soundboard"
)

const (
	keyPrefix = "guild:"

	// DefaultSaveInterval is used when New is given no positive interval.
	DefaultSaveInterval = 5 * time.Second
)

// Store keeps usage counters in a single JSON file, one key per guild.
// It is meant for small single-process deployments.
//
// An increment is committed to the datastore's memory and reaches the file on
// the next autosave or on Close, so a crash loses at most one save interval.
type Store struct {
	ds     *datastore.DataStore
	cancel context.CancelFunc
	mu     sync.Mutex
	now    func() time.Time
}

var _ soundboard.Store = (*Store)(nil)

type guildRecord struct {
	Seq    int64                 `json:"seq"`
	Sounds map[string]soundEntry `json:"sounds"`
}

type soundEntry struct {
	Seq        int64     `json:"seq"`
	SoundName  string    `json:"sound_name"`
	Emoji      string    `json:"emoji,omitempty"`
	IsCustom   bool      `json:"is_custom"`
	UsageCount int64     `json:"usage_count"`
	LastUsed   time.Time `json:"last_used"`
	CreatedAt  time.Time `json:"created_at"`
}

// New opens (or creates) filePath and starts flushing it every saveInterval.
func New(filePath string, saveInterval time.Duration) (*Store, error) {
	if saveInterval <= 0 {
		saveInterval = DefaultSaveInterval
	}

	// the autosave goroutine runs until Close cancels it
	ctx, cancel := context.WithCancel(context.Background())
	ds, err := datastore.New(ctx, filePath, datastore.WithSaveInterval(saveInterval))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: open %s: %v", soundboard.ErrPersistence, filePath, err)
	}
	return &Store{ds: ds, cancel: cancel, now: time.Now}, nil
}

// Close stops the autosave loop and writes the file one last time. It is safe
// to call more than once.
func (s *Store) Close() error {
	s.cancel()
	if err := s.ds.Close(); err != nil {
		return fmt.Errorf("%w: close: %v", soundboard.ErrPersistence, err)
	}
	return nil
}

func (s *Store) Increment(ctx context.Context, guildID, soundID, name, emoji string, isCustom bool) (soundboard.UsageRecord, error) {
	if err := ctx.Err(); err != nil {
		return soundboard.UsageRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// rec is decoded fresh from the datastore, so edits stay local until Set
	rec, err := s.load(guildID)
	if err != nil {
		return soundboard.UsageRecord{}, err
	}

	now := s.now().UTC()
	entry, ok := rec.Sounds[soundID]
	if !ok {
		rec.Seq++
		entry = soundEntry{Seq: rec.Seq, CreatedAt: now}
	}
	entry.SoundName = name
	entry.Emoji = emoji
	entry.IsCustom = isCustom
	entry.UsageCount++
	entry.LastUsed = now
	rec.Sounds[soundID] = entry

	// Set either stores the whole record or leaves the previous one untouched.
	if err := s.ds.Set(keyPrefix+guildID, rec); err != nil {
		return soundboard.UsageRecord{}, fmt.Errorf("%w: save %s/%s: %v", soundboard.ErrPersistence, guildID, soundID, err)
	}
	return entry.toRecord(guildID, soundID), nil
}

func (s *Store) List(ctx context.Context, guildID string) ([]soundboard.UsageRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	rec, err := s.load(guildID)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(rec.Sounds))
	for id := range rec.Sounds {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := rec.Sounds[ids[i]], rec.Sounds[ids[j]]
		if a.UsageCount != b.UsageCount {
			return a.UsageCount > b.UsageCount
		}
		return a.Seq < b.Seq
	})

	out := make([]soundboard.UsageRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, rec.Sounds[id].toRecord(guildID, id))
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context, guildID, soundID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load(guildID)
	if err != nil {
		return 0, err
	}
	return rec.Sounds[soundID].UsageCount, nil
}

// load returns a private copy of the guild record.
func (s *Store) load(guildID string) (guildRecord, error) {
	var rec guildRecord
	if _, err := s.ds.Get(keyPrefix+guildID, &rec); err != nil {
		return guildRecord{}, fmt.Errorf("%w: load guild %s: %v", soundboard.ErrPersistence, guildID, err)
	}
	if rec.Sounds == nil {
		rec.Sounds = map[string]soundEntry{}
	}
	return rec, nil
}

func (e soundEntry) toRecord(guildID, soundID string) soundboard.UsageRecord {
	return soundboard.UsageRecord{
		GuildID:    guildID,
		SoundID:    soundID,
		SoundName:  e.SoundName,
		Emoji:      e.Emoji,
		IsCustom:   e.IsCustom,
		UsageCount: e.UsageCount,
		LastUsedAt: e.LastUsed,
		CreatedAt:  e.CreatedAt,
	}
}
