// Package soundboard tracks how often each soundboard sound is played per guild.
//
// A Catalog caches the guild's sound list fetched from a Source, an Ingestor turns
// raw effect notifications into counter updates, and a Store persists the counters.
package soundboard

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCatalogFetch marks a failed catalog fetch. It is never fatal for ingestion.
	ErrCatalogFetch = errors.New("soundboard catalog fetch failed")
	// ErrPersistence marks a failed read or write against the usage store.
	ErrPersistence = errors.New("soundboard usage store failed")
	// ErrNotSoundEffect is returned for voice channel effects that carry no sound.
	ErrNotSoundEffect = errors.New("effect carries no sound id")
)

// Emoji is the symbol attached to a sound or an effect. ID is set for guild emoji only.
type Emoji struct {
	Name string `json:"name"`
	ID   string `json:"id,omitempty"`
}

// String renders the emoji the way Discord expects it inside message content.
func (e *Emoji) String() string {
	if e == nil {
		return ""
	}
	if e.ID != "" {
		name := e.Name
		if name == "" {
			name = "_"
		}
		return "<:" + name + ":" + e.ID + ">"
	}
	return e.Name
}

// Sound is one item reported by a catalog Source.
type Sound struct {
	ID           string
	Name         string
	EmojiName    string
	EmojiID      string
	Volume       float64
	OwnerGuildID string
}

// Entry is the cached display metadata of a sound within one guild.
type Entry struct {
	SoundID  string
	Name     string
	Emoji    *Emoji
	Volume   float64
	IsCustom bool
}

// Effect is a single "sound played" notification from the gateway.
type Effect struct {
	GuildID   string
	ChannelID string
	UserID    string
	SoundID   string
	Emoji     *Emoji
	Timestamp time.Time
}

// UsageRecord is one durable counter row keyed by (GuildID, SoundID).
type UsageRecord struct {
	GuildID    string
	SoundID    string
	SoundName  string
	Emoji      string
	IsCustom   bool
	UsageCount int64
	LastUsedAt time.Time
	CreatedAt  time.Time
}

// Source fetches the full current sound list of a guild.
type Source interface {
	FetchSounds(ctx context.Context, guildID string) ([]Sound, error)
}

// Store is the durable usage counter.
//
// Increment must be a single atomic step: insert with count 1 or add exactly 1 and
// overwrite name, emoji and isCustom with the given values.
// List returns records by UsageCount descending, ties in insertion order.
// Count returns 0 for unknown keys.
type Store interface {
	Increment(ctx context.Context, guildID, soundID, name, emoji string, isCustom bool) (UsageRecord, error)
	List(ctx context.Context, guildID string) ([]UsageRecord, error)
	Count(ctx context.Context, guildID, soundID string) (int64, error)
}

// UnknownSoundName is the stable display name for sounds missing from the catalog.
// Repeated plays of the same unresolved sound keep aggregating on one row.
func UnknownSoundName(soundID string) string {
	return "Unknown Sound (" + soundID + ")"
}
