package soundboard

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/keshon/soundboard-stats/internal/telemetry"
)

const defaultFetchTimeout = 10 * time.Second

// Catalog caches every guild's sound list. Lookups never do I/O; Refresh replaces
// a guild's set wholesale and shares one in-flight fetch between concurrent callers.
type Catalog struct {
	source  Source
	timeout time.Duration
	log     zerolog.Logger

	mu     sync.RWMutex
	guilds map[string]map[string]Entry

	inflight singleflight.Group
}

// NewCatalog creates an empty catalog backed by source. A non-positive timeout
// falls back to 10s.
func NewCatalog(source Source, timeout time.Duration, log zerolog.Logger) *Catalog {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Catalog{
		source:  source,
		timeout: timeout,
		log:     log.With().Str("component", "catalog").Logger(),
		guilds:  make(map[string]map[string]Entry),
	}
}

// Resolve looks soundID up in the cached set of guildID.
func (c *Catalog) Resolve(guildID, soundID string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.guilds[guildID][soundID]
	return e, ok
}

// Entries returns the cached entries of a guild sorted by name. The bool reports
// whether the guild has been populated at all.
func (c *Catalog) Entries(guildID string) ([]Entry, bool) {
	c.mu.RLock()
	set, ok := c.guilds[guildID]
	out := make([]Entry, 0, len(set))
	for _, e := range set {
		out = append(out, e)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].SoundID < out[j].SoundID
		}
		return out[i].Name < out[j].Name
	})
	return out, ok
}

// Refresh fetches the current sound list of guildID and replaces the cached set.
//
// On failure the guild keeps its previous set, or gets an empty one if it had none,
// and the returned error wraps ErrCatalogFetch.
func (c *Catalog) Refresh(ctx context.Context, guildID string) ([]Entry, error) {
	ch := c.inflight.DoChan(guildID, func() (any, error) {
		return c.fetch(context.WithoutCancel(ctx), guildID)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("refresh catalog %s: %w", guildID, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		set := res.Val.(map[string]Entry)
		return sortedEntries(set), nil
	}
}

func (c *Catalog) fetch(ctx context.Context, guildID string) (map[string]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	sounds, err := c.source.FetchSounds(ctx, guildID)
	if err != nil {
		c.mu.Lock()
		if _, ok := c.guilds[guildID]; !ok {
			c.guilds[guildID] = map[string]Entry{}
		}
		c.mu.Unlock()

		telemetry.CatalogRefreshes.WithLabelValues("error").Inc()
		c.log.Warn().Err(err).Str("guild", guildID).Msg("catalog fetch failed")
		return nil, fmt.Errorf("%w: guild %s: %v", ErrCatalogFetch, guildID, err)
	}

	set := make(map[string]Entry, len(sounds))
	for _, s := range sounds {
		set[s.ID] = toEntry(guildID, s)
	}

	c.mu.Lock()
	c.guilds[guildID] = set
	c.mu.Unlock()

	telemetry.CatalogRefreshes.WithLabelValues("ok").Inc()
	c.log.Debug().Str("guild", guildID).Int("sounds", len(set)).Msg("catalog refreshed")
	return set, nil
}

func toEntry(guildID string, s Sound) Entry {
	e := Entry{
		SoundID:  s.ID,
		Name:     s.Name,
		Volume:   s.Volume,
		IsCustom: s.OwnerGuildID != "" && s.OwnerGuildID == guildID,
	}
	if s.EmojiName != "" || s.EmojiID != "" {
		e.Emoji = &Emoji{Name: s.EmojiName, ID: s.EmojiID}
	}
	return e
}

func sortedEntries(set map[string]Entry) []Entry {
	out := make([]Entry, 0, len(set))
	for _, e := range set {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SoundID < out[j].SoundID })
	return out
}
