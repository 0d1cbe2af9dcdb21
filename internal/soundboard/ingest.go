package soundboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/keshon/soundboard-stats/internal/telemetry"
)

// Ingestor commits one counter update per soundboard effect.
//
// Delivery is at-least-once: the gateway may redeliver a notification and there is
// no idempotency key to tell a replay from a second play, so replays are counted.
type Ingestor struct {
	catalog *Catalog
	store   Store
	log     zerolog.Logger
}

// NewIngestor wires an ingestor to its catalog and store.
func NewIngestor(catalog *Catalog, store Store, log zerolog.Logger) *Ingestor {
	return &Ingestor{
		catalog: catalog,
		store:   store,
		log:     log.With().Str("component", "ingest").Logger(),
	}
}

// Ingest resolves the effect's sound, refreshing the catalog once on a miss, and
// increments its counter. A catalog failure degrades to the fallback name; a store
// failure is returned and nothing is counted.
func (in *Ingestor) Ingest(ctx context.Context, ev Effect) (UsageRecord, error) {
	if ev.SoundID == "" || ev.SoundID == "0" {
		telemetry.EffectsIngested.WithLabelValues("ignored").Inc()
		return UsageRecord{}, ErrNotSoundEffect
	}
	start := time.Now()

	log := in.log.With().
		Str("event_id", uuid.NewString()).
		Str("guild", ev.GuildID).
		Str("sound", ev.SoundID).
		Str("user", ev.UserID).
		Logger()

	entry, ok := in.catalog.Resolve(ev.GuildID, ev.SoundID)
	if !ok {
		if _, err := in.catalog.Refresh(ctx, ev.GuildID); err != nil {
			if !errors.Is(err, ErrCatalogFetch) {
				log.Warn().Err(err).Msg("catalog refresh aborted")
			}
		}
		entry, ok = in.catalog.Resolve(ev.GuildID, ev.SoundID)
	}

	name := UnknownSoundName(ev.SoundID)
	emoji := ev.Emoji.String()
	isCustom := false
	if ok {
		name = entry.Name
		if entry.Emoji != nil {
			emoji = entry.Emoji.String()
		}
		isCustom = entry.IsCustom
	}

	rec, err := in.store.Increment(ctx, ev.GuildID, ev.SoundID, name, emoji, isCustom)
	if err != nil {
		telemetry.EffectsIngested.WithLabelValues("error").Inc()
		log.Error().Err(err).Msg("usage commit failed")
		return UsageRecord{}, fmt.Errorf("ingest %s/%s: %w", ev.GuildID, ev.SoundID, err)
	}

	telemetry.EffectsIngested.WithLabelValues("ok").Inc()
	telemetry.Observe(telemetry.IngestDuration, start)
	log.Info().
		Str("name", rec.SoundName).
		Bool("resolved", ok).
		Int64("count", rec.UsageCount).
		Msg("soundboard effect counted")
	return rec, nil
}
