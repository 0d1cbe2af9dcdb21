package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/keshon/soundboard-stats/internal/soundboard"
)

const (
	upsertUsage = `
		INSERT INTO soundboard_stats (guild_id, sound_id, sound_name, emoji, is_custom, usage_count, last_used)
		VALUES ($1, $2, $3, $4, $5, 1, CURRENT_TIMESTAMP)
		ON CONFLICT (guild_id, sound_id)
		DO UPDATE SET
			sound_name  = EXCLUDED.sound_name,
			emoji       = EXCLUDED.emoji,
			is_custom   = EXCLUDED.is_custom,
			usage_count = soundboard_stats.usage_count + 1,
			last_used   = CURRENT_TIMESTAMP
		RETURNING guild_id, sound_id, sound_name, emoji, is_custom, usage_count, last_used, created_at`

	selectByGuild = `
		SELECT guild_id, sound_id, sound_name, emoji, is_custom, usage_count, last_used, created_at
		FROM soundboard_stats
		WHERE guild_id = $1
		ORDER BY usage_count DESC, id ASC`

	selectCount = `
		SELECT usage_count
		FROM soundboard_stats
		WHERE guild_id = $1 AND sound_id = $2`
)

// Store is the soundboard.Store backed by the soundboard_stats table.
type Store struct {
	pool *pgxpool.Pool
}

var _ soundboard.Store = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Increment is a single INSERT ... ON CONFLICT statement, so concurrent
// increments of one key serialize on the row lock and none is lost.
func (s *Store) Increment(ctx context.Context, guildID, soundID, name, emoji string, isCustom bool) (soundboard.UsageRecord, error) {
	row := s.pool.QueryRow(ctx, upsertUsage, guildID, soundID, name, nullable(emoji), isCustom)
	rec, err := scanRecord(row)
	if err != nil {
		return soundboard.UsageRecord{}, mapError(err, "increment", guildID, soundID)
	}
	return rec, nil
}

func (s *Store) List(ctx context.Context, guildID string) ([]soundboard.UsageRecord, error) {
	rows, err := s.pool.Query(ctx, selectByGuild, guildID)
	if err != nil {
		return nil, mapError(err, "list", guildID, "")
	}
	defer rows.Close()

	var out []soundboard.UsageRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, mapError(err, "list", guildID, "")
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "list", guildID, "")
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context, guildID, soundID string) (int64, error) {
	var count pgtype.Int4
	err := s.pool.QueryRow(ctx, selectCount, guildID, soundID).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, mapError(err, "count", guildID, soundID)
	}
	return int64(count.Int32), nil
}

func scanRecord(row pgx.Row) (soundboard.UsageRecord, error) {
	var (
		rec      soundboard.UsageRecord
		emoji    pgtype.Text
		isCustom pgtype.Bool
		count    pgtype.Int4
		lastUsed pgtype.Timestamptz
		created  pgtype.Timestamptz
	)
	if err := row.Scan(&rec.GuildID, &rec.SoundID, &rec.SoundName, &emoji, &isCustom, &count, &lastUsed, &created); err != nil {
		return rec, err
	}
	rec.Emoji = emoji.String
	rec.IsCustom = isCustom.Bool
	rec.UsageCount = int64(count.Int32)
	rec.LastUsedAt = lastUsed.Time
	rec.CreatedAt = created.Time
	return rec, nil
}

func nullable(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

// mapError wraps driver errors into soundboard.ErrPersistence. Context errors
// pass through unchanged so callers can still tell a cancellation apart.
func mapError(err error, op, guildID, soundID string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s %s/%s: %w", op, guildID, soundID, err)
	}
	return fmt.Errorf("%w: %s %s/%s: %v", soundboard.ErrPersistence, op, guildID, soundID, err)
}
