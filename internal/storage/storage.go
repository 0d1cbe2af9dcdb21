// /internal/storage/storage.go
package storage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/keshon/soundboard-stats/internal/config"
	"github.com/keshon/soundboard-stats/internal/soundboard"
	"github.com/keshon/soundboard-stats/internal/storage/filestore"
	"github.com/keshon/soundboard-stats/internal/storage/postgres"
)

// Storage is an open usage store plus the function that releases it.
type Storage struct {
	soundboard.Store
	close func() error
}

// Close releases the underlying driver.
func (s *Storage) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Open connects the driver selected by cfg.StorageDriver.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Storage, error) {
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, cfg.Database, log)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info().Str("driver", cfg.StorageDriver).Msg("usage store ready")
		return &Storage{
			Store: postgres.New(pool),
			close: func() error { pool.Close(); return nil },
		}, nil

	case config.DriverFile:
		fs, err := filestore.New(cfg.StoragePath, cfg.StorageSaveInterval)
		if err != nil {
			return nil, err
		}
		log.Info().Str("driver", cfg.StorageDriver).Str("path", cfg.StoragePath).Msg("usage store ready")
		return &Storage{Store: fs, close: fs.Close}, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}
