// /internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverFile     = "file"
)

type Config struct {
	DiscordToken          string        `env:"DISCORD_TOKEN,required,notEmpty"`
	CommandPrefix         string        `env:"COMMAND_PREFIX" envDefault:"!"`
	InitSlashCommands     bool          `env:"INIT_SLASH_COMMANDS" envDefault:"true"`
	DiscordGuildBlacklist []string      `env:"DISCORD_GUILD_BLACKLIST" envSeparator:","`
	VoiceAutoJoin         bool          `env:"VOICE_AUTO_JOIN" envDefault:"true"`
	VoiceLeaveDelay       time.Duration `env:"VOICE_LEAVE_DELAY" envDefault:"5s"`
	VoiceJoinTimeout      time.Duration `env:"VOICE_JOIN_TIMEOUT" envDefault:"15s"`
	CatalogFetchTimeout   time.Duration `env:"CATALOG_FETCH_TIMEOUT" envDefault:"10s"`
	CatalogWarmupWorkers  int           `env:"CATALOG_WARMUP_WORKERS" envDefault:"4"`

	StorageDriver       string        `env:"STORAGE_DRIVER" envDefault:"postgres"`
	StoragePath         string        `env:"STORAGE_PATH" envDefault:"datastore.json"`
	StorageSaveInterval time.Duration `env:"STORAGE_SAVE_INTERVAL" envDefault:"5s"`

	Database DatabaseConfig
	Log      LogConfig

	MetricsAddr string `env:"METRICS_ADDR"`
}

// DatabaseConfig holds PostgreSQL settings. DSN wins over the DB_* parts.
type DatabaseConfig struct {
	DSN             string `env:"DATABASE_DSN"`
	User            string `env:"DB_USER"`
	Password        string `env:"DB_PASSWORD"`
	Host            string `env:"DB_HOST" envDefault:"localhost"`
	Port            int    `env:"DB_PORT" envDefault:"5432"`
	Name            string `env:"DB_NAME"`
	MaxConns        int32  `env:"DATABASE_MAX_CONNS" envDefault:"10"`
	MinConns        int32  `env:"DATABASE_MIN_CONNS" envDefault:"1"`
	ConnectAttempts int    `env:"DATABASE_CONNECT_ATTEMPTS" envDefault:"5"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"console"`
	File   string `env:"LOG_FILE"`
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = cfg.Database.BuildDSN()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// BuildDSN assembles a postgres URL from the DB_* parts. It returns "" when
// no database name is configured.
func (d DatabaseConfig) BuildDSN() string {
	if d.Name == "" {
		return ""
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:   "/" + d.Name,
	}
	if d.User != "" {
		if d.Password != "" {
			u.User = url.UserPassword(d.User, d.Password)
		} else {
			u.User = url.User(d.User)
		}
	}
	return u.String()
}

func (c *Config) Validate() error {
	var errs []error

	switch c.StorageDriver {
	case DriverPostgres:
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("postgres driver needs DATABASE_DSN or DB_NAME"))
		}
		if c.Database.ConnectAttempts < 1 {
			errs = append(errs, errors.New("DATABASE_CONNECT_ATTEMPTS must be at least 1"))
		}
	case DriverFile:
		if c.StoragePath == "" {
			errs = append(errs, errors.New("file driver needs STORAGE_PATH"))
		}
		if c.StorageSaveInterval <= 0 {
			errs = append(errs, errors.New("STORAGE_SAVE_INTERVAL must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver))
	}

	if c.VoiceLeaveDelay <= 0 {
		errs = append(errs, errors.New("VOICE_LEAVE_DELAY must be positive"))
	}
	if c.VoiceJoinTimeout <= 0 {
		errs = append(errs, errors.New("VOICE_JOIN_TIMEOUT must be positive"))
	}
	if c.CatalogFetchTimeout <= 0 {
		errs = append(errs, errors.New("CATALOG_FETCH_TIMEOUT must be positive"))
	}
	if c.CatalogWarmupWorkers <= 0 {
		errs = append(errs, errors.New("CATALOG_WARMUP_WORKERS must be positive"))
	}
	if c.CommandPrefix == "" {
		errs = append(errs, errors.New("COMMAND_PREFIX must not be empty"))
	}

	return errors.Join(errs...)
}
