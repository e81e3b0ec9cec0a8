package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr   string     `env:"HTTP_ADDR" envDefault:":8080"`
	APIBaseURL string     `env:"API_BASE_URL" envDefault:"https://api.cyclescene.cc"`
	CityCode   string     `env:"CITY_CODE" envDefault:"pdx"`
	DBPath     string     `env:"DB_PATH" envDefault:"data/cyclescene.db"`
	PrefsPath  string     `env:"PREFS_PATH" envDefault:"data/prefs.toml"`
	StaticDir  string     `env:"STATIC_DIR"`
	LogLevel   slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`

	SyncInterval    time.Duration `env:"SYNC_INTERVAL" envDefault:"6h"`
	PeriodicSync    bool          `env:"PERIODIC_SYNC" envDefault:"true"`
	SyncMaxAttempts int           `env:"SYNC_MAX_ATTEMPTS" envDefault:"3"`

	TileHosts           []string      `env:"TILE_HOSTS" envDefault:"basemaps.cartocdn.com" envSeparator:","`
	TileCacheMaxEntries int           `env:"TILE_CACHE_MAX_ENTRIES" envDefault:"5000"`
	TileCacheMaxAge     time.Duration `env:"TILE_CACHE_MAX_AGE" envDefault:"8760h"`
	TileBaseURL         string        `env:"TILE_BASE_URL" envDefault:"https://a.basemaps.cartocdn.com"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.SyncMaxAttempts < 1 {
		return nil, fmt.Errorf("SYNC_MAX_ATTEMPTS must be at least 1, got %d", cfg.SyncMaxAttempts)
	}
	return &cfg, nil
}
