// Package config provides YAML-based configuration loading for duel2048,
// with environment overrides and board presets.
package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalid is returned by Validate for out-of-range settings.
var ErrInvalid = errors.New("config: invalid")

// Config is the full duel2048 configuration.
type Config struct {
	Game    GameConfig    `yaml:"game"`
	Sync    SyncConfig    `yaml:"sync"`
	Network NetworkConfig `yaml:"network"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// GameConfig defines the board and rules.
type GameConfig struct {
	Preset        Preset  `yaml:"preset" env:"DUEL_PRESET"`
	Size          int     `yaml:"size" env:"DUEL_GRID_SIZE"`
	WinValue      int     `yaml:"win_value" env:"DUEL_WIN_VALUE"`
	FourThreshold float64 `yaml:"four_threshold" env:"DUEL_FOUR_THRESHOLD"` // seed at or above spawns a 4
}

// SyncConfig defines how long a mover waits for the peer's seed half.
type SyncConfig struct {
	SeedTimeout time.Duration `yaml:"seed_timeout" env:"DUEL_SEED_TIMEOUT"`
	MaxResends  int           `yaml:"max_resends" env:"DUEL_MAX_RESENDS"`
}

// NetworkConfig defines the websocket peer link and the SSH lobby server.
type NetworkConfig struct {
	Listen       string        `yaml:"listen" env:"DUEL_LISTEN"`
	Path         string        `yaml:"path" env:"DUEL_WS_PATH"`
	SSHAddr      string        `yaml:"ssh_addr" env:"DUEL_SSH_ADDR"`
	HostKeyPath  string        `yaml:"host_key_path" env:"DUEL_HOST_KEY_PATH"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"DUEL_IDLE_TIMEOUT"`
	LobbyTTL     time.Duration `yaml:"lobby_ttl" env:"DUEL_LOBBY_TTL"`
	PingInterval time.Duration `yaml:"ping_interval" env:"DUEL_PING_INTERVAL"`
}

// StorageConfig defines where scores, results and saved games live.
// An empty RedisAddr keeps saved games in SQLite.
type StorageConfig struct {
	DBPath        string        `yaml:"db_path" env:"DUEL_DB_PATH"`
	RedisAddr     string        `yaml:"redis_addr" env:"DUEL_REDIS_ADDR"`
	RedisPassword string        `yaml:"redis_password" env:"DUEL_REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redis_db" env:"DUEL_REDIS_DB"`
	StateTTL      time.Duration `yaml:"state_ttl" env:"DUEL_STATE_TTL"`
}

// LogConfig defines logger output.
type LogConfig struct {
	Level  string `yaml:"level" env:"DUEL_LOG_LEVEL"`
	File   string `yaml:"file" env:"DUEL_LOG_FILE"`
	Format string `yaml:"format" env:"DUEL_LOG_FORMAT"` // "text" or "json"
}

// Validate checks that the configuration can run a game.
func (c Config) Validate() error {
	switch {
	case c.Game.Size < 2 || c.Game.Size > 8:
		return fmt.Errorf("%w: game.size %d outside 2..8", ErrInvalid, c.Game.Size)
	case c.Game.WinValue < 4 || c.Game.WinValue&(c.Game.WinValue-1) != 0:
		return fmt.Errorf("%w: game.win_value %d is not a power of two", ErrInvalid, c.Game.WinValue)
	case c.Game.FourThreshold <= 0 || c.Game.FourThreshold > 1:
		return fmt.Errorf("%w: game.four_threshold %v outside (0,1]", ErrInvalid, c.Game.FourThreshold)
	case c.Sync.SeedTimeout <= 0:
		return fmt.Errorf("%w: sync.seed_timeout must be positive", ErrInvalid)
	case c.Sync.MaxResends < 0:
		return fmt.Errorf("%w: sync.max_resends must not be negative", ErrInvalid)
	case c.Log.Format != "" && c.Log.Format != "text" && c.Log.Format != "json":
		return fmt.Errorf("%w: log.format %q", ErrInvalid, c.Log.Format)
	}
	return nil
}
