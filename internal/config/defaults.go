package config

import (
	_ "embed"
	"time"
)

//go:embed defaults/duel2048.yaml
var defaultYAML []byte

// DefaultConfig returns the built-in configuration. It matches the embedded
// defaults/duel2048.yaml.
func DefaultConfig() Config {
	return Config{
		Game: GameConfig{
			Size:          4,
			WinValue:      2048,
			FourThreshold: 0.9,
		},
		Sync: SyncConfig{
			SeedTimeout: 3 * time.Second,
			MaxResends:  5,
		},
		Network: NetworkConfig{
			Listen:       ":8048",
			Path:         "/duel",
			SSHAddr:      ":2048",
			HostKeyPath:  ".ssh/duel2048_ed25519",
			IdleTimeout:  30 * time.Minute,
			LobbyTTL:     10 * time.Minute,
			PingInterval: 15 * time.Second,
		},
		Storage: StorageConfig{
			DBPath:   "~/.duel2048/duel.db",
			StateTTL: 24 * time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultYAML returns the embedded default configuration file.
func DefaultYAML() []byte {
	return defaultYAML
}
