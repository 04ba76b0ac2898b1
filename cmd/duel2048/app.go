package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vovakirdan/duel2048/internal/config"
	"github.com/vovakirdan/duel2048/internal/duel"
	"github.com/vovakirdan/duel2048/internal/multiplayer"
	"github.com/vovakirdan/duel2048/internal/storage"
)

// interactiveAnnotation marks commands that draw a full-screen TUI; their
// logs go to a file unless --log-file says otherwise.
const interactiveAnnotation = "interactive"

// application holds what every command shares once flags are parsed.
type application struct {
	cfg     config.Config
	logger  *log.Logger
	logFile io.Closer

	store *storage.Store
	redis *redis.Client
}

var app application

func setup(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(flagEnvFile); err != nil {
		return err
	}
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	if flagDBPath != "" {
		cfg.Storage.DBPath = config.ExpandHome(flagDBPath)
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	if flagLogFile != "" {
		cfg.Log.File = config.ExpandHome(flagLogFile)
	}

	interactive := cmd.Annotations[interactiveAnnotation] == "true" && isTerminal()
	logger, logFile, err := newLogger(cfg.Log, interactive)
	if err != nil {
		return err
	}

	app = application{cfg: cfg, logger: logger, logFile: logFile}
	logger.Debug("config loaded", "size", cfg.Game.Size, "win_value", cfg.Game.WinValue, "db", cfg.Storage.DBPath)
	return nil
}

func teardown() {
	if app.store != nil {
		app.store.Close()
	}
	if app.redis != nil {
		app.redis.Close()
	}
	if app.logFile != nil {
		app.logFile.Close()
	}
}

// newLogger builds the process logger. Interactive sessions without a log
// file write to ~/.duel2048/duel2048.log.
func newLogger(cfg config.LogConfig, interactive bool) (*log.Logger, io.Closer, error) {
	level := log.InfoLevel
	if cfg.Level != "" {
		parsed, err := log.ParseLevel(cfg.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("config: log level: %w", err)
		}
		level = parsed
	}

	var w io.Writer = os.Stderr
	var closer io.Closer
	path := cfg.File
	if path == "" && interactive {
		path = config.ExpandHome(filepath.Join("~", ".duel2048", "duel2048.log"))
	}
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("cannot create log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("cannot open log file: %w", err)
		}
		w, closer = f, f
	}

	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          "duel2048",
		Level:           level,
	})
	if cfg.Format == "json" {
		logger.SetFormatter(log.JSONFormatter)
	}
	return logger, closer, nil
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd())) //nolint:gosec // fd fits in int
}

// openStore opens the match database once per process.
func openStore() (*storage.Store, error) {
	if app.store != nil {
		return app.store, nil
	}
	store, err := storage.Open(app.cfg.Storage.DBPath)
	if err != nil {
		return nil, err
	}
	app.store = store
	return store, nil
}

// stateStore returns where saved games live: Redis when configured,
// otherwise the local database.
func stateStore(ctx context.Context, store *storage.Store) (multiplayer.StateStore, error) {
	sc := app.cfg.Storage
	if sc.RedisAddr == "" {
		return store, nil
	}
	client, err := storage.NewRedisClient(ctx, sc.RedisAddr, sc.RedisPassword, sc.RedisDB)
	if err != nil {
		return nil, err
	}
	app.redis = client
	app.logger.Info("saving games in redis", "addr", sc.RedisAddr, "ttl", sc.StateTTL)
	return storage.NewRedisStateStore(client, sc.StateTTL), nil
}

// gameOptions converts the game config to engine options.
func gameOptions() duel.Options {
	opts := duel.DefaultOptions()
	opts.Size = app.cfg.Game.Size
	opts.WinValue = app.cfg.Game.WinValue
	opts.FourThreshold = app.cfg.Game.FourThreshold
	return opts
}

// peerConfig builds a peer configuration from the loaded config. Persistence
// is wired when store is non-nil; states may be nil to skip saving games.
func peerConfig(ctx context.Context, host bool, roomID string, store *storage.Store, states multiplayer.StateStore) multiplayer.PeerConfig {
	cfg := multiplayer.DefaultPeerConfig()
	cfg.Game = gameOptions()
	cfg.Game.RoomID = roomID
	cfg.Host = host
	cfg.SeedTimeout = app.cfg.Sync.SeedTimeout
	cfg.MaxResends = app.cfg.Sync.MaxResends
	cfg.Logger = app.logger.With("room", roomID)

	if store != nil {
		board := storage.BoardKey(cfg.Game.Size, cfg.Game.WinValue)
		keeper, err := storage.NewBestScoreKeeper(ctx, store, board, app.logger)
		if err != nil {
			app.logger.Warn("best score unavailable", "board", board, "error", err)
		} else {
			cfg.Game.Scores = keeper
		}
		cfg.Results = store
	}
	if states != nil {
		cfg.States = states
	}
	return cfg
}
