// Package storage provides SQLite-based persistence for best scores, match
// results and saved games, plus a Redis store for saved games shared between
// servers. Uses the pure-Go modernc.org/sqlite driver to avoid CGO dependencies.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/vovakirdan/duel2048/internal/duel"
	"github.com/vovakirdan/duel2048/internal/multiplayer"
)

// ErrStateNotFound is returned when no saved game exists for a room.
var ErrStateNotFound = errors.New("storage: saved game not found")

// Store manages the SQLite database connection.
type Store struct {
	db *sql.DB
}

// MatchRecord is a stored match result.
type MatchRecord struct {
	ID        int64
	MatchID   string
	RoomID    string
	Player    int
	Scores    [2]int
	Winners   []int
	Score     int
	MaxTile   int
	Turns     int64
	EndReason string
	Duration  int // seconds
	CreatedAt time.Time
}

// Won reports whether the recording player won.
func (r MatchRecord) Won() bool {
	for _, w := range r.Winners {
		if w == r.Player {
			return true
		}
	}
	return false
}

// Open creates or opens a SQLite database at the given path.
// It creates the parent directories if needed and runs migrations.
func Open(dbPath string) (*Store, error) {
	// Expand ~ to home directory
	if dbPath != "" && dbPath[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("storage: cannot expand home directory: %w", err)
		}
		dbPath = filepath.Join(home, dbPath[1:])
	}

	// Create parent directories
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: cannot create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot open database: %w", err)
	}
	// one writer; the SSH server saves from many session goroutines
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: cannot connect to database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migration failed: %w", err)
	}

	return store, nil
}

// migrate creates the database schema if it doesn't exist.
func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS best_scores (
			board TEXT PRIMARY KEY,
			score INTEGER NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS matches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			match_id TEXT NOT NULL,
			room_id TEXT NOT NULL,
			player INTEGER NOT NULL,
			score0 INTEGER NOT NULL DEFAULT 0,
			score1 INTEGER NOT NULL DEFAULT 0,
			winners TEXT NOT NULL DEFAULT '',
			global_score INTEGER NOT NULL DEFAULT 0,
			max_tile INTEGER NOT NULL DEFAULT 0,
			turns INTEGER NOT NULL DEFAULT 0,
			end_reason TEXT NOT NULL,
			duration_secs INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (match_id, player, end_reason)
		);
		CREATE INDEX IF NOT EXISTS idx_matches_room_id ON matches(room_id);
		CREATE INDEX IF NOT EXISTS idx_matches_created ON matches(created_at DESC);

		CREATE TABLE IF NOT EXISTS saved_games (
			room_id TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			turn INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// BoardKey names the best score bucket for a board shape.
func BoardKey(size, winValue int) string {
	return fmt.Sprintf("%dx%d/%d", size, size, winValue)
}

// BestScore returns the best global score recorded for board, or 0.
func (s *Store) BestScore(ctx context.Context, board string) (int, error) {
	var score int
	err := s.db.QueryRowContext(ctx, `SELECT score FROM best_scores WHERE board = ?`, board).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("storage: cannot query best score: %w", err)
	}
	return score, nil
}

// SetBestScore records score for board unless a higher one is stored.
func (s *Store) SetBestScore(ctx context.Context, board string, score int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO best_scores (board, score) VALUES (?, ?)
		 ON CONFLICT(board) DO UPDATE SET
		   score = MAX(score, excluded.score),
		   updated_at = CURRENT_TIMESTAMP`,
		board, score,
	)
	if err != nil {
		return fmt.Errorf("storage: cannot save best score: %w", err)
	}
	return nil
}

// BestScores returns every board's best score.
func (s *Store) BestScores(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT board, score FROM best_scores ORDER BY board`)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query best scores: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var board string
		var score int
		if err := rows.Scan(&board, &score); err != nil {
			return nil, fmt.Errorf("storage: cannot scan best score row: %w", err)
		}
		out[board] = score
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}
	return out, nil
}

// SaveMatchResult implements multiplayer.MatchResultSaver.
// A repeated save of the same outcome is ignored.
func (s *Store) SaveMatchResult(ctx context.Context, r multiplayer.MatchResult) error {
	var scores [2]int
	copy(scores[:], r.Scores)

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO matches
		 (match_id, room_id, player, score0, score1, winners, global_score, max_tile, turns, end_reason, duration_secs)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(r.MatchID),
		r.RoomID,
		r.Player,
		scores[0],
		scores[1],
		joinInts(r.Winners),
		r.Score,
		r.MaxTile,
		int64(r.Turns), //nolint:gosec // turn counts stay far below MaxInt64
		r.Reason.Key(),
		int(r.Duration.Seconds()),
	)
	if err != nil {
		return fmt.Errorf("storage: cannot save match result: %w", err)
	}
	return nil
}

// Ensure Store implements the multiplayer persistence interfaces
var (
	_ multiplayer.MatchResultSaver = (*Store)(nil)
	_ multiplayer.StateStore       = (*Store)(nil)
)

const matchColumns = `id, match_id, room_id, player, score0, score1, winners,
	global_score, max_tile, turns, end_reason, duration_secs, created_at`

// MatchByID retrieves the first result recorded for matchID, or nil.
func (s *Store) MatchByID(ctx context.Context, matchID string) (*MatchRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE match_id = ? ORDER BY id LIMIT 1`,
		matchID,
	)
	rec, err := scanMatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query match: %w", err)
	}
	return rec, nil
}

// RecentMatches retrieves the most recent match results.
func (s *Store) RecentMatches(ctx context.Context, limit int) ([]MatchRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+matchColumns+` FROM matches ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query matches: %w", err)
	}
	defer rows.Close()

	var records []MatchRecord
	for rows.Next() {
		rec, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: cannot scan match row: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}
	return records, nil
}

// Stats contains aggregated results for the local player.
type Stats struct {
	Games      int
	Wins       int
	HighScore  int // highest own score
	BestTile   int
	LastPlayed time.Time
}

// GetStats aggregates every stored match.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	var lastPlayed any
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(MAX(CASE WHEN player = 0 THEN score0 ELSE score1 END), 0),
		        COALESCE(MAX(max_tile), 0),
		        MAX(created_at)
		 FROM matches`,
	).Scan(&stats.Games, &stats.HighScore, &stats.BestTile, &lastPlayed)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot get stats: %w", err)
	}
	stats.LastPlayed = parseTime(lastPlayed)

	records, err := s.RecentMatches(ctx, -1)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.Won() {
			stats.Wins++
		}
	}
	return stats, nil
}

// SaveState stores the in-progress game for roomID.
func (s *Store) SaveState(ctx context.Context, roomID string, state duel.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("storage: cannot encode state: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO saved_games (room_id, state, turn) VALUES (?, ?, ?)
		 ON CONFLICT(room_id) DO UPDATE SET
		   state = excluded.state,
		   turn = excluded.turn,
		   updated_at = CURRENT_TIMESTAMP`,
		roomID, string(data), int64(state.Turn), //nolint:gosec // turn counts stay far below MaxInt64
	)
	if err != nil {
		return fmt.Errorf("storage: cannot save state: %w", err)
	}
	return nil
}

// LoadState returns the saved game for roomID or ErrStateNotFound.
func (s *Store) LoadState(ctx context.Context, roomID string) (duel.State, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT state FROM saved_games WHERE room_id = ?`, roomID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return duel.State{}, fmt.Errorf("%w: %s", ErrStateNotFound, roomID)
	}
	if err != nil {
		return duel.State{}, fmt.Errorf("storage: cannot query state: %w", err)
	}

	var state duel.State
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return duel.State{}, fmt.Errorf("storage: cannot decode state: %w", err)
	}
	return state, nil
}

// DeleteState removes the saved game for roomID.
func (s *Store) DeleteState(ctx context.Context, roomID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM saved_games WHERE room_id = ?`, roomID); err != nil {
		return fmt.Errorf("storage: cannot delete state: %w", err)
	}
	return nil
}

// SavedRooms lists rooms with a saved game, most recent first.
func (s *Store) SavedRooms(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT room_id FROM saved_games ORDER BY updated_at DESC, room_id`)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query saved games: %w", err)
	}
	defer rows.Close()

	var rooms []string
	for rows.Next() {
		var room string
		if err := rows.Scan(&room); err != nil {
			return nil, fmt.Errorf("storage: cannot scan saved game row: %w", err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}
	return rooms, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMatch(row scanner) (*MatchRecord, error) {
	var rec MatchRecord
	var winners string
	var createdAt any
	err := row.Scan(
		&rec.ID,
		&rec.MatchID,
		&rec.RoomID,
		&rec.Player,
		&rec.Scores[0],
		&rec.Scores[1],
		&winners,
		&rec.Score,
		&rec.MaxTile,
		&rec.Turns,
		&rec.EndReason,
		&rec.Duration,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Winners = splitInts(winners)
	rec.CreatedAt = parseTime(createdAt)
	return &rec, nil
}

// parseTime handles the driver returning DATETIME columns as either
// time.Time or text.
func parseTime(v any) time.Time {
	switch v := v.(type) {
	case time.Time:
		return v
	case string:
		if parsed, err := time.Parse("2006-01-02 15:04:05", v); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

func joinInts(vals []int) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func splitInts(s string) []int {
	if s == "" {
		return nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		if v, err := strconv.Atoi(part); err == nil {
			out = append(out, v)
		}
	}
	return out
}
