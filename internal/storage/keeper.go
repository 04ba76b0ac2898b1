package storage

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/duel2048/internal/duel"
)

// BestScoreKeeper adapts a Store to duel.ScoreKeeper for one board shape.
// The manager calls it from its own goroutine without a context, so reads
// are served from a cached value and writes go through with a short timeout.
type BestScoreKeeper struct {
	store  *Store
	board  string
	logger *log.Logger

	mu   sync.Mutex
	best int
}

// NewBestScoreKeeper loads the stored best score for board.
func NewBestScoreKeeper(ctx context.Context, store *Store, board string, logger *log.Logger) (*BestScoreKeeper, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	best, err := store.BestScore(ctx, board)
	if err != nil {
		return nil, err
	}
	return &BestScoreKeeper{store: store, board: board, logger: logger, best: best}, nil
}

// BestScore implements duel.ScoreKeeper.
func (k *BestScoreKeeper) BestScore() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.best
}

// SetBestScore implements duel.ScoreKeeper.
func (k *BestScoreKeeper) SetBestScore(score int) {
	k.mu.Lock()
	if score <= k.best {
		k.mu.Unlock()
		return
	}
	k.best = score
	k.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := k.store.SetBestScore(ctx, k.board, score); err != nil {
		k.logger.Warn("cannot save best score", "board", k.board, "error", err)
	}
}

var _ duel.ScoreKeeper = (*BestScoreKeeper)(nil)
