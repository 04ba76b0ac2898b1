package multiplayer

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/duel2048/internal/transport"
)

// LobbyConfig holds configuration for the lobby.
type LobbyConfig struct {
	RoomTimeout   time.Duration // How long before an unjoined room expires
	CleanupPeriod time.Duration // How often to clean up expired rooms
	Logger        *log.Logger
}

// DefaultLobbyConfig returns sensible defaults.
func DefaultLobbyConfig() LobbyConfig {
	return LobbyConfig{
		RoomTimeout:   10 * time.Minute,
		CleanupPeriod: 30 * time.Second,
	}
}

// Invite is handed to a hosting session. Conn delivers the host's end of the
// link once someone joins; Expired closes if nobody joined in time or the
// room was cancelled.
type Invite struct {
	Code    string
	Conn    <-chan transport.Conn
	Expired <-chan struct{}
}

type room struct {
	code      string
	host      SessionID
	joiner    SessionID
	createdAt time.Time
	conn      chan transport.Conn
	expired   chan struct{}
}

// Lobby pairs sessions on one server. The host opens a room and shares its
// code; the joiner's Join connects both with an in-memory link.
type Lobby struct {
	config LobbyConfig
	logger *log.Logger

	mu       sync.Mutex
	rooms    map[string]*room    // code -> room
	sessions map[SessionID]string // session -> code

	done     chan struct{}
	stopOnce sync.Once
}

// NewLobby creates a lobby. Call Start to expire stale rooms.
func NewLobby(cfg LobbyConfig) *Lobby {
	def := DefaultLobbyConfig()
	if cfg.RoomTimeout <= 0 {
		cfg.RoomTimeout = def.RoomTimeout
	}
	if cfg.CleanupPeriod <= 0 {
		cfg.CleanupPeriod = def.CleanupPeriod
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}
	return &Lobby{
		config:   cfg,
		logger:   cfg.Logger,
		rooms:    make(map[string]*room),
		sessions: make(map[SessionID]string),
		done:     make(chan struct{}),
	}
}

// Start begins the lobby's background cleanup.
func (l *Lobby) Start() {
	go l.cleanupLoop()
}

// Stop shuts down the lobby.
func (l *Lobby) Stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

// Host opens a room for session.
func (l *Lobby) Host(session SessionID) (*Invite, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.sessions[session]; ok {
		return nil, ErrAlreadyHosting
	}

	r := &room{
		code:      l.generateUniqueCode(),
		host:      session,
		createdAt: time.Now(),
		conn:      make(chan transport.Conn, 1),
		expired:   make(chan struct{}),
	}
	l.rooms[r.code] = r
	l.sessions[session] = r.code
	l.logger.Info("room opened", "code", r.code, "host", session)

	return &Invite{Code: r.code, Conn: r.conn, Expired: r.expired}, nil
}

// Join connects session to the room with code and returns its end of the
// link. The room stays reserved until the link closes.
func (l *Lobby) Join(session SessionID, code string) (transport.Conn, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	code = strings.ToUpper(strings.TrimSpace(code))
	r, ok := l.rooms[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, code)
	}
	if r.host == session {
		return nil, ErrOwnRoom
	}
	if r.joiner != "" {
		return nil, fmt.Errorf("%w: %s", ErrRoomFull, code)
	}

	hostEnd, joinEnd := transport.Pipe()
	r.joiner = session
	l.sessions[session] = code
	r.conn <- hostEnd
	l.logger.Info("room joined", "code", code, "host", r.host, "joiner", session)

	go func() {
		select {
		case <-joinEnd.Done():
		case <-l.done:
			_ = joinEnd.Close()
		}
		l.remove(code)
	}()
	return joinEnd, nil
}

// Cancel closes a room that has not been joined. Only the host may cancel.
func (l *Lobby) Cancel(session SessionID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	code, ok := l.sessions[session]
	if !ok {
		return
	}
	r := l.rooms[code]
	if r == nil || r.host != session || r.joiner != "" {
		return
	}
	l.removeLocked(r)
	l.logger.Info("room cancelled", "code", code)
}

// Rooms returns the number of open or playing rooms.
func (l *Lobby) Rooms() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rooms)
}

func (l *Lobby) remove(code string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r, ok := l.rooms[code]; ok {
		l.removeLocked(r)
	}
}

func (l *Lobby) removeLocked(r *room) {
	if r.joiner == "" {
		close(r.expired)
	}
	delete(l.sessions, r.host)
	if r.joiner != "" {
		delete(l.sessions, r.joiner)
	}
	delete(l.rooms, r.code)
}

func (l *Lobby) cleanupLoop() {
	ticker := time.NewTicker(l.config.CleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanupExpiredRooms(time.Now())
		case <-l.done:
			return
		}
	}
}

func (l *Lobby) cleanupExpiredRooms(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, r := range l.rooms {
		// Only expire rooms without joiners
		if r.joiner == "" && now.Sub(r.createdAt) > l.config.RoomTimeout {
			l.logger.Info("room expired", "code", r.code)
			l.removeLocked(r)
		}
	}
}

func (l *Lobby) generateUniqueCode() string {
	for {
		code := GenerateJoinCode()
		if _, exists := l.rooms[code]; !exists {
			return code
		}
	}
}

// GenerateJoinCode creates a 6-character uppercase alphanumeric code.
func GenerateJoinCode() string {
	b := make([]byte, 4) // 4 bytes = 32 bits, base32 encodes to 8 chars, we take 6
	_, err := rand.Read(b)
	if err != nil {
		// Fallback to timestamp-based
		return fmt.Sprintf("%06X", time.Now().UnixNano()&0xFFFFFF)
	}
	return base32.StdEncoding.EncodeToString(b)[:6]
}
