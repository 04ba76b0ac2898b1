package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/vovakirdan/duel2048/internal/duel"
)

const (
	writeWait          = 10 * time.Second
	defaultPingPeriod  = 15 * time.Second
	maxMessageSize     = 64 << 10
	websocketQueueSize = 64
)

// Options configures websocket links.
type Options struct {
	PingInterval time.Duration // zero uses 15s
	Logger       *log.Logger
}

func (o Options) withDefaults() Options {
	if o.PingInterval <= 0 {
		o.PingInterval = defaultPingPeriod
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
	return o
}

// WSConn is a Conn over a gorilla websocket. Reads run in their own
// goroutine; writes are serialized by a mutex.
type WSConn struct {
	*closer
	ws     *websocket.Conn
	opts   Options
	msgs   chan duel.Message
	writeM sync.Mutex
}

func newWSConn(ws *websocket.Conn, opts Options) *WSConn {
	c := &WSConn{
		closer: newCloser(),
		ws:     ws,
		opts:   opts.withDefaults(),
		msgs:   make(chan duel.Message, websocketQueueSize),
	}
	go c.readPump()
	go c.pingLoop()
	return c
}

// Dial connects to a peer listening at url (ws:// or wss://).
func Dial(ctx context.Context, url string, opts Options) (*WSConn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", url, err)
	}
	return newWSConn(ws, opts), nil
}

// RemoteAddr returns the peer's network address.
func (c *WSConn) RemoteAddr() net.Addr {
	return c.ws.RemoteAddr()
}

func (c *WSConn) Send(msg duel.Message) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("transport: encode %s: %w", msg, err)
	}
	if err := c.write(websocket.TextMessage, data); err != nil {
		c.shutdown(err)
		return fmt.Errorf("transport: send %s: %w", msg, err)
	}
	return nil
}

func (c *WSConn) Messages() <-chan duel.Message {
	return c.msgs
}

// Close sends a close frame and tears the link down.
func (c *WSConn) Close() error {
	_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.shutdown(ErrClosed)
	return nil
}

func (c *WSConn) write(messageType int, data []byte) error {
	c.writeM.Lock()
	defer c.writeM.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, data)
}

func (c *WSConn) shutdown(err error) {
	if c.close(err) {
		_ = c.ws.Close()
	}
}

func (c *WSConn) readPump() {
	pongWait := 2 * c.opts.PingInterval
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = ErrClosed
			} else {
				c.opts.Logger.Debug("websocket read failed", "error", err)
			}
			c.shutdown(err)
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))

		var msg duel.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.opts.Logger.Warn("undecodable peer message dropped", "error", err)
			continue
		}
		select {
		case c.msgs <- msg:
		case <-c.done:
			return
		}
	}
}

func (c *WSConn) pingLoop() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.shutdown(err)
				return
			}
		case <-c.done:
			return
		}
	}
}

// Listener is an http.Handler that upgrades one peer at a time. A new peer
// is admitted once the previous link is done.
type Listener struct {
	upgrader websocket.Upgrader
	opts     Options
	conns    chan *WSConn
	busy     atomic.Bool
}

// NewListener creates a listener.
func NewListener(opts Options) *Listener {
	return &Listener{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		opts:  opts.withDefaults(),
		conns: make(chan *WSConn, 1),
	}
}

func (l *Listener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !l.busy.CompareAndSwap(false, true) {
		http.Error(w, ErrBusy.Error(), http.StatusConflict)
		return
	}
	ws, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.busy.Store(false)
		l.opts.Logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := newWSConn(ws, l.opts)
	l.opts.Logger.Info("peer connected", "remote", r.RemoteAddr)
	go func() {
		<-c.Done()
		l.busy.Store(false)
		l.opts.Logger.Info("peer disconnected", "remote", r.RemoteAddr, "error", c.Err())
	}()

	// a peer that was never accepted is already done; replace it
	select {
	case stale := <-l.conns:
		_ = stale.Close()
	default:
	}
	l.conns <- c
}

// Accept waits for the next peer.
func (l *Listener) Accept(ctx context.Context) (*WSConn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Serve runs an HTTP server routing path to l until ctx is cancelled.
func Serve(ctx context.Context, addr, path string, l *Listener) error {
	mux := http.NewServeMux()
	mux.Handle(path, l)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: writeWait}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return fmt.Errorf("transport: serve %s: %w", addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("transport: shutdown: %w", err)
		}
		return nil
	}
}
