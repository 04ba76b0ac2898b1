// Package transport carries duel messages between the two peers. A Conn is
// a bidirectional, ordered message link; Pipe connects two peers in process
// and the websocket implementation connects them over the network.
package transport

import (
	"errors"
	"sync"

	"github.com/vovakirdan/duel2048/internal/duel"
)

var (
	// ErrClosed is returned by Send after the link is closed.
	ErrClosed = errors.New("transport: connection closed")
	// ErrBusy is reported when a listener already serves a peer.
	ErrBusy = errors.New("transport: peer already connected")
)

// Conn is one end of a peer link. Messages is never closed; receivers
// select on Done to learn the link ended and read Err for the cause.
type Conn interface {
	Send(msg duel.Message) error
	Messages() <-chan duel.Message
	Done() <-chan struct{}
	Err() error
	Close() error
}

// closer records the first error that ended a link.
type closer struct {
	once sync.Once
	done chan struct{}
	mu   sync.Mutex
	err  error
}

func newCloser() *closer {
	return &closer{done: make(chan struct{})}
}

func (c *closer) close(err error) bool {
	closed := false
	c.once.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
		closed = true
	})
	return closed
}

func (c *closer) Done() <-chan struct{} {
	return c.done
}

func (c *closer) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// pipeBuffer bounds the in-flight messages per direction of a Pipe.
const pipeBuffer = 64

type pipeConn struct {
	*closer
	in   chan duel.Message
	peer *pipeConn
}

// Pipe returns two connected in-memory ends. Closing either end closes both.
func Pipe() (Conn, Conn) {
	shared := newCloser()
	a := &pipeConn{closer: shared, in: make(chan duel.Message, pipeBuffer)}
	b := &pipeConn{closer: shared, in: make(chan duel.Message, pipeBuffer)}
	a.peer, b.peer = b, a
	return a, b
}

func (p *pipeConn) Send(msg duel.Message) error {
	select {
	case <-p.done:
		return ErrClosed
	default:
	}
	select {
	case p.peer.in <- msg:
		return nil
	case <-p.done:
		return ErrClosed
	}
}

func (p *pipeConn) Messages() <-chan duel.Message {
	return p.in
}

func (p *pipeConn) Close() error {
	p.close(ErrClosed)
	return nil
}
