// Package bridge drives a game through a websocket relay. A userscript in
// the browser publishes board snapshots and executes commands sent back.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/SebastianHall69/FlyingChess1995XL/internal/board"
)

var (
	ErrNotConnected = errors.New("bridge: not connected")
	ErrNoSnapshot   = errors.New("bridge: no snapshot received")
	ErrAckTimeout   = errors.New("bridge: command not acknowledged")
	ErrRejected     = errors.New("bridge: command rejected")
)

type Config struct {
	URL                  string
	AckTimeout           time.Duration
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
	PingInterval         time.Duration
}

func (c Config) withDefaults() Config {
	if c.AckTimeout <= 0 {
		c.AckTimeout = 10 * time.Second
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = 10
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 100 * time.Millisecond
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	return c
}

type snapshot struct {
	board      board.Board
	parseErr   error
	myTurn     bool
	inProgress bool
	color      board.Color
}

// Bridge implements the observer, actuator and account collaborators over
// one relay connection.
type Bridge struct {
	cfg    Config
	logger *zap.Logger

	mu    sync.RWMutex
	conn  *websocket.Conn
	state State
	snap  *snapshot

	writeM sync.Mutex

	pendM   sync.Mutex
	pending map[string]chan Frame

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc
}

func New(cfg Config, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	rootCtx, rootCancel := context.WithCancel(context.Background())
	return &Bridge{
		cfg:        cfg.withDefaults(),
		logger:     logger,
		pending:    make(map[string]chan Frame),
		stopCh:     make(chan struct{}),
		rootCtx:    rootCtx,
		rootCancel: rootCancel,
	}
}

func (b *Bridge) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Connect dials the relay and starts the read loop. A dropped connection is
// redialled in the background with exponential backoff.
func (b *Bridge) Connect(ctx context.Context) error {
	b.mu.Lock()
	if b.state == StateConnected || b.state == StateConnecting {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	b.setState(StateConnecting)
	conn, err := b.dial(ctx)
	if err != nil {
		b.setState(StateFailed)
		return fmt.Errorf("dial relay: %w", err)
	}
	b.attach(conn)

	b.wg.Add(1)
	go b.supervise(conn)
	return nil
}

func (b *Bridge) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, b.cfg.URL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	return conn, err
}

func (b *Bridge) attach(conn *websocket.Conn) {
	b.mu.Lock()
	b.conn = conn
	b.snap = nil
	b.mu.Unlock()
	b.setState(StateConnected)
}

func (b *Bridge) supervise(conn *websocket.Conn) {
	defer b.wg.Done()
	for {
		err := b.serve(conn)
		if b.isStopping() {
			return
		}
		b.logger.Warn("bridge_disconnected", zap.Error(err))
		b.mu.Lock()
		b.conn = nil
		b.mu.Unlock()
		b.setState(StateDisconnected)
		_ = conn.Close(websocket.StatusGoingAway, "reconnect")
		b.failPending()

		next, ok := b.reconnect()
		if !ok {
			return
		}
		conn = next
	}
}

// serve runs the read loop and keepalive pings for one connection.
func (b *Bridge) serve(conn *websocket.Conn) error {
	ctx, cancel := context.WithCancel(b.rootCtx)
	defer cancel()
	go b.pingLoop(ctx, conn)

	for {
		var f Frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			return err
		}
		b.handle(f)
	}
}

func (b *Bridge) pingLoop(ctx context.Context, conn *websocket.Conn) {
	t := time.NewTicker(b.cfg.PingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := conn.Ping(pctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				_ = conn.Close(websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}

func (b *Bridge) reconnect() (*websocket.Conn, bool) {
	if b.cfg.MaxReconnectAttempts < 0 {
		b.setState(StateFailed)
		return nil, false
	}
	b.setState(StateReconnecting)
	for attempt := 1; attempt <= b.cfg.MaxReconnectAttempts; attempt++ {
		select {
		case <-b.stopCh:
			return nil, false
		case <-time.After(b.backoff(attempt)):
		}
		conn, err := b.dial(b.rootCtx)
		if err != nil {
			b.logger.Debug("bridge_redial_failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		b.attach(conn)
		b.logger.Info("bridge_reconnected", zap.Int("attempt", attempt))
		return conn, true
	}
	b.setState(StateFailed)
	return nil, false
}

func (b *Bridge) backoff(attempt int) time.Duration {
	attempt = min(max(attempt, 1), 6)
	return time.Duration(1<<uint(attempt-1)) * b.cfg.ReconnectDelay
}

func (b *Bridge) handle(f Frame) {
	switch f.Type {
	case frameSnapshot:
		s := &snapshot{myTurn: f.MyTurn, inProgress: f.InProgress}
		s.board, s.parseErr = board.ParsePieceClasses(f.Pieces)
		switch f.Color {
		case "light", "white", "w":
			s.color = board.Light
		case "dark", "black", "b":
			s.color = board.Dark
		}
		b.mu.Lock()
		b.snap = s
		b.mu.Unlock()
	case frameAck:
		b.pendM.Lock()
		ch, ok := b.pending[f.ID]
		delete(b.pending, f.ID)
		b.pendM.Unlock()
		if ok {
			ch <- f
		}
	default:
		b.logger.Debug("bridge_unknown_frame", zap.String("type", f.Type))
	}
}

func (b *Bridge) failPending() {
	b.pendM.Lock()
	defer b.pendM.Unlock()
	for id, ch := range b.pending {
		close(ch)
		delete(b.pending, id)
	}
}

func (b *Bridge) setState(s State) {
	b.mu.Lock()
	prev := b.state
	b.state = s
	b.mu.Unlock()
	if prev != s {
		b.logger.Debug("bridge_state", zap.Stringer("from", prev), zap.Stringer("to", s))
	}
}

func (b *Bridge) isStopping() bool {
	select {
	case <-b.stopCh:
		return true
	default:
		return false
	}
}

// Close stops reconnecting and closes the link.
func (b *Bridge) Close(ctx context.Context) error {
	b.stopOnce.Do(func() { close(b.stopCh) })
	b.mu.Lock()
	conn := b.conn
	b.conn = nil
	b.mu.Unlock()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "close")
	}
	b.rootCancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		b.setState(StateDisconnected)
		return nil
	}
}

func (b *Bridge) current() (*snapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.state != StateConnected {
		return nil, ErrNotConnected
	}
	if b.snap == nil {
		return nil, ErrNoSnapshot
	}
	return b.snap, nil
}

// command writes f with a fresh id and waits for the matching ack.
func (b *Bridge) command(ctx context.Context, f Frame) (Frame, error) {
	b.mu.RLock()
	conn := b.conn
	b.mu.RUnlock()
	if conn == nil {
		return Frame{}, ErrNotConnected
	}

	f.ID = uuid.NewString()
	ch := make(chan Frame, 1)
	b.pendM.Lock()
	b.pending[f.ID] = ch
	b.pendM.Unlock()
	forget := func() {
		b.pendM.Lock()
		delete(b.pending, f.ID)
		b.pendM.Unlock()
	}

	wctx, cancel := context.WithTimeout(ctx, b.cfg.AckTimeout)
	defer cancel()

	b.writeM.Lock()
	err := wsjson.Write(wctx, conn, f)
	b.writeM.Unlock()
	if err != nil {
		forget()
		return Frame{}, fmt.Errorf("write %s: %w", f.Type, err)
	}

	select {
	case ack, ok := <-ch:
		if !ok {
			return Frame{}, fmt.Errorf("%s: %w", f.Type, ErrNotConnected)
		}
		if !ack.OK {
			return ack, fmt.Errorf("%w: %s: %s", ErrRejected, f.Type, ack.Error)
		}
		return ack, nil
	case <-wctx.Done():
		forget()
		if ctx.Err() != nil {
			return Frame{}, ctx.Err()
		}
		return Frame{}, fmt.Errorf("%w: %s", ErrAckTimeout, f.Type)
	}
}
