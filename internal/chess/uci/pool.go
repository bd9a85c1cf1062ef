package uci

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
)

// ErrPoolClosed is returned by Acquire after Close.
var ErrPoolClosed = errors.New("engine pool closed")

type PoolConfig struct {
	BinaryPath string
	Options    Options
	Capacity   int
	Logger     *zap.Logger
}

// Pool hands out engine sessions. A session released with an error is killed
// so the next Acquire starts a fresh process.
type Pool struct {
	spawn    func(ctx context.Context) (*Session, error)
	capacity int
	logger   *zap.Logger

	mu     sync.Mutex
	total  int
	closed bool
	leased map[*Session]struct{}
	idle   chan *Session
}

func NewPool(cfg PoolConfig) (*Pool, error) {
	if cfg.BinaryPath == "" {
		return nil, fmt.Errorf("binary path required")
	}
	if _, err := os.Stat(cfg.BinaryPath); err != nil {
		return nil, fmt.Errorf("stockfish binary check: %w", err)
	}
	if err := validateOptions(cfg.Options); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	spawn := func(ctx context.Context) (*Session, error) {
		return NewSession(ctx, cfg.BinaryPath, cfg.Options, logger)
	}
	return newPool(spawn, cfg.Capacity, logger), nil
}

func newPool(spawn func(ctx context.Context) (*Session, error), capacity int, logger *zap.Logger) *Pool {
	if capacity <= 0 {
		capacity = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		spawn:    spawn,
		capacity: capacity,
		logger:   logger,
		leased:   make(map[*Session]struct{}),
		idle:     make(chan *Session, capacity),
	}
}

// Acquire returns an idle session that answers isready, or starts a new one
// when under capacity. Otherwise it waits for a release.
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	for {
		if err := p.checkOpen(); err != nil {
			return nil, err
		}

		select {
		case session := <-p.idle:
			if s, ok := p.verify(ctx, session); ok {
				return s, nil
			}
			continue
		default:
		}

		if p.reserve() {
			session, err := p.spawn(ctx)
			if err != nil {
				p.decrement()
				return nil, err
			}
			p.track(session)
			return session, nil
		}

		select {
		case session := <-p.idle:
			if s, ok := p.verify(ctx, session); ok {
				return s, nil
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Release returns a leased session. A non-nil err kills it.
func (p *Pool) Release(session *Session, err error) {
	if session == nil {
		return
	}

	p.mu.Lock()
	_, ok := p.leased[session]
	delete(p.leased, session)
	closed := p.closed
	p.mu.Unlock()

	if !ok {
		_ = session.Close()
		return
	}
	if err != nil || closed {
		if err != nil {
			p.logger.Warn("oracle_process_discarded", zap.Error(err))
		}
		p.discard(session)
		return
	}

	select {
	case p.idle <- session:
	default:
		p.discard(session)
	}
}

// Close kills idle sessions. Leased sessions are killed on release.
func (p *Pool) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	var errs []error
	for {
		select {
		case session := <-p.idle:
			if err := session.Close(); err != nil {
				errs = append(errs, err)
			}
			p.decrement()
		default:
			return errors.Join(errs...)
		}
	}
}

func (p *Pool) verify(ctx context.Context, session *Session) (*Session, bool) {
	if session == nil {
		return nil, false
	}
	if err := session.EnsureReady(ctx); err != nil {
		p.logger.Warn("oracle_process_stale", zap.Error(err))
		p.discard(session)
		return nil, false
	}
	p.track(session)
	return session, true
}

func (p *Pool) checkOpen() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	return nil
}

func (p *Pool) reserve() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.total >= p.capacity {
		return false
	}
	p.total++
	return true
}

func (p *Pool) track(session *Session) {
	p.mu.Lock()
	p.leased[session] = struct{}{}
	p.mu.Unlock()
}

func (p *Pool) discard(session *Session) {
	_ = session.Close()
	p.decrement()
}

func (p *Pool) decrement() {
	p.mu.Lock()
	if p.total > 0 {
		p.total--
	}
	p.mu.Unlock()
}
