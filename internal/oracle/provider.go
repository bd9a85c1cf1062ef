package oracle

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/SebastianHall69/FlyingChess1995XL/internal/chess/uci"
)

// Provider hands out one adapter per match, backed by a pooled process.
type Provider struct {
	pool   *uci.Pool
	limits uci.Limits
	logger *zap.Logger
}

func NewProvider(pool *uci.Pool, limits uci.Limits, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{pool: pool, limits: limits, logger: logger}
}

// Lease is an adapter bound to a process. Release must be called exactly once.
type Lease struct {
	*Adapter
	session *uci.Session
	pool    *uci.Pool
}

func (p *Provider) Acquire(ctx context.Context) (*Lease, error) {
	s, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: acquire engine: %w", ErrProtocol, err)
	}
	return &Lease{
		Adapter: NewAdapter(s, p.limits, p.logger),
		session: s,
		pool:    p.pool,
	}, nil
}

// Release returns the process to the pool. A non-nil err kills it so the
// next match starts from a fresh process.
func (l *Lease) Release(err error) {
	l.pool.Release(l.session, err)
}
