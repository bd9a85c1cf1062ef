package uci

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func fakeSpawner(t *testing.T, spawned *int32) func(context.Context) (*Session, error) {
	return func(ctx context.Context) (*Session, error) {
		atomic.AddInt32(spawned, 1)
		s, _ := startFakeEngine(t, fakeStockfish("e2e4"))
		return s, nil
	}
}

func TestPoolReusesHealthySession(t *testing.T) {
	var spawned int32
	p := newPool(fakeSpawner(t, &spawned), 1, zaptest.NewLogger(t))
	ctx := context.Background()

	first, err := p.Acquire(ctx)
	require.NoError(t, err)
	p.Release(first, nil)

	second, err := p.Acquire(ctx)
	require.NoError(t, err)
	require.Same(t, first, second)
	require.EqualValues(t, 1, atomic.LoadInt32(&spawned))
	p.Release(second, nil)
	require.NoError(t, p.Close())
}

func TestPoolRestartsAfterError(t *testing.T) {
	var spawned int32
	p := newPool(fakeSpawner(t, &spawned), 1, zaptest.NewLogger(t))
	ctx := context.Background()

	first, err := p.Acquire(ctx)
	require.NoError(t, err)
	p.Release(first, errors.New("protocol failure"))

	second, err := p.Acquire(ctx)
	require.NoError(t, err)
	require.NotSame(t, first, second)
	require.EqualValues(t, 2, atomic.LoadInt32(&spawned))
	p.Release(second, nil)
}

func TestPoolWaitsAtCapacity(t *testing.T) {
	var spawned int32
	p := newPool(fakeSpawner(t, &spawned), 1, zaptest.NewLogger(t))

	held, err := p.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = p.Acquire(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	go func() {
		time.Sleep(20 * time.Millisecond)
		p.Release(held, nil)
	}()
	got, err := p.Acquire(context.Background())
	require.NoError(t, err)
	require.Same(t, held, got)
	require.EqualValues(t, 1, atomic.LoadInt32(&spawned))
}

func TestPoolClosed(t *testing.T) {
	var spawned int32
	p := newPool(fakeSpawner(t, &spawned), 1, zaptest.NewLogger(t))
	require.NoError(t, p.Close())

	_, err := p.Acquire(context.Background())
	require.ErrorIs(t, err, ErrPoolClosed)
}

func TestPoolSpawnFailureFreesSlot(t *testing.T) {
	calls := 0
	p := newPool(func(context.Context) (*Session, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("exec failed")
		}
		s, _ := startFakeEngine(t, fakeStockfish("e2e4"))
		return s, nil
	}, 1, zaptest.NewLogger(t))

	_, err := p.Acquire(context.Background())
	require.Error(t, err)
	s, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(s, nil)
}

func TestNewPoolChecksBinary(t *testing.T) {
	_, err := NewPool(PoolConfig{})
	require.Error(t, err)
	_, err = NewPool(PoolConfig{BinaryPath: "/nonexistent/stockfish", Options: Options{HashMB: 16}})
	require.Error(t, err)
}
