// Package session runs the bot for the lifetime of the process: log in,
// wait for a game, play it, queue for the next one.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SebastianHall69/FlyingChess1995XL/internal/domain"
	"github.com/SebastianHall69/FlyingChess1995XL/internal/inference"
	"github.com/SebastianHall69/FlyingChess1995XL/internal/match"
	"github.com/SebastianHall69/FlyingChess1995XL/internal/oracle"
)

var (
	ErrLogin   = errors.New("login failed")
	ErrRequeue = errors.New("requeue failed")

	errPlayAborted = errors.New("match aborted without a result")
)

type State int32

const (
	StateStart State = iota
	StateLogin
	StateWaitingForMatch
	StateMatchFound
	StateRequeue
	StateError
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateLogin:
		return "login"
	case StateWaitingForMatch:
		return "waiting_for_match"
	case StateMatchFound:
		return "match_found"
	case StateRequeue:
		return "requeue"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Site is the account-level collaborator.
type Site interface {
	Login(ctx context.Context) (bool, error)
	Requeue(ctx context.Context) (bool, error)
	InProgress(ctx context.Context) (bool, error)
}

// Player runs one match. *match.Runner satisfies it.
type Player interface {
	Play(ctx context.Context, id string, o match.Oracle) (match.Outcome, error)
}

// OracleSource leases an oracle for one match. release must be called once;
// a non-nil error tells the source to restart the process behind it.
type OracleSource func(ctx context.Context) (o match.Oracle, release func(error), err error)

// Recorder stores finished matches.
type Recorder interface {
	SaveMatch(ctx context.Context, rec domain.MatchRecord) error
}

type Config struct {
	PollInterval time.Duration
	RequeueDelay time.Duration
}

type Machine struct {
	site     Site
	player   Player
	oracles  OracleSource
	recorder Recorder
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string

	state atomic.Int32
}

func New(site Site, player Player, oracles OracleSource, recorder Recorder, cfg Config, logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 1500 * time.Millisecond
	}
	return &Machine{
		site:     site,
		player:   player,
		oracles:  oracles,
		recorder: recorder,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// State reports the current state. Safe to call from any goroutine.
func (m *Machine) State() State {
	return State(m.state.Load())
}

// Run drives the session until ctx ends (nil) or the Error state is
// reached (the error that caused it).
func (m *Machine) Run(ctx context.Context) error {
	m.transition(StateLogin)
	for {
		if ctx.Err() != nil {
			return nil
		}

		var err error
		switch m.State() {
		case StateLogin:
			err = m.login(ctx)
		case StateWaitingForMatch:
			err = m.waitForMatch(ctx)
		case StateMatchFound:
			err = m.playMatch(ctx)
		case StateRequeue:
			err = m.requeue(ctx)
		}

		if err == nil {
			continue
		}
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return nil
		}
		m.transition(StateError)
		m.logger.Error("session_error", zap.Error(err))
		return err
	}
}

func (m *Machine) login(ctx context.Context) error {
	ok, err := m.site.Login(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ErrLogin, err)
	}
	if !ok {
		return fmt.Errorf("%w: credentials rejected", ErrLogin)
	}
	m.transition(StateWaitingForMatch)
	return nil
}

func (m *Machine) waitForMatch(ctx context.Context) error {
	live, err := m.site.InProgress(ctx)
	if err != nil {
		m.logger.Warn("match_probe_failed", zap.Error(err))
	}
	if live {
		m.transition(StateMatchFound)
		return nil
	}
	return sleep(ctx, m.cfg.PollInterval)
}

func (m *Machine) playMatch(ctx context.Context) error {
	id := m.newID()
	started := m.now()
	logger := m.logger.With(zap.String("match_id", id))

	o, release, err := m.oracles(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// No process: nothing can be played until one starts.
		return err
	}

	// Stays set if Play never returns; the process is then not reused.
	playErr := errPlayAborted
	defer func() { release(restartCause(playErr)) }()

	var out match.Outcome
	out, playErr = m.player.Play(ctx, id, o)

	rec := domain.MatchRecord{
		ID:        id,
		Color:     out.Color.String(),
		MovesUCI:  o.History(),
		EndReason: EndReason(playErr),
		StartedAt: started,
		EndedAt:   m.now(),
	}
	if playErr != nil {
		rec.Error = playErr.Error()
	}
	m.save(logger, rec)

	switch {
	case playErr == nil:
		logger.Info("match_finished", zap.Int("plies", len(rec.MovesUCI)))
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(playErr, match.ErrActuation):
		return playErr
	default:
		logger.Warn("match_abandoned", zap.String("reason", rec.EndReason), zap.Error(playErr))
	}
	m.transition(StateRequeue)
	return nil
}

func (m *Machine) save(logger *zap.Logger, rec domain.MatchRecord) {
	if m.recorder == nil {
		return
	}
	// Recording must outlive a cancelled session context.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.recorder.SaveMatch(ctx, rec); err != nil {
		logger.Warn("match_record_failed", zap.Error(err))
	}
}

func (m *Machine) requeue(ctx context.Context) error {
	if err := sleep(ctx, m.cfg.RequeueDelay); err != nil {
		return err
	}
	if live, err := m.site.InProgress(ctx); err == nil && live {
		m.transition(StateMatchFound)
		return nil
	}
	ok, err := m.site.Requeue(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ErrRequeue, err)
	}
	if ok {
		m.transition(StateWaitingForMatch)
	}
	return nil
}

func (m *Machine) transition(next State) {
	prev := State(m.state.Swap(int32(next)))
	if prev != next {
		m.logger.Info("session_state", zap.Stringer("from", prev), zap.Stringer("to", next))
	}
}

// restartCause selects the match errors after which the oracle process
// must not be reused.
func restartCause(err error) error {
	if errors.Is(err, oracle.ErrProtocol) || errors.Is(err, oracle.ErrMoveDecode) || errors.Is(err, errPlayAborted) {
		return err
	}
	return nil
}

// EndReason classifies how a match ended for the journal. A search that ran
// past its own deadline is an oracle error, not a cancellation.
func EndReason(err error) string {
	switch {
	case err == nil:
		return domain.EndFinished
	case errors.Is(err, context.Canceled):
		return domain.EndCancelled
	case errors.Is(err, inference.ErrDesync):
		return domain.EndDesync
	case errors.Is(err, oracle.ErrProtocol), errors.Is(err, oracle.ErrMoveDecode):
		return domain.EndOracleError
	case errors.Is(err, match.ErrActuation):
		return domain.EndActuationError
	case errors.Is(err, match.ErrObserver):
		return domain.EndObserverError
	case errors.Is(err, context.DeadlineExceeded):
		return domain.EndCancelled
	default:
		return domain.EndError
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
