// Package match drives a single game from the first observation to the
// moment the site stops reporting a game in progress.
package match

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/SebastianHall69/FlyingChess1995XL/internal/board"
	"github.com/SebastianHall69/FlyingChess1995XL/internal/inference"
)

type State int

const (
	StateStart State = iota
	StateMyTurn
	StateWaitingForTurn
	StateOver
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateMyTurn:
		return "my_turn"
	case StateWaitingForTurn:
		return "waiting_for_turn"
	case StateOver:
		return "over"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const (
	defaultPollInterval = 500 * time.Millisecond
	confirmAttempts     = 10
)

type Config struct {
	PollInterval time.Duration
	SettleDelay  time.Duration
	ThinkMin     time.Duration
	ThinkMax     time.Duration
	Seed         int64
}

// Runner plays matches. One Runner may play many matches, one at a time.
type Runner struct {
	observer Observer
	actuator Actuator
	reporter DesyncReporter
	cfg      Config
	think    *thinker
	logger   *zap.Logger
}

type Option func(*Runner)

// WithDesyncReporter sets where failed snapshot pairs are sent.
func WithDesyncReporter(r DesyncReporter) Option {
	return func(m *Runner) { m.reporter = r }
}

func WithLogger(l *zap.Logger) Option {
	return func(m *Runner) {
		if l != nil {
			m.logger = l
		}
	}
}

func NewRunner(observer Observer, actuator Actuator, cfg Config, opts ...Option) *Runner {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	r := &Runner{
		observer: observer,
		actuator: actuator,
		cfg:      cfg,
		think:    newThinker(cfg.ThinkMin, cfg.ThinkMax, seed),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Outcome summarises one match.
type Outcome struct {
	Color board.Color
	State State
}

// play holds the rolling state of one match.
type play struct {
	id      string
	oracle  Oracle
	logger  *zap.Logger
	state   State
	color   board.Color
	flipped bool
	last    board.Board
}

// Play runs one match until the site reports it over, ctx ends, or a step
// fails. Failures are never retried here.
func (r *Runner) Play(ctx context.Context, id string, oracle Oracle) (Outcome, error) {
	p := &play{
		id:     id,
		oracle: oracle,
		logger: r.logger.With(zap.String("match_id", id)),
		state:  StateStart,
		last:   board.Starting(),
	}
	err := r.loop(ctx, p)
	return Outcome{Color: p.color, State: p.state}, err
}

func (r *Runner) loop(ctx context.Context, p *play) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		live, err := r.observer.InProgress(ctx)
		if err != nil {
			return fmt.Errorf("%w: in progress: %w", ErrObserver, err)
		}
		if !live {
			r.transition(p, StateOver)
			return nil
		}

		switch p.state {
		case StateStart:
			if err := r.start(ctx, p); err != nil {
				return err
			}
		case StateWaitingForTurn:
			mine, err := r.observer.IsMyTurn(ctx)
			if err != nil {
				return fmt.Errorf("%w: turn: %w", ErrObserver, err)
			}
			if mine {
				r.transition(p, StateMyTurn)
				continue
			}
		case StateMyTurn:
			if err := r.takeTurn(ctx, p); err != nil {
				return err
			}
			r.transition(p, StateWaitingForTurn)
		}

		if err := sleep(ctx, r.cfg.PollInterval); err != nil {
			return err
		}
	}
}

func (r *Runner) start(ctx context.Context, p *play) error {
	color, err := r.observer.PlayerColor(ctx)
	if err != nil {
		return fmt.Errorf("%w: color: %w", ErrObserver, err)
	}
	if color != board.Light && color != board.Dark {
		return fmt.Errorf("%w: unknown player color", ErrObserver)
	}
	if err := p.oracle.Reset(ctx); err != nil {
		return err
	}
	p.color = color
	p.flipped = color == board.Dark
	p.logger.Info("match_started", zap.Stringer("color", color))
	if color == board.Light {
		r.transition(p, StateMyTurn)
	} else {
		r.transition(p, StateWaitingForTurn)
	}
	return nil
}

// takeTurn: snapshot, infer the opponent's move, ask the oracle, play, and
// confirm the board now shows the played move.
func (r *Runner) takeTurn(ctx context.Context, p *play) error {
	snap, err := r.snapshot(ctx)
	if err != nil {
		return err
	}
	opp, err := inference.Infer(p.last, snap)
	if err != nil {
		return r.desync(ctx, p, p.last, snap, err)
	}
	if opp != nil {
		p.oracle.Record(*opp)
		p.logger.Info("opponent_move", zap.String("move", opp.UCI()), zap.Int("ply", len(p.oracle.History())))
	}

	best, err := p.oracle.BestMove(ctx)
	if err != nil {
		return err
	}
	if err := sleep(ctx, r.think.next()); err != nil {
		return err
	}
	if err := r.actuator.Play(ctx, best, p.flipped); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrActuation, best.UCI(), err)
	}
	p.oracle.Record(best)
	p.logger.Info("own_move", zap.String("move", best.UCI()), zap.Int("ply", len(p.oracle.History())))

	post, err := r.confirm(ctx, p, snap, best)
	if err != nil {
		return err
	}
	p.last.Replace(post)
	return nil
}

// confirm polls until the board differs from pre by exactly the played move.
// A board that has not changed yet is polled again; anything else is a desync.
func (r *Runner) confirm(ctx context.Context, p *play, pre board.Board, played board.Move) (board.Board, error) {
	var post board.Board
	for attempt := 1; attempt <= confirmAttempts; attempt++ {
		var err error
		post, err = r.snapshot(ctx)
		if err != nil {
			return board.Board{}, err
		}
		seen, err := inference.Infer(pre, post)
		if err != nil {
			return board.Board{}, r.desync(ctx, p, pre, post, err)
		}
		if seen == nil {
			continue
		}
		if *seen != played {
			changed := pre.Diff(post)
			return board.Board{}, r.desync(ctx, p, pre, post, &inference.DesyncError{
				Count:   len(changed),
				Squares: changed,
				Reason:  fmt.Sprintf("board shows %s after playing %s", seen.UCI(), played.UCI()),
			})
		}
		return post, nil
	}
	changed := pre.Diff(post)
	return board.Board{}, r.desync(ctx, p, pre, post, &inference.DesyncError{
		Count:   len(changed),
		Squares: changed,
		Reason:  fmt.Sprintf("%s never appeared on the board", played.UCI()),
	})
}

func (r *Runner) snapshot(ctx context.Context) (board.Board, error) {
	if err := sleep(ctx, r.cfg.SettleDelay); err != nil {
		return board.Board{}, err
	}
	b, err := r.observer.Board(ctx)
	if err != nil {
		return board.Board{}, fmt.Errorf("%w: board: %w", ErrObserver, err)
	}
	return b, nil
}

func (r *Runner) desync(ctx context.Context, p *play, before, after board.Board, err error) error {
	var derr *inference.DesyncError
	if !errors.As(err, &derr) {
		return err
	}
	p.logger.Warn("board_desync", zap.Int("changed", derr.Count), zap.Error(derr))
	if r.reporter != nil {
		if rerr := r.reporter.ReportDesync(ctx, p.id, before, after, derr); rerr != nil {
			p.logger.Warn("desync_report_failed", zap.Error(rerr))
		}
	}
	return err
}

func (r *Runner) transition(p *play, next State) {
	if p.state == next {
		return
	}
	p.logger.Debug("match_state", zap.Stringer("from", p.state), zap.Stringer("to", next))
	p.state = next
}
