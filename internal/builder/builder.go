// Package builder assembles the bot from configuration.
package builder

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/SebastianHall69/FlyingChess1995XL/internal/bridge"
	"github.com/SebastianHall69/FlyingChess1995XL/internal/chess/uci"
	"github.com/SebastianHall69/FlyingChess1995XL/internal/config"
	"github.com/SebastianHall69/FlyingChess1995XL/internal/journal"
	"github.com/SebastianHall69/FlyingChess1995XL/internal/match"
	"github.com/SebastianHall69/FlyingChess1995XL/internal/oracle"
	"github.com/SebastianHall69/FlyingChess1995XL/internal/render"
	"github.com/SebastianHall69/FlyingChess1995XL/internal/session"
	"github.com/SebastianHall69/FlyingChess1995XL/internal/site/chesscom"
	"github.com/SebastianHall69/FlyingChess1995XL/internal/webdriver"
)

const (
	driverReadyAttempts = 10
	driverReadyInterval = 500 * time.Millisecond
)

// Driver is everything the state machines need from the game surface.
type Driver interface {
	match.Observer
	match.Actuator
	session.Site
}

type closer struct {
	name string
	fn   func(ctx context.Context) error
}

type Deps struct {
	Session *session.Machine
	Pool    *uci.Pool
	Journal *journal.Multi
	// History is nil when no Redis URL is configured.
	History *journal.RedisStore

	logger  *zap.Logger
	closers []closer
}

func (d *Deps) push(name string, fn func(ctx context.Context) error) {
	d.closers = append(d.closers, closer{name: name, fn: fn})
}

// Close releases resources in reverse order of acquisition.
func (d *Deps) Close(ctx context.Context) error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		c := d.closers[i]
		if err := c.fn(ctx); err != nil {
			d.logger.Warn("close_failed", zap.String("resource", c.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (deps *Deps, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Deps{logger: logger}
	defer func() {
		if err != nil {
			_ = d.Close(context.Background())
		}
	}()

	pool, err := uci.NewPool(uci.PoolConfig{
		BinaryPath: cfg.StockfishPath,
		Options: uci.Options{
			Threads:    cfg.EngineThreads,
			SkillLevel: cfg.EngineSkillLevel,
			HashMB:     cfg.EngineHashMB,
			Elo:        cfg.EngineElo,
		},
		Capacity: 1,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init engine pool: %w", err)
	}
	d.Pool = pool
	d.push("engine_pool", func(context.Context) error { return pool.Close() })
	provider := oracle.NewProvider(pool, SearchLimits(cfg), logger)

	journalSinks, err := d.openJournal(ctx, cfg)
	if err != nil {
		return nil, err
	}
	d.Journal = journal.NewMulti(logger, journalSinks...)

	renderer, err := render.NewRenderer(0)
	if err != nil {
		return nil, fmt.Errorf("init renderer: %w", err)
	}
	dumper := render.NewDesyncDumper(cfg.DumpDir, renderer, logger)

	drv, err := d.openDriver(ctx, cfg)
	if err != nil {
		return nil, err
	}

	runner := match.NewRunner(drv, drv, match.Config{
		PollInterval: cfg.MatchPollInterval,
		SettleDelay:  cfg.SettleDelay,
		ThinkMin:     cfg.ThinkMin,
		ThinkMax:     cfg.ThinkMax,
	}, match.WithDesyncReporter(dumper), match.WithLogger(logger))

	d.Session = session.New(drv, runner, OracleSource(provider), d.Journal, session.Config{
		PollInterval: cfg.SessionPollInterval,
		RequeueDelay: cfg.RequeueDelay,
	}, logger)
	return d, nil
}

// SearchLimits maps the search settings onto the engine's go command.
func SearchLimits(cfg *config.AppConfig) uci.Limits {
	return uci.Limits{
		Depth:          cfg.SearchDepth,
		MoveTimeMillis: int(cfg.SearchMoveTime.Milliseconds()),
		NodeCap:        cfg.SearchNodes,
	}
}

// OracleSource adapts a Provider to the session's lease callback.
func OracleSource(p *oracle.Provider) session.OracleSource {
	return func(ctx context.Context) (match.Oracle, func(error), error) {
		lease, err := p.Acquire(ctx)
		if err != nil {
			return nil, nil, err
		}
		return lease, lease.Release, nil
	}
}

func (d *Deps) openJournal(ctx context.Context, cfg *config.AppConfig) ([]journal.Sink, error) {
	var sinks []journal.Sink
	if strings.TrimSpace(cfg.RedisURL) != "" {
		store, err := journal.NewRedisStore(ctx, cfg.RedisURL, cfg.JournalRecentLimit)
		if err != nil {
			return nil, fmt.Errorf("init redis journal: %w", err)
		}
		d.History = store
		d.push("redis_journal", func(context.Context) error { return store.Close() })
		sinks = append(sinks, store)
	}
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		repo, err := journal.NewRepository(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres journal: %w", err)
		}
		d.push("postgres_journal", func(context.Context) error { return repo.Close() })
		sinks = append(sinks, repo)
	}
	if len(sinks) == 0 {
		d.logger.Info("journal_disabled")
	}
	return sinks, nil
}

func (d *Deps) openDriver(ctx context.Context, cfg *config.AppConfig) (Driver, error) {
	switch cfg.Driver {
	case config.DriverBridge:
		b := bridge.New(bridge.Config{URL: cfg.BridgeWSURL}, d.logger)
		if err := b.Connect(ctx); err != nil {
			return nil, err
		}
		d.push("bridge", b.Close)
		return b, nil
	case config.DriverWebDriver, "":
		return d.openWebDriver(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown driver %q", cfg.Driver)
	}
}

func (d *Deps) openWebDriver(ctx context.Context, cfg *config.AppConfig) (Driver, error) {
	client := webdriver.NewClient(cfg.WebDriverURL,
		webdriver.WithRetry(cfg.WebDriverRetries),
		webdriver.WithLogger(d.logger))
	if cfg.ChromedriverPath != "" {
		port, err := driverPort(cfg.WebDriverURL)
		if err != nil {
			return nil, err
		}
		proc, err := webdriver.StartDriver(ctx, cfg.ChromedriverPath, port, client, d.logger)
		if err != nil {
			return nil, err
		}
		d.push("chromedriver", func(context.Context) error { return proc.Close() })
	} else if err := client.WaitReady(ctx, driverReadyAttempts, driverReadyInterval); err != nil {
		return nil, err
	}

	sess, err := client.NewSession(ctx, chesscom.Capabilities())
	if err != nil {
		return nil, err
	}
	d.push("browser_session", sess.Delete)
	return chesscom.New(sess, chesscom.Credentials{
		Username: cfg.ChessComUsername,
		Password: cfg.ChessComPassword,
	}, d.logger), nil
}

// driverPort extracts the port a spawned chromedriver must listen on.
func driverPort(raw string) (int, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return 0, fmt.Errorf("parse webdriver url: %w", err)
	}
	if u.Scheme != "http" {
		return 0, fmt.Errorf("webdriver url: unsupported scheme %q", u.Scheme)
	}
	p := u.Port()
	if p == "" {
		return 9515, nil
	}
	port, err := strconv.Atoi(p)
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("webdriver url: bad port %q", p)
	}
	return port, nil
}
