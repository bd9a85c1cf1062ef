// Package chesscom drives chess.com through a WebDriver session.
package chesscom

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/SebastianHall69/FlyingChess1995XL/internal/board"
	"github.com/SebastianHall69/FlyingChess1995XL/internal/webdriver"
)

const (
	loginURL = "https://www.chess.com/login_and_go?returnUrl=https://www.chess.com/play/online"

	selUsername    = "#login-username"
	selPassword    = "#login-password"
	selLoginButton = "#login"

	selBoard       = "#board-single"
	selBottomClock = "#board-layout-player-bottom .clock-bottom"
	selDrawButton  = "#board-layout-sidebar .draw-button-label"

	selGameOverButtons = "div.game-over-buttons-component"
	selDeclineRematch  = "button[aria-label='Decline Rematch']"
	selNewGame         = "button:not([aria-label])"

	pieceClassesScript = `
const board = document.getElementById('board-single');
if (!board) return [];
return Array.from(board.querySelectorAll('.piece')).map(el => el.className);`
)

const (
	loginPageDelay = 500 * time.Millisecond
	loginChecks    = 10
	loginInterval  = 500 * time.Millisecond
	pointerDelay   = 220
)

// ChromeArgs are the browser switches used for a long-running game session.
func ChromeArgs() []string {
	return []string{
		"--disable-dev-shm-usage",
		"--no-sandbox",
		"--disable-extensions",
		"--disable-plugins",
		"--disable-features=TranslateUI",
		"--disable-ipc-flooding-protection",
		"--disable-background-timer-throttling",
		"--disable-backgrounding-occluded-windows",
		"--disable-renderer-backgrounding",
		"--memory-pressure-off",
		"--aggressive-cache-discard",
	}
}

// Capabilities requests Chrome with ChromeArgs and an eager page load.
func Capabilities() webdriver.Capabilities {
	caps := webdriver.ChromeCapabilities(ChromeArgs()...)
	caps["pageLoadStrategy"] = "eager"
	return caps
}

type Credentials struct {
	Username string
	Password string
}

// Site implements the observer, actuator and account collaborators for the
// chess.com web client.
type Site struct {
	page   *webdriver.Session
	creds  Credentials
	logger *zap.Logger

	loginInterval time.Duration
}

func New(page *webdriver.Session, creds Credentials, logger *zap.Logger) *Site {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Site{page: page, creds: creds, logger: logger, loginInterval: loginInterval}
}

// Login fills the login form and submits it, then waits for the browser to
// leave the login page. Missing credentials, or a page that never moves on,
// report false.
func (s *Site) Login(ctx context.Context) (bool, error) {
	if s.creds.Username == "" || s.creds.Password == "" {
		s.logger.Warn("login_skipped", zap.String("reason", "missing credentials"))
		return false, nil
	}
	if err := s.page.Navigate(ctx, loginURL); err != nil {
		return false, fmt.Errorf("open login page: %w", err)
	}
	if err := sleep(ctx, loginPageDelay); err != nil {
		return false, err
	}
	for _, field := range []struct{ sel, text string }{
		{selUsername, s.creds.Username},
		{selPassword, s.creds.Password},
	} {
		el, err := s.page.FindElement(ctx, field.sel)
		if err != nil {
			return false, err
		}
		if err := el.SendKeys(ctx, field.text); err != nil {
			return false, fmt.Errorf("type into %s: %w", field.sel, err)
		}
	}
	submit, err := s.page.FindElement(ctx, selLoginButton)
	if err != nil {
		return false, err
	}
	if err := submit.Click(ctx); err != nil {
		return false, fmt.Errorf("submit login: %w", err)
	}
	for range loginChecks {
		if err := sleep(ctx, s.loginInterval); err != nil {
			return false, err
		}
		u, err := s.page.CurrentURL(ctx)
		if err != nil {
			return false, fmt.Errorf("read url after login: %w", err)
		}
		if !strings.Contains(u, "/login") {
			s.logger.Info("login_succeeded", zap.String("username", s.creds.Username), zap.String("url", u))
			return true, nil
		}
	}
	s.logger.Warn("login_rejected", zap.String("username", s.creds.Username))
	return false, nil
}

// InProgress reports whether the in-game draw button is shown.
func (s *Site) InProgress(ctx context.Context) (bool, error) {
	return s.page.Exists(ctx, selDrawButton)
}

func (s *Site) PlayerColor(ctx context.Context) (board.Color, error) {
	class, err := s.bottomClockClass(ctx)
	if err != nil {
		return board.NoColor, err
	}
	if strings.Contains(class, "clock-black") {
		return board.Dark, nil
	}
	return board.Light, nil
}

func (s *Site) IsMyTurn(ctx context.Context) (bool, error) {
	class, err := s.bottomClockClass(ctx)
	if err != nil {
		return false, err
	}
	return strings.Contains(class, "clock-player-turn"), nil
}

func (s *Site) bottomClockClass(ctx context.Context) (string, error) {
	clock, err := s.page.FindElement(ctx, selBottomClock)
	if err != nil {
		return "", err
	}
	class, _, err := clock.Attribute(ctx, "class")
	return class, err
}

func (s *Site) Board(ctx context.Context) (board.Board, error) {
	var classes []string
	if err := s.page.ExecuteScript(ctx, pieceClassesScript, nil, &classes); err != nil {
		return board.Board{}, fmt.Errorf("read pieces: %w", err)
	}
	return board.ParsePieceClasses(classes)
}

// Play clicks the origin square, then the destination square. Promotions
// rely on the site's auto-queen setting.
func (s *Site) Play(ctx context.Context, m board.Move, flipped bool) error {
	el, err := s.page.FindElement(ctx, selBoard)
	if err != nil {
		return err
	}
	rect, err := el.Rect(ctx)
	if err != nil {
		return fmt.Errorf("board rect: %w", err)
	}
	if rect.Width <= 0 {
		return errors.New("board has no width")
	}
	fx, fy := SquareOffset(m.From, rect.Width, flipped)
	tx, ty := SquareOffset(m.To, rect.Width, flipped)

	steps := append(webdriver.PointerClick(el, fx, fy), webdriver.PointerStep{Type: "pause", Duration: pointerDelay})
	steps = append(steps, webdriver.PointerClick(el, tx, ty)...)
	if err := s.page.PerformActions(ctx, steps); err != nil {
		return err
	}
	s.logger.Debug("move_clicked", zap.String("move", m.UCI()), zap.Bool("flipped", flipped))
	return nil
}

// Requeue works the game-over panel: a pending rematch offer is declined
// first (not yet requeued), otherwise "new game" is clicked.
func (s *Site) Requeue(ctx context.Context) (bool, error) {
	panel, err := s.page.FindElement(ctx, selGameOverButtons)
	if errors.Is(err, webdriver.ErrNoSuchElement) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	decline, err := optional(panel.FindElement(ctx, selDeclineRematch))
	if err != nil {
		return false, err
	}
	if decline != nil {
		s.logger.Info("rematch_declined")
		return false, decline.Click(ctx)
	}

	newGame, err := optional(panel.FindElement(ctx, selNewGame))
	if err != nil {
		return false, err
	}
	if newGame == nil {
		return false, nil
	}
	if err := newGame.Click(ctx); err != nil {
		return false, err
	}
	s.logger.Info("new_game_requested")
	return true, nil
}

func optional(el *webdriver.Element, err error) (*webdriver.Element, error) {
	if errors.Is(err, webdriver.ErrNoSuchElement) {
		return nil, nil
	}
	return el, err
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
