package uci

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const exitReply = "<exit>"

// startFakeEngine wires a session to an in-process responder. Every line the
// session writes is forwarded to sent.
func startFakeEngine(t *testing.T, respond func(line string) []string) (*Session, <-chan string) {
	t.Helper()
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	sent := make(chan string, 256)

	go func() {
		defer outW.Close()
		sc := bufio.NewScanner(inR)
		for sc.Scan() {
			line := sc.Text()
			sent <- line
			for _, reply := range respond(line) {
				if reply == exitReply {
					inR.Close()
					return
				}
				if _, err := io.WriteString(outW, reply+"\n"); err != nil {
					return
				}
			}
		}
	}()

	s := newSession(inW, outR, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = s.Close() })
	return s, sent
}

func fakeStockfish(best string) func(string) []string {
	return func(line string) []string {
		switch {
		case line == "uci":
			return []string{"id name Fake", "option name Hash type spin", "uciok"}
		case line == "isready":
			return []string{"readyok"}
		case strings.HasPrefix(line, "go"):
			return []string{
				"info depth 1 seldepth 1 score cp 12 pv d2d4",
				"info depth 2 seldepth 2 score cp 31 nodes 40 pv " + best + " e7e5",
				"bestmove " + best + " ponder e7e5",
			}
		}
		return nil
	}
}

func drain(sent <-chan string) []string {
	var out []string
	for {
		select {
		case l := <-sent:
			out = append(out, l)
		case <-time.After(50 * time.Millisecond):
			return out
		}
	}
}

func TestSearchReplaysHistory(t *testing.T) {
	s, sent := startFakeEngine(t, fakeStockfish("g1f3"))
	ctx := context.Background()

	resp, err := s.Search(ctx, SearchRequest{Moves: []string{"e2e4", "e7e5"}, Limits: Limits{Depth: 1}})
	require.NoError(t, err)
	require.Equal(t, "g1f3", resp.BestMove)
	require.Equal(t, "e7e5", resp.Ponder)
	require.Equal(t, 2, resp.Info.Depth)
	require.Equal(t, 31, resp.Info.ScoreCP)
	require.Equal(t, []string{"g1f3", "e7e5"}, resp.Info.Principal)

	require.Equal(t, []string{"position startpos moves e2e4 e7e5", "go depth 1"}, drain(sent))
}

func TestSearchEmptyHistory(t *testing.T) {
	s, sent := startFakeEngine(t, fakeStockfish("e2e4"))

	resp, err := s.Search(context.Background(), SearchRequest{Limits: Limits{Depth: 3}})
	require.NoError(t, err)
	require.Equal(t, "e2e4", resp.BestMove)
	require.Equal(t, []string{"position startpos", "go depth 3"}, drain(sent))
}

func TestSearchEngineExit(t *testing.T) {
	s, _ := startFakeEngine(t, func(line string) []string {
		if strings.HasPrefix(line, "go") {
			return []string{"info depth 1", exitReply}
		}
		return nil
	})

	_, err := s.Search(context.Background(), SearchRequest{Limits: Limits{Depth: 1}})
	require.ErrorIs(t, err, ErrEngineExited)
}

func TestSearchDeadline(t *testing.T) {
	s, _ := startFakeEngine(t, func(string) []string { return nil })
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := s.Search(ctx, SearchRequest{Limits: Limits{Depth: 1}})
	require.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestSearchMalformedReply(t *testing.T) {
	s, _ := startFakeEngine(t, func(line string) []string {
		if strings.HasPrefix(line, "go") {
			return []string{"bestmove"}
		}
		return nil
	})

	_, err := s.Search(context.Background(), SearchRequest{Limits: Limits{Depth: 1}})
	require.ErrorIs(t, err, ErrMalformedReply)
}

func TestSearchRequiresLimits(t *testing.T) {
	s, sent := startFakeEngine(t, fakeStockfish("e2e4"))
	_, err := s.Search(context.Background(), SearchRequest{})
	require.Error(t, err)
	require.Empty(t, drain(sent))
}

func TestInitializeAppliesOptions(t *testing.T) {
	s, sent := startFakeEngine(t, fakeStockfish("e2e4"))

	require.NoError(t, s.initialize(context.Background(), Options{Threads: 2, HashMB: 16, SkillLevel: 5, Elo: 1500}))
	require.Equal(t, []string{
		"uci",
		"setoption name Threads value 2",
		"setoption name Hash value 16",
		"setoption name Skill Level value 5",
		"setoption name UCI_LimitStrength value true",
		"setoption name UCI_Elo value 1500",
		"isready",
	}, drain(sent))
}

func TestInitializeWithoutElo(t *testing.T) {
	s, sent := startFakeEngine(t, fakeStockfish("e2e4"))

	require.NoError(t, s.initialize(context.Background(), Options{HashMB: 16}))
	lines := drain(sent)
	require.Contains(t, lines, "setoption name Threads value 1")
	for _, l := range lines {
		require.NotContains(t, l, "UCI_Elo")
	}
}

func TestNewGameSynchronises(t *testing.T) {
	s, sent := startFakeEngine(t, fakeStockfish("e2e4"))

	require.NoError(t, s.NewGame(context.Background()))
	require.Equal(t, []string{"ucinewgame", "isready"}, drain(sent))
}

func TestCloseIsIdempotent(t *testing.T) {
	s, _ := startFakeEngine(t, fakeStockfish("e2e4"))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestBuildGoTokens(t *testing.T) {
	got, err := buildGoTokens(Limits{Depth: 1})
	require.NoError(t, err)
	require.Equal(t, []string{"go", "depth", "1"}, got)

	got, err = buildGoTokens(Limits{Depth: 8, MoveTimeMillis: 200, NodeCap: 1000})
	require.NoError(t, err)
	require.Equal(t, "go depth 8 movetime 200 nodes 1000", strings.Join(got, " "))

	_, err = buildGoTokens(Limits{})
	require.Error(t, err)
}

func TestComputeSearchTimeout(t *testing.T) {
	require.Equal(t, 6*time.Second, computeSearchTimeout(Limits{Depth: 1}))
	require.Equal(t, 9*time.Second, computeSearchTimeout(Limits{Depth: 30}))
	require.Equal(t, 20*time.Second, computeSearchTimeout(Limits{Depth: 99}))
	require.Equal(t, 7500*time.Millisecond, computeSearchTimeout(Limits{MoveTimeMillis: 500}))
	require.Equal(t, 6*time.Second, computeSearchTimeout(Limits{}))
}

func TestValidateOptions(t *testing.T) {
	require.NoError(t, validateOptions(Options{HashMB: 16, SkillLevel: 20}))
	require.Error(t, validateOptions(Options{HashMB: 16, SkillLevel: 21}))
	require.Error(t, validateOptions(Options{HashMB: 0}))
	require.Error(t, validateOptions(Options{HashMB: 16, Elo: -1}))
}
