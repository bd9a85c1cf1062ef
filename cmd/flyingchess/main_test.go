package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/SebastianHall69/FlyingChess1995XL/internal/inference"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LOG_TO_CONSOLE", "false")
	root := rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestInferCommand(t *testing.T) {
	out, err := execute(t, "infer",
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR",
		"rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR")
	require.NoError(t, err)
	require.Equal(t, "e2e4\n", out)
}

func TestInferCommandNoMove(t *testing.T) {
	start := "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR"
	out, err := execute(t, "infer", start, start)
	require.NoError(t, err)
	require.Equal(t, "no move\n", out)
}

func TestInferCommandDesync(t *testing.T) {
	out, err := execute(t, "infer",
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR",
		"rnbqkbnr/pppppppp/8/8/8/8/1PPPPPPP/RNBQKBNR")
	require.ErrorIs(t, err, inference.ErrDesync)
	require.Contains(t, out, "desync: 1 squares changed")
}

func TestInferCommandArgs(t *testing.T) {
	_, err := execute(t, "infer", "only-one")
	require.Error(t, err)

	_, err = execute(t, "infer", "not/a/fen", "x")
	require.Error(t, err)
}
