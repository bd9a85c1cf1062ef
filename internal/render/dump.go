package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"go.uber.org/zap"

	"github.com/SebastianHall69/FlyingChess1995XL/internal/board"
	"github.com/SebastianHall69/FlyingChess1995XL/internal/inference"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// DesyncDumper writes <match>-before.png and <match>-after.png with the
// changed squares outlined.
type DesyncDumper struct {
	dir      string
	renderer *Renderer
	logger   *zap.Logger
}

func NewDesyncDumper(dir string, renderer *Renderer, logger *zap.Logger) *DesyncDumper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DesyncDumper{dir: dir, renderer: renderer, logger: logger}
}

func (d *DesyncDumper) ReportDesync(ctx context.Context, matchID string, before, after board.Board, derr *inference.DesyncError) error {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("create dump dir: %w", err)
	}
	changed := before.Diff(after)
	base := unsafeName.ReplaceAllString(matchID, "_")
	if base == "" {
		base = "match"
	}

	var paths []string
	for _, snap := range []struct {
		suffix string
		b      board.Board
	}{{"before", before}, {"after", after}} {
		data, err := d.renderer.RenderPNG(ctx, snap.b, changed, false)
		if err != nil {
			return err
		}
		path := filepath.Join(d.dir, fmt.Sprintf("%s-%s.png", base, snap.suffix))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}

	fields := []zap.Field{zap.String("match_id", matchID), zap.Strings("files", paths), zap.Int("changed", len(changed))}
	if derr != nil {
		fields = append(fields, zap.String("reason", derr.Error()))
	}
	d.logger.Info("desync_dumped", fields...)
	return nil
}
