package journal

import (
	"context"

	"go.uber.org/zap"

	"github.com/SebastianHall69/FlyingChess1995XL/internal/domain"
)

// Sink stores one match record.
type Sink interface {
	SaveMatch(ctx context.Context, rec domain.MatchRecord) error
}

// Multi annotates a record once and writes it to every sink. Sink failures
// are logged; the journal never fails a session.
type Multi struct {
	sinks  []Sink
	logger *zap.Logger
}

func NewMulti(logger *zap.Logger, sinks ...Sink) *Multi {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Multi{sinks: sinks, logger: logger}
}

func (m *Multi) SaveMatch(ctx context.Context, rec domain.MatchRecord) error {
	Annotate(&rec)
	for _, s := range m.sinks {
		if err := s.SaveMatch(ctx, rec); err != nil {
			m.logger.Warn("journal_sink_failed", zap.String("match_id", rec.ID), zap.Error(err))
		}
	}
	m.logger.Info("match_recorded",
		zap.String("match_id", rec.ID),
		zap.String("end_reason", rec.EndReason),
		zap.Int("plies", len(rec.MovesUCI)),
		zap.Int("annotated", len(rec.MovesSAN)))
	return nil
}
