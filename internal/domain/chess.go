package domain

import "time"

// End reasons recorded for a finished match.
const (
	EndFinished       = "finished"
	EndDesync         = "desync"
	EndOracleError    = "oracle_error"
	EndActuationError = "actuation_error"
	EndObserverError  = "observer_error"
	EndCancelled      = "cancelled"
	EndError          = "error"
)

// MatchRecord is one played match as written to the journal.
type MatchRecord struct {
	ID        string    `json:"id"`
	Color     string    `json:"color"`
	MovesUCI  []string  `json:"moves_uci"`
	MovesSAN  []string  `json:"moves_san,omitempty"`
	PGN       string    `json:"pgn,omitempty"`
	EndReason string    `json:"end_reason"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// Duration is the wall time between start and end.
func (r MatchRecord) Duration() time.Duration {
	if r.EndedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// MatchStats aggregates journal counters.
type MatchStats struct {
	Total    int64            `json:"total"`
	ByReason map[string]int64 `json:"by_reason"`
}
