// Package journal records finished matches.
package journal

import (
	"fmt"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"

	"github.com/SebastianHall69/FlyingChess1995XL/internal/domain"
)

const botName = "FlyingChess"

// Annotate fills MovesSAN and PGN from MovesUCI. Replay stops at the first
// move the rules library rejects; the UCI history is left untouched.
func Annotate(rec *domain.MatchRecord) {
	if rec == nil {
		return
	}
	game := nchess.NewGame()
	san := make([]string, 0, len(rec.MovesUCI))
	for _, raw := range rec.MovesUCI {
		pos := game.Position()
		if err := game.PushNotationMove(strings.ToLower(strings.TrimSpace(raw)), nchess.UCINotation{}, nil); err != nil {
			break
		}
		moves := game.Moves()
		san = append(san, nchess.AlgebraicNotation{}.Encode(pos, moves[len(moves)-1]))
	}
	rec.MovesSAN = san
	rec.PGN = buildPGN(rec)
}

func buildPGN(rec *domain.MatchRecord) string {
	var b strings.Builder
	date := rec.EndedAt
	if date.IsZero() {
		date = time.Now()
	}
	white, black := botName, "Opponent"
	if rec.Color == "dark" {
		white, black = black, white
	}
	b.WriteString("[Event \"Online match\"]\n")
	b.WriteString("[Site \"chess.com\"]\n")
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", white))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", black))
	if id := strings.TrimSpace(rec.ID); id != "" {
		b.WriteString(fmt.Sprintf("[Round \"%s\"]\n", sanitizePGN(id)))
	}
	if reason := strings.TrimSpace(rec.EndReason); reason != "" {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(reason)))
	}
	b.WriteString("[Result \"*\"]\n\n")

	for i := 0; i < len(rec.MovesSAN); i += 2 {
		b.WriteString(fmt.Sprintf("%d. %s", i/2+1, rec.MovesSAN[i]))
		if i+1 < len(rec.MovesSAN) {
			b.WriteString(" ")
			b.WriteString(rec.MovesSAN[i+1])
		}
		b.WriteString(" ")
	}
	b.WriteString("*")
	return b.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
