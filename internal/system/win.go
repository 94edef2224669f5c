package system

import (
	"time"

	"github.com/rockfall/arena/internal/world"
)

// EndReason says which win condition ended a game.
type EndReason string

const (
	ReasonAllDead      EndReason = "ALL_DEAD"
	ReasonScoreReached EndReason = "SCORE_REACHED"
	ReasonTimeUp       EndReason = "TIME_UP"
	ReasonLastSurvivor EndReason = "LAST_SURVIVOR"
)

// CheckWin evaluates the win conditions in priority order and returns the
// first one met.
func CheckWin(w *world.World, now time.Time) (EndReason, bool) {
	alive := w.AliveCount()
	if alive == 0 {
		return ReasonAllDead, true
	}

	mode := w.WinMode()
	switch mode.Kind {
	case world.WinByScore:
		for _, p := range w.Players {
			if p.Alive && p.Score >= mode.Threshold {
				return ReasonScoreReached, true
			}
		}
	case world.WinByTime:
		if w.Elapsed(now) >= mode.Limit {
			return ReasonTimeUp, true
		}
	}

	if w.MaxPlayers() > 1 && alive == 1 {
		return ReasonLastSurvivor, true
	}
	return "", false
}
