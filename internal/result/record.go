// Package result defines the game result record written to the game log at
// the end of every game, whichever architecture ran it.
package result

import (
	"sort"
	"time"
)

type Player struct {
	Username      string `json:"username"`
	Score         int    `json:"score"`
	HP            int    `json:"hp"`
	Alive         bool   `json:"alive"`
	ElapsedMillis int64  `json:"elapsedMillis"`
}

type Metadata struct {
	Winner       string            `json:"winner"`
	MapName      string            `json:"mapName"`
	WinMode      string            `json:"winMode"`
	MaxPlayers   int               `json:"maxPlayers"`
	Architecture string            `json:"architecture"`
	TotalFrames  *uint64           `json:"totalFrames,omitempty"`
	FinalReason  string            `json:"finalReason,omitempty"`
	Events       map[string]string `json:"events,omitempty"`
}

type Record struct {
	RoomID    int64     `json:"roomId"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
	Players   []Player  `json:"players"`
	Metadata  Metadata  `json:"metadata"`
}

// Winner picks the highest score. Ties go to the lexicographically smallest
// username so the same final state always names the same winner.
func Winner(players []Player) string {
	if len(players) == 0 {
		return ""
	}
	ranked := append([]Player(nil), players...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Username < ranked[j].Username
	})
	return ranked[0].Username
}

// Scores flattens players into a username to score map.
func Scores(players []Player) map[string]int {
	out := make(map[string]int, len(players))
	for _, p := range players {
		out[p.Username] = p.Score
	}
	return out
}

// Standing is one player's line on the leaderboard.
type Standing struct {
	Username   string `json:"username"`
	Games      int    `json:"games"`
	Wins       int    `json:"wins"`
	TotalScore int64  `json:"totalScore"`
	BestScore  int    `json:"bestScore"`
}
