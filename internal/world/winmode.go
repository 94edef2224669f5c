package world

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidWinMode = errors.New("invalid win mode")

type WinKind uint8

const (
	WinByScore WinKind = iota + 1
	WinByTime
)

// WinMode is a parsed victory condition: "SCORE_<n>" or "TIME_<n>m".
type WinMode struct {
	Kind      WinKind
	Threshold int           // WinByScore
	Limit     time.Duration // WinByTime
	raw       string
}

// ParseWinMode parses a win mode string. Malformed strings are rejected so
// a room can never be created with an undefined victory condition.
func ParseWinMode(s string) (WinMode, error) {
	switch {
	case strings.HasPrefix(s, "SCORE_"):
		n, err := strconv.Atoi(strings.TrimPrefix(s, "SCORE_"))
		if err != nil || n <= 0 {
			return WinMode{}, fmt.Errorf("%w: %q", ErrInvalidWinMode, s)
		}
		return WinMode{Kind: WinByScore, Threshold: n, raw: s}, nil
	case strings.HasPrefix(s, "TIME_") && strings.HasSuffix(s, "m"):
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(s, "TIME_"), "m"))
		if err != nil || n <= 0 {
			return WinMode{}, fmt.Errorf("%w: %q", ErrInvalidWinMode, s)
		}
		return WinMode{Kind: WinByTime, Limit: time.Duration(n) * time.Minute, raw: s}, nil
	}
	return WinMode{}, fmt.Errorf("%w: %q", ErrInvalidWinMode, s)
}

func (m WinMode) String() string { return m.raw }
