package game

import (
	"fmt"
	"time"

	"inotherwords/internal/types"
)

// StatsView is what the stats card renders. Gated fields are only filled in
// for subscribers.
type StatsView struct {
	TotalGames int
	GamesWon   int
	WinRate    string
	LastPlayed string

	Gated          bool
	CurrentStreak  string
	LongestStreak  string
	AverageGuesses string
	AverageTime    string
	BestTime       string
}

func ProjectStats(s types.PlayerStats, subscribed bool) StatsView {
	v := StatsView{
		TotalGames: s.TotalGames,
		GamesWon:   s.GamesWon,
		WinRate:    fmt.Sprintf("%.1f%%", s.WinRate),
		LastPlayed: formatPlayedDate(s.LastPlayedAt),
		Gated:      !subscribed,
	}
	if !subscribed {
		return v
	}
	v.CurrentStreak = formatOptionalInt(s.CurrentStreak)
	v.LongestStreak = formatOptionalInt(s.LongestStreak)
	if s.AverageGuesses != nil {
		v.AverageGuesses = fmt.Sprintf("%.1f", *s.AverageGuesses)
	} else {
		v.AverageGuesses = "N/A"
	}
	v.AverageTime = FormatSolveTime(s.AverageSolveTimeMs)
	v.BestTime = FormatSolveTime(s.FastestSolveMs)
	return v
}

// FormatSolveTime renders milliseconds as m:ss.
func FormatSolveTime(ms *int64) string {
	if ms == nil || *ms <= 0 {
		return "N/A"
	}
	minutes := *ms / 60000
	seconds := (*ms % 60000) / 1000
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

func formatOptionalInt(n *int) string {
	if n == nil {
		return "0"
	}
	return fmt.Sprintf("%d", *n)
}

func formatPlayedDate(s *string) string {
	if s == nil || *s == "" {
		return "Never"
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return "Never"
	}
	return t.Format("Jan 2, 2006")
}
