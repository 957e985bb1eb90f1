package game

import (
	"strings"

	"inotherwords/internal/types"
)

// The category can always be revealed. Puzzle hints stay locked until the
// player has at least one incorrect guess; each index is revealed at most
// once, in any order.

func CanRevealCategory() bool { return true }

func HintsUnlocked(hasIncorrectGuess bool) bool {
	return hasIncorrectGuess
}

func CanRevealHint(hasIncorrectGuess bool, numHints int, revealed map[int]bool, index int) bool {
	if !HintsUnlocked(hasIncorrectGuess) {
		return false
	}
	if index < 0 || index >= numHints {
		return false
	}
	return !revealed[index]
}

// NextHint returns the lowest unrevealed hint index.
func NextHint(numHints int, revealed map[int]bool) (int, bool) {
	for i := 0; i < numHints; i++ {
		if !revealed[i] {
			return i, true
		}
	}
	return 0, false
}

func CategoryDisplayName(c types.Category) string {
	switch c {
	case types.CategoryMoviesTV:
		return "Movies & TV"
	case types.CategoryUncategorized, "":
		return "General"
	default:
		s := string(c)
		return s[:1] + strings.ToLower(s[1:])
	}
}

func CategoryIcon(c types.Category) string {
	switch c {
	case types.CategoryMusic:
		return "🎵"
	case types.CategoryMoviesTV:
		return "🎬"
	case types.CategoryGames:
		return "🎮"
	case types.CategorySports:
		return "⚽"
	case types.CategoryBooks:
		return "📚"
	default:
		return "❓"
	}
}
