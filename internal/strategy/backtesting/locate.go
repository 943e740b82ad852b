package backtesting

import (
	"time"

	"haBacktest/internal/domain"
)

// LocateSignalBar finds the bar for a signal date: the bar on the same calendar
// day if one exists, otherwise the bar nearest in absolute days (earliest wins
// ties). maxDistance bounds the nearest match; zero disables the bound.
func LocateSignalBar(bars []domain.HABar, date time.Time, maxDistance time.Duration) (int, bool) {
	if len(bars) == 0 {
		return -1, false
	}

	y, m, d := date.Date()
	for i, b := range bars {
		by, bm, bd := b.Time.Date()
		if by == y && bm == m && bd == d {
			return i, true
		}
	}

	target := truncateDay(date)
	best, bestDist := -1, time.Duration(0)
	for i, b := range bars {
		dist := truncateDay(b.Time).Sub(target)
		if dist < 0 {
			dist = -dist
		}
		if best < 0 || dist < bestDist {
			best, bestDist = i, dist
		}
	}
	if maxDistance > 0 && bestDist > maxDistance {
		return -1, false
	}
	return best, true
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
