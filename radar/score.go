package radar

import (
	"math"
	"sort"
	"time"

	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/db"
)

// Momentum labels of a category.
const (
	MomentumNew     = "new"
	MomentumSurging = "surging"
	MomentumRising  = "rising"
	MomentumStable  = "stable"
	MomentumFalling = "falling"
)

const (
	surgingTrend = 0.5
	risingTrend  = 0.1
	fallingTrend = -0.1
)

// Trend returns the relative change between two volumes. A zero previous
// volume counts as one.
func Trend(current, previous int64) float64 {
	return float64(current-previous) / float64(max(previous, 1))
}

// ClassifyMomentum labels a trend. Categories that had no volume in the
// previous window and have some now are new.
func ClassifyMomentum(current, previous int64, trend float64) string {
	switch {
	case previous == 0 && current > 0:
		return MomentumNew
	case trend >= surgingTrend:
		return MomentumSurging
	case trend >= risingTrend:
		return MomentumRising
	case trend <= fallingTrend:
		return MomentumFalling
	default:
		return MomentumStable
	}
}

// DecayedVolume weighs a volume by its age, halving it every halfLife.
func DecayedVolume(volume int64, age, halfLife time.Duration) float64 {
	if age <= 0 {
		return float64(volume)
	}
	return float64(volume) * math.Pow(0.5, age.Hours()/halfLife.Hours())
}

// Score ranks categories from the signals observed in the two windows ending
// at now. Signals of the current window (now-window, now] add their decayed
// volume to the score and their raw volume to the current volume. Signals of
// the previous window (now-2*window, now-window] only count as previous
// volume. Future signals are ignored. Entries are ranked by score and then by
// category name, ranks starting at 1.
func Score(signals []db.DemandSignal, now time.Time, window, halfLife time.Duration) []db.DemandSnapshot {
	type acc struct {
		score             float64
		current, previous int64
	}
	byCategory := map[string]*acc{}
	currentStart := now.Add(-window)
	previousStart := now.Add(-2 * window)
	for _, s := range signals {
		if s.ObservedAt.After(now) || !s.ObservedAt.After(previousStart) {
			continue
		}
		a, ok := byCategory[s.Category]
		if !ok {
			a = &acc{}
			byCategory[s.Category] = a
		}
		if s.ObservedAt.After(currentStart) {
			a.current += s.Volume
			a.score += DecayedVolume(s.Volume, now.Sub(s.ObservedAt), halfLife)
		} else {
			a.previous += s.Volume
		}
	}

	entries := make([]db.DemandSnapshot, 0, len(byCategory))
	for category, a := range byCategory {
		trend := Trend(a.current, a.previous)
		entries = append(entries, db.DemandSnapshot{
			Category:       category,
			Score:          math.Round(a.score*100) / 100,
			CurrentVolume:  a.current,
			PreviousVolume: a.previous,
			Trend:          math.Round(trend*10000) / 10000,
			Momentum:       ClassifyMomentum(a.current, a.previous, trend),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Category < entries[j].Category
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
