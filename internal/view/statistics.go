package view

import (
	"fmt"

	"github.com/danmu-dashboard-go/internal/models"
)

// NoChange is shown when yesterday has nothing to compare against
const NoChange = "—"

// ChangePercent is (today-yesterday)/yesterday*100; ok is false when
// yesterday is 0
func ChangePercent(today, yesterday uint64) (float64, bool) {
	if yesterday == 0 {
		return 0, false
	}
	return (float64(today) - float64(yesterday)) / float64(yesterday) * 100, true
}

// FormatChange renders a change with sign and two decimals
func FormatChange(change float64, ok bool) string {
	if !ok {
		return NoChange
	}
	if change >= 0 {
		return fmt.Sprintf("+%.2f%%", change)
	}
	return fmt.Sprintf("%.2f%%", change)
}

// StatCard is one of the four today-vs-yesterday cards
type StatCard struct {
	Metric models.Metric
	Today  uint64
	Change string
	// Up is true for a non-negative change
	Up bool
	OK bool
}

// Deltas computes the four cards independently
func Deltas(pair models.StatisticsPair) []StatCard {
	cards := make([]StatCard, 0, len(models.Metrics))
	for _, m := range models.Metrics {
		today := pair.Today.Value(m)
		change, ok := ChangePercent(today, pair.Yesterday.Value(m))
		cards = append(cards, StatCard{
			Metric: m,
			Today:  today,
			Change: FormatChange(change, ok),
			Up:     ok && change >= 0,
			OK:     ok,
		})
	}
	return cards
}
