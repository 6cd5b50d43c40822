package rules

import "fmt"

type AlertKind string

const (
	AlertNone  AlertKind = ""
	AlertLevel AlertKind = "level"
	AlertLost  AlertKind = "lost"
)

// Alert is an informational notice about the running total. It is never
// part of the game state.
type Alert struct {
	Kind    AlertKind `json:"kind"`
	Total   int       `json:"total"`
	Message string    `json:"message"`
}

// ThresholdWatcher flags totals that hit an alert level or the losing threshold.
type ThresholdWatcher struct {
	levels        map[int]struct{}
	loseThreshold int
}

func NewThresholdWatcher(levels []int, loseThreshold int) *ThresholdWatcher {
	w := &ThresholdWatcher{
		levels:        make(map[int]struct{}, len(levels)),
		loseThreshold: loseThreshold,
	}
	for _, l := range levels {
		w.levels[l] = struct{}{}
	}
	return w
}

func (w *ThresholdWatcher) LoseThreshold() int {
	return w.loseThreshold
}

// Lost reports whether total ends the game.
func (w *ThresholdWatcher) Lost(total int) bool {
	return total >= w.loseThreshold
}

// Check classifies total. A losing total takes precedence over an alert level.
func (w *ThresholdWatcher) Check(total int) (Alert, bool) {
	if w.Lost(total) {
		return Alert{
			Kind:    AlertLost,
			Total:   total,
			Message: fmt.Sprintf("The total is %d!", total),
		}, true
	}
	if _, ok := w.levels[total]; ok {
		return Alert{
			Kind:    AlertLevel,
			Total:   total,
			Message: fmt.Sprintf("Alert: the total is now %d!", total),
		}, true
	}
	return Alert{}, false
}
