package curriculum

import (
	"errors"
	"fmt"
)

// ErrMixedTopicCounting is returned when a topic is counted both as a whole
// block and through its selected objectives.
var ErrMixedTopicCounting = errors.New("topic counted both as a whole and by objectives")

const minutesPerHour = 60

// SourceEstimate is the per-source part of an Estimate.
type SourceEstimate struct {
	SourceID    string `json:"source_id"`
	Minutes     int    `json:"minutes"`
	Objectives  int    `json:"objectives"`
	WholeTopics int    `json:"whole_topics"`
}

// Estimate is the teaching time derived from a selection.
type Estimate struct {
	PerSourceMinutes map[string]int   `json:"per_source_minutes"`
	Sources          []SourceEstimate `json:"sources"`
	TotalMinutes     int              `json:"total_minutes"`
	TotalHours       int              `json:"total_hours"`
}

// EstimateHours sums the teaching minutes of every selected objective.
// See EstimateWithTopics for the rounding policy.
func EstimateHours(idx *Index, sel Selection) Estimate {
	est, _ := estimate(idx, sel, nil)
	return est
}

// EstimateWithTopics additionally counts each whole topic's block duration
// once. A whole topic that also has selected objectives is rejected with
// ErrMixedTopicCounting; unknown topic ids are ignored.
//
// TotalHours is ceil(TotalMinutes/60), except that anything counted reports
// at least one hour and nothing counted reports zero.
func EstimateWithTopics(idx *Index, sel Selection, wholeTopics []string) (Estimate, error) {
	return estimate(idx, sel, wholeTopics)
}

func estimate(idx *Index, sel Selection, wholeTopics []string) (Estimate, error) {
	idx = orEmpty(idx)

	est := Estimate{
		PerSourceMinutes: make(map[string]int, len(idx.sourceIDs)),
		Sources:          make([]SourceEstimate, 0, len(idx.sourceIDs)),
	}
	bySource := make(map[string]*SourceEstimate, len(idx.sourceIDs))
	for _, id := range idx.sourceIDs {
		est.Sources = append(est.Sources, SourceEstimate{SourceID: id})
		est.PerSourceMinutes[id] = 0
	}
	for i := range est.Sources {
		bySource[est.Sources[i].SourceID] = &est.Sources[i]
	}

	counted := 0
	for _, id := range idx.leafIDs {
		if !sel.Has(id) {
			continue
		}
		a := idx.ancestors[id]
		se := bySource[a.SourceID]
		se.Minutes += idx.objectives[id].EstimatedTeachingMinutes.Value()
		se.Objectives++
		counted++
	}

	seen := make(map[string]bool, len(wholeTopics))
	for _, id := range wholeTopics {
		t, ok := idx.topics[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		if stateOf(idx.topicLeaves[id], sel) != StateNone {
			return Estimate{}, fmt.Errorf("%w: %s", ErrMixedTopicCounting, id)
		}
		se := bySource[idx.topicSource[id]]
		se.Minutes += t.DurationMinutes.Value()
		se.WholeTopics++
		counted++
	}

	for _, se := range est.Sources {
		est.PerSourceMinutes[se.SourceID] = se.Minutes
		est.TotalMinutes += se.Minutes
	}
	est.TotalHours = roundHours(est.TotalMinutes, counted > 0)
	return est, nil
}

func roundHours(minutes int, counted bool) int {
	if !counted {
		return 0
	}
	hours := (minutes + minutesPerHour - 1) / minutesPerHour
	if hours < 1 {
		return 1
	}
	return hours
}
