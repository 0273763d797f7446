package curriculum_test

import (
	"errors"
	"testing"

	"github.com/p-n-ai/pai-mapper/internal/curriculum"
)

func TestEstimateHours(t *testing.T) {
	idx := mustNormalize(t, twoSources()...)

	tests := []struct {
		name      string
		selected  []string
		wantA     int
		wantB     int
		wantHours int
	}{
		{"empty", nil, 0, 0, 0},
		{"under an hour rounds up to one", []string{"O5"}, 0, 15, 1},
		{"exactly one hour", []string{"O3"}, 60, 0, 1},
		{"just over an hour", []string{"O1", "O6", "O5"}, 30, 40, 2},
		{"both sources", []string{"O1", "O2", "O3", "O4", "O5", "O6"}, 135, 80, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			est := curriculum.EstimateHours(idx, curriculum.NewSelection(tt.selected...))
			if est.PerSourceMinutes["A"] != tt.wantA {
				t.Errorf("PerSourceMinutes[A] = %d, want %d", est.PerSourceMinutes["A"], tt.wantA)
			}
			if est.PerSourceMinutes["B"] != tt.wantB {
				t.Errorf("PerSourceMinutes[B] = %d, want %d", est.PerSourceMinutes["B"], tt.wantB)
			}
			if est.TotalHours != tt.wantHours {
				t.Errorf("TotalHours = %d, want %d", est.TotalHours, tt.wantHours)
			}
		})
	}
}

func TestEstimateHours_ZeroDurationStillCountsAnHour(t *testing.T) {
	src := scenarioSource()
	src.Topics[0].Subtopics[0].Objectives[0].EstimatedTeachingMinutes = 0
	src.Topics[0].Subtopics[0].Objectives[1].EstimatedTeachingMinutes = -30
	idx := mustNormalize(t, src)

	est := curriculum.EstimateHours(idx, curriculum.NewSelection("O1", "O2"))
	if est.TotalMinutes != 0 {
		t.Errorf("TotalMinutes = %d, want 0 (negative durations contribute nothing)", est.TotalMinutes)
	}
	if est.TotalHours != 1 {
		t.Errorf("TotalHours = %d, want 1 for a non-empty selection", est.TotalHours)
	}
}

func TestEstimateHours_Monotonic(t *testing.T) {
	idx := mustNormalize(t, twoSources()...)

	for _, sel := range selections(idx.LeafIDs()) {
		base := curriculum.EstimateHours(idx, sel).TotalHours
		for _, id := range idx.LeafIDs() {
			if sel.Has(id) {
				continue
			}
			grown := curriculum.ToggleLeaf(idx, sel, id)
			if got := curriculum.EstimateHours(idx, grown).TotalHours; got < base {
				t.Fatalf("adding %s to %v dropped hours %d -> %d", id, sel.IDs(), base, got)
			}
		}
		if sel.Len() == 1 {
			last := sel.IDs()[0]
			if got := curriculum.EstimateHours(idx, curriculum.ToggleLeaf(idx, sel, last)).TotalHours; got != 0 {
				t.Fatalf("removing last leaf %s left %d hours", last, got)
			}
		}
	}
}

func TestEstimateHours_IgnoresUnknownIDs(t *testing.T) {
	idx := mustNormalize(t, twoSources()...)

	est := curriculum.EstimateHours(idx, curriculum.NewSelection("ghost"))
	if est.TotalHours != 0 || est.TotalMinutes != 0 {
		t.Errorf("estimate = %+v, want zero", est)
	}
}

func TestEstimateHours_EmptyIndex(t *testing.T) {
	est := curriculum.EstimateHours(nil, curriculum.NewSelection("O1"))
	if est.TotalHours != 0 {
		t.Errorf("TotalHours = %d, want 0", est.TotalHours)
	}
	if len(est.Sources) != 0 {
		t.Errorf("Sources = %v, want empty", est.Sources)
	}
}

func TestEstimateWithTopics(t *testing.T) {
	idx := mustNormalize(t, twoSources()...)

	est, err := curriculum.EstimateWithTopics(idx, curriculum.NewSelection("O4"), []string{"TA", "TA", "missing"})
	if err != nil {
		t.Fatalf("EstimateWithTopics() error = %v", err)
	}
	if est.PerSourceMinutes["A"] != 300 {
		t.Errorf("PerSourceMinutes[A] = %d, want 300 (whole topic counted once)", est.PerSourceMinutes["A"])
	}
	if est.PerSourceMinutes["B"] != 40 {
		t.Errorf("PerSourceMinutes[B] = %d, want 40", est.PerSourceMinutes["B"])
	}
	if est.TotalHours != 6 {
		t.Errorf("TotalHours = %d, want 6", est.TotalHours)
	}
	if est.Sources[0].WholeTopics != 1 || est.Sources[1].Objectives != 1 {
		t.Errorf("Sources = %+v", est.Sources)
	}
}

func TestEstimateWithTopics_OnlyWholeTopics(t *testing.T) {
	src := scenarioSource()
	src.Topics[0].DurationMinutes = 0
	idx := mustNormalize(t, src)

	est, err := curriculum.EstimateWithTopics(idx, curriculum.Selection{}, []string{"T1"})
	if err != nil {
		t.Fatalf("EstimateWithTopics() error = %v", err)
	}
	if est.TotalHours != 1 {
		t.Errorf("TotalHours = %d, want 1 for a selected whole topic", est.TotalHours)
	}
}

func TestEstimateWithTopics_RejectsMixedCounting(t *testing.T) {
	idx := mustNormalize(t, twoSources()...)

	_, err := curriculum.EstimateWithTopics(idx, curriculum.NewSelection("O2"), []string{"TA"})
	if !errors.Is(err, curriculum.ErrMixedTopicCounting) {
		t.Fatalf("EstimateWithTopics() error = %v, want ErrMixedTopicCounting", err)
	}
}
