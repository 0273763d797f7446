package curriculum_test

import (
	"testing"

	"github.com/p-n-ai/pai-mapper/internal/curriculum"
)

func objective(id string, minutes int) curriculum.Objective {
	return curriculum.Objective{
		ID:                       id,
		Code:                     "C-" + id,
		Statement:                "Statement " + id,
		Difficulty:               curriculum.DifficultyBasic,
		BloomsLevel:              curriculum.BloomApply,
		EstimatedTeachingMinutes: curriculum.Minutes(minutes),
	}
}

// scenarioSource is one topic T1 with one subtopic S1 holding O1 (20 min)
// and O2 (50 min).
func scenarioSource() curriculum.Source {
	return curriculum.Source{
		ID: "igcse",
		Topics: []curriculum.Topic{{
			ID:              "T1",
			Name:            "Forces",
			DurationMinutes: 240,
			Subtopics: []curriculum.Subtopic{{
				ID:         "S1",
				Name:       "Newton's laws",
				Objectives: []curriculum.Objective{objective("O1", 20), objective("O2", 50)},
			}},
		}},
	}
}

// twoSources returns source A (O1..O3 under topic TA) and source B (O4..O6
// under topic TB).
func twoSources() []curriculum.Source {
	a := curriculum.Source{
		ID: "A",
		Topics: []curriculum.Topic{{
			ID:              "TA",
			DurationMinutes: 300,
			Subtopics: []curriculum.Subtopic{
				{ID: "SA1", Objectives: []curriculum.Objective{objective("O1", 30), objective("O2", 45)}},
				{ID: "SA2", Objectives: []curriculum.Objective{objective("O3", 60)}},
				{ID: "SA3"},
			},
		}},
	}
	b := curriculum.Source{
		ID: "B",
		Topics: []curriculum.Topic{{
			ID:              "TB",
			DurationMinutes: 180,
			Subtopics: []curriculum.Subtopic{
				{ID: "SB1", Objectives: []curriculum.Objective{objective("O4", 40), objective("O5", 15), objective("O6", 25)}},
			},
		}},
	}
	return []curriculum.Source{a, b}
}

func mustNormalize(t *testing.T, sources ...curriculum.Source) *curriculum.Index {
	t.Helper()
	idx, err := curriculum.Normalize(sources...)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	return idx
}

// selections enumerates every subset of ids.
func selections(ids []string) []curriculum.Selection {
	var out []curriculum.Selection
	for mask := 0; mask < 1<<len(ids); mask++ {
		var picked []string
		for i, id := range ids {
			if mask&(1<<i) != 0 {
				picked = append(picked, id)
			}
		}
		out = append(out, curriculum.NewSelection(picked...))
	}
	return out
}
