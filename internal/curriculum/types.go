package curriculum

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Difficulty grades an objective.
type Difficulty string

const (
	DifficultyBasic        Difficulty = "basic"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// BloomsLevel is the cognitive level of an objective in Bloom's taxonomy.
type BloomsLevel string

const (
	BloomRemember   BloomsLevel = "remember"
	BloomUnderstand BloomsLevel = "understand"
	BloomApply      BloomsLevel = "apply"
	BloomAnalyze    BloomsLevel = "analyze"
	BloomEvaluate   BloomsLevel = "evaluate"
	BloomCreate     BloomsLevel = "create"
)

// Source is one curriculum hierarchy (e.g. "IGCSE" or "A Level").
// It is read-only once loaded.
type Source struct {
	ID     string  `json:"sourceId"`
	Name   string  `json:"name"`
	Topics []Topic `json:"topics"`
}

// Topic is the top level of a hierarchy.
type Topic struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Description       string     `json:"description"`
	SpecificationCode string     `json:"specificationCode"`
	DurationMinutes   Minutes    `json:"timeAllocation"`
	Subtopics         []Subtopic `json:"subtopics"`

	// SourceID is a back-reference set by the loader, never an ownership edge.
	SourceID string `json:"-"`
}

// Subtopic groups objectives within a topic.
type Subtopic struct {
	ID                 string      `json:"id"`
	Name               string      `json:"name"`
	Description        string      `json:"description"`
	PracticalWork      []string    `json:"practicalWork"`
	MathematicalSkills []string    `json:"mathematicalSkills"`
	Objectives         []Objective `json:"objectives"`
}

// Objective is a selectable leaf.
type Objective struct {
	ID                       string      `json:"id"`
	Code                     string      `json:"code"`
	Statement                string      `json:"statement"`
	BloomsLevel              BloomsLevel `json:"bloomsLevel"`
	Difficulty               Difficulty  `json:"difficulty"`
	CommandWords             []string    `json:"commandWords"`
	EstimatedTeachingMinutes Minutes     `json:"estimatedTeachingMinutes"`
	Keywords                 []string    `json:"keywords"`
}

// Minutes is a non-negative duration in whole minutes. Decoding never fails:
// missing, null, negative, non-finite or non-numeric values become 0.
type Minutes int

// UnmarshalJSON implements json.Unmarshaler.
func (m *Minutes) UnmarshalJSON(data []byte) error {
	*m = 0
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	switch x := v.(type) {
	case float64:
		*m = minutesFromFloat(x)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			*m = minutesFromFloat(f)
		}
	}
	return nil
}

// Value returns the minutes clamped at zero.
func (m Minutes) Value() int {
	if m < 0 {
		return 0
	}
	return int(m)
}

func minutesFromFloat(f float64) Minutes {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return Minutes(math.Floor(f))
}
