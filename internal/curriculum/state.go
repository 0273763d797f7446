package curriculum

import "fmt"

// State is the derived tri-state of a topic or subtopic.
type State int

const (
	StateNone State = iota
	StatePartial
	StateFull
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "NONE"
	case StatePartial:
		return "PARTIAL"
	case StateFull:
		return "FULL"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// States holds the derived state of every topic and subtopic in an index.
type States struct {
	Topics    map[string]State `json:"topics"`
	Subtopics map[string]State `json:"subtopics"`
}

// DeriveState computes the state of every topic and subtopic from the leaf
// selection alone. Topic states are computed over the topic's own leaves,
// not from its subtopics' states. A node with no leaves is always NONE.
func DeriveState(idx *Index, sel Selection) States {
	idx = orEmpty(idx)
	out := States{
		Topics:    make(map[string]State, len(idx.topicIDs)),
		Subtopics: make(map[string]State, len(idx.subtopicIDs)),
	}
	for _, id := range idx.topicIDs {
		out.Topics[id] = stateOf(idx.topicLeaves[id], sel)
	}
	for _, id := range idx.subtopicIDs {
		out.Subtopics[id] = stateOf(idx.subtopicLeaves[id], sel)
	}
	return out
}

// TopicState returns the state of one topic. Unknown ids are NONE.
func TopicState(idx *Index, sel Selection, topicID string) State {
	return stateOf(orEmpty(idx).topicLeaves[topicID], sel)
}

// SubtopicState returns the state of one subtopic. Unknown ids are NONE.
func SubtopicState(idx *Index, sel Selection, subtopicID string) State {
	return stateOf(orEmpty(idx).subtopicLeaves[subtopicID], sel)
}

func stateOf(leaves []string, sel Selection) State {
	if len(leaves) == 0 {
		return StateNone
	}
	n := 0
	for _, id := range leaves {
		if sel.Has(id) {
			n++
		}
	}
	switch n {
	case 0:
		return StateNone
	case len(leaves):
		return StateFull
	}
	return StatePartial
}
