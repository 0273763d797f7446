package curriculum

import (
	"encoding/json"
	"sort"
)

// Selection is an immutable set of selected objective ids. Every operation
// that changes a selection returns a new value; the zero value is empty.
type Selection struct {
	ids map[string]struct{}
}

// NewSelection builds a selection from ids. Duplicates collapse.
// It does not check ids against any index; use Index.Restore for that.
func NewSelection(ids ...string) Selection {
	if len(ids) == 0 {
		return Selection{}
	}
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return Selection{ids: m}
}

// Has reports whether id is selected.
func (s Selection) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of selected ids.
func (s Selection) Len() int { return len(s.ids) }

// IsEmpty reports whether nothing is selected.
func (s Selection) IsEmpty() bool { return len(s.ids) == 0 }

// IDs returns the selected ids sorted lexically.
func (s Selection) IDs() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Equal reports whether both selections hold the same ids.
func (s Selection) Equal(o Selection) bool {
	if len(s.ids) != len(o.ids) {
		return false
	}
	for id := range s.ids {
		if _, ok := o.ids[id]; !ok {
			return false
		}
	}
	return true
}

// Intersect returns the selected ids that appear in ids, preserving the order of ids.
func (s Selection) Intersect(ids []string) []string {
	var out []string
	for _, id := range ids {
		if s.Has(id) {
			out = append(out, id)
		}
	}
	return out
}

// MarshalJSON encodes the selection as a sorted array of ids.
func (s Selection) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.IDs())
}

// UnmarshalJSON decodes an array of ids.
func (s *Selection) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewSelection(ids...)
	return nil
}

// with returns a copy of s with add inserted and remove deleted.
func (s Selection) with(add, remove []string) Selection {
	m := make(map[string]struct{}, len(s.ids)+len(add))
	for id := range s.ids {
		m[id] = struct{}{}
	}
	for _, id := range add {
		m[id] = struct{}{}
	}
	for _, id := range remove {
		delete(m, id)
	}
	return Selection{ids: m}
}

// Restore rebuilds a selection from persisted references. Each ref is
// matched as an objective id first, then as an objective code when that
// code is unique within the index. Unmatched refs are dropped.
func (idx *Index) Restore(refs []string) Selection {
	idx = orEmpty(idx)
	var ids []string
	for _, ref := range refs {
		if idx.HasLeaf(ref) {
			ids = append(ids, ref)
			continue
		}
		if matches := idx.codes[foldCode(ref)]; len(matches) == 1 {
			ids = append(ids, matches[0])
		}
	}
	return NewSelection(ids...)
}

// RestoreSaved rebuilds a selection saved as parallel id and code lists,
// codes[i] belonging to ids[i]. An id still in the index is kept. Its code is
// consulted only when the id is gone, is matched only against objective
// codes, and must be unique within the index.
func (idx *Index) RestoreSaved(ids, codes []string) Selection {
	idx = orEmpty(idx)
	var out []string
	for i, id := range ids {
		if idx.HasLeaf(id) {
			out = append(out, id)
			continue
		}
		if i >= len(codes) {
			continue
		}
		if key := foldCode(codes[i]); key != "" {
			if matches := idx.codes[key]; len(matches) == 1 {
				out = append(out, matches[0])
			}
		}
	}
	return NewSelection(out...)
}

// Result is a selection rendered in hierarchy order for the consuming form.
// ObjectiveCodes[i] is the code of ObjectiveIDs[i], empty when the objective
// has none.
type Result struct {
	TopicIDs       []string `json:"topic_ids"`
	SubtopicIDs    []string `json:"subtopic_ids"`
	ObjectiveIDs   []string `json:"objective_ids"`
	ObjectiveCodes []string `json:"objective_codes"`
}

// Render lists the touched topics and subtopics (state other than NONE) and
// the selected objectives, all in hierarchy order. Selected ids unknown to
// the index are omitted.
func (idx *Index) Render(sel Selection) Result {
	idx = orEmpty(idx)
	res := Result{
		TopicIDs:       []string{},
		SubtopicIDs:    []string{},
		ObjectiveIDs:   []string{},
		ObjectiveCodes: []string{},
	}
	for _, id := range idx.topicIDs {
		if stateOf(idx.topicLeaves[id], sel) != StateNone {
			res.TopicIDs = append(res.TopicIDs, id)
		}
	}
	for _, id := range idx.subtopicIDs {
		if stateOf(idx.subtopicLeaves[id], sel) != StateNone {
			res.SubtopicIDs = append(res.SubtopicIDs, id)
		}
	}
	for _, id := range idx.leafIDs {
		if !sel.Has(id) {
			continue
		}
		res.ObjectiveIDs = append(res.ObjectiveIDs, id)
		res.ObjectiveCodes = append(res.ObjectiveCodes, idx.objectives[id].Code)
	}
	return res
}
