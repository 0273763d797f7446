package curriculum

import (
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var (
	// ErrDuplicateLeafID is returned when two objectives share an id.
	ErrDuplicateLeafID = errors.New("duplicate leaf id")
	// ErrDuplicateNodeID is returned when two topics or subtopics share an id.
	ErrDuplicateNodeID = errors.New("duplicate node id")
)

// DuplicateIDError reports a node id seen twice while normalizing.
type DuplicateIDError struct {
	Kind         NodeKind
	ID           string
	FirstSource  string
	SecondSource string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate %s id %q (sources %q and %q)", e.Kind, e.ID, e.FirstSource, e.SecondSource)
}

func (e *DuplicateIDError) Unwrap() error {
	if e.Kind == KindObjective {
		return ErrDuplicateLeafID
	}
	return ErrDuplicateNodeID
}

// NodeKind is the level of a node in the hierarchy.
type NodeKind string

const (
	KindTopic     NodeKind = "topic"
	KindSubtopic  NodeKind = "subtopic"
	KindObjective NodeKind = "objective"
)

// ParseNodeKind accepts "topic", "subtopic", "objective" and its alias "leaf".
func ParseNodeKind(s string) (NodeKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "topic":
		return KindTopic, nil
	case "subtopic":
		return KindSubtopic, nil
	case "objective", "leaf":
		return KindObjective, nil
	}
	return "", fmt.Errorf("unknown node kind %q", s)
}

// Ancestry is the fixed ancestor chain of an objective.
type Ancestry struct {
	SubtopicID string `json:"subtopic_id"`
	TopicID    string `json:"topic_id"`
	SourceID   string `json:"source_id"`
}

// Index is the flattened, read-only view over one or more sources.
// The zero value is a valid empty index.
type Index struct {
	sourceIDs   []string
	topicIDs    []string
	subtopicIDs []string
	leafIDs     []string

	topics     map[string]*Topic
	subtopics  map[string]*Subtopic
	objectives map[string]*Objective

	ancestors      map[string]Ancestry
	subtopicTopic  map[string]string
	topicSource    map[string]string
	topicSubtopics map[string][]string
	topicLeaves    map[string][]string
	subtopicLeaves map[string][]string
	sourceTopics   map[string][]string
	sourceLeaves   map[string][]string

	// folded objective code -> leaf ids carrying it
	codes map[string][]string

	fingerprint string
}

var emptyIndex = &Index{}

func orEmpty(idx *Index) *Index {
	if idx == nil {
		return emptyIndex
	}
	return idx
}

// Normalize flattens sources into an Index. Ids must be unique across all
// sources; a repeated objective id fails with ErrDuplicateLeafID and a
// repeated topic or subtopic id with ErrDuplicateNodeID.
func Normalize(sources ...Source) (*Index, error) {
	idx := &Index{
		topics:         make(map[string]*Topic),
		subtopics:      make(map[string]*Subtopic),
		objectives:     make(map[string]*Objective),
		ancestors:      make(map[string]Ancestry),
		subtopicTopic:  make(map[string]string),
		topicSource:    make(map[string]string),
		topicSubtopics: make(map[string][]string),
		topicLeaves:    make(map[string][]string),
		subtopicLeaves: make(map[string][]string),
		sourceTopics:   make(map[string][]string),
		sourceLeaves:   make(map[string][]string),
		codes:          make(map[string][]string),
	}
	subtopicSource := make(map[string]string)
	seenSource := make(map[string]bool)

	h := &strings.Builder{}

	for si := range sources {
		src := &sources[si]
		if src.ID == "" {
			return nil, fmt.Errorf("source at position %d has no id", si)
		}
		if seenSource[src.ID] {
			return nil, fmt.Errorf("source %q given twice", src.ID)
		}
		seenSource[src.ID] = true
		idx.sourceIDs = append(idx.sourceIDs, src.ID)
		fmt.Fprintf(h, "S%s\x00", src.ID)

		for ti := range src.Topics {
			t := &src.Topics[ti]
			if prev, dup := idx.topicSource[t.ID]; dup {
				return nil, &DuplicateIDError{Kind: KindTopic, ID: t.ID, FirstSource: prev, SecondSource: src.ID}
			}
			idx.topicSource[t.ID] = src.ID
			idx.topics[t.ID] = t
			idx.topicIDs = append(idx.topicIDs, t.ID)
			idx.sourceTopics[src.ID] = append(idx.sourceTopics[src.ID], t.ID)
			fmt.Fprintf(h, "T%s\x00%d\x00", t.ID, t.DurationMinutes.Value())

			for bi := range t.Subtopics {
				sub := &t.Subtopics[bi]
				if prev, dup := subtopicSource[sub.ID]; dup {
					return nil, &DuplicateIDError{Kind: KindSubtopic, ID: sub.ID, FirstSource: prev, SecondSource: src.ID}
				}
				subtopicSource[sub.ID] = src.ID
				idx.subtopics[sub.ID] = sub
				idx.subtopicIDs = append(idx.subtopicIDs, sub.ID)
				idx.subtopicTopic[sub.ID] = t.ID
				idx.topicSubtopics[t.ID] = append(idx.topicSubtopics[t.ID], sub.ID)
				fmt.Fprintf(h, "B%s\x00", sub.ID)

				for oi := range sub.Objectives {
					o := &sub.Objectives[oi]
					if prev, dup := idx.ancestors[o.ID]; dup {
						return nil, &DuplicateIDError{Kind: KindObjective, ID: o.ID, FirstSource: prev.SourceID, SecondSource: src.ID}
					}
					idx.objectives[o.ID] = o
					idx.ancestors[o.ID] = Ancestry{SubtopicID: sub.ID, TopicID: t.ID, SourceID: src.ID}
					idx.leafIDs = append(idx.leafIDs, o.ID)
					idx.subtopicLeaves[sub.ID] = append(idx.subtopicLeaves[sub.ID], o.ID)
					idx.topicLeaves[t.ID] = append(idx.topicLeaves[t.ID], o.ID)
					idx.sourceLeaves[src.ID] = append(idx.sourceLeaves[src.ID], o.ID)
					if key := foldCode(o.Code); key != "" {
						idx.codes[key] = append(idx.codes[key], o.ID)
					}
					h.WriteString("O" + o.ID + "\x00" + strconv.Itoa(o.EstimatedTeachingMinutes.Value()) + "\x00")
				}
			}
		}
	}

	sum := blake2b.Sum256([]byte(h.String()))
	idx.fingerprint = hex.EncodeToString(sum[:16])
	return idx, nil
}

func foldCode(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	return cases.Fold().String(norm.NFKC.String(code))
}

// Fingerprint is a digest of the ids and durations in the index. Two indexes
// over the same content share a fingerprint.
func (idx *Index) Fingerprint() string { return orEmpty(idx).fingerprint }

// SourceIDs returns source ids in load order.
func (idx *Index) SourceIDs() []string { return clone(orEmpty(idx).sourceIDs) }

// TopicIDs returns every topic id in hierarchy order.
func (idx *Index) TopicIDs() []string { return clone(orEmpty(idx).topicIDs) }

// SubtopicIDs returns every subtopic id in hierarchy order.
func (idx *Index) SubtopicIDs() []string { return clone(orEmpty(idx).subtopicIDs) }

// LeafIDs returns every objective id in hierarchy order.
func (idx *Index) LeafIDs() []string { return clone(orEmpty(idx).leafIDs) }

// Topic looks up a topic by id.
func (idx *Index) Topic(id string) (Topic, bool) {
	idx = orEmpty(idx)
	t, ok := idx.topics[id]
	if !ok {
		return Topic{}, false
	}
	out := *t
	out.SourceID = idx.topicSource[id]
	return out, true
}

// Subtopic looks up a subtopic by id.
func (idx *Index) Subtopic(id string) (Subtopic, bool) {
	s, ok := orEmpty(idx).subtopics[id]
	if !ok {
		return Subtopic{}, false
	}
	return *s, true
}

// Objective looks up an objective by id.
func (idx *Index) Objective(id string) (Objective, bool) {
	o, ok := orEmpty(idx).objectives[id]
	if !ok {
		return Objective{}, false
	}
	return *o, true
}

// HasLeaf reports whether id is a known objective id.
func (idx *Index) HasLeaf(id string) bool {
	_, ok := orEmpty(idx).ancestors[id]
	return ok
}

// Ancestors returns the ancestor chain of an objective.
func (idx *Index) Ancestors(leafID string) (Ancestry, bool) {
	a, ok := orEmpty(idx).ancestors[leafID]
	return a, ok
}

// TopicOf returns the topic owning a subtopic.
func (idx *Index) TopicOf(subtopicID string) (string, bool) {
	t, ok := orEmpty(idx).subtopicTopic[subtopicID]
	return t, ok
}

// SubtopicsOf returns the subtopic ids of a topic in order.
func (idx *Index) SubtopicsOf(topicID string) []string {
	return clone(orEmpty(idx).topicSubtopics[topicID])
}

// TopicsOf returns the topic ids of a source in order.
func (idx *Index) TopicsOf(sourceID string) []string {
	return clone(orEmpty(idx).sourceTopics[sourceID])
}

// TopicLeaves returns the objective ids under a topic in order.
func (idx *Index) TopicLeaves(topicID string) []string {
	return clone(orEmpty(idx).topicLeaves[topicID])
}

// SubtopicLeaves returns the objective ids under a subtopic in order.
func (idx *Index) SubtopicLeaves(subtopicID string) []string {
	return clone(orEmpty(idx).subtopicLeaves[subtopicID])
}

// SourceLeaves returns the objective ids of a source in order.
func (idx *Index) SourceLeaves(sourceID string) []string {
	return clone(orEmpty(idx).sourceLeaves[sourceID])
}

// LeavesWithCode returns the objective ids whose code matches code,
// ignoring case and width.
func (idx *Index) LeavesWithCode(code string) []string {
	return clone(orEmpty(idx).codes[foldCode(code)])
}

// leaves returns the internal leaf slice for a node without copying.
func (idx *Index) leaves(kind NodeKind, id string) ([]string, bool) {
	idx = orEmpty(idx)
	switch kind {
	case KindTopic:
		if _, ok := idx.topics[id]; !ok {
			return nil, false
		}
		return idx.topicLeaves[id], true
	case KindSubtopic:
		if _, ok := idx.subtopics[id]; !ok {
			return nil, false
		}
		return idx.subtopicLeaves[id], true
	case KindObjective:
		if _, ok := idx.ancestors[id]; !ok {
			return nil, false
		}
		return []string{id}, true
	}
	return nil, false
}

func clone(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return slices.Clone(s)
}
