package curriculum

// Node addresses one node of the hierarchy.
type Node struct {
	Kind NodeKind `json:"kind"`
	ID   string   `json:"id"`
}

// ToggleLeaf flips the membership of one objective. Unknown ids return the
// selection unchanged.
func ToggleLeaf(idx *Index, sel Selection, id string) Selection {
	if !orEmpty(idx).HasLeaf(id) {
		return sel
	}
	if sel.Has(id) {
		return sel.with(nil, []string{id})
	}
	return sel.with([]string{id}, nil)
}

// ToggleSubtopic clears a FULL subtopic and completes a NONE or PARTIAL one.
// Only the subtopic's own leaves are read or written.
func ToggleSubtopic(idx *Index, sel Selection, id string) Selection {
	return toggleGroup(idx, sel, KindSubtopic, id)
}

// ToggleTopic applies the ToggleSubtopic policy over every leaf of a topic,
// regardless of the prior state of its subtopics.
func ToggleTopic(idx *Index, sel Selection, id string) Selection {
	return toggleGroup(idx, sel, KindTopic, id)
}

// Toggle dispatches on n.Kind.
func Toggle(idx *Index, sel Selection, n Node) Selection {
	switch n.Kind {
	case KindObjective:
		return ToggleLeaf(idx, sel, n.ID)
	case KindSubtopic:
		return ToggleSubtopic(idx, sel, n.ID)
	case KindTopic:
		return ToggleTopic(idx, sel, n.ID)
	}
	return sel
}

// SelectSubtree adds every leaf under n. Applying it twice is the same as
// applying it once.
func SelectSubtree(idx *Index, sel Selection, n Node) Selection {
	leaves, ok := idx.leaves(n.Kind, n.ID)
	if !ok || len(leaves) == 0 {
		return sel
	}
	return sel.with(leaves, nil)
}

// ClearSubtree removes every leaf under n.
func ClearSubtree(idx *Index, sel Selection, n Node) Selection {
	leaves, ok := idx.leaves(n.Kind, n.ID)
	if !ok || len(leaves) == 0 {
		return sel
	}
	return sel.with(nil, leaves)
}

func toggleGroup(idx *Index, sel Selection, kind NodeKind, id string) Selection {
	leaves, ok := idx.leaves(kind, id)
	if !ok || len(leaves) == 0 {
		return sel
	}
	if stateOf(leaves, sel) == StateFull {
		return sel.with(nil, leaves)
	}
	return sel.with(leaves, nil)
}
