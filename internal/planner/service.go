// Package planner holds the editing sessions that own a curriculum selection.
// Each session keeps its own normalized index, applies changes through the
// pure curriculum engine and pushes the new estimate to a Publisher instead
// of relying on shared mutable state.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/pai-mapper/internal/curriculum"
)

const defaultSessionTTL = 2 * time.Hour

var (
	// ErrSessionNotFound is returned for unknown or expired session ids.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidAction is returned for malformed actions.
	ErrInvalidAction = errors.New("invalid action")
)

// Catalog supplies the sources a session is opened over.
type Catalog interface {
	Sources(ids ...string) ([]curriculum.Source, error)
}

// ActionType selects how an Action changes a selection.
type ActionType string

const (
	ActionToggle        ActionType = "toggle"
	ActionSelect        ActionType = "select"
	ActionClear         ActionType = "clear"
	ActionWholeTopicOn  ActionType = "whole_topic_on"
	ActionWholeTopicOff ActionType = "whole_topic_off"
)

// Action is one user interaction with the hierarchy.
type Action struct {
	Type ActionType      `json:"type"`
	Node curriculum.Node `json:"node"`
}

// OpenRequest describes a new session.
type OpenRequest struct {
	SourceIDs   []string `json:"source_ids"`
	Selected    []string `json:"selected"`
	WholeTopics []string `json:"whole_topics"`
}

// View is everything a form needs to render a session.
type View struct {
	SessionID   string              `json:"session_id"`
	Version     int64               `json:"version"`
	Fingerprint string              `json:"fingerprint"`
	OpenedAt    time.Time           `json:"opened_at"`
	SourceIDs   []string            `json:"source_ids"`
	Selection   curriculum.Result   `json:"selection"`
	WholeTopics []string            `json:"whole_topics"`
	States      curriculum.States   `json:"states"`
	Estimate    curriculum.Estimate `json:"estimate"`
}

// Snapshot is a consistent copy of a session's state.
type Snapshot struct {
	Index       *curriculum.Index
	Selection   curriculum.Selection
	WholeTopics []string
	Estimate    curriculum.Estimate
}

type session struct {
	id          string
	version     int64
	index       *curriculum.Index
	selection   curriculum.Selection
	wholeTopics []string
	estimate    curriculum.Estimate
	openedAt    time.Time
	touchedAt   time.Time
}

// Config holds dependencies for the planner service.
type Config struct {
	Catalog    Catalog
	Publisher  Publisher
	Events     EventLogger
	Plans      PlanStore
	SessionTTL time.Duration
	Now        func() time.Time
}

// Service manages planning sessions.
type Service struct {
	catalog   Catalog
	publisher Publisher
	events    EventLogger
	plans     PlanStore
	ttl       time.Duration
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// NewService creates a planner service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("catalog is nil")
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = Publishers{}
	}
	events := cfg.Events
	if events == nil {
		events = NopEventLogger{}
	}
	plans := cfg.Plans
	if plans == nil {
		plans = NewMemoryPlanStore()
	}
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		catalog:   cfg.Catalog,
		publisher: publisher,
		events:    events,
		plans:     plans,
		ttl:       ttl,
		now:       now,
		sessions:  make(map[string]*session),
	}, nil
}

// Open starts a session over the requested sources, restoring any
// previously persisted objective ids or codes.
func (s *Service) Open(ctx context.Context, req OpenRequest) (View, error) {
	return s.open(ctx, req, func(idx *curriculum.Index) curriculum.Selection {
		return idx.Restore(req.Selected)
	})
}

func (s *Service) open(ctx context.Context, req OpenRequest, restore func(*curriculum.Index) curriculum.Selection) (View, error) {
	if len(req.SourceIDs) == 0 {
		return View{}, fmt.Errorf("%w: at least one source is required", ErrInvalidAction)
	}
	sources, err := s.catalog.Sources(req.SourceIDs...)
	if err != nil {
		return View{}, err
	}
	idx, err := curriculum.Normalize(sources...)
	if err != nil {
		return View{}, fmt.Errorf("normalizing sources: %w", err)
	}

	sel := restore(idx)
	whole := knownTopics(idx, req.WholeTopics)
	est, err := curriculum.EstimateWithTopics(idx, sel, whole)
	if err != nil {
		return View{}, err
	}

	now := s.now()
	sess := &session{
		id:          uuid.NewString(),
		index:       idx,
		selection:   sel,
		wholeTopics: whole,
		estimate:    est,
		openedAt:    now,
		touchedAt:   now,
	}

	s.mu.Lock()
	s.sessions[sess.id] = sess
	view := sess.view()
	s.mu.Unlock()

	slog.Info("planning session opened",
		"session_id", sess.id,
		"sources", req.SourceIDs,
		"objectives", sel.Len(),
	)
	s.logEvent(sess.id, EventSessionOpened, map[string]any{
		"sources":     req.SourceIDs,
		"objectives":  sel.Len(),
		"total_hours": est.TotalHours,
	})
	return view, nil
}

// Get returns the current view of a session.
func (s *Service) Get(_ context.Context, id string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return View{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess.view(), nil
}

// Snapshot returns the session's index, selection and estimate.
func (s *Service) Snapshot(_ context.Context, id string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return Snapshot{
		Index:       sess.index,
		Selection:   sess.selection,
		WholeTopics: append([]string(nil), sess.wholeTopics...),
		Estimate:    sess.estimate,
	}, nil
}

// Apply runs one action against a session. A rejected action leaves the
// session unchanged.
func (s *Service) Apply(ctx context.Context, id string, action Action) (View, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return View{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	sel, whole, err := next(sess, action)
	if err != nil {
		s.mu.Unlock()
		return View{}, err
	}
	est, err := curriculum.EstimateWithTopics(sess.index, sel, whole)
	if err != nil {
		s.mu.Unlock()
		return View{}, err
	}

	sess.selection = sel
	sess.wholeTopics = whole
	sess.estimate = est
	sess.touchedAt = s.now()
	sess.version++
	view := sess.view()
	update := sess.update(false)
	s.mu.Unlock()

	slog.Debug("selection changed",
		"session_id", id,
		"action", action.Type,
		"kind", action.Node.Kind,
		"node_id", action.Node.ID,
		"objectives", sel.Len(),
	)
	s.publish(ctx, update)
	s.logEvent(id, EventSelectionChanged, map[string]any{
		"action":      string(action.Type),
		"kind":        string(action.Node.Kind),
		"node_id":     action.Node.ID,
		"objectives":  sel.Len(),
		"total_hours": est.TotalHours,
	})
	return view, nil
}

// Close ends a session and tells subscribers it is gone.
func (s *Service) Close(ctx context.Context, id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(s.sessions, id)
	update := sess.update(true)
	s.mu.Unlock()

	slog.Info("planning session closed", "session_id", id)
	s.publish(ctx, update)
	s.logEvent(id, EventSessionClosed, map[string]any{
		"objectives":  len(update.Selection.ObjectiveIDs),
		"total_hours": update.Estimate.TotalHours,
	})
	return nil
}

// Save persists the session's current selection under name.
func (s *Service) Save(ctx context.Context, id, name string) (SavedPlan, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return SavedPlan{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	res := sess.index.Render(sess.selection)
	plan := SavedPlan{
		Name:           name,
		SourceIDs:      sess.index.SourceIDs(),
		Objectives:     res.ObjectiveIDs,
		ObjectiveCodes: res.ObjectiveCodes,
		WholeTopics:    append([]string{}, sess.wholeTopics...),
		Fingerprint:    sess.index.Fingerprint(),
		TotalHours:     sess.estimate.TotalHours,
	}
	sess.touchedAt = s.now()
	s.mu.Unlock()

	saved, err := s.plans.SavePlan(ctx, plan)
	if err != nil {
		return SavedPlan{}, fmt.Errorf("saving plan: %w", err)
	}
	slog.Info("plan saved", "session_id", id, "plan_id", saved.ID, "objectives", len(saved.Objectives))
	return saved, nil
}

// Plan returns a saved plan.
func (s *Service) Plan(ctx context.Context, planID string) (SavedPlan, error) {
	return s.plans.GetPlan(ctx, planID)
}

// OpenPlan starts a session from a saved plan. An objective whose id has
// gone is matched again by its saved code; anything else stale is dropped.
func (s *Service) OpenPlan(ctx context.Context, planID string) (View, error) {
	plan, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		return View{}, err
	}
	view, err := s.open(ctx, OpenRequest{
		SourceIDs:   plan.SourceIDs,
		WholeTopics: plan.WholeTopics,
	}, func(idx *curriculum.Index) curriculum.Selection {
		return idx.RestoreSaved(plan.Objectives, plan.ObjectiveCodes)
	})
	if err != nil {
		return View{}, err
	}
	if view.Fingerprint != plan.Fingerprint {
		slog.Info("saved plan restored over changed curriculum", "plan_id", planID, "session_id", view.SessionID)
	}
	return view, nil
}

// Sweep closes sessions idle for longer than the TTL and returns how many
// were removed.
func (s *Service) Sweep(ctx context.Context) int {
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	var expired []*session
	for id, sess := range s.sessions {
		if sess.touchedAt.Before(cutoff) {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		s.publish(ctx, sess.update(true))
		s.logEvent(sess.id, EventSessionExpired, nil)
	}
	if len(expired) > 0 {
		slog.Info("expired planning sessions", "count", len(expired))
	}
	return len(expired)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Len returns the number of open sessions.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func next(sess *session, action Action) (curriculum.Selection, []string, error) {
	idx, sel, whole := sess.index, sess.selection, sess.wholeTopics
	n := action.Node

	switch action.Type {
	case ActionToggle, ActionSelect, ActionClear:
		switch n.Kind {
		case curriculum.KindTopic, curriculum.KindSubtopic, curriculum.KindObjective:
		default:
			return sel, whole, fmt.Errorf("%w: unknown node kind %q", ErrInvalidAction, n.Kind)
		}
	case ActionWholeTopicOn, ActionWholeTopicOff:
		if n.Kind != curriculum.KindTopic {
			return sel, whole, fmt.Errorf("%w: %s needs a topic", ErrInvalidAction, action.Type)
		}
	default:
		return sel, whole, fmt.Errorf("%w: unknown action %q", ErrInvalidAction, action.Type)
	}

	switch action.Type {
	case ActionToggle:
		return curriculum.Toggle(idx, sel, n), whole, nil
	case ActionSelect:
		return curriculum.SelectSubtree(idx, sel, n), whole, nil
	case ActionClear:
		return curriculum.ClearSubtree(idx, sel, n), whole, nil
	case ActionWholeTopicOn:
		if _, ok := idx.Topic(n.ID); !ok || slices.Contains(whole, n.ID) {
			return sel, whole, nil
		}
		return sel, append(append([]string(nil), whole...), n.ID), nil
	default:
		out := make([]string, 0, len(whole))
		for _, id := range whole {
			if id != n.ID {
				out = append(out, id)
			}
		}
		return sel, out, nil
	}
}

func (sess *session) view() View {
	return View{
		SessionID:   sess.id,
		Version:     sess.version,
		Fingerprint: sess.index.Fingerprint(),
		OpenedAt:    sess.openedAt,
		SourceIDs:   sess.index.SourceIDs(),
		Selection:   sess.index.Render(sess.selection),
		WholeTopics: append([]string{}, sess.wholeTopics...),
		States:      curriculum.DeriveState(sess.index, sess.selection),
		Estimate:    sess.estimate,
	}
}

func (sess *session) update(closed bool) EstimateUpdate {
	return EstimateUpdate{
		SessionID:   sess.id,
		Version:     sess.version,
		Fingerprint: sess.index.Fingerprint(),
		Selection:   sess.index.Render(sess.selection),
		Estimate:    sess.estimate,
		Closed:      closed,
		At:          time.Now(),
	}
}

func (s *Service) publish(ctx context.Context, update EstimateUpdate) {
	if err := s.publisher.Publish(ctx, update); err != nil {
		slog.Warn("failed to publish estimate update", "session_id", update.SessionID, "error", err)
	}
}

func (s *Service) logEvent(sessionID, eventType string, data map[string]any) {
	if err := s.events.LogEvent(Event{SessionID: sessionID, EventType: eventType, Data: data}); err != nil {
		slog.Warn("failed to log event", "session_id", sessionID, "type", eventType, "error", err)
	}
}

func knownTopics(idx *curriculum.Index, ids []string) []string {
	out := []string{}
	for _, id := range ids {
		if _, ok := idx.Topic(id); ok && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
