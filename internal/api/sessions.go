package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/p-n-ai/pai-mapper/internal/curriculum"
	"github.com/p-n-ai/pai-mapper/internal/planner"
	"github.com/p-n-ai/pai-mapper/internal/report"
)

const maxBodyBytes = 1 << 20

// SourceSummary describes one loaded source.
type SourceSummary struct {
	SourceID   string `json:"source_id"`
	Name       string `json:"name"`
	Topics     int    `json:"topics"`
	Subtopics  int    `json:"subtopics"`
	Objectives int    `json:"objectives"`
}

func summarize(src curriculum.Source) SourceSummary {
	sum := SourceSummary{SourceID: src.ID, Name: src.Name, Topics: len(src.Topics)}
	for _, t := range src.Topics {
		sum.Subtopics += len(t.Subtopics)
		for _, st := range t.Subtopics {
			sum.Objectives += len(st.Objectives)
		}
	}
	return sum
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources := s.catalog.AllSources()
	out := make([]SourceSummary, 0, len(sources))
	for _, src := range sources {
		out = append(out, summarize(src))
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": out})
}

func (s *Server) handleReloadSources(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Reload(); err != nil {
		writeError(w, err)
		return
	}
	s.handleListSources(w, r)
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req planner.OpenRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	view, err := s.planner.Open(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/v1/sessions/"+view.SessionID)
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	view, err := s.planner.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.planner.Close(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleApplyAction(w http.ResponseWriter, r *http.Request) {
	var action planner.Action
	if err := decodeBody(w, r, &action); err != nil {
		writeError(w, err)
		return
	}
	// Accept "leaf" and mixed case for the node kind.
	if kind, err := curriculum.ParseNodeKind(string(action.Node.Kind)); err == nil {
		action.Node.Kind = kind
	}

	view, err := s.planner.Apply(r.Context(), r.PathValue("id"), action)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	snap, err := s.planner.Snapshot(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="plan-%s.xlsx"`, id))
	err = report.WritePlan(w, report.Plan{
		Index:       snap.Index,
		Selection:   snap.Selection,
		WholeTopics: snap.WholeTopics,
		Estimate:    snap.Estimate,
	})
	if err != nil {
		// Headers are already sent; the client sees a truncated file.
		slog.Error("export failed", "session_id", id, "error", err)
	}
}

type saveRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleSavePlan(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	plan, err := s.planner.Save(r.Context(), r.PathValue("id"), strings.TrimSpace(req.Name))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/v1/plans/"+plan.ID)
	writeJSON(w, http.StatusCreated, plan)
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := s.planner.Plan(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleOpenPlan(w http.ResponseWriter, r *http.Request) {
	view, err := s.planner.OpenPlan(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/v1/sessions/"+view.SessionID)
	writeJSON(w, http.StatusCreated, view)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return fmt.Errorf("%w: content type must be application/json", errBadRequest)
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decoding body: %v", errBadRequest, err)
	}
	return nil
}
