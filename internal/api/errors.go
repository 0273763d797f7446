package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/p-n-ai/pai-mapper/internal/curriculum"
	"github.com/p-n-ai/pai-mapper/internal/planner"
)

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	writeJSON(w, status, errorEnvelope{Error: errorBody{Message: err.Error(), Code: code}})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, planner.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, planner.ErrPlanNotFound):
		return http.StatusNotFound, "plan_not_found"
	case errors.Is(err, curriculum.ErrUnknownSource):
		return http.StatusNotFound, "unknown_source"
	case errors.Is(err, planner.ErrInvalidAction), errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, curriculum.ErrMixedTopicCounting):
		return http.StatusConflict, "mixed_topic_counting"
	case errors.Is(err, curriculum.ErrDuplicateLeafID), errors.Is(err, curriculum.ErrDuplicateNodeID):
		return http.StatusUnprocessableEntity, "duplicate_id"
	case errors.Is(err, curriculum.ErrInvalidPayload):
		return http.StatusUnprocessableEntity, "invalid_payload"
	}
	return http.StatusInternalServerError, "internal"
}

var errBadRequest = errors.New("bad request")
