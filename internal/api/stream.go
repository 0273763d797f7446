package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/pai-mapper/internal/planner"
)

const writeTimeout = 5 * time.Second

// handleStream upgrades to a websocket and pushes an EstimateUpdate for the
// current state followed by one per change. The socket closes normally when
// the session ends.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.updates == nil {
		writeJSON(w, http.StatusNotImplemented, errorEnvelope{Error: errorBody{
			Message: "estimate streaming is not configured",
			Code:    "not_implemented",
		}})
		return
	}

	id := r.PathValue("id")
	// Subscribe before reading the view so no change slips between them.
	updates, cancel := s.updates.Subscribe(id)
	defer cancel()

	view, err := s.planner.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	// Streams outlive the server's WriteTimeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.origins})
	if err != nil {
		slog.Warn("websocket accept failed", "session_id", id, "error", err)
		return
	}
	defer conn.CloseNow()

	// The client only listens; CloseRead handles its control frames.
	ctx := conn.CloseRead(r.Context())

	last := view.Version
	if err := writeUpdate(ctx, conn, initialUpdate(view)); err != nil {
		return
	}
	slog.Debug("estimate stream opened", "session_id", id)

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if update.Version <= last && !update.Closed {
				continue
			}
			last = update.Version
			if err := writeUpdate(ctx, conn, update); err != nil {
				return
			}
			if update.Closed {
				conn.Close(websocket.StatusNormalClosure, "session closed")
				return
			}
		}
	}
}

func writeUpdate(ctx context.Context, conn *websocket.Conn, update planner.EstimateUpdate) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, conn, update); err != nil {
		slog.Debug("estimate stream write failed", "session_id", update.SessionID, "error", err)
		return err
	}
	return nil
}

func initialUpdate(v planner.View) planner.EstimateUpdate {
	return planner.EstimateUpdate{
		SessionID:   v.SessionID,
		Version:     v.Version,
		Fingerprint: v.Fingerprint,
		Selection:   v.Selection,
		Estimate:    v.Estimate,
		At:          time.Now(),
	}
}
