package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleRunEvents streams a run's events as server-sent events. Each event
// is named after its kind; the stream ends after the terminal event.
func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	stream, ok := s.runs.Events(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "run not found")
		return
	}

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		s.log.Warn("response does not support streaming", "run", id, "error", err)
		return
	}

	ctx := r.Context()
	for seq := 1; ; {
		waitCtx, cancel := context.WithTimeout(ctx, s.heartbeat)
		e, err := stream.Next(waitCtx)
		cancel()
		switch {
		case err == nil:
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			if rc.Flush() != nil {
				return
			}
			continue
		default:
			// io.EOF after the terminal event, or the client went away.
			return
		}

		data, err := json.Marshal(e)
		if err != nil {
			s.log.Error("encoding event failed", "run", id, "error", err)
			return
		}
		if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", seq, e.Kind, data); err != nil {
			return
		}
		if rc.Flush() != nil {
			return
		}
		seq++
		if e.Terminal() {
			return
		}
	}
}
