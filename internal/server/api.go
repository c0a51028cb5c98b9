package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/TobiSchelling/articleforge/internal/database"
	"github.com/TobiSchelling/articleforge/internal/pipeline"
)

const maxRequestBody = 1 << 20

// StartRunResponse is returned by POST /api/runs.
type StartRunResponse struct {
	ID        string `json:"id"`
	StatusURL string `json:"status_url"`
	EventsURL string `json:"events_url"`
}

// ErrorResponse is the body of every API error.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	id, err := s.runs.Start(req)
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidRequest) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error("starting run failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to start run")
		return
	}

	w.Header().Set("Location", "/api/runs/"+id)
	s.respondJSON(w, http.StatusAccepted, StartRunResponse{
		ID:        id,
		StatusURL: "/api/runs/" + id,
		EventsURL: "/api/runs/" + id + "/events",
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs := s.runs.Runs()
	if runs == nil {
		runs = []pipeline.Run{}
	}
	s.respondJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.runs.Get(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "run not found")
		return
	}
	s.respondJSON(w, http.StatusOK, run)
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, ok := s.runs.Get(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "run not found")
		return
	}
	if !s.runs.Cancel(id) {
		s.respondError(w, http.StatusConflict, "run can no longer be cancelled (status "+string(run.Status)+")")
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]any{"id": id, "cancel_requested": true})
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := database.PostFilter{
		Mode:  q.Get("mode"),
		Query: q.Get("q"),
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	if v := q.Get("min_seo"); v != "" {
		if filter.MinSEOScore, err = strconv.ParseFloat(v, 64); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid min_seo")
			return
		}
	}

	posts, err := s.posts.ListPosts(r.Context(), filter)
	if err != nil {
		s.log.Error("listing posts failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to load posts")
		return
	}
	if posts == nil {
		posts = []database.PostSummary{}
	}
	s.respondJSON(w, http.StatusOK, posts)
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid post id")
		return
	}
	post, err := s.posts.GetPost(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "post not found")
		return
	}
	if err != nil {
		s.log.Error("loading post failed", "id", id, "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to load post")
		return
	}
	s.respondJSON(w, http.StatusOK, post)
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New("invalid integer")
	}
	return n, nil
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("failed to encode JSON response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respondJSON(w, status, ErrorResponse{Error: msg})
}
