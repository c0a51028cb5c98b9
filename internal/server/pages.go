package server

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/TobiSchelling/articleforge/internal/database"
)

var funcMap = template.FuncMap{
	// Bodies are produced by our own generator and rendered as-is.
	"rawHTML": func(s string) template.HTML {
		return template.HTML(s) //nolint: gosec
	},
	"score": func(v *float64) string {
		if v == nil {
			return "n/a"
		}
		return fmt.Sprintf("%.1f", *v)
	},
	"fixed": func(v float64) string {
		return fmt.Sprintf("%.1f", v)
	},
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Local().Format("2006-01-02 15:04")
	},
	"join": strings.Join,
}

func (s *Server) handleIndexPage(w http.ResponseWriter, r *http.Request) {
	filter := database.PostFilter{Mode: r.URL.Query().Get("mode"), Query: r.URL.Query().Get("q")}
	posts, err := s.posts.ListPosts(r.Context(), filter)
	if err != nil {
		s.log.Error("listing posts failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.render(w, http.StatusOK, "index.html", map[string]any{
		"Posts":  posts,
		"Runs":   s.runs.Runs(),
		"Filter": filter,
	})
}

func (s *Server) handlePostPage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.handleNotFound(w, r)
		return
	}
	post, err := s.posts.GetPost(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		s.handleNotFound(w, r)
		return
	}
	if err != nil {
		s.log.Error("loading post failed", "id", id, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.render(w, http.StatusOK, "post.html", map[string]any{"Post": post})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		s.respondError(w, http.StatusNotFound, "not found")
		return
	}
	s.render(w, http.StatusNotFound, "notfound.html", map[string]any{"Path": r.URL.Path})
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		s.log.Error("template not found", "template", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		s.log.Error("rendering template failed", "template", name, "error", err)
	}
}
