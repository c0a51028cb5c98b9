package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/TobiSchelling/articleforge/internal/pipeline"
)

// PlainPresenter writes one line per event. It is used when output is not
// a terminal.
type PlainPresenter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPlainPresenter creates a PlainPresenter writing to w.
func NewPlainPresenter(w io.Writer) *PlainPresenter {
	return &PlainPresenter{w: w}
}

func (p *PlainPresenter) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format, args...)
}

func (p *PlainPresenter) Start(runID string, req pipeline.Request) {
	source := req.URL
	if source == "" {
		source = "text"
	}
	p.printf("run %s started: source=%s mode=%s\n", runID, source, req.Mode)
}

func (p *PlainPresenter) StageStarted(stage pipeline.Stage, percent int) {
	p.printf("[%3d%%] %s\n", percent, stage)
}

func (p *PlainPresenter) StageFinished(stage pipeline.Stage, message string) {
	if message == "" {
		p.printf("       %s done\n", stage)
		return
	}
	p.printf("       %s done: %s\n", stage, message)
}

func (p *PlainPresenter) Finish(e pipeline.Event) {
	switch e.Kind {
	case pipeline.EventCompleted:
		p.printf("completed\n")
		if e.Result == nil {
			return
		}
		p.printf("title: %s\n", e.Result.Article.Title)
		for _, row := range ScoreRows(e.Result)[1:] {
			p.printf("%s: %s\n", strings.ToLower(row[0]), row[1])
		}
		for _, w := range e.Result.Warnings {
			p.printf("warning: %s\n", w)
		}
	case pipeline.EventCancelled:
		p.printf("cancelled\n")
	default:
		p.printf("failed: %s\n", e.Error)
	}
}

func (p *PlainPresenter) Info(msg string)    { p.printf("%s\n", msg) }
func (p *PlainPresenter) Warning(msg string) { p.printf("warning: %s\n", msg) }
func (p *PlainPresenter) Error(msg string)   { p.printf("error: %s\n", msg) }
func (p *PlainPresenter) Close() error       { return nil }
