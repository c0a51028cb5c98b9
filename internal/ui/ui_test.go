package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/TobiSchelling/articleforge/internal/article"
	"github.com/TobiSchelling/articleforge/internal/ethics"
	"github.com/TobiSchelling/articleforge/internal/generate"
	"github.com/TobiSchelling/articleforge/internal/pipeline"
	"github.com/TobiSchelling/articleforge/internal/seo"
)

type stubGenerator struct {
	err error
}

func (g *stubGenerator) Generate(ctx context.Context, in generate.Input) (article.Article, error) {
	if g.err != nil {
		return article.Article{}, g.err
	}
	return article.Article{
		Title:     "Scheduling pods",
		BodyHTML:  "<h2>Scheduling pods</h2><p>The scheduler places pods on nodes.</p>",
		WordCount: 9,
		Mode:      in.Mode,
	}, nil
}

func follow(t *testing.T, gen generate.Generator) (pipeline.Event, string) {
	t.Helper()
	orch := pipeline.New(pipeline.Deps{Generator: gen}, pipeline.Options{})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		orch.Shutdown(ctx)
	})

	req := pipeline.Request{Text: "Kubernetes schedules pods onto nodes.", Mode: article.ModeAEO}
	id, err := orch.Start(req)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	stream, ok := orch.Events(id)
	if !ok {
		t.Fatalf("no stream for %s", id)
	}

	var buf bytes.Buffer
	p := NewPlainPresenter(&buf)
	p.Start(id, req)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e, err := Follow(ctx, p, stream)
	if err != nil {
		t.Fatalf("Follow: %v", err)
	}
	return e, buf.String()
}

func TestFollowCompletedRun(t *testing.T) {
	e, out := follow(t, &stubGenerator{})
	if e.Kind != pipeline.EventCompleted {
		t.Fatalf("expected completed, got %s", e.Kind)
	}
	for _, want := range []string{"source=text mode=aeo", "[  0%] extract", "[ 50%] generate", "completed", "title: Scheduling pods", "words: 9"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestFollowFailedRun(t *testing.T) {
	e, out := follow(t, &stubGenerator{err: errors.New("upstream down")})
	if e.Kind != pipeline.EventFailed {
		t.Fatalf("expected failed, got %s", e.Kind)
	}
	if !strings.Contains(out, "failed: ") || !strings.Contains(out, "upstream down") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestFollowHonoursContext(t *testing.T) {
	orch := pipeline.New(pipeline.Deps{Generator: &blockingGenerator{}}, pipeline.Options{})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		orch.Shutdown(ctx)
	}()
	id, err := orch.Start(pipeline.Request{Text: "some text", Mode: article.ModeBasic})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	stream, _ := orch.Events(id)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := Follow(ctx, NewPlainPresenter(&bytes.Buffer{}), stream); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

type blockingGenerator struct{}

func (blockingGenerator) Generate(ctx context.Context, in generate.Input) (article.Article, error) {
	<-ctx.Done()
	return article.Article{}, ctx.Err()
}

func TestScoreRows(t *testing.T) {
	if rows := ScoreRows(nil); len(rows) != 1 {
		t.Errorf("expected header only, got %v", rows)
	}

	rows := ScoreRows(&pipeline.Result{
		Article: article.Article{WordCount: 120},
		SEO:     seo.Report{Score: 71.25},
		Ethics:  &ethics.Report{OverallScore: 90},
	})
	want := [][]string{
		{"Check", "Score"},
		{"SEO", "71.2"},
		{"Ethics", "90.0"},
		{"Citations", "n/a"},
		{"Words", "120"},
	}
	if len(rows) != len(want) {
		t.Fatalf("expected %d rows, got %v", len(want), rows)
	}
	for i := range want {
		if rows[i][0] != want[i][0] || rows[i][1] != want[i][1] {
			t.Errorf("row %d = %v, want %v", i, rows[i], want[i])
		}
	}
}
