// Package ui renders pipeline run progress in the terminal.
package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/TobiSchelling/articleforge/internal/pipeline"
)

// Presenter displays the progress of a single run.
type Presenter interface {
	// Start announces a run before its first event.
	Start(runID string, req pipeline.Request)

	// StageStarted marks a stage as in progress.
	StageStarted(stage pipeline.Stage, percent int)

	// StageFinished marks the current stage as done.
	StageFinished(stage pipeline.Stage, message string)

	// Finish renders the terminal event of the run.
	Finish(e pipeline.Event)

	Info(msg string)
	Warning(msg string)
	Error(msg string)

	// Close stops anything still animating.
	Close() error
}

// Follow drains stream into p until the terminal event arrives and returns
// that event.
func Follow(ctx context.Context, p Presenter, stream *pipeline.Stream) (pipeline.Event, error) {
	for {
		e, err := stream.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return pipeline.Event{}, fmt.Errorf("stream ended without a terminal event")
			}
			return pipeline.Event{}, err
		}
		switch e.Kind {
		case pipeline.EventStageStarted:
			p.StageStarted(e.Stage, e.Percent)
		case pipeline.EventStageFinished:
			p.StageFinished(e.Stage, e.Message)
		default:
			if e.Terminal() {
				p.Finish(e)
				return e, nil
			}
		}
	}
}

// ScoreRows summarizes a result as label/value rows, header first.
func ScoreRows(res *pipeline.Result) [][]string {
	rows := [][]string{{"Check", "Score"}}
	if res == nil {
		return rows
	}
	rows = append(rows, []string{"SEO", fmt.Sprintf("%.1f", res.SEO.Score)})
	if res.Ethics != nil {
		rows = append(rows, []string{"Ethics", fmt.Sprintf("%.1f", res.Ethics.OverallScore)})
	} else {
		rows = append(rows, []string{"Ethics", "n/a"})
	}
	if res.Citation != nil {
		rows = append(rows, []string{"Citations", fmt.Sprintf("%.1f", res.Citation.Score)})
	} else {
		rows = append(rows, []string{"Citations", "n/a"})
	}
	rows = append(rows, []string{"Words", fmt.Sprintf("%d", res.Article.WordCount)})
	return rows
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
