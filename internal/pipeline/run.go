package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/TobiSchelling/articleforge/internal/article"
	"github.com/TobiSchelling/articleforge/internal/citation"
	"github.com/TobiSchelling/articleforge/internal/ethics"
	"github.com/TobiSchelling/articleforge/internal/seo"
)

// DefaultTargetLength is used when a request does not set one.
const DefaultTargetLength = 3000

// Status is the lifecycle state of a run. Terminal states are absorbing.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition can happen.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Stage is one step of a run.
type Stage string

const (
	StageExtract   Stage = "extract"
	StageTranslate Stage = "translate"
	StageGenerate  Stage = "generate"
	StageEvaluate  Stage = "evaluate"
	StagePersist   Stage = "persist"
)

// Stages lists the stages in execution order.
func Stages() []Stage {
	return []Stage{StageExtract, StageTranslate, StageGenerate, StageEvaluate, StagePersist}
}

// Percent is the progress checkpoint reported when the stage starts.
func (s Stage) Percent() int {
	switch s {
	case StageTranslate:
		return 25
	case StageGenerate:
		return 50
	case StageEvaluate:
		return 75
	case StagePersist:
		return 100
	}
	return 0
}

// Request is the immutable input of a run. At least one of URL and Text
// is required; when both are set, Text is the fallback for an unreachable
// or empty page.
type Request struct {
	URL            string       `json:"url,omitempty"`
	Text           string       `json:"text,omitempty"`
	Keywords       string       `json:"keywords,omitempty"`
	Mode           article.Mode `json:"mode"`
	TargetLength   int          `json:"target_length,omitempty"`
	TargetLanguage string       `json:"target_language,omitempty"`
}

// ErrInvalidRequest is wrapped by every request validation failure.
var ErrInvalidRequest = errors.New("invalid request")

// Validate checks the request before a run is registered.
func (r Request) Validate() error {
	if strings.TrimSpace(r.URL) == "" && strings.TrimSpace(r.Text) == "" {
		return fmt.Errorf("%w: url or text is required", ErrInvalidRequest)
	}
	if !r.Mode.Valid() {
		return fmt.Errorf("%w: unsupported mode %d", ErrInvalidRequest, int(r.Mode))
	}
	if r.TargetLength < 0 {
		return fmt.Errorf("%w: negative target length", ErrInvalidRequest)
	}
	return nil
}

// Result bundles the generated article with its evaluations. A nil report
// means that score is unavailable.
type Result struct {
	Article  article.Article  `json:"article"`
	Ethics   *ethics.Report   `json:"ethics,omitempty"`
	Citation *citation.Report `json:"citation,omitempty"`
	SEO      seo.Report       `json:"seo"`
	Warnings []string         `json:"warnings,omitempty"`

	SourceURL string `json:"source_url,omitempty"`
}

// Run is a snapshot of a run's execution record.
type Run struct {
	ID         string    `json:"id"`
	Status     Status    `json:"status"`
	Stage      Stage     `json:"stage,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	Error      string    `json:"error,omitempty"`
	Request    Request   `json:"request"`
	Result     *Result   `json:"result,omitempty"`
}

// EventKind classifies stream events.
type EventKind string

const (
	EventStageStarted  EventKind = "stage_started"
	EventStageFinished EventKind = "stage_finished"
	EventCompleted     EventKind = "completed"
	EventFailed        EventKind = "failed"
	EventCancelled     EventKind = "cancelled"
)

// Event is one progress record or the terminal record of a run.
type Event struct {
	RunID   string    `json:"run_id"`
	Kind    EventKind `json:"kind"`
	Stage   Stage     `json:"stage,omitempty"`
	Percent int       `json:"percent"`
	Message string    `json:"message,omitempty"`
	Status  Status    `json:"status,omitempty"`
	Error   string    `json:"error,omitempty"`
	Result  *Result   `json:"result,omitempty"`
	Time    time.Time `json:"time"`
}

// Terminal reports whether e ends its stream.
func (e Event) Terminal() bool {
	return e.Kind == EventCompleted || e.Kind == EventFailed || e.Kind == EventCancelled
}

// EvaluationError marks an evaluator that failed or panicked. The run
// continues with that report unavailable.
type EvaluationError struct {
	Evaluator string
	Err       error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("%s evaluation unavailable: %v", e.Evaluator, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// PersistenceError marks a failed save. It is logged and never fails a run.
type PersistenceError struct {
	RunID string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persisting run %s: %v", e.RunID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
