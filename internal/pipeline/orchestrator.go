// Package pipeline runs the extract, translate, generate, evaluate and
// persist stages for each request, tracks runs in a registry and streams
// their progress.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TobiSchelling/articleforge/internal/article"
	"github.com/TobiSchelling/articleforge/internal/citation"
	"github.com/TobiSchelling/articleforge/internal/ethics"
	"github.com/TobiSchelling/articleforge/internal/extract"
	"github.com/TobiSchelling/articleforge/internal/fetch"
	"github.com/TobiSchelling/articleforge/internal/generate"
)

// DefaultRunTTL is how long a finished run stays queryable before reaping.
const DefaultRunTTL = time.Hour

// Translator converts text into a target language and never fails.
type Translator interface {
	MaybeTranslate(ctx context.Context, text, lang string) string
}

// EthicsEvaluator scores an article on the ethics dimensions.
type EthicsEvaluator interface {
	Evaluate(a article.Article) (ethics.Report, error)
}

// CitationEvaluator scores an article's citations.
type CitationEvaluator interface {
	Evaluate(a article.Article) (citation.Report, error)
}

// Repository persists completed results.
type Repository interface {
	Save(ctx context.Context, runID string, res Result) error
}

// Archiver keeps a record of finished runs before they are reaped.
type Archiver interface {
	ArchiveRun(ctx context.Context, run Run) error
}

// Deps are the collaborators of an Orchestrator. Fetcher is needed only for
// URL requests; Translator, Ethics, Citation, Repository and Archiver are
// optional.
type Deps struct {
	Fetcher    fetch.Fetcher
	Extractor  *extract.Extractor
	Translator Translator
	Generator  generate.Generator
	Ethics     EthicsEvaluator
	Citation   CitationEvaluator
	Repository Repository
	Archiver   Archiver
	Logger     *slog.Logger
}

// Options tune an Orchestrator.
type Options struct {
	EventBuffer     int
	RunTTL          time.Duration
	TargetLanguage  string
	DefaultLength   int
	DefaultKeywords []string
	MaxKeywords     int
}

// Orchestrator owns every run it starts.
type Orchestrator struct {
	deps   Deps
	opts   Options
	logger *slog.Logger
	now    func() time.Time

	mu   sync.RWMutex
	runs map[string]*runState
	wg   sync.WaitGroup
}

type runState struct {
	mu              sync.Mutex
	run             Run
	cancel          context.CancelFunc
	cancelRequested bool
	committed       bool
	history         []Event
	historyCap      int
	terminal        *Event
	subs            []*Stream
	warnings        []string
}

// New creates an Orchestrator.
func New(deps Deps, opts Options) *Orchestrator {
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = DefaultEventBuffer
	}
	if opts.RunTTL <= 0 {
		opts.RunTTL = DefaultRunTTL
	}
	if opts.DefaultLength <= 0 {
		opts.DefaultLength = DefaultTargetLength
	}
	if opts.MaxKeywords <= 0 {
		opts.MaxKeywords = 5
	}
	if deps.Extractor == nil {
		deps.Extractor = extract.Default()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		deps:   deps,
		opts:   opts,
		logger: logger.With("component", "pipeline"),
		now:    time.Now,
		runs:   make(map[string]*runState),
	}
}

// Start validates req, registers a pending run and executes it in the
// background. The run id is returned before any stage runs.
func (o *Orchestrator) Start(req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if o.deps.Generator == nil {
		return "", fmt.Errorf("pipeline has no generator configured")
	}
	if req.TargetLength == 0 {
		req.TargetLength = o.opts.DefaultLength
	}
	if req.TargetLanguage == "" {
		req.TargetLanguage = o.opts.TargetLanguage
	}

	ctx, cancel := context.WithCancel(context.Background())
	st := &runState{
		run: Run{
			ID:        uuid.NewString(),
			Status:    StatusPending,
			StartedAt: o.now().UTC(),
			Request:   req,
		},
		cancel:     cancel,
		historyCap: o.opts.EventBuffer,
	}

	o.mu.Lock()
	o.runs[st.run.ID] = st
	o.mu.Unlock()

	o.logger.Info("run accepted", "run", st.run.ID, "mode", req.Mode, "url", req.URL)
	o.wg.Add(1)
	go o.execute(ctx, st)
	return st.run.ID, nil
}

// Status returns the current status of a run.
func (o *Orchestrator) Status(id string) (Status, bool) {
	st := o.lookup(id)
	if st == nil {
		return "", false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.run.Status, true
}

// Get returns a snapshot of a run.
func (o *Orchestrator) Get(id string) (Run, bool) {
	st := o.lookup(id)
	if st == nil {
		return Run{}, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.run, true
}

// Runs returns snapshots of every registered run, newest first.
func (o *Orchestrator) Runs() []Run {
	o.mu.RLock()
	states := make([]*runState, 0, len(o.runs))
	for _, st := range o.runs {
		states = append(states, st)
	}
	o.mu.RUnlock()

	out := make([]Run, 0, len(states))
	for _, st := range states {
		st.mu.Lock()
		out = append(out, st.run)
		st.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

// Cancel asks a run to stop at its next stage boundary and cancels its
// in-flight calls. It returns false for unknown or terminal runs and once
// persistence has begun.
func (o *Orchestrator) Cancel(id string) bool {
	st := o.lookup(id)
	if st == nil {
		return false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.run.Status.Terminal() || st.committed {
		return false
	}
	if !st.cancelRequested {
		st.cancelRequested = true
		st.cancel()
		o.logger.Info("run cancellation requested", "run", id, "stage", st.run.Stage)
	}
	return true
}

// Events returns a new stream for a run. It replays the buffered history,
// so a subscriber that arrives late still sees the terminal event.
func (o *Orchestrator) Events(id string) (*Stream, bool) {
	st := o.lookup(id)
	if st == nil {
		return nil, false
	}
	s := newStream(o.opts.EventBuffer)
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, e := range st.history {
		s.publish(e)
	}
	if st.terminal != nil {
		s.close(*st.terminal)
	} else {
		st.subs = append(st.subs, s)
	}
	return s, true
}

// Reap removes terminal runs that finished more than the TTL before now,
// archiving each first. A run whose archive fails is kept for the next pass.
func (o *Orchestrator) Reap(now time.Time) int {
	var expired []Run
	o.mu.RLock()
	for _, st := range o.runs {
		st.mu.Lock()
		if st.run.Status.Terminal() && now.Sub(st.run.FinishedAt) >= o.opts.RunTTL {
			expired = append(expired, st.run)
		}
		st.mu.Unlock()
	}
	o.mu.RUnlock()

	reaped := 0
	for _, run := range expired {
		if o.deps.Archiver != nil {
			if err := o.deps.Archiver.ArchiveRun(context.Background(), run); err != nil {
				o.logger.Warn("archiving run failed", "run", run.ID, "error", err)
				continue
			}
		}
		o.mu.Lock()
		delete(o.runs, run.ID)
		o.mu.Unlock()
		reaped++
	}
	if reaped > 0 {
		o.logger.Debug("reaped runs", "count", reaped)
	}
	return reaped
}

// StartReaper calls Reap every interval until ctx is done.
func (o *Orchestrator) StartReaper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				o.Reap(o.now())
			}
		}
	}()
}

// Shutdown cancels every active run and waits for them to finish or for
// ctx to expire.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.RLock()
	ids := make([]string, 0, len(o.runs))
	for id := range o.runs {
		ids = append(ids, id)
	}
	o.mu.RUnlock()
	for _, id := range ids {
		o.Cancel(id)
	}

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) lookup(id string) *runState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.runs[id]
}

// emit must be called with st.mu held.
func (st *runState) emit(e Event) {
	if len(st.history) >= st.historyCap {
		st.history = st.history[1:]
	}
	st.history = append(st.history, e)
	for _, s := range st.subs {
		s.publish(e)
	}
}

// finish moves the run to a terminal status once. It must be called with
// st.mu held.
func (st *runState) finish(e Event, finishedAt time.Time) bool {
	if st.run.Status.Terminal() {
		return false
	}
	st.run.Status = e.Status
	st.run.FinishedAt = finishedAt
	st.run.Error = e.Error
	st.run.Result = e.Result
	st.terminal = &e
	for _, s := range st.subs {
		s.close(e)
	}
	st.subs = nil
	st.cancel()
	return true
}
