package pipeline

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/TobiSchelling/articleforge/internal/article"
	"github.com/TobiSchelling/articleforge/internal/citation"
	"github.com/TobiSchelling/articleforge/internal/ethics"
	"github.com/TobiSchelling/articleforge/internal/extract"
	"github.com/TobiSchelling/articleforge/internal/fetch"
	"github.com/TobiSchelling/articleforge/internal/generate"
)

type stubGenerator struct {
	mu     sync.Mutex
	inputs []generate.Input
	err    error
}

func (g *stubGenerator) Generate(_ context.Context, in generate.Input) (article.Article, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inputs = append(g.inputs, in)
	if g.err != nil {
		return article.Article{}, g.err
	}
	return article.Article{
		Title:           "Generated",
		MetaDescription: "meta",
		BodyHTML:        `<h2>Generated</h2><p>Body citing https://www.cdc.gov/flu as a source.</p>`,
		Keywords:        []string{"flu"},
		WordCount:       7,
		Mode:            in.Mode,
		GeneratedAt:     time.Now(),
	}, nil
}

func (g *stubGenerator) calls() []generate.Input {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]generate.Input(nil), g.inputs...)
}

type stubFetcher struct {
	page string
	err  error
}

func (f *stubFetcher) Get(_ context.Context, _ string) (string, error) {
	return f.page, f.err
}

type blockingTranslator struct {
	once    sync.Once
	entered chan struct{}
}

func (b *blockingTranslator) MaybeTranslate(ctx context.Context, text, _ string) string {
	b.once.Do(func() { close(b.entered) })
	<-ctx.Done()
	return text
}

type stubRepo struct {
	mu      sync.Mutex
	saved   []string
	err     error
	entered chan struct{}
	release chan struct{}
}

func (r *stubRepo) Save(_ context.Context, runID string, _ Result) error {
	if r.entered != nil {
		close(r.entered)
		<-r.release
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, runID)
	return r.err
}

func (r *stubRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saved)
}

type panickingEthics struct{}

func (panickingEthics) Evaluate(article.Article) (ethics.Report, error) {
	panic("boom")
}

type stubArchiver struct {
	mu   sync.Mutex
	runs []Run
}

func (a *stubArchiver) ArchiveRun(_ context.Context, run Run) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runs = append(a.runs, run)
	return nil
}

func newTestOrchestrator(deps Deps) *Orchestrator {
	if deps.Generator == nil {
		deps.Generator = &stubGenerator{}
	}
	if deps.Ethics == nil {
		deps.Ethics = ethics.Default()
	}
	if deps.Citation == nil {
		deps.Citation = citation.Default()
	}
	return New(deps, Options{TargetLanguage: "ko", DefaultKeywords: []string{"AI"}})
}

// drain reads a run's events until the stream ends.
func drain(t *testing.T, o *Orchestrator, id string) []Event {
	t.Helper()
	s, ok := o.Events(id)
	if !ok {
		t.Fatalf("no stream for run %s", id)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var events []Event
	for {
		e, err := s.Next(ctx)
		if errors.Is(err, io.EOF) {
			return events
		}
		if err != nil {
			t.Fatalf("stream: %v (events so far %+v)", err, events)
		}
		events = append(events, e)
	}
}

func TestRunCompletes(t *testing.T) {
	repo := &stubRepo{}
	o := newTestOrchestrator(Deps{Repository: repo})

	id, err := o.Start(Request{Text: "Influenza spreads in winter. Influenza vaccines help.", Mode: article.ModeGEO})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	events := drain(t, o, id)

	var started []Stage
	var percents []int
	for _, e := range events {
		if e.Kind == EventStageStarted {
			started = append(started, e.Stage)
			percents = append(percents, e.Percent)
		}
	}
	if got, want := started, Stages(); len(got) != len(want) {
		t.Fatalf("started stages = %v, want %v", got, want)
	}
	for i, p := range []int{0, 25, 50, 75, 100} {
		if percents[i] != p {
			t.Errorf("stage %s percent = %d, want %d", started[i], percents[i], p)
		}
	}

	last := events[len(events)-1]
	if last.Kind != EventCompleted || last.Result == nil {
		t.Fatalf("last event = %+v", last)
	}
	if last.Result.Ethics == nil || last.Result.Citation == nil {
		t.Errorf("missing reports: %+v", last.Result)
	}
	if last.Result.Citation.ValidCount != 1 {
		t.Errorf("citation ValidCount = %d", last.Result.Citation.ValidCount)
	}
	if repo.count() != 1 {
		t.Errorf("saves = %d, want 1", repo.count())
	}
	if st, _ := o.Status(id); st != StatusCompleted {
		t.Errorf("status = %s", st)
	}
	run, _ := o.Get(id)
	if run.FinishedAt.IsZero() || run.Result == nil {
		t.Errorf("run = %+v", run)
	}
}

func TestDerivesKeywordsWhenMissing(t *testing.T) {
	gen := &stubGenerator{}
	o := newTestOrchestrator(Deps{Generator: gen})
	id, _ := o.Start(Request{Text: "Kubernetes schedules pods. Kubernetes restarts pods."})
	drain(t, o, id)

	calls := gen.calls()
	if len(calls) != 1 {
		t.Fatalf("generator calls = %d", len(calls))
	}
	if calls[0].Keywords != "kubernetes, pods, schedules, restarts" {
		t.Errorf("Keywords = %q", calls[0].Keywords)
	}
	if calls[0].TargetLength != DefaultTargetLength {
		t.Errorf("TargetLength = %d", calls[0].TargetLength)
	}
}

func TestCancelDuringTranslateSkipsGenerate(t *testing.T) {
	tr := &blockingTranslator{entered: make(chan struct{})}
	gen := &stubGenerator{}
	repo := &stubRepo{}
	o := newTestOrchestrator(Deps{Translator: tr, Generator: gen, Repository: repo})

	id, err := o.Start(Request{Text: "some english text", Keywords: "x"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-tr.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("translate stage never started")
	}
	if !o.Cancel(id) {
		t.Fatal("Cancel returned false for a running run")
	}

	events := drain(t, o, id)
	for _, e := range events {
		if e.Stage == StageGenerate || e.Stage == StagePersist {
			t.Errorf("unexpected event after cancel: %+v", e)
		}
	}
	last := events[len(events)-1]
	if last.Kind != EventCancelled || last.Status != StatusCancelled {
		t.Errorf("last event = %+v", last)
	}
	if st, _ := o.Status(id); st != StatusCancelled {
		t.Errorf("status = %s", st)
	}
	if len(gen.calls()) != 0 || repo.count() != 0 {
		t.Errorf("generator calls = %d, saves = %d", len(gen.calls()), repo.count())
	}
	if o.Cancel(id) {
		t.Error("Cancel succeeded on a terminal run")
	}
}

func TestCancelRefusedOncePersisting(t *testing.T) {
	repo := &stubRepo{entered: make(chan struct{}), release: make(chan struct{})}
	o := newTestOrchestrator(Deps{Repository: repo})

	id, _ := o.Start(Request{Text: "text", Keywords: "k"})
	select {
	case <-repo.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("persist never started")
	}
	if o.Cancel(id) {
		t.Error("Cancel accepted after persistence began")
	}
	close(repo.release)

	events := drain(t, o, id)
	if last := events[len(events)-1]; last.Kind != EventCompleted {
		t.Errorf("last event = %+v", last)
	}
}

func TestFetchErrorWithoutTextFails(t *testing.T) {
	fetcher := &stubFetcher{err: &fetch.FetchError{URL: "https://x.test", StatusCode: 404}}
	gen := &stubGenerator{}
	o := newTestOrchestrator(Deps{Fetcher: fetcher, Generator: gen})

	id, _ := o.Start(Request{URL: "https://x.test"})
	events := drain(t, o, id)

	last := events[len(events)-1]
	if last.Kind != EventFailed || last.Stage != StageExtract || last.Error == "" {
		t.Errorf("last event = %+v", last)
	}
	run, _ := o.Get(id)
	if run.Status != StatusFailed || run.Stage != StageExtract || !strings.Contains(run.Error, "404") {
		t.Errorf("run = %+v", run)
	}
	if len(gen.calls()) != 0 {
		t.Error("generator called after fetch failure")
	}
}

func TestFetchErrorFallsBackToText(t *testing.T) {
	fetcher := &stubFetcher{err: &fetch.FetchError{URL: "https://x.test", StatusCode: 500}}
	gen := &stubGenerator{}
	o := newTestOrchestrator(Deps{Fetcher: fetcher, Generator: gen})

	id, _ := o.Start(Request{URL: "https://x.test", Text: "fallback body", Keywords: "k"})
	events := drain(t, o, id)

	last := events[len(events)-1]
	if last.Kind != EventCompleted {
		t.Fatalf("last event = %+v", last)
	}
	if gen.calls()[0].Text != "fallback body" {
		t.Errorf("generator text = %q", gen.calls()[0].Text)
	}
	if len(last.Result.Warnings) == 0 {
		t.Error("expected a fetch warning")
	}
}

func TestEmptyExtractionFallsBackToMetadata(t *testing.T) {
	page := `<html><head><title>Only A Title</title></head><body><nav><a href="/">home</a></nav><script>x()</script><footer>f</footer></body></html>`
	gen := &stubGenerator{}
	o := newTestOrchestrator(Deps{Fetcher: &stubFetcher{page: page}, Generator: gen})

	id, _ := o.Start(Request{URL: "https://x.test/a", Keywords: "k"})
	events := drain(t, o, id)

	last := events[len(events)-1]
	if last.Kind != EventCompleted {
		t.Fatalf("last event = %+v", last)
	}
	if !strings.Contains(gen.calls()[0].Text, "Only A Title") {
		t.Errorf("generator text = %q", gen.calls()[0].Text)
	}
	found := false
	for _, w := range last.Result.Warnings {
		if w == extract.ErrExtractionEmpty.Error() {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %v", last.Result.Warnings)
	}
}

func TestEmptyPageWithoutMetadataFailsAtExtract(t *testing.T) {
	gen := &stubGenerator{}
	o := newTestOrchestrator(Deps{Fetcher: &stubFetcher{page: "<html><head></head><body></body></html>"}, Generator: gen})

	id, _ := o.Start(Request{URL: "https://x.test/empty", Keywords: "k"})
	events := drain(t, o, id)

	last := events[len(events)-1]
	if last.Kind != EventFailed || last.Stage != StageExtract {
		t.Fatalf("last event = %+v", last)
	}
	if !strings.Contains(last.Error, extract.ErrExtractionEmpty.Error()) {
		t.Errorf("Error = %q", last.Error)
	}
	if n := len(gen.calls()); n != 0 {
		t.Errorf("generator called %d times", n)
	}
}

func TestGenerationErrorFails(t *testing.T) {
	gen := &stubGenerator{err: &generate.GenerationError{Attempts: 4, Err: errors.New("upstream down")}}
	repo := &stubRepo{}
	o := newTestOrchestrator(Deps{Generator: gen, Repository: repo})

	id, _ := o.Start(Request{Text: "t", Keywords: "k"})
	events := drain(t, o, id)

	last := events[len(events)-1]
	if last.Kind != EventFailed || last.Stage != StageGenerate {
		t.Errorf("last event = %+v", last)
	}
	if !strings.Contains(last.Error, "upstream down") {
		t.Errorf("Error = %q", last.Error)
	}
	if repo.count() != 0 {
		t.Error("failed run was persisted")
	}
}

func TestEvaluatorPanicDegrades(t *testing.T) {
	o := newTestOrchestrator(Deps{Ethics: panickingEthics{}})
	id, _ := o.Start(Request{Text: "t", Keywords: "k"})
	events := drain(t, o, id)

	last := events[len(events)-1]
	if last.Kind != EventCompleted {
		t.Fatalf("last event = %+v", last)
	}
	if last.Result.Ethics != nil {
		t.Error("ethics report should be unavailable")
	}
	if last.Result.Citation == nil {
		t.Error("citation report missing")
	}
	if len(last.Result.Warnings) != 1 || !strings.Contains(last.Result.Warnings[0], "ethics") {
		t.Errorf("warnings = %v", last.Result.Warnings)
	}
}

func TestPersistenceErrorIsNonFatal(t *testing.T) {
	repo := &stubRepo{err: errors.New("disk full")}
	o := newTestOrchestrator(Deps{Repository: repo})
	id, _ := o.Start(Request{Text: "t", Keywords: "k"})
	events := drain(t, o, id)

	last := events[len(events)-1]
	if last.Kind != EventCompleted {
		t.Fatalf("last event = %+v", last)
	}
	if !strings.Contains(strings.Join(last.Result.Warnings, ";"), "disk full") {
		t.Errorf("warnings = %v", last.Result.Warnings)
	}
}

func TestStartValidates(t *testing.T) {
	o := newTestOrchestrator(Deps{})
	if _, err := o.Start(Request{}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("err = %v, want ErrInvalidRequest", err)
	}
	if _, err := o.Start(Request{Text: "x", Mode: article.Mode(9)}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("err = %v, want ErrInvalidRequest", err)
	}
	if o.Cancel("missing") {
		t.Error("Cancel accepted an unknown run")
	}
	if _, ok := o.Status("missing"); ok {
		t.Error("Status found an unknown run")
	}
}

func TestReapArchivesExpiredRuns(t *testing.T) {
	arch := &stubArchiver{}
	o := newTestOrchestrator(Deps{Archiver: arch})
	id, _ := o.Start(Request{Text: "t", Keywords: "k"})
	drain(t, o, id)

	if n := o.Reap(time.Now()); n != 0 {
		t.Errorf("reaped %d fresh runs", n)
	}
	if n := o.Reap(time.Now().Add(2 * time.Hour)); n != 1 {
		t.Fatalf("reaped %d, want 1", n)
	}
	if _, ok := o.Get(id); ok {
		t.Error("reaped run still present")
	}
	if len(arch.runs) != 1 || arch.runs[0].ID != id {
		t.Errorf("archived = %+v", arch.runs)
	}
}

func TestLateSubscriberSeesTerminal(t *testing.T) {
	o := newTestOrchestrator(Deps{})
	id, _ := o.Start(Request{Text: "t", Keywords: "k"})
	first := drain(t, o, id)
	second := drain(t, o, id)
	if len(second) == 0 || !second[len(second)-1].Terminal() {
		t.Errorf("late subscriber events = %+v", second)
	}
	if first[len(first)-1].Kind != second[len(second)-1].Kind {
		t.Error("subscribers disagree on terminal event")
	}
}

func TestStreamDropsOldestKeepsTerminal(t *testing.T) {
	s := newStream(2)
	for i := 0; i < 5; i++ {
		s.publish(Event{Kind: EventStageStarted, Percent: i})
	}
	s.close(Event{Kind: EventCompleted})
	s.publish(Event{Kind: EventStageStarted, Percent: 99})

	ctx := context.Background()
	var got []Event
	for {
		e, err := s.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, e)
	}
	if len(got) != 3 || got[0].Percent != 3 || got[1].Percent != 4 || got[2].Kind != EventCompleted {
		t.Errorf("events = %+v", got)
	}
	if s.Dropped() != 3 {
		t.Errorf("Dropped = %d", s.Dropped())
	}
	if _, err := s.Next(ctx); err != io.EOF {
		t.Errorf("Next after terminal = %v", err)
	}
}

func TestStreamChannel(t *testing.T) {
	s := newStream(4)
	s.publish(Event{Kind: EventStageStarted})
	s.close(Event{Kind: EventFailed})

	var kinds []EventKind
	for e := range s.C(context.Background()) {
		kinds = append(kinds, e.Kind)
	}
	if len(kinds) != 2 || kinds[1] != EventFailed {
		t.Errorf("kinds = %v", kinds)
	}
}

func TestStreamNextHonoursContext(t *testing.T) {
	s := newStream(1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := s.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v", err)
	}
}
