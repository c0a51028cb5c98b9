package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/TobiSchelling/articleforge/internal/article"
	"github.com/TobiSchelling/articleforge/internal/citation"
	"github.com/TobiSchelling/articleforge/internal/ethics"
	"github.com/TobiSchelling/articleforge/internal/extract"
	"github.com/TobiSchelling/articleforge/internal/generate"
	"github.com/TobiSchelling/articleforge/internal/seo"
)

func (o *Orchestrator) execute(ctx context.Context, st *runState) {
	defer o.wg.Done()
	defer func() {
		if p := recover(); p != nil {
			st.mu.Lock()
			stage := st.run.Stage
			st.mu.Unlock()
			o.fail(st, stage, fmt.Errorf("internal error: %v", p))
		}
	}()

	st.mu.Lock()
	if st.run.Status == StatusPending {
		st.run.Status = StatusRunning
	}
	req := st.run.Request
	st.mu.Unlock()

	if !o.enter(st, StageExtract, "extracting source content") {
		return
	}
	source, err := o.extractSource(ctx, st, req)
	if err != nil {
		o.failOrCancel(st, StageExtract, err)
		return
	}
	o.leave(st, StageExtract, fmt.Sprintf("extracted %d characters", utf8.RuneCountInString(source)))

	if !o.enter(st, StageTranslate, "checking language") {
		return
	}
	text := source
	if o.deps.Translator != nil && req.TargetLanguage != "" {
		text = o.deps.Translator.MaybeTranslate(ctx, source, req.TargetLanguage)
	}
	o.leave(st, StageTranslate, "source text ready")

	keywords := req.Keywords
	if strings.TrimSpace(keywords) == "" {
		keywords = strings.Join(seo.ExtractKeywords(text, o.opts.MaxKeywords, o.opts.DefaultKeywords), ", ")
	}

	if !o.enter(st, StageGenerate, "generating article") {
		return
	}
	art, err := o.deps.Generator.Generate(ctx, generate.Input{
		Text:         text,
		Keywords:     keywords,
		Mode:         req.Mode,
		TargetLength: req.TargetLength,
	})
	if err != nil {
		var ge *generate.GenerationError
		if !errors.As(err, &ge) {
			err = &generate.GenerationError{Attempts: 1, Err: err}
		}
		o.failOrCancel(st, StageGenerate, err)
		return
	}
	o.leave(st, StageGenerate, fmt.Sprintf("generated %q (%d words)", art.Title, art.WordCount))

	if !o.enter(st, StageEvaluate, "evaluating article") {
		return
	}
	res := o.evaluate(art)
	res.SourceURL = req.URL
	st.mu.Lock()
	res.Warnings = append(append([]string(nil), st.warnings...), res.Warnings...)
	st.mu.Unlock()
	o.leave(st, StageEvaluate, fmt.Sprintf("seo %.0f", res.SEO.Score))

	if !o.commit(st) {
		return
	}
	if o.deps.Repository != nil {
		if err := o.deps.Repository.Save(context.WithoutCancel(ctx), st.run.ID, res); err != nil {
			perr := &PersistenceError{RunID: st.run.ID, Err: err}
			o.logger.Error("persisting result failed", "run", st.run.ID, "error", perr)
			res.Warnings = append(res.Warnings, perr.Error())
		}
	}
	o.leave(st, StagePersist, "result stored")
	o.complete(st, res)
}

// extractSource returns the text to generate from. A failed fetch falls
// back to the request text; an empty extraction falls back to the request
// text and then to page metadata, and fails when both are empty.
func (o *Orchestrator) extractSource(ctx context.Context, st *runState, req Request) (string, error) {
	if req.URL == "" {
		return req.Text, nil
	}
	if o.deps.Fetcher == nil {
		if req.Text != "" {
			return req.Text, nil
		}
		return "", fmt.Errorf("no fetcher configured for %s", req.URL)
	}

	page, err := o.deps.Fetcher.Get(ctx, req.URL)
	if err != nil {
		if req.Text != "" && ctx.Err() == nil {
			o.warn(st, fmt.Sprintf("fetch failed, using supplied text: %v", err))
			return req.Text, nil
		}
		return "", err
	}

	cand := o.deps.Extractor.Extract(page)
	if !cand.Empty() {
		o.logger.Debug("extracted candidate", "run", st.run.ID, "selector", cand.Selector, "score", cand.Score)
		return cand.Text, nil
	}

	o.warn(st, extract.ErrExtractionEmpty.Error())
	if req.Text != "" {
		return req.Text, nil
	}
	if meta := extract.ReadMetadata(page, req.URL).Text(); meta != "" {
		return meta, nil
	}
	return "", fmt.Errorf("%s: %w", req.URL, extract.ErrExtractionEmpty)
}

func (o *Orchestrator) evaluate(a article.Article) Result {
	res := Result{Article: a}
	var wg sync.WaitGroup
	var ethicsErr, citationErr error

	if o.deps.Ethics != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res.Ethics, ethicsErr = guard("ethics", func() (ethics.Report, error) {
				return o.deps.Ethics.Evaluate(a.Clone())
			})
		}()
	}
	if o.deps.Citation != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res.Citation, citationErr = guard("citation", func() (citation.Report, error) {
				return o.deps.Citation.Evaluate(a.Clone())
			})
		}()
	}
	res.SEO = seo.Score(a.BodyHTML, a.Keywords)
	wg.Wait()

	for _, err := range []error{ethicsErr, citationErr} {
		if err != nil {
			o.logger.Warn("evaluator failed", "error", err)
			res.Warnings = append(res.Warnings, err.Error())
		}
	}
	return res
}

// guard runs an evaluator, turning errors and panics into EvaluationError.
func guard[R any](name string, fn func() (R, error)) (rep *R, err error) {
	defer func() {
		if p := recover(); p != nil {
			rep = nil
			err = &EvaluationError{Evaluator: name, Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	r, err := fn()
	if err != nil {
		return nil, &EvaluationError{Evaluator: name, Err: err}
	}
	return &r, nil
}

// enter checks the cancellation flag at a stage boundary and, if the run
// may continue, publishes the stage entry event.
func (o *Orchestrator) enter(st *runState, stage Stage, msg string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.cancelRequested {
		o.cancelledLocked(st)
		return false
	}
	if st.run.Status.Terminal() {
		return false
	}
	st.run.Stage = stage
	st.emit(o.event(st, EventStageStarted, stage, msg))
	return true
}

func (o *Orchestrator) leave(st *runState, stage Stage, msg string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.run.Status.Terminal() {
		return
	}
	st.emit(o.event(st, EventStageFinished, stage, msg))
}

// commit is the last cancellation point: once it returns true the run will
// be persisted and Cancel refuses.
func (o *Orchestrator) commit(st *runState) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.cancelRequested {
		o.cancelledLocked(st)
		return false
	}
	st.committed = true
	st.run.Stage = StagePersist
	st.emit(o.event(st, EventStageStarted, StagePersist, "persisting result"))
	return true
}

func (o *Orchestrator) complete(st *runState, res Result) {
	st.mu.Lock()
	defer st.mu.Unlock()
	e := o.event(st, EventCompleted, StagePersist, "run completed")
	e.Status = StatusCompleted
	e.Result = &res
	if st.finish(e, o.now().UTC()) {
		o.logger.Info("run completed", "run", st.run.ID, "title", res.Article.Title, "warnings", len(res.Warnings))
	}
}

// failOrCancel records err, unless the failure was caused by a requested
// cancellation.
func (o *Orchestrator) failOrCancel(st *runState, stage Stage, err error) {
	st.mu.Lock()
	if st.cancelRequested {
		o.cancelledLocked(st)
		st.mu.Unlock()
		return
	}
	st.mu.Unlock()
	o.fail(st, stage, err)
}

func (o *Orchestrator) fail(st *runState, stage Stage, err error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	e := o.event(st, EventFailed, stage, "run failed")
	e.Status = StatusFailed
	e.Error = err.Error()
	st.run.Stage = stage
	if st.finish(e, o.now().UTC()) {
		o.logger.Error("run failed", "run", st.run.ID, "stage", stage, "error", err)
	}
}

// cancelledLocked must be called with st.mu held.
func (o *Orchestrator) cancelledLocked(st *runState) {
	e := o.event(st, EventCancelled, st.run.Stage, "run cancelled")
	e.Status = StatusCancelled
	if st.finish(e, o.now().UTC()) {
		o.logger.Info("run cancelled", "run", st.run.ID, "stage", st.run.Stage)
	}
}

func (o *Orchestrator) warn(st *runState, msg string) {
	st.mu.Lock()
	st.warnings = append(st.warnings, msg)
	st.mu.Unlock()
	o.logger.Warn("run degraded", "run", st.run.ID, "warning", msg)
}

func (o *Orchestrator) event(st *runState, kind EventKind, stage Stage, msg string) Event {
	return Event{
		RunID:   st.run.ID,
		Kind:    kind,
		Stage:   stage,
		Percent: stage.Percent(),
		Message: msg,
		Time:    o.now().UTC(),
	}
}
