package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/pterm/pterm"

	"github.com/TobiSchelling/articleforge/internal/pipeline"
)

// PTermPresenter shows one spinner per stage and a score table at the end.
type PTermPresenter struct {
	mu         sync.Mutex
	spinner    *pterm.SpinnerPrinter
	stage      pipeline.Stage
	stageStart time.Time
	runStart   time.Time
}

// NewPTermPresenter creates a PTermPresenter.
func NewPTermPresenter() *PTermPresenter {
	return &PTermPresenter{}
}

func (p *PTermPresenter) Start(runID string, req pipeline.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.runStart = time.Now()
	pterm.DefaultHeader.
		WithBackgroundStyle(pterm.NewStyle(pterm.BgCyan)).
		WithTextStyle(pterm.NewStyle(pterm.FgBlack)).
		Println("articleforge")

	source := req.URL
	if source == "" {
		source = fmt.Sprintf("%d characters of text", len([]rune(req.Text)))
	}
	pterm.DefaultSection.Println("Run " + runID)
	pterm.Printf("  Source: %s\n", pterm.Cyan(source))
	pterm.Printf("  Mode:   %s\n", pterm.Yellow(req.Mode.String()))
	if req.TargetLanguage != "" {
		pterm.Printf("  Language: %s\n", req.TargetLanguage)
	}
	pterm.Println()
}

func (p *PTermPresenter) StageStarted(stage pipeline.Stage, percent int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopSpinner()
	p.stage = stage
	p.stageStart = time.Now()
	spinner, err := pterm.DefaultSpinner.
		WithStyle(pterm.NewStyle(pterm.FgCyan)).
		WithRemoveWhenDone(false).
		Start(fmt.Sprintf("[%3d%%] %s", percent, stage))
	if err != nil {
		pterm.Info.Printf("[%3d%%] %s\n", percent, stage)
		return
	}
	p.spinner = spinner
}

func (p *PTermPresenter) StageFinished(stage pipeline.Stage, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	text := fmt.Sprintf("%s (%s)", stage, formatDuration(time.Since(p.stageStart)))
	if message != "" {
		text += ": " + message
	}
	if p.spinner != nil {
		p.spinner.Success(text)
		p.spinner = nil
		return
	}
	pterm.Success.Println(text)
}

func (p *PTermPresenter) Finish(e pipeline.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e.Kind {
	case pipeline.EventCompleted:
		p.stopSpinner()
		pterm.Println()
		pterm.DefaultHeader.
			WithBackgroundStyle(pterm.NewStyle(pterm.BgGreen)).
			WithTextStyle(pterm.NewStyle(pterm.FgBlack)).
			Println("Run completed in " + formatDuration(time.Since(p.runStart)))
		if e.Result != nil {
			pterm.DefaultSection.WithLevel(2).Println(e.Result.Article.Title)
			_ = pterm.DefaultTable.
				WithHasHeader().
				WithBoxed().
				WithData(pterm.TableData(ScoreRows(e.Result))).
				Render()
			for _, w := range e.Result.Warnings {
				pterm.Warning.Println(w)
			}
		}
	case pipeline.EventCancelled:
		p.failSpinner("cancelled")
		pterm.Warning.Println("Run cancelled")
	default:
		p.failSpinner(e.Error)
		pterm.Error.Println("Run failed: " + e.Error)
	}
}

func (p *PTermPresenter) Info(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pterm.Info.Println(msg)
}

func (p *PTermPresenter) Warning(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pterm.Warning.Println(msg)
}

func (p *PTermPresenter) Error(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pterm.Error.Println(msg)
}

func (p *PTermPresenter) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopSpinner()
	return nil
}

// stopSpinner must be called with mu held.
func (p *PTermPresenter) stopSpinner() {
	if p.spinner != nil {
		_ = p.spinner.Stop()
		p.spinner = nil
	}
}

// failSpinner must be called with mu held.
func (p *PTermPresenter) failSpinner(reason string) {
	if p.spinner != nil {
		p.spinner.Fail(fmt.Sprintf("%s: %s", p.stage, reason))
		p.spinner = nil
	}
}
