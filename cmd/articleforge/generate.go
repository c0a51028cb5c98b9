package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/articleforge/internal/article"
	"github.com/TobiSchelling/articleforge/internal/database"
	"github.com/TobiSchelling/articleforge/internal/pipeline"
	"github.com/TobiSchelling/articleforge/internal/ui"
)

var (
	genText     string
	genFile     string
	genKeywords string
	genMode     string
	genLength   int
	genLanguage string
	plainOutput bool
)

var generateCmd = &cobra.Command{
	Use:   "generate [url]",
	Short: "Generate a post from a URL or from text",
	Long: `Generate runs the full pipeline for one source: extract, translate,
generate, evaluate and persist. The source is a URL argument, --text, or
--file ("-" reads stdin). When both a URL and text are given the text is
used if the page cannot be fetched.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := buildRequest(args, cmd.InOrStdin())
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close(10 * time.Second)

		id, err := a.orch.Start(req)
		if err != nil {
			return err
		}
		stream, _ := a.orch.Events(id)

		p := newPresenter()
		defer p.Close()
		p.Start(id, req)

		final, err := followRun(ctx, a.orch, id, p, stream)
		if err != nil {
			return err
		}
		switch final.Kind {
		case pipeline.EventCompleted:
			if post, err := a.posts.GetPostByRun(context.Background(), id); err == nil {
				p.Info(fmt.Sprintf("Saved as post %d. View it with 'articleforge posts show %d'.", post.ID, post.ID))
			} else if !errors.Is(err, database.ErrNotFound) {
				p.Warning(fmt.Sprintf("Looking up saved post: %v", err))
			}
			return nil
		case pipeline.EventCancelled:
			return fmt.Errorf("run %s cancelled", id)
		default:
			return fmt.Errorf("run %s failed: %s", id, final.Error)
		}
	},
}

func init() {
	generateCmd.Flags().StringVar(&genText, "text", "", "Source text")
	generateCmd.Flags().StringVarP(&genFile, "file", "f", "", "Read source text from a file (- for stdin)")
	generateCmd.Flags().StringVarP(&genKeywords, "keywords", "k", "", "Comma-separated target keywords")
	generateCmd.Flags().StringVarP(&genMode, "mode", "m", "basic", "Generation mode: basic, enhanced, aeo or geo")
	generateCmd.Flags().IntVarP(&genLength, "length", "l", 0, "Target length in characters")
	generateCmd.Flags().StringVar(&genLanguage, "lang", "", "Target language (overrides translation.target_language)")
}

func buildRequest(args []string, stdin io.Reader) (pipeline.Request, error) {
	mode, err := article.ParseMode(genMode)
	if err != nil {
		return pipeline.Request{}, err
	}
	req := pipeline.Request{
		Text:           genText,
		Keywords:       genKeywords,
		Mode:           mode,
		TargetLength:   genLength,
		TargetLanguage: genLanguage,
	}
	if len(args) == 1 {
		req.URL = strings.TrimSpace(args[0])
	}
	if genFile != "" {
		text, err := readSource(genFile, stdin)
		if err != nil {
			return pipeline.Request{}, err
		}
		req.Text = text
	}
	if err := req.Validate(); err != nil {
		return pipeline.Request{}, err
	}
	return req, nil
}

func readSource(path string, stdin io.Reader) (string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("reading source text: %w", err)
	}
	return string(data), nil
}

func newPresenter() ui.Presenter {
	if plainOutput || !isatty.IsTerminal(os.Stdout.Fd()) {
		pterm.DisableStyling()
		return ui.NewPlainPresenter(os.Stdout)
	}
	return ui.NewPTermPresenter()
}

// followRun renders a run until it ends. An interrupt cancels the run and
// keeps following so the cancellation is reported.
func followRun(ctx context.Context, orch *pipeline.Orchestrator, id string, p ui.Presenter, stream *pipeline.Stream) (pipeline.Event, error) {
	final, err := ui.Follow(ctx, p, stream)
	if err == nil || ctx.Err() == nil {
		return final, err
	}

	if !orch.Cancel(id) {
		p.Warning("Run is saving its result and can no longer be cancelled")
	}
	waitCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return ui.Follow(waitCtx, p, stream)
}
