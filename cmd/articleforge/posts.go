package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/articleforge/internal/article"
	"github.com/TobiSchelling/articleforge/internal/database"
	"github.com/TobiSchelling/articleforge/internal/export"
)

var (
	listMode   string
	listQuery  string
	listMinSEO float64
	listLimit  int
	listOffset int
)

var postsCmd = &cobra.Command{
	Use:   "posts",
	Short: "Browse generated posts",
}

var postsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List posts, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		if listMode != "" {
			if _, err := article.ParseMode(listMode); err != nil {
				return err
			}
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		items, err := newPostRepository(db).ListPosts(cmd.Context(), database.PostFilter{
			Mode:        strings.ToLower(listMode),
			Query:       listQuery,
			MinSEOScore: listMinSEO,
			Limit:       listLimit,
			Offset:      listOffset,
		})
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("No posts yet. Create one with: articleforge generate <url>")
			return nil
		}

		data := pterm.TableData{{"ID", "Created", "Mode", "SEO", "Ethics", "Citations", "Title"}}
		for _, p := range items {
			data = append(data, []string{
				strconv.FormatInt(p.ID, 10),
				p.CreatedAt.Local().Format("2006-01-02 15:04"),
				p.Mode,
				fmt.Sprintf("%.1f", p.SEOScore),
				optionalScore(p.EthicsScore),
				optionalScore(p.CitationScore),
				truncate(p.Title, 60),
			})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

var postsShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a post with its quality reports",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		post, err := newPostRepository(db).GetPost(cmd.Context(), id)
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("post %d not found", id)
		}
		if err != nil {
			return err
		}

		pterm.DefaultHeader.WithFullWidth().Println(post.Title)
		if post.MetaDescription != "" {
			pterm.Println(pterm.Gray(post.MetaDescription))
		}
		fmt.Printf("Mode: %s | Words: %d | Run: %s\n", post.Mode, post.WordCount, post.RunID)
		if post.SourceURL != "" {
			fmt.Printf("Source: %s\n", post.SourceURL)
		}
		if len(post.Keywords) > 0 {
			fmt.Printf("Keywords: %s\n", strings.Join(post.Keywords, ", "))
		}

		pterm.DefaultSection.Println("Article")
		for _, b := range export.Blocks(post.BodyHTML) {
			switch b.Tag {
			case "h1", "h2", "h3", "h4", "h5", "h6":
				pterm.Println(pterm.Bold.Sprint(b.Text))
			case "li":
				pterm.Println("  • " + b.Text)
			default:
				pterm.Println(b.Text)
			}
			pterm.Println()
		}

		pterm.DefaultSection.Println("Scores")
		fmt.Printf("  SEO: %.1f\n", post.SEOScore)
		fmt.Printf("  Ethics: %s\n", optionalScore(post.EthicsScore))
		fmt.Printf("  Citations: %s\n", optionalScore(post.CitationScore))
		if post.Ethics != nil {
			for _, rec := range post.Ethics.Recommendations {
				pterm.Info.Println(rec)
			}
		}
		if post.Citation != nil {
			for _, rec := range post.Citation.Recommendations {
				pterm.Info.Println(rec)
			}
		}
		if post.SEO != nil {
			for _, s := range post.SEO.Suggestions {
				pterm.Info.Println(s)
			}
		}
		for _, w := range post.Warnings {
			pterm.Warning.Println(w)
		}
		return nil
	},
}

var runsStatus string

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List archived runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := newPostRepository(db).ListRuns(cmd.Context(), runsStatus, listLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No archived runs.")
			return nil
		}
		data := pterm.TableData{{"Run", "Started", "Status", "Stage", "Error"}}
		for _, r := range runs {
			data = append(data, []string{
				r.ID,
				r.StartedAt.Local().Format("2006-01-02 15:04"),
				r.Status,
				r.Stage,
				truncate(r.Error, 50),
			})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

var (
	exportAll bool
	exportOut string
)

var exportCmd = &cobra.Command{
	Use:   "export [id...]",
	Short: "Export posts to a Word document",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && !exportAll {
			return fmt.Errorf("give post ids or --all")
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		repo := newPostRepository(db)
		ctx := cmd.Context()

		var ids []int64
		if exportAll {
			items, err := repo.ListPosts(ctx, database.PostFilter{Limit: 500})
			if err != nil {
				return err
			}
			for _, p := range items {
				ids = append(ids, p.ID)
			}
		}
		for _, arg := range args {
			id, err := parseID(arg)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}

		var posts []*database.Post
		for _, id := range ids {
			post, err := repo.GetPost(ctx, id)
			if errors.Is(err, database.ErrNotFound) {
				return fmt.Errorf("post %d not found", id)
			}
			if err != nil {
				return err
			}
			posts = append(posts, post)
		}
		if len(posts) == 0 {
			fmt.Println("Nothing to export.")
			return nil
		}

		path := exportOut
		if path == "" {
			name := "posts.docx"
			if len(posts) == 1 {
				name = export.FileName(posts[0])
			}
			path = filepath.Join(cfg.GetExportDir(), name)
		}
		if err := export.WritePosts(path, posts); err != nil {
			return err
		}
		pterm.Success.Printf("Exported %d post(s) to %s\n", len(posts), path)
		return nil
	},
}

func init() {
	postsListCmd.Flags().StringVarP(&listMode, "mode", "m", "", "Only posts generated in this mode")
	postsListCmd.Flags().StringVarP(&listQuery, "query", "q", "", "Title contains")
	postsListCmd.Flags().Float64Var(&listMinSEO, "min-seo", 0, "Minimum SEO score")
	postsListCmd.Flags().IntVar(&listLimit, "limit", database.DefaultListLimit, "Maximum posts to list")
	postsListCmd.Flags().IntVar(&listOffset, "offset", 0, "Posts to skip")
	postsCmd.AddCommand(postsListCmd)
	postsCmd.AddCommand(postsShowCmd)

	runsCmd.Flags().StringVar(&runsStatus, "status", "", "Only runs with this status")
	runsCmd.Flags().IntVar(&listLimit, "limit", database.DefaultListLimit, "Maximum runs to list")

	exportCmd.Flags().BoolVar(&exportAll, "all", false, "Export the most recent posts")
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "Output file (defaults to the export directory)")
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid post ID: %s", s)
	}
	return id, nil
}

func optionalScore(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f", *v)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
