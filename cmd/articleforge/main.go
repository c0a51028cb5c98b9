package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/articleforge/internal/config"
	"github.com/TobiSchelling/articleforge/internal/logger"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	envFile    string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "articleforge",
	Short:   "Turn source articles into scored, search-optimized blog posts",
	Long:    "articleforge extracts a source article, translates it if needed, rewrites it with an LLM and scores the result for SEO, ethics and citations.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				pterm.Warning.Printf("Error loading %s: %v\n", envFile, err)
			}
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			logger.Setup("info", "text", verbose)
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		logger.Setup(cfg.Logging.Level, cfg.Logging.Format, verbose)
		slog.Debug("config loaded", "path", path)
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file with API keys")
	rootCmd.PersistentFlags().BoolVar(&plainOutput, "plain", false, "Plain line output instead of spinners")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(postsCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(exportCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("articleforge", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/articleforge/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			pterm.Info.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		pterm.Success.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure the LLM provider, translation and feeds.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and provider status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		posts := newPostRepository(db)
		stats, err := posts.Stats(ctx)
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}
		schema, err := db.SchemaVersion()
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}

		pterm.DefaultSection.Println("Database")
		fmt.Printf("  Path: %s (schema v%d)\n", db.Path(), schema)
		fmt.Printf("  Posts: %d\n", stats.Posts)
		fmt.Printf("  Archived runs: %d (failed %d, cancelled %d)\n",
			stats.ArchivedRuns, stats.FailedRuns, stats.CancelledRuns)

		pterm.DefaultSection.Println("Average scores")
		fmt.Printf("  SEO: %.1f\n", stats.AverageSEO)
		fmt.Printf("  Ethics: %.1f\n", stats.AverageEthics)
		fmt.Printf("  Citations: %.1f\n", stats.AverageCitation)

		pterm.DefaultSection.Println("Configuration")
		fmt.Printf("  LLM provider: %s\n", cfg.LLM.Provider)
		lang := cfg.Translation.TargetLanguage
		if lang == "" {
			lang = "(source language)"
		}
		fmt.Printf("  Target language: %s\n", lang)
		fmt.Printf("  Feeds: %d\n", len(cfg.Feeds))
		return nil
	},
}
