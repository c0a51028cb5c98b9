package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/articleforge/internal/server"
)

var (
	servePort int
	serveHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web UI and JSON API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close(30 * time.Second)

		a.orch.StartReaper(ctx, cfg.Pipeline.ReapInterval)

		opts := server.Options{
			Host:        cfg.Server.Host,
			Port:        cfg.Server.Port,
			CORSOrigins: cfg.Server.CORSOrigins,
		}
		if cmd.Flags().Changed("port") {
			opts.Port = servePort
		}
		if cmd.Flags().Changed("host") {
			opts.Host = serveHost
		}

		srv, err := server.New(a.orch, a.posts, opts)
		if err != nil {
			return err
		}

		pterm.Info.Printf("Starting server at http://%s\n", srv.Addr())
		pterm.Println("Press Ctrl+C to stop")
		return srv.ListenAndServe(ctx)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Interface to listen on")
}
