package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gaurav-prasanna/policypipe/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve exposes conversion, publication, signed rendition links, version
comparison, document assembly and the editor operations over HTTP, plus
/health and /metrics.

Examples:
  policypipe serve --config policypipe.yaml`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if flagConfig == "" {
		return fmt.Errorf("--config is required for serve")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := server.New(server.Config{
		Addr:           cfg.Listen,
		Pipeline:       a.pipeline,
		Policies:       a.store,
		Blobs:          a.blobs,
		Log:            a.log,
		Metrics:        a.metrics,
		MaxUploadBytes: cfg.MaxUploadBytes(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.log.LogServerStart(cfg.Listen, cfg.DBPath)
	return srv.ListenAndServe(ctx)
}
