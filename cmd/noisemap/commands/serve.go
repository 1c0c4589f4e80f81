package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/noisemap/pkg/api"
	"github.com/haivivi/noisemap/pkg/config"
	"github.com/haivivi/noisemap/pkg/metrics"
	"github.com/haivivi/noisemap/pkg/server"
)

var serveFlags struct {
	addr       string
	archive    bool
	recordsDir string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP prediction service",
	Long: `Load the bundle once and serve predictions until SIGINT or SIGTERM.

Predictions with a location are stored in the record store and served by
GET /heatmap. With --archive the raw uploads are kept in the blob store
under uploads/.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.addr, "addr", "", "listen address (default server.addr)")
	f.BoolVar(&serveFlags.archive, "archive", false, "archive uploads in the blob store")
	f.StringVar(&serveFlags.recordsDir, "records-dir", "", "badger directory for prediction records")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := *globalConfig
	if serveFlags.addr != "" {
		cfg.Server.Addr = serveFlags.addr
	}
	if cmd.Flags().Changed("archive") {
		cfg.Server.ArchiveUploads = serveFlags.archive
	}
	if serveFlags.recordsDir != "" {
		cfg.Records.Backend = config.RecordsBadger
		cfg.Records.Dir = serveFlags.recordsDir
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	blobs, err := openStore(ctx)
	if err != nil {
		return err
	}
	svc, err := loadService(ctx)
	if err != nil {
		return err
	}
	if err := svc.CheckToolchain(); err != nil {
		slog.Warn("ffmpeg unavailable, only WAV and MP3 uploads will decode", "error", err)
	}

	store, err := cfg.Records.Open()
	if err != nil {
		return err
	}
	defer store.Close()

	m := metrics.New()
	predictor := &api.Predictor{
		Service: svc,
		Records: store,
		Blobs:   blobs,
		Metrics: m,
		Archive: cfg.Server.ArchiveUploads,
	}
	if retention := cfg.Retention(); retention > 0 {
		go pruneLoop(ctx, predictor, retention)
	}

	srv, err := server.New(server.Options{
		Predictor:      predictor,
		Metrics:        m,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		CORSOrigins:    cfg.Server.CORSOrigins,
		HeatmapLimit:   cfg.Server.HeatmapLimit,
		Debug:          verbose,
	})
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx, cfg.Server.Addr, cfg.ShutdownTimeout())
}

// pruneLoop applies the retention every hour until ctx is done.
func pruneLoop(ctx context.Context, p *api.Predictor, retention time.Duration) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		recs, uploads, err := p.Prune(ctx, time.Now().Add(-retention))
		if err != nil {
			slog.Warn("prune failed", "error", err)
		} else if recs+uploads > 0 {
			slog.Info("pruned", "records", recs, "uploads", uploads, "retention", retention)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
