package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"catalogexplorer/internal/adapters/catalogs"
	"catalogexplorer/internal/blob"
)

const shutdownTimeout = 10 * time.Second

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalogs over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, cmd)
		},
	}
	cmd.Flags().String("addr", "", "listen address (default :8080)")
	cmd.Flags().Bool("watch", false, "reload file catalogs when they change")
	cmd.Flags().String("blob-driver", "", "export artifact store: fs, memory or s3")
	cmd.Flags().String("blob-root", "", "directory for the fs artifact store")
	for key, name := range map[string]string{
		"addr":         "addr",
		"watch":        "watch",
		"blob.driver":  "blob-driver",
		"blob.fs_root": "blob-root",
	} {
		_ = a.v.BindPFlag(key, cmd.Flags().Lookup(name))
	}
	return cmd
}

func (a *app) serve(ctx context.Context, cmd *cobra.Command) error {
	store, err := blob.Open(ctx, a.cfg.BlobOptions())
	if err != nil {
		return fmt.Errorf("opening artifact store: %w", err)
	}

	worker := catalogs.NewWorker(a.reg, store,
		catalogs.WithAudit(catalogs.ZapAuditLogger{Logger: a.logger}),
		catalogs.WithWorkerMetrics(a.metrics),
		catalogs.WithWorkerLogger(a.logger),
	)
	worker.Start()

	if a.cfg.Watch {
		stopWatch, err := a.reg.Watch(ctx)
		if err != nil {
			a.logger.Warn("file watching disabled", zap.Error(err))
		} else {
			defer stopWatch()
		}
	}

	ln, err := net.Listen("tcp", a.cfg.Addr)
	if err != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = worker.Stop(stopCtx)
		return fmt.Errorf("listen %s: %w", a.cfg.Addr, err)
	}
	server := &http.Server{
		Handler:           catalogs.NewHandler(a.reg, worker, a.metrics, a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	a.logger.Info("serving catalogs",
		zap.String("addr", ln.Addr().String()),
		zap.String("blob_driver", string(store.Driver())),
		zap.Strings("catalogs", a.reg.Names()))
	fmt.Fprintf(cmd.OutOrStdout(), "listening on %s\n", ln.Addr())

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serveErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown", zap.Error(err))
	}
	if err := worker.Stop(shutdownCtx); err != nil {
		a.logger.Warn("export worker shutdown", zap.Error(err))
	}
	a.logger.Info("server stopped")
	return runErr
}
