package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/L1nMay/porty/internal/config"
	"github.com/L1nMay/porty/internal/icmp"
	"github.com/L1nMay/porty/internal/logger"
	"github.com/L1nMay/porty/internal/probe"
	"github.com/L1nMay/porty/internal/scan"
	"github.com/L1nMay/porty/internal/webui"
)

func newServeCommand(getCfg func() *config.Config) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the scan API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getCfg()
			if cmd.Flags().Changed("listen") {
				cfg.WebUI.Listen = listen
			}

			src, closeFn, err := openCatalog(cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			runner := scan.NewRunner(probe.New(cfg.Timeout()), icmp.NewChecker(cfg.Privileged))
			srv := &http.Server{
				Addr:              cfg.WebUI.Listen,
				Handler:           webui.NewServer(cfg, src, runner).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.Infof("Web UI listening on http://%s", srv.Addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			logger.Infof("shutting down")
			runner.CancelRunning()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default from config, 127.0.0.1:8088)")
	return cmd
}
