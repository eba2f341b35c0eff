package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/contactkeval/option-wheel/internal/logger"
	"github.com/contactkeval/option-wheel/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the backtester over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			c, err := build(cmd.Context(), cfg, true)
			if err != nil {
				return err
			}
			defer c.Close()

			srv := &http.Server{
				Addr:         cfg.Server.Addr,
				Handler:      server.New(c.engine, c.store).Routes(),
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 90 * time.Second, // above the per-request backtest timeout
				IdleTimeout:  60 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Infof("event=listening addr=%s store=%s provider=%s", cfg.Server.Addr, cfg.Store.Driver, cfg.Data.Provider)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(quit)

			select {
			case err, ok := <-errCh:
				if ok {
					return err
				}
				return nil
			case <-quit:
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			logger.Infof("event=shutting_down")
			if err := srv.Shutdown(ctx); err != nil {
				logger.Errorf("event=shutdown_failed err=%v", err)
				return err
			}
			logger.Infof("event=stopped")
			return nil
		},
	}

	cmd.Flags().String("addr", ":8080", "listen address")
	a.bind(cmd.Flags().Lookup("addr"), "server.addr")
	return cmd
}
