package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"journey/api/internal/app"
	"journey/api/internal/export"
	"journey/api/internal/history"
	"journey/api/internal/logging"
	"journey/api/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if ephemeral, _ := cmd.Flags().GetBool("ephemeral"); ephemeral {
			cfg.Store.Driver = "memory"
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}

		log := logging.New(cfg.Log)
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		m := metrics.New(cfg.Metrics.Enabled)
		b, err := openBackends(ctx, cfg, log, m)
		if err != nil {
			log.Error().Err(err).Msg("failed to open backends")
			return err
		}
		defer b.Close()

		service := app.NewService(app.Options{
			Store:        b.docs,
			Identity:     b.identity,
			History:      history.New(cfg.History.Dir),
			Cards:        export.NewService(b.cache),
			Metrics:      m,
			Logger:       log,
			StoreTimeout: cfg.Store.Timeout,
			Warnings:     cfg.Problems(),
		})
		defer service.Close()
		service.Bootstrap(ctx)

		httpServer := app.NewHTTPServer(service, cfg.Server.CORSOrigin, log)
		server := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           httpServer.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info().Str("addr", cfg.Server.Addr).Str("driver", cfg.Store.Driver).Msg("journey API listening")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				log.Error().Err(err).Msg("server failed")
				return err
			}
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("shutdown error")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().Bool("ephemeral", false, "keep the journey in memory only")
	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")
}
