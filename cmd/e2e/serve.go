package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/hairizuanbinnoorazman/security-e2e/cmd/e2e/handlers"
	"github.com/hairizuanbinnoorazman/security-e2e/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the run history and its artifacts over HTTP",
		RunE:  runServer,
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := newLogger(cfg)
	log.Info(ctx, "starting server", map[string]interface{}{
		"version": Version,
		"commit":  Commit,
		"date":    BuildDate,
	})

	h, err := openHistory(cfg, true, log)
	if err != nil {
		return err
	}
	defer h.Close()

	log.Info(ctx, "run history connected", map[string]interface{}{
		"driver": cfg.Database.Driver,
	})

	store, err := storage.New(ctx, cfg.Artifacts.Config)
	if err != nil {
		return err
	}

	links, err := handlers.NewLinkSigner(cfg.Server.LinkSecret, cfg.Server.LinkExpiry)
	if err != nil {
		return fmt.Errorf("server.link_secret: %w", err)
	}

	router := mux.NewRouter()
	router.Use(handlers.RequestLogger(log))

	router.HandleFunc("/health", handlers.HealthHandler).Methods("GET")
	if cfg.Server.Metrics {
		router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	}

	runHandler := handlers.NewRunHandler(h.runs, h.assets, store, links, log)
	runHandler.Register(router)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info(ctx, "server listening", map[string]interface{}{
			"address": addr,
		})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "server error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info(ctx, "shutting down server", nil)

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info(ctx, "server stopped", nil)
	return nil
}
