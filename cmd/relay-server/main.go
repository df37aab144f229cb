package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-relay/internal/archive"
	appcfg "github.com/park285/chess-relay/internal/config"
	"github.com/park285/chess-relay/internal/obslog"
	"github.com/park285/chess-relay/internal/relay"
	"github.com/park285/chess-relay/internal/rules"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()

	engine := rules.NewEngine()

	var (
		recorder relay.Recorder = relay.NopRecorder{}
		store    *archive.Store
		repo     *archive.Repository
	)
	if cfg.RedisURL != "" {
		if cfg.DatabaseURL != "" {
			repo, err = archive.NewRepository(cfg.DatabaseURL)
			if err != nil {
				obslog.L().Fatal("archive repo init error", zap.Error(err))
			}
		}
		store, err = archive.NewStore(cfg.RedisURL, time.Duration(cfg.ArchiveTTLSec)*time.Second, repo)
		if err != nil {
			obslog.L().Fatal("archive store init error", zap.Error(err))
		}
		recorder = store
	} else if cfg.DatabaseURL != "" {
		obslog.L().Warn("DATABASE_URL set without REDIS_URL; archive disabled")
	}

	registry := relay.NewRegistry(engine, recorder)

	mux := http.NewServeMux()
	mux.Handle("/ws", relay.NewHandler(registry, cfg.AllowedOrigins))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obslog.L().Fatal("listen error", zap.Error(err))
		}
	}()
	obslog.L().Info("relay_listening",
		zap.Int("port", cfg.Port),
		zap.Bool("archive", store != nil),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	_ = store.Close()
	_ = repo.Close()
	obslog.L().Info("relay_stopped")
}
