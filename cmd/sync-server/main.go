package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	appcfg "github.com/pairplay/sync-server/internal/config"
	"github.com/pairplay/sync-server/internal/gamecat"
	"github.com/pairplay/sync-server/internal/hub"
	"github.com/pairplay/sync-server/internal/identity"
	"github.com/pairplay/sync-server/internal/obslog"
	"github.com/pairplay/sync-server/internal/presence"
	"github.com/pairplay/sync-server/internal/registry"
	"github.com/pairplay/sync-server/internal/relay"
	"github.com/pairplay/sync-server/internal/rooms"
	"github.com/pairplay/sync-server/internal/session"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("log init error: %v", err)
	}
	defer obslog.Sync()

	headers := func() map[string]string {
		h := map[string]string{}
		if cfg.APIToken != "" {
			h["Authorization"] = "Bearer " + cfg.APIToken
		}
		return h
	}
	api := identity.NewClient(cfg.APIBaseURL, identity.WithHeaderProvider(headers))

	rdb, err := session.OpenRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis init error: %v", err)
	}

	cat, err := gamecat.New(cfg.GameCatalogDir)
	if err != nil {
		log.Fatalf("game catalog error: %v", err)
	}

	reg := registry.New()
	router := rooms.NewRouter()
	pres := presence.NewCoordinator(reg, router, api)
	games := session.NewCoordinator(rdb, router, api, api, cat, time.Duration(cfg.GameSessionTTLSec)*time.Second)

	var repo *session.Repository
	if cfg.DatabaseURL != "" {
		repo, err = session.NewRepository(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("archive init error: %v", err)
		}
		games.AttachRecorder(repo)
	} else {
		obslog.L().Warn("game_archive_disabled", zap.String("reason", "DATABASE_URL not set"))
	}

	relays := relay.New(router, api, cfg.ActivityPreviewLen)
	h := hub.New(pres, games, relays, cfg.AllowedOrigins)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.HandleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		obslog.L().Info("server_listening", zap.String("addr", cfg.ListenAddr))
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		obslog.L().Info("shutdown_signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Fatalf("server error: %v", err)
	}

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(sctx)
	_ = rdb.Close()
	_ = repo.Close()
}
