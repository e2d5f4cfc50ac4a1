package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"

	appcfg "github.com/pairplay/sync-server/internal/config"
	"github.com/pairplay/sync-server/internal/identity"
	"github.com/pairplay/sync-server/internal/session"
)

// synccheck probes the sync server's collaborators: the PairPlay API, Redis,
// and (when configured) the Postgres archive. Exit code 0 means all reachable.
func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	headers := func() map[string]string {
		h := map[string]string{}
		if cfg.APIToken != "" {
			h["Authorization"] = "Bearer " + cfg.APIToken
		}
		return h
	}
	api := identity.NewClient(cfg.APIBaseURL, identity.WithHeaderProvider(headers))
	if h, err := api.GetHealth(ctx); err != nil {
		log.Fatalf("api health check failed: %v", err)
	} else {
		fmt.Printf("api: %s\n", h.Status)
	}

	rdb, err := session.OpenRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis check failed: %v", err)
	}
	defer rdb.Close()
	fmt.Println("redis: ok")

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres open failed: %v", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Fatalf("postgres ping failed: %v", err)
		}
		fmt.Println("postgres: ok")
	} else {
		fmt.Println("postgres: skipped (DATABASE_URL not set)")
	}
}
