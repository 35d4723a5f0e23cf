package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/joho/godotenv"
	"github.com/shinyyama/leaselink-backend/internal/ai"
	"github.com/shinyyama/leaselink-backend/internal/cache"
	"github.com/shinyyama/leaselink-backend/internal/config"
	"github.com/shinyyama/leaselink-backend/internal/db"
	appmw "github.com/shinyyama/leaselink-backend/internal/middleware"
	"github.com/shinyyama/leaselink-backend/internal/realtime"
	"github.com/shinyyama/leaselink-backend/internal/server"
	"github.com/shinyyama/leaselink-backend/internal/storage"
)

const shutdownTimeout = 30 * time.Second

func main() {
	_ = godotenv.Load()
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	conn, err := db.Connect(&cfg.DB)
	if err != nil {
		log.Fatalf("db connect error: %v", err)
	}
	if err := db.Migrate(conn); err != nil {
		log.Printf("auto migrate error: %v", err)
	}

	deps := server.Deps{
		DB:                 conn,
		CORSOriginSuffixes: cfg.CORSOriginSuffixes,
		GitSHA:             cfg.GitSHA,
		BuildTime:          cfg.BuildTime,
	}
	ops := map[string]gfshutdown.Operation{}

	authMw, err := appmw.NewAuthMiddleware(ctx, cfg.FirebaseProjectID)
	if err != nil {
		log.Printf("firebase auth disabled: %v", err)
	} else {
		deps.Auth = authMw
		deps.Identity = authMw.Client()
	}

	if cfg.RedisAddr != "" {
		c, err := cache.Open(ctx, cfg.RedisAddr, cfg.CachePrefix, cfg.CacheTTL)
		if err != nil {
			log.Printf("listing cache disabled: %v", err)
		} else {
			deps.Cache = c
			ops["redis"] = func(context.Context) error { return c.Close() }
		}
	}

	gcs, err := storage.Open(ctx, cfg.ListingImagesBucket, cfg.ProfileImagesBucket)
	if err != nil {
		log.Printf("image uploads disabled: %v", err)
	} else {
		deps.Images = gcs
		ops["storage"] = func(context.Context) error { return gcs.Close() }
	}

	if cfg.GeminiAPIKey != "" {
		assistant, err := ai.NewListingAssistant(ctx, ai.Config{APIKey: cfg.GeminiAPIKey, Model: cfg.GeminiModel})
		if err != nil {
			log.Printf("listing assistant disabled: %v", err)
		} else {
			deps.Asker = assistant
		}
	}

	allowOrigin := server.OriginAllowed(cfg.CORSOriginSuffixes)
	hub := realtime.NewHub(func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// non-browser clients send no Origin
			return true
		}
		ok, _ := allowOrigin(origin)
		return ok
	})
	deps.Hub = hub

	srv := server.New(deps)
	addr := ":" + cfg.Port
	go func() {
		log.Printf("starting server on %s", addr)
		if err := srv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server stopped: %v", err)
		}
	}()

	ops["http"] = func(ctx context.Context) error {
		hub.Close()
		return srv.Shutdown(ctx)
	}
	wait := gfshutdown.GracefulShutdown(ctx, shutdownTimeout, ops)
	code := <-wait
	log.Printf("api exited with code %d", code)
	os.Exit(code)
}
