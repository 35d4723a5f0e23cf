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
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/shinyyama/leaselink-backend/internal/config"
	"github.com/shinyyama/leaselink-backend/internal/sheets"
	"github.com/shinyyama/leaselink-backend/internal/waitlist"
)

const shutdownTimeout = 30 * time.Second

func main() {
	_ = godotenv.Load()
	ctx := context.Background()

	cfg, err := config.LoadWaitlist()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	sink, err := sheets.New(ctx, cfg.SpreadsheetID, cfg.SheetRange, cfg.GoogleCredentialsFile)
	if err != nil {
		log.Fatalf("sheets init error: %v", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	waitlist.New(sink, waitlist.Options{
		AcceptJSON: cfg.AcceptJSON,
		AcceptForm: cfg.AcceptForm,
		EmitCORS:   cfg.EmitCORS,
		PlainText:  cfg.PlainText,
	}).Register(e)

	addr := ":" + cfg.Port
	go func() {
		log.Printf("starting waitlist on %s (json=%v form=%v cors=%v plain=%v)",
			addr, cfg.AcceptJSON, cfg.AcceptForm, cfg.EmitCORS, cfg.PlainText)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server stopped: %v", err)
		}
	}()

	wait := gfshutdown.GracefulShutdown(ctx, shutdownTimeout, map[string]gfshutdown.Operation{
		"http": func(ctx context.Context) error { return e.Shutdown(ctx) },
	})
	code := <-wait
	log.Printf("waitlist exited with code %d", code)
	os.Exit(code)
}
