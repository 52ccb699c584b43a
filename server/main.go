// server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-playground/log"
	"github.com/go-playground/log/handlers/console"
	"github.com/gorilla/handlers"
	"github.com/rexlx/bookify/backend"
	"github.com/rexlx/bookify/config"
	"github.com/rexlx/bookify/store"
	"github.com/rexlx/bookify/web"
)

const (
	timestampFormat = "2006-01-02 15:04:05"
	backendTimeout  = 30 * time.Second
	cleanupInterval = 5 * time.Minute
)

func initLog(color bool) {
	c := console.New(true)
	c.SetTimestampFormat(timestampFormat)
	c.SetDisplayColor(color)
	log.AddHandler(c, log.AllLevels...)
}

func main() {
	cfg, err := config.Load()
	initLog(err == nil && cfg.LogColor)
	if err != nil {
		log.Fatalf("Invalid configuration: %s", err)
	}

	client, err := backend.New(cfg.BackendURL, backendTimeout)
	if err != nil {
		log.Fatalf("Invalid backend URL: %s", err)
	}
	render, err := web.NewRenderer()
	if err != nil {
		log.Fatalf("Could not parse templates: %s", err)
	}

	sm := scs.New()
	sm.Lifetime = cfg.SessionLifetime
	sm.Cookie.Name = "bookify_session"
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = cfg.SecureCookie

	// Sessions stay in memory unless a database is configured.
	if cfg.DatabaseURL != "" {
		db, err := store.NewDatabase(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Could not initialize database: %s", err)
		}
		defer db.Close()
		if err := db.CreateTables(context.Background()); err != nil {
			log.Fatalf("Could not create session table: %s", err)
		}
		db.Cleanup(cleanupInterval)
		defer db.StopCleanup()
		sm.Store = db
		log.Info("Sessions are stored in PostgreSQL")
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handlers.CombinedLoggingHandler(os.Stdout, createRouter(cfg, sm, client, render, time.Local)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(log.F("addr", cfg.Addr), log.F("backend", cfg.BackendURL)).Info("Starting bookify")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		log.Errorf("Server failed: %s", err)
		return
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Error during shutdown: %s", err)
	}
}
