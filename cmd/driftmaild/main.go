// Package main runs the driftmail server: disposable email inboxes backed by
// one headless browser per session, exposed over a small HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/driftmail/driftmail/pkg/api"
	"github.com/driftmail/driftmail/pkg/config"
	playwrightdriver "github.com/driftmail/driftmail/pkg/driver/playwright"
	"github.com/driftmail/driftmail/pkg/logging"
	"github.com/driftmail/driftmail/pkg/mailbox"
	"github.com/driftmail/driftmail/pkg/session"
)

const version = "0.1.0"

// shutdownGrace bounds how long in-flight HTTP requests and the session
// drain may take after a termination signal.
const shutdownGrace = 30 * time.Second

func main() {
	var (
		configPath  string
		addr        string
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "", "Path to YAML configuration file")
	flag.StringVar(&addr, "addr", "", "HTTP listen address (overrides config)")
	flag.BoolVar(&showVersion, "version", false, "Show version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("driftmaild v%s\n", version)
		return
	}

	if err := run(configPath, addr); err != nil {
		fmt.Fprintf(os.Stderr, "driftmaild: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, addrOverride string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addrOverride != "" {
		cfg.Addr = addrOverride
	}

	log, logErr := logging.NewLogger("server", cfg.Production)
	if logErr != nil {
		fmt.Fprintf(os.Stderr, "driftmaild: file logging unavailable: %v\n", logErr)
	}
	defer log.Close()
	log.Infof("driftmaild v%s starting (production=%t, provider=%s)", version, cfg.Production, cfg.Provider.Name)

	driver := playwrightdriver.New(playwrightdriver.Options{
		Headless:         cfg.Production,
		OperationTimeout: cfg.BrowserTimeout,
	})
	if err := driver.Start(); err != nil {
		return fmt.Errorf("failed to start browser driver: %w", err)
	}

	store := session.NewStore()
	manager := session.NewManager(store, driver, log, cfg.MaxSessions, cfg.BrowserTimeout)
	mbx := mailbox.NewService(manager, cfg.Provider, log, cfg.BrowserTimeout)
	server := api.NewServer(cfg.Addr, mbx, manager, log)

	reaperCtx, stopReaper := context.WithCancel(context.Background())
	reaper := session.NewReaper(manager, log, cfg.CleanupInterval, cfg.SessionLifetime)
	go reaper.Run(reaperCtx)

	// Serve until a termination signal arrives.
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Infof("received %s, shutting down", sig)
	case err := <-errCh:
		stopReaper()
		return fmt.Errorf("server failed: %w", err)
	}

	// Drain: stop accepting connections, stop the reaper, close every
	// session, then tear down Playwright.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Warnf("http shutdown: %v", err)
	}
	stopReaper()
	manager.CloseAll(shutdownCtx)
	if err := driver.Stop(); err != nil {
		log.Warnf("driver stop: %v", err)
	}
	log.Infof("shutdown complete")
	return nil
}
