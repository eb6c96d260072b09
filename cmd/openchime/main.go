// Package main is the entry point for the OpenChime meeting-reminder
// daemon: it wires config, database, migrations, vault, store, sync
// providers, and the scheduler, then blocks until a shutdown signal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/socrates8300/openchime/internal/config"
	"github.com/socrates8300/openchime/internal/database"
	"github.com/socrates8300/openchime/internal/logging"
	"github.com/socrates8300/openchime/internal/migrate"
	"github.com/socrates8300/openchime/internal/ocerr"
	provgoogle "github.com/socrates8300/openchime/internal/providers/google"
	provics "github.com/socrates8300/openchime/internal/providers/ics"
	"github.com/socrates8300/openchime/internal/scheduler"
	"github.com/socrates8300/openchime/internal/store"
	"github.com/socrates8300/openchime/internal/sync"
	"github.com/socrates8300/openchime/internal/vault"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	logging.SetDefault(logger)

	logger.Info("starting openchime", "data_dir", cfg.DataDir)

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return ocerr.Wrap(ocerr.ConfigInvalid, "failed to create data directory", err)
	}

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return ocerr.Wrap(ocerr.DatabaseError, "failed to open database", err)
	}
	defer db.Close()

	ks := vault.NewOSKeyStore(cfg.Vault.KeystoreService, cfg.Vault.KeystoreKeyName)
	v, err := vault.Open(ks)
	if err != nil {
		return ocerr.Wrap(ocerr.KeystoreUnavailable, "failed to open vault", err)
	}

	if err := migrate.New(db, v).Run(context.Background()); err != nil {
		return ocerr.Wrap(ocerr.MigrationFailed, "failed to run migrations", err)
	}
	logger.Info("migrations applied")

	accounts := store.NewAccountRepository(db, v)
	events := store.NewEventRepository(db)
	settings := store.NewSettingsRepository(db)

	coordinator := sync.NewCoordinator(accounts, events)
	coordinator.RegisterProvider(store.ProviderGoogle, provgoogle.NewProvider(provgoogle.OAuthConfig{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		Scopes:       cfg.Google.Scopes,
	}))
	coordinator.RegisterProvider(store.ProviderICS, provics.NewProvider(provics.NewHTTPFetcher(), nil))

	presenter := consolePresenter{}
	monitor := scheduler.New(events, settings, accounts, coordinator, presenter)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	monitorErr := make(chan error, 1)
	go func() {
		monitorErr <- monitor.Run(ctx)
	}()

	go db.RunHealthCheck(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	monitorStopped := false
	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-monitorErr:
		monitorStopped = true
		if err != nil {
			logger.Error("scheduler stopped unexpectedly", "error", err)
		}
	}

	cancel()
	logger.Info("shutting down")
	if !monitorStopped {
		select {
		case <-monitorErr:
		case <-time.After(cfg.Scheduler.ShutdownTimeout):
			logger.Warn("scheduler did not stop within the shutdown timeout")
		}
	}
	return nil
}

// consolePresenter is the minimal default UI/audio collaborator used
// when no richer front end is attached; the GUI and audio device are
// named-interface-only collaborators out of this core's scope.
type consolePresenter struct{}

func (consolePresenter) Present(ctx context.Context, event store.Event, thresholdMinutes int) error {
	fmt.Printf("[openchime] %s starts in %d min\n", event.Title, thresholdMinutes)
	return nil
}
