// Package app is the application layer between the CLI and the drive
// services. It constructs all dependencies from config and manages process
// lifecycle: startup scans, signal handling, graceful shutdown.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"homedrive/internal/config"
	"homedrive/internal/content"
	"homedrive/internal/drive"
	"homedrive/internal/index"
	"homedrive/internal/server"
)

// shutdownTimeout bounds how long in-flight requests get to finish.
const shutdownTimeout = 10 * time.Second

// App is a fully wired application instance. The caller must call Close when
// done.
type App struct {
	cfg   *config.Config
	index drive.Index
	files *drive.FileService
	notes *drive.NoteService
	sync  *drive.SyncService
	auth  *drive.AuthService
	log   drive.Logger
}

// New creates an App from the given config: opens and migrates the index
// database, sets up both content stores, and loads the authorized keys.
func New(cfg *config.Config) (*App, error) {
	log := newLogger(cfg.Logging.Level)

	if err := config.InitDataDirs(cfg); err != nil {
		return nil, fmt.Errorf("initializing data directories: %w", err)
	}

	idx, err := index.New(cfg.Storage.Database)
	if err != nil {
		return nil, fmt.Errorf("opening index database: %w", err)
	}

	fileStore, err := content.NewStoreFromConfig(cfg.Storage.FilesRoot, cfg.Encryption)
	if err != nil {
		idx.Close()
		return nil, fmt.Errorf("creating file store: %w", err)
	}

	noteStore, err := content.NewStoreFromConfig(cfg.Storage.NotesRoot, cfg.Encryption)
	if err != nil {
		idx.Close()
		return nil, fmt.Errorf("creating note store: %w", err)
	}

	clock := drive.RealClock{}

	auth, err := drive.NewAuthService(idx, clock, log, cfg.Auth.AuthorizedKeys,
		cfg.Auth.TokenExpiry, cfg.Auth.ChallengeExpiry)
	if err != nil {
		idx.Close()
		return nil, fmt.Errorf("creating auth service: %w", err)
	}

	return &App{
		cfg:   cfg,
		index: idx,
		files: drive.NewFileService(idx, fileStore, clock, log),
		notes: drive.NewNoteService(idx, noteStore, clock, drive.UUIDGenerator{}, log),
		sync:  drive.NewSyncService(idx, clock),
		auth:  auth,
		log:   log,
	}, nil
}

// Close releases the index database.
func (a *App) Close() error {
	return a.index.Close()
}

// Scan reconciles the index with both content stores.
func (a *App) Scan() (files, notes *drive.ScanResult, err error) {
	files, err = a.files.ScanAndIndex()
	if err != nil {
		return nil, nil, fmt.Errorf("scanning files: %w", err)
	}
	notes, err = a.notes.ScanAndIndex()
	if err != nil {
		return nil, nil, fmt.Errorf("scanning notes: %w", err)
	}
	return files, notes, nil
}

// Cleanup removes expired tokens and returns how many were removed.
func (a *App) Cleanup() (int64, error) {
	return a.auth.CleanupExpired()
}

// Serve runs the HTTP server until SIGINT or SIGTERM, scanning both stores
// at startup so the index reflects whatever is on disk. SIGHUP reloads the
// authorized_keys file without a restart.
func (a *App) Serve() error {
	if _, _, err := a.Scan(); err != nil {
		a.log.Warn("startup scan failed", "error", err)
	}

	if removed, err := a.Cleanup(); err != nil {
		a.log.Warn("token cleanup failed", "error", err)
	} else if removed > 0 {
		a.log.Info("startup cleanup complete", "tokens_removed", removed)
	}

	srv := server.New(a.files, a.notes, a.sync, a.auth, a.log)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(a.cfg.Server.Host, a.cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for {
		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				a.log.Info("reloading authorized keys")
				if err := a.auth.LoadAuthorizedKeys(); err != nil {
					a.log.Error("failed to reload authorized keys", "error", err)
				}
				continue
			}

			a.log.Info("shutting down", "signal", sig.String())
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			err := srv.Stop(ctx)
			cancel()
			if err != nil {
				return fmt.Errorf("shutdown failed: %w", err)
			}
			<-errCh
			return nil
		}
	}
}
