package cli

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/leolhan1425/bc-tracker/internal/config"
	"github.com/leolhan1425/bc-tracker/internal/monitoring"
	"github.com/leolhan1425/bc-tracker/internal/notifications"
	"github.com/leolhan1425/bc-tracker/internal/sources"
	"github.com/leolhan1425/bc-tracker/internal/storage"
	"github.com/leolhan1425/bc-tracker/internal/store"
	"github.com/sirupsen/logrus"
)

// app is the wired set of services a command works with.
type app struct {
	config     *config.Config
	store      *store.Store
	backup     *storage.Backup
	monitoring *monitoring.Service
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	backup, err := newBackup(ctx, cfg)
	if err != nil {
		st.Close()
		return nil, err
	}

	fetcher := sources.NewRedditSource(sources.RedditOptions{
		BaseURL:         cfg.RedditBaseURL,
		UserAgent:       cfg.RedditUserAgent,
		RequestInterval: cfg.RequestInterval,
	})

	var notifier notifications.NotificationInterface
	if cfg.NotificationsEnabled() {
		notifier = notifications.NewService(cfg)
	}

	var opts []monitoring.Option
	if backup != nil {
		opts = append(opts, monitoring.WithBackup(backup))
	}

	return &app{
		config:     cfg,
		store:      st,
		backup:     backup,
		monitoring: monitoring.NewService(cfg, st, fetcher, notifier, opts...),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		logrus.Errorf("Failed to close store: %v", err)
	}
}

// newBackup picks Azure Blob Storage when an account is configured, a local
// directory when one is set, and nothing otherwise.
func newBackup(ctx context.Context, cfg *config.Config) (*storage.Backup, error) {
	var target storage.StorageInterface
	switch {
	case cfg.StorageAccount != "":
		azure, err := storage.NewAzureStorage(ctx, cfg.StorageAccount, cfg.StorageContainer)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		target = azure
	case cfg.BackupDir != "":
		local, err := storage.NewLocalStorage(cfg.BackupDir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		target = local
	default:
		return nil, nil
	}
	return storage.NewBackup(target, cfg.BackupRetention, clockwork.NewRealClock()), nil
}
