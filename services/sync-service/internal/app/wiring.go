package app

import (
	"context"
	"fmt"

	"github.com/spf13/viper"
	"github.com/stoik/contactsync/services/sync-service/internal/db"
	"github.com/stoik/contactsync/services/sync-service/internal/reconcile"
	"github.com/stoik/contactsync/services/sync-service/internal/segments"
	"github.com/stoik/contactsync/services/sync-service/internal/store"
	"github.com/stoik/contactsync/services/sync-service/internal/target"
)

// components is everything a command needs, built from configuration.
type components struct {
	store   *store.Store
	service *reconcile.Service
}

// setupComponents opens the database pool and builds the sync service.
// Callers must defer db.Close.
func setupComponents(ctx context.Context) (*components, error) {
	if err := db.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	cfg := target.ConfigFromViper()
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		db.Close()
		return nil, fmt.Errorf("target.client_id and target.client_secret must be configured")
	}

	st := store.New(db.Pool, viper.GetString("source.view"))
	svc := reconcile.NewService(st, target.NewClient(cfg), segments.CatalogFromViper(), reconcile.ConfigFromViper())

	return &components{store: st, service: svc}, nil
}
