package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/stoik/contactsync/services/sync-service/internal/logging"
	syncmodels "github.com/stoik/contactsync/services/sync-service/internal/models"
	"github.com/stoik/contactsync/services/sync-service/internal/reconcile"
)

type fullSyncer interface {
	FullSync(ctx context.Context) (syncmodels.SyncRunLog, error)
}

// cronLogger routes scheduler messages through the service logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logging.Debug().Fields(keysAndValues).Msg(msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logging.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

// newScheduler schedules full syncs on a standard 5-field cron expression.
// A tick that fires while the previous run is still going is skipped.
func newScheduler(ctx context.Context, spec string, syncer fullSyncer) (*cron.Cron, error) {
	logger := cronLogger{}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	if _, err := c.AddFunc(spec, func() { scheduledFullSync(ctx, syncer) }); err != nil {
		return nil, fmt.Errorf("invalid sync.schedule %q: %w", spec, err)
	}
	return c, nil
}

func scheduledFullSync(ctx context.Context, syncer fullSyncer) {
	if ctx.Err() != nil {
		return
	}

	run, err := syncer.FullSync(ctx)
	switch {
	case errors.Is(err, reconcile.ErrFullSyncRunning):
		logging.Info().Msg("full sync already running, skipping scheduled run")
	case err != nil:
		logging.Error().Err(err).Int64("run_id", run.ID).Msg("scheduled full sync failed")
	default:
		logging.Info().Int64("run_id", run.ID).Int("synced", run.Synced).Msg("scheduled full sync complete")
	}
}
