package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stoik/contactsync/services/sync-service/internal/api"
	"github.com/stoik/contactsync/services/sync-service/internal/db"
	"github.com/stoik/contactsync/services/sync-service/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the sync HTTP API",
	Long:  "Serves the sync endpoints and, when sync.schedule is set, runs full syncs on that schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		c, err := setupComponents(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		if viper.GetString("log.level") != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}

		handler := api.NewHandler(c.service, c.store, db.Pool)
		srv := &http.Server{
			Addr:              viper.GetString("server.addr"),
			Handler:           handler.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		if spec := viper.GetString("sync.schedule"); spec != "" {
			scheduler, err := newScheduler(ctx, spec, c.service)
			if err != nil {
				return err
			}
			scheduler.Start()
			// Wait for a running scheduled sync to finish its current group.
			defer func() { <-scheduler.Stop().Done() }()
			logging.Info().Str("schedule", spec).Msg("full sync scheduled")
		}

		errChan := make(chan error, 1)
		go func() {
			logging.Info().Str("addr", srv.Addr).Msg("sync service listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

		// Wait for signal or error
		select {
		case <-ctx.Done():
			logging.Info().Msg("shutting down gracefully")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logging.Warn().Err(err).Msg("some requests may not have completed")
			}
			return nil
		case err := <-errChan:
			return fmt.Errorf("http server failed: %w", err)
		}
	},
}

func init() {
	serveCmd.Flags().String("server.addr", ":8090", "HTTP listen address")
	serveCmd.Flags().String("sync.schedule", "", "Cron expression for scheduled full syncs (empty disables)")
	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("server.addr"))
	viper.BindPFlag("sync.schedule", serveCmd.Flags().Lookup("sync.schedule"))

	rootCmd.AddCommand(serveCmd)
}
