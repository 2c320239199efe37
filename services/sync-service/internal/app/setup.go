package app

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/stoik/contactsync/services/sync-service/internal/db"
	"github.com/stoik/contactsync/services/sync-service/internal/store"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create the sync tables",
	Long:  "Creates the sync status, queue and run log tables. The source view must already exist.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		// Initialize database
		if err := db.Init(ctx); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close()

		// Run migrations
		fmt.Println("Running migrations...")
		if err := store.New(db.Pool, "").Migrate(ctx); err != nil {
			return err
		}

		fmt.Println("✓ Database setup complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
