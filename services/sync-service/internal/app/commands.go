package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/stoik/contactsync/services/sync-service/internal/db"
	"github.com/stoik/contactsync/services/sync-service/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one full sync",
	Long:  "Fingerprints every source contact and pushes the changed ones to the marketing system",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		c, err := setupComponents(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		run, err := c.service.FullSync(ctx)
		printJSON(run)
		return err
	},
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Drain one batch of the sync queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		c, err := setupComponents(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		res, err := c.service.ProcessQueue(ctx)
		printJSON(res)
		return err
	},
}

var contactCmd = &cobra.Command{
	Use:   "contact <customer-id>",
	Short: "Sync a single contact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		c, err := setupComponents(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		res, err := c.service.SyncContact(ctx, ids[0])
		printJSON(res)
		return err
	},
}

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <customer-id>...",
	Short: "Queue contacts for the next queue drain",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		if err := db.Init(ctx); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close()

		if err := enqueue(ctx, store.New(db.Pool, ""), ids); err != nil {
			return err
		}
		fmt.Printf("✓ Queued %d contact(s)\n", len(ids))
		return nil
	},
}

type enqueuer interface {
	Enqueue(ctx context.Context, ids []uuid.UUID) error
}

func enqueue(ctx context.Context, q enqueuer, ids []uuid.UUID) error {
	if err := q.Enqueue(ctx, ids); err != nil {
		return fmt.Errorf("failed to enqueue contacts: %w", err)
	}
	return nil
}

func parseIDs(args []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(args))
	for _, arg := range args {
		id, err := uuid.Parse(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid customer id %q: %w", arg, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode result: %v\n", err)
	}
}

func init() {
	rootCmd.AddCommand(runCmd, queueCmd, contactCmd, enqueueCmd)
}
