// Package store reads source contacts and persists sync state in Postgres.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stoik/contactsync/internal/models"
	syncmodels "github.com/stoik/contactsync/services/sync-service/internal/models"
	"github.com/stoik/contactsync/services/sync-service/internal/syncerr"
)

// DefaultSourceView is the view contacts are read from unless configured.
const DefaultSourceView = "customers_crm_v"

// Querier is the subset of pgxpool.Pool the store needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const contactColumns = `id, COALESCE(email, '') AS email, first_name, last_name,
	mobile, landline, address_line1, address_line2, suburb, state, postcode, country,
	customer_segment, lead_score, total_orders, total_spent, last_order_date,
	last_event_name, preferred_venue, marketing_opt_in, customer_since,
	COALESCE(customer_segments, '{}') AS customer_segments`

const statusColumns = `customer_id, target_contact_id, sync_hash,
	COALESCE(previous_segments, '{}') AS previous_segments, last_synced_at,
	sync_error, updated_at`

const runColumns = `id, run_started_at, run_finished_at, contacts_scanned,
	contacts_synced, contacts_created, contacts_updated, contacts_failed,
	segments_synced, error_details, COALESCE(fatal_error, '') AS fatal_error`

// Store is the Postgres implementation of the sync engine's persistence.
type Store struct {
	pool   Querier
	source string
}

// New creates a store reading contacts from view. An empty view selects
// DefaultSourceView; a dotted name is treated as schema-qualified.
func New(pool Querier, view string) *Store {
	return &Store{pool: pool, source: sourceRelation(view)}
}

func sourceRelation(view string) string {
	view = strings.TrimSpace(view)
	if view == "" {
		view = DefaultSourceView
	}
	return pgx.Identifier(strings.Split(view, ".")).Sanitize()
}

// GetContact reads one source contact. A missing row is syncerr.KindNotFound.
func (s *Store) GetContact(ctx context.Context, id uuid.UUID) (models.SourceContact, error) {
	query := `SELECT ` + contactColumns + ` FROM ` + s.source + ` WHERE id = $1`

	rows, err := s.pool.Query(ctx, query, id)
	if err != nil {
		return models.SourceContact{}, syncerr.E(syncerr.KindFetch, "get contact", fmt.Errorf("failed to query contact %s: %w", id, err))
	}
	contact, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[models.SourceContact])
	if errors.Is(err, pgx.ErrNoRows) {
		return models.SourceContact{}, syncerr.E(syncerr.KindNotFound, "get contact", fmt.Errorf("contact %s not found", id))
	}
	if err != nil {
		return models.SourceContact{}, syncerr.E(syncerr.KindFetch, "get contact", fmt.Errorf("failed to read contact %s: %w", id, err))
	}
	return contact, nil
}

// GetContacts bulk-reads source contacts. Ids without a row are omitted.
func (s *Store) GetContacts(ctx context.Context, ids []uuid.UUID) ([]models.SourceContact, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + contactColumns + ` FROM ` + s.source + ` WHERE id = ANY($1::uuid[]) ORDER BY id`

	rows, err := s.pool.Query(ctx, query, uuidStrings(ids))
	if err != nil {
		return nil, syncerr.E(syncerr.KindFetch, "get contacts", fmt.Errorf("failed to query contacts: %w", err))
	}
	contacts, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.SourceContact])
	if err != nil {
		return nil, syncerr.E(syncerr.KindFetch, "get contacts", fmt.Errorf("failed to read contacts: %w", err))
	}
	return contacts, nil
}

// ListContacts returns up to limit contacts with id greater than after, in id
// order, leaving out rows without an email. Pass uuid.Nil for the first page.
func (s *Store) ListContacts(ctx context.Context, after uuid.UUID, limit int) ([]models.SourceContact, error) {
	query := `SELECT ` + contactColumns + ` FROM ` + s.source + ` WHERE id > $1 AND email IS NOT NULL ORDER BY id LIMIT $2`

	rows, err := s.pool.Query(ctx, query, after, limit)
	if err != nil {
		return nil, syncerr.E(syncerr.KindFetch, "list contacts", fmt.Errorf("failed to query contacts page: %w", err))
	}
	contacts, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.SourceContact])
	if err != nil {
		return nil, syncerr.E(syncerr.KindFetch, "list contacts", fmt.Errorf("failed to read contacts page: %w", err))
	}
	return contacts, nil
}

// GetStatus returns the sync status of a contact, or nil if it was never
// synced.
func (s *Store) GetStatus(ctx context.Context, id uuid.UUID) (*syncmodels.SyncStatus, error) {
	query := `SELECT ` + statusColumns + ` FROM contact_sync_status WHERE customer_id = $1`

	rows, err := s.pool.Query(ctx, query, id)
	if err != nil {
		return nil, syncerr.E(syncerr.KindFetch, "get status", fmt.Errorf("failed to query sync status: %w", err))
	}
	status, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[syncmodels.SyncStatus])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, syncerr.E(syncerr.KindFetch, "get status", fmt.Errorf("failed to read sync status: %w", err))
	}
	return &status, nil
}

// GetStatuses bulk-reads sync statuses keyed by customer id.
func (s *Store) GetStatuses(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]syncmodels.SyncStatus, error) {
	out := make(map[uuid.UUID]syncmodels.SyncStatus, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query := `SELECT ` + statusColumns + ` FROM contact_sync_status WHERE customer_id = ANY($1::uuid[])`

	rows, err := s.pool.Query(ctx, query, uuidStrings(ids))
	if err != nil {
		return nil, syncerr.E(syncerr.KindFetch, "get statuses", fmt.Errorf("failed to query sync statuses: %w", err))
	}
	statuses, err := pgx.CollectRows(rows, pgx.RowToStructByName[syncmodels.SyncStatus])
	if err != nil {
		return nil, syncerr.E(syncerr.KindFetch, "get statuses", fmt.Errorf("failed to read sync statuses: %w", err))
	}
	for _, st := range statuses {
		out[st.CustomerID] = st
	}
	return out, nil
}

// ListStatuses pages through all status rows in customer id order.
func (s *Store) ListStatuses(ctx context.Context, after uuid.UUID, limit int) ([]syncmodels.SyncStatus, error) {
	query := `SELECT ` + statusColumns + ` FROM contact_sync_status WHERE customer_id > $1 ORDER BY customer_id LIMIT $2`

	rows, err := s.pool.Query(ctx, query, after, limit)
	if err != nil {
		return nil, syncerr.E(syncerr.KindFetch, "list statuses", fmt.Errorf("failed to query sync statuses page: %w", err))
	}
	statuses, err := pgx.CollectRows(rows, pgx.RowToStructByName[syncmodels.SyncStatus])
	if err != nil {
		return nil, syncerr.E(syncerr.KindFetch, "list statuses", fmt.Errorf("failed to read sync statuses page: %w", err))
	}
	return statuses, nil
}

// SaveSuccess records a successful sync and clears any previous error.
func (s *Store) SaveSuccess(ctx context.Context, st syncmodels.SyncStatus) error {
	query := `
		INSERT INTO contact_sync_status
		    (customer_id, target_contact_id, sync_hash, previous_segments, last_synced_at, sync_error, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULL, $6)
		ON CONFLICT (customer_id) DO UPDATE SET
		    target_contact_id = EXCLUDED.target_contact_id,
		    sync_hash = EXCLUDED.sync_hash,
		    previous_segments = EXCLUDED.previous_segments,
		    last_synced_at = EXCLUDED.last_synced_at,
		    sync_error = NULL,
		    updated_at = EXCLUDED.updated_at
	`

	segments := st.PreviousSegments
	if segments == nil {
		segments = []string{}
	}

	_, err := s.pool.Exec(ctx, query,
		st.CustomerID,
		st.TargetContactID,
		st.SyncHash,
		segments,
		st.LastSyncedAt,
		st.UpdatedAt,
	)
	if err != nil {
		return syncerr.E(syncerr.KindStatusWrite, "save sync status", fmt.Errorf("failed to upsert sync status for %s: %w", st.CustomerID, err))
	}
	return nil
}

// SaveFailure records a failed attempt. Only sync_error and updated_at are
// written, so the last successful hash and target id survive.
func (s *Store) SaveFailure(ctx context.Context, id uuid.UUID, message string, at time.Time) error {
	query := `
		INSERT INTO contact_sync_status (customer_id, sync_error, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (customer_id) DO UPDATE SET
		    sync_error = EXCLUDED.sync_error,
		    updated_at = EXCLUDED.updated_at
	`

	if _, err := s.pool.Exec(ctx, query, id, message, at); err != nil {
		return syncerr.E(syncerr.KindStatusWrite, "save sync error", fmt.Errorf("failed to record sync error for %s: %w", id, err))
	}
	return nil
}

// PeekQueue returns up to limit queue entries, oldest first. Entries stay
// queued until DeleteQueued.
func (s *Store) PeekQueue(ctx context.Context, limit int) ([]syncmodels.SyncQueueEntry, error) {
	query := `SELECT customer_id, queued_at FROM contact_sync_queue ORDER BY queued_at, id LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, syncerr.E(syncerr.KindQueueRead, "read queue", fmt.Errorf("failed to query sync queue: %w", err))
	}
	entries, err := pgx.CollectRows(rows, pgx.RowToStructByName[syncmodels.SyncQueueEntry])
	if err != nil {
		return nil, syncerr.E(syncerr.KindQueueRead, "read queue", fmt.Errorf("failed to read sync queue: %w", err))
	}
	return entries, nil
}

// DeleteQueued removes entries for ids queued at or before upTo. Entries
// queued later by a concurrent writer are kept for the next drain.
func (s *Store) DeleteQueued(ctx context.Context, ids []uuid.UUID, upTo time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `DELETE FROM contact_sync_queue WHERE customer_id = ANY($1::uuid[]) AND queued_at <= $2`

	tag, err := s.pool.Exec(ctx, query, uuidStrings(ids), upTo)
	if err != nil {
		return 0, syncerr.E(syncerr.KindQueueWrite, "clear queue", fmt.Errorf("failed to delete queue entries: %w", err))
	}
	return tag.RowsAffected(), nil
}

// Enqueue adds ids to the sync queue.
func (s *Store) Enqueue(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	query := `INSERT INTO contact_sync_queue (customer_id) SELECT unnest($1::uuid[])`

	if _, err := s.pool.Exec(ctx, query, uuidStrings(ids)); err != nil {
		return syncerr.E(syncerr.KindQueueWrite, "enqueue", fmt.Errorf("failed to enqueue contacts: %w", err))
	}
	return nil
}

// InsertRun appends a run log and sets its ID.
func (s *Store) InsertRun(ctx context.Context, run *syncmodels.SyncRunLog) error {
	query := `
		INSERT INTO contact_sync_runs
		    (run_started_at, run_finished_at, contacts_scanned, contacts_synced, contacts_created,
		     contacts_updated, contacts_failed, segments_synced, error_details, fatal_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	var details any
	if len(run.ErrorDetails) > 0 {
		details = run.ErrorDetails
	}
	var fatal *string
	if run.Error != "" {
		fatal = &run.Error
	}

	err := s.pool.QueryRow(ctx, query,
		run.RunStartedAt,
		run.RunFinishedAt,
		run.Scanned,
		run.Synced,
		run.Created,
		run.Updated,
		run.Failed,
		run.SegmentsSynced,
		details,
		fatal,
	).Scan(&run.ID)
	if err != nil {
		return fmt.Errorf("failed to insert sync run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent run logs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]syncmodels.SyncRunLog, error) {
	query := `SELECT ` + runColumns + ` FROM contact_sync_runs ORDER BY run_started_at DESC, id DESC LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}
	runs, err := pgx.CollectRows(rows, pgx.RowToStructByName[syncmodels.SyncRunLog])
	if err != nil {
		return nil, fmt.Errorf("failed to read sync runs: %w", err)
	}
	for i := range runs {
		runs[i].Success = runs[i].Error == ""
	}
	return runs, nil
}

// Migrate creates the engine's tables.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
