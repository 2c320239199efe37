package store

// Schema creates the engine's own tables. The source view is owned by the
// operational database and is never created here.
const Schema = `
	-- Last sync attempt per source contact
	CREATE TABLE IF NOT EXISTS contact_sync_status (
	    customer_id UUID PRIMARY KEY,
	    target_contact_id BIGINT,
	    sync_hash VARCHAR(64),
	    previous_segments TEXT[] NOT NULL DEFAULT '{}',
	    last_synced_at TIMESTAMP WITH TIME ZONE,
	    sync_error TEXT,
	    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_contact_sync_status_target ON contact_sync_status(target_contact_id);

	-- Pending incremental syncs, filled by source-side triggers or the enqueue command
	CREATE TABLE IF NOT EXISTS contact_sync_queue (
	    id BIGSERIAL PRIMARY KEY,
	    customer_id UUID NOT NULL,
	    queued_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_contact_sync_queue_queued_at ON contact_sync_queue(queued_at);
	CREATE INDEX IF NOT EXISTS idx_contact_sync_queue_customer_id ON contact_sync_queue(customer_id);

	-- One row per full sync (append-only)
	CREATE TABLE IF NOT EXISTS contact_sync_runs (
	    id BIGSERIAL PRIMARY KEY,
	    run_started_at TIMESTAMP WITH TIME ZONE NOT NULL,
	    run_finished_at TIMESTAMP WITH TIME ZONE NOT NULL,
	    contacts_scanned INTEGER NOT NULL DEFAULT 0,
	    contacts_synced INTEGER NOT NULL DEFAULT 0,
	    contacts_created INTEGER NOT NULL DEFAULT 0,
	    contacts_updated INTEGER NOT NULL DEFAULT 0,
	    contacts_failed INTEGER NOT NULL DEFAULT 0,
	    segments_synced INTEGER NOT NULL DEFAULT 0,
	    error_details JSONB,
	    fatal_error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_contact_sync_runs_started ON contact_sync_runs(run_started_at DESC);
`
