package models

import (
	"time"

	"github.com/google/uuid"
)

// SyncStatus is the engine's record of the last sync attempt for a contact.
// A row carrying SyncError describes a failed attempt; the hash, target id
// and previous segments still describe the last successful one.
type SyncStatus struct {
	CustomerID       uuid.UUID  `json:"customer_id" db:"customer_id"`
	TargetContactID  *int64     `json:"target_contact_id" db:"target_contact_id"`
	SyncHash         *string    `json:"sync_hash" db:"sync_hash"`
	PreviousSegments []string   `json:"previous_segments" db:"previous_segments"`
	LastSyncedAt     *time.Time `json:"last_synced_at" db:"last_synced_at"`
	SyncError        *string    `json:"sync_error" db:"sync_error"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// SyncQueueEntry is a pending incremental sync request.
type SyncQueueEntry struct {
	CustomerID uuid.UUID `json:"customer_id" db:"customer_id"`
	QueuedAt   time.Time `json:"queued_at" db:"queued_at"`
}

// RunError describes one contact that failed during a run.
type RunError struct {
	CustomerID string `json:"customer_id,omitempty"`
	Email      string `json:"email,omitempty"`
	Error      string `json:"error"`
}

// SyncRunLog summarizes one full sync execution. Append-only.
type SyncRunLog struct {
	ID             int64      `json:"id,omitempty" db:"id"`
	RunStartedAt   time.Time  `json:"run_started_at" db:"run_started_at"`
	RunFinishedAt  time.Time  `json:"run_finished_at" db:"run_finished_at"`
	Success        bool       `json:"success" db:"-"`
	Scanned        int        `json:"contacts_scanned" db:"contacts_scanned"`
	Synced         int        `json:"contacts_synced" db:"contacts_synced"`
	Created        int        `json:"contacts_created" db:"contacts_created"`
	Updated        int        `json:"contacts_updated" db:"contacts_updated"`
	Failed         int        `json:"contacts_failed" db:"contacts_failed"`
	SegmentsSynced int        `json:"segments_synced" db:"segments_synced"`
	ErrorDetails   []RunError `json:"error_details,omitempty" db:"error_details"`
	Error          string     `json:"error,omitempty" db:"fatal_error"`
}
