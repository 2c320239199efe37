// Package reconcile drives contact synchronization from the source database
// to the marketing system. It offers three entry points: a single contact, one
// drain of the sync queue, and a full scan of the source view.
package reconcile

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/stoik/contactsync/internal/models"
	"github.com/stoik/contactsync/services/sync-service/internal/contacts"
	"github.com/stoik/contactsync/services/sync-service/internal/logging"
	"github.com/stoik/contactsync/services/sync-service/internal/mapping"
	"github.com/stoik/contactsync/services/sync-service/internal/metrics"
	syncmodels "github.com/stoik/contactsync/services/sync-service/internal/models"
	"github.com/stoik/contactsync/services/sync-service/internal/segments"
	"github.com/stoik/contactsync/services/sync-service/internal/syncerr"
	"github.com/stoik/contactsync/services/sync-service/internal/target"
	"github.com/stoik/contactsync/services/sync-service/internal/workpool"
)

// ErrFullSyncRunning is returned by FullSync while another full sync runs.
var ErrFullSyncRunning = errors.New("full sync already running")

const (
	OperationContact = "contact"
	OperationQueue   = "queue"
	OperationFull    = "full"
)

// ContactStore reads source contacts and their sync status.
type ContactStore interface {
	GetContact(ctx context.Context, id uuid.UUID) (models.SourceContact, error)
	GetContacts(ctx context.Context, ids []uuid.UUID) ([]models.SourceContact, error)
	ListContacts(ctx context.Context, after uuid.UUID, limit int) ([]models.SourceContact, error)
	GetStatus(ctx context.Context, id uuid.UUID) (*syncmodels.SyncStatus, error)
	GetStatuses(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]syncmodels.SyncStatus, error)
	ListStatuses(ctx context.Context, after uuid.UUID, limit int) ([]syncmodels.SyncStatus, error)
	SaveSuccess(ctx context.Context, st syncmodels.SyncStatus) error
	SaveFailure(ctx context.Context, id uuid.UUID, message string, at time.Time) error
}

// QueueStore gives access to pending incremental syncs.
type QueueStore interface {
	PeekQueue(ctx context.Context, limit int) ([]syncmodels.SyncQueueEntry, error)
	DeleteQueued(ctx context.Context, ids []uuid.UUID, upTo time.Time) (int64, error)
}

// RunStore records full sync runs.
type RunStore interface {
	InsertRun(ctx context.Context, run *syncmodels.SyncRunLog) error
}

// Store is everything the service persists.
type Store interface {
	ContactStore
	QueueStore
	RunStore
}

// Service runs sync operations. It is safe for concurrent use.
type Service struct {
	store    Store
	registry *segments.Registry
	differ   *segments.Differ
	upserter *contacts.Upserter
	cfg      Config

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	fullRunning atomic.Bool
}

func NewService(store Store, api target.API, catalog segments.Catalog, cfg Config) *Service {
	defaults := DefaultConfig()
	if cfg.QueueBatchSize <= 0 {
		cfg.QueueBatchSize = defaults.QueueBatchSize
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaults.PageSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaults.Concurrency
	}

	return &Service{
		store:    store,
		registry: segments.NewRegistry(api, catalog),
		differ:   segments.NewDiffer(api, catalog),
		upserter: contacts.NewUpserter(api),
		cfg:      cfg,
		now:      time.Now,
	}
}

// SetClock replaces the clock used for status and run timestamps.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SetSleep replaces the pause between full sync groups.
func (s *Service) SetSleep(sleep func(ctx context.Context, d time.Duration) error) {
	s.sleep = sleep
}

// ContactResult is the outcome of SyncContact.
type ContactResult struct {
	Success         bool            `json:"success"`
	Action          contacts.Action `json:"action,omitempty"`
	TargetContactID *int64          `json:"target_contact_id"`
	Message         string          `json:"message,omitempty"`
	Error           string          `json:"error,omitempty"`
}

// QueueResult is the outcome of ProcessQueue.
type QueueResult struct {
	Success      bool                  `json:"success"`
	Processed    int                   `json:"processed"`
	Created      int                   `json:"created"`
	Updated      int                   `json:"updated"`
	Skipped      int                   `json:"skipped"`
	Failed       int                   `json:"failed"`
	QueueCleared int64                 `json:"queue_cleared"`
	Errors       []syncmodels.RunError `json:"errors,omitempty"`
	Error        string                `json:"error,omitempty"`
}

// workItem is a contact whose fingerprint differs from the stored one.
type workItem struct {
	contact  models.SourceContact
	fields   mapping.Fields
	segments []string
	hash     string
	status   *syncmodels.SyncStatus
}

// prepare fingerprints contact and reports whether it needs a remote write.
func prepare(contact models.SourceContact, status *syncmodels.SyncStatus) (workItem, bool) {
	fields := mapping.MapFields(contact)
	segs := mapping.SortedSegments(contact.CustomerSegments)
	item := workItem{
		contact:  contact,
		fields:   fields,
		segments: segs,
		hash:     mapping.ComputeHash(fields, segs),
		status:   status,
	}
	changed := status == nil || status.SyncHash == nil || *status.SyncHash != item.hash
	return item, changed
}

// outcome is what happened to one work item. err is a per-contact failure.
type outcome struct {
	result   contacts.Result
	segments segments.DiffResult
	err      error
}

// SyncContact re-reads one contact and pushes it if its fingerprint changed.
// An unchanged contact costs no remote calls. A missing source row is a
// syncerr.KindNotFound error.
func (s *Service) SyncContact(ctx context.Context, id uuid.UUID) (ContactResult, error) {
	start := time.Now()
	defer metrics.ObserveRun(OperationContact, start)

	contact, err := s.store.GetContact(ctx, id)
	if err != nil {
		return ContactResult{Error: err.Error()}, err
	}
	status, err := s.store.GetStatus(ctx, id)
	if err != nil {
		return ContactResult{Error: err.Error()}, err
	}

	var knownID *int64
	if status != nil {
		knownID = status.TargetContactID
	}

	if !UsableEmail(contact.Email) {
		metrics.ContactOutcomes.WithLabelValues(OperationContact, string(contacts.ActionSkipped)).Inc()
		return ContactResult{Success: true, Action: contacts.ActionSkipped, TargetContactID: knownID, Message: "no usable email"}, nil
	}

	item, changed := prepare(contact, status)
	if !changed {
		logging.Debug().Str("customer_id", id.String()).Msg("contact unchanged, skipping")
		metrics.ContactOutcomes.WithLabelValues(OperationContact, string(contacts.ActionSkipped)).Inc()
		return ContactResult{Success: true, Action: contacts.ActionSkipped, TargetContactID: knownID, Message: "no changes"}, nil
	}

	index, err := s.registry.Ensure(ctx)
	if err != nil {
		s.fatal(OperationContact, err)
		s.saveFailure(ctx, id, err)
		return ContactResult{TargetContactID: knownID, Error: err.Error()}, err
	}

	out, err := s.syncOne(ctx, OperationContact, item, index)
	if err == nil {
		err = out.err
	}
	if err != nil {
		return ContactResult{TargetContactID: knownID, Error: err.Error()}, err
	}

	targetID := out.result.TargetContactID
	return ContactResult{Success: true, Action: out.result.Action, TargetContactID: &targetID}, nil
}

// ProcessQueue drains one batch of the sync queue, oldest entries first.
// Every fetched entry is deleted afterwards whether its contact was synced,
// skipped or failed. A fatal error leaves the batch queued.
func (s *Service) ProcessQueue(ctx context.Context) (QueueResult, error) {
	start := time.Now()
	defer metrics.ObserveRun(OperationQueue, start)

	var res QueueResult

	entries, err := s.store.PeekQueue(ctx, s.cfg.QueueBatchSize)
	if err != nil {
		return s.queueFailed(res, err)
	}
	if len(entries) == 0 {
		res.Success = true
		return res, nil
	}

	ids := make([]uuid.UUID, 0, len(entries))
	seen := make(map[uuid.UUID]bool, len(entries))
	newest := entries[0].QueuedAt
	for _, e := range entries {
		if e.QueuedAt.After(newest) {
			newest = e.QueuedAt
		}
		if !seen[e.CustomerID] {
			seen[e.CustomerID] = true
			ids = append(ids, e.CustomerID)
		}
	}

	found, err := s.store.GetContacts(ctx, ids)
	if err != nil {
		return s.queueFailed(res, err)
	}
	statuses, err := s.store.GetStatuses(ctx, ids)
	if err != nil {
		return s.queueFailed(res, err)
	}

	t := &tally{}
	t.skipped = len(ids) - len(found)

	var work []workItem
	for _, c := range found {
		if !UsableEmail(c.Email) {
			t.skipped++
			continue
		}
		var status *syncmodels.SyncStatus
		if st, ok := statuses[c.ID]; ok {
			status = &st
		}
		item, changed := prepare(c, status)
		if !changed {
			t.skipped++
			continue
		}
		work = append(work, item)
	}

	if err := s.process(ctx, OperationQueue, work, workpool.Options{Concurrency: s.cfg.Concurrency}, t); err != nil {
		t.fill(&res)
		return s.queueFailed(res, err)
	}

	cleared, err := s.store.DeleteQueued(ctx, ids, newest)
	t.fill(&res)
	res.Processed = len(ids)
	if err != nil {
		return s.queueFailed(res, err)
	}
	res.QueueCleared = cleared
	res.Success = true

	metrics.ContactOutcomes.WithLabelValues(OperationQueue, string(contacts.ActionSkipped)).Add(float64(res.Skipped))
	logging.Info().
		Int("processed", res.Processed).
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Int64("queue_cleared", res.QueueCleared).
		Msg("sync queue drained")
	return res, nil
}

func (s *Service) queueFailed(res QueueResult, err error) (QueueResult, error) {
	s.fatal(OperationQueue, err)
	res.Success = false
	res.Error = err.Error()
	return res, err
}

// FullSync fingerprints every source contact and pushes the ones whose
// fingerprint changed. A run log is written at the end, also when the run
// is aborted. Only one full sync runs at a time; an overlapping call returns
// ErrFullSyncRunning without writing a run log.
func (s *Service) FullSync(ctx context.Context) (syncmodels.SyncRunLog, error) {
	if !s.fullRunning.CompareAndSwap(false, true) {
		return syncmodels.SyncRunLog{Error: ErrFullSyncRunning.Error()}, ErrFullSyncRunning
	}
	defer s.fullRunning.Store(false)

	start := time.Now()
	defer metrics.ObserveRun(OperationFull, start)

	run := syncmodels.SyncRunLog{RunStartedAt: s.now().UTC()}
	t := &tally{}

	err := s.fullSync(ctx, &run, t)

	t.fillRun(&run)
	run.RunFinishedAt = s.now().UTC()
	run.Success = err == nil
	if err != nil {
		s.fatal(OperationFull, err)
		run.Error = err.Error()
	} else {
		metrics.LastFullSync.SetToCurrentTime()
	}

	// The run log is written even when ctx was cancelled.
	if insertErr := s.store.InsertRun(context.WithoutCancel(ctx), &run); insertErr != nil {
		logging.Error().Err(insertErr).Msg("failed to write sync run log")
	}

	logging.Info().
		Bool("success", run.Success).
		Int("scanned", run.Scanned).
		Int("synced", run.Synced).
		Int("created", run.Created).
		Int("updated", run.Updated).
		Int("failed", run.Failed).
		Int("segments_synced", run.SegmentsSynced).
		Dur("duration", run.RunFinishedAt.Sub(run.RunStartedAt)).
		Msg("full sync finished")
	return run, err
}

func (s *Service) fullSync(ctx context.Context, run *syncmodels.SyncRunLog, t *tally) error {
	statuses, err := s.loadStatuses(ctx)
	if err != nil {
		return err
	}

	var work []workItem
	excluded, unchanged := 0, 0
	after := uuid.Nil
	for {
		page, err := s.store.ListContacts(ctx, after, s.cfg.PageSize)
		if err != nil {
			return err
		}
		run.Scanned += len(page)
		metrics.ContactsScanned.Add(float64(len(page)))

		for _, c := range page {
			if !UsableEmail(c.Email) {
				excluded++
				continue
			}
			var status *syncmodels.SyncStatus
			if st, ok := statuses[c.ID]; ok {
				status = &st
			}
			item, changed := prepare(c, status)
			if !changed {
				unchanged++
				continue
			}
			work = append(work, item)
		}

		if len(page) < s.cfg.PageSize {
			break
		}
		after = page[len(page)-1].ID
	}

	metrics.ContactOutcomes.WithLabelValues(OperationFull, string(contacts.ActionSkipped)).Add(float64(unchanged))
	logging.Info().
		Int("scanned", run.Scanned).
		Int("excluded", excluded).
		Int("unchanged", unchanged).
		Int("changed", len(work)).
		Msg("full sync scan complete")

	opts := workpool.Options{
		Concurrency: s.cfg.Concurrency,
		PauseEvery:  s.cfg.PauseEvery,
		Pause:       s.cfg.Pause,
		Sleep:       s.sleep,
	}
	return s.process(ctx, OperationFull, work, opts, t)
}

func (s *Service) loadStatuses(ctx context.Context) (map[uuid.UUID]syncmodels.SyncStatus, error) {
	out := make(map[uuid.UUID]syncmodels.SyncStatus)
	after := uuid.Nil
	for {
		page, err := s.store.ListStatuses(ctx, after, s.cfg.PageSize)
		if err != nil {
			return nil, err
		}
		for _, st := range page {
			out[st.CustomerID] = st
		}
		if len(page) < s.cfg.PageSize {
			return out, nil
		}
		after = page[len(page)-1].CustomerID
	}
}

// process resolves the segment index and runs work through the pool. Only
// fatal errors are returned; everything else lands in t.
func (s *Service) process(ctx context.Context, op string, work []workItem, opts workpool.Options, t *tally) error {
	if len(work) == 0 {
		return nil
	}

	index, err := s.registry.Ensure(ctx)
	if err != nil {
		return err
	}

	return workpool.Run(ctx, work, opts, func(ctx context.Context, item workItem) error {
		out, err := s.syncOne(ctx, op, item, index)
		t.record(item.contact, out)
		return err
	})
}

// syncOne upserts one contact, applies its segment changes and persists the
// outcome. The returned error is fatal to the run; per-contact failures are
// reported in outcome.err.
func (s *Service) syncOne(ctx context.Context, op string, item workItem, index segments.Index) (outcome, error) {
	log := logging.With().Str("customer_id", item.contact.ID.String()).Str("operation", op).Logger()

	res, err := s.upserter.Upsert(ctx, item.contact, item.fields, item.status)
	if err != nil {
		log.Warn().Err(err).Str("kind", syncerr.KindOf(err).String()).Msg("contact sync failed")
		metrics.ContactOutcomes.WithLabelValues(op, "failed").Inc()
		s.saveFailure(ctx, item.contact.ID, err)
		if syncerr.Fatal(err) {
			return outcome{err: err}, err
		}
		return outcome{err: err}, nil
	}

	var previous []string
	if item.status != nil {
		previous = item.status.PreviousSegments
	}
	diff := s.differ.Apply(ctx, res.TargetContactID, item.segments, previous, index)

	now := s.now().UTC()
	targetID := res.TargetContactID
	hash := item.hash
	err = s.store.SaveSuccess(ctx, syncmodels.SyncStatus{
		CustomerID:       item.contact.ID,
		TargetContactID:  &targetID,
		SyncHash:         &hash,
		PreviousSegments: item.segments,
		LastSyncedAt:     &now,
		UpdatedAt:        now,
	})
	if err != nil {
		log.Error().Err(err).Int64("target_contact_id", targetID).Msg("failed to persist sync status")
		metrics.ContactOutcomes.WithLabelValues(op, "failed").Inc()
		return outcome{result: res, segments: diff, err: err}, nil
	}

	log.Debug().
		Str("action", string(res.Action)).
		Int64("target_contact_id", targetID).
		Int("segments_added", diff.Added).
		Int("segments_removed", diff.Removed).
		Msg("contact synced")
	metrics.ContactOutcomes.WithLabelValues(op, string(res.Action)).Inc()
	return outcome{result: res, segments: diff}, nil
}

func (s *Service) saveFailure(ctx context.Context, id uuid.UUID, cause error) {
	if err := s.store.SaveFailure(ctx, id, cause.Error(), s.now().UTC()); err != nil {
		logging.Error().Err(err).Str("customer_id", id.String()).Msg("failed to record sync error")
	}
}

func (s *Service) fatal(op string, err error) {
	kind := syncerr.KindOf(err)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		kind = syncerr.KindUnknown
	}
	metrics.RunFailures.WithLabelValues(op, kind.String()).Inc()
	logging.Error().Err(err).Str("operation", op).Str("kind", kind.String()).Msg("sync aborted")
}

// tally accumulates outcomes from concurrent workers.
type tally struct {
	mu       sync.Mutex
	created  int
	updated  int
	skipped  int
	failed   int
	segments int
	errors   []syncmodels.RunError
}

func (t *tally) record(c models.SourceContact, out outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.segments += out.segments.Added + out.segments.Removed
	if out.err != nil {
		t.failed++
		t.errors = append(t.errors, syncmodels.RunError{
			CustomerID: c.ID.String(),
			Email:      c.Email,
			Error:      out.err.Error(),
		})
		return
	}
	switch out.result.Action {
	case contacts.ActionCreated:
		t.created++
	case contacts.ActionUpdated:
		t.updated++
	}
}

func (t *tally) fill(res *QueueResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	res.Created = t.created
	res.Updated = t.updated
	res.Skipped = t.skipped
	res.Failed = t.failed
	res.Errors = append([]syncmodels.RunError(nil), t.errors...)
}

func (t *tally) fillRun(run *syncmodels.SyncRunLog) {
	t.mu.Lock()
	defer t.mu.Unlock()
	run.Created = t.created
	run.Updated = t.updated
	run.Synced = t.created + t.updated
	run.Failed = t.failed
	run.SegmentsSynced = t.segments
	run.ErrorDetails = append([]syncmodels.RunError(nil), t.errors...)
}
