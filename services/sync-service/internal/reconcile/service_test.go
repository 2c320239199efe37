package reconcile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stoik/contactsync/internal/mockapi"
	"github.com/stoik/contactsync/internal/models"
	"github.com/stoik/contactsync/services/sync-service/internal/contacts"
	syncmodels "github.com/stoik/contactsync/services/sync-service/internal/models"
	"github.com/stoik/contactsync/services/sync-service/internal/segments"
	"github.com/stoik/contactsync/services/sync-service/internal/syncerr"
	"github.com/stoik/contactsync/services/sync-service/internal/target"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store.
type memStore struct {
	mu       sync.Mutex
	contacts map[uuid.UUID]models.SourceContact
	statuses map[uuid.UUID]syncmodels.SyncStatus
	queue    []syncmodels.SyncQueueEntry
	runs     []syncmodels.SyncRunLog

	listContactsCalls int
	listErr           error
}

func newMemStore() *memStore {
	return &memStore{
		contacts: make(map[uuid.UUID]models.SourceContact),
		statuses: make(map[uuid.UUID]syncmodels.SyncStatus),
	}
}

func (m *memStore) put(c models.SourceContact) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contacts[c.ID] = c
}

func (m *memStore) putStatus(st syncmodels.SyncStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[st.CustomerID] = st
}

func (m *memStore) status(id uuid.UUID) (syncmodels.SyncStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.statuses[id]
	return st, ok
}

func (m *memStore) enqueue(at time.Time, ids ...uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, id := range ids {
		m.queue = append(m.queue, syncmodels.SyncQueueEntry{CustomerID: id, QueuedAt: at.Add(time.Duration(i) * time.Millisecond)})
	}
}

func (m *memStore) queueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

func (m *memStore) GetContact(_ context.Context, id uuid.UUID) (models.SourceContact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[id]
	if !ok {
		return models.SourceContact{}, syncerr.E(syncerr.KindNotFound, "get contact", fmt.Errorf("contact %s not found", id))
	}
	return c, nil
}

func (m *memStore) GetContacts(_ context.Context, ids []uuid.UUID) ([]models.SourceContact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SourceContact
	for _, id := range ids {
		if c, ok := m.contacts[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) ListContacts(_ context.Context, after uuid.UUID, limit int) ([]models.SourceContact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listContactsCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}

	ids := make([]uuid.UUID, 0, len(m.contacts))
	for id := range m.contacts {
		if bytes.Compare(id[:], after[:]) > 0 {
			ids = append(ids, id)
		}
	}
	sortIDs(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]models.SourceContact, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.contacts[id])
	}
	return out, nil
}

func (m *memStore) GetStatus(_ context.Context, id uuid.UUID) (*syncmodels.SyncStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.statuses[id]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (m *memStore) GetStatuses(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]syncmodels.SyncStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uuid.UUID]syncmodels.SyncStatus)
	for _, id := range ids {
		if st, ok := m.statuses[id]; ok {
			out[id] = st
		}
	}
	return out, nil
}

func (m *memStore) ListStatuses(_ context.Context, after uuid.UUID, limit int) ([]syncmodels.SyncStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(m.statuses))
	for id := range m.statuses {
		if bytes.Compare(id[:], after[:]) > 0 {
			ids = append(ids, id)
		}
	}
	sortIDs(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]syncmodels.SyncStatus, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.statuses[id])
	}
	return out, nil
}

func (m *memStore) SaveSuccess(_ context.Context, st syncmodels.SyncStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st.SyncError = nil
	m.statuses[st.CustomerID] = st
	return nil
}

func (m *memStore) SaveFailure(_ context.Context, id uuid.UUID, message string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.statuses[id]
	if !ok {
		st = syncmodels.SyncStatus{CustomerID: id}
	}
	st.SyncError = &message
	st.UpdatedAt = at
	m.statuses[id] = st
	return nil
}

func (m *memStore) PeekQueue(_ context.Context, limit int) ([]syncmodels.SyncQueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := append([]syncmodels.SyncQueueEntry(nil), m.queue...)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].QueuedAt.Before(entries[j].QueuedAt) })
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (m *memStore) DeleteQueued(_ context.Context, ids []uuid.UUID, upTo time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	del := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		del[id] = true
	}
	var kept []syncmodels.SyncQueueEntry
	var n int64
	for _, e := range m.queue {
		if del[e.CustomerID] && !e.QueuedAt.After(upTo) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	m.queue = kept
	return n, nil
}

func (m *memStore) InsertRun(_ context.Context, run *syncmodels.SyncRunLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run.ID = int64(len(m.runs) + 1)
	m.runs = append(m.runs, *run)
	return nil
}

func sortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
}

func newTestService(t *testing.T, secret string) (*Service, *memStore, *mockapi.Server) {
	t.Helper()
	mock := mockapi.New("id", "secret")
	srv := httptest.NewServer(mock.Router())
	t.Cleanup(srv.Close)

	client := target.NewClient(target.Config{BaseURL: srv.URL, ClientID: "id", ClientSecret: secret})
	store := newMemStore()
	svc := NewService(store, client, segments.DefaultCatalog(), DefaultConfig())
	svc.SetSleep(func(context.Context, time.Duration) error { return nil })
	return svc, store, mock
}

func newContact(email string, segs ...string) models.SourceContact {
	return models.SourceContact{ID: uuid.New(), Email: email, CustomerSegments: segs}
}

// syncedStatus returns a status whose hash matches c as it is now.
func syncedStatus(c models.SourceContact, targetID int64) syncmodels.SyncStatus {
	item, _ := prepare(c, nil)
	hash := item.hash
	return syncmodels.SyncStatus{
		CustomerID:       c.ID,
		TargetContactID:  &targetID,
		SyncHash:         &hash,
		PreviousSegments: item.segments,
	}
}

func countSuffix(calls []mockapi.Call, method, suffix string) int {
	n := 0
	for _, c := range calls {
		if c.Method == method && strings.HasSuffix(c.Path, suffix) {
			n++
		}
	}
	return n
}

func upsertCalls(mock *mockapi.Server) int {
	return mock.CountCalls(http.MethodPost, "/contacts/new") + mock.CountCalls(http.MethodPatch, "/contacts/")
}

func TestSyncContactCreatesNewContact(t *testing.T) {
	svc, store, mock := newTestService(t, "secret")
	c1 := newContact("a@x.com", "vip")
	store.put(c1)

	res, err := svc.SyncContact(context.Background(), c1.ID)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, contacts.ActionCreated, res.Action)
	require.NotNil(t, res.TargetContactID)

	assert.Equal(t, 1, mock.CountCalls(http.MethodGet, "/contacts"))
	assert.Equal(t, 1, mock.CountCalls(http.MethodPost, "/contacts/new"))

	st, ok := store.status(c1.ID)
	require.True(t, ok)
	assert.Equal(t, *res.TargetContactID, *st.TargetContactID)
	assert.Equal(t, []string{"vip"}, st.PreviousSegments)
	assert.Nil(t, st.SyncError)
	require.NotNil(t, st.LastSyncedAt)

	expected, _ := prepare(c1, nil)
	assert.Equal(t, expected.hash, *st.SyncHash)

	vipID, ok := mock.SegmentID("VIP Customers")
	require.True(t, ok)
	assert.True(t, mock.IsMember(vipID, *res.TargetContactID))
}

func TestSyncContactResyncAddsOneSegment(t *testing.T) {
	svc, store, mock := newTestService(t, "secret")
	c1 := newContact("a@x.com", "vip")
	store.put(c1)

	first, err := svc.SyncContact(context.Background(), c1.ID)
	require.NoError(t, err)
	st, _ := store.status(c1.ID)
	h1 := *st.SyncHash

	c1.CustomerSegments = []string{"vip", "regular"}
	store.put(c1)
	mock.ResetCalls()

	res, err := svc.SyncContact(context.Background(), c1.ID)
	require.NoError(t, err)
	assert.Equal(t, contacts.ActionUpdated, res.Action)
	assert.Equal(t, *first.TargetContactID, *res.TargetContactID)

	calls := mock.Calls()
	assert.Equal(t, 1, countSuffix(calls, http.MethodPatch, "/edit"))
	assert.Equal(t, 0, mock.CountCalls(http.MethodPost, "/contacts/new"))
	assert.Equal(t, 1, countSuffix(calls, http.MethodPost, "/add"))
	assert.Equal(t, 0, countSuffix(calls, http.MethodPost, "/remove"))

	regularID, _ := mock.SegmentID("Regular Customers")
	assert.True(t, mock.IsMember(regularID, *res.TargetContactID))

	st, _ = store.status(c1.ID)
	assert.NotEqual(t, h1, *st.SyncHash)
	assert.Equal(t, []string{"regular", "vip"}, st.PreviousSegments)
}

func TestSyncContactUnchangedMakesNoRemoteCalls(t *testing.T) {
	svc, store, mock := newTestService(t, "secret")
	c := newContact("a@x.com", "vip")
	store.put(c)
	store.putStatus(syncedStatus(c, 7))

	res, err := svc.SyncContact(context.Background(), c.ID)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, contacts.ActionSkipped, res.Action)
	assert.Equal(t, "no changes", res.Message)
	assert.Equal(t, int64(7), *res.TargetContactID)

	assert.Empty(t, mock.Calls())
	assert.Zero(t, mock.TokenRequests())
}

func TestSyncContactNotFound(t *testing.T) {
	svc, _, mock := newTestService(t, "secret")

	res, err := svc.SyncContact(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, syncerr.Is(err, syncerr.KindNotFound))
	assert.False(t, res.Success)
	assert.Empty(t, mock.Calls())
}

func TestSyncContactSkipsUnusableEmail(t *testing.T) {
	svc, store, mock := newTestService(t, "secret")
	c := newContact("redacted-42@example.com")
	store.put(c)

	res, err := svc.SyncContact(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, contacts.ActionSkipped, res.Action)
	assert.Empty(t, mock.Calls())
}

func TestSyncContactFailureKeepsLastSuccess(t *testing.T) {
	svc, store, _ := newTestService(t, "secret")
	c := newContact("a@x.com")
	store.put(c)

	stale := "stale"
	missing := int64(999)
	store.putStatus(syncmodels.SyncStatus{CustomerID: c.ID, TargetContactID: &missing, SyncHash: &stale})

	res, err := svc.SyncContact(context.Background(), c.ID)
	require.Error(t, err)
	assert.True(t, syncerr.Is(err, syncerr.KindUpsert))
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)

	st, _ := store.status(c.ID)
	require.NotNil(t, st.SyncError)
	assert.Equal(t, "stale", *st.SyncHash)
	assert.Equal(t, int64(999), *st.TargetContactID)
}

func TestSyncContactRecordsSegmentIndexFailure(t *testing.T) {
	svc, store, mock := newTestService(t, "secret")
	c := newContact("a@x.com", "vip")
	store.put(c)
	mock.FailNext(http.MethodGet, "/segments", 1, http.StatusInternalServerError, `{"error":"down"}`)

	res, err := svc.SyncContact(context.Background(), c.ID)
	require.Error(t, err)
	assert.True(t, syncerr.Is(err, syncerr.KindSegmentIndex))
	assert.False(t, res.Success)
	assert.Zero(t, mock.CountCalls(http.MethodPost, "/contacts/new"))

	st, ok := store.status(c.ID)
	require.True(t, ok)
	require.NotNil(t, st.SyncError)
	assert.Nil(t, st.SyncHash)
}

func TestProcessQueueConsumesEveryEntry(t *testing.T) {
	svc, store, mock := newTestService(t, "secret")

	fresh := newContact("fresh@x.com", "new")
	unchanged := newContact("same@x.com")
	failing := newContact("fail@x.com")
	gone := uuid.New()

	store.put(fresh)
	store.put(unchanged)
	store.put(failing)
	store.putStatus(syncedStatus(unchanged, 3))

	stale := "stale"
	missing := int64(999)
	store.putStatus(syncmodels.SyncStatus{CustomerID: failing.ID, TargetContactID: &missing, SyncHash: &stale})

	base := time.Now().Add(-time.Minute)
	store.enqueue(base, fresh.ID, unchanged.ID, failing.ID, gone, fresh.ID)

	res, err := svc.ProcessQueue(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 4, res.Processed)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, int64(5), res.QueueCleared)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "fail@x.com", res.Errors[0].Email)

	assert.Zero(t, store.queueLen())
	assert.Equal(t, 1, mock.CountCalls(http.MethodPost, "/contacts/new"))

	st, _ := store.status(failing.ID)
	assert.NotNil(t, st.SyncError)
}

func TestProcessQueueConsumesContactWithoutEmail(t *testing.T) {
	svc, store, mock := newTestService(t, "secret")

	ok := newContact("ok@x.com")
	blank := newContact("")
	store.put(ok)
	store.put(blank)
	store.enqueue(time.Now().Add(-time.Minute), blank.ID, ok.ID)

	res, err := svc.ProcessQueue(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, int64(2), res.QueueCleared)
	assert.Zero(t, store.queueLen())
	assert.Equal(t, 1, mock.CountCalls(http.MethodPost, "/contacts/new"))

	_, synced := store.status(blank.ID)
	assert.False(t, synced)

	res, err = svc.ProcessQueue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Processed)
}

func TestProcessQueueKeepsEntriesQueuedLater(t *testing.T) {
	svc, store, _ := newTestService(t, "secret")
	svc.cfg.QueueBatchSize = 1

	c := newContact("a@x.com")
	store.put(c)
	store.enqueue(time.Now().Add(-time.Minute), c.ID)
	store.enqueue(time.Now(), c.ID)

	res, err := svc.ProcessQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.QueueCleared)
	assert.Equal(t, 1, store.queueLen())
}

func TestProcessQueueEmpty(t *testing.T) {
	svc, _, mock := newTestService(t, "secret")

	res, err := svc.ProcessQueue(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Zero(t, res.Processed)
	assert.Empty(t, mock.Calls())
	assert.Zero(t, mock.TokenRequests())
}

func TestProcessQueueAuthFailureKeepsBatch(t *testing.T) {
	svc, store, _ := newTestService(t, "wrong")
	c := newContact("a@x.com")
	store.put(c)
	store.enqueue(time.Now(), c.ID)

	res, err := svc.ProcessQueue(context.Background())
	require.Error(t, err)
	assert.True(t, syncerr.Is(err, syncerr.KindAuth))
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
	assert.Equal(t, 1, store.queueLen())
}

func TestFullSyncIsolatesFailures(t *testing.T) {
	svc, store, mock := newTestService(t, "secret")

	a := newContact("a@x.com", "vip")
	b := newContact("b@x.com")
	c := newContact("c@x.com", "regular")
	for _, contact := range []models.SourceContact{a, b, c} {
		store.put(contact)
	}
	stale := "stale"
	missing := int64(999)
	store.putStatus(syncmodels.SyncStatus{CustomerID: b.ID, TargetContactID: &missing, SyncHash: &stale})

	run, err := svc.FullSync(context.Background())
	require.NoError(t, err)
	assert.True(t, run.Success)
	assert.Equal(t, 3, run.Scanned)
	assert.Equal(t, 2, run.Synced)
	assert.Equal(t, 2, run.Created)
	assert.Equal(t, 1, run.Failed)
	assert.Equal(t, 2, run.SegmentsSynced)
	require.Len(t, run.ErrorDetails, 1)
	assert.Equal(t, "b@x.com", run.ErrorDetails[0].Email)
	assert.Equal(t, 2, mock.ContactCount())

	for _, id := range []uuid.UUID{a.ID, c.ID} {
		st, ok := store.status(id)
		require.True(t, ok)
		assert.Nil(t, st.SyncError)
		assert.NotNil(t, st.TargetContactID)
	}
	st, _ := store.status(b.ID)
	assert.NotNil(t, st.SyncError)

	require.Len(t, store.runs, 1)
	assert.Equal(t, run.ID, store.runs[0].ID)
	assert.False(t, run.RunFinishedAt.Before(run.RunStartedAt))
}

func TestFullSyncOnlyPushesChangedContacts(t *testing.T) {
	svc, store, mock := newTestService(t, "secret")

	var all []models.SourceContact
	for i := 0; i < 1500; i++ {
		c := newContact(fmt.Sprintf("user%d@x.com", i), "regular")
		store.put(c)
		store.putStatus(syncedStatus(c, int64(100000+i)))
		all = append(all, c)
	}

	for _, i := range []int{3, 700, 1499} {
		c := all[i]
		targetID := mock.SeedContact(map[string]any{"email": c.Email})
		st := syncedStatus(c, targetID)
		store.putStatus(st)

		name := "Changed"
		c.FirstName = &name
		store.put(c)
	}

	run, err := svc.FullSync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1500, run.Scanned)
	assert.Equal(t, 3, run.Synced)
	assert.Equal(t, 3, run.Updated)
	assert.Zero(t, run.Failed)
	assert.Equal(t, 2, store.listContactsCalls)

	assert.Equal(t, 3, upsertCalls(mock))
	assert.Equal(t, 0, mock.CountCalls(http.MethodPost, "/contacts/new"))
}

func TestFullSyncExcludesUnusableEmails(t *testing.T) {
	svc, store, mock := newTestService(t, "secret")
	for _, email := range []string{"", "no-at-sign", "deleted_1@x.com", "someone@gone.invalid"} {
		store.put(newContact(email))
	}

	run, err := svc.FullSync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, run.Scanned)
	assert.Zero(t, run.Synced)
	assert.Zero(t, run.Failed)
	assert.Empty(t, mock.Calls())
}

func TestFullSyncPausesBetweenGroups(t *testing.T) {
	svc, store, _ := newTestService(t, "secret")
	svc.cfg.Concurrency = 2
	svc.cfg.PauseEvery = 5
	svc.cfg.Pause = time.Second

	var mu sync.Mutex
	pauses := 0
	svc.SetSleep(func(_ context.Context, d time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, time.Second, d)
		pauses++
		return nil
	})

	for i := 0; i < 45; i++ {
		store.put(newContact(fmt.Sprintf("p%d@x.com", i)))
	}

	run, err := svc.FullSync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 45, run.Created)
	// 23 groups, paused after groups 5, 10, 15 and 20.
	assert.Equal(t, 4, pauses)
}

func TestFullSyncAbortsOnAuthFailure(t *testing.T) {
	svc, store, mock := newTestService(t, "wrong")
	store.put(newContact("a@x.com"))

	run, err := svc.FullSync(context.Background())
	require.Error(t, err)
	assert.True(t, syncerr.Is(err, syncerr.KindAuth))
	assert.False(t, run.Success)
	assert.NotEmpty(t, run.Error)
	assert.Equal(t, 1, run.Scanned)
	assert.Empty(t, mock.Calls())

	require.Len(t, store.runs, 1)
	assert.Equal(t, run.Error, store.runs[0].Error)
}

func TestFullSyncAbortsOnSourceFailure(t *testing.T) {
	svc, store, _ := newTestService(t, "secret")
	store.listErr = syncerr.E(syncerr.KindFetch, "list contacts", errors.New("connection refused"))

	run, err := svc.FullSync(context.Background())
	require.Error(t, err)
	assert.True(t, syncerr.Is(err, syncerr.KindFetch))
	assert.False(t, run.Success)
	require.Len(t, store.runs, 1)
}

func TestFullSyncRejectsOverlappingRun(t *testing.T) {
	svc, store, _ := newTestService(t, "secret")
	store.put(newContact("a@x.com"))

	entered := make(chan struct{})
	release := make(chan struct{})
	svc.cfg.Concurrency = 1
	svc.cfg.PauseEvery = 1
	svc.SetSleep(func(context.Context, time.Duration) error {
		close(entered)
		<-release
		return nil
	})
	store.put(newContact("b@x.com"))

	done := make(chan error, 1)
	go func() {
		_, err := svc.FullSync(context.Background())
		done <- err
	}()
	<-entered

	_, err := svc.FullSync(context.Background())
	assert.ErrorIs(t, err, ErrFullSyncRunning)

	close(release)
	require.NoError(t, <-done)
	assert.Len(t, store.runs, 1)
}

func TestUsableEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"a@x.com", true},
		{" A@X.COM ", true},
		{"", false},
		{"plain", false},
		{"@x.com", false},
		{"a@", false},
		{"redacted@x.com", false},
		{"Deleted-user@x.com", false},
		{"a@deleted.invalid", false},
		{"deletedness@x.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.want, UsableEmail(tt.email))
		})
	}
}
