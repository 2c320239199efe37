package segments

import (
	"context"
	"sort"

	"github.com/stoik/contactsync/services/sync-service/internal/logging"
	"github.com/stoik/contactsync/services/sync-service/internal/metrics"
	"github.com/stoik/contactsync/services/sync-service/internal/syncerr"
	"github.com/stoik/contactsync/services/sync-service/internal/target"
)

// DiffResult counts the membership calls made for one contact.
type DiffResult struct {
	Added   int
	Removed int
	Failed  int
	Errors  []error
}

// Diff returns current minus previous and previous minus current, sorted.
func Diff(current, previous []string) (toAdd, toRemove []string) {
	cur := toSet(current)
	prev := toSet(previous)

	for _, s := range sortedKeys(cur) {
		if !prev[s] {
			toAdd = append(toAdd, s)
		}
	}
	for _, s := range sortedKeys(prev) {
		if !cur[s] {
			toRemove = append(toRemove, s)
		}
	}
	return toAdd, toRemove
}

// Differ applies segment membership changes for a contact.
type Differ struct {
	api     target.API
	catalog Catalog
}

// NewDiffer creates a differ restricted to catalog slugs.
func NewDiffer(api target.API, catalog Catalog) *Differ {
	return &Differ{api: api, catalog: catalog}
}

// Apply adds the contact to segments it joined and removes it from segments
// it left since previous. Unchanged segments cost no calls. Slugs missing
// from the catalog or index are ignored. Call failures are logged and
// counted, never returned.
func (d *Differ) Apply(ctx context.Context, contactID int64, current, previous []string, index Index) DiffResult {
	var res DiffResult
	toAdd, toRemove := Diff(current, previous)

	for _, slug := range toAdd {
		segmentID, ok := d.resolve(slug, index)
		if !ok {
			continue
		}
		if err := d.api.AddToSegment(ctx, segmentID, contactID); err != nil {
			res.fail(syncerr.E(syncerr.KindSegmentSync, "add to segment "+slug, err), contactID)
			metrics.SegmentCalls.WithLabelValues("add", "failed").Inc()
			continue
		}
		metrics.SegmentCalls.WithLabelValues("add", "ok").Inc()
		res.Added++
	}

	for _, slug := range toRemove {
		segmentID, ok := d.resolve(slug, index)
		if !ok {
			continue
		}
		if err := d.api.RemoveFromSegment(ctx, segmentID, contactID); err != nil {
			res.fail(syncerr.E(syncerr.KindSegmentSync, "remove from segment "+slug, err), contactID)
			metrics.SegmentCalls.WithLabelValues("remove", "failed").Inc()
			continue
		}
		metrics.SegmentCalls.WithLabelValues("remove", "ok").Inc()
		res.Removed++
	}

	return res
}

func (d *Differ) resolve(slug string, index Index) (int64, bool) {
	if _, ok := d.catalog[slug]; !ok {
		return 0, false
	}
	id, ok := index[slug]
	return id, ok && id != 0
}

func (r *DiffResult) fail(err error, contactID int64) {
	logging.Warn().Err(err).Int64("target_contact_id", contactID).Msg("segment membership call failed")
	r.Failed++
	r.Errors = append(r.Errors, err)
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, s := range items {
		if s != "" {
			set[s] = true
		}
	}
	return set
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
