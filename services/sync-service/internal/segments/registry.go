package segments

import (
	"context"
	"sync"

	"github.com/stoik/contactsync/services/sync-service/internal/logging"
	"github.com/stoik/contactsync/services/sync-service/internal/syncerr"
	"github.com/stoik/contactsync/services/sync-service/internal/target"
)

// Registry makes sure every catalog segment exists in the target.
type Registry struct {
	api     target.API
	catalog Catalog

	// serializes Ensure so two callers never create the same segment
	mu sync.Mutex
}

// NewRegistry creates a registry for catalog.
func NewRegistry(api target.API, catalog Catalog) *Registry {
	return &Registry{api: api, catalog: catalog}
}

// Catalog returns the registry's catalog.
func (r *Registry) Catalog() Catalog {
	return r.catalog
}

// Ensure lists the target's segments, creates any catalog entry that is
// missing and returns the slug to id index. Existence is re-checked on every
// call. A failed create is logged and that slug left out of the index; a
// failed listing is returned as a KindSegmentIndex error.
func (r *Registry) Ensure(ctx context.Context) (Index, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.api.ListSegments(ctx)
	if err != nil {
		return nil, syncerr.E(syncerr.KindSegmentIndex, "list segments", err)
	}

	byName := make(map[string]int64, len(existing))
	for _, seg := range existing {
		byName[seg.Name] = seg.ID
	}

	index := make(Index, len(r.catalog))
	for _, slug := range r.catalog.Slugs() {
		name := r.catalog[slug]
		if id, ok := byName[name]; ok {
			index[slug] = id
			continue
		}

		seg, err := r.api.CreateSegment(ctx, name, slug)
		if err != nil {
			logging.Error().Err(err).Str("segment", name).Msg("failed to create segment")
			continue
		}
		logging.Info().Str("segment", name).Int64("segment_id", seg.ID).Msg("created segment")
		byName[name] = seg.ID
		index[slug] = seg.ID
	}

	return index, nil
}
