package target

import (
	"context"

	"github.com/stoik/contactsync/internal/models"
)

// API is the subset of the marketing-automation REST API the sync engine uses.
// Non-2xx responses come back as *StatusError; token failures carry
// syncerr.KindAuth.
type API interface {
	// ListSegments returns every segment known to the target.
	ListSegments(ctx context.Context) ([]models.Segment, error)

	// CreateSegment creates a published segment and returns it with its id.
	CreateSegment(ctx context.Context, name, alias string) (models.Segment, error)

	// SearchContactsByEmail returns the ids of contacts holding email, ascending.
	SearchContactsByEmail(ctx context.Context, email string) ([]int64, error)

	CreateContact(ctx context.Context, fields map[string]any) (int64, error)
	UpdateContact(ctx context.Context, id int64, fields map[string]any) error

	AddToSegment(ctx context.Context, segmentID, contactID int64) error
	RemoveFromSegment(ctx context.Context, segmentID, contactID int64) error
}
