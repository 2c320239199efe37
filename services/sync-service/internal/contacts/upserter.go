// Package contacts writes one source contact into the marketing system,
// creating or updating the remote record without ever creating a second
// record for the same email.
package contacts

import (
	"context"
	"errors"
	"fmt"

	"github.com/stoik/contactsync/internal/models"
	"github.com/stoik/contactsync/services/sync-service/internal/logging"
	"github.com/stoik/contactsync/services/sync-service/internal/mapping"
	syncmodels "github.com/stoik/contactsync/services/sync-service/internal/models"
	"github.com/stoik/contactsync/services/sync-service/internal/syncerr"
	"github.com/stoik/contactsync/services/sync-service/internal/target"
)

// Action is what a sync did with a contact.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionSkipped Action = "skipped"
)

// Result identifies the remote record a contact was written to.
type Result struct {
	TargetContactID int64
	Action          Action
}

// Upserter creates or updates contacts in the target.
type Upserter struct {
	api target.API
}

// NewUpserter creates an upserter.
func NewUpserter(api target.API) *Upserter {
	return &Upserter{api: api}
}

// Upsert writes fields for contact. With a known remote id it updates that
// record, falling back to an email lookup when the target reports the email
// as taken by another record. Without a known id it looks the email up
// before creating. Failures carry syncerr.KindUpsert.
func (u *Upserter) Upsert(ctx context.Context, contact models.SourceContact, fields mapping.Fields, status *syncmodels.SyncStatus) (Result, error) {
	email, _ := fields["email"].(string)
	if email == "" {
		return Result{}, syncerr.E(syncerr.KindUpsert, "upsert contact", errors.New("contact has no email"))
	}

	if status != nil && status.TargetContactID != nil && *status.TargetContactID > 0 {
		id := *status.TargetContactID
		err := u.api.UpdateContact(ctx, id, fields)
		if err == nil {
			return Result{TargetContactID: id, Action: ActionUpdated}, nil
		}
		if !target.IsDuplicateEmail(err) {
			return Result{}, syncerr.E(syncerr.KindUpsert, "update contact", err)
		}

		logging.Warn().
			Str("customer_id", contact.ID.String()).
			Int64("target_contact_id", id).
			Msg("stored contact id conflicts on email, resolving by search")
		return u.resolveDuplicate(ctx, email, fields)
	}

	ids, err := u.api.SearchContactsByEmail(ctx, email)
	if err != nil {
		return Result{}, syncerr.E(syncerr.KindUpsert, "search contact", err)
	}
	if len(ids) > 0 {
		id := lowest(ids)
		if err := u.api.UpdateContact(ctx, id, fields); err != nil {
			return Result{}, syncerr.E(syncerr.KindUpsert, "update contact", err)
		}
		return Result{TargetContactID: id, Action: ActionUpdated}, nil
	}

	id, err := u.api.CreateContact(ctx, fields)
	if err != nil {
		if target.IsDuplicateEmail(err) {
			// Someone created it between our search and create.
			return u.resolveDuplicate(ctx, email, fields)
		}
		return Result{}, syncerr.E(syncerr.KindUpsert, "create contact", err)
	}
	return Result{TargetContactID: id, Action: ActionCreated}, nil
}

// resolveDuplicate updates the lowest-id record holding email.
func (u *Upserter) resolveDuplicate(ctx context.Context, email string, fields mapping.Fields) (Result, error) {
	ids, err := u.api.SearchContactsByEmail(ctx, email)
	if err != nil {
		return Result{}, syncerr.E(syncerr.KindUpsert, "resolve duplicate email", err)
	}
	if len(ids) == 0 {
		return Result{}, syncerr.E(syncerr.KindUpsert, "resolve duplicate email",
			fmt.Errorf("target reported %s as taken but search found no contact", email))
	}

	id := lowest(ids)
	if err := u.api.UpdateContact(ctx, id, fields); err != nil {
		return Result{}, syncerr.E(syncerr.KindUpsert, "update canonical contact", err)
	}
	return Result{TargetContactID: id, Action: ActionUpdated}, nil
}

func lowest(ids []int64) int64 {
	min := ids[0]
	for _, id := range ids[1:] {
		if id < min {
			min = id
		}
	}
	return min
}
