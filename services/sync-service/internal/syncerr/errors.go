// Package syncerr classifies failures of the contact sync engine so the
// orchestrator can decide whether a failure aborts a run or only the contact
// it belongs to.
package syncerr

import (
	"errors"
	"fmt"
)

// Kind identifies the class of a sync failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindAuth means no access token could be obtained. Fatal to the run.
	KindAuth
	// KindFetch is a source-side read failure.
	KindFetch
	// KindUpsert is a non-duplicate failure writing a contact to the target.
	KindUpsert
	// KindSegmentSync is a failed segment add/remove. Never fails a contact.
	KindSegmentSync
	// KindSegmentIndex means the target segment list could not be resolved.
	KindSegmentIndex
	KindQueueRead
	KindQueueWrite
	KindStatusWrite
	// KindNotFound means the requested source record does not exist.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindFetch:
		return "fetch"
	case KindUpsert:
		return "upsert"
	case KindSegmentSync:
		return "segment_sync"
	case KindSegmentIndex:
		return "segment_index"
	case KindQueueRead:
		return "queue_read"
	case KindQueueWrite:
		return "queue_write"
	case KindStatusWrite:
		return "status_write"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E wraps err with a kind and operation. A nil err stays nil.
func E(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// Is reports whether any classified error in err's chain has the given kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		var se *Error
		if !errors.As(err, &se) {
			return false
		}
		if se.Kind == kind {
			return true
		}
		err = se.Err
	}
	return false
}

// Fatal reports whether err must abort a whole batch rather than a single
// contact.
func Fatal(err error) bool {
	return Is(err, KindAuth) || Is(err, KindSegmentIndex)
}
