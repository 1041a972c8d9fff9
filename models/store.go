package models

import (
	"context"
	"errors"
	"time"

	"notesync/syncproto"
)

// ErrDuplicateNote is returned by Insert when the user already has a
// document with the same id (live or tombstoned).
var ErrDuplicateNote = errors.New("note with this id already exists")

// NoteDoc is the server's authoritative copy of a note. ModifiedAt is the
// instant of the last accepted write and is what reconciliation compares
// against a client's manifest. Deleted marks a tombstone.
type NoteDoc struct {
	syncproto.Note
	UserID     string
	Deleted    bool
	ModifiedAt syncproto.Timestamp
	UpdatedAt  time.Time
}

// UpdateOutcome describes what a conditional update did.
type UpdateOutcome int

const (
	UpdateApplied  UpdateOutcome = iota // stored copy replaced
	UpdateStale                         // stored copy is as new or newer, left alone
	UpdateDeleted                       // stored copy is a tombstone
	UpdateNotFound                      // no document with this id
)

func (o UpdateOutcome) String() string {
	switch o {
	case UpdateApplied:
		return "applied"
	case UpdateStale:
		return "stale"
	case UpdateDeleted:
		return "deleted"
	case UpdateNotFound:
		return "not_found"
	}
	return "unknown"
}

// NoteStore is the per-user document collection behind the sync API.
// Deletes are always soft: they flip the tombstone flag and never remove a
// document.
type NoteStore interface {
	// Insert adds a new document. Returns ErrDuplicateNote if the id exists.
	Insert(ctx context.Context, userID string, note syncproto.Note) error
	// InsertMany adds documents without ordering guarantees, skipping any
	// that fail. Returns how many were inserted.
	InsertMany(ctx context.Context, userID string, notes []syncproto.Note) (int, error)
	// UpdateIfNewer replaces a live document only when its stored
	// modification instant is earlier than note.ChangedDate.
	UpdateIfNewer(ctx context.Context, userID string, note syncproto.Note) (UpdateOutcome, error)
	// SoftDelete tombstones the given ids and returns how many matched.
	SoftDelete(ctx context.Context, userID string, ids []string) (int, error)
	// Restore clears the tombstone and overwrites the body, inserting the
	// document if it does not exist.
	Restore(ctx context.Context, userID string, note syncproto.Note) error
	// List returns the user's documents, tombstones included when asked.
	List(ctx context.Context, userID string, includeDeleted bool) ([]NoteDoc, error)
	// Get returns one document or nil.
	Get(ctx context.Context, userID, id string) (*NoteDoc, error)
	Close() error
}
