package models

import (
	"context"

	"github.com/rohanthewiz/serr"

	"notesync/syncproto"
)

// Reconcile classifies a user's server documents against the manifest a
// client sent. Each manifest id starts out as missing and leaves that bucket
// as soon as it matches a document, so an id lands in at most one bucket.
// All four lists are non-nil.
func Reconcile(docs []NoteDoc, manifest []syncproto.ManifestItem) syncproto.SyncResult {
	known := make(map[string]syncproto.Timestamp, len(manifest))
	missing := make(map[string]struct{}, len(manifest))
	for _, item := range manifest {
		known[item.ID] = item.Date
		missing[item.ID] = struct{}{}
	}

	res := syncproto.SyncResult{
		Added:      []syncproto.Note{},
		Changed:    []syncproto.Note{},
		Deleted:    []syncproto.Note{},
		MissingIDs: []string{},
	}

	for _, doc := range docs {
		clientDate, inManifest := known[doc.ID]
		if inManifest {
			delete(missing, doc.ID)
		}

		switch {
		case inManifest && doc.Deleted:
			res.Deleted = append(res.Deleted, doc.wireNote())
		case inManifest && doc.ModifiedAt.After(clientDate):
			res.Changed = append(res.Changed, doc.wireNote())
		case !inManifest && !doc.Deleted:
			res.Added = append(res.Added, doc.wireNote())
		}
	}

	// Preserve manifest order for the missing ids
	for _, item := range manifest {
		if _, ok := missing[item.ID]; ok {
			res.MissingIDs = append(res.MissingIDs, item.ID)
			delete(missing, item.ID)
		}
	}
	return res
}

// ReconcileForUser runs Reconcile against the active store.
func ReconcileForUser(ctx context.Context, userID string, manifest []syncproto.ManifestItem) (syncproto.SyncResult, error) {
	if store == nil {
		return syncproto.SyncResult{}, serr.New("note store not initialized")
	}
	docs, err := store.List(ctx, userID, true)
	if err != nil {
		return syncproto.SyncResult{}, serr.Wrap(err, "failed to load notes for reconciliation")
	}
	return Reconcile(docs, manifest), nil
}

// wireNote is the note body sent back to clients. The changed date is the
// server's modification instant so the client's next manifest matches it.
func (d NoteDoc) wireNote() syncproto.Note {
	n := d.Note
	n.ChangedDate = d.ModifiedAt
	return n
}
