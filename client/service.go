package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"notesync/syncproto"

	"github.com/google/uuid"
	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

var (
	ErrEmptyNote    = errors.New("note has no title, content or attachment")
	ErrNoteNotFound = errors.New("note not found")
)

// DataService is the note CRUD surface for a device. Every mutation is
// made locally first under the store lock, then mirrored to the server on
// a best-effort basis. New notes the server misses come back as missing ids
// on the next sync round; edits and restores are recorded in the pending
// log until the server acknowledges them.
type DataService struct {
	session  *Session
	remote   Remote
	online   bool
	lockWait time.Duration

	mu      sync.Mutex
	notices []string
}

func NewDataService(session *Session, remote Remote, syncEnabled bool) *DataService {
	return &DataService{
		session:  session,
		remote:   remote,
		online:   syncEnabled && remote != nil,
		lockWait: defaultLockWait,
	}
}

// withStores runs fn holding the store lock on freshly prepared stores.
func (d *DataService) withStores(ctx context.Context, fn func() error) error {
	lockCtx, cancel := context.WithTimeout(ctx, d.lockWait)
	release, err := d.session.Lock(lockCtx)
	cancel()
	if err != nil {
		return err
	}
	defer release()

	if !d.session.Prepare() {
		return serr.New("failed to load local stores")
	}
	return fn()
}

func (d *DataService) notify(msg string) {
	d.mu.Lock()
	d.notices = append(d.notices, msg)
	d.mu.Unlock()
}

// TakeNotices returns and clears the user-visible notices raised since the
// last call.
func (d *DataService) TakeNotices() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.notices
	d.notices = nil
	return out
}

// ImportAttachment copies a file into the local attachments folder under
// a generated name and returns that name.
func (d *DataService) ImportAttachment(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", serr.Wrap(err, "failed to read attachment")
	}
	name := uuid.NewString() + strings.ToLower(filepath.Ext(path))
	if err := d.session.WriteAttachment(name, data); err != nil {
		return "", err
	}
	return name, nil
}

// CreateNote stores a new note with a fresh id. attachPath, if set, is
// copied into the local attachments folder under a generated name.
func (d *DataService) CreateNote(ctx context.Context, draft syncproto.Note, attachPath string) (syncproto.Note, error) {
	note := draft
	note.ID = uuid.NewString()
	note.ColorCategory = note.ColorCategory.Normalize()
	note.AttachmentFile = nil

	if attachPath != "" {
		name, err := d.ImportAttachment(attachPath)
		if err != nil {
			return note, err
		}
		note.AttachmentFile = &name
	}

	if note.IsEmpty() {
		return note, ErrEmptyNote
	}
	if !note.ColorCategory.Valid() {
		return note, serr.New("invalid color category: " + string(note.ColorCategory))
	}

	err := d.withStores(ctx, func() error {
		note.ChangedDate = syncproto.Now()
		return d.session.Notes.Add(note)
	})
	if err != nil {
		if note.AttachmentFile != nil {
			_ = d.session.RemoveAttachment(*note.AttachmentFile)
		}
		return note, err
	}
	logger.Info("Note created", "id", note.ID)

	if d.online {
		if err := d.remote.Add(ctx, note); err != nil {
			logger.LogErr(err, "note add deferred to next sync", "id", note.ID)
		}
		uploadAttachment(ctx, d.session, d.remote, note)
	}
	return note, nil
}

// EditNote merges patch onto a live note and bumps its changed date past
// the previous one. If the server reports the note deleted, the local copy
// is archived and a notice is raised.
func (d *DataService) EditNote(ctx context.Context, id string, patch syncproto.NotePatch) (syncproto.Note, error) {
	var edited syncproto.Note

	err := d.withStores(ctx, func() error {
		current, ok := d.session.Notes.Get(id)
		if !ok {
			return ErrNoteNotFound
		}
		edited = current
		edited.Apply(patch)
		if edited.IsEmpty() {
			return ErrEmptyNote
		}
		if !edited.ColorCategory.Valid() {
			return serr.New("invalid color category: " + string(edited.ColorCategory))
		}

		changed := syncproto.Next(current.ChangedDate)
		patch.ChangedDate = &changed
		edited.ChangedDate = changed
		if !d.session.Notes.Update(id, patch) {
			return serr.New("failed to save note")
		}
		// The edit is owed to the server until acknowledged
		if !d.session.Pending.Enqueue(PendingOp{ResourceID: id, Kind: NoteUpdate, Changed: changed}) {
			logger.Info("Could not record pending update", "id", id)
		}
		return nil
	})
	if err != nil {
		return edited, err
	}
	logger.Info("Note edited", "id", id)

	if !d.online {
		return edited, nil
	}

	op := PendingOp{ResourceID: id, Kind: NoteUpdate, Changed: edited.ChangedDate}
	msg, err := d.remote.Update(ctx, edited)
	switch {
	case err != nil:
		logger.LogErr(err, "note update deferred to next sync", "id", id)
	case msg == syncproto.MsgDeleted:
		d.archiveDeletedElsewhere(ctx, edited)
		d.settle(ctx, op)
	case msg == syncproto.MsgNotFound:
		if err := d.remote.Add(ctx, edited); err != nil {
			logger.LogErr(err, "note add deferred to next sync", "id", id)
		} else {
			d.settle(ctx, op)
		}
	default:
		d.settle(ctx, op)
	}
	if patch.AttachmentFile != nil {
		uploadAttachment(ctx, d.session, d.remote, edited)
	}
	return edited, nil
}

func (d *DataService) archiveDeletedElsewhere(ctx context.Context, n syncproto.Note) {
	err := d.withStores(ctx, func() error {
		if _, ok := moveNote(d.session.Notes, d.session.Archive, n.ID); !ok {
			return serr.New("failed to archive note")
		}
		return nil
	})
	if err != nil {
		logger.LogErr(err, "could not archive note deleted on the server", "id", n.ID)
		return
	}
	title := n.Title
	if title == "" {
		title = n.ID
	}
	d.notify(fmt.Sprintf("%q was deleted on another device and has been moved to the archive", title))
}

// ArchiveNote soft-deletes a live note.
func (d *DataService) ArchiveNote(ctx context.Context, id string) error {
	err := d.withStores(ctx, func() error {
		if !d.session.Notes.Contains(id) {
			return ErrNoteNotFound
		}
		if _, ok := moveNote(d.session.Notes, d.session.Archive, id); !ok {
			return serr.New("failed to archive note")
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info("Note archived", "id", id)

	if d.online {
		if err := d.remote.Delete(ctx, id); err != nil {
			logger.LogErr(err, "server delete deferred to next sync", "id", id)
		}
	}
	return nil
}

// RestoreNote brings an archived note back to the live store.
func (d *DataService) RestoreNote(ctx context.Context, id string) (syncproto.Note, error) {
	var restored syncproto.Note
	err := d.withStores(ctx, func() error {
		if !d.session.Archive.Contains(id) {
			return ErrNoteNotFound
		}
		n, ok := moveNote(d.session.Archive, d.session.Notes, id)
		if !ok {
			return serr.New("failed to restore note")
		}
		restored = n
		if !d.session.Pending.Enqueue(PendingOp{ResourceID: id, Kind: NoteRestore, Changed: n.ChangedDate}) {
			logger.Info("Could not record pending restore", "id", id)
		}
		return nil
	})
	if err != nil {
		return restored, err
	}
	logger.Info("Note restored", "id", id)

	if d.online {
		if err := d.remote.Restore(ctx, restored); err != nil {
			logger.LogErr(err, "server restore deferred to next sync", "id", id)
		} else {
			d.settle(ctx, PendingOp{ResourceID: id, Kind: NoteRestore, Changed: restored.ChangedDate})
		}
	}
	return restored, nil
}

// settle clears a pending op the server has now acknowledged.
func (d *DataService) settle(ctx context.Context, op PendingOp) {
	err := d.withStores(ctx, func() error {
		if !d.session.Pending.Settle(op) {
			return serr.New("failed to clear pending op")
		}
		return nil
	})
	if err != nil {
		logger.LogErr(err, "pending op left for the next sync", "kind", string(op.Kind), "id", op.ResourceID)
	}
}

// PurgeArchive permanently removes every archived note and its local
// attachment. The server keeps its tombstones.
func (d *DataService) PurgeArchive(ctx context.Context) (int, error) {
	purged := 0
	err := d.withStores(ctx, func() error {
		for _, n := range d.session.Archive.All() {
			if !d.session.Archive.Remove(n.ID) {
				return serr.New("failed to purge archived note " + n.ID)
			}
			purged++
			if n.HasAttachment() {
				if err := d.session.RemoveAttachment(*n.AttachmentFile); err != nil {
					logger.LogErr(err, "failed to remove purged attachment", "id", n.ID)
				}
			}
		}
		return nil
	})
	return purged, err
}

// ListNotes returns live notes in display order.
func (d *DataService) ListNotes(ctx context.Context) ([]syncproto.Note, error) {
	return d.list(ctx, d.session.Notes)
}

// ListArchive returns archived notes in display order.
func (d *DataService) ListArchive(ctx context.Context) ([]syncproto.Note, error) {
	return d.list(ctx, d.session.Archive)
}

func (d *DataService) list(ctx context.Context, st *NoteStore) ([]syncproto.Note, error) {
	var notes []syncproto.Note
	err := d.withStores(ctx, func() error {
		notes = st.All()
		return nil
	})
	syncproto.SortNotes(notes)
	return notes, err
}
