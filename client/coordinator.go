package client

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"notesync/syncproto"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// SyncResult is the outcome of one sync round.
type SyncResult int

const (
	// SyncNop: sync is switched off. Nothing was touched.
	SyncNop SyncResult = iota
	// SyncFailed: the server could not be reached or refused the round.
	// Local state is as it was.
	SyncFailed
	// SyncUnchanged: the round succeeded and nothing local had to change.
	SyncUnchanged
	// SyncSuccess: the round changed at least one local store.
	SyncSuccess
)

func (r SyncResult) String() string {
	switch r {
	case SyncNop:
		return "Nop"
	case SyncFailed:
		return "Failed"
	case SyncUnchanged:
		return "Unchanged"
	case SyncSuccess:
		return "Success"
	}
	return "Unknown"
}

// SyncReport counts what the last round did.
type SyncReport struct {
	Result        SyncResult
	Changed       int
	Added         int
	Archived      int
	Pushed        int
	ForcedDeletes int
	PendingDone   int
	// Notices are user-facing messages, raised when a pending edit met a
	// note deleted on another device.
	Notices []string
	At      time.Time
}

// bulkPushThreshold is the number of missing notes from which a round
// pushes them with one addrange call instead of one add per note.
const bulkPushThreshold = 8

// defaultLockWait bounds how long a round waits for another process to
// release the stores.
const defaultLockWait = 10 * time.Second

// Coordinator runs sync rounds for one session. Rounds never overlap: a
// round started while another is in flight on the same coordinator fails
// immediately, and the session's file lock keeps other processes out.
type Coordinator struct {
	session  *Session
	remote   Remote
	enabled  bool
	lockWait time.Duration

	syncMu sync.Mutex
	mu     sync.Mutex
	last   SyncReport
}

func NewCoordinator(session *Session, remote Remote, enabled bool) *Coordinator {
	return &Coordinator{
		session:  session,
		remote:   remote,
		enabled:  enabled && remote != nil,
		lockWait: defaultLockWait,
	}
}

// LastReport returns the counts from the most recent round.
func (c *Coordinator) LastReport() SyncReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// SyncNotes runs one round: send the manifest of local notes, replay the
// pending log, apply the server's diff, push notes the server is missing. It never panics or
// returns an error; every failure is a SyncFailed outcome.
func (c *Coordinator) SyncNotes(ctx context.Context) SyncResult {
	report := c.syncNotes(ctx)
	report.At = time.Now()

	c.mu.Lock()
	c.last = report
	c.mu.Unlock()

	logger.Info("Sync round finished",
		"result", report.Result.String(),
		"changed", report.Changed,
		"added", report.Added,
		"archived", report.Archived,
		"pushed", report.Pushed,
		"forced_deletes", report.ForcedDeletes,
		"pending_done", report.PendingDone,
	)
	return report.Result
}

func (c *Coordinator) syncNotes(ctx context.Context) SyncReport {
	if !c.enabled {
		return SyncReport{Result: SyncNop}
	}

	if !c.syncMu.TryLock() {
		logger.Info("Sync round already in progress")
		return SyncReport{Result: SyncFailed}
	}
	defer c.syncMu.Unlock()

	lockCtx, cancel := context.WithTimeout(ctx, c.lockWait)
	release, err := c.session.Lock(lockCtx)
	cancel()
	if err != nil {
		logger.LogErr(err, "sync could not take the store lock")
		return SyncReport{Result: SyncFailed}
	}
	defer release()

	s := c.session
	if !s.Prepare() {
		return SyncReport{Result: SyncFailed}
	}

	manifest := syncproto.ManifestOf(s.Notes.All())
	diff, err := c.remote.Sync(ctx, manifest)
	if err != nil {
		logger.LogErr(err, "sync request failed", "manifest", len(manifest))
		return SyncReport{Result: SyncFailed}
	}

	r := &round{
		report:    SyncReport{Result: SyncUnchanged},
		pushed:    map[string]bool{},
		restoring: map[string]bool{},
	}
	c.replayPending(ctx, r)

	var needFiles []syncproto.Note

	// Changed: the server copy is newer than ours
	for _, n := range diff.Changed {
		if !s.Notes.Contains(n.ID) {
			continue
		}
		if !s.Notes.Update(n.ID, syncproto.PatchFrom(n)) {
			continue
		}
		r.mutated = true
		r.report.Changed++
		needFiles = append(needFiles, n)
	}

	// Added: new to us unless this device archived it already
	var forced []string
	for _, n := range diff.Added {
		switch {
		case s.Archive.Contains(n.ID):
			forced = append(forced, n.ID)
		case s.Notes.Contains(n.ID):
		default:
			if err := s.Notes.Add(n); err != nil {
				logger.LogErr(err, "failed to store added note", "id", n.ID)
				continue
			}
			r.mutated = true
			r.report.Added++
			needFiles = append(needFiles, n)
		}
	}

	// Deleted on the server: archive our live copy, unless this device
	// restored it and the server has not caught up yet
	for _, n := range diff.Deleted {
		if !s.Notes.Contains(n.ID) || r.restoring[n.ID] {
			continue
		}
		if _, ok := moveNote(s.Notes, s.Archive, n.ID); ok {
			r.mutated = true
			r.report.Archived++
		}
	}

	// Missing on the server: push our copy, best effort
	var missing []syncproto.Note
	for _, id := range diff.MissingIDs {
		if r.pushed[id] {
			continue
		}
		if note, ok := s.Notes.Get(id); ok {
			missing = append(missing, note)
		}
	}
	c.pushMissing(ctx, r, missing)

	// Archived here but still live on the server
	if len(forced) > 0 {
		for _, id := range forced {
			if s.Notes.Contains(id) && s.Notes.Remove(id) {
				r.mutated = true
			}
		}
		if err := c.remote.DeleteMany(ctx, forced); err != nil {
			logger.LogErr(err, "deferred forced delete", "count", len(forced))
		} else {
			r.report.ForcedDeletes = len(forced)
		}
	}

	for _, n := range needFiles {
		c.downloadAttachment(ctx, n)
	}

	if r.mutated {
		r.report.Result = SyncSuccess
	}
	return r.report
}

// round is the state of one sync round after the manifest round-trip.
type round struct {
	report  SyncReport
	mutated bool
	// pushed holds ids whose full body reached the server during replay
	pushed map[string]bool
	// restoring holds ids restored here that the server may still see as deleted
	restoring map[string]bool
}

// pushMissing sends notes the server has no record of. Large sets go in one
// addrange call; if that fails, or the set is small, notes go one by one.
// Failures are left for the next round, which reports the same ids again.
func (c *Coordinator) pushMissing(ctx context.Context, r *round, notes []syncproto.Note) {
	if len(notes) >= bulkPushThreshold {
		inserted, err := c.remote.AddRange(ctx, notes)
		if err == nil {
			r.report.Pushed += inserted
			for _, n := range notes {
				c.uploadAttachment(ctx, n)
			}
			return
		}
		logger.LogErr(err, "bulk push failed, pushing notes one by one", "count", len(notes))
	}

	for _, note := range notes {
		if err := c.remote.Add(ctx, note); err != nil {
			logger.LogErr(err, "deferred push of missing note", "id", note.ID)
			continue
		}
		r.report.Pushed++
		c.uploadAttachment(ctx, note)
	}
}

// replayPending retries queued side effects: restores first, so an edit
// replayed after them lands on a live server copy, then edits, then
// attachment transfers. Ops for notes that no longer exist locally are
// dropped.
func (c *Coordinator) replayPending(ctx context.Context, r *round) {
	s := c.session
	ops := s.Pending.All()
	sort.SliceStable(ops, func(i, j int) bool {
		return replayRank[ops[i].Kind] < replayRank[ops[j].Kind]
	})

	for _, op := range ops {
		if !s.Notes.Contains(op.ResourceID) && !s.Archive.Contains(op.ResourceID) {
			s.Pending.Resolve(op)
			continue
		}

		var err error
		switch op.Kind {
		case NoteRestore:
			note, ok := s.Notes.Get(op.ResourceID)
			if !ok {
				// Archived again before the server heard of the restore
				s.Pending.Resolve(op)
				continue
			}
			r.restoring[op.ResourceID] = true
			if err = c.remote.Restore(ctx, note); err == nil {
				r.pushed[note.ID] = true
			}
		case NoteUpdate:
			note, ok := s.Notes.Get(op.ResourceID)
			if !ok {
				s.Pending.Resolve(op)
				continue
			}
			err = c.replayUpdate(ctx, r, note)
		case FileUpload:
			if !s.HasAttachmentFile(op.File) {
				s.Pending.Resolve(op)
				continue
			}
			var data []byte
			data, err = s.ReadAttachment(op.File)
			if err == nil {
				err = c.remote.Upload(ctx, op.File, data)
			}
		case FileDownload:
			var data []byte
			data, err = c.remote.Download(ctx, op.File)
			if err == nil {
				err = s.WriteAttachment(op.File, data)
			}
		default:
			logger.Info("Dropping pending op of unknown kind", "kind", string(op.Kind), "id", op.ResourceID)
			s.Pending.Resolve(op)
			continue
		}

		if err != nil {
			logger.LogErr(err, "pending op still failing", "kind", string(op.Kind), "id", op.ResourceID)
			s.Pending.Enqueue(op)
			continue
		}
		if s.Pending.Resolve(op) {
			r.report.PendingDone++
		}
	}
}

var replayRank = map[OpKind]int{
	NoteRestore:  0,
	NoteUpdate:   1,
	FileUpload:   2,
	FileDownload: 3,
}

// replayUpdate pushes a local edit the server has not acknowledged. The
// server's answers are handled as on a live edit: DELETED archives the
// note with a notice, NOT_FOUND re-adds it.
func (c *Coordinator) replayUpdate(ctx context.Context, r *round, note syncproto.Note) error {
	msg, err := c.remote.Update(ctx, note)
	if err != nil {
		return err
	}

	switch msg {
	case syncproto.MsgDeleted:
		if r.restoring[note.ID] {
			// The restore did not land; keep the edit for the next round
			return serr.New("note still deleted on the server", "id", note.ID)
		}
		if _, ok := moveNote(c.session.Notes, c.session.Archive, note.ID); !ok {
			return serr.New("failed to archive note deleted on the server", "id", note.ID)
		}
		r.mutated = true
		r.report.Archived++
		title := note.Title
		if title == "" {
			title = note.ID
		}
		r.report.Notices = append(r.report.Notices,
			fmt.Sprintf("%q was deleted on another device and has been moved to the archive", title))
	case syncproto.MsgNotFound:
		if err := c.remote.Add(ctx, note); err != nil {
			return err
		}
		r.pushed[note.ID] = true
	default:
		r.pushed[note.ID] = true
	}
	return nil
}

// uploadAttachment pushes a note's local attachment, queueing it on failure.
func (c *Coordinator) uploadAttachment(ctx context.Context, n syncproto.Note) {
	uploadAttachment(ctx, c.session, c.remote, n)
}

// downloadAttachment fetches an attachment we do not have yet, queueing it
// on failure.
func (c *Coordinator) downloadAttachment(ctx context.Context, n syncproto.Note) {
	if !n.HasAttachment() || c.session.HasAttachmentFile(*n.AttachmentFile) {
		return
	}
	name := *n.AttachmentFile
	op := PendingOp{ResourceID: n.ID, Kind: FileDownload, File: name}

	data, err := c.remote.Download(ctx, name)
	if err == nil {
		err = c.session.WriteAttachment(name, data)
	}
	if err != nil {
		logger.LogErr(err, "attachment download deferred", "id", n.ID, "file", name)
		c.session.Pending.Enqueue(op)
	}
}

func uploadAttachment(ctx context.Context, s *Session, remote Remote, n syncproto.Note) {
	if !n.HasAttachment() || !s.HasAttachmentFile(*n.AttachmentFile) {
		return
	}
	name := *n.AttachmentFile
	op := PendingOp{ResourceID: n.ID, Kind: FileUpload, File: name}

	data, err := s.ReadAttachment(name)
	if err == nil {
		err = remote.Upload(ctx, name, data)
	}
	if err != nil {
		logger.LogErr(err, "attachment upload deferred", "id", n.ID, "file", name)
		s.Pending.Enqueue(op)
	}
}
