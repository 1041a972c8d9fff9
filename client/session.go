package client

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// Folder names under the session base folder.
const (
	notesFolder       = "notes"
	archiveFolder     = "archive"
	pendingFolder     = "pending-ops"
	attachmentsFolder = "attachments"
	lockFileName      = ".notesync.lock"
)

// Session owns one device's stores and the lock that serializes access to
// them across processes. Each store carries a stale flag that the folder
// watcher sets when another process writes to it; Prepare consumes the
// flags.
type Session struct {
	BaseDir string
	Notes   *NoteStore
	Archive *NoteStore
	Pending *PendingLog

	attachmentDir string
	lock          *FileLock
	own           *ownWrites
	stale         map[string]*atomic.Bool
	watcher       *storeWatcher
}

// OpenSession creates the folder layout under baseDir and starts watching
// it. A watcher that cannot start is logged and the session runs without
// change detection.
func OpenSession(baseDir string) (*Session, error) {
	baseDir = filepath.Clean(baseDir)
	s := &Session{
		BaseDir:       baseDir,
		Notes:         NewNoteStore("notes", filepath.Join(baseDir, notesFolder)),
		Archive:       NewNoteStore("archive", filepath.Join(baseDir, archiveFolder)),
		Pending:       NewPendingLog(filepath.Join(baseDir, pendingFolder)),
		attachmentDir: filepath.Join(baseDir, attachmentsFolder),
		lock:          NewFileLock(filepath.Join(baseDir, lockFileName)),
		own:           newOwnWrites(),
		stale:         map[string]*atomic.Bool{},
	}

	for _, dir := range []string{s.Notes.Dir(), s.Archive.Dir(), s.Pending.Dir(), s.attachmentDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, serr.Wrap(err, "failed to create session folder")
		}
	}

	for _, dir := range []string{s.Notes.Dir(), s.Archive.Dir(), s.Pending.Dir()} {
		s.stale[filepath.Clean(dir)] = &atomic.Bool{}
	}
	s.Notes.SetWriteHook(s.own.record)
	s.Archive.SetWriteHook(s.own.record)
	s.Pending.SetWriteHook(s.own.record)

	w, err := newStoreWatcher(s.own, s.stale)
	if err != nil {
		logger.LogErr(err, "store change detection disabled", "base", baseDir)
	} else {
		s.watcher = w
	}
	return s, nil
}

// Close stops the folder watcher.
func (s *Session) Close() error {
	if s.watcher == nil {
		return nil
	}
	return s.watcher.Close()
}

// Lock takes the cross-process store lock.
func (s *Session) Lock(ctx context.Context) (func(), error) {
	return s.lock.Acquire(ctx)
}

// MarkStale forces the next Prepare to re-read every store.
func (s *Session) MarkStale() {
	for _, flag := range s.stale {
		flag.Store(true)
	}
}

// Prepare makes the stores current: stale stores are reloaded, the rest
// are loaded if they have not been yet.
func (s *Session) Prepare() bool {
	ok := true
	ok = prepareStore(s.Notes.RecordStore, s.stale[filepath.Clean(s.Notes.Dir())]) && ok
	ok = prepareStore(s.Archive.RecordStore, s.stale[filepath.Clean(s.Archive.Dir())]) && ok
	ok = prepareStore(s.Pending.RecordStore, s.stale[filepath.Clean(s.Pending.Dir())]) && ok
	return ok
}

type loader interface {
	Load() bool
	Reload() bool
	Name() string
}

func prepareStore(st loader, stale *atomic.Bool) bool {
	if stale != nil && stale.Swap(false) {
		logger.Debug("Reloading stale store", "store", st.Name())
		if !st.Reload() {
			stale.Store(true)
			return false
		}
		return true
	}
	return st.Load()
}

// AttachmentPath is where an attachment file lives locally.
func (s *Session) AttachmentPath(name string) string {
	return filepath.Join(s.attachmentDir, filepath.Base(name))
}

// HasAttachmentFile reports whether the attachment is present locally.
func (s *Session) HasAttachmentFile(name string) bool {
	_, err := os.Stat(s.AttachmentPath(name))
	return err == nil
}

// ReadAttachment returns the local attachment bytes.
func (s *Session) ReadAttachment(name string) ([]byte, error) {
	data, err := os.ReadFile(s.AttachmentPath(name))
	if err != nil {
		return nil, serr.Wrap(err, "failed to read attachment")
	}
	return data, nil
}

// WriteAttachment stores attachment bytes locally.
func (s *Session) WriteAttachment(name string, data []byte) error {
	return writeFileAtomic(s.AttachmentPath(name), data, 0o644)
}

// RemoveAttachment deletes a local attachment file if present.
func (s *Session) RemoveAttachment(name string) error {
	err := os.Remove(s.AttachmentPath(name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return serr.Wrap(err, "failed to remove attachment")
	}
	return nil
}
