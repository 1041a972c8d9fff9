package models

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"

	"notesync/syncproto"
)

// store is the active document store, selected at startup.
var store NoteStore

// Store returns the active document store. Nil until InitDB or InitMongo.
func Store() NoteStore {
	return store
}

// SetStore installs a document store. Used by InitDB/InitMongo and tests.
func SetStore(s NoteStore) {
	store = s
}

// InitDB opens the DuckDB-backed store at path: a disk database for
// durability and an in-memory copy serving reads. A background worker
// rebuilds the cache if a cache write ever fails.
func InitDB(path string) error {
	s, err := openDuckStore(path)
	if err != nil {
		return err
	}
	s.startResyncWorker(5 * time.Minute)
	store = s
	return nil
}

// InitTestDB opens a DuckDB store without the resync worker.
func InitTestDB(path string) error {
	s, err := openDuckStore(path)
	if err != nil {
		return err
	}
	store = s
	return nil
}

// CloseDB closes the active store.
func CloseDB() {
	if store == nil {
		return
	}
	if err := store.Close(); err != nil {
		logger.LogErr(err, "failed to close note store")
	}
	store = nil
}

// duckStore writes through to disk first, then to the in-memory cache.
type duckStore struct {
	diskDB  *sql.DB
	cacheDB *sql.DB
	mu      sync.RWMutex

	dirtyMu sync.Mutex
	dirty   bool
	stop    chan struct{}
}

func openDuckStore(path string) (*duckStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, serr.Wrap(err, "failed to create database directory")
		}
	}

	diskDB, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, serr.Wrap(err, "failed to open disk database")
	}

	// Empty DSN gives an in-memory database
	cacheDB, err := sql.Open("duckdb", "")
	if err != nil {
		diskDB.Close()
		return nil, serr.Wrap(err, "failed to open memory database")
	}
	// One connection so every query sees the same in-memory database
	cacheDB.SetMaxOpenConns(1)

	s := &duckStore{diskDB: diskDB, cacheDB: cacheDB, stop: make(chan struct{})}

	if err := migrateDB(diskDB); err != nil {
		s.closeDBs()
		return nil, serr.Wrap(err, "disk migration failed")
	}
	if err := migrateDB(cacheDB); err != nil {
		s.closeDBs()
		return nil, serr.Wrap(err, "memory migration failed")
	}

	if err := s.loadCache(); err != nil {
		s.closeDBs()
		return nil, serr.Wrap(err, "failed to sync data to memory")
	}

	logger.Info("Note store opened", "backend", "duckdb", "path", path)
	return s, nil
}

func (s *duckStore) closeDBs() {
	s.cacheDB.Close()
	s.diskDB.Close()
}

func (s *duckStore) Close() error {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	cacheErr := s.cacheDB.Close()
	if err := s.diskDB.Close(); err != nil {
		return serr.Wrap(err, "failed to close disk database")
	}
	if cacheErr != nil {
		return serr.Wrap(cacheErr, "failed to close memory database")
	}
	return nil
}

// loadCache copies every row from disk into the memory database.
func (s *duckStore) loadCache() error {
	rows, err := s.diskDB.Query(`SELECT ` + noteColumns + ` FROM notes`)
	if err != nil {
		return serr.Wrap(err, "failed to read notes from disk")
	}
	defer rows.Close()

	copied := 0
	for rows.Next() {
		doc, err := scanNoteDoc(rows)
		if err != nil {
			logger.LogErr(err, "failed to scan note during cache load")
			continue
		}
		if _, err := s.cacheDB.Exec(insertNoteSQL, insertArgs(doc)...); err != nil {
			logger.LogErr(err, "failed to copy note into cache", "user", doc.UserID, "id", doc.ID)
			continue
		}
		copied++
	}
	if err := rows.Err(); err != nil {
		return serr.Wrap(err, "failed iterating notes on disk")
	}

	logger.Debug("Loaded note cache from disk", "count", copied)
	return nil
}

// writeThrough runs a statement on disk, then mirrors it into the cache.
// The disk result is authoritative.
func (s *duckStore) writeThrough(ctx context.Context, query string, args ...any) (sql.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.diskDB.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	if _, err := s.cacheDB.ExecContext(ctx, query, args...); err != nil {
		logger.LogErr(err, "failed to update memory cache")
		s.markDirty()
	}
	return res, nil
}

// readRows queries the cache, falling back to disk.
func (s *duckStore) readRows(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.cacheDB.QueryContext(ctx, query, args...)
	if err != nil {
		logger.LogErr(err, "cache read failed, falling back to disk")
		return s.diskDB.QueryContext(ctx, query, args...)
	}
	return rows, nil
}

func (s *duckStore) markDirty() {
	s.dirtyMu.Lock()
	s.dirty = true
	s.dirtyMu.Unlock()
}

func (s *duckStore) takeDirty() bool {
	s.dirtyMu.Lock()
	defer s.dirtyMu.Unlock()
	d := s.dirty
	s.dirty = false
	return d
}

func (s *duckStore) startResyncWorker(every time.Duration) {
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				if s.takeDirty() {
					logger.Info("Cache marked dirty, resyncing...")
					if err := s.resyncCache(); err != nil {
						logger.LogErr(err, "failed to resync cache")
						s.markDirty()
					}
				}
			}
		}
	}()
}

// resyncCache rebuilds the memory database from disk.
func (s *duckStore) resyncCache() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.cacheDB.Exec(`DELETE FROM notes`); err != nil {
		return serr.Wrap(err, "failed to clear memory cache")
	}
	return s.loadCache()
}

const noteColumns = `user_id, guid, title, content, color_category, is_important,
	changed_at, attachment_file, deleted, updated_at`

const insertNoteSQL = `INSERT INTO notes (` + noteColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func insertArgs(d NoteDoc) []any {
	var att sql.NullString
	if d.AttachmentFile != nil {
		att = sql.NullString{String: *d.AttachmentFile, Valid: true}
	}
	return []any{d.UserID, d.ID, d.Title, d.Content, string(d.ColorCategory.Normalize()),
		d.IsImportant, int64(d.ModifiedAt), att, d.Deleted, d.UpdatedAt}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNoteDoc(r rowScanner) (NoteDoc, error) {
	var (
		d       NoteDoc
		color   string
		changed int64
		att     sql.NullString
	)
	err := r.Scan(&d.UserID, &d.ID, &d.Title, &d.Content, &color, &d.IsImportant,
		&changed, &att, &d.Deleted, &d.UpdatedAt)
	if err != nil {
		return d, serr.Wrap(err, "failed to scan note")
	}
	d.ColorCategory = syncproto.ColorCategory(color).Normalize()
	d.ModifiedAt = syncproto.Timestamp(changed)
	d.ChangedDate = d.ModifiedAt
	if att.Valid {
		d.AttachmentFile = &att.String
	}
	return d, nil
}

func (s *duckStore) Insert(ctx context.Context, userID string, note syncproto.Note) error {
	existing, err := s.Get(ctx, userID, note.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrDuplicateNote
	}

	doc := NoteDoc{Note: note, UserID: userID, ModifiedAt: note.ChangedDate, UpdatedAt: time.Now().UTC()}
	if _, err := s.writeThrough(ctx, insertNoteSQL, insertArgs(doc)...); err != nil {
		if isConstraintErr(err) {
			return ErrDuplicateNote
		}
		return serr.Wrap(err, "failed to insert note")
	}
	return nil
}

func (s *duckStore) InsertMany(ctx context.Context, userID string, notes []syncproto.Note) (int, error) {
	inserted := 0
	for _, n := range notes {
		if err := s.Insert(ctx, userID, n); err != nil {
			// Unordered bulk insert: one failure does not stop the rest
			logger.LogErr(err, "skipping note in bulk insert", "user", userID, "id", n.ID)
			continue
		}
		inserted++
	}
	return inserted, nil
}

func (s *duckStore) UpdateIfNewer(ctx context.Context, userID string, note syncproto.Note) (UpdateOutcome, error) {
	var att sql.NullString
	if note.AttachmentFile != nil {
		att = sql.NullString{String: *note.AttachmentFile, Valid: true}
	}

	res, err := s.writeThrough(ctx, `
		UPDATE notes
		SET title = ?, content = ?, color_category = ?, is_important = ?,
		    changed_at = ?, attachment_file = ?, updated_at = ?
		WHERE user_id = ? AND guid = ? AND deleted = false AND changed_at < ?`,
		note.Title, note.Content, string(note.ColorCategory.Normalize()), note.IsImportant,
		int64(note.ChangedDate), att, time.Now().UTC(),
		userID, note.ID, int64(note.ChangedDate),
	)
	if err != nil {
		return UpdateNotFound, serr.Wrap(err, "failed to update note")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return UpdateNotFound, serr.Wrap(err, "failed to read rows affected")
	}
	if affected > 0 {
		return UpdateApplied, nil
	}

	return classifyMissedUpdate(ctx, s, userID, note.ID)
}

func (s *duckStore) SoftDelete(ctx context.Context, userID string, ids []string) (int, error) {
	deleted := 0
	now := time.Now().UTC()
	for _, id := range ids {
		res, err := s.writeThrough(ctx,
			`UPDATE notes SET deleted = true, updated_at = ? WHERE user_id = ? AND guid = ?`,
			now, userID, id)
		if err != nil {
			logger.LogErr(err, "failed to soft-delete note", "user", userID, "id", id)
			continue
		}
		if n, err := res.RowsAffected(); err == nil {
			deleted += int(n)
		}
	}
	return deleted, nil
}

func (s *duckStore) Restore(ctx context.Context, userID string, note syncproto.Note) error {
	existing, err := s.Get(ctx, userID, note.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return s.Insert(ctx, userID, note)
	}

	var att sql.NullString
	if note.AttachmentFile != nil {
		att = sql.NullString{String: *note.AttachmentFile, Valid: true}
	}
	_, err = s.writeThrough(ctx, `
		UPDATE notes
		SET title = ?, content = ?, color_category = ?, is_important = ?,
		    changed_at = ?, attachment_file = ?, deleted = false, updated_at = ?
		WHERE user_id = ? AND guid = ?`,
		note.Title, note.Content, string(note.ColorCategory.Normalize()), note.IsImportant,
		int64(note.ChangedDate), att, time.Now().UTC(), userID, note.ID,
	)
	if err != nil {
		return serr.Wrap(err, "failed to restore note")
	}
	return nil
}

func (s *duckStore) List(ctx context.Context, userID string, includeDeleted bool) ([]NoteDoc, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE user_id = ?`
	if !includeDeleted {
		query += ` AND deleted = false`
	}
	query += ` ORDER BY changed_at DESC`

	rows, err := s.readRows(ctx, query, userID)
	if err != nil {
		return nil, serr.Wrap(err, "failed to list notes")
	}
	defer rows.Close()

	docs := []NoteDoc{}
	for rows.Next() {
		d, err := scanNoteDoc(rows)
		if err != nil {
			logger.LogErr(err, "skipping unreadable note row", "user", userID)
			continue
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *duckStore) Get(ctx context.Context, userID, id string) (*NoteDoc, error) {
	rows, err := s.readRows(ctx, `SELECT `+noteColumns+` FROM notes WHERE user_id = ? AND guid = ?`, userID, id)
	if err != nil {
		return nil, serr.Wrap(err, "failed to get note")
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	d, err := scanNoteDoc(rows)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// classifyMissedUpdate explains why a conditional update matched nothing.
func classifyMissedUpdate(ctx context.Context, s NoteStore, userID, id string) (UpdateOutcome, error) {
	doc, err := s.Get(ctx, userID, id)
	if err != nil {
		return UpdateNotFound, err
	}
	switch {
	case doc == nil:
		return UpdateNotFound, nil
	case doc.Deleted:
		return UpdateDeleted, nil
	default:
		return UpdateStale, nil
	}
}

// isConstraintErr matches DuckDB's "Constraint Error: Duplicate key ..." text.
func isConstraintErr(err error) bool {
	return strings.Contains(err.Error(), "Constraint Error")
}
