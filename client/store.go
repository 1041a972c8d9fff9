// Package client is the device side of note sync: the local note, archive
// and pending-operation stores, the remote API client and the coordinator
// that runs a sync round.
package client

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	recordExt      = ".rec"
	tempFilePrefix = ".tmp-"
)

// ErrExists is returned by Add when a record with the same key is present.
var ErrExists = errors.New("record already exists")

// Record is anything a RecordStore can hold.
type Record interface {
	RecordKey() string
}

// envelope is the on-disk form of a record. Seq preserves insertion order
// across reloads.
type envelope[T any] struct {
	Seq    int64 `msgpack:"seq"`
	Record T     `msgpack:"rec"`
}

type entry[T any] struct {
	seq int64
	rec T
}

// RecordStore keeps records in memory, backed by one msgpack file per
// record under dir. Durable I/O failures are reported as false results
// rather than errors.
type RecordStore[T Record] struct {
	name string
	dir  string

	mu      sync.RWMutex
	loaded  bool
	items   map[string]entry[T]
	nextSeq int64

	onWrite func(path string)
}

// NewRecordStore creates a store over dir. Nothing is read until Load.
func NewRecordStore[T Record](name, dir string) *RecordStore[T] {
	return &RecordStore[T]{
		name:  name,
		dir:   dir,
		items: map[string]entry[T]{},
	}
}

// Name is the store's label in logs.
func (s *RecordStore[T]) Name() string { return s.name }

// Dir is the backing folder.
func (s *RecordStore[T]) Dir() string { return s.dir }

// SetWriteHook registers fn to be told about every path this store is
// about to write or remove.
func (s *RecordStore[T]) SetWriteHook(fn func(path string)) {
	s.mu.Lock()
	s.onWrite = fn
	s.mu.Unlock()
}

func (s *RecordStore[T]) pathFor(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+recordExt)
}

// Load reads the backing folder the first time it is called. Later calls
// are no-ops.
func (s *RecordStore[T]) Load() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return true
	}
	return s.reloadLocked()
}

// Reload discards the in-memory state and re-reads the backing folder.
func (s *RecordStore[T]) Reload() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reloadLocked()
}

func (s *RecordStore[T]) reloadLocked() bool {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		logger.LogErr(serr.Wrap(err, "failed to create store folder"), "store load failed", "store", s.name)
		return false
	}
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		logger.LogErr(serr.Wrap(err, "failed to read store folder"), "store load failed", "store", s.name)
		return false
	}

	items := make(map[string]entry[T], len(dirEntries))
	var maxSeq int64
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, recordExt) || strings.HasPrefix(name, tempFilePrefix) {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			logger.LogErr(err, "skipping unreadable record", "store", s.name, "file", name)
			continue
		}
		var env envelope[T]
		if err := msgpack.Unmarshal(data, &env); err != nil {
			logger.LogErr(err, "skipping corrupt record", "store", s.name, "file", name)
			continue
		}
		key := env.Record.RecordKey()
		if key == "" {
			logger.Info("Skipping record without key", "store", s.name, "file", name)
			continue
		}

		items[key] = entry[T]{seq: env.Seq, rec: env.Record}
		if env.Seq > maxSeq {
			maxSeq = env.Seq
		}
	}

	s.items = items
	s.nextSeq = maxSeq + 1
	s.loaded = true
	logger.Debug("Store loaded", "store", s.name, "records", len(items))
	return true
}

// writeLocked persists one record atomically: temp file, fsync, rename.
func (s *RecordStore[T]) writeLocked(seq int64, rec T) error {
	data, err := msgpack.Marshal(envelope[T]{Seq: seq, Record: rec})
	if err != nil {
		return serr.Wrap(err, "failed to encode record")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return serr.Wrap(err, "failed to create store folder")
	}

	path := s.pathFor(rec.RecordKey())
	if s.onWrite != nil {
		s.onWrite(path)
	}
	return writeFileAtomic(path, data, 0o644)
}

func (s *RecordStore[T]) removeLocked(key string) error {
	path := s.pathFor(key)
	if s.onWrite != nil {
		s.onWrite(path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return serr.Wrap(err, "failed to remove record file")
	}
	return nil
}

// Get returns the record with key id.
func (s *RecordStore[T]) Get(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[id]
	return e.rec, ok
}

// Contains reports whether id is present.
func (s *RecordStore[T]) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[id]
	return ok
}

// Len is the number of records in memory.
func (s *RecordStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Add persists rec and then indexes it. Returns ErrExists if the key is
// present. A failed write leaves memory untouched.
func (s *RecordStore[T]) Add(rec T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rec.RecordKey()
	if _, ok := s.items[key]; ok {
		return ErrExists
	}

	seq := s.nextSeq
	if err := s.writeLocked(seq, rec); err != nil {
		return serr.Wrap(err, "failed to add record")
	}
	s.items[key] = entry[T]{seq: seq, rec: rec}
	s.nextSeq++
	return nil
}

// UpdateWith applies fn to a copy of the stored record and persists the
// result. Absent ids are a no-op. Returns false only on I/O failure, in
// which case the stored record is unchanged.
func (s *RecordStore[T]) UpdateWith(id string, fn func(*T)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[id]
	if !ok {
		return true
	}
	rec := e.rec
	fn(&rec)

	if err := s.writeLocked(e.seq, rec); err != nil {
		logger.LogErr(err, "failed to persist record update", "store", s.name, "id", id)
		return false
	}
	s.items[id] = entry[T]{seq: e.seq, rec: rec}
	return true
}

// Remove deletes id from disk and memory. Absent ids are a no-op.
func (s *RecordStore[T]) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return true
	}
	if err := s.removeLocked(id); err != nil {
		logger.LogErr(err, "failed to remove record", "store", s.name, "id", id)
		return false
	}
	delete(s.items, id)
	return true
}

// All returns the records in insertion order.
func (s *RecordStore[T]) All() []T {
	s.mu.RLock()
	entries := make([]entry[T], 0, len(s.items))
	for _, e := range s.items {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	out := make([]T, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.rec)
	}
	return out
}

// Save persists every in-memory record. Returns false if any write failed.
func (s *RecordStore[T]) Save() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok := true
	for key, e := range s.items {
		if err := s.writeLocked(e.seq, e.rec); err != nil {
			logger.LogErr(err, "failed to save record", "store", s.name, "id", key)
			ok = false
		}
	}
	return ok
}

// SaveOne persists a single record, inserting it if it is not yet indexed.
func (s *RecordStore[T]) SaveOne(rec T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rec.RecordKey()
	e, exists := s.items[key]
	seq := e.seq
	if !exists {
		seq = s.nextSeq
	}

	if err := s.writeLocked(seq, rec); err != nil {
		logger.LogErr(err, "failed to save record", "store", s.name, "id", key)
		return false
	}
	s.items[key] = entry[T]{seq: seq, rec: rec}
	if !exists {
		s.nextSeq++
	}
	return true
}

// writeFileAtomic writes data to a temp file in the target's folder and
// renames it into place.
func writeFileAtomic(filename string, data []byte, perm os.FileMode) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(filename), tempFilePrefix+"*")
	if err != nil {
		return serr.Wrap(err, "failed to create temp file")
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return serr.Wrap(err, "failed to write temp file")
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return serr.Wrap(err, "failed to sync temp file")
	}
	if err := tmpFile.Close(); err != nil {
		return serr.Wrap(err, "failed to close temp file")
	}
	if err := os.Chmod(tmpFile.Name(), perm); err != nil {
		return serr.Wrap(err, "failed to chmod temp file")
	}
	if err := os.Rename(tmpFile.Name(), filename); err != nil {
		return serr.Wrap(err, "failed to rename temp file")
	}
	return nil
}
