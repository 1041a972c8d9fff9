package client

import (
	"notesync/syncproto"
)

// OpKind is the side effect a pending operation still owes the server.
type OpKind string

const (
	FileUpload   OpKind = "FileUpload"
	FileDownload OpKind = "FileDownload"
	// NoteUpdate: a local edit the server has not acknowledged.
	NoteUpdate OpKind = "NoteUpdate"
	// NoteRestore: a restore from the archive the server has not seen;
	// until it is, the server still holds a tombstone.
	NoteRestore OpKind = "NoteRestore"
)

// PendingOp is one unit of sync debt, keyed by note id and kind.
type PendingOp struct {
	ResourceID string              `msgpack:"id"`
	Kind       OpKind              `msgpack:"kind"`
	File       string              `msgpack:"file"`
	Changed    syncproto.Timestamp `msgpack:"changed"` // note version the op covers
	Attempts   int                 `msgpack:"attempts"`
	QueuedAt   syncproto.Timestamp `msgpack:"queued"`
}

func (o PendingOp) RecordKey() string {
	return string(o.Kind) + "-" + o.ResourceID
}

// PendingLog is the durable retry queue for side effects the server has
// not acknowledged yet.
type PendingLog struct {
	*RecordStore[PendingOp]
}

func NewPendingLog(dir string) *PendingLog {
	return &PendingLog{RecordStore: NewRecordStore[PendingOp]("pending-ops", dir)}
}

// Enqueue records op, or bumps the attempt count if it is already queued.
func (l *PendingLog) Enqueue(op PendingOp) bool {
	if existing, ok := l.Get(op.RecordKey()); ok {
		existing.Attempts++
		if op.File != "" {
			existing.File = op.File
		}
		if op.Changed.After(existing.Changed) {
			existing.Changed = op.Changed
		}
		return l.SaveOne(existing)
	}
	op.Attempts = 1
	if op.QueuedAt.IsZero() {
		op.QueuedAt = syncproto.Now()
	}
	return l.SaveOne(op)
}

// Resolve drops a completed operation.
func (l *PendingLog) Resolve(op PendingOp) bool {
	return l.Remove(op.RecordKey())
}

// Settle drops op unless the queued entry covers a newer note version than
// op does, which means a later change still owes the server.
func (l *PendingLog) Settle(op PendingOp) bool {
	existing, ok := l.Get(op.RecordKey())
	if !ok {
		return true
	}
	if existing.Changed.After(op.Changed) {
		return true
	}
	return l.Remove(op.RecordKey())
}
