package client

import (
	"notesync/syncproto"

	"github.com/rohanthewiz/logger"
)

// NoteStore is a RecordStore of notes with partial-update merge. The live
// notes and the archive are two NoteStores over different folders.
type NoteStore struct {
	*RecordStore[syncproto.Note]
}

func NewNoteStore(name, dir string) *NoteStore {
	return &NoteStore{RecordStore: NewRecordStore[syncproto.Note](name, dir)}
}

// Update merges the set fields of p onto the stored note and persists it.
// Unset fields are left alone. Absent ids are a no-op.
func (s *NoteStore) Update(id string, p syncproto.NotePatch) bool {
	return s.UpdateWith(id, func(n *syncproto.Note) {
		n.Apply(p)
	})
}

// moveNote moves id from one store to the other, bumping its changed date.
// The note is written to the destination before it leaves the source, so a
// failure never loses it.
func moveNote(from, to *NoteStore, id string) (syncproto.Note, bool) {
	note, ok := from.Get(id)
	if !ok {
		return note, false
	}
	note.ChangedDate = syncproto.Next(note.ChangedDate)

	if !to.SaveOne(note) {
		return note, false
	}
	if !from.Remove(id) {
		// Keep the id in exactly one store
		if !to.Remove(id) {
			logger.Info("Note left in both stores after failed move", "id", id,
				"from", from.Name(), "to", to.Name())
		}
		return note, false
	}
	return note, true
}
