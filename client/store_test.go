package client_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"notesync/client"
	"notesync/syncproto"
)

func newNote(id, title string, changed syncproto.Timestamp) syncproto.Note {
	return syncproto.Note{ID: id, Title: title, Content: "content " + id, ChangedDate: changed}
}

func setupNoteStore(t *testing.T) (*client.NoteStore, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "notes")
	st := client.NewNoteStore("notes", dir)
	if !st.Load() {
		t.Fatal("failed to load empty store")
	}
	return st, dir
}

func TestStoreAddRejectsDuplicate(t *testing.T) {
	st, _ := setupNoteStore(t)

	if err := st.Add(newNote("a", "first", 1)); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := st.Add(newNote("a", "again", 2)); !errors.Is(err, client.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	got, _ := st.Get("a")
	if got.Title != "first" {
		t.Errorf("duplicate add must not overwrite, got %q", got.Title)
	}
}

func TestStoreUpdateIsPartialMerge(t *testing.T) {
	st, dir := setupNoteStore(t)

	att := "img.png"
	n := newNote("a", "title", 1)
	n.ColorCategory = syncproto.ColorRed
	n.AttachmentFile = &att
	if err := st.Add(n); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	content := "only content changes"
	if !st.Update("a", syncproto.NotePatch{Content: &content}) {
		t.Fatal("update failed")
	}

	// Check both memory and disk
	reloaded := client.NewNoteStore("notes", dir)
	reloaded.Load()
	for _, s := range []*client.NoteStore{st, reloaded} {
		got, ok := s.Get("a")
		if !ok {
			t.Fatal("note missing after update")
		}
		if got.Content != content {
			t.Errorf("expected content %q, got %q", content, got.Content)
		}
		if got.Title != "title" || got.ColorCategory != syncproto.ColorRed {
			t.Errorf("unset fields were cleared: %+v", got)
		}
		if got.AttachmentFile == nil || *got.AttachmentFile != att {
			t.Errorf("attachment cleared: %v", got.AttachmentFile)
		}
	}
}

func TestStoreUpdateAbsentIsNoop(t *testing.T) {
	st, _ := setupNoteStore(t)
	title := "x"
	if !st.Update("ghost", syncproto.NotePatch{Title: &title}) {
		t.Fatal("update of absent id should not fail")
	}
	if st.Contains("ghost") {
		t.Error("update must not create notes")
	}
}

func TestStoreInsertionOrderSurvivesReload(t *testing.T) {
	st, dir := setupNoteStore(t)

	for _, id := range []string{"c", "a", "b"} {
		if err := st.Add(newNote(id, id, 1)); err != nil {
			t.Fatalf("add failed: %v", err)
		}
	}
	st.Remove("a")
	if err := st.Add(newNote("d", "d", 1)); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	reloaded := client.NewNoteStore("notes", dir)
	reloaded.Load()
	var ids []string
	for _, n := range reloaded.All() {
		ids = append(ids, n.ID)
	}
	want := []string{"c", "b", "d"}
	if len(ids) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, ids)
		}
	}
}

func TestStoreLoadIsIdempotentReloadIsNot(t *testing.T) {
	st, dir := setupNoteStore(t)
	if err := st.Add(newNote("a", "a", 1)); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	// Another writer adds a record behind our back
	other := client.NewNoteStore("notes", dir)
	other.Load()
	if err := other.Add(newNote("b", "b", 1)); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	st.Load()
	if st.Contains("b") {
		t.Fatal("Load after first load must not re-read")
	}
	if !st.Reload() {
		t.Fatal("reload failed")
	}
	if !st.Contains("b") || !st.Contains("a") {
		t.Fatal("reload should pick up both records")
	}
}

func TestStoreSkipsCorruptRecords(t *testing.T) {
	st, dir := setupNoteStore(t)
	if err := st.Add(newNote("good", "good", 1)); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "bad.rec"), []byte("\xc1\xc1 not msgpack"), 0o644); err != nil {
		t.Fatalf("failed to write corrupt record: %v", err)
	}

	reloaded := client.NewNoteStore("notes", dir)
	if !reloaded.Load() {
		t.Fatal("a corrupt record must not fail the whole load")
	}
	if reloaded.Len() != 1 || !reloaded.Contains("good") {
		t.Fatalf("expected only the good record, got %d", reloaded.Len())
	}
}

func TestStoreRemoveDeletesFile(t *testing.T) {
	st, dir := setupNoteStore(t)
	if err := st.Add(newNote("a", "a", 1)); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if !st.Remove("a") || !st.Remove("never-there") {
		t.Fatal("remove failed")
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("expected empty folder, found %d files", len(entries))
	}
}

func TestStoreSaveAndSaveOne(t *testing.T) {
	st, dir := setupNoteStore(t)

	if !st.SaveOne(newNote("x", "x", 1)) {
		t.Fatal("save one failed")
	}
	if !st.Save() {
		t.Fatal("save failed")
	}

	reloaded := client.NewNoteStore("notes", dir)
	reloaded.Load()
	if !reloaded.Contains("x") {
		t.Fatal("SaveOne should persist a new record")
	}
}

func TestPendingLogEnqueueAndResolve(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pending-ops")
	log := client.NewPendingLog(dir)
	log.Load()

	op := client.PendingOp{ResourceID: "n1", Kind: client.FileUpload, File: "a.png"}
	if !log.Enqueue(op) || !log.Enqueue(op) {
		t.Fatal("enqueue failed")
	}
	if !log.Enqueue(client.PendingOp{ResourceID: "n1", Kind: client.FileDownload, File: "a.png"}) {
		t.Fatal("enqueue failed")
	}

	reloaded := client.NewPendingLog(dir)
	reloaded.Load()
	ops := reloaded.All()
	if len(ops) != 2 {
		t.Fatalf("expected 2 ops keyed by id and kind, got %d", len(ops))
	}
	if ops[0].Kind != client.FileUpload || ops[0].Attempts != 2 {
		t.Errorf("expected upload op with 2 attempts first, got %+v", ops[0])
	}

	if !reloaded.Resolve(op) {
		t.Fatal("resolve failed")
	}
	if reloaded.Len() != 1 {
		t.Errorf("expected 1 op left, got %d", reloaded.Len())
	}
}
