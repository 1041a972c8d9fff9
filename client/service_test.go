package client_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"notesync/client"
	"notesync/syncproto"
)

func setupService(t *testing.T, online bool) (*client.DataService, *client.Session, *fakeRemote) {
	t.Helper()
	s := setupSession(t)
	remote := newFakeRemote()
	return client.NewDataService(s, remote, online), s, remote
}

func TestCreateNoteRejectsEmpty(t *testing.T) {
	svc, s, _ := setupService(t, false)

	_, err := svc.CreateNote(context.Background(), syncproto.Note{Title: "  "}, "")
	if !errors.Is(err, client.ErrEmptyNote) {
		t.Fatalf("expected ErrEmptyNote, got %v", err)
	}
	if s.Notes.Len() != 0 {
		t.Error("empty note must not be persisted")
	}
}

func TestCreateNoteWithAttachment(t *testing.T) {
	svc, s, remote := setupService(t, true)

	src := filepath.Join(t.TempDir(), "Photo.JPG")
	if err := os.WriteFile(src, []byte("jpeg bytes"), 0o644); err != nil {
		t.Fatalf("failed to write source file: %v", err)
	}

	// An attachment alone makes a note non-empty
	n, err := svc.CreateNote(context.Background(), syncproto.Note{}, src)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if n.ID == "" || n.ChangedDate.IsZero() {
		t.Errorf("expected id and changedDate assigned, got %+v", n)
	}
	if !n.HasAttachment() || !strings.HasSuffix(*n.AttachmentFile, ".jpg") {
		t.Fatalf("unexpected attachment %v", n.AttachmentFile)
	}
	if !s.HasAttachmentFile(*n.AttachmentFile) {
		t.Error("attachment not copied locally")
	}
	if len(remote.added) != 1 || string(remote.files[*n.AttachmentFile]) != "jpeg bytes" {
		t.Error("expected note and attachment mirrored to the server")
	}
}

func TestCreateNoteQueuesFailedUpload(t *testing.T) {
	svc, s, remote := setupService(t, true)
	remote.uploadErr = errors.New("offline")

	src := filepath.Join(t.TempDir(), "a.png")
	os.WriteFile(src, []byte("png"), 0o644)

	if _, err := svc.CreateNote(context.Background(), syncproto.Note{Title: "pic"}, src); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	ops := s.Pending.All()
	if len(ops) != 1 || ops[0].Kind != client.FileUpload {
		t.Fatalf("expected a queued upload, got %+v", ops)
	}
}

func TestEditNoteBumpsChangedDateStrictly(t *testing.T) {
	svc, _, _ := setupService(t, false)
	ctx := context.Background()

	n, err := svc.CreateNote(ctx, syncproto.Note{Title: "t"}, "")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	prev := n.ChangedDate
	for i := 0; i < 5; i++ {
		content := strings.Repeat("x", i+1)
		edited, err := svc.EditNote(ctx, n.ID, syncproto.NotePatch{Content: &content})
		if err != nil {
			t.Fatalf("edit failed: %v", err)
		}
		if edited.ChangedDate <= prev {
			t.Fatalf("edit %d did not advance changedDate: %d <= %d", i, edited.ChangedDate, prev)
		}
		prev = edited.ChangedDate
	}
}

func TestEditNoteRejectsEmptying(t *testing.T) {
	svc, _, _ := setupService(t, false)
	ctx := context.Background()
	n, _ := svc.CreateNote(ctx, syncproto.Note{Title: "t"}, "")

	blank := ""
	if _, err := svc.EditNote(ctx, n.ID, syncproto.NotePatch{Title: &blank}); !errors.Is(err, client.ErrEmptyNote) {
		t.Fatalf("expected ErrEmptyNote, got %v", err)
	}
	if _, err := svc.EditNote(ctx, "nope", syncproto.NotePatch{Title: &blank}); !errors.Is(err, client.ErrNoteNotFound) {
		t.Fatalf("expected ErrNoteNotFound, got %v", err)
	}
}

func TestEditNoteDeletedOnServerMovesToArchive(t *testing.T) {
	svc, s, remote := setupService(t, true)
	ctx := context.Background()

	n, err := svc.CreateNote(ctx, syncproto.Note{Title: "shared"}, "")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	remote.updateMsg = syncproto.MsgDeleted
	content := "edit after remote delete"
	if _, err := svc.EditNote(ctx, n.ID, syncproto.NotePatch{Content: &content}); err != nil {
		t.Fatalf("edit failed: %v", err)
	}

	if s.Notes.Contains(n.ID) || !s.Archive.Contains(n.ID) {
		t.Fatal("note should have moved to the archive")
	}
	notices := svc.TakeNotices()
	if len(notices) != 1 || !strings.Contains(notices[0], "shared") {
		t.Fatalf("expected one notice naming the note, got %v", notices)
	}
	if again := svc.TakeNotices(); len(again) != 0 {
		t.Errorf("notices should be shown once, got %v", again)
	}
}

func TestEditNoteUnknownOnServerReAdds(t *testing.T) {
	svc, _, remote := setupService(t, true)
	ctx := context.Background()

	n, _ := svc.CreateNote(ctx, syncproto.Note{Title: "t"}, "")
	remote.added = nil
	remote.updateMsg = syncproto.MsgNotFound

	title := "t2"
	if _, err := svc.EditNote(ctx, n.ID, syncproto.NotePatch{Title: &title}); err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if len(remote.added) != 1 || remote.added[0].Title != "t2" {
		t.Fatalf("expected re-add of edited note, got %+v", remote.added)
	}
}

func TestArchiveRestorePurge(t *testing.T) {
	svc, s, remote := setupService(t, true)
	ctx := context.Background()

	a, _ := svc.CreateNote(ctx, syncproto.Note{Title: "a"}, "")
	b, _ := svc.CreateNote(ctx, syncproto.Note{Title: "b"}, "")

	if err := svc.ArchiveNote(ctx, a.ID); err != nil {
		t.Fatalf("archive failed: %v", err)
	}
	if err := svc.ArchiveNote(ctx, b.ID); err != nil {
		t.Fatalf("archive failed: %v", err)
	}
	if len(remote.deleted) != 2 {
		t.Errorf("expected 2 server deletes, got %v", remote.deleted)
	}
	if err := svc.ArchiveNote(ctx, a.ID); !errors.Is(err, client.ErrNoteNotFound) {
		t.Errorf("archiving twice should report not found, got %v", err)
	}

	restored, err := svc.RestoreNote(ctx, a.ID)
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if restored.ChangedDate <= a.ChangedDate {
		t.Error("restore must bump changedDate")
	}
	if len(remote.restored) != 1 {
		t.Error("expected server restore")
	}

	live, _ := svc.ListNotes(ctx)
	archived, _ := svc.ListArchive(ctx)
	if len(live) != 1 || len(archived) != 1 {
		t.Fatalf("expected 1 live and 1 archived, got %d and %d", len(live), len(archived))
	}

	n, err := svc.PurgeArchive(ctx)
	if err != nil || n != 1 {
		t.Fatalf("purge: n=%d err=%v", n, err)
	}
	if s.Archive.Len() != 0 {
		t.Error("archive not empty after purge")
	}
}

func TestListNotesSorted(t *testing.T) {
	svc, _, _ := setupService(t, false)
	ctx := context.Background()

	svc.CreateNote(ctx, syncproto.Note{Title: "plain"}, "")
	svc.CreateNote(ctx, syncproto.Note{Title: "flagged", IsImportant: true}, "")

	notes, err := svc.ListNotes(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(notes) != 2 || notes[0].Title != "flagged" {
		t.Fatalf("expected important note first, got %+v", notes)
	}
}

func TestEditNoteOfflineIsOwedToServer(t *testing.T) {
	svc, s, _ := setupService(t, false)
	ctx := context.Background()

	n, _ := svc.CreateNote(ctx, syncproto.Note{Title: "draft"}, "")
	title := "draft 2"
	edited, err := svc.EditNote(ctx, n.ID, syncproto.NotePatch{Title: &title})
	if err != nil {
		t.Fatalf("edit failed: %v", err)
	}

	ops := s.Pending.All()
	if len(ops) != 1 || ops[0].Kind != client.NoteUpdate || ops[0].Changed != edited.ChangedDate {
		t.Fatalf("expected a pending update for the edit, got %+v", ops)
	}
}

func TestEditNoteFailedPushStaysOwed(t *testing.T) {
	svc, s, remote := setupService(t, true)
	ctx := context.Background()

	n, _ := svc.CreateNote(ctx, syncproto.Note{Title: "t"}, "")
	remote.updateErr = errors.New("offline")
	content := "c"
	if _, err := svc.EditNote(ctx, n.ID, syncproto.NotePatch{Content: &content}); err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if s.Pending.Len() != 1 {
		t.Fatalf("expected the edit still owed, got %d ops", s.Pending.Len())
	}

	// An acknowledged edit settles the debt
	remote.updateErr = nil
	content = "c2"
	if _, err := svc.EditNote(ctx, n.ID, syncproto.NotePatch{Content: &content}); err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if s.Pending.Len() != 0 {
		t.Fatalf("expected nothing owed after acknowledgement, got %d", s.Pending.Len())
	}
}

func TestPendingSettleKeepsNewerDebt(t *testing.T) {
	s := setupSession(t)
	s.Pending.Enqueue(client.PendingOp{ResourceID: "n", Kind: client.NoteUpdate, Changed: 1000})
	s.Pending.Enqueue(client.PendingOp{ResourceID: "n", Kind: client.NoteUpdate, Changed: 2000})

	// The acknowledgement for the older version arrives late
	if !s.Pending.Settle(client.PendingOp{ResourceID: "n", Kind: client.NoteUpdate, Changed: 1000}) {
		t.Fatal("settle failed")
	}
	if s.Pending.Len() != 1 {
		t.Fatal("the newer edit must stay owed")
	}
	s.Pending.Settle(client.PendingOp{ResourceID: "n", Kind: client.NoteUpdate, Changed: 2000})
	if s.Pending.Len() != 0 {
		t.Fatal("expected debt cleared")
	}
}

func TestRestoreNoteFailedPushStaysOwed(t *testing.T) {
	svc, s, remote := setupService(t, true)
	ctx := context.Background()

	n, _ := svc.CreateNote(ctx, syncproto.Note{Title: "t"}, "")
	if err := svc.ArchiveNote(ctx, n.ID); err != nil {
		t.Fatalf("archive failed: %v", err)
	}

	remote.restoreErr = errors.New("offline")
	if _, err := svc.RestoreNote(ctx, n.ID); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	ops := s.Pending.All()
	if len(ops) != 1 || ops[0].Kind != client.NoteRestore {
		t.Fatalf("expected a pending restore, got %+v", ops)
	}
}
