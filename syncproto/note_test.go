package syncproto_test

import (
	"testing"

	"notesync/syncproto"
)

func TestNoteIsEmpty(t *testing.T) {
	if !(syncproto.Note{ID: "x", Title: "  "}).IsEmpty() {
		t.Error("blank note should be empty")
	}
	if (syncproto.Note{ID: "x", Content: "milk"}).IsEmpty() {
		t.Error("note with content should not be empty")
	}
	if (syncproto.Note{ID: "x", AttachmentFile: syncproto.StringPtr("a.jpg")}).IsEmpty() {
		t.Error("note with attachment should not be empty")
	}
}

func TestApplyPartialPatchKeepsUnsetFields(t *testing.T) {
	n := syncproto.Note{
		ID:             "n1",
		Title:          "groceries",
		Content:        "milk",
		ColorCategory:  syncproto.ColorRed,
		AttachmentFile: syncproto.StringPtr("list.png"),
		ChangedDate:    10,
	}

	content := "milk, eggs"
	n.Apply(syncproto.NotePatch{Content: &content})

	if n.Content != "milk, eggs" {
		t.Errorf("content not applied: %q", n.Content)
	}
	if n.Title != "groceries" || n.ColorCategory != syncproto.ColorRed {
		t.Errorf("unset fields were changed: %+v", n)
	}
	if n.AttachmentFile == nil || *n.AttachmentFile != "list.png" {
		t.Errorf("attachment was cleared: %v", n.AttachmentFile)
	}
	if n.ChangedDate != 10 {
		t.Errorf("changed date moved: %d", n.ChangedDate)
	}
}

func TestPatchFromKeepsAttachmentWhenNil(t *testing.T) {
	stored := syncproto.Note{ID: "n1", AttachmentFile: syncproto.StringPtr("a.png")}
	incoming := syncproto.Note{ID: "n1", Title: "new", ChangedDate: 5}

	stored.Apply(syncproto.PatchFrom(incoming))
	if stored.Title != "new" || stored.ChangedDate != 5 {
		t.Errorf("patch not applied: %+v", stored)
	}
	if !stored.HasAttachment() {
		t.Error("nil attachment in patch should not clear the stored one")
	}
	if stored.ColorCategory != syncproto.ColorNeutral {
		t.Errorf("expected neutral color, got %q", stored.ColorCategory)
	}
}

func TestValidate(t *testing.T) {
	if err := (syncproto.Note{ID: "a", ChangedDate: 1}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (syncproto.Note{ChangedDate: 1}).Validate(); err == nil {
		t.Error("expected error for missing id")
	}
	if err := (syncproto.Note{ID: "a", ChangedDate: 1, ColorCategory: "Pink"}).Validate(); err == nil {
		t.Error("expected error for unknown color")
	}
	if err := (syncproto.Note{ID: "a"}).Validate(); err == nil {
		t.Error("expected error for missing changedDate")
	}
}

func TestSortNotes(t *testing.T) {
	notes := []syncproto.Note{
		{ID: "old-neutral", ChangedDate: 1},
		{ID: "new-neutral", ChangedDate: 5},
		{ID: "red", ColorCategory: syncproto.ColorRed, ChangedDate: 9},
		{ID: "important", IsImportant: true, ColorCategory: syncproto.ColorViolet},
	}
	syncproto.SortNotes(notes)

	want := []string{"important", "new-neutral", "old-neutral", "red"}
	for i, id := range want {
		if notes[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, notes[i].ID)
		}
	}
}
