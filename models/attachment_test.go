package models_test

import (
	"context"
	"errors"
	"testing"

	"notesync/models"
)

func TestValidAttachmentName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"photo.jpg", true},
		{"3f2a-uuid.png", true},
		{"", false},
		{"..", false},
		{"../etc/passwd", false},
		{"a/b.jpg", false},
		{`a\b.jpg`, false},
	}
	for _, tt := range tests {
		if got := models.ValidAttachmentName(tt.name); got != tt.want {
			t.Errorf("ValidAttachmentName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestDiskAttachmentsRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := models.NewDiskAttachments(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	key, err := store.Put(ctx, "alice", "img.png", []byte("pixels"))
	if err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if key != "alice/img.png" {
		t.Errorf("unexpected key %q", key)
	}

	data, err := store.Fetch(ctx, "alice", "img.png")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if string(data) != "pixels" {
		t.Errorf("unexpected data %q", data)
	}

	if _, err := store.Fetch(ctx, "bob", "img.png"); !errors.Is(err, models.ErrAttachmentNotFound) {
		t.Errorf("expected not found for other user, got %v", err)
	}
	if _, err := store.Put(ctx, "alice", "../x", []byte("x")); !errors.Is(err, models.ErrBadAttachmentName) {
		t.Errorf("expected bad name error, got %v", err)
	}
}
