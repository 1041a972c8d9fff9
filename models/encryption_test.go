package models_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"notesync/models"
)

const testAttachmentKey = "12345678901234567890123456789012"

// TestSealedAttachmentsRoundTrip verifies blobs are encrypted on disk and
// decrypted on fetch
func TestSealedAttachmentsRoundTrip(t *testing.T) {
	disk, err := models.NewDiskAttachments(t.TempDir())
	if err != nil {
		t.Fatalf("disk store: %v", err)
	}
	sealed, err := models.SealAttachments(disk, []byte(testAttachmentKey))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	ctx := context.Background()
	plain := []byte("a picture of a cat, allegedly")
	if _, err := sealed.Put(ctx, "alice", "cat.png", plain); err != nil {
		t.Fatalf("put: %v", err)
	}

	raw, err := disk.Fetch(ctx, "alice", "cat.png")
	if err != nil {
		t.Fatalf("raw fetch: %v", err)
	}
	if bytes.Contains(raw, plain) {
		t.Error("blob stored in plaintext")
	}

	got, err := sealed.Fetch(ctx, "alice", "cat.png")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Errorf("expected %q, got %q", plain, got)
	}
}

func TestSealedAttachmentsDetectTampering(t *testing.T) {
	disk, err := models.NewDiskAttachments(t.TempDir())
	if err != nil {
		t.Fatalf("disk store: %v", err)
	}
	sealed, err := models.SealAttachments(disk, []byte(testAttachmentKey))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	ctx := context.Background()

	if _, err := sealed.Put(ctx, "alice", "a.txt", []byte("hello")); err != nil {
		t.Fatalf("put: %v", err)
	}
	raw, _ := disk.Fetch(ctx, "alice", "a.txt")
	raw[len(raw)-1] ^= 0xff
	if _, err := disk.Put(ctx, "alice", "a.txt", raw); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if _, err := sealed.Fetch(ctx, "alice", "a.txt"); err == nil {
		t.Error("expected tampered blob to fail")
	}

	// A blob moved to another name must not open
	good, _ := disk.Fetch(ctx, "alice", "a.txt")
	if _, err := disk.Put(ctx, "bob", "a.txt", good); err != nil {
		t.Fatalf("copy: %v", err)
	}
	if _, err := sealed.Fetch(ctx, "bob", "a.txt"); err == nil {
		t.Error("expected blob bound to another user to fail")
	}

	if _, err := disk.Put(ctx, "alice", "short.bin", []byte("x")); err != nil {
		t.Fatalf("put short: %v", err)
	}
	if _, err := sealed.Fetch(ctx, "alice", "short.bin"); err == nil {
		t.Error("expected short blob to fail")
	}
}

func TestSealedAttachmentsPassThroughNotFound(t *testing.T) {
	disk, _ := models.NewDiskAttachments(t.TempDir())
	sealed, err := models.SealAttachments(disk, []byte(testAttachmentKey))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	_, err = sealed.Fetch(context.Background(), "alice", "nope.txt")
	if !errors.Is(err, models.ErrAttachmentNotFound) {
		t.Errorf("expected ErrAttachmentNotFound, got %v", err)
	}
}

func TestSealAttachmentsRejectsBadKey(t *testing.T) {
	disk, _ := models.NewDiskAttachments(t.TempDir())
	if _, err := models.SealAttachments(disk, []byte("short")); err == nil {
		t.Error("expected short key to be rejected")
	}
}
