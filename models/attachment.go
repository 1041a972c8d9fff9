package models

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rohanthewiz/serr"
)

// ErrAttachmentNotFound is returned by Fetch when no blob exists.
var ErrAttachmentNotFound = errors.New("attachment not found")

// ErrBadAttachmentName is returned for names that could escape the user's folder.
var ErrBadAttachmentName = errors.New("invalid attachment file name")

// AttachmentStore keeps attachment blobs keyed by user and file name.
type AttachmentStore interface {
	Put(ctx context.Context, userID, name string, data []byte) (string, error)
	Fetch(ctx context.Context, userID, name string) ([]byte, error)
}

var attachments AttachmentStore

// Attachments returns the active attachment store.
func Attachments() AttachmentStore {
	return attachments
}

// SetAttachments installs the attachment store.
func SetAttachments(a AttachmentStore) {
	attachments = a
}

// ValidAttachmentName rejects empty names, path separators and dot segments.
func ValidAttachmentName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return false
	}
	return true
}

// attachmentKey is the relative location of a blob: <user>/<name>.
func attachmentKey(userID, name string) (string, error) {
	if !ValidAttachmentName(name) || !ValidAttachmentName(userID) {
		return "", ErrBadAttachmentName
	}
	return userID + "/" + name, nil
}

// DiskAttachments stores blobs under a base directory, one folder per user.
type DiskAttachments struct {
	BaseDir string
}

func NewDiskAttachments(baseDir string) (*DiskAttachments, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, serr.Wrap(err, "failed to create attachment directory")
	}
	return &DiskAttachments{BaseDir: baseDir}, nil
}

func (d *DiskAttachments) Put(_ context.Context, userID, name string, data []byte) (string, error) {
	key, err := attachmentKey(userID, name)
	if err != nil {
		return "", err
	}
	path := filepath.Join(d.BaseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", serr.Wrap(err, "failed to create user attachment directory")
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return "", serr.Wrap(err, "failed to create temp attachment")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		tmp.Close()
		return "", serr.Wrap(err, "failed to write attachment")
	}
	if err := tmp.Close(); err != nil {
		return "", serr.Wrap(err, "failed to close attachment")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", serr.Wrap(err, "failed to move attachment into place")
	}
	return key, nil
}

func (d *DiskAttachments) Fetch(_ context.Context, userID, name string) ([]byte, error) {
	key, err := attachmentKey(userID, name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(d.BaseDir, filepath.FromSlash(key)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrAttachmentNotFound
		}
		return nil, serr.Wrap(err, "failed to read attachment")
	}
	return data, nil
}
