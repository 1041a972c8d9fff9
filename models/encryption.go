package models

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"

	"github.com/rohanthewiz/serr"
)

// AttachmentKeyLength is the AES-256 key size required by NOTESYNC_ATTACHMENT_KEY.
const AttachmentKeyLength = 32

// sealedAttachments encrypts blobs with AES-256-GCM before handing them to
// the underlying store. A stored blob is nonce || ciphertext+tag.
type sealedAttachments struct {
	inner AttachmentStore
	gcm   cipher.AEAD
}

// SealAttachments wraps inner so blobs are encrypted at rest with key.
// Clients always see plaintext.
func SealAttachments(inner AttachmentStore, key []byte) (AttachmentStore, error) {
	if len(key) != AttachmentKeyLength {
		return nil, serr.New("attachment key must be exactly 32 bytes for AES-256")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, serr.Wrap(err, "failed to create AES cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, serr.Wrap(err, "failed to create GCM mode")
	}
	return &sealedAttachments{inner: inner, gcm: gcm}, nil
}

func (s *sealedAttachments) Put(ctx context.Context, userID, name string, data []byte) (string, error) {
	// Never reuse a nonce with the same key
	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", serr.Wrap(err, "failed to generate random nonce")
	}

	// The key binds the blob to its owner and name
	sealed := s.gcm.Seal(nonce, nonce, data, []byte(userID+"/"+name))
	return s.inner.Put(ctx, userID, name, sealed)
}

func (s *sealedAttachments) Fetch(ctx context.Context, userID, name string) ([]byte, error) {
	sealed, err := s.inner.Fetch(ctx, userID, name)
	if err != nil {
		return nil, err
	}

	ns := s.gcm.NonceSize()
	if len(sealed) < ns+s.gcm.Overhead() {
		return nil, serr.New("attachment blob too short to be sealed", "user", userID, "file", name)
	}
	plain, err := s.gcm.Open(nil, sealed[:ns], sealed[ns:], []byte(userID+"/"+name))
	if err != nil {
		return nil, serr.Wrap(err, "decryption failed: blob may be corrupted or tampered")
	}
	return plain, nil
}
