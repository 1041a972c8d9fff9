package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

const (
	// DefaultStaleLockAge is how old a lock file must be before it is
	// assumed abandoned by a crashed process.
	DefaultStaleLockAge = 2 * time.Minute

	lockPollInterval = 20 * time.Millisecond
)

// ErrLockTimeout is returned when the lock could not be taken before the
// context ended.
var ErrLockTimeout = errors.New("timed out waiting for store lock")

// FileLock is a cross-process advisory lock: a file created with O_EXCL.
// The file carries a random owner token so a holder only ever removes its
// own lock. While held, the file's mtime is refreshed so a long round is
// not mistaken for a crashed one.
type FileLock struct {
	path     string
	staleAge time.Duration
}

func NewFileLock(path string) *FileLock {
	return &FileLock{path: path, staleAge: DefaultStaleLockAge}
}

// SetStaleAge changes how old a lock file may get before it is broken.
func (l *FileLock) SetStaleAge(d time.Duration) {
	l.staleAge = d
}

// Acquire blocks until the lock is taken or ctx is done. The returned
// function releases it.
func (l *FileLock) Acquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	for {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, werr := fmt.Fprintf(f, "%d %s %s\n", os.Getpid(), token, time.Now().UTC().Format(time.RFC3339))
			cerr := f.Close()
			if werr != nil || cerr != nil {
				_ = os.Remove(l.path)
				return nil, serr.New("failed to write store lock", "path", l.path)
			}
			return l.hold(token), nil
		}
		if !os.IsExist(err) {
			return nil, serr.Wrap(err, "failed to acquire store lock")
		}

		if l.breakIfStale() {
			continue
		}

		select {
		case <-ctx.Done():
			return nil, ErrLockTimeout
		case <-time.After(lockPollInterval):
		}
	}
}

// hold keeps the lock fresh until the returned release func is called.
func (l *FileLock) hold(token string) func() {
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		every := l.staleAge / 3
		if every <= 0 {
			every = lockPollInterval
		}
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if !l.owns(token) {
					logger.Info("Store lock taken over by another process", "path", l.path)
					return
				}
				now := time.Now()
				_ = os.Chtimes(l.path, now, now)
			}
		}
	}()

	released := false
	return func() {
		if released {
			return
		}
		released = true
		close(stop)
		<-done

		if !l.owns(token) {
			logger.Info("Store lock no longer ours, leaving it in place", "path", l.path)
			return
		}
		if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.LogErr(err, "failed to release store lock", "path", l.path)
		}
	}
}

// owns reports whether the lock file still carries token.
func (l *FileLock) owns(token string) bool {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return false
	}
	return bytes.Contains(data, []byte(token))
}

// breakIfStale removes a lock file older than the stale age. The file is
// checked twice, and only removed if neither its content nor its mtime
// moved in between.
func (l *FileLock) breakIfStale() bool {
	info, err := os.Stat(l.path)
	if err != nil {
		// Gone already: retry immediately
		return errors.Is(err, os.ErrNotExist)
	}
	if time.Since(info.ModTime()) < l.staleAge {
		return false
	}

	seen, err := os.ReadFile(l.path)
	if err != nil {
		return errors.Is(err, os.ErrNotExist)
	}
	again, err := os.Stat(l.path)
	if err != nil {
		return errors.Is(err, os.ErrNotExist)
	}
	if !again.ModTime().Equal(info.ModTime()) {
		return false
	}
	if now, err := os.ReadFile(l.path); err != nil || !bytes.Equal(now, seen) {
		return false
	}

	logger.Info("Breaking stale store lock", "path", l.path, "age", time.Since(info.ModTime()))
	return os.Remove(l.path) == nil
}
