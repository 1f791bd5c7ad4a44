package fs

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"
)

// fileLock is a cross-process mutex backed by an exclusively created file.
// Every window process sharing a store serializes its read-modify-write
// cycles through it.
type fileLock struct {
	path       string
	retry      time.Duration
	timeout    time.Duration
	staleAfter time.Duration
}

// acquire blocks until the lock file is created by this process, the
// timeout elapses, or ctx is cancelled. A lock older than staleAfter is
// assumed to belong to a crashed writer and is broken.
func (l *fileLock) acquire(ctx context.Context) (func(), error) {
	deadline := time.Now().Add(l.timeout)

	for {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			_, _ = f.WriteString(strconv.Itoa(os.Getpid()))
			f.Close()
			return func() {
				os.Remove(l.path)
			}, nil
		}

		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to acquire lock: %w", err)
		}

		if l.staleAfter > 0 {
			if info, statErr := os.Stat(l.path); statErr == nil && time.Since(info.ModTime()) > l.staleAfter {
				os.Remove(l.path)
				continue
			}
		}

		if l.timeout > 0 && time.Now().After(deadline) {
			return nil, fmt.Errorf("timed out waiting for lock %s", l.path)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
}
