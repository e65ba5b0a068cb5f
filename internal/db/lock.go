package db

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	lockFileName   = "db.lock"
	defaultTimeout = 2 * time.Second
	initialBackoff = 5 * time.Millisecond
	maxBackoff     = 50 * time.Millisecond
)

// writeLocker serializes catalog writes across processes (the CLI, the
// browser and a running sync can all touch the same file). The OS drops
// the lock when the holder exits, crashed or not.
type writeLocker struct {
	lockPath string
	lockFile *os.File
}

// newWriteLocker returns a locker whose lock file sits next to the database.
func newWriteLocker(dir string) *writeLocker {
	return &writeLocker{lockPath: filepath.Join(dir, lockFileName)}
}

// acquire takes the exclusive lock, retrying with capped exponential backoff
// until timeout. The timeout error names the current holder.
func (l *writeLocker) acquire(timeout time.Duration) error {
	f, err := os.OpenFile(l.lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	l.lockFile = f

	deadline := time.Now().Add(timeout)
	for backoff := initialBackoff; ; backoff = min(backoff*2, maxBackoff) {
		if err := l.tryLock(); err == nil {
			l.stampHolder()
			return nil
		}
		if time.Now().After(deadline) {
			holder := l.describeHolder()
			l.lockFile.Close()
			l.lockFile = nil
			return fmt.Errorf("catalog write lock timeout after %v (held by %s)", timeout, holder)
		}
		time.Sleep(backoff)
	}
}

func (l *writeLocker) release() error {
	if l.lockFile == nil {
		return nil
	}
	l.lockFile.Truncate(0)
	l.unlock()
	err := l.lockFile.Close()
	l.lockFile = nil
	return err
}

func (l *writeLocker) stampHolder() {
	l.lockFile.Truncate(0)
	l.lockFile.Seek(0, 0)
	fmt.Fprintf(l.lockFile, "pid:%d\ntime:%s\n", os.Getpid(), time.Now().Format(time.RFC3339))
	l.lockFile.Sync()
}

// describeHolder renders the pid/time stamped by the current holder,
// flagging it when that process no longer exists.
func (l *writeLocker) describeHolder() string {
	data, err := os.ReadFile(l.lockPath)
	if err != nil {
		return "unknown"
	}

	var pid, since string
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if v, ok := strings.CutPrefix(line, "pid:"); ok {
			pid = v
		} else if v, ok := strings.CutPrefix(line, "time:"); ok {
			since = v
		}
	}
	if pid == "" {
		return "unknown"
	}

	if n, err := strconv.Atoi(pid); err == nil && !isProcessAlive(n) {
		return fmt.Sprintf("pid:%s since %s, stale", pid, since)
	}
	return fmt.Sprintf("pid:%s since %s", pid, since)
}
