//go:build unix

package db

import (
	"errors"

	"golang.org/x/sys/unix"
)

// tryLock fails immediately when another process holds the lock.
func (l *writeLocker) tryLock() error {
	return unix.Flock(int(l.lockFile.Fd()), unix.LOCK_EX|unix.LOCK_NB)
}

func (l *writeLocker) unlock() {
	if l.lockFile != nil {
		unix.Flock(int(l.lockFile.Fd()), unix.LOCK_UN)
	}
}

// isProcessAlive probes pid with signal 0. EPERM means it exists under another user.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
