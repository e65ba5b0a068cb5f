//go:build windows

package db

import (
	"golang.org/x/sys/windows"
)

const stillActive = 259

// tryLock takes a one-byte exclusive range lock without waiting.
func (l *writeLocker) tryLock() error {
	return windows.LockFileEx(windows.Handle(l.lockFile.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
		0, 1, 0, new(windows.Overlapped))
}

func (l *writeLocker) unlock() {
	if l.lockFile == nil {
		return
	}
	windows.UnlockFileEx(windows.Handle(l.lockFile.Fd()), 0, 1, 0, new(windows.Overlapped))
}

func isProcessAlive(pid int) bool {
	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(handle)

	var code uint32
	if err := windows.GetExitCodeProcess(handle, &code); err != nil {
		return false
	}
	return code == stillActive
}
