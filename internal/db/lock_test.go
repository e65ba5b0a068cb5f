//go:build unix

package db

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWriteLockerStampsHolder(t *testing.T) {
	dir := t.TempDir()
	locker := newWriteLocker(dir)

	if err := locker.acquire(500 * time.Millisecond); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, lockFileName))
	if err != nil {
		t.Fatalf("read lock file: %v", err)
	}
	if !strings.HasPrefix(string(data), "pid:") {
		t.Errorf("lock file = %q, want holder pid", data)
	}
	if holder := locker.describeHolder(); !strings.Contains(holder, "since") {
		t.Errorf("describeHolder = %q, want timestamp", holder)
	}

	if err := locker.release(); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if err := locker.release(); err != nil {
		t.Fatalf("second release should be a no-op: %v", err)
	}
}

func TestWriteLockerSerializesWriters(t *testing.T) {
	dir := t.TempDir()

	const writers = 5
	const rounds = 10

	var counter atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				locker := newWriteLocker(dir)
				if err := locker.acquire(5 * time.Second); err != nil {
					t.Errorf("acquire failed: %v", err)
					return
				}
				v := counter.Load()
				time.Sleep(time.Millisecond)
				counter.Store(v + 1)
				locker.release()
			}
		}()
	}
	wg.Wait()

	if got := counter.Load(); got != writers*rounds {
		t.Errorf("counter = %d, want %d", got, writers*rounds)
	}
}

func TestWriteLockerTimeout(t *testing.T) {
	dir := t.TempDir()

	holder := newWriteLocker(dir)
	if err := holder.acquire(500 * time.Millisecond); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	defer holder.release()

	waiter := newWriteLocker(dir)
	start := time.Now()
	err := waiter.acquire(100 * time.Millisecond)
	elapsed := time.Since(start)
	if err == nil {
		waiter.release()
		t.Fatal("expected timeout error")
	}
	if elapsed < 80*time.Millisecond {
		t.Errorf("gave up after %v, want ~100ms", elapsed)
	}
	if !strings.Contains(err.Error(), "timeout") || !strings.Contains(err.Error(), "pid:") {
		t.Errorf("error should mention timeout and holder: %v", err)
	}
}

func TestWriteLockerReacquireAfterRelease(t *testing.T) {
	dir := t.TempDir()

	first := newWriteLocker(dir)
	if err := first.acquire(500 * time.Millisecond); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	first.release()

	second := newWriteLocker(dir)
	start := time.Now()
	if err := second.acquire(500 * time.Millisecond); err != nil {
		t.Fatalf("second acquire failed: %v", err)
	}
	defer second.release()
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("acquire after release took %v", elapsed)
	}
}
