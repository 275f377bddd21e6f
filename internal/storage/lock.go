package storage

import (
	"os"
	"sync"
	"syscall"
)

// fileLock guards one store entry against concurrent writers. The mutex
// orders goroutines in this process; an advisory flock on a sidecar .lock
// file orders other processes. Acquisition always blocks, matching how the
// store uses it: writers queue rather than fail.
type fileLock struct {
	path string
	mu   sync.Mutex
	file *os.File
}

// acquire takes the lock, blocking until both the mutex and the flock are
// held.
func (l *fileLock) acquire() error {
	l.mu.Lock()

	f, err := os.OpenFile(l.path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		l.mu.Unlock()
		return err
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		f.Close()
		l.mu.Unlock()
		return err
	}

	l.file = f
	return nil
}

// release drops the lock and removes the sidecar file.
func (l *fileLock) release() {
	if l.file == nil {
		return
	}

	syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	l.file.Close()
	os.Remove(l.path + ".lock")

	l.file = nil
	l.mu.Unlock()
}
