package storage

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestPutGet(t *testing.T) {
	s := New(t.TempDir())

	require.NoError(t, s.Put("session-1", doc{Name: "a", Count: 3}))

	var got doc
	require.NoError(t, s.Get("session-1", &got))
	assert.Equal(t, doc{Name: "a", Count: 3}, got)
}

func TestGetMissingKey(t *testing.T) {
	s := New(t.TempDir())

	var got doc
	assert.ErrorIs(t, s.Get("absent", &got), ErrNotFound)
}

func TestPutCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "deeper")
	s := New(dir)

	require.NoError(t, s.Put("k", doc{}))
	assert.FileExists(t, filepath.Join(dir, "k.json"))
}

func TestPutLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	require.NoError(t, s.Put("k", doc{Name: "x"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func TestDelete(t *testing.T) {
	s := New(t.TempDir())

	require.NoError(t, s.Put("k", doc{}))
	require.NoError(t, s.Delete("k"))
	assert.False(t, s.Exists("k"))

	// Absent keys delete cleanly.
	require.NoError(t, s.Delete("k"))
}

func TestList(t *testing.T) {
	s := New(t.TempDir())

	keys, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, s.Put("b", doc{}))
	require.NoError(t, s.Put("a", doc{}))

	keys, err = s.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, keys)
}

func TestListMissingDir(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "never-created"))

	keys, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestConcurrentPuts(t *testing.T) {
	s := New(t.TempDir())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			assert.NoError(t, s.Put("shared", doc{Count: n}))
		}(i)
	}
	wg.Wait()

	var got doc
	require.NoError(t, s.Get("shared", &got))
	assert.GreaterOrEqual(t, got.Count, 0)
	assert.Less(t, got.Count, 10)
}

func TestLockBlocksSecondWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.json")
	first := &fileLock{path: path}
	require.NoError(t, first.acquire())

	acquired := make(chan struct{})
	go func() {
		second := &fileLock{path: path}
		assert.NoError(t, second.acquire())
		second.release()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("lock acquired while held")
	case <-time.After(50 * time.Millisecond):
	}

	first.release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock never handed over")
	}
}

func TestLockRemovesSidecar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.json")
	l := &fileLock{path: path}

	require.NoError(t, l.acquire())
	assert.FileExists(t, path+".lock")

	l.release()
	assert.NoFileExists(t, path+".lock")
}
