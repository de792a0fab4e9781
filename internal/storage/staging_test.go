package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var stagedNamePattern = regexp.MustCompile(`^bytecode_[0-9a-f]{32}\.bin$`)

func TestTempStager_Stage(t *testing.T) {
	dir := t.TempDir()
	stager := NewTempStager(dir)
	payload := []byte{0x1b, 0x4c, 0x75, 0x61, 0x51}

	staged, err := stager.Stage(context.Background(), payload)
	require.NoError(t, err)
	defer staged.Remove()

	assert.Equal(t, dir, filepath.Dir(staged.Path))
	assert.Regexp(t, stagedNamePattern, filepath.Base(staged.Path))
	assert.Equal(t, len(payload), staged.Size)

	got, err := os.ReadFile(staged.Path)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(staged.Path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}
}

func TestTempStager_DefaultDir(t *testing.T) {
	stager := NewTempStager("").(*tempStager)
	assert.Equal(t, os.TempDir(), stager.dir)
}

func TestStagedFile_Remove(t *testing.T) {
	stager := NewTempStager(t.TempDir())

	staged, err := stager.Stage(context.Background(), []byte("abcd"))
	require.NoError(t, err)

	staged.Remove()
	_, err = os.Stat(staged.Path)
	assert.True(t, os.IsNotExist(err))

	// second call and nil receiver are no-ops
	staged.Remove()
	var nilFile *StagedFile
	nilFile.Remove()
}

func TestStagedFile_RemoveAlreadyGone(t *testing.T) {
	stager := NewTempStager(t.TempDir())

	staged, err := stager.Stage(context.Background(), []byte("abcd"))
	require.NoError(t, err)
	require.NoError(t, os.Remove(staged.Path))

	assert.NotPanics(t, staged.Remove)
}

func TestTempStager_Errors(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		stager := NewTempStager(filepath.Join(t.TempDir(), "does-not-exist"))

		staged, err := stager.Stage(context.Background(), []byte("abcd"))
		assert.Nil(t, staged)
		assert.ErrorIs(t, err, ErrStagingIO)
	})

	t.Run("entropy failure", func(t *testing.T) {
		orig := randRead
		randRead = func([]byte) (int, error) { return 0, errors.New("no entropy") }
		defer func() { randRead = orig }()

		staged, err := NewTempStager(t.TempDir()).Stage(context.Background(), []byte("abcd"))
		assert.Nil(t, staged)
		assert.ErrorIs(t, err, ErrStagingIO)
		assert.Contains(t, err.Error(), "no entropy")
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		staged, err := NewTempStager(t.TempDir()).Stage(ctx, []byte("abcd"))
		assert.Nil(t, staged)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestTempStager_ConcurrentPathsAreUnique(t *testing.T) {
	const trials = 10000

	dir := t.TempDir()
	stager := NewTempStager(dir)

	var (
		mu    sync.Mutex
		seen  = make(map[string]struct{}, trials)
		wg    sync.WaitGroup
		sem   = make(chan struct{}, 64)
		errCh = make(chan error, trials)
	)

	for i := 0; i < trials; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			staged, err := stager.Stage(context.Background(), []byte{byte(i), byte(i >> 8), 0, 1})
			if err != nil {
				errCh <- err
				return
			}
			defer staged.Remove()

			mu.Lock()
			seen[staged.Path] = struct{}{}
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Fatalf("stage failed: %v", err)
	}
	assert.Len(t, seen, trials)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
