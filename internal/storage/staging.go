package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	stagedFilePrefix = "bytecode_"
	stagedFileSuffix = ".bin"
	stagedFileMode   = 0o600
	nameEntropyBytes = 16
)

// randRead is swapped in tests to simulate an exhausted entropy source.
var randRead = rand.Read

// StagedFile is a payload written to disk for the lifetime of one request.
type StagedFile struct {
	Path string
	Size int

	once sync.Once
}

// Remove unlinks the file. It is safe to call more than once and never fails:
// a file that is already gone is not an error worth reporting.
func (f *StagedFile) Remove() {
	if f == nil {
		return
	}
	f.once.Do(func() {
		_ = os.Remove(f.Path)
	})
}

// tempStager stages files under a single directory, by default the OS temp dir.
// It is safe for concurrent use; file names never collide by construction.
type tempStager struct {
	dir string
}

// NewTempStager returns a Stager rooted at dir. An empty dir means os.TempDir().
func NewTempStager(dir string) Stager {
	if dir == "" {
		dir = os.TempDir()
	}
	return &tempStager{dir: dir}
}

// Stage writes data to <dir>/bytecode_<32 hex chars>.bin with mode 0600.
func (s *tempStager) Stage(ctx context.Context, data []byte) (*StagedFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name, err := randomName()
	if err != nil {
		return nil, fmt.Errorf("%w: generate name: %v", ErrStagingIO, err)
	}
	path := filepath.Join(s.dir, name)

	// O_EXCL refuses to follow or reuse anything already at this path.
	fh, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, stagedFileMode)
	if err != nil {
		return nil, fmt.Errorf("%w: create: %v", ErrStagingIO, err)
	}

	staged := &StagedFile{Path: path, Size: len(data)}
	if _, err := fh.Write(data); err != nil {
		fh.Close()
		staged.Remove()
		return nil, fmt.Errorf("%w: write: %v", ErrStagingIO, err)
	}
	if err := fh.Close(); err != nil {
		staged.Remove()
		return nil, fmt.Errorf("%w: close: %v", ErrStagingIO, err)
	}
	return staged, nil
}

func randomName() (string, error) {
	buf := make([]byte, nameEntropyBytes)
	if _, err := randRead(buf); err != nil {
		return "", err
	}
	return stagedFilePrefix + hex.EncodeToString(buf) + stagedFileSuffix, nil
}
