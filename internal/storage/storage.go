// Package storage stages request payloads on the local filesystem so the
// external decompiler can read them by path. Staged files are owned by exactly
// one request and are removed when that request finishes.
package storage

import (
	"context"
	"errors"
)

// ErrStagingIO wraps any filesystem failure while writing a staged file.
var ErrStagingIO = errors.New("staging io error")

// Stager writes payloads to uniquely named, owner-only files.
type Stager interface {
	// Stage writes data to a new file and returns a handle to it.
	// The caller must call Remove on the returned file once it is done with it.
	Stage(ctx context.Context, data []byte) (*StagedFile, error)
}
