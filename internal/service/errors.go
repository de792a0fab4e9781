package service

import (
	"errors"

	"decompapi/internal/storage"
)

// Request-scoped failures of the decompile pipeline. None of them is fatal to
// the service; the HTTP layer maps each to a status code.
var (
	ErrEmptyPayload          = errors.New("no bytecode provided")
	ErrPayloadTooLarge       = errors.New("payload exceeds maximum size")
	ErrMalformedBytecode     = errors.New("bytecode is too short to be valid")
	ErrStagingIO             = storage.ErrStagingIO
	ErrDecompilerUnavailable = errors.New("decompiler is not available")
	ErrDecompileTimeout      = errors.New("decompilation timed out")
	ErrOutputTooLarge        = errors.New("decompiler output exceeded limit")
	ErrEmptyDecompilation    = errors.New("decompiler produced no output")
	ErrDecompileFailed       = errors.New("decompilation failed")
)
