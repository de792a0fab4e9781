package service

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	invokerMocks "decompapi/internal/decompiler/mocks"
	"decompapi/internal/model"
	repoMocks "decompapi/internal/repository/mocks"
	"decompapi/internal/storage"
	storeMocks "decompapi/internal/storage/mocks"
)

var validBody = []byte{0x00, 0x01, 0x02, 0x03}

// fileCheckingInvoke asserts the staged file exists while the decompiler runs.
func fileCheckingInvoke(t *testing.T, res model.InvocationResult, seen *string) func(context.Context, string, model.DecompileOptions) model.InvocationResult {
	return func(_ context.Context, path string, _ model.DecompileOptions) model.InvocationResult {
		data, err := os.ReadFile(path)
		assert.NoError(t, err)
		assert.Equal(t, validBody, data)
		*seen = path
		return res
	}
}

func TestDecompileService_Decompile(t *testing.T) {
	tests := []struct {
		name       string
		result     model.InvocationResult
		wantSource string
		wantErr    error
		wantLabel  string
	}{
		{
			name:       "success trims trailing newline",
			result:     model.InvocationResult{Outcome: model.OutcomeCompleted, Stdout: "stub output\n"},
			wantSource: "stub output",
			wantLabel:  "success",
		},
		{
			name:      "whitespace only output",
			result:    model.InvocationResult{Outcome: model.OutcomeCompleted, Stdout: "  \n\t\n"},
			wantErr:   ErrEmptyDecompilation,
			wantLabel: "empty_decompilation",
		},
		{
			name:      "non-zero exit",
			result:    model.InvocationResult{Outcome: model.OutcomeCompleted, ExitCode: 2, Stdout: "partial"},
			wantErr:   ErrDecompileFailed,
			wantLabel: "failed",
		},
		{
			name:      "timeout",
			result:    model.InvocationResult{Outcome: model.OutcomeTimedOut, ExitCode: -1},
			wantErr:   ErrDecompileTimeout,
			wantLabel: "timeout",
		},
		{
			name:      "output limit",
			result:    model.InvocationResult{Outcome: model.OutcomeOutputLimit, ExitCode: -1},
			wantErr:   ErrOutputTooLarge,
			wantLabel: "output_too_large",
		},
		{
			name:      "executable missing",
			result:    model.InvocationResult{Outcome: model.OutcomeNotFound, ExitCode: -1, Detail: "exec: not found"},
			wantErr:   ErrDecompilerUnavailable,
			wantLabel: "decompiler_unavailable",
		},
		{
			name:      "other failure",
			result:    model.InvocationResult{Outcome: model.OutcomeFailed, ExitCode: -1, Detail: "boom"},
			wantErr:   ErrDecompileFailed,
			wantLabel: "failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := prometheus.NewRegistry()
			metrics, err := NewMetrics(reg)
			require.NoError(t, err)

			var stagedPath string
			inv := new(invokerMocks.MockInvoker)
			inv.On("Invoke", mock.Anything, mock.Anything, model.DecompileOptions{}).
				Return(fileCheckingInvoke(t, tt.result, &stagedPath)).Once()

			svc := NewDecompileService(1024, storage.NewTempStager(t.TempDir()), inv, nil, WithMetrics(metrics))

			source, err := svc.Decompile(context.Background(), DecompileInput{Body: validBody, RequestID: "rid"})

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, source)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.wantSource, source)
			}

			require.NotEmpty(t, stagedPath)
			_, statErr := os.Stat(stagedPath)
			assert.True(t, os.IsNotExist(statErr), "staged file must be removed")

			assert.Equal(t, float64(1), testutil.ToFloat64(metrics.requests.WithLabelValues(tt.wantLabel)))
			inv.AssertExpectations(t)
		})
	}
}

func TestDecompileService_ValidationShortCircuits(t *testing.T) {
	tests := []struct {
		name    string
		body    []byte
		wantErr error
	}{
		{name: "empty", body: nil, wantErr: ErrEmptyPayload},
		{name: "too large", body: make([]byte, 17), wantErr: ErrPayloadTooLarge},
		{name: "too short", body: []byte{1, 2, 3}, wantErr: ErrMalformedBytecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stager := new(storeMocks.MockStager)
			inv := new(invokerMocks.MockInvoker)
			svc := NewDecompileService(16, stager, inv, nil)

			_, err := svc.Decompile(context.Background(), DecompileInput{Body: tt.body})

			assert.ErrorIs(t, err, tt.wantErr)
			stager.AssertNotCalled(t, "Stage", mock.Anything, mock.Anything)
			inv.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestDecompileService_StagingError(t *testing.T) {
	stager := new(storeMocks.MockStager)
	stager.On("Stage", mock.Anything, validBody).Return(nil, errors.New("disk full")).Once()
	inv := new(invokerMocks.MockInvoker)

	svc := NewDecompileService(1024, stager, inv, nil)
	_, err := svc.Decompile(context.Background(), DecompileInput{Body: validBody})

	assert.ErrorIs(t, err, ErrStagingIO)
	assert.Contains(t, err.Error(), "disk full")
	inv.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything, mock.Anything)
	stager.AssertExpectations(t)
}

func TestDecompileService_CleansUpOnPanic(t *testing.T) {
	var stagedPath string
	inv := new(invokerMocks.MockInvoker)
	inv.On("Invoke", mock.Anything, mock.Anything, mock.Anything).
		Return(func(_ context.Context, path string, _ model.DecompileOptions) model.InvocationResult {
			stagedPath = path
			panic("decompiler wrapper exploded")
		}).Once()

	svc := NewDecompileService(1024, storage.NewTempStager(t.TempDir()), inv, nil)

	assert.Panics(t, func() {
		svc.Decompile(context.Background(), DecompileInput{Body: validBody})
	})
	require.NotEmpty(t, stagedPath)
	_, err := os.Stat(stagedPath)
	assert.True(t, os.IsNotExist(err))
}

func TestDecompileService_PassesOptions(t *testing.T) {
	key := uint8(203)
	opts := model.DecompileOptions{Dialect: model.DialectLuau, EncodeKey: &key}

	inv := new(invokerMocks.MockInvoker)
	inv.On("Invoke", mock.Anything, mock.Anything, opts).
		Return(model.InvocationResult{Outcome: model.OutcomeCompleted, Stdout: "local x = 1"}).Once()

	svc := NewDecompileService(1024, storage.NewTempStager(t.TempDir()), inv, nil)
	source, err := svc.Decompile(context.Background(), DecompileInput{Body: validBody, Options: opts})

	assert.NoError(t, err)
	assert.Equal(t, "local x = 1", source)
	inv.AssertExpectations(t)
}

func TestDecompileService_ConcurrentRequestsAreIsolated(t *testing.T) {
	const workers = 50

	var (
		mu    sync.Mutex
		paths = make(map[string]struct{})
	)
	inv := new(invokerMocks.MockInvoker)
	inv.On("Invoke", mock.Anything, mock.Anything, mock.Anything).
		Return(func(_ context.Context, path string, _ model.DecompileOptions) model.InvocationResult {
			data, _ := os.ReadFile(path)
			mu.Lock()
			paths[path] = struct{}{}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			return model.InvocationResult{Outcome: model.OutcomeCompleted, Stdout: string(data)}
		})

	dir := t.TempDir()
	svc := NewDecompileService(1024, storage.NewTempStager(dir), inv, nil)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := []byte{'a' + byte(i%26), 'b', 'c', 'd'}
			source, err := svc.Decompile(context.Background(), DecompileInput{Body: body})
			assert.NoError(t, err)
			assert.Equal(t, string(body), source)
		}(i)
	}
	wg.Wait()

	assert.Len(t, paths, workers)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDecompileService_Audit(t *testing.T) {
	t.Run("records outcome and digest", func(t *testing.T) {
		repo := new(repoMocks.MockInvocationRepository)
		repo.On("Create", mock.Anything, mock.MatchedBy(func(rec *model.InvocationRecord) bool {
			return rec.ID != "" &&
				rec.RequestID == "rid-1" &&
				rec.PayloadSize == 4 &&
				rec.PayloadSHA256 == "054edec1d0211f624fed0cbca9d4f9400b0e491c43742af2c5b0abebf0c990d8" &&
				rec.Encoding == "raw" &&
				rec.Outcome == "timeout"
		})).Return(nil).Once()

		inv := new(invokerMocks.MockInvoker)
		inv.On("Invoke", mock.Anything, mock.Anything, mock.Anything).
			Return(model.InvocationResult{Outcome: model.OutcomeTimedOut}).Once()

		svc := NewDecompileService(1024, storage.NewTempStager(t.TempDir()), inv, nil, WithAudit(repo))
		_, err := svc.Decompile(context.Background(), DecompileInput{Body: validBody, RequestID: "rid-1"})

		assert.ErrorIs(t, err, ErrDecompileTimeout)
		repo.AssertExpectations(t)
	})

	t.Run("validation failures are recorded too", func(t *testing.T) {
		repo := new(repoMocks.MockInvocationRepository)
		repo.On("Create", mock.Anything, mock.MatchedBy(func(rec *model.InvocationRecord) bool {
			return rec.Outcome == "empty_payload" && rec.PayloadSize == 0
		})).Return(nil).Once()

		svc := NewDecompileService(1024, new(storeMocks.MockStager), new(invokerMocks.MockInvoker), nil, WithAudit(repo))
		_, err := svc.Decompile(context.Background(), DecompileInput{})

		assert.ErrorIs(t, err, ErrEmptyPayload)
		repo.AssertExpectations(t)
	})

	t.Run("oversized bodies are recorded by size without hashing", func(t *testing.T) {
		repo := new(repoMocks.MockInvocationRepository)
		repo.On("Create", mock.Anything, mock.MatchedBy(func(rec *model.InvocationRecord) bool {
			return rec.Outcome == "payload_too_large" && rec.PayloadSize == 2048 && rec.PayloadSHA256 == ""
		})).Return(nil).Once()

		svc := NewDecompileService(1024, new(storeMocks.MockStager), new(invokerMocks.MockInvoker), nil, WithAudit(repo))
		_, err := svc.Decompile(context.Background(), DecompileInput{Body: make([]byte, 2048)})

		assert.ErrorIs(t, err, ErrPayloadTooLarge)
		repo.AssertExpectations(t)
	})

	t.Run("audit failure does not fail the request", func(t *testing.T) {
		repo := new(repoMocks.MockInvocationRepository)
		repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down")).Once()

		inv := new(invokerMocks.MockInvoker)
		inv.On("Invoke", mock.Anything, mock.Anything, mock.Anything).
			Return(model.InvocationResult{Outcome: model.OutcomeCompleted, Stdout: "ok"}).Once()

		svc := NewDecompileService(1024, storage.NewTempStager(t.TempDir()), inv, nil, WithAudit(repo))
		source, err := svc.Decompile(context.Background(), DecompileInput{Body: validBody})

		assert.NoError(t, err)
		assert.Equal(t, "ok", source)
		repo.AssertExpectations(t)
	})
}

func TestOutcomeLabel(t *testing.T) {
	assert.Equal(t, "success", OutcomeLabel(nil))
	assert.Equal(t, "staging_io_error", OutcomeLabel(ErrStagingIO))
	assert.Equal(t, "internal_error", OutcomeLabel(errors.New("surprise")))
}

func TestNewMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)

	_, err = NewMetrics(reg)
	assert.Error(t, err)
}
