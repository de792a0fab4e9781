package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"decompapi/internal/decompiler"
	"decompapi/internal/model"
	"decompapi/internal/repository"
	"decompapi/internal/storage"
)

const auditWriteTimeout = 2 * time.Second

var errInternal = errors.New("internal error")

const tracerName = "decompapi/internal/service"

// DecompileInput is one inbound request as seen by the pipeline.
type DecompileInput struct {
	Body        []byte
	ContentType string
	RequestID   string
	Options     model.DecompileOptions
}

// DecompileService runs the validate → stage → invoke pipeline.
type DecompileService interface {
	// Decompile returns the decompiled source or one of the pipeline errors.
	// The staged file is gone by the time Decompile returns.
	Decompile(ctx context.Context, in DecompileInput) (string, error)
}

// Option customises a DecompileService.
type Option func(*decompileService)

// WithMetrics records pipeline metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *decompileService) { s.metrics = m }
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *decompileService) { s.tracer = tp.Tracer(tracerName) }
}

// WithAudit writes one audit record per pipeline run.
func WithAudit(repo repository.InvocationRepository) Option {
	return func(s *decompileService) { s.audit = repo }
}

type decompileService struct {
	maxFileSize int64
	stager      storage.Stager
	invoker     decompiler.Invoker
	logger      *zap.Logger
	tracer      trace.Tracer
	metrics     *Metrics
	audit       repository.InvocationRepository
}

// NewDecompileService constructs a new DecompileService.
func NewDecompileService(maxFileSize int64, stager storage.Stager, invoker decompiler.Invoker, logger *zap.Logger, opts ...Option) DecompileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &decompileService{
		maxFileSize: maxFileSize,
		stager:      stager,
		invoker:     invoker,
		logger:      logger,
		tracer:      otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *decompileService) Decompile(ctx context.Context, in DecompileInput) (source string, err error) {
	ctx, span := s.tracer.Start(ctx, "decompile", trace.WithAttributes(
		attribute.String("request_id", in.RequestID),
		attribute.String("decompile.dialect", string(in.Options.Dialect)),
	))
	defer span.End()

	start := time.Now()
	var req *model.DecompileRequest
	defer func() {
		if r := recover(); r != nil {
			span.SetStatus(codes.Error, "panic")
			s.metrics.observeRequest(OutcomeLabel(errInternal))
			panic(r)
		}
		outcome := OutcomeLabel(err)
		span.SetAttributes(attribute.String("decompile.outcome", outcome))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		s.metrics.observeRequest(outcome)
		s.record(ctx, in, req, outcome, time.Since(start))
	}()

	req, err = Validate(in.Body, in.ContentType, s.maxFileSize)
	if err != nil {
		return "", err
	}
	span.SetAttributes(
		attribute.Int("decompile.payload_size", req.Size),
		attribute.String("decompile.encoding", string(req.Encoding)),
	)
	s.metrics.observePayload(req.Size)

	staged, err := s.stage(ctx, req)
	if err != nil {
		s.logger.Error("staging_failed",
			zap.String("request_id", in.RequestID),
			zap.Error(err),
		)
		return "", err
	}
	defer staged.Remove()

	res := s.invoke(ctx, staged.Path, in.Options)
	if strings.TrimSpace(res.Stderr) != "" {
		s.logger.Warn("decompiler_stderr",
			zap.String("request_id", in.RequestID),
			zap.String("stderr", res.Stderr),
		)
	}

	source, err = mapResult(res)
	if err != nil && !errors.Is(err, ErrEmptyDecompilation) {
		s.logger.Error("decompile_failed",
			zap.String("request_id", in.RequestID),
			zap.String("outcome", res.Outcome.String()),
			zap.Int("exit_code", res.ExitCode),
			zap.String("detail", res.Detail),
			zap.Duration("duration", res.Duration),
		)
	}
	return source, err
}

func (s *decompileService) stage(ctx context.Context, req *model.DecompileRequest) (*storage.StagedFile, error) {
	ctx, span := s.tracer.Start(ctx, "decompile.stage")
	defer span.End()

	staged, err := s.stager.Stage(ctx, req.Payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "staging failed")
		if !errors.Is(err, ErrStagingIO) {
			err = fmt.Errorf("%w: %v", ErrStagingIO, err)
		}
		return nil, err
	}
	return staged, nil
}

func (s *decompileService) invoke(ctx context.Context, path string, opts model.DecompileOptions) model.InvocationResult {
	ctx, span := s.tracer.Start(ctx, "decompile.invoke")
	defer span.End()

	res := s.invoker.Invoke(ctx, path, opts)
	span.SetAttributes(
		attribute.String("decompiler.outcome", res.Outcome.String()),
		attribute.Int("decompiler.exit_code", res.ExitCode),
	)
	s.metrics.observeInvocation(res.Outcome.String(), res.Duration)
	return res
}

// mapResult turns a process outcome into decompiled source or a pipeline error.
// Trailing line breaks are trimmed from successful output.
func mapResult(res model.InvocationResult) (string, error) {
	switch res.Outcome {
	case model.OutcomeCompleted:
		if res.ExitCode != 0 {
			return "", fmt.Errorf("%w: exit status %d", ErrDecompileFailed, res.ExitCode)
		}
		if strings.TrimSpace(res.Stdout) == "" {
			return "", ErrEmptyDecompilation
		}
		return strings.TrimRight(res.Stdout, "\r\n"), nil
	case model.OutcomeTimedOut:
		return "", ErrDecompileTimeout
	case model.OutcomeOutputLimit:
		return "", ErrOutputTooLarge
	case model.OutcomeNotFound:
		return "", fmt.Errorf("%w: %s", ErrDecompilerUnavailable, res.Detail)
	default:
		return "", fmt.Errorf("%w: %s", ErrDecompileFailed, res.Detail)
	}
}

// record writes the audit row. Failures are logged and never reach the client.
func (s *decompileService) record(ctx context.Context, in DecompileInput, req *model.DecompileRequest, outcome string, d time.Duration) {
	if s.audit == nil {
		return
	}

	rec := &model.InvocationRecord{
		ID:          uuid.NewString(),
		RequestID:   in.RequestID,
		PayloadSize: int64(len(in.Body)),
		Encoding:    string(model.EncodingRaw),
		Dialect:     string(in.Options.Dialect),
		Outcome:     outcome,
		DurationMS:  d.Milliseconds(),
		CreatedAt:   time.Now().UTC(),
	}
	// Rejected bodies are never hashed; only their size is kept.
	if req != nil {
		rec.PayloadSize = int64(req.Size)
		rec.Encoding = string(req.Encoding)
		sum := sha256.Sum256(req.Payload)
		rec.PayloadSHA256 = hex.EncodeToString(sum[:])
	}

	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()
	if err := s.audit.Create(auditCtx, rec); err != nil {
		s.logger.Error("audit_write_failed",
			zap.String("request_id", in.RequestID),
			zap.Error(err),
		)
	}
}

// OutcomeLabel names a pipeline result for metrics and the audit log.
func OutcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrEmptyPayload):
		return "empty_payload"
	case errors.Is(err, ErrPayloadTooLarge):
		return "payload_too_large"
	case errors.Is(err, ErrMalformedBytecode):
		return "malformed_bytecode"
	case errors.Is(err, ErrStagingIO):
		return "staging_io_error"
	case errors.Is(err, ErrDecompilerUnavailable):
		return "decompiler_unavailable"
	case errors.Is(err, ErrDecompileTimeout):
		return "timeout"
	case errors.Is(err, ErrOutputTooLarge):
		return "output_too_large"
	case errors.Is(err, ErrEmptyDecompilation):
		return "empty_decompilation"
	case errors.Is(err, ErrDecompileFailed):
		return "failed"
	default:
		return "internal_error"
	}
}
