package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"decompapi/internal/http/middleware"
	"decompapi/internal/service"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// pipelineErrors maps every decompile pipeline error to a client-safe response.
// Messages are fixed strings; wrapped detail stays in the logs.
var pipelineErrors = []errorMapping{
	{service.ErrEmptyPayload, fiber.StatusBadRequest, "EMPTY_PAYLOAD", "No bytecode provided"},
	{service.ErrPayloadTooLarge, fiber.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Bytecode exceeds the maximum allowed size"},
	{service.ErrMalformedBytecode, fiber.StatusBadRequest, "MALFORMED_BYTECODE", "Invalid bytecode: too short"},
	{service.ErrStagingIO, fiber.StatusInternalServerError, "STAGING_FAILED", "Failed to prepare bytecode for decompilation"},
	{service.ErrDecompilerUnavailable, fiber.StatusInternalServerError, "DECOMPILER_UNAVAILABLE", "Decompiler is not available"},
	{service.ErrDecompileTimeout, fiber.StatusGatewayTimeout, "DECOMPILE_TIMEOUT", "Decompilation timed out"},
	{service.ErrOutputTooLarge, fiber.StatusRequestEntityTooLarge, "OUTPUT_TOO_LARGE", "Bytecode is too complex: decompiler output exceeded the limit"},
	{service.ErrEmptyDecompilation, fiber.StatusInternalServerError, "EMPTY_DECOMPILATION", "Decompiler produced no output"},
	{service.ErrDecompileFailed, fiber.StatusInternalServerError, "DECOMPILE_FAILED", "Decompilation failed"},
	{service.ErrAuditDisabled, fiber.StatusNotFound, "NOT_FOUND", "resource not found"},
}

var internalError = errorMapping{status: fiber.StatusInternalServerError, code: "INTERNAL_ERROR", message: "internal server error"}

func mapError(err error) (errorMapping, bool) {
	for _, m := range pipelineErrors {
		if errors.Is(err, m.target) {
			return m, true
		}
	}
	return internalError, false
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking internal errors.
func writeError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(errorPayload{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromCtx(c),
	})
}

func writeMapped(c *fiber.Ctx, m errorMapping) error {
	return writeError(c, m.status, m.code, m.message)
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
// Errors that are neither *fiber.Error nor pipeline errors are logged and
// reported as a generic 500.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			switch fiberErr.Code {
			case fiber.StatusBadRequest:
				return writeError(c, fiberErr.Code, "BAD_REQUEST", "bad request")
			case fiber.StatusNotFound:
				return writeError(c, fiberErr.Code, "NOT_FOUND", "resource not found")
			case fiber.StatusMethodNotAllowed:
				return writeError(c, fiberErr.Code, "METHOD_NOT_ALLOWED", "method not allowed")
			case fiber.StatusRequestEntityTooLarge:
				return writeError(c, fiberErr.Code, "PAYLOAD_TOO_LARGE", "Bytecode exceeds the maximum allowed size")
			case fiber.StatusTooManyRequests:
				return writeError(c, fiberErr.Code, "RATE_LIMITED", "too many requests, please try again later")
			}
			if fiberErr.Code < fiber.StatusInternalServerError {
				return writeError(c, fiberErr.Code, "REQUEST_ERROR", fiberErr.Message)
			}
			return writeMapped(c, internalError)
		}

		m, known := mapError(err)
		if !known {
			logger.Error("unhandled_error",
				zap.String("request_id", requestIDFromCtx(c)),
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
		}
		return writeMapped(c, m)
	}
}
