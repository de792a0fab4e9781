package handler

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"decompapi/internal/config"
	"decompapi/internal/decompiler"
	"decompapi/internal/model"
	"decompapi/internal/service"
)

// Dependencies are the collaborators the HTTP routes need.
// DB and Audit are nil when the audit log is disabled. Limiter, when set,
// guards only the decompile routes.
type Dependencies struct {
	DB        *sql.DB
	Invoker   decompiler.Invoker
	Decompile service.DecompileService
	Audit     service.AuditService
	Gatherer  prometheus.Gatherer
	Dialects  config.DialectConfig
	Limiter   fiber.Handler
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, deps Dependencies) {
	app.Get("/health", HealthCheck(deps.DB, deps.Invoker))
	app.Get("/healthz", LivenessProbe())

	if deps.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	guarded := func(h fiber.Handler) []fiber.Handler {
		if deps.Limiter == nil {
			return []fiber.Handler{h}
		}
		return []fiber.Handler{deps.Limiter, h}
	}

	app.Post("/decompile", guarded(Decompile(deps.Decompile, model.DialectDefault, nil))...)
	if deps.Dialects.Luau {
		key := deps.Dialects.LuauEncodeKey
		app.Post("/luau/decompile", guarded(Decompile(deps.Decompile, model.DialectLuau, &key))...)
	}
	if deps.Dialects.Lua51 {
		app.Post("/lua51/decompile", guarded(Decompile(deps.Decompile, model.DialectLua51, nil))...)
	}

	if deps.Audit != nil {
		app.Get("/invocations", ListInvocations(deps.Audit))
	}
}

// HealthCheck reports whether the decompiler can be launched and, when an
// audit database is configured, whether it answers a ping.
func HealthCheck(db *sql.DB, invoker decompiler.Invoker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if invoker != nil {
			if err := invoker.Available(); err != nil {
				return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "decompiler unavailable")
			}
		}
		if db != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
			}
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe always answers 200 while the process is serving.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// Decompile handles POST bodies of raw bytecode, or base64 text when the
// Content-Type is text/plain.
//
// When defaultKey is non-nil the route accepts an encode_key query parameter
// (0-255) that is forwarded to the decompiler.
//
// @Summary Decompile bytecode
// @Accept octet-stream,plain
// @Produce plain
// @Success 200 {string} string "decompiled source"
// @Failure 400,413,415,429,500,504 {object} errorPayload
// @Router /decompile [post]
func Decompile(svc service.DecompileService, dialect model.Dialect, defaultKey *uint8) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// The size ceiling applies to bytes on the wire; compressed bodies would
		// be expanded by Fiber before it.
		if enc := strings.TrimSpace(c.Get(fiber.HeaderContentEncoding)); enc != "" && !strings.EqualFold(enc, "identity") {
			return writeError(c, fiber.StatusUnsupportedMediaType, "UNSUPPORTED_CONTENT_ENCODING", "Compressed request bodies are not accepted")
		}

		opts := model.DecompileOptions{Dialect: dialect}
		if defaultKey != nil {
			key := *defaultKey
			if raw := c.Query("encode_key"); raw != "" {
				parsed, err := strconv.ParseUint(raw, 10, 8)
				if err != nil {
					return writeError(c, fiber.StatusBadRequest, "INVALID_ENCODE_KEY", "encode_key must be an integer between 0 and 255")
				}
				key = uint8(parsed)
			}
			opts.EncodeKey = &key
		}

		source, err := svc.Decompile(c.UserContext(), service.DecompileInput{
			Body:        c.BodyRaw(),
			ContentType: c.Get(fiber.HeaderContentType),
			RequestID:   requestIDFromCtx(c),
			Options:     opts,
		})
		if err != nil {
			m, known := mapError(err)
			if !known {
				return err
			}
			return writeMapped(c, m)
		}

		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.Status(fiber.StatusOK).SendString(source)
	}
}

// ListInvocations returns the invocation audit log with limit & offset.
//
// @Summary List invocation audit records
// @Produce json
// @Param limit query int false "page size" default(10)
// @Param offset query int false "page offset" default(0)
// @Success 200 {object} service.InvocationListResult
// @Router /invocations [get]
func ListInvocations(svc service.AuditService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := svc.List(c.UserContext(), limit, offset)
		if err != nil {
			if m, known := mapError(err); known {
				return writeMapped(c, m)
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(res)
	}
}
