package handler

import (
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
)

// RegisterStatic serves the browser frontend from dir. Unknown GET paths fall
// back to dir/index.html so client-side routes resolve; everything else is a 404.
// It must be registered after all API routes.
func RegisterStatic(app *fiber.App, dir string) {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return
	}
	app.Static("/", dir)

	index := filepath.Join(dir, "index.html")
	app.Use(func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodGet && c.Method() != fiber.MethodHead {
			return c.Next()
		}
		if _, err := os.Stat(index); err != nil {
			return c.Next()
		}
		return c.SendFile(index)
	})
}
