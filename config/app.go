package config

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/swagatgroup/swagatodisha-sub003/app/model"
)

func NewApp(env EnvConfig, log zerolog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      env.AppName,
		ErrorHandler: errorHandler(env, log),
	})

	// Middleware
	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New())

	return app
}

// errorHandler renders errors that escape a handler, such as unknown routes
// and recovered panics, in the standard error envelope.
func errorHandler(env EnvConfig, log zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		msg := "Internal server error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			msg = fe.Message
		}
		if code >= fiber.StatusInternalServerError {
			log.Error().Err(err).Str("path", c.Path()).Msg("unhandled error")
		}

		body := model.ErrorResponse{Success: false, Message: msg}
		if !env.Production() {
			body.Error = err.Error()
		}
		return c.Status(code).JSON(body)
	}
}
