package service

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/rs/zerolog"

	"github.com/swagatgroup/swagatodisha-sub003/app/apperr"
	"github.com/swagatgroup/swagatodisha-sub003/app/model"
	"github.com/swagatgroup/swagatodisha-sub003/app/workflow"
)

// Responder writes error envelopes. Error details are only included outside
// production.
type Responder struct {
	log        zerolog.Logger
	production bool
}

func NewResponder(log zerolog.Logger, production bool) Responder {
	return Responder{log: log, production: production}
}

func (r Responder) Fail(c *fiber.Ctx, err error) error {
	var (
		status = fiber.StatusInternalServerError
		body   = model.ErrorResponse{Success: false, Message: "Internal server error"}
	)

	var ae *apperr.Error
	if apperr.As(err, &ae) {
		status = ae.StatusCode()
		body.Message = ae.Message
		if !r.production {
			body.Error = ae.Detail
		}
	} else if !r.production {
		body.Error = err.Error()
	}

	if status >= fiber.StatusInternalServerError {
		r.log.Error().Stack().Err(err).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Msg("request failed")
	}
	return c.Status(status).JSON(body)
}

func (r Responder) BadRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(model.ErrorResponse{Success: false, Message: msg})
}

// actorFrom reads the authenticated user set by middleware.AuthRequired.
func actorFrom(c *fiber.Ctx) workflow.Actor {
	id, _ := c.Locals("user_id").(string)
	role, _ := c.Locals("role").(string)
	return workflow.Actor{ID: id, Role: role}
}

// applicationIDParam copies the route id out of Fiber's request buffer, which
// is reused once the handler returns.
func applicationIDParam(c *fiber.Ctx) string {
	return utils.CopyString(c.Params("applicationId"))
}
