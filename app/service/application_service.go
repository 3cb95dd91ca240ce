package service

import (
	"github.com/gofiber/fiber/v2"

	"github.com/swagatgroup/swagatodisha-sub003/app/model"
	"github.com/swagatgroup/swagatodisha-sub003/app/workflow"
	"github.com/swagatgroup/swagatodisha-sub003/helper"
)

type ApplicationService struct {
	engine *workflow.Engine
	Responder
}

func NewApplicationService(engine *workflow.Engine, r Responder) *ApplicationService {
	return &ApplicationService{engine: engine, Responder: r}
}

// /api/v1/applications
func (s *ApplicationService) Create(c *fiber.Ctx) error {
	var req model.CreateApplicationRequest
	if err := c.BodyParser(&req); err != nil {
		return s.BadRequest(c, "Invalid input")
	}
	if !req.SaveAsDraft {
		if err := helper.ValidateStruct(req); err != nil {
			return s.BadRequest(c, helper.FormatValidationErrors(err))
		}
	}

	app, err := s.engine.Create(c.UserContext(), actorFrom(c), req)
	if err != nil {
		return s.Fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(model.SuccessResponse[model.ApplicationResponse]{
		Success: true,
		Message: "Application created",
		Data:    model.NewApplicationResponse(app),
	})
}

// /api/v1/applications/:applicationId/submit
func (s *ApplicationService) Submit(c *fiber.Ctx) error {
	app, err := s.engine.Submit(c.UserContext(), applicationIDParam(c), actorFrom(c))
	if err != nil {
		return s.Fail(c, err)
	}
	return c.JSON(model.SuccessResponse[model.ApplicationResponse]{
		Success: true,
		Message: "Application submitted",
		Data:    model.NewApplicationResponse(app),
	})
}
