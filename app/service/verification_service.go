package service

import (
	"github.com/gofiber/fiber/v2"

	"github.com/swagatgroup/swagatodisha-sub003/app/model"
	"github.com/swagatgroup/swagatodisha-sub003/app/query"
	"github.com/swagatgroup/swagatodisha-sub003/app/workflow"
	"github.com/swagatgroup/swagatodisha-sub003/helper"
)

type VerificationService struct {
	engine  *workflow.Engine
	queries *query.Service
	Responder
}

func NewVerificationService(engine *workflow.Engine, queries *query.Service, r Responder) *VerificationService {
	return &VerificationService{engine: engine, queries: queries, Responder: r}
}

func listParams(c *fiber.Ctx) query.ListParams {
	return query.ListParams{
		Status:        c.Query("status"),
		SubmitterRole: c.Query("submitterRole"),
		Course:        c.Query("course"),
		Search:        c.Query("search"),
		SessionLabel:  c.Query("session"),
		Page:          c.QueryInt("page", query.DefaultPage),
		Limit:         c.QueryInt("limit", query.DefaultLimit),
	}
}

func applicationResponses(apps []model.Application) []model.ApplicationResponse {
	out := make([]model.ApplicationResponse, 0, len(apps))
	for i := range apps {
		out = append(out, model.NewApplicationResponse(&apps[i]))
	}
	return out
}

// /api/v1/verification/pending
func (s *VerificationService) Pending(c *fiber.Ctx) error {
	p := listParams(c)
	res, err := s.queries.ListPending(c.UserContext(), p)
	if err != nil {
		return s.Fail(c, err)
	}

	filters := model.ListFilters{
		Status:        p.Status,
		SubmitterRole: p.SubmitterRole,
		Course:        p.Course,
		Search:        p.Search,
	}
	if res.Session != nil {
		filters.Session = res.Session.Label
	}
	return c.JSON(model.PendingListResponse{
		Success:      true,
		Applications: applicationResponses(res.Items),
		Pagination:   res.Pagination(),
		Filters:      filters,
	})
}

// /api/v1/verification/:applicationId
func (s *VerificationService) Get(c *fiber.Ctx) error {
	app, err := s.engine.Get(c.UserContext(), applicationIDParam(c))
	if err != nil {
		return s.Fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "application": model.NewApplicationResponse(app)})
}

// /api/v1/verification/stats/overview
func (s *VerificationService) Overview(c *fiber.Ctx) error {
	return c.JSON(model.SuccessResponse[*model.OverviewStats]{
		Success: true,
		Data:    s.queries.Overview(c.UserContext()),
	})
}

// /api/v1/verification/:applicationId/review
func (s *VerificationService) BeginReview(c *fiber.Ctx) error {
	app, err := s.engine.BeginReview(c.UserContext(), applicationIDParam(c), actorFrom(c).ID)
	if err != nil {
		return s.Fail(c, err)
	}
	last := app.LastEntry()
	return c.JSON(model.SuccessResponse[model.TransitionResponse]{
		Success: true,
		Message: "Application moved to review",
		Data: model.TransitionResponse{
			ApplicationID:   app.ApplicationID,
			Status:          app.Status,
			CurrentStage:    app.CurrentStage(),
			ReviewStartedAt: &last.Timestamp,
		},
	})
}

// /api/v1/verification/:applicationId/approve
func (s *VerificationService) Approve(c *fiber.Ctx) error {
	var req model.ApproveRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return s.BadRequest(c, "Invalid input")
		}
	}

	app, err := s.engine.Approve(c.UserContext(), applicationIDParam(c), actorFrom(c).ID, req.Remarks)
	if err != nil {
		return s.Fail(c, err)
	}
	return c.JSON(model.SuccessResponse[model.TransitionResponse]{
		Success: true,
		Message: "Application approved",
		Data: model.TransitionResponse{
			ApplicationID: app.ApplicationID,
			Status:        app.Status,
			CurrentStage:  app.CurrentStage(),
			ApprovedAt:    app.ReviewInfo.ReviewedAt,
		},
	})
}

// /api/v1/verification/:applicationId/reject
func (s *VerificationService) Reject(c *fiber.Ctx) error {
	var req model.RejectRequest
	if err := c.BodyParser(&req); err != nil {
		return s.BadRequest(c, "Invalid input")
	}
	if err := helper.ValidateStruct(req); err != nil {
		return s.BadRequest(c, helper.FormatValidationErrors(err))
	}

	app, err := s.engine.Reject(c.UserContext(), applicationIDParam(c), actorFrom(c).ID, workflow.RejectInput{
		Reason:  req.RejectionReason,
		Message: req.RejectionMessage,
		Remarks: req.Remarks,
		Details: req.RejectionDetails,
	})
	if err != nil {
		return s.Fail(c, err)
	}
	return c.JSON(model.SuccessResponse[model.TransitionResponse]{
		Success: true,
		Message: "Application rejected",
		Data: model.TransitionResponse{
			ApplicationID:    app.ApplicationID,
			Status:           app.Status,
			CurrentStage:     app.CurrentStage(),
			RejectedAt:       app.ReviewInfo.ReviewedAt,
			RejectionMessage: app.ReviewInfo.RejectionMessage,
			RejectionDetails: app.ReviewInfo.RejectionDetails,
		},
	})
}

// /api/v1/verification/:applicationId/resubmit
func (s *VerificationService) Resubmit(c *fiber.Ctx) error {
	var req model.ResubmitRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return s.BadRequest(c, "Invalid input")
		}
	}

	app, err := s.engine.Resubmit(c.UserContext(), applicationIDParam(c), actorFrom(c).ID, req.ResubmissionReason)
	if err != nil {
		return s.Fail(c, err)
	}
	count := app.ResubmissionInfo.ResubmissionCount
	return c.JSON(model.SuccessResponse[model.TransitionResponse]{
		Success: true,
		Message: "Application resubmitted",
		Data: model.TransitionResponse{
			ApplicationID:     app.ApplicationID,
			Status:            app.Status,
			CurrentStage:      app.CurrentStage(),
			ResubmittedAt:     app.ResubmissionInfo.ResubmittedAt,
			ResubmissionCount: &count,
		},
	})
}
