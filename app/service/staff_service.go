package service

import (
	"github.com/gofiber/fiber/v2"

	"github.com/swagatgroup/swagatodisha-sub003/app/model"
	"github.com/swagatgroup/swagatodisha-sub003/app/query"
	"github.com/swagatgroup/swagatodisha-sub003/app/session"
)

type StaffService struct {
	queries  *query.Service
	sessions *session.Resolver
	Responder
}

func NewStaffService(queries *query.Service, sessions *session.Resolver, r Responder) *StaffService {
	return &StaffService{queries: queries, sessions: sessions, Responder: r}
}

// /api/v1/staff/students?session=YYYY-YY
func (s *StaffService) Students(c *fiber.Ctx) error {
	res, err := s.queries.ListApplications(c.UserContext(), listParams(c))
	if err != nil {
		return s.Fail(c, err)
	}
	return c.JSON(model.StudentListResponse{
		Success:    true,
		Students:   applicationResponses(res.Items),
		Pagination: res.Pagination(),
	})
}

// /api/v1/staff/processing-stats?session=YYYY-YY
func (s *StaffService) ProcessingStats(c *fiber.Ctx) error {
	stats, err := s.queries.ComputeProcessingStats(c.UserContext(), c.Query("session"))
	if err != nil {
		return s.Fail(c, err)
	}
	return c.JSON(model.SuccessResponse[*model.ProcessingStats]{Success: true, Data: stats})
}

// /api/v1/sessions
func (s *StaffService) Sessions(c *fiber.Ctx) error {
	return c.JSON(model.SuccessResponse[model.SessionsResponse]{
		Success: true,
		Data: model.SessionsResponse{
			Current:   s.sessions.Current().Label,
			Available: s.sessions.Available(session.DefaultYearsBack, session.DefaultYearsForward),
		},
	})
}
