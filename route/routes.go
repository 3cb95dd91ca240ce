package route

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/swagatgroup/swagatodisha-sub003/app/metrics"
	"github.com/swagatgroup/swagatodisha-sub003/app/model"
	"github.com/swagatgroup/swagatodisha-sub003/app/service"
	"github.com/swagatgroup/swagatodisha-sub003/middleware"
)

type Services struct {
	Auth         *service.AuthService
	Applications *service.ApplicationService
	Verification *service.VerificationService
	Staff        *service.StaffService
	Tokens       middleware.TokenValidator
	Metrics      *metrics.Metrics
}

var (
	reviewers  = []string{model.RoleStaff, model.RoleSuperAdmin}
	submitters = []string{model.RoleStudent, model.RoleAgent, model.RoleStaff, model.RoleSuperAdmin}
)

func SetupRoutes(app *fiber.App, s Services) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(model.SuccessMessageResponse{Success: true, Message: "ok"})
	})
	if s.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{})))
	}

	api := app.Group("/api")
	v1 := api.Group("/v1")

	auth := v1.Group("/auth")
	auth.Post("/login", s.Auth.Login)

	protected := v1.Group("", middleware.AuthRequired(s.Tokens))

	protected.Get("/auth/profile", s.Auth.Profile)
	protected.Get("/sessions", s.Staff.Sessions)

	applications := protected.Group("/applications", middleware.RolesAllowed(submitters...))
	applications.Post("/", s.Applications.Create)
	applications.Put("/:applicationId/submit", s.Applications.Submit)

	verification := protected.Group("/verification")
	verification.Put("/:applicationId/resubmit", middleware.RolesAllowed(submitters...), s.Verification.Resubmit)

	review := verification.Group("", middleware.RolesAllowed(reviewers...))
	review.Get("/pending", s.Verification.Pending)
	review.Get("/stats/overview", s.Verification.Overview)
	review.Get("/:applicationId", s.Verification.Get)
	review.Put("/:applicationId/review", s.Verification.BeginReview)
	review.Put("/:applicationId/approve", s.Verification.Approve)
	review.Put("/:applicationId/reject", s.Verification.Reject)

	staff := protected.Group("/staff", middleware.RolesAllowed(reviewers...))
	staff.Get("/students", s.Staff.Students)
	staff.Get("/processing-stats", s.Staff.ProcessingStats)
}
