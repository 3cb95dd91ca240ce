// Package workflow implements the verification state machine of an
// admission application:
//
//	DRAFT --submit--> SUBMITTED --beginReview--> UNDER_REVIEW --approve--> APPROVED
//	                                                   |--reject--> REJECTED --resubmit--> UNDER_REVIEW
//
// Every operation checks its preconditions before writing and then commits
// the whole effect as one conditional update on (applicationId, status). Of
// two concurrent operations on the same record only the first to commit wins;
// the other fails with IllegalTransition.
package workflow

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/swagatgroup/swagatodisha-sub003/app/apperr"
	"github.com/swagatgroup/swagatodisha-sub003/app/metrics"
	"github.com/swagatgroup/swagatodisha-sub003/app/model"
	"github.com/swagatgroup/swagatodisha-sub003/app/notify"
	"github.com/swagatgroup/swagatodisha-sub003/app/repo"
	"github.com/swagatgroup/swagatodisha-sub003/helper"
)

// Actor is the authenticated user performing an operation.
type Actor struct {
	ID   string
	Role string
}

type Engine struct {
	repo      repo.ApplicationRepository
	users     repo.UserRepository
	publisher notify.Publisher
	log       zerolog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
	newID     func(time.Time) string
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithIDGenerator(gen func(time.Time) string) Option {
	return func(e *Engine) { e.newID = gen }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithUsers makes Create check that applications filed on a student's behalf
// name an existing student account.
func WithUsers(users repo.UserRepository) Option {
	return func(e *Engine) { e.users = users }
}

func New(r repo.ApplicationRepository, pub notify.Publisher, log zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		repo:      r,
		publisher: pub,
		log:       log.With().Str("component", "workflow").Logger(),
		now:       time.Now,
		newID:     helper.NewApplicationID,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// InitialStatus is the status a submission enters for the given submitter
// role. Students queue for staff pickup; agents and staff go straight to review.
func InitialStatus(submitterRole string) model.ApplicationStatus {
	if submitterRole == model.SubmitterStudent {
		return model.StatusSubmitted
	}
	return model.StatusUnderReview
}

// Create files a new application. With SaveAsDraft the application stays a
// DRAFT; otherwise it is submitted immediately.
func (e *Engine) Create(ctx context.Context, actor Actor, req model.CreateApplicationRequest) (*model.Application, error) {
	if !isSubmitterRole(actor.Role) {
		return nil, e.fail(model.ActionSubmit, apperr.Forbidden("role cannot submit applications"))
	}

	owner := actor.ID
	if actor.Role != model.SubmitterStudent {
		owner = strings.TrimSpace(req.StudentUserID)
		if owner == "" {
			return nil, e.fail(model.ActionSubmit, apperr.Validation("studentUserId is required when submitting on a student's behalf"))
		}
		if err := e.checkStudent(ctx, owner); err != nil {
			return nil, e.fail(model.ActionSubmit, err)
		}
	}

	now := e.stamp(nil)
	app := &model.Application{
		ApplicationID:   e.newID(now),
		User:            owner,
		SubmitterRole:   actor.Role,
		SubmittedBy:     actor.ID,
		Status:          model.StatusDraft,
		WorkflowHistory: []model.WorkflowEntry{},
		PersonalDetails: req.PersonalDetails,
		ContactDetails:  req.ContactDetails,
		CourseDetails:   req.CourseDetails,
		GuardianDetails: req.GuardianDetails,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if app.PersonalDetails.RegistrationDate == nil {
		reg := now
		app.PersonalDetails.RegistrationDate = &reg
	}
	if !req.SaveAsDraft {
		app.Status = InitialStatus(actor.Role)
		app.SubmittedAt = &now
		app.WorkflowHistory = append(app.WorkflowHistory, model.WorkflowEntry{
			Action:    model.ActionSubmit,
			Stage:     app.Status.Stage(),
			Timestamp: now,
			Actor:     actor.ID,
		})
	}

	if err := e.repo.Create(ctx, app); err != nil {
		return nil, e.fail(model.ActionSubmit, apperr.Store(err, "failed to save application"))
	}

	if app.Status != model.StatusDraft {
		e.publish(ctx, notify.NewEvent(notify.EventSubmitted, app, now))
	}
	e.log.Info().
		Str("applicationId", app.ApplicationID).
		Str("status", string(app.Status)).
		Str("submitterRole", actor.Role).
		Msg("application created")
	e.metrics.Transition(model.ActionSubmit, "ok")
	return app, nil
}

// Submit moves the actor's DRAFT application into the review queue.
func (e *Engine) Submit(ctx context.Context, applicationID string, actor Actor) (*model.Application, error) {
	app, err := e.load(ctx, applicationID)
	if err != nil {
		return nil, e.fail(model.ActionSubmit, err)
	}
	if app.SubmittedBy != actor.ID {
		return nil, e.fail(model.ActionSubmit, apperr.Forbidden("only the original submitter can submit this application"))
	}
	if app.Status != model.StatusDraft {
		return nil, e.fail(model.ActionSubmit, apperr.IllegalTransition(string(model.StatusDraft), string(app.Status)))
	}

	now := e.stamp(app)
	next := InitialStatus(app.SubmitterRole)
	updated, err := e.commit(ctx, applicationID, repo.Guard{Status: model.StatusDraft, SubmittedBy: actor.ID}, repo.Change{
		Status:      next,
		SubmittedAt: &now,
		Entry:       model.WorkflowEntry{Action: model.ActionSubmit, Stage: next.Stage(), Timestamp: now, Actor: actor.ID},
		UpdatedAt:   now,
	}, model.StatusDraft)
	if err != nil {
		return nil, e.fail(model.ActionSubmit, err)
	}

	e.publish(ctx, notify.NewEvent(notify.EventSubmitted, updated, now))
	e.metrics.Transition(model.ActionSubmit, "ok")
	return updated, nil
}

// BeginReview picks a SUBMITTED application up for verification.
func (e *Engine) BeginReview(ctx context.Context, applicationID, reviewerID string) (*model.Application, error) {
	app, err := e.load(ctx, applicationID)
	if err != nil {
		return nil, e.fail(model.ActionBeginReview, err)
	}
	if app.Status != model.StatusSubmitted {
		return nil, e.fail(model.ActionBeginReview, apperr.IllegalTransition(string(model.StatusSubmitted), string(app.Status)))
	}

	now := e.stamp(app)
	updated, err := e.commit(ctx, applicationID, repo.Guard{Status: model.StatusSubmitted}, repo.Change{
		Status:    model.StatusUnderReview,
		Entry:     model.WorkflowEntry{Action: model.ActionBeginReview, Stage: model.StatusUnderReview.Stage(), Timestamp: now, Actor: reviewerID},
		UpdatedAt: now,
	}, model.StatusSubmitted)
	if err != nil {
		return nil, e.fail(model.ActionBeginReview, err)
	}

	e.metrics.Transition(model.ActionBeginReview, "ok")
	return updated, nil
}

// Approve accepts an application that is UNDER_REVIEW.
func (e *Engine) Approve(ctx context.Context, applicationID, reviewerID, remarks string) (*model.Application, error) {
	app, err := e.load(ctx, applicationID)
	if err != nil {
		return nil, e.fail(model.ActionApprove, err)
	}
	if app.Status != model.StatusUnderReview {
		return nil, e.fail(model.ActionApprove, apperr.IllegalTransition(string(model.StatusUnderReview), string(app.Status)))
	}

	now := e.stamp(app)
	updated, err := e.commit(ctx, applicationID, repo.Guard{Status: model.StatusUnderReview}, repo.Change{
		Status: model.StatusApproved,
		ReviewInfo: &model.ReviewInfo{
			ReviewedBy: reviewerID,
			ReviewedAt: &now,
			Remarks:    remarks,
		},
		Entry: model.WorkflowEntry{
			Action:    model.ActionApprove,
			Stage:     model.StatusApproved.Stage(),
			Timestamp: now,
			Actor:     reviewerID,
			Remarks:   remarks,
		},
		UpdatedAt: now,
	}, model.StatusUnderReview)
	if err != nil {
		return nil, e.fail(model.ActionApprove, err)
	}

	ev := notify.NewEvent(notify.EventApproved, updated, now)
	ev.Remarks = remarks
	e.publish(ctx, ev)

	e.log.Info().Str("applicationId", applicationID).Str("reviewer", reviewerID).Msg("application approved")
	e.metrics.Transition(model.ActionApprove, "ok")
	return updated, nil
}

type RejectInput struct {
	Reason  string
	Message string
	Remarks string
	Details []model.RejectionDetail
}

// Reject sends an application that is UNDER_REVIEW back to its submitter.
// Reason and Message are required.
func (e *Engine) Reject(ctx context.Context, applicationID, reviewerID string, in RejectInput) (*model.Application, error) {
	in.Reason = strings.TrimSpace(in.Reason)
	in.Message = strings.TrimSpace(in.Message)
	if in.Reason == "" || in.Message == "" {
		return nil, e.fail(model.ActionReject, apperr.Validation("rejectionReason and rejectionMessage are required"))
	}

	app, err := e.load(ctx, applicationID)
	if err != nil {
		return nil, e.fail(model.ActionReject, err)
	}
	if app.Status != model.StatusUnderReview {
		return nil, e.fail(model.ActionReject, apperr.IllegalTransition(string(model.StatusUnderReview), string(app.Status)))
	}

	now := e.stamp(app)
	updated, err := e.commit(ctx, applicationID, repo.Guard{Status: model.StatusUnderReview}, repo.Change{
		Status: model.StatusRejected,
		ReviewInfo: &model.ReviewInfo{
			ReviewedBy:       reviewerID,
			ReviewedAt:       &now,
			Remarks:          in.Remarks,
			RejectionReason:  in.Reason,
			RejectionMessage: in.Message,
			RejectionDetails: in.Details,
		},
		Entry: model.WorkflowEntry{
			Action:    model.ActionReject,
			Stage:     model.StatusRejected.Stage(),
			Timestamp: now,
			Actor:     reviewerID,
			Remarks:   in.Reason,
		},
		UpdatedAt: now,
	}, model.StatusUnderReview)
	if err != nil {
		return nil, e.fail(model.ActionReject, err)
	}

	ev := notify.NewEvent(notify.EventRejected, updated, now)
	ev.Remarks = in.Remarks
	ev.RejectionReason = in.Reason
	ev.RejectionMessage = in.Message
	ev.RejectionDetails = in.Details
	e.publish(ctx, ev)

	e.log.Info().Str("applicationId", applicationID).Str("reviewer", reviewerID).Str("reason", in.Reason).Msg("application rejected")
	e.metrics.Transition(model.ActionReject, "ok")
	return updated, nil
}

// Resubmit returns a REJECTED application to UNDER_REVIEW. Only the original
// submitter may do this; the ownership check runs before the status check.
func (e *Engine) Resubmit(ctx context.Context, applicationID, actorID, reason string) (*model.Application, error) {
	app, err := e.load(ctx, applicationID)
	if err != nil {
		return nil, e.fail(model.ActionResubmit, err)
	}
	if app.SubmittedBy != actorID {
		return nil, e.fail(model.ActionResubmit, apperr.Forbidden("only the original submitter can resubmit this application"))
	}
	if app.Status != model.StatusRejected {
		return nil, e.fail(model.ActionResubmit, apperr.IllegalTransition(string(model.StatusRejected), string(app.Status)))
	}

	now := e.stamp(app)
	updated, err := e.commit(ctx, applicationID, repo.Guard{Status: model.StatusRejected, SubmittedBy: actorID}, repo.Change{
		Status:          model.StatusUnderReview,
		ClearReviewInfo: true,
		Resubmission:    &repo.Resubmission{At: now, Reason: reason},
		Entry: model.WorkflowEntry{
			Action:    model.ActionResubmit,
			Stage:     model.StatusUnderReview.Stage(),
			Timestamp: now,
			Actor:     actorID,
			Remarks:   reason,
		},
		UpdatedAt: now,
	}, model.StatusRejected)
	if err != nil {
		return nil, e.fail(model.ActionResubmit, err)
	}

	e.log.Info().
		Str("applicationId", applicationID).
		Int("resubmissionCount", updated.ResubmissionInfo.ResubmissionCount).
		Msg("application resubmitted")
	e.metrics.Transition(model.ActionResubmit, "ok")
	return updated, nil
}

// Get loads one application.
func (e *Engine) Get(ctx context.Context, applicationID string) (*model.Application, error) {
	return e.load(ctx, applicationID)
}

func (e *Engine) load(ctx context.Context, applicationID string) (*model.Application, error) {
	app, err := e.repo.FindByApplicationID(ctx, applicationID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, apperr.NotFound("application not found")
	}
	if err != nil {
		return nil, apperr.Store(err, "failed to load application")
	}
	return app, nil
}

// commit applies change under guard. A guard miss means another operation
// got there first; the record is re-read so the error names its status now.
func (e *Engine) commit(ctx context.Context, applicationID string, guard repo.Guard, change repo.Change, required model.ApplicationStatus) (*model.Application, error) {
	updated, err := e.repo.Transition(ctx, applicationID, guard, change)
	switch {
	case err == nil:
		return updated, nil
	case errors.Is(err, repo.ErrNotFound):
		return nil, apperr.NotFound("application not found")
	case errors.Is(err, repo.ErrGuardMismatch):
		current, lerr := e.load(ctx, applicationID)
		if lerr != nil {
			return nil, lerr
		}
		if guard.SubmittedBy != "" && current.SubmittedBy != guard.SubmittedBy {
			return nil, apperr.Forbidden("only the original submitter can change this application")
		}
		return nil, apperr.IllegalTransition(string(required), string(current.Status))
	default:
		return nil, apperr.Store(err, "failed to update application")
	}
}

// stamp returns the timestamp for the next history entry of app. It never
// goes backwards relative to the entries already recorded.
func (e *Engine) stamp(app *model.Application) time.Time {
	now := e.now().UTC().Truncate(time.Millisecond)
	if app != nil {
		if last := app.LastEntry(); last != nil && now.Before(last.Timestamp) {
			now = last.Timestamp
		}
	}
	return now
}

// publish hands ev to the notification queue. Failures are logged only; the
// transition has already been stored.
func (e *Engine) publish(ctx context.Context, ev notify.Event) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, ev); err != nil {
		e.log.Error().Err(err).
			Str("event", string(ev.Type)).
			Str("applicationId", ev.ApplicationID).
			Msg("failed to publish notification")
		e.metrics.NotificationPublished(string(ev.Type), false)
		return
	}
	e.metrics.NotificationPublished(string(ev.Type), true)
}

func (e *Engine) fail(action string, err error) error {
	e.metrics.Transition(action, string(apperr.KindOf(err)))
	if apperr.KindOf(err) == apperr.KindStore {
		e.log.Error().Stack().Err(err).Str("action", action).Msg("workflow store failure")
	}
	return err
}

func (e *Engine) checkStudent(ctx context.Context, userID string) error {
	if e.users == nil {
		return nil
	}
	id, err := uuid.Parse(userID)
	if err != nil {
		return apperr.Validation("studentUserId is not a valid id")
	}
	u, err := e.users.FindByUserID(ctx, id)
	if errors.Is(err, repo.ErrUserNotFound) {
		return apperr.NotFound("student not found")
	}
	if err != nil {
		return apperr.Store(err, "failed to load student")
	}
	if u.Role.Name != model.RoleStudent {
		return apperr.Validation("studentUserId does not belong to a student")
	}
	return nil
}

func isSubmitterRole(role string) bool {
	switch role {
	case model.SubmitterStudent, model.SubmitterAgent, model.SubmitterStaff, model.SubmitterSuperAdmin:
		return true
	}
	return false
}
