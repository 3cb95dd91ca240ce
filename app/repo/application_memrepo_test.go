package repo

import (
	"context"
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swagatgroup/swagatodisha-sub003/app/model"
)

func TestMemRepoCreateDuplicate(t *testing.T) {
	r := NewMemApplicationRepo()
	ctx := context.Background()

	require.NoError(t, r.Create(ctx, &model.Application{ApplicationID: "APP1"}))
	assert.ErrorIs(t, r.Create(ctx, &model.Application{ApplicationID: "APP1"}), ErrDuplicate)

	_, err := r.FindByApplicationID(ctx, "APP2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemRepoReturnsCopies(t *testing.T) {
	r := NewMemApplicationRepo()
	ctx := context.Background()
	require.NoError(t, r.Create(ctx, &model.Application{ApplicationID: "APP1", Status: model.StatusUnderReview}))

	app, err := r.FindByApplicationID(ctx, "APP1")
	require.NoError(t, err)
	app.Status = model.StatusApproved
	app.WorkflowHistory = append(app.WorkflowHistory, model.WorkflowEntry{Action: "X"})

	again, err := r.FindByApplicationID(ctx, "APP1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusUnderReview, again.Status)
	assert.Empty(t, again.WorkflowHistory)
}

func TestMemRepoTransition(t *testing.T) {
	r := NewMemApplicationRepo()
	ctx := context.Background()
	reviewed := time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, r.Create(ctx, &model.Application{
		ApplicationID: "APP1",
		Status:        model.StatusRejected,
		SubmittedBy:   "agent-1",
		ReviewInfo:    &model.ReviewInfo{ReviewedBy: "staff-1", ReviewedAt: &reviewed},
	}))

	change := Change{
		Status:          model.StatusUnderReview,
		ClearReviewInfo: true,
		Resubmission:    &Resubmission{At: reviewed.Add(time.Hour), Reason: "fixed"},
		Entry:           model.WorkflowEntry{Action: model.ActionResubmit, Stage: "UNDER_REVIEW", Timestamp: reviewed.Add(time.Hour)},
		UpdatedAt:       reviewed.Add(time.Hour),
	}

	_, err := r.Transition(ctx, "APP1", Guard{Status: model.StatusRejected, SubmittedBy: "agent-2"}, change)
	assert.ErrorIs(t, err, ErrGuardMismatch)
	_, err = r.Transition(ctx, "APP1", Guard{Status: model.StatusUnderReview}, change)
	assert.ErrorIs(t, err, ErrGuardMismatch)
	_, err = r.Transition(ctx, "nope", Guard{Status: model.StatusRejected}, change)
	assert.ErrorIs(t, err, ErrNotFound)

	app, err := r.Transition(ctx, "APP1", Guard{Status: model.StatusRejected, SubmittedBy: "agent-1"}, change)
	require.NoError(t, err)
	assert.Equal(t, model.StatusUnderReview, app.Status)
	assert.Nil(t, app.ReviewInfo)
	assert.Equal(t, 1, app.ResubmissionInfo.ResubmissionCount)
	assert.True(t, app.ResubmissionInfo.IsResubmission)
	assert.Equal(t, "fixed", app.ResubmissionInfo.ResubmissionReason)
	assert.Len(t, app.WorkflowHistory, 1)
}

func TestMemRepoFindOrderAndGroups(t *testing.T) {
	r := NewMemApplicationRepo()
	ctx := context.Background()
	at := func(m time.Month) *time.Time {
		t := time.Date(2026, m, 1, 0, 0, 0, 0, time.UTC)
		return &t
	}
	for _, a := range []*model.Application{
		{ApplicationID: "A", Status: model.StatusApproved, SubmittedAt: at(time.May)},
		{ApplicationID: "B", Status: model.StatusDraft},
		{ApplicationID: "C", Status: model.StatusApproved, SubmittedAt: at(time.July)},
		{ApplicationID: "D", Status: model.StatusRejected, SubmittedAt: at(time.May)},
	} {
		require.NoError(t, r.Create(ctx, a))
	}

	apps, err := r.Find(ctx, ApplicationFilter{}, Page{})
	require.NoError(t, err)
	var ids []string
	for _, a := range apps {
		ids = append(ids, a.ApplicationID)
	}
	assert.Equal(t, []string{"C", "A", "D", "B"}, ids)

	apps, err = r.Find(ctx, ApplicationFilter{}, Page{Skip: 3, Limit: 10})
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "B", apps[0].ApplicationID)

	months, err := r.CountBy(ctx, ApplicationFilter{}, GroupByMonth)
	require.NoError(t, err)
	assert.Equal(t, []model.StatItem{{Label: "2026-05", Count: 2}, {Label: "2026-07", Count: 1}}, months)

	statuses, err := r.CountBy(ctx, ApplicationFilter{}, GroupByStatus)
	require.NoError(t, err)
	assert.Equal(t, []model.StatItem{
		{Label: "APPROVED", Count: 2}, {Label: "DRAFT", Count: 1}, {Label: "REJECTED", Count: 1},
	}, statuses)
}

func TestMemRepoTransitionKeepsStoredKey(t *testing.T) {
	r := NewMemApplicationRepo()
	ctx := context.Background()
	require.NoError(t, r.Create(ctx, &model.Application{ApplicationID: "APP1", Status: model.StatusSubmitted}))

	// an id backed by a buffer the caller reuses after the call
	buf := []byte("APP1")
	id := unsafe.String(&buf[0], len(buf))
	_, err := r.Transition(ctx, id, Guard{Status: model.StatusSubmitted}, Change{
		Status: model.StatusUnderReview,
		Entry:  model.WorkflowEntry{Action: model.ActionBeginReview},
	})
	require.NoError(t, err)
	copy(buf, "ZZZZ")

	app, err := r.FindByApplicationID(ctx, "APP1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusUnderReview, app.Status)

	apps, err := r.Find(ctx, ApplicationFilter{}, Page{})
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "APP1", apps[0].ApplicationID)

	statuses, err := r.CountBy(ctx, ApplicationFilter{}, GroupByStatus)
	require.NoError(t, err)
	assert.Equal(t, []model.StatItem{{Label: "UNDER_REVIEW", Count: 1}}, statuses)
}

func TestMemRepoFindNegativeSkip(t *testing.T) {
	r := NewMemApplicationRepo()
	ctx := context.Background()
	require.NoError(t, r.Create(ctx, &model.Application{ApplicationID: "A"}))
	require.NoError(t, r.Create(ctx, &model.Application{ApplicationID: "B"}))

	apps, err := r.Find(ctx, ApplicationFilter{}, Page{Skip: -10, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, apps, 1)
}
