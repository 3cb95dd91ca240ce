package query

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swagatgroup/swagatodisha-sub003/app/apperr"
	"github.com/swagatgroup/swagatodisha-sub003/app/model"
	"github.com/swagatgroup/swagatodisha-sub003/app/repo"
	"github.com/swagatgroup/swagatodisha-sub003/app/session"
)

var now = time.Date(2026, time.October, 16, 12, 0, 0, 0, time.UTC)

func ts(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 9, 0, 0, 0, time.UTC)
	return &t
}

func newService(r repo.ApplicationRepository) *Service {
	resolver := session.NewResolver(time.UTC).WithClock(func() time.Time { return now })
	return New(r, resolver, zerolog.Nop(), WithClock(func() time.Time { return now }))
}

func insert(t *testing.T, r *repo.MemApplicationRepo, apps ...*model.Application) {
	t.Helper()
	for _, a := range apps {
		if a.WorkflowHistory == nil {
			a.WorkflowHistory = []model.WorkflowEntry{}
		}
		require.NoError(t, r.Create(context.Background(), a))
	}
}

func TestListApplicationsRequiresSession(t *testing.T) {
	svc := newService(repo.NewMemApplicationRepo())

	_, err := svc.ListApplications(context.Background(), ListParams{})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.ListApplications(context.Background(), ListParams{SessionLabel: "2025-27"})
	assert.True(t, apperr.Is(err, apperr.KindInvalidSessionFormat))
}

func TestListApplicationsRegistrationDateFallback(t *testing.T) {
	r := repo.NewMemApplicationRepo()
	insert(t, r,
		&model.Application{
			ApplicationID:   "REG",
			Status:          model.StatusSubmitted,
			SubmittedAt:     ts(2025, time.May, 2),
			PersonalDetails: model.PersonalDetails{RegistrationDate: ts(2025, time.May, 1)},
			CreatedAt:       *ts(2024, time.January, 1),
		},
		&model.Application{
			ApplicationID: "LEGACY",
			Status:        model.StatusSubmitted,
			SubmittedAt:   ts(2025, time.June, 2),
			CreatedAt:     *ts(2025, time.June, 1),
		},
		&model.Application{
			ApplicationID: "OLD",
			Status:        model.StatusSubmitted,
			SubmittedAt:   ts(2024, time.June, 2),
			CreatedAt:     *ts(2024, time.June, 1),
		},
		&model.Application{
			ApplicationID:   "OUTSIDE",
			Status:          model.StatusSubmitted,
			PersonalDetails: model.PersonalDetails{RegistrationDate: ts(2026, time.April, 1)},
			CreatedAt:       *ts(2025, time.June, 1),
		},
	)

	res, err := newService(r).ListApplications(context.Background(), ListParams{SessionLabel: "2025-26"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.TotalCount)

	var ids []string
	for _, a := range res.Items {
		ids = append(ids, a.ApplicationID)
	}
	assert.Equal(t, []string{"LEGACY", "REG"}, ids)
	assert.Equal(t, "2025-26", res.Session.Label)
}

func TestListApplicationsFiltersAndPaging(t *testing.T) {
	r := repo.NewMemApplicationRepo()
	for i := 0; i < 25; i++ {
		role := model.SubmitterStudent
		if i%2 == 0 {
			role = model.SubmitterAgent
		}
		insert(t, r, &model.Application{
			ApplicationID:   fmt.Sprintf("APP%02d", i),
			Status:          model.StatusUnderReview,
			SubmitterRole:   role,
			SubmittedAt:     ts(2025, time.May, 1+i),
			PersonalDetails: model.PersonalDetails{FullName: fmt.Sprintf("Student %02d", i), RegistrationDate: ts(2025, time.May, 1)},
			CourseDetails:   model.CourseDetails{Course: "GNM"},
		})
	}
	svc := newService(r)
	ctx := context.Background()

	res, err := svc.ListApplications(ctx, ListParams{SessionLabel: "25-26", SubmitterRole: model.SubmitterAgent, Page: 2, Limit: 5})
	require.NoError(t, err)
	assert.EqualValues(t, 13, res.TotalCount)
	assert.Equal(t, 3, res.TotalPages())
	require.Len(t, res.Items, 5)
	assert.Equal(t, "APP14", res.Items[0].ApplicationID)

	p := res.Pagination()
	assert.True(t, p.HasNextPage)
	assert.True(t, p.HasPrevPage)

	res, err = svc.ListApplications(ctx, ListParams{SessionLabel: "2025-26", Search: "student 07"})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "APP07", res.Items[0].ApplicationID)

	res, err = svc.ListApplications(ctx, ListParams{SessionLabel: "2025-26", Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, MaxLimit, res.Limit)
	assert.Equal(t, DefaultPage, res.Page)

	_, err = svc.ListApplications(ctx, ListParams{SessionLabel: "2025-26", Status: "pending"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestListPendingDefaults(t *testing.T) {
	r := repo.NewMemApplicationRepo()
	insert(t, r,
		&model.Application{ApplicationID: "S", Status: model.StatusSubmitted, SubmittedAt: ts(2025, time.May, 1)},
		&model.Application{ApplicationID: "U", Status: model.StatusUnderReview, SubmittedAt: ts(2025, time.May, 2)},
		&model.Application{ApplicationID: "A", Status: model.StatusApproved, SubmittedAt: ts(2025, time.May, 3)},
		&model.Application{ApplicationID: "D", Status: model.StatusDraft},
	)
	svc := newService(r)

	res, err := svc.ListPending(context.Background(), ListParams{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.TotalCount)
	assert.Equal(t, DefaultLimit, res.Limit)

	res, err = svc.ListPending(context.Background(), ListParams{Status: "approved"})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "A", res.Items[0].ApplicationID)
}

func TestProcessingStatsFromApprovals(t *testing.T) {
	r := repo.NewMemApplicationRepo()
	reviewed := func(t *time.Time) *model.ReviewInfo { return &model.ReviewInfo{ReviewedBy: "s", ReviewedAt: t} }
	insert(t, r,
		&model.Application{
			ApplicationID: "A1", Status: model.StatusApproved,
			SubmittedAt: ts(2025, time.May, 1), ReviewInfo: reviewed(ts(2025, time.May, 2)),
			CreatedAt: *ts(2025, time.May, 1),
		},
		// approval taken from history
		&model.Application{
			ApplicationID: "A2", Status: model.StatusApproved,
			SubmittedAt: ts(2025, time.May, 1),
			WorkflowHistory: []model.WorkflowEntry{
				{Action: model.ActionApprove, Stage: "APPROVED", Timestamp: *ts(2025, time.May, 3)},
			},
			CreatedAt: *ts(2025, time.May, 1),
		},
		// implausible: over a year
		&model.Application{
			ApplicationID: "A3", Status: model.StatusApproved,
			SubmittedAt: ts(2025, time.May, 1), ReviewInfo: reviewed(ts(2026, time.May, 2)),
			CreatedAt: *ts(2025, time.May, 1),
		},
		// implausible: negative
		&model.Application{
			ApplicationID: "A4", Status: model.StatusApproved,
			SubmittedAt: ts(2025, time.May, 5), ReviewInfo: reviewed(ts(2025, time.May, 1)),
			CreatedAt: *ts(2025, time.May, 1),
		},
		&model.Application{ApplicationID: "R1", Status: model.StatusRejected, CreatedAt: *ts(2025, time.June, 1)},
		&model.Application{ApplicationID: "D1", Status: model.StatusDraft, CreatedAt: *ts(2025, time.June, 1)},
		&model.Application{ApplicationID: "S1", Status: model.StatusSubmitted, CreatedAt: *ts(2025, time.June, 1)},
		&model.Application{ApplicationID: "U1", Status: model.StatusUnderReview, CreatedAt: *ts(2025, time.June, 1)},
		&model.Application{ApplicationID: "X1", Status: model.StatusUnderReview, CreatedAt: *ts(2024, time.June, 1)},
	)

	stats, err := newService(r).ComputeProcessingStats(context.Background(), "2025-26")
	require.NoError(t, err)

	assert.EqualValues(t, 36, stats.AverageProcessingTime)
	assert.EqualValues(t, 8, stats.TotalStudents)
	assert.EqualValues(t, 2, stats.PendingVerification)
	assert.EqualValues(t, 4, stats.ApprovedInSession)
	assert.EqualValues(t, 1, stats.RejectedInSession)
	assert.EqualValues(t, 1, stats.DraftInSession)
	assert.EqualValues(t, 1, stats.SubmittedInSession)
	assert.EqualValues(t, 1, stats.UnderReviewInSession)
	assert.Equal(t, "2025-26", stats.Session)
	assert.Equal(t, time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC), stats.SessionStartDate)
}

func TestProcessingStatsFallsBackToPending(t *testing.T) {
	r := repo.NewMemApplicationRepo()
	insert(t, r,
		// approved without a resolvable approval time
		&model.Application{ApplicationID: "A1", Status: model.StatusApproved, SubmittedAt: ts(2026, time.May, 1), CreatedAt: *ts(2026, time.May, 1)},
		&model.Application{ApplicationID: "U1", Status: model.StatusUnderReview, SubmittedAt: ptr(now.Add(-10 * time.Hour)), CreatedAt: *ts(2026, time.May, 1)},
		&model.Application{ApplicationID: "U2", Status: model.StatusUnderReview, SubmittedAt: ptr(now.Add(-20 * time.Hour)), CreatedAt: *ts(2026, time.May, 1)},
		&model.Application{ApplicationID: "U3", Status: model.StatusUnderReview, CreatedAt: *ts(2026, time.May, 1)},
	)

	stats, err := newService(r).ComputeProcessingStats(context.Background(), "2026-27")
	require.NoError(t, err)
	assert.EqualValues(t, 15, stats.AverageProcessingTime)
}

func TestListPendingPageOutOfRange(t *testing.T) {
	r := repo.NewMemApplicationRepo()
	insert(t, r, &model.Application{ApplicationID: "S", Status: model.StatusSubmitted, SubmittedAt: ts(2025, time.May, 1)})
	svc := newService(r)

	_, err := svc.ListPending(context.Background(), ListParams{Page: math.MaxInt / 5, Limit: 10})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	res, err := svc.ListPending(context.Background(), ListParams{Page: 1000, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.EqualValues(t, 1, res.TotalCount)
}

func TestProcessingStatsPendingSampleCap(t *testing.T) {
	r := repo.NewMemApplicationRepo()
	created := *ts(2026, time.May, 1)
	pending := func(id string, elapsed time.Duration) *model.Application {
		return &model.Application{
			ApplicationID: id,
			Status:        model.StatusUnderReview,
			SubmittedAt:   ptr(now.Add(-elapsed)),
			CreatedAt:     created,
		}
	}

	// newest by submittedAt, dropped as implausible after the cap is taken
	insert(t, r, pending("FUTURE", -2*time.Hour))
	for i := 0; i < 99; i++ {
		insert(t, r, pending(fmt.Sprintf("U%03d", i), 10*time.Hour))
	}
	// outside the newest 100
	for i := 0; i < 4; i++ {
		insert(t, r, pending(fmt.Sprintf("OLD%d", i), 1000*time.Hour))
	}
	insert(t, r, pending("STALE", 9000*time.Hour))

	stats, err := newService(r).ComputeProcessingStats(context.Background(), "2026-27")
	require.NoError(t, err)
	assert.EqualValues(t, 105, stats.UnderReviewInSession)
	assert.EqualValues(t, 10, stats.AverageProcessingTime)
}

func TestProcessingStatsDefault(t *testing.T) {
	stats, err := newService(repo.NewMemApplicationRepo()).ComputeProcessingStats(context.Background(), "2026-27")
	require.NoError(t, err)
	assert.EqualValues(t, DefaultProcessingHours, stats.AverageProcessingTime)
	assert.Zero(t, stats.TotalStudents)
}

func TestProcessingStatsInvalidSession(t *testing.T) {
	svc := newService(repo.NewMemApplicationRepo())
	_, err := svc.ComputeProcessingStats(context.Background(), "abc-26")
	assert.True(t, apperr.Is(err, apperr.KindInvalidSessionFormat))
	_, err = svc.ComputeProcessingStats(context.Background(), "")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

type brokenRepo struct {
	*repo.MemApplicationRepo
}

func (brokenRepo) Count(context.Context, repo.ApplicationFilter) (int64, error) {
	return 0, errors.New("timeout")
}

func TestStatsDegradeOnStoreFailure(t *testing.T) {
	mem := repo.NewMemApplicationRepo()
	insert(t, mem, &model.Application{
		ApplicationID: "A", Status: model.StatusApproved, SubmitterRole: model.SubmitterAgent,
		SubmittedAt: ts(2026, time.May, 1), CourseDetails: model.CourseDetails{Course: "GNM"},
		ResubmissionInfo: model.ResubmissionInfo{IsResubmission: true, ResubmissionCount: 2},
	})
	svc := newService(brokenRepo{mem})

	overview := svc.Overview(context.Background())
	assert.Zero(t, overview.TotalApplications)
	assert.Zero(t, overview.Approved)
	assert.Equal(t, []model.StatItem{{Label: "APPROVED", Count: 1}}, overview.StatusStats)
	assert.Equal(t, []model.StatItem{{Label: "2026-05", Count: 1}}, overview.MonthlyStats)
	assert.Equal(t, model.ResubmissionStats{Resubmitted: 1, TotalResubmissions: 2}, overview.ResubmissionStats)

	stats, err := svc.ComputeProcessingStats(context.Background(), "2026-27")
	require.NoError(t, err)
	assert.Zero(t, stats.TotalStudents)
}

func TestOverview(t *testing.T) {
	r := repo.NewMemApplicationRepo()
	insert(t, r,
		&model.Application{ApplicationID: "1", Status: model.StatusUnderReview, SubmitterRole: model.SubmitterAgent, CourseDetails: model.CourseDetails{Course: "GNM"}},
		&model.Application{ApplicationID: "2", Status: model.StatusApproved, SubmitterRole: model.SubmitterStudent, CourseDetails: model.CourseDetails{Course: "GNM"}},
		&model.Application{ApplicationID: "3", Status: model.StatusRejected, SubmitterRole: model.SubmitterStudent, CourseDetails: model.CourseDetails{Course: "ANM"}},
	)
	o := newService(r).Overview(context.Background())

	assert.EqualValues(t, 3, o.TotalApplications)
	assert.EqualValues(t, 1, o.PendingVerification)
	assert.EqualValues(t, 1, o.Approved)
	assert.EqualValues(t, 1, o.Rejected)
	assert.EqualValues(t, 1, o.AgentApplications)
	assert.EqualValues(t, 2, o.StudentApplications)
	assert.Equal(t, []model.StatItem{{Label: "ANM", Count: 1}, {Label: "GNM", Count: 2}}, o.CourseStats)
	assert.Empty(t, o.MonthlyStats)
}

func ptr(t time.Time) *time.Time { return &t }
