// Package query answers the listing and statistics requests of the staff and
// verification dashboards. It is read-only.
package query

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/swagatgroup/swagatodisha-sub003/app/apperr"
	"github.com/swagatgroup/swagatodisha-sub003/app/model"
	"github.com/swagatgroup/swagatodisha-sub003/app/repo"
	"github.com/swagatgroup/swagatodisha-sub003/app/session"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100

	// DefaultProcessingHours is reported when no processing time can be measured.
	DefaultProcessingHours = 24
	// maxPlausibleHours discards samples of a year or more.
	maxPlausibleHours = 8760
	// pendingSampleCap bounds the UNDER_REVIEW fallback sample.
	pendingSampleCap = 100
)

// ListParams are the filters accepted by the listing endpoints.
type ListParams struct {
	Status        string
	SubmitterRole string
	Course        string
	Search        string
	SessionLabel  string
	Page          int
	Limit         int
}

type ListResult struct {
	Items      []model.Application
	TotalCount int64
	Page       int
	Limit      int
	Session    *session.Session
}

func (r ListResult) TotalPages() int {
	if r.Limit <= 0 {
		return 0
	}
	return int(math.Ceil(float64(r.TotalCount) / float64(r.Limit)))
}

func (r ListResult) Pagination() model.Pagination {
	pages := r.TotalPages()
	return model.Pagination{
		CurrentPage: r.Page,
		TotalPages:  pages,
		TotalItems:  r.TotalCount,
		Limit:       r.Limit,
		HasNextPage: r.Page < pages,
		HasPrevPage: r.Page > 1,
	}
}

type Service struct {
	repo     repo.ApplicationRepository
	sessions *session.Resolver
	log      zerolog.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(r repo.ApplicationRepository, sessions *session.Resolver, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:     r,
		sessions: sessions,
		log:      log.With().Str("component", "query").Logger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListApplications lists the applications of one session. The session label
// is required.
func (s *Service) ListApplications(ctx context.Context, p ListParams) (*ListResult, error) {
	label := strings.TrimSpace(p.SessionLabel)
	if label == "" {
		return nil, apperr.Validation("session is required")
	}
	window, err := s.sessions.Resolve(label)
	if err != nil {
		return nil, err
	}
	f, err := p.filter()
	if err != nil {
		return nil, err
	}
	f.Window = &window
	return s.list(ctx, f, p)
}

// ListPending lists the verification queue. Without an explicit status it
// returns SUBMITTED and UNDER_REVIEW applications of every session.
func (s *Service) ListPending(ctx context.Context, p ListParams) (*ListResult, error) {
	f, err := p.filter()
	if err != nil {
		return nil, err
	}
	if len(f.Statuses) == 0 {
		f.Statuses = []model.ApplicationStatus{model.StatusSubmitted, model.StatusUnderReview}
	}
	if label := strings.TrimSpace(p.SessionLabel); label != "" {
		window, err := s.sessions.Resolve(label)
		if err != nil {
			return nil, err
		}
		f.Window = &window
	}
	return s.list(ctx, f, p)
}

func (s *Service) list(ctx context.Context, f repo.ApplicationFilter, p ListParams) (*ListResult, error) {
	page, limit, err := normalizePage(p.Page, p.Limit)
	if err != nil {
		return nil, err
	}

	total, err := s.repo.Count(ctx, f)
	if err != nil {
		return nil, apperr.Store(err, "failed to count applications")
	}
	items, err := s.repo.Find(ctx, f, repo.Page{Skip: int64(page-1) * int64(limit), Limit: int64(limit)})
	if err != nil {
		return nil, apperr.Store(err, "failed to list applications")
	}
	return &ListResult{Items: items, TotalCount: total, Page: page, Limit: limit, Session: f.Window}, nil
}

func (p ListParams) filter() (repo.ApplicationFilter, error) {
	f := repo.ApplicationFilter{
		SubmitterRole: strings.TrimSpace(p.SubmitterRole),
		Course:        strings.TrimSpace(p.Course),
		Search:        strings.TrimSpace(p.Search),
	}
	if st := strings.ToUpper(strings.TrimSpace(p.Status)); st != "" {
		status := model.ApplicationStatus(st)
		if !status.Valid() {
			return f, apperr.Validation("unknown status " + p.Status)
		}
		f.Statuses = []model.ApplicationStatus{status}
	}
	return f, nil
}

// normalizePage applies the paging defaults. A page whose offset does not
// fit in an int64 is rejected.
func normalizePage(page, limit int) (int, int, error) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if int64(page-1) > math.MaxInt64/int64(limit) {
		return 0, 0, apperr.Validation("page is out of range")
	}
	return page, limit, nil
}

// ComputeProcessingStats reports the counts and average processing time of a
// session. Each count is computed independently; a failing count is logged
// and reported as zero.
func (s *Service) ComputeProcessingStats(ctx context.Context, sessionLabel string) (*model.ProcessingStats, error) {
	label := strings.TrimSpace(sessionLabel)
	if label == "" {
		return nil, apperr.Validation("session is required")
	}
	window, err := s.sessions.Resolve(label)
	if err != nil {
		return nil, err
	}

	inSession := func(statuses ...model.ApplicationStatus) repo.ApplicationFilter {
		return repo.ApplicationFilter{Statuses: statuses, Window: &window}
	}
	stats := &model.ProcessingStats{
		TotalStudents:         s.count(ctx, "totalStudents", inSession()),
		PendingVerification:   s.count(ctx, "pendingVerification", inSession(model.StatusSubmitted, model.StatusUnderReview)),
		ApprovedInSession:     s.count(ctx, "approvedInSession", inSession(model.StatusApproved)),
		RejectedInSession:     s.count(ctx, "rejectedInSession", inSession(model.StatusRejected)),
		DraftInSession:        s.count(ctx, "draftInSession", inSession(model.StatusDraft)),
		SubmittedInSession:    s.count(ctx, "submittedInSession", inSession(model.StatusSubmitted)),
		UnderReviewInSession:  s.count(ctx, "underReviewInSession", inSession(model.StatusUnderReview)),
		AverageProcessingTime: s.averageProcessingHours(ctx, window),
		Session:               window.Label,
		SessionStartDate:      window.StartDate,
		SessionEndDate:        window.EndDate,
	}
	return stats, nil
}

// averageProcessingHours measures submit-to-approval time over the approved
// applications of the session. Without any usable approval it falls back to
// the time the session's UNDER_REVIEW applications have been waiting, and
// without those to DefaultProcessingHours.
func (s *Service) averageProcessingHours(ctx context.Context, window session.Session) int64 {
	approved, err := s.repo.Find(ctx, repo.ApplicationFilter{
		Statuses: []model.ApplicationStatus{model.StatusApproved},
		Window:   &window,
	}, repo.Page{})
	if err != nil {
		s.log.Error().Err(err).Str("session", window.Label).Msg("failed to load approved applications")
	}
	var samples []float64
	for i := range approved {
		a := &approved[i]
		if a.SubmittedAt == nil {
			continue
		}
		approvedAt, ok := a.ApprovedAt()
		if !ok {
			continue
		}
		samples = appendPlausible(samples, approvedAt.Sub(*a.SubmittedAt))
	}
	if avg, ok := roundedMean(samples); ok {
		return avg
	}

	pending, err := s.repo.Find(ctx, repo.ApplicationFilter{
		Statuses: []model.ApplicationStatus{model.StatusUnderReview},
		Window:   &window,
	}, repo.Page{Limit: pendingSampleCap})
	if err != nil {
		s.log.Error().Err(err).Str("session", window.Label).Msg("failed to load pending applications")
	}
	now := s.now()
	samples = samples[:0]
	for i := range pending {
		if at := pending[i].SubmittedAt; at != nil {
			samples = appendPlausible(samples, now.Sub(*at))
		}
	}
	if avg, ok := roundedMean(samples); ok {
		return avg
	}
	return DefaultProcessingHours
}

func appendPlausible(samples []float64, d time.Duration) []float64 {
	hours := d.Hours()
	if hours < 0 || hours >= maxPlausibleHours {
		return samples
	}
	return append(samples, hours)
}

func roundedMean(samples []float64) (int64, bool) {
	if len(samples) == 0 {
		return 0, false
	}
	var sum float64
	for _, h := range samples {
		sum += h
	}
	return int64(math.Round(sum / float64(len(samples)))), true
}

// Overview builds the verification dashboard statistics over every
// application. Sub-queries fail independently and degrade to empty values.
func (s *Service) Overview(ctx context.Context) *model.OverviewStats {
	all := repo.ApplicationFilter{}
	byStatus := func(st model.ApplicationStatus) repo.ApplicationFilter {
		return repo.ApplicationFilter{Statuses: []model.ApplicationStatus{st}}
	}

	stats := &model.OverviewStats{
		StatusStats:         s.group(ctx, all, repo.GroupByStatus),
		SubmitterRoleStats:  s.group(ctx, all, repo.GroupBySubmitterRole),
		MonthlyStats:        s.group(ctx, all, repo.GroupByMonth),
		CourseStats:         s.group(ctx, all, repo.GroupByCourse),
		TotalApplications:   s.count(ctx, "totalApplications", all),
		PendingVerification: s.count(ctx, "pendingVerification", byStatus(model.StatusUnderReview)),
		Approved:            s.count(ctx, "approved", byStatus(model.StatusApproved)),
		Rejected:            s.count(ctx, "rejected", byStatus(model.StatusRejected)),
		AgentApplications:   s.count(ctx, "agentApplications", repo.ApplicationFilter{SubmitterRole: model.SubmitterAgent}),
		StudentApplications: s.count(ctx, "studentApplications", repo.ApplicationFilter{SubmitterRole: model.SubmitterStudent}),
	}
	rs, err := s.repo.ResubmissionTotals(ctx, all)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to aggregate resubmissions")
	}
	stats.ResubmissionStats = rs
	return stats
}

func (s *Service) count(ctx context.Context, name string, f repo.ApplicationFilter) int64 {
	n, err := s.repo.Count(ctx, f)
	if err != nil {
		s.log.Error().Err(err).Str("stat", name).Msg("failed to count applications")
		return 0
	}
	return n
}

func (s *Service) group(ctx context.Context, f repo.ApplicationFilter, key repo.GroupKey) []model.StatItem {
	items, err := s.repo.CountBy(ctx, f, key)
	if err != nil {
		s.log.Error().Err(err).Str("groupBy", string(key)).Msg("failed to group applications")
		return []model.StatItem{}
	}
	return items
}
