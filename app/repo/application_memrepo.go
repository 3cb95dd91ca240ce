package repo

import (
	"context"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/swagatgroup/swagatodisha-sub003/app/model"
)

// MemApplicationRepo keeps applications in process memory. It is used by the
// tests and by local runs without MongoDB.
type MemApplicationRepo struct {
	mu    sync.RWMutex
	byID  map[string]*model.Application
	order []string
}

var (
	_ ApplicationRepository = (*MemApplicationRepo)(nil)
	_ ApplicationRepository = (*MongoApplicationRepo)(nil)
)

func NewMemApplicationRepo() *MemApplicationRepo {
	return &MemApplicationRepo{byID: make(map[string]*model.Application)}
}

func (r *MemApplicationRepo) Create(_ context.Context, app *model.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[app.ApplicationID]; ok {
		return ErrDuplicate
	}
	if app.ID.IsZero() {
		app.ID = primitive.NewObjectID()
	}
	if app.WorkflowHistory == nil {
		app.WorkflowHistory = []model.WorkflowEntry{}
	}
	r.byID[app.ApplicationID] = cloneApplication(app)
	r.order = append(r.order, app.ApplicationID)
	return nil
}

func (r *MemApplicationRepo) FindByApplicationID(_ context.Context, applicationID string) (*model.Application, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	app, ok := r.byID[applicationID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneApplication(app), nil
}

func (r *MemApplicationRepo) matching(f ApplicationFilter) []*model.Application {
	var out []*model.Application
	for _, id := range r.order {
		if app := r.byID[id]; f.Matches(app) {
			out = append(out, app)
		}
	}
	return out
}

func (r *MemApplicationRepo) Find(_ context.Context, f ApplicationFilter, page Page) ([]model.Application, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matches := r.matching(f)
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i].SubmittedAt, matches[j].SubmittedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.After(*b)
	})

	start := page.Skip
	if start < 0 {
		start = 0
	}
	if start > int64(len(matches)) {
		start = int64(len(matches))
	}
	end := int64(len(matches))
	if page.Limit > 0 && start+page.Limit < end {
		end = start + page.Limit
	}

	apps := make([]model.Application, 0, end-start)
	for _, app := range matches[start:end] {
		apps = append(apps, *cloneApplication(app))
	}
	return apps, nil
}

func (r *MemApplicationRepo) Count(_ context.Context, f ApplicationFilter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return int64(len(r.matching(f))), nil
}

func (r *MemApplicationRepo) CountBy(_ context.Context, f ApplicationFilter, key GroupKey) ([]model.StatItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := map[string]int64{}
	for _, app := range r.matching(f) {
		var label string
		switch key {
		case GroupByStatus:
			label = string(app.Status)
		case GroupBySubmitterRole:
			label = app.SubmitterRole
		case GroupByCourse:
			label = app.CourseDetails.Course
		case GroupByMonth:
			if app.SubmittedAt != nil {
				label = app.SubmittedAt.UTC().Format("2006-01")
			}
		}
		if label == "" {
			continue
		}
		counts[label]++
	}

	items := make([]model.StatItem, 0, len(counts))
	for label, n := range counts {
		items = append(items, model.StatItem{Label: label, Count: n})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Label < items[j].Label })
	return items, nil
}

func (r *MemApplicationRepo) ResubmissionTotals(_ context.Context, f ApplicationFilter) (model.ResubmissionStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stats model.ResubmissionStats
	for _, app := range r.matching(f) {
		if app.ResubmissionInfo.IsResubmission {
			stats.Resubmitted++
		}
		stats.TotalResubmissions += int64(app.ResubmissionInfo.ResubmissionCount)
	}
	return stats, nil
}

func (r *MemApplicationRepo) Transition(_ context.Context, applicationID string, guard Guard, change Change) (*model.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	app, ok := r.byID[applicationID]
	if !ok {
		return nil, ErrNotFound
	}
	if app.Status != guard.Status || (guard.SubmittedBy != "" && app.SubmittedBy != guard.SubmittedBy) {
		return nil, ErrGuardMismatch
	}

	next := cloneApplication(app)
	next.Status = change.Status
	next.UpdatedAt = change.UpdatedAt
	if change.ReviewInfo != nil {
		next.ReviewInfo = cloneReviewInfo(change.ReviewInfo)
	}
	if change.ClearReviewInfo {
		next.ReviewInfo = nil
	}
	if change.SubmittedAt != nil {
		at := *change.SubmittedAt
		next.SubmittedAt = &at
	}
	if rs := change.Resubmission; rs != nil {
		at := rs.At
		next.ResubmissionInfo.IsResubmission = true
		next.ResubmissionInfo.ResubmissionCount++
		next.ResubmissionInfo.ResubmittedAt = &at
		next.ResubmissionInfo.ResubmissionReason = rs.Reason
	}
	next.WorkflowHistory = append(next.WorkflowHistory, change.Entry)

	// key by the stored id; applicationID may alias a request buffer
	r.byID[app.ApplicationID] = next
	return cloneApplication(next), nil
}

func cloneApplication(a *model.Application) *model.Application {
	cp := *a
	cp.ReviewInfo = cloneReviewInfo(a.ReviewInfo)
	cp.WorkflowHistory = append([]model.WorkflowEntry{}, a.WorkflowHistory...)
	cp.SubmittedAt = clonePtr(a.SubmittedAt)
	cp.ResubmissionInfo.ResubmittedAt = clonePtr(a.ResubmissionInfo.ResubmittedAt)
	cp.PersonalDetails.RegistrationDate = clonePtr(a.PersonalDetails.RegistrationDate)
	cp.PersonalDetails.DateOfBirth = clonePtr(a.PersonalDetails.DateOfBirth)
	return &cp
}

func cloneReviewInfo(ri *model.ReviewInfo) *model.ReviewInfo {
	if ri == nil {
		return nil
	}
	cp := *ri
	cp.ReviewedAt = clonePtr(ri.ReviewedAt)
	if ri.RejectionDetails != nil {
		cp.RejectionDetails = append([]model.RejectionDetail{}, ri.RejectionDetails...)
	}
	return &cp
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
