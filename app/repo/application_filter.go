package repo

import (
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/swagatgroup/swagatodisha-sub003/app/model"
	"github.com/swagatgroup/swagatodisha-sub003/app/session"
)

const (
	fieldRegistrationDate = "personalDetails.registrationDate"
	fieldCreatedAt        = "createdAt"
)

// searchFields are matched case-insensitively by ApplicationFilter.Search.
var searchFields = []string{
	"personalDetails.fullName",
	"personalDetails.aadharNumber",
	"contactDetails.phone",
	"contactDetails.email",
	"applicationId",
}

// ApplicationFilter selects applications. Every non-zero field is ANDed.
//
// When Window is set an application belongs to it if its registration date
// falls inside the window, or, for records without a registration date, if
// its creation time does.
type ApplicationFilter struct {
	Statuses      []model.ApplicationStatus
	SubmitterRole string
	Course        string
	Search        string
	SubmittedBy   string
	Window        *session.Session
}

// ToBSON compiles the filter into a MongoDB query document.
func (f ApplicationFilter) ToBSON() bson.M {
	var and []bson.M

	switch len(f.Statuses) {
	case 0:
	case 1:
		and = append(and, bson.M{"status": f.Statuses[0]})
	default:
		and = append(and, bson.M{"status": bson.M{"$in": f.Statuses}})
	}
	if f.SubmitterRole != "" {
		and = append(and, bson.M{"submitterRole": f.SubmitterRole})
	}
	if f.Course != "" {
		and = append(and, bson.M{"courseDetails.course": f.Course})
	}
	if f.SubmittedBy != "" {
		and = append(and, bson.M{"submittedBy": f.SubmittedBy})
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(search), Options: "i"}
		or := make(bson.A, 0, len(searchFields))
		for _, field := range searchFields {
			or = append(or, bson.M{field: re})
		}
		and = append(and, bson.M{"$or": or})
	}
	if f.Window != nil {
		window := bson.M{"$gte": f.Window.StartDate, "$lte": f.Window.EndDate}
		and = append(and, bson.M{"$or": bson.A{
			bson.M{fieldRegistrationDate: window},
			bson.M{fieldRegistrationDate: nil, fieldCreatedAt: window},
		}})
	}

	switch len(and) {
	case 0:
		return bson.M{}
	case 1:
		return and[0]
	}
	return bson.M{"$and": and}
}

// Matches evaluates the filter against an application in memory, with the
// same semantics as ToBSON.
func (f ApplicationFilter) Matches(a *model.Application) bool {
	if len(f.Statuses) > 0 {
		ok := false
		for _, s := range f.Statuses {
			if a.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.SubmitterRole != "" && a.SubmitterRole != f.SubmitterRole {
		return false
	}
	if f.Course != "" && a.CourseDetails.Course != f.Course {
		return false
	}
	if f.SubmittedBy != "" && a.SubmittedBy != f.SubmittedBy {
		return false
	}
	if search := strings.ToLower(strings.TrimSpace(f.Search)); search != "" {
		found := false
		for _, v := range []string{
			a.PersonalDetails.FullName,
			a.PersonalDetails.AadharNumber,
			a.ContactDetails.Phone,
			a.ContactDetails.Email,
			a.ApplicationID,
		} {
			if strings.Contains(strings.ToLower(v), search) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Window != nil {
		if reg := a.PersonalDetails.RegistrationDate; reg != nil {
			return f.Window.Contains(*reg)
		}
		return f.Window.Contains(a.CreatedAt)
	}
	return true
}
